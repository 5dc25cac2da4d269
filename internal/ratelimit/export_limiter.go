// Package ratelimit throttles the expensive report-export path per tenant
// using a redis-backed token bucket. Without redis the limiter is disabled
// and exports are unthrottled.
package ratelimit

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/duekeeper/internal/config"
)

const keyExport = "duekeeper:export:%s"

// ExportLimiter caps how often a tenant can render a full debtor export.
// PDF rendering walks the whole ledger, so an unthrottled loop from one
// tenant can starve everyone else.
type ExportLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewExportLimiter(client *redis.Client, cfg config.Config) *ExportLimiter {
	if client == nil {
		return nil
	}

	perMin := cfg.ExportRatePerMin
	if perMin <= 0 {
		perMin = 10
	}
	burst := cfg.ExportBurst
	if burst <= 0 {
		burst = 5
	}

	return &ExportLimiter{
		bucket: NewTokenBucket(client),
		rate:   float64(perMin) / 60.0,
		burst:  burst,
	}
}

// Allow reports whether the tenant may run another export now. A nil limiter
// always allows.
func (l *ExportLimiter) Allow(ctx context.Context, tenantID snowflake.ID) (*RateLimitResult, error) {
	if l == nil {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyExport, tenantID), l.rate, l.burst)
}
