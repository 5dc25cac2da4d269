package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidTenant = errors.New("invalid_tenant")

	// ErrRecalcInProgress means another instance holds the tenant's
	// recalculation lock.
	ErrRecalcInProgress = errors.New("recalculation_in_progress")
)

type Service interface {
	// ListRules returns the effective ruleset for the tenant in context,
	// falling back to the configured defaults when none are persisted.
	ListRules(ctx context.Context) ([]CategoryRule, error)

	// Recalculate re-derives every customer's category from the live ledger.
	// It pages through customers, skips manual overrides and uncomputable
	// ledgers, and is idempotent when the underlying data has not moved.
	Recalculate(ctx context.Context) (RecalcSummary, error)
}
