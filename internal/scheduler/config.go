package scheduler

import (
	"os"
	"strings"
	"time"
)

// Config controls scheduler intervals and per-run limits.
type Config struct {
	RunInterval       time.Duration
	JobTimeout        time.Duration
	TenantConcurrency int
	EnabledJobs       []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       24 * time.Hour,
		JobTimeout:        30 * time.Minute,
		TenantConcurrency: 4,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.TenantConcurrency <= 0 {
		c.TenantConcurrency = defaults.TenantConcurrency
	}
	return c
}

// ProvideConfig reads scheduler tuning from the environment. An empty
// SCHEDULER_JOBS enables every job.
func ProvideConfig() Config {
	cfg := DefaultConfig()
	if raw := strings.TrimSpace(os.Getenv("SCHEDULER_INTERVAL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.RunInterval = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv("SCHEDULER_JOB_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.JobTimeout = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv("SCHEDULER_JOBS")); raw != "" {
		for _, job := range strings.Split(raw, ",") {
			if job = strings.TrimSpace(job); job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	return cfg
}
