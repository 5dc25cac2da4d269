package config

import (
	"errors"
	"log"
	"math"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ForecastWeights are the stuck-probability coefficients. They are policy,
// not law: operators can retune them per deployment through collections.yml.
type ForecastWeights struct {
	LatePayment  float64 `mapstructure:"latePayment"`
	Delay        float64 `mapstructure:"delay"`
	Volume       float64 `mapstructure:"volume"`
	Amount       float64 `mapstructure:"amount"`
	DelayCapDays float64 `mapstructure:"delayCapDays"`
	VolumeCap    float64 `mapstructure:"volumeCap"`
}

// DefaultCategoryRule is a fallback tier rule applied when a tenant has no
// persisted category_rules rows.
type DefaultCategoryRule struct {
	Priority       int      `mapstructure:"priority"`
	MinBalance     *float64 `mapstructure:"minBalance"`
	MaxBalance     *float64 `mapstructure:"maxBalance"`
	MinOverdueDays *int     `mapstructure:"minOverdueDays"`
	MaxOverdueDays *int     `mapstructure:"maxOverdueDays"`
	TargetCategory string   `mapstructure:"targetCategory"`
}

type CollectionsPolicy struct {
	ForecastWeights      ForecastWeights       `mapstructure:"forecastWeights"`
	DefaultCategoryRules []DefaultCategoryRule `mapstructure:"defaultCategoryRules"`
	SnapshotCacheTTLSec  int                   `mapstructure:"snapshotCacheTTLSec"`
}

func DefaultCollectionsPolicy() CollectionsPolicy {
	return CollectionsPolicy{
		ForecastWeights: ForecastWeights{
			LatePayment:  0.40,
			Delay:        0.30,
			Volume:       0.15,
			Amount:       0.15,
			DelayCapDays: 60,
			VolumeCap:    10,
		},
		DefaultCategoryRules: []DefaultCategoryRule{
			{Priority: 1, MinBalance: floatPtr(500000), MinOverdueDays: intPtr(60), TargetCategory: "DELTA"},
			{Priority: 2, MinBalance: floatPtr(100000), MinOverdueDays: intPtr(30), TargetCategory: "GAMMA"},
			{Priority: 3, MinBalance: floatPtr(0), MinOverdueDays: intPtr(1), TargetCategory: "BETA"},
		},
		SnapshotCacheTTLSec: 60,
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// CollectionsPolicyHolder exposes the live policy with hot reload.
type CollectionsPolicyHolder struct {
	current atomic.Value // holds CollectionsPolicy
}

func NewCollectionsPolicyHolder() (*CollectionsPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("collections")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/duekeeper/config")
	v.AddConfigPath("/etc/duekeeper")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DUEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultCollectionsPolicy()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	} else {
		if err := v.UnmarshalKey("collections", &cfg); err != nil {
			return nil, err
		}
	}
	if err := validateCollectionsPolicy(cfg); err != nil {
		return nil, err
	}

	holder := &CollectionsPolicyHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultCollectionsPolicy()
		if err := v.UnmarshalKey("collections", &updated); err != nil {
			log.Printf("[collections-config] reload failed: %v", err)
			return
		}
		if err := validateCollectionsPolicy(updated); err != nil {
			log.Printf("[collections-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[collections-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *CollectionsPolicyHolder) Get() CollectionsPolicy {
	return h.current.Load().(CollectionsPolicy)
}

// NewStaticPolicyHolder pins a policy, for tests.
func NewStaticPolicyHolder(p CollectionsPolicy) *CollectionsPolicyHolder {
	holder := &CollectionsPolicyHolder{}
	holder.current.Store(p)
	return holder
}

func validateCollectionsPolicy(cfg CollectionsPolicy) error {
	w := cfg.ForecastWeights
	sum := w.LatePayment + w.Delay + w.Volume + w.Amount
	if math.Abs(sum-1.0) > 1e-9 {
		return errors.New("collections.forecastWeights must sum to 1.0")
	}
	if w.DelayCapDays <= 0 || w.VolumeCap <= 0 {
		return errors.New("collections.forecastWeights caps must be positive")
	}
	for _, rule := range cfg.DefaultCategoryRules {
		switch strings.ToUpper(strings.TrimSpace(rule.TargetCategory)) {
		case "ALPHA", "BETA", "GAMMA", "DELTA":
		default:
			return errors.New("collections.defaultCategoryRules has an unknown targetCategory")
		}
	}
	return nil
}
