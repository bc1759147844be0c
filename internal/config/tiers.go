package config

import (
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// TierQuota describes the usage allowance attached to a subscription tier.
// Quotas are advisory: the accountant keeps accruing past them and the
// summary endpoint reports over-limit state.
type TierQuota struct {
	Tier            string `mapstructure:"tier" json:"tier"`
	MinutesIncluded int64  `mapstructure:"minutesIncluded" json:"minutes_included"`
	SessionsPerDay  int64  `mapstructure:"sessionsPerDay" json:"sessions_per_day"`
}

// TiersConfig is the full tier quota table.
type TiersConfig struct {
	Quotas []TierQuota `mapstructure:"quotas"`
}

// DefaultTiersConfig mirrors the product's published plans.
func DefaultTiersConfig() TiersConfig {
	return TiersConfig{
		Quotas: []TierQuota{
			{Tier: "free", MinutesIncluded: 10, SessionsPerDay: 2},
			{Tier: "starter", MinutesIncluded: 60, SessionsPerDay: 5},
			{Tier: "pro", MinutesIncluded: 300, SessionsPerDay: 20},
			{Tier: "enterprise", MinutesIncluded: 1500, SessionsPerDay: 100},
		},
	}
}

// TiersHolder serves the current tier table and hot-reloads it when the
// config file changes on disk.
type TiersHolder struct {
	current atomic.Value // holds TiersConfig
}

// NewTiersHolder reads tiers.yml from the usual config paths, falling back
// to defaults when no file is present.
func NewTiersHolder(log *zap.Logger) (*TiersHolder, error) {
	v := viper.New()

	v.SetConfigName("tiers")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/sessionmeter/config")
	v.AddConfigPath("/etc/sessionmeter")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SESSIONMETER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &TiersHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.current.Store(DefaultTiersConfig())
		return holder, nil
	}

	cfg, err := unmarshalTiers(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.OnConfigChange(func(_ fsnotify.Event) {
		next, err := unmarshalTiers(v)
		if err != nil {
			log.Warn("tiers config reload failed", zap.Error(err))
			return
		}
		holder.current.Store(next)
		log.Info("tiers config reloaded", zap.Int("quotas", len(next.Quotas)))
	})
	v.WatchConfig()

	return holder, nil
}

// Current returns the active tier table.
func (h *TiersHolder) Current() TiersConfig {
	if v, ok := h.current.Load().(TiersConfig); ok {
		return v
	}
	return DefaultTiersConfig()
}

// QuotaFor resolves the quota for a tier name; unknown tiers resolve to
// the free quota.
func (h *TiersHolder) QuotaFor(tier string) TierQuota {
	tier = strings.ToLower(strings.TrimSpace(tier))
	cfg := h.Current()
	var free TierQuota
	for _, q := range cfg.Quotas {
		if q.Tier == tier {
			return q
		}
		if q.Tier == "free" {
			free = q
		}
	}
	return free
}

func unmarshalTiers(v *viper.Viper) (TiersConfig, error) {
	var cfg TiersConfig
	if err := v.UnmarshalKey("tiers", &cfg); err != nil {
		return TiersConfig{}, err
	}
	if len(cfg.Quotas) == 0 {
		return DefaultTiersConfig(), nil
	}
	for i := range cfg.Quotas {
		cfg.Quotas[i].Tier = strings.ToLower(strings.TrimSpace(cfg.Quotas[i].Tier))
	}
	return cfg, nil
}
