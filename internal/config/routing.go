package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RoutingRule overrides how notifications for one event kind are delivered.
type RoutingRule struct {
	Event     string `mapstructure:"event"`
	Recipient string `mapstructure:"recipient"`
	Muted     bool   `mapstructure:"muted"`
}

type RoutingConfig struct {
	Rules []RoutingRule `mapstructure:"rules"`
}

// Lookup returns the rule for the given event kind, if any.
func (c RoutingConfig) Lookup(event string) (RoutingRule, bool) {
	event = strings.TrimSpace(event)
	for _, rule := range c.Rules {
		if strings.EqualFold(rule.Event, event) {
			return rule, true
		}
	}
	return RoutingRule{}, false
}

// RoutingHolder serves the latest valid routing config; file edits are picked
// up without a restart.
type RoutingHolder struct {
	current atomic.Value // holds RoutingConfig
}

func NewStaticRoutingHolder(cfg RoutingConfig) *RoutingHolder {
	holder := &RoutingHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRoutingHolder(appCfg Config, log *zap.Logger) (*RoutingHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.routing")

	v := viper.New()
	path := strings.TrimSpace(appCfg.RoutingConfigPath)
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			log.Warn("routing config not readable, using defaults", zap.String("path", path), zap.Error(err))
			return NewStaticRoutingHolder(RoutingConfig{}), nil
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("routing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/orderrelay")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return NewStaticRoutingHolder(RoutingConfig{}), nil
		}
		return nil, fmt.Errorf("read routing config: %w", err)
	}

	cfg, err := decodeRouting(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRoutingHolder(cfg)
	log.Info("routing config loaded",
		zap.String("file", v.ConfigFileUsed()),
		zap.Int("rules", len(cfg.Rules)),
	)

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRouting(v)
		if err != nil {
			log.Warn("routing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("routing config reloaded", zap.String("file", e.Name), zap.Int("rules", len(updated.Rules)))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *RoutingHolder) Get() RoutingConfig {
	if h == nil {
		return RoutingConfig{}
	}
	cfg, _ := h.current.Load().(RoutingConfig)
	return cfg
}

func decodeRouting(v *viper.Viper) (RoutingConfig, error) {
	var cfg RoutingConfig
	if err := v.UnmarshalKey("routing", &cfg); err != nil {
		return RoutingConfig{}, fmt.Errorf("decode routing config: %w", err)
	}
	if err := validateRouting(cfg); err != nil {
		return RoutingConfig{}, err
	}
	return cfg, nil
}

func validateRouting(cfg RoutingConfig) error {
	seen := make(map[string]struct{}, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		event := strings.ToLower(strings.TrimSpace(rule.Event))
		if event == "" {
			return fmt.Errorf("routing.rules[%d].event cannot be empty", i)
		}
		if _, ok := seen[event]; ok {
			return fmt.Errorf("routing.rules[%d]: duplicate event %q", i, rule.Event)
		}
		seen[event] = struct{}{}
	}
	return nil
}
