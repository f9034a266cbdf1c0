package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names to config keys bound by LoadConfig.
var flagKeys = map[string]string{
	"host":       "rules_api.host",
	"port":       "rules_api.port",
	"workers":    "rules_api.workers",
	"data-dir":   "rules_api.data_dir",
	"metrics":    "rules_api.metrics_addr",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags named in flagKeys that were set are bound.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("rules_api.host", d.RulesAPI.Host)
	v.SetDefault("rules_api.port", d.RulesAPI.Port)
	v.SetDefault("rules_api.max_connections", d.RulesAPI.MaxConnections)
	v.SetDefault("rules_api.request_timeout", d.RulesAPI.RequestTimeout.String())
	v.SetDefault("rules_api.max_batch_size", d.RulesAPI.MaxBatchSize)
	v.SetDefault("rules_api.data_dir", d.RulesAPI.DataDir)
	v.SetDefault("rules_api.workers", d.RulesAPI.Workers)
	v.SetDefault("rules_api.rule_cache_ttl", d.RulesAPI.RuleCacheTTL.String())
	v.SetDefault("rules_api.rate_limit", d.RulesAPI.RateLimit)
	v.SetDefault("rules_api.rate_burst", d.RulesAPI.RateBurst)
	v.SetDefault("rules_api.metrics_addr", d.RulesAPI.MetricsAddr)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Bind environment variables with LK_ prefix
	v.SetEnvPrefix("LK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		RulesAPI: RulesAPIConfig{
			Host:           v.GetString("rules_api.host"),
			Port:           v.GetInt("rules_api.port"),
			MaxConnections: v.GetInt("rules_api.max_connections"),
			RequestTimeout: v.GetDuration("rules_api.request_timeout"),
			MaxBatchSize:   v.GetInt("rules_api.max_batch_size"),
			DataDir:        v.GetString("rules_api.data_dir"),
			Workers:        v.GetInt("rules_api.workers"),
			RuleCacheTTL:   v.GetDuration("rules_api.rule_cache_ttl"),
			RateLimit:      v.GetFloat64("rules_api.rate_limit"),
			RateBurst:      v.GetInt("rules_api.rate_burst"),
			MetricsAddr:    v.GetString("rules_api.metrics_addr"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive sizes, timeouts and limits.
func validateConfig(cfg *Config) error {
	api := cfg.RulesAPI
	if api.Port <= 0 || api.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", api.Port)
	}
	if api.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", api.MaxConnections)
	}
	if api.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", api.RequestTimeout)
	}
	if api.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", api.MaxBatchSize)
	}
	if api.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", api.Workers)
	}
	if api.RuleCacheTTL < 0 {
		return fmt.Errorf("rule_cache_ttl must not be negative, got %v", api.RuleCacheTTL)
	}
	if api.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", api.RateLimit)
	}
	if api.RateLimit > 0 && api.RateBurst <= 0 {
		return fmt.Errorf("rate_burst must be positive when rate_limit is set, got %d", api.RateBurst)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// InConfig only inspects the file, so LK_HMAC_SECRET in the environment passes.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("rules_api.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use LK_HMAC_SECRET environment variable)")
	}
	return nil
}
