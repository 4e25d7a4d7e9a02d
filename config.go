package main

import (
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config carries everything the process reads at startup. Claim rate limits
// are also applied live on config file changes; everything else requires a
// restart.
type Config struct {
	Addr            string  `mapstructure:"addr"`
	DBDSN           string  `mapstructure:"db_dsn"`
	JWTSecret       string  `mapstructure:"jwt_secret"`
	LogLevel        string  `mapstructure:"log_level"`
	ClaimRPS        float64 `mapstructure:"claim_rps"`
	ClaimBurst      int     `mapstructure:"claim_burst"`
	CacheTTLMinutes int     `mapstructure:"cache_ttl_minutes"`
	ReceiptTTLHours int     `mapstructure:"receipt_ttl_hours"`
}

// loadConfig reads config.yaml when present and lets BS_-prefixed environment
// variables override it (BS_DB_DSN, BS_JWT_SECRET, ...). The config file is
// watched so rate-limit tuning does not need a restart.
func loadConfig() (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8081")
	v.SetDefault("log_level", "info")
	v.SetDefault("claim_rps", 5.0)
	v.SetDefault("claim_burst", 10)
	v.SetDefault("cache_ttl_minutes", 10)
	v.SetDefault("receipt_ttl_hours", 72)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	} else {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			slog.Info("config reloaded", "file", e.Name)
			claimLimiters.SetLimit(v.GetFloat64("claim_rps"), v.GetInt("claim_burst"))
		})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
