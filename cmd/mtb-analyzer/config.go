// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/mtb-analyzer/internal/classify"
	"github.com/pdiddy/mtb-analyzer/internal/logging"
	"github.com/pdiddy/mtb-analyzer/internal/secrets"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const (
	defaultDatabase        = "data/mtb.db"
	defaultCacheDir        = "data/cache"
	defaultFetchTimeout    = 60 * time.Second
	defaultDelay           = 2 * time.Second
	defaultAnalysisTimeout = 90 * time.Second
	defaultLookback        = 30 * 24 * time.Hour
	defaultPort            = 5000
	defaultShutdown        = 10 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.database", defaultDatabase)
	v.SetDefault("storage.cache_dir", defaultCacheDir)

	v.SetDefault("archive.timeout", defaultFetchTimeout)
	v.SetDefault("archive.delay", defaultDelay)
	v.SetDefault("archive.max_pages", 10)
	v.SetDefault("archive.max_retries", 5)

	v.SetDefault("analysis.model", classify.DefaultModel)
	v.SetDefault("analysis.threshold", 60)
	v.SetDefault("analysis.timeout", defaultAnalysisTimeout)
	v.SetDefault("analysis.requests_per_minute", 50)
	v.SetDefault("analysis.workers", 1)
	v.SetDefault("analysis.max_retries", 2)

	v.SetDefault("conversion.backend", string(types.BackendPdftotext))

	v.SetDefault("sync.initial_lookback", defaultLookback)

	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.shutdown_timeout", defaultShutdown)

	v.SetDefault("log.level", "info")
}

// loadConfig assembles the component configuration from viper. The API key
// falls back to .secrets/anthropic-api-key.
func loadConfig(v *viper.Viper) types.Config {
	return types.Config{
		Storage: types.StorageConfig{
			Database: v.GetString("storage.database"),
			CacheDir: v.GetString("storage.cache_dir"),
		},
		Archive: types.ArchiveConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   v.GetDuration("archive.timeout"),
				UserAgent: v.GetString("archive.user_agent"),
			},
			BaseURL:    v.GetString("archive.base_url"),
			ArchiveURL: v.GetString("archive.archive_url"),
			Delay:      v.GetDuration("archive.delay"),
			MaxPages:   v.GetInt("archive.max_pages"),
			MaxRetries: v.GetInt("archive.max_retries"),
		},
		Analysis: types.AnalysisConfig{
			AIConfig: types.AIConfig{
				Model:      v.GetString("analysis.model"),
				APIKey:     loadedSecrets.Get(secrets.AnthropicAPIKey, v.GetString("analysis.api_key")),
				BaseURL:    v.GetString("analysis.base_url"),
				MaxRetries: v.GetInt("analysis.max_retries"),
			},
			DeepModel:         v.GetString("analysis.deep_model"),
			RoleDescription:   v.GetString("analysis.role_description"),
			Threshold:         v.GetFloat64("analysis.threshold"),
			Timeout:           v.GetDuration("analysis.timeout"),
			RequestsPerMinute: v.GetInt("analysis.requests_per_minute"),
			Workers:           v.GetInt("analysis.workers"),
		},
		Conversion: types.ConversionConfig{
			Backend: types.ConversionBackend(v.GetString("conversion.backend")),
		},
		Sync: types.SyncConfig{
			InitialLookback: v.GetDuration("sync.initial_lookback"),
			Cron:            v.GetString("schedule.cron"),
		},
		Server: types.ServerConfig{
			Port:            v.GetInt("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
	}
}

func loadLogConfig(v *viper.Viper) logging.Config {
	return logging.Config{
		Level:       v.GetString("log.level"),
		Development: v.GetBool("log.development"),
	}
}

// seedSettings are the stored defaults taken from configuration.
func seedSettings(cfg types.Config) types.Settings {
	return types.Settings{
		RoleDescription: cfg.Analysis.RoleDescription,
		Threshold:       cfg.Analysis.Threshold,
		Model:           cfg.Analysis.Model,
		DeepModel:       cfg.Analysis.DeepModel,
	}
}
