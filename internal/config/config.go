package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Archive    ArchiveConfig    `yaml:"archive" mapstructure:"archive"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver          string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns        int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns        int32  `yaml:"min_conns" mapstructure:"min_conns"`
	ConnectAttempts int    `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

// ArchiveConfig configures the archive sync.
type ArchiveConfig struct {
	SourceURL           string `yaml:"source_url" mapstructure:"source_url"`
	ValidationBatchSize int    `yaml:"validation_batch_size" mapstructure:"validation_batch_size"`
	CommitBatchSize     int    `yaml:"commit_batch_size" mapstructure:"commit_batch_size"`
	FetchTimeoutSecs    int    `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	FetchRetries        int    `yaml:"fetch_retries" mapstructure:"fetch_retries"`
	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
	TempDir             string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// FetchTimeout returns the snapshot download timeout.
func (a ArchiveConfig) FetchTimeout() time.Duration {
	return time.Duration(a.FetchTimeoutSecs) * time.Second
}

// CacheConfig configures the read-path cache.
type CacheConfig struct {
	Driver            string `yaml:"driver" mapstructure:"driver"`
	CharactersTTLSecs int    `yaml:"characters_ttl_secs" mapstructure:"characters_ttl_secs"`
	MaxEntries        int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// CharactersTTL returns how long the character list stays cached.
func (c CacheConfig) CharactersTTL() time.Duration {
	return time.Duration(c.CharactersTTLSecs) * time.Second
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	Debug       bool     `yaml:"debug" mapstructure:"debug"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MetricsConfig configures the Prometheus push-gateway used by CLI runs.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// MonitoringConfig configures the sync health checker run by the server.
type MonitoringConfig struct {
	Enabled                      bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL                   string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs            int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours          int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	MaxSyncAgeHours              int     `yaml:"max_sync_age_hours" mapstructure:"max_sync_age_hours"`
	ValidationErrorRateThreshold float64 `yaml:"validation_error_rate_threshold" mapstructure:"validation_error_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The deployment sets the feed location without the prefix.
	if err := v.BindEnv("archive.source_url", "WA_ARCHIVE_SOURCE_URL", "ARCHIVE_JSON_URL"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("archive.validation_batch_size", 5000)
	v.SetDefault("archive.commit_batch_size", 1000)
	v.SetDefault("archive.fetch_timeout_secs", 120)
	v.SetDefault("archive.fetch_retries", 1)
	v.SetDefault("archive.user_agent", "wa-frontend/1.0")
	v.SetDefault("cache.driver", "") // resolved from store.driver after unmarshal
	v.SetDefault("cache.characters_ttl_secs", 3600)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("metrics.job", "wa_frontend_archive_sync")
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.max_sync_age_hours", 48)
	v.SetDefault("monitoring.validation_error_rate_threshold", 0.05)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// The cache lives next to the records unless configured otherwise, so
	// invalidation by a CLI run reaches a separately running server.
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = cfg.Store.Driver
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "sync",
// "serve", "cache" (clear-cache) or "store" (commands that only touch the
// database).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	case "sqlite":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required (sqlite file path)")
		}
	default:
		problems = append(problems, "store.driver must be postgres or sqlite (got \""+c.Store.Driver+"\")")
	}

	switch c.Cache.Driver {
	case "memory":
		if mode == "sync" || mode == "cache" {
			problems = append(problems, "cache.driver memory is private to this process and cannot invalidate the server's cache (use cache.driver "+c.Store.Driver+")")
		}
	case "postgres", "sqlite":
		if c.Store.Driver != c.Cache.Driver {
			problems = append(problems, "cache.driver "+c.Cache.Driver+" requires store.driver "+c.Cache.Driver)
		}
	default:
		problems = append(problems, "cache.driver must be memory, postgres or sqlite (got \""+c.Cache.Driver+"\")")
	}

	switch mode {
	case "sync":
		if c.Archive.ValidationBatchSize <= 0 {
			problems = append(problems, "archive.validation_batch_size must be > 0")
		}
		if c.Archive.CommitBatchSize <= 0 {
			problems = append(problems, "archive.commit_batch_size must be > 0")
		}
		if c.Archive.FetchTimeoutSecs <= 0 {
			problems = append(problems, "archive.fetch_timeout_secs must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Monitoring.Enabled && c.Monitoring.LookbackWindowHours <= 0 {
			problems = append(problems, "monitoring.lookback_window_hours must be > 0")
		}
	case "cache", "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
