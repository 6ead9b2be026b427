package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Matching   MatchingConfig   `yaml:"matching" mapstructure:"matching"`
	Similarity SimilarityConfig `yaml:"similarity" mapstructure:"similarity"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
}

// StoreConfig configures the database backend. For the sqlite driver
// DatabaseURL is a file path.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig configures batch rescans.
type BatchConfig struct {
	MaxConcurrentInvestors int `yaml:"max_concurrent_investors" mapstructure:"max_concurrent_investors"`
}

// MatchingConfig configures cross-entity match scoring and persistence.
type MatchingConfig struct {
	MinScore        int          `yaml:"min_score" mapstructure:"min_score"`
	Weights         MatchWeights `yaml:"weights" mapstructure:"weights"`
	WriteRatePerSec float64      `yaml:"write_rate_per_sec" mapstructure:"write_rate_per_sec"`
	RetryAttempts   int          `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// MatchWeights holds the six dimension weights.
type MatchWeights struct {
	Industry  float64 `yaml:"industry" mapstructure:"industry"`
	Geography float64 `yaml:"geography" mapstructure:"geography"`
	Financial float64 `yaml:"financial" mapstructure:"financial"`
	Profile   float64 `yaml:"profile" mapstructure:"profile"`
	Timeline  float64 `yaml:"timeline" mapstructure:"timeline"`
	Ownership float64 `yaml:"ownership" mapstructure:"ownership"`
}

// SimilarityConfig configures industry suggestions.
type SimilarityConfig struct {
	MinScore   int `yaml:"min_score" mapstructure:"min_score"`
	MaxResults int `yaml:"max_results" mapstructure:"max_results"`
}

// CatalogConfig points at an optional YAML file layered over the built-in
// option catalogs.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// Load reads configuration from ./config.yaml (when present) and the
// environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path falls back to
// ./config.yaml; a named file that does not exist is an error.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("DEALMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent_investors", 4)
	v.SetDefault("matching.min_score", 30)
	v.SetDefault("matching.weights.industry", 0.25)
	v.SetDefault("matching.weights.geography", 0.20)
	v.SetDefault("matching.weights.financial", 0.20)
	v.SetDefault("matching.weights.profile", 0.15)
	v.SetDefault("matching.weights.timeline", 0.10)
	v.SetDefault("matching.weights.ownership", 0.10)
	v.SetDefault("matching.write_rate_per_sec", 200)
	v.SetDefault("matching.retry_attempts", 3)
	v.SetDefault("similarity.min_score", 40)
	v.SetDefault("similarity.max_results", 3)

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

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "local"
// (no database), "migrate", "match", and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "local":
	case "migrate", "match":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if n := c.Batch.MaxConcurrentInvestors; n < 1 || n > 50 {
		errs = append(errs, fmt.Sprintf("batch.max_concurrent_investors must be between 1 and 50, got %d", n))
	}
	if s := c.Matching.MinScore; s < 0 || s > 100 {
		errs = append(errs, "matching.min_score must be between 0 and 100")
	}
	if c.Matching.WriteRatePerSec < 0 {
		errs = append(errs, "matching.write_rate_per_sec must be >= 0")
	}
	if c.Matching.RetryAttempts < 0 {
		errs = append(errs, "matching.retry_attempts must be >= 0")
	}
	w := c.Matching.Weights
	if w.Industry < 0 || w.Geography < 0 || w.Financial < 0 || w.Profile < 0 || w.Timeline < 0 || w.Ownership < 0 {
		errs = append(errs, "matching.weights values must be >= 0")
	}
	if s := c.Similarity.MinScore; s < 0 || s > 100 {
		errs = append(errs, "similarity.min_score must be between 0 and 100")
	}
	if c.Similarity.MaxResults < 1 {
		errs = append(errs, "similarity.max_results must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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
