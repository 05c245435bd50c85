package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EngineConfig holds the business thresholds. These are policy, not code:
// tenants tune them without a release.
type EngineConfig struct {
	AutoSyncConfidence float64 `yaml:"auto_sync_confidence" mapstructure:"auto_sync_confidence"`
	WeightTolerance    float64 `yaml:"weight_tolerance" mapstructure:"weight_tolerance"`
	RulesFile          string  `yaml:"rules_file" mapstructure:"rules_file"`
}

// AnthropicConfig holds Anthropic API settings for AI classification.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// Enabled reports whether AI classification is configured.
func (c AnthropicConfig) Enabled() bool {
	return c.Key != ""
}

// BatchConfig configures batch evaluation.
type BatchConfig struct {
	MaxConcurrentShipments int `yaml:"max_concurrent_shipments" mapstructure:"max_concurrent_shipments"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("EXPORTGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "exportguard.db")
	v.SetDefault("engine.auto_sync_confidence", 0.70)
	v.SetDefault("engine.weight_tolerance", 0.10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.min_confidence", 0.5)
	v.SetDefault("batch.max_concurrent_shipments", 5)
	v.SetDefault("server.port", 8080)
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

	return &cfg, nil
}

// Validate checks the fields the given run mode depends on. Modes map to
// commands: "evaluate" (and batch/report) needs a database, "serve"
// additionally needs a port, "classify" needs Anthropic credentials.
func (c *Config) Validate(mode string) error {
	var missing []string

	checkCommon := func() {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			missing = append(missing, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
		if c.Engine.AutoSyncConfidence < 0 || c.Engine.AutoSyncConfidence > 1 {
			missing = append(missing, "engine.auto_sync_confidence must be in [0, 1]")
		}
		if c.Engine.WeightTolerance < 0 || c.Engine.WeightTolerance > 1 {
			missing = append(missing, "engine.weight_tolerance must be in [0, 1]")
		}
	}

	switch mode {
	case "evaluate":
		checkCommon()
		if c.Batch.MaxConcurrentShipments < 1 || c.Batch.MaxConcurrentShipments > 50 {
			missing = append(missing, "batch.max_concurrent_shipments must be between 1 and 50")
		}
	case "serve":
		checkCommon()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "classify":
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
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
