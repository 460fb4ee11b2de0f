// Package config loads guardianship-cli settings from config.yaml and the
// environment, and initializes the global zap logger.
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
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Box      BoxConfig      `yaml:"box" mapstructure:"box"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RegistryConfig configures the court portal the case lookups run against.
type RegistryConfig struct {
	SearchURL         string  `yaml:"search_url" mapstructure:"search_url"`
	DetailURLTemplate string  `yaml:"detail_url_template" mapstructure:"detail_url_template"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// BatchConfig configures batch runs.
type BatchConfig struct {
	ProgressEvery int  `yaml:"progress_every" mapstructure:"progress_every"`
	Persist       bool `yaml:"persist" mapstructure:"persist"`
}

// StoreConfig configures the result database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BoxConfig holds Box API credentials.
type BoxConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	AccessToken  string `yaml:"access_token" mapstructure:"access_token"`
	EnterpriseID string `yaml:"enterprise_id" mapstructure:"enterprise_id"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	AuthURL      string `yaml:"auth_url" mapstructure:"auth_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and GUARDIANSHIP_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GUARDIANSHIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy credential names used by the original scripts' .env files.
	for key, legacy := range map[string]string{
		"box.client_id":     "BOX_CLIENT_ID",
		"box.client_secret": "BOX_CLIENT_SECRET",
		"box.access_token":  "BOX_DEV_TOKEN",
	} {
		envKey := "GUARDIANSHIP_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("registry.search_url", "https://public.courts.in.gov/grp/")
	v.SetDefault("registry.detail_url_template", "https://public.courts.in.gov/grp/Search/Detail/%s")
	v.SetDefault("registry.user_agent", "guardianship-cli/1.0")
	v.SetDefault("registry.timeout_secs", 30)
	v.SetDefault("registry.max_attempts", 3)
	v.SetDefault("registry.initial_backoff_ms", 1000)
	v.SetDefault("registry.max_backoff_ms", 20000)
	v.SetDefault("registry.requests_per_second", 2.0)
	v.SetDefault("registry.breaker_threshold", 5)
	v.SetDefault("registry.breaker_reset_secs", 60)
	v.SetDefault("batch.progress_every", 100)
	v.SetDefault("batch.persist", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "guardianship.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("box.base_url", "https://api.box.com")
	v.SetDefault("box.auth_url", "https://api.box.com/oauth2/token")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command needs. mode is one of "lookup",
// "batch", "box" or "store".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "lookup":
		problems = append(problems, c.validateRegistry()...)
	case "batch":
		problems = append(problems, c.validateRegistry()...)
		if c.Batch.ProgressEvery <= 0 {
			problems = append(problems, "batch.progress_every must be positive")
		}
		if c.Batch.Persist {
			problems = append(problems, c.validateStore()...)
		}
	case "box":
		if c.Box.AccessToken == "" && (c.Box.ClientID == "" || c.Box.ClientSecret == "" || c.Box.EnterpriseID == "") {
			problems = append(problems, "box.access_token or box.client_id, box.client_secret and box.enterprise_id are required")
		}
	case "store":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateRegistry() []string {
	var problems []string
	if c.Registry.SearchURL == "" {
		problems = append(problems, "registry.search_url is required")
	}
	if !strings.Contains(c.Registry.DetailURLTemplate, "%s") {
		problems = append(problems, "registry.detail_url_template must contain %s")
	}
	if c.Registry.TimeoutSecs <= 0 {
		problems = append(problems, "registry.timeout_secs must be positive")
	}
	return problems
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns {
		problems = append(problems, "store.min_conns must not exceed store.max_conns")
	}
	return problems
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
