package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quicklearn/quicklearn/internal/queue"
	"github.com/quicklearn/quicklearn/internal/store"
	"github.com/quicklearn/quicklearn/internal/worker"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis     RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Nats      queue.NatsConfig `yaml:"nats" mapstructure:"nats"`
	Groq      GroqConfig       `yaml:"groq" mapstructure:"groq"`
	OpenAI    OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Router    RouterConfig     `yaml:"router" mapstructure:"router"`
	Worker    worker.Config    `yaml:"worker" mapstructure:"worker"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Log       LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RedisConfig configures the hot cache.
type RedisConfig struct {
	Addr            string `yaml:"addr" mapstructure:"addr"`
	Password        string `yaml:"password" mapstructure:"password"`
	DB              int    `yaml:"db" mapstructure:"db"`
	VerifiedTTLSecs int    `yaml:"verified_ttl_secs" mapstructure:"verified_ttl_secs"`
	DefaultTTLSecs  int    `yaml:"default_ttl_secs" mapstructure:"default_ttl_secs"`
}

// GroqConfig holds Groq API settings.
type GroqConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// RouterConfig tunes the fallback chain.
type RouterConfig struct {
	VerificationThreshold int `yaml:"verification_threshold" mapstructure:"verification_threshold"`
	QuarantineClearSecs   int `yaml:"quarantine_clear_secs" mapstructure:"quarantine_clear_secs"`
}

// QuarantineClearInterval returns the sweep interval as a duration.
func (r RouterConfig) QuarantineClearInterval() time.Duration {
	secs := r.QuarantineClearSecs
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port              int `yaml:"port" mapstructure:"port"`
	RateLimitPerMin   int `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"`
	RequestTimeoutSec int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
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
	v.SetEnvPrefix("QUICKLEARN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_min", 60)
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.verified_ttl_secs", 15552000)
	v.SetDefault("redis.default_ttl_secs", 604800)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "QUICKLEARN")
	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("router.verification_threshold", 5)
	v.SetDefault("router.quarantine_clear_secs", 300)
	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.rate_per_minute", 10)

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

// Validate checks the configuration for a given run mode. Modes map to
// the top-level commands: serve, worker, migrate.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireDB := func() {
		if c.Store.Driver != "sqlite" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "serve":
		requireDB()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Groq.Key == "" && c.OpenAI.Key == "" && c.Anthropic.Key == "" {
			problems = append(problems, "at least one provider key is required (groq.key, openai.key, anthropic.key)")
		}
	case "worker":
		requireDB()
		if c.Groq.Key == "" && c.OpenAI.Key == "" && c.Anthropic.Key == "" {
			problems = append(problems, "at least one provider key is required (groq.key, openai.key, anthropic.key)")
		}
		if c.Worker.Concurrency < 0 || c.Worker.Concurrency > 50 {
			problems = append(problems, "worker.concurrency must be between 0 and 50")
		}
	case "migrate":
		requireDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Router.VerificationThreshold < 0 || c.Router.VerificationThreshold > 10 {
		problems = append(problems, "router.verification_threshold must be between 0 and 10")
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
