// Package config loads application configuration from file and environment.
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
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Tavily      TavilyConfig      `yaml:"tavily" mapstructure:"tavily"`
	ScrapeGraph ScrapeGraphConfig `yaml:"scrapegraph" mapstructure:"scrapegraph"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Breaker     BreakerConfig     `yaml:"breaker" mapstructure:"breaker"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts" mapstructure:"artifacts"`
	Company     CompanyConfig     `yaml:"company" mapstructure:"company"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the job audit database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	SearchDepth string `yaml:"search_depth" mapstructure:"search_depth"`
}

// ScrapeGraphConfig holds ScrapeGraphAI API settings.
type ScrapeGraphConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PipelineConfig configures stage behavior and fan-out limits.
type PipelineConfig struct {
	MaxKeywords       int      `yaml:"max_keywords" mapstructure:"max_keywords"`
	ScoreThreshold    float64  `yaml:"score_threshold" mapstructure:"score_threshold"`
	Language          string   `yaml:"language" mapstructure:"language"`
	Websites          []string `yaml:"websites" mapstructure:"websites"`
	SitesFile         string   `yaml:"sites_file" mapstructure:"sites_file"`
	SearchConcurrency int      `yaml:"search_concurrency" mapstructure:"search_concurrency"`
	ScrapeConcurrency int      `yaml:"scrape_concurrency" mapstructure:"scrape_concurrency"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RetryConfig configures the retry envelope around capability calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// BreakerConfig configures per-service circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ArtifactsConfig configures where job artifacts are written.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CompanyConfig holds the buyer context injected into report prompts.
type CompanyConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Context string `yaml:"context" mapstructure:"context"`
}

// ServerConfig configures the HTTP job-submission server.
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
	v.SetEnvPrefix("PROCURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "procure.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("artifacts.dir", "output")
	v.SetDefault("pipeline.max_keywords", 10)
	v.SetDefault("pipeline.score_threshold", 0.10)
	v.SetDefault("pipeline.language", "English")
	v.SetDefault("pipeline.search_concurrency", 5)
	v.SetDefault("pipeline.scrape_concurrency", 3)
	v.SetDefault("pipeline.requests_per_second", 2.0)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_secs", 30)
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.search_depth", "advanced")
	v.SetDefault("scrapegraph.base_url", "https://api.scrapegraphai.com/v1")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("company.name", "SIA Group")
	v.SetDefault("company.context", defaultCompanyContext)

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

const defaultCompanyContext = "SIA Group is a technology procurement company that " +
	"sources electronics and equipment for corporate clients, comparing offers " +
	"across e-commerce platforms to recommend the best value purchases."

// Validate checks that required credentials are present for a pipeline run.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (PROCURE_ANTHROPIC_KEY)")
	}
	if c.Tavily.Key == "" {
		return eris.New("config: tavily.key is required (PROCURE_TAVILY_KEY)")
	}
	if c.ScrapeGraph.Key == "" {
		return eris.New("config: scrapegraph.key is required (PROCURE_SCRAPEGRAPH_KEY)")
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
