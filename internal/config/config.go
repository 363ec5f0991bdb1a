package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	News     NewsConfig     `mapstructure:"news"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PublicURL      string        `mapstructure:"public_url"`
}

// LLMConfig selects and configures the chat model used for classification,
// language detection and summarization.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

type NewsConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	PageSize    int           `mapstructure:"page_size"`
	MaxArticles int           `mapstructure:"max_articles"`
}

// RedisConfig is optional. An empty Addr keeps A2A tasks in process memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TaskTTL  time.Duration `mapstructure:"task_ttl"`
}

// DatabaseConfig is optional. An empty URL disables the run audit log.
// Runs older than Retention are pruned every PruneInterval; a zero Retention
// keeps them forever.
type DatabaseConfig struct {
	URL           string        `mapstructure:"url"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-5",
}

// envBindings maps config keys to the environment variables that may set them,
// in order of precedence.
var envBindings = map[string][]string{
	"server.port":                {"PORT"},
	"server.read_timeout":        {"READ_TIMEOUT"},
	"server.write_timeout":       {"WRITE_TIMEOUT"},
	"server.idle_timeout":        {"IDLE_TIMEOUT"},
	"server.request_timeout":     {"REQUEST_TIMEOUT"},
	"server.public_url":          {"PUBLIC_URL"},
	"llm.provider":               {"LLM_PROVIDER"},
	"llm.api_key":                {"LLM_API_KEY"},
	"llm.provider_key.openai":    {"OPENAI_API_KEY"},
	"llm.provider_key.anthropic": {"ANTHROPIC_API_KEY"},
	"llm.model":                  {"LLM_MODEL"},
	"llm.base_url":               {"LLM_BASE_URL"},
	"llm.timeout":                {"LLM_TIMEOUT"},
	"llm.max_tokens":             {"LLM_MAX_TOKENS"},
	"llm.temperature":            {"LLM_TEMPERATURE"},
	"news.api_key":               {"NEWS_API_KEY"},
	"news.base_url":              {"NEWS_API_URL"},
	"news.timeout":               {"NEWS_API_TIMEOUT"},
	"news.retries":               {"NEWS_API_RETRIES"},
	"news.retry_delay":           {"NEWS_API_RETRY_DELAY"},
	"news.page_size":             {"NEWS_PAGE_SIZE"},
	"news.max_articles":          {"NEWS_MAX_ARTICLES"},
	"redis.addr":                 {"REDIS_ADDR"},
	"redis.password":             {"REDIS_PASSWORD"},
	"redis.db":                   {"REDIS_DB"},
	"redis.task_ttl":             {"TASK_TTL"},
	"database.url":               {"DATABASE_URL"},
	"database.retention":         {"RUN_RETENTION"},
	"database.prune_interval":    {"RUN_PRUNE_INTERVAL"},
	"log.level":                  {"LOG_LEVEL"},
	"log.pretty":                 {"LOG_PRETTY"},
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v.GetString(providerKeyName(cfg.LLM.Provider))
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModels[cfg.LLM.Provider]
	}
	cfg.News.BaseURL = strings.TrimRight(cfg.News.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first missing or out-of-range setting.
func (c *Config) Validate() error {
	if _, ok := defaultModels[c.LLM.Provider]; !ok {
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.News.APIKey == "" {
		return fmt.Errorf("NEWS_API_KEY is required")
	}
	if c.News.BaseURL == "" {
		return fmt.Errorf("NEWS_API_URL is required")
	}
	if c.News.PageSize <= 0 || c.News.PageSize > 100 {
		return fmt.Errorf("NEWS_PAGE_SIZE must be between 1 and 100, got %d", c.News.PageSize)
	}
	if c.News.Retries < 0 {
		return fmt.Errorf("NEWS_API_RETRIES must not be negative, got %d", c.News.Retries)
	}
	if c.Database.Retention < 0 {
		return fmt.Errorf("RUN_RETENTION must not be negative, got %v", c.Database.Retention)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %v", c.LLM.Timeout)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 75*time.Second)
	v.SetDefault("server.public_url", "")

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.3)

	v.SetDefault("news.api_key", "")
	v.SetDefault("news.base_url", "https://newsapi.org/v2")
	v.SetDefault("news.timeout", 10*time.Second)
	v.SetDefault("news.retries", 2)
	v.SetDefault("news.retry_delay", 200*time.Millisecond)
	v.SetDefault("news.page_size", 50)
	v.SetDefault("news.max_articles", 10)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.task_ttl", 24*time.Hour)

	v.SetDefault("database.url", "")
	v.SetDefault("database.retention", 30*24*time.Hour)
	v.SetDefault("database.prune_interval", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// providerKeyName returns the provider-specific key read when LLM_API_KEY is unset.
func providerKeyName(provider string) string {
	return "llm.provider_key." + provider
}
