package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Creators   CreatorsConfig   `yaml:"creators" mapstructure:"creators"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Community  CommunityConfig  `yaml:"community" mapstructure:"community"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LLMConfig selects the language model provider and model tiers.
type LLMConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"`
	FastModel    string  `yaml:"fast_model" mapstructure:"fast_model"`
	QualityModel string  `yaml:"quality_model" mapstructure:"quality_model"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Breaker      Breaker `yaml:"breaker" mapstructure:"breaker"`
}

// Breaker configures a circuit breaker around an upstream service.
type Breaker struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// defaultModels lists the {fast, quality} model per provider.
var defaultModels = map[string][2]string{
	"openai":    {"gpt-4o-mini", "gpt-4o"},
	"anthropic": {"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"},
	"gemini":    {"gemini-2.5-flash", "gemini-2.5-pro"},
}

// Models returns the fast and quality model IDs, falling back to the
// provider defaults when unset.
func (c LLMConfig) Models() (fast, quality string) {
	defaults := defaultModels[c.Provider]
	fast, quality = c.FastModel, c.QualityModel
	if fast == "" {
		fast = defaults[0]
	}
	if quality == "" {
		quality = defaults[1]
	}
	return fast, quality
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

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// CreatorsConfig holds Amazon Creators API credentials and endpoints.
type CreatorsConfig struct {
	CredentialID     string  `yaml:"credential_id" mapstructure:"credential_id"`
	CredentialSecret string  `yaml:"credential_secret" mapstructure:"credential_secret"`
	PartnerTag       string  `yaml:"partner_tag" mapstructure:"partner_tag"`
	APIVersion       string  `yaml:"api_version" mapstructure:"api_version"`
	TokenURL         string  `yaml:"token_url" mapstructure:"token_url"`
	SearchURL        string  `yaml:"search_url" mapstructure:"search_url"`
	Marketplace      string  `yaml:"marketplace" mapstructure:"marketplace"`
	MinIntervalMs    int     `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	Breaker          Breaker `yaml:"breaker" mapstructure:"breaker"`
}

// CacheConfig configures the assistant response cache.
type CacheConfig struct {
	Backend    string      `yaml:"backend" mapstructure:"backend"`
	TTLSecs    int         `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries int         `yaml:"max_entries" mapstructure:"max_entries"`
	Redis      RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// AuthConfig configures verification of tokens issued by the hosted auth provider.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Audience  string `yaml:"audience" mapstructure:"audience"`
}

// CommunityConfig holds referral and payout business rules.
type CommunityConfig struct {
	UserCommissionShare float64 `yaml:"user_commission_share" mapstructure:"user_commission_share"`
	MinPayout           float64 `yaml:"min_payout" mapstructure:"min_payout"`
}

// PricingConfig holds per-model token pricing (USD per million tokens).
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing.
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	PublicURL          string   `yaml:"public_url" mapstructure:"public_url"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	AIRequestsPerMin   int      `yaml:"ai_requests_per_min" mapstructure:"ai_requests_per_min"`
	AdminKey           string   `yaml:"admin_key" mapstructure:"admin_key"`
}

// MonitoringConfig configures the background alert checker. Alerts are
// only sent when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	CostThresholdUSD       float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	PayoutBacklogThreshold int     `yaml:"payout_backlog_threshold" mapstructure:"payout_backlog_threshold"`
	PayoutMaxAgeHours      int     `yaml:"payout_max_age_hours" mapstructure:"payout_max_age_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINDIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.fast_model", "")
	v.SetDefault("llm.quality_model", "")
	v.SetDefault("llm.timeout_secs", 90)
	v.SetDefault("llm.breaker.failure_threshold", 5)
	v.SetDefault("llm.breaker.reset_timeout_secs", 30)
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("creators.credential_id", "")
	v.SetDefault("creators.credential_secret", "")
	v.SetDefault("creators.partner_tag", "findius-21")
	v.SetDefault("creators.api_version", "2.2")
	v.SetDefault("creators.token_url", "https://creatorsapi.auth.eu-south-2.amazoncognito.com/oauth2/token")
	v.SetDefault("creators.search_url", "https://creatorsapi.amazon/catalog/v1/searchItems")
	v.SetDefault("creators.marketplace", "www.amazon.de")
	v.SetDefault("creators.min_interval_ms", 1000)
	v.SetDefault("creators.breaker.failure_threshold", 5)
	v.SetDefault("creators.breaker.reset_timeout_secs", 60)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("cache.max_entries", 5000)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "findius:")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("community.user_commission_share", 0.5)
	v.SetDefault("community.min_payout", 25.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "https://findius.io")
	v.SetDefault("server.allowed_origins", []string{"https://findius.io", "http://localhost:3000"})
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("server.ai_requests_per_min", 20)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.cost_threshold_usd", 50.0)
	v.SetDefault("monitoring.payout_backlog_threshold", 10)
	v.SetDefault("monitoring.payout_max_age_hours", 72)
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

// Validate checks the keys required by the given command mode.
// Modes: "serve", "generate", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
	}

	requireLLM := func() {
		switch c.LLM.Provider {
		case "openai":
			if c.OpenAI.Key == "" {
				errs = append(errs, "openai.key is required")
			}
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required")
			}
		default:
			errs = append(errs, "llm.provider must be openai, anthropic or gemini")
		}
	}

	switch mode {
	case "serve":
		requireStore()
		requireLLM()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, "auth.jwt_secret is required")
		}
		if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
			errs = append(errs, "cache.backend must be memory or redis")
		}
	case "generate":
		requireStore()
		requireLLM()
	case "store":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Community.UserCommissionShare < 0 || c.Community.UserCommissionShare > 1 {
		errs = append(errs, "community.user_commission_share must be between 0 and 1")
	}
	if c.Community.MinPayout < 0 {
		errs = append(errs, "community.min_payout must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
