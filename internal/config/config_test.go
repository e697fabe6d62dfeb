package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml or .env is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://findius.io", cfg.Server.PublicURL)
	assert.Equal(t, 20, cfg.Server.AIRequestsPerMin)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.Breaker.FailureThreshold)
	assert.Equal(t, "findius-21", cfg.Creators.PartnerTag)
	assert.Equal(t, "2.2", cfg.Creators.APIVersion)
	assert.Equal(t, "www.amazon.de", cfg.Creators.Marketplace)
	assert.Equal(t, 1000, cfg.Creators.MinIntervalMs)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 300, cfg.Cache.TTLSecs)
	assert.Equal(t, "findius:", cfg.Cache.Redis.Prefix)
	assert.Equal(t, "authenticated", cfg.Auth.Audience)
	assert.InDelta(t, 0.5, cfg.Community.UserCommissionShare, 0.001)
	assert.InDelta(t, 25.0, cfg.Community.MinPayout, 0.001)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 72, cfg.Monitoring.PayoutMaxAgeHours)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
llm:
  provider: gemini
cache:
  backend: redis
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	// Defaults still apply for unset values
	assert.Equal(t, 300, cfg.Cache.TTLSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FINDIUS_STORE_DRIVER", "postgres")
	t.Setenv("FINDIUS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FINDIUS_OPENAI_KEY=sk-from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("FINDIUS_OPENAI_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-dotenv", cfg.OpenAI.Key)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FINDIUS_SERVER_PORT", "3000")
	t.Setenv("FINDIUS_COMMUNITY_MIN_PAYOUT", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 50.0, cfg.Community.MinPayout, 0.001)
}

func TestLLMConfig_Models(t *testing.T) {
	fast, quality := LLMConfig{Provider: "openai"}.Models()
	assert.Equal(t, "gpt-4o-mini", fast)
	assert.Equal(t, "gpt-4o", quality)

	fast, quality = LLMConfig{Provider: "anthropic", QualityModel: "claude-custom"}.Models()
	assert.Equal(t, "claude-haiku-4-5-20251001", fast)
	assert.Equal(t, "claude-custom", quality)

	fast, _ = LLMConfig{Provider: "gemini"}.Models()
	assert.Equal(t, "gemini-2.5-flash", fast)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/findius"
	cfg.LLM.Provider = "openai"
	cfg.OpenAI.Key = "sk-test"
	cfg.Auth.JWTSecret = "secret"
	cfg.Cache.Backend = "memory"
	cfg.Community.UserCommissionShare = 0.5
	cfg.Community.MinPayout = 25
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateServe_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.OpenAI.Key = ""
	cfg.Auth.JWTSecret = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "openai.key is required")
	assert.Contains(t, err.Error(), "auth.jwt_secret is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_UnknownCacheBackend(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.Backend = "memcached"

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestValidate_ProviderKeys(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Provider = "anthropic"
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant"
	assert.NoError(t, cfg.Validate("generate"))

	cfg.LLM.Provider = "gemini"
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "gemini.key is required")

	cfg.LLM.Provider = "mistral"
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestValidateStore_SQLiteNeedsNoURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = ""

	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateCommunityBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Community.UserCommissionShare = 1.5
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "user_commission_share")

	cfg.Community.UserCommissionShare = 0.5
	cfg.Community.MinPayout = -1
	err = cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_payout")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
