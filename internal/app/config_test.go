package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.AnalyticsCacheTTL)
	assert.Equal(t, "5 0 * * *", cfg.OverdueSweepCron)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]Config{
		"unknown driver": {StoreDriver: "sqlite", RateLimitPerMinute: 1},
		"missing dsn":    {StoreDriver: StoreDriverPostgres, RateLimitPerMinute: 1},
		"no rate limit":  {StoreDriver: StoreDriverMemory},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
	ok := Config{StoreDriver: StoreDriverMemory, RateLimitPerMinute: 60}
	assert.NoError(t, ok.Validate())
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv("INVOICE_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv("INVOICE_TEST_MODE", "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
