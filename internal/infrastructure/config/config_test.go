package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "storefront-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)

	assert.Equal(t, 200, cfg.Import.BatchSize)
	assert.Equal(t, []string{"USD", "EUR", "GBP", "INR"}, cfg.Import.Currencies)
	assert.Equal(t, time.Hour, cfg.Fx.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.Fx.FetchTimeout)
	assert.Equal(t, int64(20<<20), cfg.Import.ImageMaxBytes)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STOREFRONT_IMPORT_BATCH_SIZE", "50")
	t.Setenv("STOREFRONT_APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Import.BatchSize)
	assert.Equal(t, "production", cfg.App.Env)
}
