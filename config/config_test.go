package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { _ = load(filepath.Join(dir, "none.json"), filepath.Join(dir, "none.env")) })
	jsonPath := filepath.Join(dir, "app.json")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"app_port": 9000, "rate_limit": 50, "debug": true, "app_name": "FromJSON"}`), 0o644))
	require.NoError(t, os.WriteFile(envPath, []byte("APP_PORT=9100\nSHUTDOWN_TIMEOUT=3s\n"), 0o644))
	t.Setenv("APP_PORT", "9200")
	t.Setenv("DB_SLOW_QUERY", "50ms")

	require.NoError(t, load(jsonPath, envPath))

	assert.Equal(t, "9200", AppPort(), "environment beats .env and json")
	assert.Equal(t, "FromJSON", AppName())
	assert.Equal(t, 50, RateLimit())
	assert.True(t, Bool("DEBUG", false))
	assert.Equal(t, 3*time.Second, ShutdownTimeout())
	assert.Equal(t, 50*time.Millisecond, Duration("DB_SLOW_QUERY", time.Second))
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	assert.ErrorContains(t, load(path, ""), "app.json")
}

func TestSetSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	Set("LOW_STOCK_THRESHOLD", "9")
	t.Cleanup(func() {
		mu.Lock()
		delete(overrides, "LOW_STOCK_THRESHOLD")
		delete(values, "LOW_STOCK_THRESHOLD")
		mu.Unlock()
	})
	require.NoError(t, load(filepath.Join(dir, "a.json"), filepath.Join(dir, ".env")))
	assert.Equal(t, 9, LowStockThreshold())
}

func TestDriverNormalisation(t *testing.T) {
	for raw, want := range map[string]string{"MongoDB": "mongo", "postgres": "postgres", "oracle": "mongo"} {
		Set("DB_DRIVER", raw)
		assert.Equal(t, want, DatabaseDriver(), raw)
	}
	Set("DB_DRIVER", "sqlite")
	assert.True(t, IsSQL())
	assert.Equal(t, defaultSQLiteDSN, DatabaseDSN())
}

func TestDurationFallbacks(t *testing.T) {
	Set("CACHE_TTL", "90")
	assert.Equal(t, 90*time.Second, CacheTTL())
	Set("CACHE_TTL", "soon")
	assert.Equal(t, time.Minute, CacheTTL())
}

func TestStockPolicyDefaultsToNone(t *testing.T) {
	t.Cleanup(func() { Set("ORDER_STOCK_POLICY", "") })

	assert.Equal(t, StockPolicyNone, OrderStockPolicy())
	Set("ORDER_STOCK_POLICY", "Compensate")
	assert.Equal(t, StockPolicyCompensate, OrderStockPolicy())
	Set("ORDER_STOCK_POLICY", "rollback")
	assert.Equal(t, StockPolicyNone, OrderStockPolicy())
}
