package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "Bearer", cfg.API.AuthScheme)
	assert.Equal(t, 1, cfg.Cart.MinQty)
	assert.Equal(t, 10, cfg.Cart.MaxQty)
	assert.Equal(t, 3*time.Second, cfg.Checkout.SuccessDelay)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, "jwt_token", cfg.Session.Key)
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://shop.example.com/api"
  timeout: 5s
  auth_scheme: ""
cart:
  max_qty: 20
checkout:
  success_delay: 1500ms
session:
  backend: redis
redis:
  addr: "localhost:6379"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://shop.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "", cfg.API.AuthScheme)
	assert.Equal(t, 20, cfg.Cart.MaxQty)
	assert.Equal(t, 1500*time.Millisecond, cfg.Checkout.SuccessDelay)
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STOREFRONT_API_BASE_URL", "http://env.example.com")
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.com", cfg.API.BaseURL)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load(writeConfig(t, "{}\n"))
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"min above max", func(c *Config) { c.Cart.MinQty = 5; c.Cart.MaxQty = 2 }},
		{"zero min", func(c *Config) { c.Cart.MinQty = 0 }},
		{"unknown session backend", func(c *Config) { c.Session.Backend = "cookie" }},
		{"unknown cache", func(c *Config) { c.Catalog.Cache = "disk" }},
		{"redis without addr", func(c *Config) { c.Catalog.Cache = "redis"; c.Redis.Addr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
