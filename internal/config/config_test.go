package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, 50, cfg.Ledger.DefaultPageSize)
	assert.Equal(t, 500, cfg.Ledger.MaxPageSize)
	assert.Equal(t, 30*time.Second, cfg.Finalization.MaxBackoff)
	assert.Same(t, cfg, GetConfig())
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"server": {"port": "9100"},
		"database": {"driver": "sqlite", "path": "/tmp/x.db"},
		"finalization": {"workers": 2, "base_backoff": "250ms"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("DOCUFEN_SERVER_PORT", "9200")
	t.Setenv("DOCUFEN_LEDGER_MAX_PAGE_SIZE", "200")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9200", cfg.Server.Port, "env must win over file")
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, 2, cfg.Finalization.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Finalization.BaseBackoff)
	assert.Equal(t, 200, cfg.Ledger.MaxPageSize)
	assert.Equal(t, 5, cfg.Finalization.MaxAttempts, "untouched keys keep defaults")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"unknown driver", func(c *Configuration) { c.Database.Driver = "mysql" }},
		{"redis without addr", func(c *Configuration) { c.Lock.Backend = "redis"; c.Lock.RedisAddr = "" }},
		{"unknown lock backend", func(c *Configuration) { c.Lock.Backend = "etcd" }},
		{"no workers", func(c *Configuration) { c.Finalization.Workers = 0 }},
		{"no attempts", func(c *Configuration) { c.Finalization.MaxAttempts = 0 }},
		{"page sizes", func(c *Configuration) { c.Ledger.MaxPageSize = 10 }},
		{"empty secret", func(c *Configuration) { c.Security.JWTSecret = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
	assert.NoError(t, Validate(defaultConfig()))
}
