package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := GetEnv
	GetEnv = func(key string) string { return env[key] }
	t.Cleanup(func() { GetEnv = prev })
}

func TestNewConfigIsValid(t *testing.T) {
	withEnv(t, map[string]string{"HOME": "/home/tester"})

	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/home/tester/.ragdesk/state.json", cfg.StatePath)
	assert.Equal(t, "auto", cfg.DefaultMode)
	assert.Zero(t, cfg.RequestTimeout)
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://file.example.com/api/v1
notification_ttl: 10s
upload_workers: 5
`), 0600))

	withEnv(t, map[string]string{
		"HOME":            dir,
		"RAGDESK_API_URL": "https://env.example.com/api/v1",
		"RAGDESK_VERBOSE": "true",
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com/api/v1", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.NotificationTTL)
	assert.Equal(t, 5, cfg.UploadWorkers)
	assert.True(t, cfg.Verbose)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	withEnv(t, map[string]string{"HOME": t.TempDir()})

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, NewConfig().APIURL, cfg.APIURL)
}

func TestLoadRejectsBadVerbose(t *testing.T) {
	withEnv(t, map[string]string{"RAGDESK_VERBOSE": "sometimes"})

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.APIURL = "" }},
		{"relative url", func(c *Config) { c.APIURL = "/api/v1" }},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }},
		{"zero ttl", func(c *Config) { c.NotificationTTL = 0 }},
		{"page size too big", func(c *Config) { c.HistoryPageSize = 500 }},
		{"no workers", func(c *Config) { c.UploadWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
