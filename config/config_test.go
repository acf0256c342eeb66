package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.Download.Workers)
	assert.Equal(t, 8, cfg.Extract.Workers)
	assert.Equal(t, 10, cfg.Download.RetrierAttempts)
	assert.Equal(t, time.Hour, cfg.Download.RetrierInterval.Std())
	assert.True(t, cfg.Extract.FilterDeprecated)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"apiKey": "secret",
		"dirs": {"info": "/var/onto/info", "data": "/var/onto/data"},
		"download": {"workers": 2, "retrierInterval": "90s"},
		"ontologies": ["go", " mesh "]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "/var/onto/info", cfg.Dirs.Info)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.Equal(t, 90*time.Second, cfg.Download.RetrierInterval.Std())
	// Untouched settings keep their defaults.
	assert.Equal(t, 10, cfg.Download.RetrierAttempts)
	assert.Equal(t, 6, cfg.Mappings.Workers)

	allowed := cfg.AllowList()
	require.Len(t, allowed, 2)
	assert.Contains(t, allowed, "GO")
	assert.Contains(t, allowed, "MESH")
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `{"downlaod": {"workers": 2}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downlaod")
}

func TestLoad_RejectsBadTypes(t *testing.T) {
	path := writeConfig(t, `{"download": {"workers": "six"}}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestValidate_Constraints(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"zero download workers", func(c *Config) { c.Download.Workers = 0 }},
		{"zero extract workers", func(c *Config) { c.Extract.Workers = 0 }},
		{"zero retrier attempts", func(c *Config) { c.Download.RetrierAttempts = 0 }},
		{"zero retrier interval", func(c *Config) { c.Download.RetrierInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDuration_JSONRoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1h30m"`), &d))
	assert.Equal(t, 90*time.Minute, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, d.Std())

	out, err := json.Marshal(Duration(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"2m0s"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}
