package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFromPathPartialOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
agent:
  history_window: 10
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	// untouched keys keep their defaults
	assert.Equal(t, "gemini-2.0-flash", cfg.Model.Name)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Backend.Seed)
}

func TestLoadFromPathDurations(t *testing.T) {
	path := writeConfig(t, `
server:
  read_timeout: 30s
  write_timeout: 2m
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
}

func TestLoadFromPathInvalidValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 0
agent:
  fault_probability: 1.5
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "agent.fault_probability")
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8000}
	assert.Equal(t, "127.0.0.1:8000", s.Addr())

	s = ServerConfig{Port: 8000}
	assert.Equal(t, ":8000", s.Addr())
}

func TestHasUsableAPIKey(t *testing.T) {
	cases := []struct {
		key  string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"dummy", false},
		{"DUMMY-KEY", false},
		{"your_api_key_here", false},
		{"changeme", false},
		{"${GEMINI_API_KEY}", false},
		{"AIzaSyFakeButPlausible123", true},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.Model.APIKey = tc.key
		assert.Equal(t, tc.want, cfg.HasUsableAPIKey(), "key %q", tc.key)
	}
}
