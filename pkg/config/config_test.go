package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MEMBERSHIP_CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, GatewayModeIsolated, cfg.GatewayMode)
	assert.Equal(t, 7*24*time.Hour, cfg.InvitationTTL)
	assert.Equal(t, "default", cfg.Source("gateway_mode"))
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEMBERSHIP_CONFIG_PATH", dir)
	writeConfigFile(t, dir, `
gateway_mode: serialized
graph_timeout: 2s
invitation_ttl: 48h
port: 9090
`)
	t.Setenv("MEMBERSHIP_PORT", "9191")
	t.Setenv("MEMBERSHIP_MUTATION_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, GatewayModeSerialized, cfg.GatewayMode)
	assert.Equal(t, "file", cfg.Source("gateway_mode"))
	assert.Equal(t, 2*time.Second, cfg.GraphTimeout)
	assert.Equal(t, 48*time.Hour, cfg.InvitationTTL)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "environment", cfg.Source("port"))
	assert.Equal(t, 750*time.Millisecond, cfg.MutationTimeout)
	assert.Equal(t, "environment", cfg.Source("mutation_timeout"))
	assert.Equal(t, "0.0.0.0:9191", cfg.ListenAddress())
}

func TestLoadRejectsMalformedEnvironment(t *testing.T) {
	t.Setenv("MEMBERSHIP_CONFIG_PATH", t.TempDir())
	t.Setenv("MEMBERSHIP_GRAPH_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *MembershipConfig)
		wantErr string
	}{
		{"unknown gateway mode", func(c *MembershipConfig) { c.GatewayMode = "shared" }, "gateway_mode"},
		{"unknown log level", func(c *MembershipConfig) { c.LogLevel = "loud" }, "log_level"},
		{"unknown log format", func(c *MembershipConfig) { c.LogFormat = "xml" }, "log_format"},
		{"zero mutation timeout", func(c *MembershipConfig) { c.MutationTimeout = 0 }, "mutation_timeout"},
		{"negative wait timeout", func(c *MembershipConfig) { c.GatewayWaitTimeout = -time.Second }, "gateway_wait_timeout"},
		{"empty graph endpoint", func(c *MembershipConfig) { c.GraphEndpoint = "" }, "graph_endpoint"},
		{"port out of range", func(c *MembershipConfig) { c.Port = 70000 }, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFormatJSON(t *testing.T) {
	t.Setenv("MEMBERSHIP_CONFIG_PATH", t.TempDir())
	t.Setenv("MEMBERSHIP_GATEWAY_MODE", "serialized")

	cfg, err := Load()
	require.NoError(t, err)

	out, err := cfg.FormatJSON()
	require.NoError(t, err)

	var parsed struct {
		ConfigFile string      `json:"config_file"`
		Attributes []Attribute `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, cfg.ConfigFilePath(), parsed.ConfigFile)

	found := false
	for _, a := range parsed.Attributes {
		if a.Name == "gateway_mode" {
			found = true
			assert.Equal(t, "serialized", a.Value)
			assert.Equal(t, "environment", a.Source)
		}
	}
	assert.True(t, found)
	assert.Contains(t, cfg.FormatText(), "gateway_mode")
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEMBERSHIP_CONFIG_PATH", dir)
	path := writeConfigFile(t, dir, "log_level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *MembershipConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *MembershipConfig) { changes <- c }, nil)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeConfigFile(t, dir, "log_level: debug\n")

	// A single write may surface as several events; wait for the final content.
	deadline := time.After(5 * time.Second)
	for observed := false; !observed; {
		select {
		case cfg := <-changes:
			observed = cfg.LogLevel == "debug"
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
	assert.Equal(t, "debug", Get().LogLevel)

	cancel()
	assert.NoError(t, <-done)
}
