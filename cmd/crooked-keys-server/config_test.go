package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, uint(3001), cfg.Http.Port)
	assert.Equal(t, "/api/crooked-keys", cfg.Http.PathPrefix)
	assert.Equal(t, "192.168.0.200:51820", cfg.Wireguard.Endpoint())
	assert.Equal(t, []string{"192.168.0.0/24", "10.8.0.0/24"}, cfg.Wireguard.PeerAllowedIPs())
	assert.Equal(t, 10, cfg.Wireguard.PoolOffset)
	assert.Equal(t, 240, cfg.Wireguard.PoolSize)
	assert.Equal(t, 25, cfg.Wireguard.Keepalive)
	assert.Equal(t, KEYGEN_BACKEND_COMMAND, cfg.Keygen.Backend)
	assert.Equal(t, 5*time.Second, cfg.Keygen.Timeout)
	assert.Equal(t, REGISTRY_BACKEND_FILE, cfg.Registry.Backend)
	assert.Equal(t, LimitConfig{Limit: 10, Window: 15 * time.Minute}, cfg.Ratelimit.Api)
	assert.Equal(t, LimitConfig{Limit: 3, Window: time.Hour}, cfg.Ratelimit.Issue)
}

func TestLoadConfig_LegacyEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("WG_SERVER_IP", "vpn.example.com")
	t.Setenv("WG_PORT", "51821")
	t.Setenv("VPN_NETWORK", "10.9.0.0/24")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, uint(8080), cfg.Http.Port)
	assert.Equal(t, "vpn.example.com:51821", cfg.Wireguard.Endpoint())
	assert.Equal(t, []string{"192.168.0.0/24", "10.9.0.0/24"}, cfg.Wireguard.PeerAllowedIPs())
}

func TestLoadConfig_CanonicalEnvWins(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("RATELIMIT_ISSUE_LIMIT", "5")
	t.Setenv("KEYGEN_BACKEND", "native")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, uint(9090), cfg.Http.Port)
	assert.Equal(t, 5, cfg.Ratelimit.Issue.Limit)
	assert.Equal(t, KEYGEN_BACKEND_NATIVE, cfg.Keygen.Backend)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"keygen backend":     {"KEYGEN_BACKEND": "magic"},
		"registry backend":   {"REGISTRY_BACKEND": "s3"},
		"postgres needs url": {"REGISTRY_BACKEND": "postgres"},
		"network":            {"VPN_NETWORK": "10.8.0.0"},
		"allowed ips":        {"WIREGUARD_ALLOWED_IPS": "192.168.0.0/24, bogus"},
		"path prefix":        {"HTTP_PATH_PREFIX": "api"},
		"window":             {"RATELIMIT_API_WINDOW": "0s"},
		"log level":          {"LOG_LEVEL": "verbose"},
		"keepalive":          {"WIREGUARD_KEEPALIVE": "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(viper.New())
			assert.Error(t, err)
		})
	}
}

func TestPeerAllowedIPs_NoDuplicateNetwork(t *testing.T) {
	w := WireguardConfig{Network: "10.8.0.0/24", AllowedIPs: "192.168.0.0/24, 10.8.0.0/24"}
	assert.Equal(t, []string{"192.168.0.0/24", "10.8.0.0/24"}, w.PeerAllowedIPs())
}

func TestEndpoint_IPv6(t *testing.T) {
	w := WireguardConfig{ServerIP: "fd00::1", Port: 51820}
	assert.Equal(t, "[fd00::1]:51820", w.Endpoint())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}
