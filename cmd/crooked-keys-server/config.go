package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/EternisAI/crooked-keys/internal/api/http"
	"github.com/EternisAI/crooked-keys/internal/db"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	KEYGEN_BACKEND_COMMAND = "command"
	KEYGEN_BACKEND_NATIVE  = "native"

	REGISTRY_BACKEND_FILE     = "file"
	REGISTRY_BACKEND_POSTGRES = "postgres"
)

type Config struct {
	Log       LogConfig
	Http      http.Config
	Wireguard WireguardConfig
	Keygen    KeygenConfig
	Registry  RegistryConfig
	DB        db.Config
	Ratelimit RatelimitConfig
}

type WireguardConfig struct {
	ServerIP            string `mapstructure:"server_ip" validate:"required,ip|hostname"`
	Port                int    `mapstructure:"port" validate:"min=1,max=65535"`
	Network             string `mapstructure:"network" validate:"required,cidr"`
	PoolOffset          int    `mapstructure:"pool_offset" validate:"min=1"`
	PoolSize            int    `mapstructure:"pool_size" validate:"min=1"`
	AllowedIPs          string `mapstructure:"allowed_ips"`
	DNS                 string `mapstructure:"dns"`
	Keepalive           int    `mapstructure:"keepalive" validate:"min=1,max=65535"`
	AccessNote          string `mapstructure:"access_note"`
	ServerPublicKeyPath string `mapstructure:"server_public_key_path"`
	ServerConfigPath    string `mapstructure:"server_config_path"`
}

type KeygenConfig struct {
	Backend string        `mapstructure:"backend" validate:"oneof=command native"`
	Binary  string        `mapstructure:"binary" validate:"required_if=Backend command"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type RegistryConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=file postgres"`
	Path    string `mapstructure:"path" validate:"required_if=Backend file"`
}

type RatelimitConfig struct {
	Api             LimitConfig   `mapstructure:"api"`
	Issue           LimitConfig   `mapstructure:"issue"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
}

type LimitConfig struct {
	Limit  int           `mapstructure:"limit" validate:"min=0"`
	Window time.Duration `mapstructure:"window" validate:"gt=0"`
}

// Endpoint is the host:port clients dial.
func (w WireguardConfig) Endpoint() string {
	return net.JoinHostPort(w.ServerIP, strconv.Itoa(w.Port))
}

// PeerAllowedIPs lists the routes pushed to clients; the VPN network itself
// is always included.
func (w WireguardConfig) PeerAllowedIPs() []string {
	routes := ParseCommaSeparated(w.AllowedIPs)
	for _, r := range routes {
		if r == w.Network {
			return routes
		}
	}
	return append(routes, w.Network)
}

var config Config

var validate = validator.New(validator.WithRequiredStructEnabled())

func ParseCommaSeparated(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", LOG_LEVEL_INFO)

	v.SetDefault("http.port", 3001)
	v.SetDefault("http.path_prefix", "/api/crooked-keys")
	v.SetDefault("http.metrics_enabled", true)
	v.SetDefault("http.trusted_proxies", []string{})

	v.SetDefault("wireguard.server_ip", "192.168.0.200")
	v.SetDefault("wireguard.port", 51820)
	v.SetDefault("wireguard.network", "10.8.0.0/24")
	v.SetDefault("wireguard.pool_offset", 10)
	v.SetDefault("wireguard.pool_size", 240)
	v.SetDefault("wireguard.allowed_ips", "192.168.0.0/24")
	v.SetDefault("wireguard.dns", "8.8.8.8, 8.8.4.4")
	v.SetDefault("wireguard.keepalive", 25)
	v.SetDefault("wireguard.access_note", "Frigate cameras and Home Assistant")
	v.SetDefault("wireguard.server_public_key_path", "/etc/wireguard/server_public.key")
	v.SetDefault("wireguard.server_config_path", "/etc/wireguard/wg0.conf")

	v.SetDefault("keygen.backend", KEYGEN_BACKEND_COMMAND)
	v.SetDefault("keygen.binary", "wg")
	v.SetDefault("keygen.timeout", "5s")

	v.SetDefault("registry.backend", REGISTRY_BACKEND_FILE)
	v.SetDefault("registry.path", "/opt/crooked-keys/data/clients.json")

	v.SetDefault("db.url", "")
	v.SetDefault("db.schema", "")

	v.SetDefault("ratelimit.api.limit", 10)
	v.SetDefault("ratelimit.api.window", "15m")
	v.SetDefault("ratelimit.issue.limit", 3)
	v.SetDefault("ratelimit.issue.window", "60m")
	v.SetDefault("ratelimit.cleanup_interval", "1m")
}

// loadConfig reads .env, application.yml and the environment into a Config.
// A missing application.yml is fine; defaults and env cover every key.
func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config

	v.SetConfigName("application")
	v.AddConfigPath(".")
	v.AddConfigPath("./cmd/crooked-keys-server")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Names used by the legacy deployment.
	_ = v.BindEnv("http.port", "HTTP_PORT", "PORT")
	_ = v.BindEnv("wireguard.server_ip", "WIREGUARD_SERVER_IP", "WG_SERVER_IP")
	_ = v.BindEnv("wireguard.port", "WIREGUARD_PORT", "WG_PORT")
	_ = v.BindEnv("wireguard.network", "WIREGUARD_NETWORK", "VPN_NETWORK")
	_ = v.BindEnv("db.url", "DB_URL", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Registry.Backend == REGISTRY_BACKEND_POSTGRES && cfg.DB.Url == "" {
		return fmt.Errorf("invalid config: db.url is required for the postgres registry backend")
	}
	for _, route := range ParseCommaSeparated(cfg.Wireguard.AllowedIPs) {
		if err := validate.Var(route, "cidr"); err != nil {
			return fmt.Errorf("invalid config: wireguard.allowed_ips entry %q is not a CIDR", route)
		}
	}
	return nil
}

func InitConfig() {
	_ = godotenv.Load()

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		panic(err)
	}
	config = cfg

	initLogger(config.Log.Level)

	// Pretty print config as JSON (only at DEBUG level)
	if strings.ToUpper(config.Log.Level) == LOG_LEVEL_DEBUG {
		redacted := config
		if redacted.DB.Url != "" {
			redacted.DB.Url = "[REDACTED]"
		}
		configJSON, err := json.MarshalIndent(redacted, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
