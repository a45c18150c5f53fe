package http

type Config struct {
	Port           uint     `mapstructure:"port" validate:"required,max=65535"`
	PathPrefix     string   `mapstructure:"path_prefix" validate:"required,startswith=/"`
	MetricsEnabled bool     `mapstructure:"metrics_enabled"`
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"dive,cidr|ip"`
}
