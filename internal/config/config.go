// Package config defines the typed application configuration and its loader.
package config

import (
	"log/slog"
	"time"
)

// Config aggregates the whole application configuration.
type Config struct {
	HTTP         HTTPConfig         `mapstructure:"http"`
	Log          LogConfig          `mapstructure:"log"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Inbounds     []InboundConfig    `mapstructure:"inbounds"`
	Hosts        []HostConfig       `mapstructure:"hosts"`
	Users        []UserConfig       `mapstructure:"users"`
}

// HTTPConfig defines the HTTP delivery surface.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig defines logging behaviour.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
}

// AuthConfig defines the subscription-token signing parameters.
type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	Leeway     time.Duration `mapstructure:"leeway"`
}

// MetricsConfig defines Prometheus exposure.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
}

// SubscriptionConfig defines generation-wide settings.
type SubscriptionConfig struct {
	// ProfileTitle is advertised to clients via response headers.
	ProfileTitle string `mapstructure:"profile_title"`

	// UpdateIntervalHours is advertised as profile-update-interval.
	UpdateIntervalHours int `mapstructure:"update_interval_hours"`

	// ClashTemplate / SingboxTemplate point at optional scaffold files;
	// empty means the built-in defaults.
	ClashTemplate   string `mapstructure:"clash_template"`
	SingboxTemplate string `mapstructure:"singbox_template"`

	// ServerIP pins the SERVER_IP variable; empty means discover the
	// public IP once at startup.
	ServerIP string `mapstructure:"server_ip"`

	// PublicIPEndpoints override the discovery services.
	PublicIPEndpoints []string `mapstructure:"public_ip_endpoints"`
}

// InboundConfig describes one server-side listener.
type InboundConfig struct {
	Tag           string   `mapstructure:"tag"`
	Protocol      string   `mapstructure:"protocol"`
	Port          int      `mapstructure:"port"`
	Network       string   `mapstructure:"network"`
	TLS           string   `mapstructure:"tls"`
	SNI           []string `mapstructure:"sni"`
	Host          []string `mapstructure:"host"`
	Path          string   `mapstructure:"path"`
	HeaderType    string   `mapstructure:"header_type"`
	ALPN          string   `mapstructure:"alpn"`
	Fingerprint   string   `mapstructure:"fingerprint"`
	PublicKey     string   `mapstructure:"public_key"`
	ShortID       string   `mapstructure:"short_id"`
	SpiderX       string   `mapstructure:"spider_x"`
	AllowInsecure bool     `mapstructure:"allow_insecure"`
}

// HostConfig is one per-tag host override. TLS is a string so that an
// absent key is distinguishable from an explicit "none".
type HostConfig struct {
	Tag         string   `mapstructure:"tag"`
	Remark      string   `mapstructure:"remark"`
	Address     string   `mapstructure:"address"`
	Port        int      `mapstructure:"port"`
	SNI         []string `mapstructure:"sni"`
	Host        []string `mapstructure:"host"`
	TLS         *string  `mapstructure:"tls"`
	ALPN        string   `mapstructure:"alpn"`
	Fingerprint string   `mapstructure:"fingerprint"`
}

// UserConfig seeds one account in the in-memory registry.
type UserConfig struct {
	Username    string              `mapstructure:"username"`
	Status      string              `mapstructure:"status"`
	Expire      int64               `mapstructure:"expire"`
	DataLimit   int64               `mapstructure:"data_limit"`
	UsedTraffic int64               `mapstructure:"used_traffic"`
	Proxies     ProxiesConfig       `mapstructure:"proxies"`
	Inbounds    map[string][]string `mapstructure:"inbounds"`
}

// ProxiesConfig is the per-protocol credential bag of one user; nil
// entries mean the protocol is not provisioned.
type ProxiesConfig struct {
	VMess       *VMessConfig       `mapstructure:"vmess"`
	VLESS       *VLESSConfig       `mapstructure:"vless"`
	Trojan      *TrojanConfig      `mapstructure:"trojan"`
	Shadowsocks *ShadowsocksConfig `mapstructure:"shadowsocks"`
}

type VMessConfig struct {
	ID string `mapstructure:"id"`
}

type VLESSConfig struct {
	ID   string `mapstructure:"id"`
	Flow string `mapstructure:"flow"`
}

type TrojanConfig struct {
	Password string `mapstructure:"password"`
	Flow     string `mapstructure:"flow"`
}

type ShadowsocksConfig struct {
	Password string `mapstructure:"password"`
	Method   string `mapstructure:"method"`
}

// SlogLevel maps the configured level onto slog.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
