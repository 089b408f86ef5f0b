// Package config loads screener settings from defaults, an optional YAML file
// and SCREENER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SCREENER_SERVER_PORT.
const EnvPrefix = "SCREENER"

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"`
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Data    DataConfig    `mapstructure:"data"    yaml:"data"`
	View    ViewConfig    `mapstructure:"view"    yaml:"view"`
	Chart   ChartConfig   `mapstructure:"chart"   yaml:"chart"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"            yaml:"host"`
	Port           int           `mapstructure:"port"            yaml:"port"`
	StaticDir      string        `mapstructure:"static_dir"      yaml:"static_dir"`
	CORSOrigins    []string      `mapstructure:"cors_origins"    yaml:"cors_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GatewayConfig selects how upstream data is reached. Mode "upstream" talks
// to Yahoo and NSE directly; "proxy" goes through another instance's
// /api/yahoo at ProxyURL.
type GatewayConfig struct {
	Mode          string        `mapstructure:"mode"            yaml:"mode"`
	ProxyURL      string        `mapstructure:"proxy_url"       yaml:"proxy_url"`
	EquityListURL string        `mapstructure:"equity_list_url" yaml:"equity_list_url"`
	ChartHosts    []string      `mapstructure:"chart_hosts"     yaml:"chart_hosts"`
	Timeout       time.Duration `mapstructure:"timeout"         yaml:"timeout"`
	ListTimeout   time.Duration `mapstructure:"list_timeout"    yaml:"list_timeout"`
	UserAgent     string        `mapstructure:"user_agent"      yaml:"user_agent"`
	QuoteFallback bool          `mapstructure:"quote_fallback"  yaml:"quote_fallback"`
}

type DataConfig struct {
	FallbackCSV string `mapstructure:"fallback_csv" yaml:"fallback_csv"`
	RefreshCron string `mapstructure:"refresh_cron" yaml:"refresh_cron"` // empty disables
}

type ViewConfig struct {
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

type ChartConfig struct {
	Width int `mapstructure:"width" yaml:"width"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

const (
	ModeUpstream = "upstream"
	ModeProxy    = "proxy"
)

var ErrProxyURL = errors.New("config: gateway.proxy_url is required in proxy mode")

// Load reads configuration. With an empty path the file is searched for in
//  1. ./config/screener.yaml
//  2. ~/.nse-screener/screener.yaml
//
// and may be absent. A .env file in the working directory is applied to the
// environment first.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("screener")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(filepath.Join(homeDir(), ".nse-screener"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Gateway.Mode {
	case ModeUpstream:
	case ModeProxy:
		if c.Gateway.ProxyURL == "" {
			return ErrProxyURL
		}
	default:
		return fmt.Errorf("config: unknown gateway.mode %q", c.Gateway.Mode)
	}
	if c.View.PageSize <= 0 {
		return fmt.Errorf("config: view.page_size must be positive, got %d", c.View.PageSize)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "./static")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout", 60*time.Second)

	v.SetDefault("gateway.mode", ModeUpstream)
	v.SetDefault("gateway.proxy_url", "")
	v.SetDefault("gateway.equity_list_url", "https://archives.nseindia.com/content/equities/EQUITY_L.csv")
	v.SetDefault("gateway.chart_hosts", []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"})
	v.SetDefault("gateway.timeout", 15*time.Second)
	v.SetDefault("gateway.list_timeout", 20*time.Second)
	v.SetDefault("gateway.user_agent", "")
	v.SetDefault("gateway.quote_fallback", true)

	v.SetDefault("data.fallback_csv", "data/nse_equity.csv")
	v.SetDefault("data.refresh_cron", "")

	v.SetDefault("view.page_size", 100)
	v.SetDefault("chart.width", 800)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
