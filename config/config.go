package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Media    MediaConfig    `mapstructure:"media"`
	Credits  CreditsConfig  `mapstructure:"credits"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Health   HealthConfig   `mapstructure:"health"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, postgres, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AuthConfig selects how bearer tokens are verified. When JWKSURL is set the
// identity provider's RS256 keys are used, otherwise tokens are HS256 signed
// with JWTSecret.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWKSURL   string `mapstructure:"jwks_url"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type BackendConfig struct {
	BaseURL               string        `mapstructure:"base_url"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout"`
}

type PaymentConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
	Currency       string `mapstructure:"currency"`
	UnitAmount     int64  `mapstructure:"unit_amount"` // minor units per credit
	DefaultCredits int    `mapstructure:"default_credits"`
	SuccessURL     string `mapstructure:"success_url"`
	CancelURL      string `mapstructure:"cancel_url"`
}

type MediaConfig struct {
	APIKey          string `mapstructure:"api_key"`
	Endpoint        string `mapstructure:"endpoint"`
	ResultCount     int    `mapstructure:"result_count"`
	CacheTTLDays    int    `mapstructure:"cache_ttl_days"`
	RedisTTLMinutes int    `mapstructure:"redis_ttl_minutes"`
}

type CreditsConfig struct {
	Initial    int `mapstructure:"initial"`
	SearchCost int `mapstructure:"search_cost"`
}

type LimitsConfig struct {
	MediaPerDay        int     `mapstructure:"media_per_day"`
	GeneralPerDay      int     `mapstructure:"general_per_day"`
	RequestsPerSecond  float64 `mapstructure:"requests_per_second"`
	Burst              int     `mapstructure:"burst"`
	UsageRetentionDays int     `mapstructure:"usage_retention_days"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type", "X-Request-ID"})

	v.SetDefault("backend.response_header_timeout", 30*time.Second)

	v.SetDefault("payment.currency", "usd")
	v.SetDefault("payment.unit_amount", 50)
	v.SetDefault("payment.default_credits", 10)

	v.SetDefault("media.endpoint", "https://google.serper.dev/images")
	v.SetDefault("media.result_count", 3)
	v.SetDefault("media.cache_ttl_days", 7)
	v.SetDefault("media.redis_ttl_minutes", 60)

	v.SetDefault("credits.initial", 5)
	v.SetDefault("credits.search_cost", 1)

	v.SetDefault("limits.media_per_day", 50)
	v.SetDefault("limits.general_per_day", 200)
	v.SetDefault("limits.requests_per_second", 2)
	v.SetDefault("limits.burst", 5)
	v.SetDefault("limits.usage_retention_days", 30)

	v.SetDefault("health.timeout", 3*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func Load(configPath string) (*Config, error) {
	// config.local.yaml holds real secrets and is never committed
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
