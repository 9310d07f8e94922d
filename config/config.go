package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Gateways   GatewaysConfig   `mapstructure:"gateways"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// StorageConfig selects the persistence backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// TracingConfig configures the OTLP exporter. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// BankAccountConfig is the platform account buyers transfer to.
type BankAccountConfig struct {
	BankCode      string `mapstructure:"bank_code"`
	AccountNumber string `mapstructure:"account_number"`
	AccountName   string `mapstructure:"account_name"`
}

type SettlementConfig struct {
	BankAccount     BankAccountConfig `mapstructure:"bank_account"`
	TransferPrefix  string            `mapstructure:"transfer_prefix"`
	MinorUnitScale  int32             `mapstructure:"minor_unit_scale"` // digits after the decimal point in display amounts
	Currency        string            `mapstructure:"currency"`
	IdempotencyTTL  time.Duration     `mapstructure:"idempotency_ttl"`
	RequeryInterval time.Duration     `mapstructure:"requery_interval"`
	AuditInterval   time.Duration     `mapstructure:"audit_interval"`
	AuditPageSize   int               `mapstructure:"audit_page_size"`
}

type WebhookConfig struct {
	MaxTimestampDrift time.Duration `mapstructure:"max_timestamp_drift"`
	NonceTTL          time.Duration `mapstructure:"nonce_ttl"`
}

// ProviderConfig describes one upstream payment provider.
type ProviderConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type GatewaysConfig struct {
	BankTransfer ProviderConfig `mapstructure:"bank_transfer"`
	GatewayA     ProviderConfig `mapstructure:"gateway_a"`
	GatewayB     ProviderConfig `mapstructure:"gateway_b"`
}

// Provider looks up a provider by its webhook path name.
func (g GatewaysConfig) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case "bank-transfer":
		return g.BankTransfer, true
	case "gateway-a":
		return g.GatewayA, true
	case "gateway-b":
		return g.GatewayB, true
	}
	return ProviderConfig{}, false
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is applied first when present.
// Environment variables override file values. Prefix: STL_.
// Nested keys use underscore: STL_DATABASE_HOST, STL_GATEWAYS_GATEWAY_A_API_KEY, etc.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "settlement")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "marketplace-identity")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "marketplace-settlement")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("settlement.bank_account.bank_code", "")
	v.SetDefault("settlement.bank_account.account_number", "")
	v.SetDefault("settlement.bank_account.account_name", "")
	v.SetDefault("settlement.transfer_prefix", "PAY")
	v.SetDefault("settlement.minor_unit_scale", 0)
	v.SetDefault("settlement.currency", "VND")
	v.SetDefault("settlement.idempotency_ttl", "24h")
	v.SetDefault("settlement.requery_interval", "30s")
	v.SetDefault("settlement.audit_interval", "10m")
	v.SetDefault("settlement.audit_page_size", 200)
	v.SetDefault("webhook.max_timestamp_drift", "5m")
	v.SetDefault("webhook.nonce_ttl", "10m")
	for _, p := range []string{"bank_transfer", "gateway_a", "gateway_b"} {
		v.SetDefault("gateways."+p+".base_url", "")
		v.SetDefault("gateways."+p+".api_key", "")
		v.SetDefault("gateways."+p+".webhook_secret", "")
		v.SetDefault("gateways."+p+".timeout", "10s")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("STL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Storage.Driver != "postgres" && cfg.Storage.Driver != "memory" {
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	return &cfg, nil
}
