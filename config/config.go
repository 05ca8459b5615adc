package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

// ProviderConfig describes the external wallet provider and the two custodial accounts.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// BalanceInMsat converts provider balances from millisatoshis to satoshis.
	BalanceInMsat bool          `mapstructure:"balance_in_msat"`
	InvoiceExpiry time.Duration `mapstructure:"invoice_expiry"`
	Payer         AccountConfig `mapstructure:"payer"`
	Payee         AccountConfig `mapstructure:"payee"`
}

// AccountConfig is one wallet's credential pair: a restricted read/invoice key
// and a privileged admin key allowed to pay.
type AccountConfig struct {
	WalletID string `mapstructure:"wallet_id"`
	ReadKey  string `mapstructure:"read_key"`
	AdminKey string `mapstructure:"admin_key"`
}

type SettlementConfig struct {
	HourlyRate int64         `mapstructure:"hourly_rate"` // sats per hour
	Interval   time.Duration `mapstructure:"interval"`
	// AmountPerInterval overrides the amount derived from HourlyRate when > 0.
	AmountPerInterval int64         `mapstructure:"amount_per_interval"`
	MinInterval       time.Duration `mapstructure:"min_interval"`
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
	RecentRecords     int           `mapstructure:"recent_records"`
	// GuardTTL bounds the cross-process settlement guard; 0 disables it.
	GuardTTL time.Duration `mapstructure:"guard_ttl"`
}

type LedgerConfig struct {
	Driver     string `mapstructure:"driver"` // memory, sqlite, postgres
	SQLitePath string `mapstructure:"sqlite_path"`
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

// DSN returns the PostgreSQL connection URL. Credentials are escaped, so
// passwords may contain URL delimiters.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.DBName,
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// A .env file in the working directory is loaded first if present.
// Environment variables override file values. Prefix: LTS_ (Lightning TimeSheet).
// Nested keys use underscore: LTS_PROVIDER_BASE_URL, LTS_SETTLEMENT_INTERVAL, etc.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("provider.base_url", "http://localhost:5001")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.balance_in_msat", false)
	v.SetDefault("provider.invoice_expiry", "1h")
	v.SetDefault("provider.payer.wallet_id", "")
	v.SetDefault("provider.payer.read_key", "")
	v.SetDefault("provider.payer.admin_key", "")
	v.SetDefault("provider.payee.wallet_id", "")
	v.SetDefault("provider.payee.read_key", "")
	v.SetDefault("provider.payee.admin_key", "")
	v.SetDefault("settlement.hourly_rate", 360)
	v.SetDefault("settlement.interval", "30s")
	v.SetDefault("settlement.amount_per_interval", 0)
	v.SetDefault("settlement.min_interval", "15s")
	v.SetDefault("settlement.attempt_timeout", "30s")
	v.SetDefault("settlement.recent_records", 10)
	v.SetDefault("settlement.guard_ttl", "1m")
	v.SetDefault("ledger.driver", "memory")
	v.SetDefault("ledger.sqlite_path", "data/ledger.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "lightning_timesheet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: LTS_PROVIDER_BASE_URL -> provider.base_url
	v.SetEnvPrefix("LTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Settlement.Interval <= 0 {
		return fmt.Errorf("settlement.interval must be positive, got %s", c.Settlement.Interval)
	}
	// Settlement times are stamped after the provider round trip, so the next
	// tick arrives slightly less than one interval later.
	if c.Settlement.MinInterval < 0 || c.Settlement.MinInterval >= c.Settlement.Interval {
		return fmt.Errorf("settlement.min_interval must be in [0, %s), got %s",
			c.Settlement.Interval, c.Settlement.MinInterval)
	}
	if c.Settlement.HourlyRate < 0 || c.Settlement.AmountPerInterval < 0 {
		return fmt.Errorf("settlement amounts must not be negative")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive, got %s", c.Provider.Timeout)
	}
	switch c.Ledger.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("ledger.driver %q is not one of memory, sqlite, postgres", c.Ledger.Driver)
	}
	return nil
}
