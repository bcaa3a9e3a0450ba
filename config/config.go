package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Port    string
	GinMode string

	DB DatabaseConfig

	JWTSecret string
	LogLevel  string

	// VenueTaxRate is applied to products created without an explicit rate and
	// to table-time lines.
	VenueTaxRate decimal.Decimal
	// CancelWindow is the minimum lead time for a reservation cancellation.
	CancelWindow time.Duration

	AuditBuffer  int
	RateLimitRPS int
	CORSOrigin   string
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLDSN builds the go-sql-driver DSN unless DB_DSN overrides it. The
// session and the driver both use UTC so stored procedures and Go code
// compare reservation times on the same clock.
func (d DatabaseConfig) MySQLDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&time_zone=%%27%%2B00%%3A00%%27",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_host", "127.0.0.1")
	v.SetDefault("db_port", 3306)
	v.SetDefault("db_user", "root")
	v.SetDefault("db_name", "billiard_pos")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", "5m")
	v.SetDefault("venue_tax_rate", "0.10")
	v.SetDefault("cancel_window", "24h")
	v.SetDefault("audit_buffer", 256)
	v.SetDefault("rate_limit_rps", 50)
	v.SetDefault("cors_origin", "*")
}

// Load reads .env (if present), an optional config.yaml and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	taxRate, err := decimal.NewFromString(v.GetString("venue_tax_rate"))
	if err != nil {
		return nil, fmt.Errorf("invalid VENUE_TAX_RATE: %w", err)
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("VENUE_TAX_RATE must be between 0 and 1, got %s", taxRate)
	}

	cfg := &Config{
		Port:      v.GetString("port"),
		GinMode:   v.GetString("gin_mode"),
		JWTSecret: v.GetString("jwt_secret"),
		LogLevel:  v.GetString("log_level"),
		DB: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("db_driver")),
			DSN:             v.GetString("db_dsn"),
			Host:            v.GetString("db_host"),
			Port:            v.GetInt("db_port"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		},
		VenueTaxRate: taxRate,
		CancelWindow: v.GetDuration("cancel_window"),
		AuditBuffer:  v.GetInt("audit_buffer"),
		RateLimitRPS: v.GetInt("rate_limit_rps"),
		CORSOrigin:   v.GetString("cors_origin"),
	}

	if cfg.DB.Driver != "mysql" && cfg.DB.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.CancelWindow <= 0 {
		return nil, fmt.Errorf("CANCEL_WINDOW must be positive")
	}
	return cfg, nil
}
