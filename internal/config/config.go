package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	StoreDriver      string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	MongoURI         string        `mapstructure:"MONGODB_URI"`
	MongoDatabase    string        `mapstructure:"MONGODB_DATABASE"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	TokenTTL         time.Duration `mapstructure:"TOKEN_TTL"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`
	Timezone         string        `mapstructure:"TIMEZONE"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	BinRetentionDays int           `mapstructure:"BIN_RETENTION_DAYS"`
	BinPurgeAt       string        `mapstructure:"BIN_PURGE_AT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MONGODB_DATABASE", "screening")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("TIMEZONE", "Asia/Kolkata")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BIN_RETENTION_DAYS", 0)
	v.SetDefault("BIN_PURGE_AT", "02:00")

	for _, key := range []string{
		"PORT", "ENV", "STORE_DRIVER",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"MONGODB_URI", "MONGODB_DATABASE",
		"JWT_SECRET", "TOKEN_TTL", "BCRYPT_COST",
		"TIMEZONE", "CORS_ORIGINS",
		"BIN_RETENTION_DAYS", "BIN_PURGE_AT",
	} {
		v.BindEnv(key)
	}

	// A missing .env is fine; the environment alone is enough.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		log.Println("WARNING: ENV=development, API routes accept unauthenticated requests.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location resolves TIMEZONE. Validate has already rejected unknown zones.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Validate checks the store selection, the time zone and the token secret.
// Outside development a JWT_SECRET is mandatory.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER is %q", DriverMongo)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMongo, c.StoreDriver)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	// The zone name is handed to the stores, which only know IANA names.
	if loc == time.Local || loc.String() == "Local" {
		return fmt.Errorf("TIMEZONE must be an IANA zone name such as Asia/Kolkata, got %q", c.Timezone)
	}

	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development (ENV=%q)", c.Env)
	}

	if c.BinRetentionDays < 0 {
		return fmt.Errorf("BIN_RETENTION_DAYS must not be negative, got %d", c.BinRetentionDays)
	}
	if _, err := time.Parse("15:04", c.BinPurgeAt); err != nil {
		return fmt.Errorf("BIN_PURGE_AT must be HH:MM, got %q", c.BinPurgeAt)
	}

	return nil
}
