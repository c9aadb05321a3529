// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"errors"
	"strings"
	"time"

	"github.com/go-petr/marketrush/pkg/currencypkg"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
)

// Config stores all configuration of the application.
//
// The values are read by viper fron a config file or environement variables.
type Config struct {
	Environement  string `mapstructure:"GO_ENV"`
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	StoreDriver        string        `mapstructure:"STORE_DRIVER"`
	DBDriver           string        `mapstructure:"DB_DRIVER"`
	DBSource           string        `mapstructure:"DB_SOURCE"`
	RedisAddress       string        `mapstructure:"REDIS_ADDRESS"`
	RedisPassword      string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int           `mapstructure:"REDIS_DB"`
	MongoURI           string        `mapstructure:"MONGO_URI"`
	MongoDatabase      string        `mapstructure:"MONGO_DATABASE"`
	StoreMaxAttempts   int           `mapstructure:"STORE_MAX_ATTEMPTS"`
	StoreRetryBase     time.Duration `mapstructure:"STORE_RETRY_BASE"`
	BreakerMaxFailures uint32        `mapstructure:"BREAKER_MAX_FAILURES"`
	BreakerOpenTimeout time.Duration `mapstructure:"BREAKER_OPEN_TIMEOUT"`

	TokenType            string        `mapstructure:"TOKEN_TYPE"`
	TokenSymmetricKey    string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	AccessTokenDuration  time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	RefreshTokenDuration time.Duration `mapstructure:"REFRESH_TOKEN_DURATION"`

	LedgerCurrency    string `mapstructure:"LEDGER_CURRENCY"`
	ReferenceCurrency string `mapstructure:"REFERENCE_CURRENCY"`
	ReferenceRate     string `mapstructure:"REFERENCE_RATE"`
	MinWithdrawal     string `mapstructure:"MIN_WITHDRAWAL"`
	MaxWithdrawal     string `mapstructure:"MAX_WITHDRAWAL"`

	AutoApproveUsers   bool   `mapstructure:"AUTO_APPROVE_USERS"`
	AdminEmails        string `mapstructure:"ADMIN_EMAILS"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"GO_ENV":                 "production",
	"SERVER_ADDRESS":         "0.0.0.0:8080",
	"STORE_DRIVER":           StoreMemory,
	"DB_DRIVER":              "postgres",
	"DB_SOURCE":              "",
	"REDIS_ADDRESS":          "localhost:6379",
	"REDIS_PASSWORD":         "",
	"REDIS_DB":               0,
	"MONGO_URI":              "mongodb://localhost:27017",
	"MONGO_DATABASE":         "marketrush",
	"STORE_MAX_ATTEMPTS":     8,
	"STORE_RETRY_BASE":       "5ms",
	"BREAKER_MAX_FAILURES":   5,
	"BREAKER_OPEN_TIMEOUT":   "30s",
	"TOKEN_TYPE":             "paseto",
	"TOKEN_SYMMETRIC_KEY":    "",
	"ACCESS_TOKEN_DURATION":  "168h",
	"REFRESH_TOKEN_DURATION": "720h",
	"LEDGER_CURRENCY":        currencypkg.SOL,
	"REFERENCE_CURRENCY":     currencypkg.USD,
	"REFERENCE_RATE":         "40",
	"MIN_WITHDRAWAL":         "0.13",
	"MAX_WITHDRAWAL":         "50",
	"AUTO_APPROVE_USERS":     true,
	"ADMIN_EMAILS":           "",
	"CORS_ALLOWED_ORIGINS":   "",
}

// Load read configuration from file or environment variables.
//
// A missing app.env file is not an error, defaults and the environment apply.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	if err := c.validate(); err != nil {
		return c, err
	}

	return c, nil
}

func (c Config) validate() error {
	for key, value := range map[string]string{
		"REFERENCE_RATE": c.ReferenceRate,
		"MIN_WITHDRAWAL": c.MinWithdrawal,
		"MAX_WITHDRAWAL": c.MaxWithdrawal,
	} {
		if _, err := decimal.NewFromString(value); err != nil {
			return errors.New(key + " must be a decimal number")
		}
	}

	switch c.StoreDriver {
	case StoreMemory, StorePostgres, StoreRedis, StoreMongo:
	default:
		return errors.New("STORE_DRIVER must be one of memory, postgres, redis, mongo")
	}

	return nil
}

// AdminEmailList returns the normalized ADMIN_EMAILS entries.
func (c Config) AdminEmailList() []string {
	var emails []string

	for _, e := range strings.Split(c.AdminEmails, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails = append(emails, e)
		}
	}

	return emails
}

// AllowedOrigins returns the CORS_ALLOWED_ORIGINS entries. An empty list allows any origin.
func (c Config) AllowedOrigins() []string {
	var origins []string

	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}

	return origins
}

// Rate returns REFERENCE_RATE as a decimal.
func (c Config) Rate() decimal.Decimal {
	return decimal.RequireFromString(c.ReferenceRate)
}

// WithdrawalBounds returns MIN_WITHDRAWAL and MAX_WITHDRAWAL as decimals.
func (c Config) WithdrawalBounds() (decimal.Decimal, decimal.Decimal) {
	return decimal.RequireFromString(c.MinWithdrawal), decimal.RequireFromString(c.MaxWithdrawal)
}
