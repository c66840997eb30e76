package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "mem"
	BackendPostgres = "pg"
	BackendSQLite   = "sqlite"
)

// EnvPrefix is prepended to every configuration key read from the environment,
// e.g. GATEWAY_BANK_URL.
const EnvPrefix = "GATEWAY"

// Config is a configuration for the gateway application
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// BankURL is the base URL of the acquiring bank; requests go to BankURL + "/payments".
	BankURL     string        `mapstructure:"bank_url"`
	BankTimeout time.Duration `mapstructure:"bank_timeout"`

	// StoreBackend is one of mem, pg or sqlite.
	StoreBackend string `mapstructure:"store_backend"`
	DBDSN        string `mapstructure:"db_dsn"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	// SeedFixture stores FixturePayment on start.
	SeedFixture bool `mapstructure:"seed_fixture"`

	// KafkaBrokers enables payment events when set.
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// ExpiryTZ is an IANA timezone name; a card expires at the end of its month in this zone.
	ExpiryTZ string `mapstructure:"expiry_tz"`
	LogLevel string `mapstructure:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:     "localhost:8090",
		BankURL:      "http://localhost:8080",
		BankTimeout:  10 * time.Second,
		StoreBackend: BackendMemory,
		SQLitePath:   "gateway.db",
		SeedFixture:  true,
		KafkaTopic:   "payments",
		ExpiryTZ:     "UTC",
		LogLevel:     "info",
	}
}

// LoadConfig reads the configuration from v: defaults, then the config file set
// with v.SetConfigFile (if any), then GATEWAY_* environment variables and bound flags.
func LoadConfig(v *viper.Viper) (*Config, error) {
	def := DefaultConfig()
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("bank_url", def.BankURL)
	v.SetDefault("bank_timeout", def.BankTimeout)
	v.SetDefault("store_backend", def.StoreBackend)
	v.SetDefault("db_dsn", def.DBDSN)
	v.SetDefault("sqlite_path", def.SQLitePath)
	v.SetDefault("seed_fixture", def.SeedFixture)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", def.KafkaTopic)
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("expiry_tz", def.ExpiryTZ)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:           v.GetString("http_addr"),
		BankURL:            v.GetString("bank_url"),
		BankTimeout:        v.GetDuration("bank_timeout"),
		StoreBackend:       strings.ToLower(v.GetString("store_backend")),
		DBDSN:              v.GetString("db_dsn"),
		SQLitePath:         v.GetString("sqlite_path"),
		SeedFixture:        v.GetBool("seed_fixture"),
		KafkaBrokers:       splitList(v.GetStringSlice("kafka_brokers")),
		KafkaTopic:         v.GetString("kafka_topic"),
		CORSAllowedOrigins: splitList(v.GetStringSlice("cors_allowed_origins")),
		ExpiryTZ:           v.GetString("expiry_tz"),
		LogLevel:           v.GetString("log_level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both list values and comma separated strings from the environment.
func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if u, err := url.Parse(c.BankURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("bank_url %q is not an absolute URL", c.BankURL))
	}
	if c.BankTimeout <= 0 {
		errs = append(errs, errors.New("bank_timeout must be positive"))
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DBDSN == "" {
			errs = append(errs, errors.New("db_dsn is required for pg backend"))
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite_path is required for sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store_backend %q", c.StoreBackend))
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("kafka_topic is required when kafka_brokers is set"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Location resolves ExpiryTZ; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.ExpiryTZ == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.ExpiryTZ)
	if err != nil {
		return nil, fmt.Errorf("expiry_tz %q: %w", c.ExpiryTZ, err)
	}
	return loc, nil
}
