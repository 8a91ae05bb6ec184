package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
)

// ConnectionConfig holds the credentials and session scope for the backend.
// It is immutable once loaded.
type ConnectionConfig struct {
	User      string
	Password  string
	Account   string
	Database  string
	Schema    string
	Warehouse string
	Role      string

	// Optional driver endpoint overrides, e.g. a local emulator.
	Host     string
	Port     int
	Protocol string

	Driver     Driver
	DuckDBPath string

	LoginTimeout   time.Duration
	NetworkTimeout time.Duration
}

// LookupFunc resolves a configuration key, reporting whether it is set.
type LookupFunc func(key string) (string, bool)

// Load reads the configuration from the process environment.
func Load() (ConnectionConfig, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding values that are already set. Missing files
// are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFrom builds a ConnectionConfig from lookup. Every key in RequiredKeys
// must be present and non-empty.
func LoadFrom(lookup LookupFunc) (ConnectionConfig, error) {
	var cfg ConnectionConfig

	required := make(map[string]string, len(RequiredKeys))
	for _, key := range RequiredKeys {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return ConnectionConfig{}, apierror.NewConfigurationError(key)
		}
		required[key] = v
	}

	cfg.User = required[EnvUser]
	cfg.Password = required[EnvPassword]
	cfg.Account = required[EnvAccount]
	cfg.Database = required[EnvDatabase]
	cfg.Schema = required[EnvSchema]
	cfg.Warehouse = required[EnvWarehouse]
	cfg.Role = required[EnvRole]

	cfg.Host = optional(lookup, EnvHost)
	cfg.Protocol = optional(lookup, EnvProtocol)
	if p := optional(lookup, EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 {
			return ConnectionConfig{}, apierror.Wrap(apierror.KindConfiguration,
				fmt.Sprintf("invalid %s %q", EnvPort, p), err)
		}
		cfg.Port = port
	}

	cfg.Driver = DriverSnowflake
	if d := optional(lookup, EnvDriver); d != "" {
		driver, err := ParseDriver(d)
		if err != nil {
			return ConnectionConfig{}, err
		}
		cfg.Driver = driver
	}
	cfg.DuckDBPath = optional(lookup, EnvDuckDBPath)

	var err error
	if cfg.LoginTimeout, err = duration(lookup, EnvLoginTimeout, DefaultLoginTimeout); err != nil {
		return ConnectionConfig{}, err
	}
	if cfg.NetworkTimeout, err = duration(lookup, EnvNetworkTimeout, DefaultNetworkTimeout); err != nil {
		return ConnectionConfig{}, err
	}

	return cfg, nil
}

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverSnowflake, DriverDuckDB, DriverPostgres:
		return d, nil
	default:
		return "", apierror.New(apierror.KindConfiguration, fmt.Sprintf("unsupported driver %q", s))
	}
}

// Redacted returns the configuration as loggable fields, without the password.
func (c ConnectionConfig) Redacted() map[string]interface{} {
	fields := map[string]interface{}{
		"user":      c.User,
		"account":   c.Account,
		"database":  c.Database,
		"schema":    c.Schema,
		"warehouse": c.Warehouse,
		"role":      c.Role,
		"driver":    string(c.Driver),
	}
	if c.Host != "" {
		fields["host"] = c.Host
	}
	return fields
}

func optional(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func duration(lookup LookupFunc, key string, def time.Duration) (time.Duration, error) {
	v := optional(lookup, key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, apierror.Wrap(apierror.KindConfiguration, fmt.Sprintf("invalid %s %q", key, v), err)
	}
	return d, nil
}
