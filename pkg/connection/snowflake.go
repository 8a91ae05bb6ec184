package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/snowflakedb/gosnowflake"
)

// SnowflakeDialect connects through the gosnowflake driver.
type SnowflakeDialect struct{}

// Name implements Dialect.
func (SnowflakeDialect) Name() string { return string(config.DriverSnowflake) }

// Dial implements Dialect.
func (d SnowflakeDialect) Dial(ctx context.Context, cfg config.ConnectionConfig) (Conn, error) {
	dsn, err := gosnowflake.DSN(d.driverConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build DSN: %w", err)
	}
	return openSQLConn(ctx, "snowflake", dsn)
}

// driverConfig maps the gateway configuration onto the driver's.
func (SnowflakeDialect) driverConfig(cfg config.ConnectionConfig) *gosnowflake.Config {
	keepAlive := "true"
	return &gosnowflake.Config{
		Account:        cfg.Account,
		User:           cfg.User,
		Password:       cfg.Password,
		Database:       cfg.Database,
		Schema:         cfg.Schema,
		Warehouse:      cfg.Warehouse,
		Role:           cfg.Role,
		Host:           cfg.Host,
		Port:           cfg.Port,
		Protocol:       cfg.Protocol,
		LoginTimeout:   cfg.LoginTimeout,
		RequestTimeout: cfg.NetworkTimeout,
		Application:    config.ServerName,
		Params: map[string]*string{
			"client_session_keep_alive": &keepAlive,
		},
	}
}

// SessionStatements implements Dialect.
func (SnowflakeDialect) SessionStatements(cfg config.ConnectionConfig) []string {
	return []string{
		"USE ROLE " + quoteIdent(cfg.Role),
		"USE WAREHOUSE " + quoteIdent(cfg.Warehouse),
		"USE DATABASE " + quoteIdent(cfg.Database),
		"USE SCHEMA " + quoteIdent(cfg.Schema),
		"ALTER SESSION SET TIMEZONE = " + quoteLiteral(config.DefaultTimezone),
	}
}

// IntrospectionQuery implements Dialect.
func (SnowflakeDialect) IntrospectionQuery(config.ConnectionConfig) string {
	return "SELECT CURRENT_ROLE(), CURRENT_WAREHOUSE(), CURRENT_DATABASE(), CURRENT_SCHEMA()"
}

// ErrorCode implements Dialect. Snowflake codes are rendered zero-padded to
// six digits, e.g. 002003.
func (SnowflakeDialect) ErrorCode(err error) (string, bool) {
	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		return fmt.Sprintf("%06d", sfErr.Number), true
	}
	return "", false
}
