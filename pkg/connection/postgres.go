package connection

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
)

// PostgresDialect runs the gateway against a Postgres-compatible warehouse.
// The account doubles as host when no host override is configured, and the
// warehouse has no server-side equivalent.
type PostgresDialect struct{}

// Name implements Dialect.
func (PostgresDialect) Name() string { return string(config.DriverPostgres) }

// Dial implements Dialect.
func (d PostgresDialect) Dial(ctx context.Context, cfg config.ConnectionConfig) (Conn, error) {
	return openSQLConn(ctx, "pgx", d.dsn(cfg))
}

func (PostgresDialect) dsn(cfg config.ConnectionConfig) string {
	host := cfg.Host
	if host == "" {
		host = cfg.Account
	}
	if cfg.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}

	q := url.Values{}
	q.Set("application_name", config.ServerName)
	if cfg.LoginTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.LoginTimeout.Seconds())))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host,
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SessionStatements implements Dialect.
func (PostgresDialect) SessionStatements(cfg config.ConnectionConfig) []string {
	return []string{
		"SET ROLE " + pgx.Identifier{cfg.Role}.Sanitize(),
		"SET search_path TO " + pgx.Identifier{cfg.Schema}.Sanitize(),
	}
}

// IntrospectionQuery implements Dialect.
func (PostgresDialect) IntrospectionQuery(cfg config.ConnectionConfig) string {
	return "SELECT current_user, " + quoteLiteral(cfg.Warehouse) + ", current_database(), current_schema()"
}

// ErrorCode implements Dialect. The code is the SQLSTATE.
func (PostgresDialect) ErrorCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}
