package connection

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
)

// ProbeStatement is the no-op statement used to verify liveness.
const ProbeStatement = "SELECT 1"

// Dialect adapts the Manager to one backend.
type Dialect interface {
	// Name identifies the backend in logs.
	Name() string

	// Dial opens one physical session. ctx carries the login timeout.
	Dial(ctx context.Context, cfg config.ConnectionConfig) (Conn, error)

	// SessionStatements returns the statements that scope a fresh session,
	// run in order inside one transaction.
	SessionStatements(cfg config.ConnectionConfig) []string

	// IntrospectionQuery returns a statement yielding one row of
	// (role, warehouse, database, schema).
	IntrospectionQuery(cfg config.ConnectionConfig) string

	// ErrorCode extracts the database-native code from err, reporting
	// whether err was raised by the database.
	ErrorCode(err error) (string, bool)
}

// NewDialect returns the dialect for driver.
func NewDialect(driver config.Driver) (Dialect, error) {
	switch driver {
	case config.DriverSnowflake, "":
		return SnowflakeDialect{}, nil
	case config.DriverDuckDB:
		return DuckDBDialect{}, nil
	case config.DriverPostgres:
		return PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// quoteIdent leaves plain identifiers untouched so that Snowflake's
// upper-case resolution still applies, and double-quotes anything else.
func quoteIdent(name string) string {
	if plainIdent.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
