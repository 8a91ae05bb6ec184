package connection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
)

// DuckDBDialect runs the gateway against an embedded DuckDB database. It has
// no roles or warehouses; those are reported back as configured.
type DuckDBDialect struct{}

// Name implements Dialect.
func (DuckDBDialect) Name() string { return string(config.DriverDuckDB) }

// inMemoryCatalog is the name DuckDB gives an in-memory database.
const inMemoryCatalog = "memory"

// Dial implements Dialect. An empty path opens an in-memory database; a
// configured database other than "memory" is attached as an empty in-memory
// catalog under that name and made the default. A file database is used
// as is, so its catalog name (the file stem) must match the configured one.
func (DuckDBDialect) Dial(ctx context.Context, cfg config.ConnectionConfig) (Conn, error) {
	conn, err := openSQLConn(ctx, "duckdb", cfg.DuckDBPath)
	if err != nil {
		return nil, err
	}
	if !attachesCatalog(cfg) {
		return conn, nil
	}

	for _, stmt := range []string{
		"ATTACH ':memory:' AS " + duckIdent(cfg.Database),
		"USE " + duckIdent(cfg.Database),
	} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to run %q: %w", stmt, err), conn.Close())
		}
	}
	return conn, nil
}

// SessionStatements implements Dialect. In-memory catalogs start with only
// the main schema, so the configured schema is created first.
func (DuckDBDialect) SessionStatements(cfg config.ConnectionConfig) []string {
	var stmts []string
	if cfg.DuckDBPath == "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+duckIdent(cfg.Database)+"."+duckIdent(cfg.Schema))
	}
	return append(stmts, "SET search_path = "+quoteLiteral(cfg.Database+"."+cfg.Schema))
}

func attachesCatalog(cfg config.ConnectionConfig) bool {
	return cfg.DuckDBPath == "" && cfg.Database != "" && !strings.EqualFold(cfg.Database, inMemoryCatalog)
}

// duckIdent always double-quotes; DuckDB resolves quoted names case-insensitively.
func duckIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// IntrospectionQuery implements Dialect.
func (DuckDBDialect) IntrospectionQuery(cfg config.ConnectionConfig) string {
	return "SELECT " + quoteLiteral(cfg.Role) + ", " + quoteLiteral(cfg.Warehouse) +
		", current_database(), current_schema()"
}

// ErrorCode implements Dialect.
func (DuckDBDialect) ErrorCode(err error) (string, bool) {
	var dErr *duckdb.Error
	if errors.As(err, &dErr) {
		return strconv.Itoa(int(dErr.Type)), true
	}
	return "", false
}
