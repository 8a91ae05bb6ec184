// Package conntest provides a scripted in-memory backend for testing code
// built on connection.Conn.
package conntest

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/nnnkkk7/snowflake-gateway/pkg/connection"
)

// IntrospectionSQL is the session verification statement used by Dialect.
const IntrospectionSQL = "SELECT CURRENT_ROLE(), CURRENT_WAREHOUSE(), CURRENT_DATABASE(), CURRENT_SCHEMA()"

// ErrBroken is returned by every call on a broken connection. It wraps
// driver.ErrBadConn as database/sql drivers do for dropped sessions.
var ErrBroken = fmt.Errorf("conntest: connection reset by peer: %w", driver.ErrBadConn)

// DBError is an error raised by the fake database, carrying a native code.
type DBError struct {
	Code    string
	Message string
}

func (e *DBError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Result is a scripted tabular result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Backend records every call made against it and replays scripted results.
// The zero value is ready to use.
type Backend struct {
	// Log is the ordered call log: "DIAL#n", "BEGIN", "EXEC <sql>",
	// "QUERY <sql>", "COMMIT", "ROLLBACK", "CLOSE#n".
	Log []string

	Dials int
	Conns []*Conn

	// DialErr fails every subsequent dial when set.
	DialErr error

	ExecErrs  map[string]error
	QueryErrs map[string]error
	Affected  map[string]int64
	Results   map[string]Result

	BeginErr    error
	CommitErr   error
	RollbackErr error
	CloseErr    error

	// SessionRow overrides the introspection row. When nil the configured
	// role, warehouse, database and schema are echoed back.
	SessionRow []any

	// OpenCursors counts Rows that were returned but not yet closed.
	OpenCursors int

	session []any
}

// Reset clears the call log.
func (b *Backend) Reset() {
	b.Log = nil
}

// Last returns the most recent connection, or nil.
func (b *Backend) Last() *Conn {
	if len(b.Conns) == 0 {
		return nil
	}
	return b.Conns[len(b.Conns)-1]
}

func (b *Backend) record(entry string) {
	b.Log = append(b.Log, entry)
}

func (b *Backend) exec(query string) (int64, error) {
	b.record("EXEC " + query)
	if err := b.ExecErrs[query]; err != nil {
		return 0, err
	}
	return b.Affected[query], nil
}

func (b *Backend) query(query string) (connection.Rows, error) {
	b.record("QUERY " + query)
	if err := b.QueryErrs[query]; err != nil {
		return nil, err
	}

	res, ok := b.Results[query]
	if !ok && query == IntrospectionSQL {
		row := b.SessionRow
		if row == nil {
			row = b.session
		}
		res = Result{Columns: []string{"ROLE", "WAREHOUSE", "DATABASE", "SCHEMA"}, Rows: [][]any{row}}
	}

	b.OpenCursors++
	return &Rows{backend: b, columns: res.Columns, data: res.Rows, pos: -1}, nil
}

// Dialect adapts a Backend to connection.Dialect.
type Dialect struct {
	Backend *Backend
}

// Name implements connection.Dialect.
func (Dialect) Name() string { return "fake" }

// Dial implements connection.Dialect.
func (d Dialect) Dial(ctx context.Context, cfg config.ConnectionConfig) (connection.Conn, error) {
	b := d.Backend
	b.Dials++
	b.record(fmt.Sprintf("DIAL#%d", b.Dials))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.DialErr != nil {
		return nil, b.DialErr
	}
	b.session = []any{cfg.Role, cfg.Warehouse, cfg.Database, cfg.Schema}

	c := &Conn{backend: b, ID: b.Dials}
	b.Conns = append(b.Conns, c)
	return c, nil
}

// SessionStatements implements connection.Dialect.
func (Dialect) SessionStatements(cfg config.ConnectionConfig) []string {
	return []string{
		"USE ROLE " + cfg.Role,
		"USE WAREHOUSE " + cfg.Warehouse,
		"USE DATABASE " + cfg.Database,
		"USE SCHEMA " + cfg.Schema,
	}
}

// IntrospectionQuery implements connection.Dialect.
func (Dialect) IntrospectionQuery(config.ConnectionConfig) string {
	return IntrospectionSQL
}

// ErrorCode implements connection.Dialect.
func (Dialect) ErrorCode(err error) (string, bool) {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code, true
	}
	return "", false
}

// Conn is a fake physical session.
type Conn struct {
	ID      int
	Closed  bool
	broken  bool
	backend *Backend
}

// Break makes every later call on the connection fail with ErrBroken, as if
// the network dropped it.
func (c *Conn) Break() {
	c.broken = true
}

// Exec implements connection.Conn.
func (c *Conn) Exec(_ context.Context, query string) (int64, error) {
	if c.broken {
		return 0, ErrBroken
	}
	return c.backend.exec(query)
}

// Query implements connection.Conn.
func (c *Conn) Query(_ context.Context, query string) (connection.Rows, error) {
	if c.broken {
		return nil, ErrBroken
	}
	return c.backend.query(query)
}

// Begin implements connection.Conn.
func (c *Conn) Begin(context.Context) (connection.Tx, error) {
	if c.broken {
		return nil, ErrBroken
	}
	c.backend.record("BEGIN")
	if c.backend.BeginErr != nil {
		return nil, c.backend.BeginErr
	}
	return &Tx{conn: c}, nil
}

// Close implements connection.Conn.
func (c *Conn) Close() error {
	c.backend.record(fmt.Sprintf("CLOSE#%d", c.ID))
	c.Closed = true
	return c.backend.CloseErr
}

// Tx is a fake transaction.
type Tx struct {
	conn *Conn
	done bool
}

// Exec implements connection.Tx.
func (t *Tx) Exec(ctx context.Context, query string) (int64, error) {
	return t.conn.Exec(ctx, query)
}

// Query implements connection.Tx.
func (t *Tx) Query(ctx context.Context, query string) (connection.Rows, error) {
	return t.conn.Query(ctx, query)
}

// Commit implements connection.Tx.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("conntest: transaction already finished")
	}
	t.done = true
	t.conn.backend.record("COMMIT")
	return t.conn.backend.CommitErr
}

// Rollback implements connection.Tx.
func (t *Tx) Rollback() error {
	if t.done {
		return errors.New("conntest: transaction already finished")
	}
	t.done = true
	t.conn.backend.record("ROLLBACK")
	return t.conn.backend.RollbackErr
}

// Rows is a fake cursor. Scan destinations must be *any.
type Rows struct {
	backend *Backend
	columns []string
	data    [][]any
	pos     int
	closed  bool
}

// Columns implements connection.Rows.
func (r *Rows) Columns() ([]string, error) {
	return r.columns, nil
}

// Next implements connection.Rows.
func (r *Rows) Next() bool {
	if r.closed || r.pos+1 >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

// Scan implements connection.Rows.
func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.data) {
		return errors.New("conntest: Scan called without a current row")
	}
	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("conntest: expected %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		p, ok := d.(*any)
		if !ok {
			return fmt.Errorf("conntest: destination %d is %T, want *any", i, d)
		}
		*p = row[i]
	}
	return nil
}

// Err implements connection.Rows.
func (r *Rows) Err() error { return nil }

// Close implements connection.Rows.
func (r *Rows) Close() error {
	if !r.closed {
		r.closed = true
		r.backend.OpenCursors--
	}
	return nil
}
