package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Execer runs statements on a connection or inside a transaction.
type Execer interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string) (int64, error)

	// Query runs a statement and returns a cursor over its result. The caller
	// must close the cursor.
	Query(ctx context.Context, query string) (Rows, error)
}

// Conn is one physical session to the backend.
type Conn interface {
	Execer

	// Begin starts an explicit transaction.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the physical session.
	Close() error
}

// Tx is an explicit transaction on a Conn.
type Tx interface {
	Execer
	Commit() error
	Rollback() error
}

// Rows is a cursor over a statement result. *sql.Rows satisfies it.
type Rows interface {
	// Columns returns the column names in declared order. An empty slice
	// means the statement produced no tabular result.
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// sqlConn adapts a dedicated *sql.Conn to Conn. The owning *sql.DB is closed
// together with the connection.
type sqlConn struct {
	db   *sql.DB
	conn *sql.Conn
}

// openSQLConn opens driverName with dsn and pins exactly one physical
// connection from it.
func openSQLConn(ctx context.Context, driverName, dsn string) (Conn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", driverName, err)
	}

	return &sqlConn{db: db, conn: conn}, nil
}

func (c *sqlConn) Exec(ctx context.Context, query string) (int64, error) {
	return execAffected(c.conn.ExecContext(ctx, query))
}

func (c *sqlConn) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *sqlConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (c *sqlConn) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string) (int64, error) {
	return execAffected(t.tx.ExecContext(ctx, query))
}

func (t *sqlTx) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func execAffected(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
