// Package connection owns the single backend session used by the gateway.
package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of the managed connection.
type State string

const (
	StateAbsent     State = "absent"
	StateConnecting State = "connecting"
	StateConfigured State = "configured"
	StateLive       State = "live"
)

// maxConnectAttempts bounds EnsureConnection to one retry.
const maxConnectAttempts = 2

// SessionContext is the scope verified on the live connection.
type SessionContext struct {
	Role      string
	Warehouse string
	Database  string
	Schema    string
}

// liveConn keeps the session context next to the connection it describes so
// both are cleared together.
type liveConn struct {
	conn    Conn
	session SessionContext
}

// Manager owns exactly one backend connection.
//
// The Manager establishes the connection lazily, configures its session
// context inside a single transaction, probes it before each use and rebuilds
// it when the probe fails. It performs no locking: callers must serialize
// access (see gateway.Service).
type Manager struct {
	cfg     config.ConnectionConfig
	dialect Dialect
	logger  logrus.FieldLogger

	state State
	live  *liveConn
}

// NewManager creates a manager. No connection is made until EnsureConnection.
func NewManager(cfg config.ConnectionConfig, dialect Dialect, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Manager{
		cfg:     cfg,
		dialect: dialect,
		logger:  logger.WithField("component", "connection"),
		state:   StateAbsent,
	}
	m.logger.WithFields(cfg.Redacted()).Info("Initialized connection manager")
	return m
}

// EnsureConnection returns a live connection, creating or recreating it as
// needed. A failed probe or connect is retried at most once; after that the
// call fails with ConnectionUnavailable wrapping the last cause.
//
// The returned Conn is only valid until the next EnsureConnection or Close.
func (m *Manager) EnsureConnection(ctx context.Context) (Conn, error) {
	var lastErr error

	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}

		if m.live == nil {
			if err := m.connect(ctx); err != nil {
				m.logger.WithError(err).WithField("attempt", attempt).Error("Connection error")
				lastErr = err
				continue
			}
			return m.live.conn, nil
		}

		if _, err := m.live.conn.Exec(ctx, ProbeStatement); err != nil {
			m.logger.WithError(err).Info("Connection lost, reconnecting...")
			m.discard()
			lastErr = fmt.Errorf("liveness probe failed: %w", err)
			continue
		}
		return m.live.conn, nil
	}

	return nil, apierror.NewConnectionUnavailable(lastErr)
}

// Close closes the connection if one exists. Close errors are logged and
// swallowed; the manager always ends up absent and can be reused.
func (m *Manager) Close() {
	if m.live == nil {
		return
	}
	defer func() {
		m.live = nil
		m.state = StateAbsent
	}()

	if err := m.live.conn.Close(); err != nil {
		m.logger.WithError(err).Error("Error closing connection")
		return
	}
	m.logger.Info("Connection closed")
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// SessionContext returns the scope verified on the live connection.
func (m *Manager) SessionContext() (SessionContext, bool) {
	if m.live == nil {
		return SessionContext{}, false
	}
	return m.live.session, true
}

// ErrorCode reports the database-native code carried by err.
func (m *Manager) ErrorCode(err error) (string, bool) {
	return m.dialect.ErrorCode(err)
}

// connect dials and configures a fresh connection. On failure nothing is
// retained.
func (m *Manager) connect(ctx context.Context) error {
	m.state = StateConnecting
	m.logger.WithField("driver", m.dialect.Name()).Info("Creating new connection...")

	dialCtx, cancel := m.dialContext(ctx)
	conn, err := m.dialect.Dial(dialCtx, m.cfg)
	cancel()
	if err != nil {
		m.state = StateAbsent
		return fmt.Errorf("dial %s: %w", m.dialect.Name(), err)
	}

	session, err := m.configure(ctx, conn)
	if err != nil {
		m.closeQuietly(conn)
		m.state = StateAbsent
		return err
	}

	m.live = &liveConn{conn: conn, session: session}
	m.state = StateLive
	m.logger.WithFields(logrus.Fields{
		"role":      session.Role,
		"warehouse": session.Warehouse,
		"database":  session.Database,
		"schema":    session.Schema,
	}).Info("New connection established and configured")
	return nil
}

func (m *Manager) dialContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.LoginTimeout > 0 {
		return context.WithTimeout(ctx, m.cfg.LoginTimeout)
	}
	return context.WithCancel(ctx)
}

// configure scopes the session inside one transaction and verifies the
// result. Any failure rolls the transaction back.
func (m *Manager) configure(ctx context.Context, conn Conn) (SessionContext, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return SessionContext{}, apierror.NewSessionSetupFailed("BEGIN", err)
	}

	for _, stmt := range m.dialect.SessionStatements(m.cfg) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			m.rollback(tx)
			return SessionContext{}, apierror.NewSessionSetupFailed(stmt, err)
		}
	}
	m.state = StateConfigured

	session, err := m.introspect(ctx, tx)
	if err != nil {
		m.rollback(tx)
		return SessionContext{}, apierror.NewSessionSetupFailed("verify", err)
	}

	if err := tx.Commit(); err != nil {
		return SessionContext{}, apierror.NewSessionSetupFailed("COMMIT", err)
	}
	return session, nil
}

func (m *Manager) introspect(ctx context.Context, tx Tx) (SessionContext, error) {
	rows, err := tx.Query(ctx, m.dialect.IntrospectionQuery(m.cfg))
	if err != nil {
		return SessionContext{}, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return SessionContext{}, err
		}
		return SessionContext{}, errors.New("introspection returned no rows")
	}

	values := make([]any, 4)
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return SessionContext{}, fmt.Errorf("failed to scan session context: %w", err)
	}

	return SessionContext{
		Role:      textValue(values[0]),
		Warehouse: textValue(values[1]),
		Database:  textValue(values[2]),
		Schema:    textValue(values[3]),
	}, rows.Err()
}

func (m *Manager) rollback(tx Tx) {
	if err := tx.Rollback(); err != nil {
		m.logger.WithError(err).Warn("Failed to roll back session setup")
	}
}

// discard drops the live connection after a failed probe.
func (m *Manager) discard() {
	if m.live == nil {
		return
	}
	m.closeQuietly(m.live.conn)
	m.live = nil
	m.state = StateAbsent
}

func (m *Manager) closeQuietly(conn Conn) {
	if err := conn.Close(); err != nil {
		m.logger.WithError(err).Debug("Error closing discarded connection")
	}
}

func textValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
