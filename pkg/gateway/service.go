// Package gateway serializes query execution over the single managed
// connection and renders outcomes for the tool transports.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nnnkkk7/snowflake-gateway/pkg/connection"
	"github.com/nnnkkk7/snowflake-gateway/pkg/query"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
	"github.com/sirupsen/logrus"
)

// Executor runs a single statement.
type Executor interface {
	ExecuteQuery(ctx context.Context, sql string) (*query.Result, error)
}

// Connections is the lifecycle surface of the connection manager.
type Connections interface {
	State() connection.State
	SessionContext() (connection.SessionContext, bool)
	Close()
}

// Outcome is the rendered result of one execute_query call. Failures are
// values, not errors: Text carries the description and IsError is set.
type Outcome struct {
	Handle   string
	Text     string
	IsError  bool
	Result   *query.Result
	Err      *apierror.Error
	Duration time.Duration
}

// Health describes the connection as seen by the service.
type Health struct {
	State   connection.State
	Session *connection.SessionContext
}

// Service is the only entry point the transports use. Every call holds the
// service mutex, so at most one statement is in flight.
type Service struct {
	mu         sync.Mutex
	conns      Connections
	executor   Executor
	statements *query.StatementManager
	logger     logrus.FieldLogger
	closed     bool
}

// NewService creates a service over an already wired manager and executor.
func NewService(conns Connections, executor Executor, statements *query.StatementManager, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		conns:      conns,
		executor:   executor,
		statements: statements,
		logger:     logger.WithField("component", "gateway"),
	}
}

// ExecuteQuery runs sql and renders the outcome.
func (s *Service) ExecuteQuery(ctx context.Context, sql string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	if s.closed {
		return s.failure("", start, apierror.New(apierror.KindConnectionUnavailable, "service is shut down"))
	}
	if strings.TrimSpace(sql) == "" {
		return s.failure("", start, apierror.New(apierror.KindInvalidRequest, "query must not be empty"))
	}

	session, _ := s.conns.SessionContext()
	handle := s.statements.CreateStatement(sql, session)

	result, err := s.executor.ExecuteQuery(ctx, sql)
	if current, ok := s.conns.SessionContext(); ok && current != session {
		s.statements.SetSession(handle, current)
	}
	if err != nil {
		apiErr := apierror.FromError(err)
		s.statements.SetError(handle, apiErr)
		return s.failure(handle, start, apiErr)
	}
	s.statements.SetResult(handle, result)

	elapsed := time.Since(start)
	body, err := result.JSON()
	if err != nil {
		apiErr := apierror.NewUnknownExecutionError(fmt.Errorf("encode result: %w", err))
		s.statements.SetError(handle, apiErr)
		return s.failure(handle, start, apiErr)
	}

	return Outcome{
		Handle:   handle,
		Text:     fmt.Sprintf("Results (execution time: %.2fs):\n%s", elapsed.Seconds(), body),
		Result:   result,
		Duration: elapsed,
	}
}

func (s *Service) failure(handle string, start time.Time, apiErr *apierror.Error) Outcome {
	msg := "Error executing query: " + apiErr.Error()
	s.logger.WithFields(logrus.Fields{
		"handle": handle,
		"kind":   apiErr.Kind,
	}).Error(msg)
	return Outcome{
		Handle:   handle,
		Text:     msg,
		IsError:  true,
		Err:      apiErr,
		Duration: time.Since(start),
	}
}

// Statement returns the history record for handle.
func (s *Service) Statement(handle string) (query.Statement, bool) {
	return s.statements.GetStatement(handle)
}

// Health reports the connection state without touching the backend.
func (s *Service) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := Health{State: s.conns.State()}
	if session, ok := s.conns.SessionContext(); ok {
		h.Session = &session
	}
	return h
}

// Close releases the connection and stops statement cleanup. Later calls to
// ExecuteQuery fail without reconnecting.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.conns.Close()
	s.statements.Close()
	s.logger.Info("Gateway shut down")
}
