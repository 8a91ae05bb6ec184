package query

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/nnnkkk7/snowflake-gateway/pkg/connection"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
	"github.com/sirupsen/logrus"
)

// ConnectionSource hands out the live connection and recognizes backend
// errors. *connection.Manager implements it.
type ConnectionSource interface {
	EnsureConnection(ctx context.Context) (connection.Conn, error)
	ErrorCode(err error) (string, bool)
}

// Executor runs one SQL statement per call on the managed connection.
type Executor struct {
	conns      ConnectionSource
	classifier *Classifier
	analyzer   *Analyzer
	rewriter   *Rewriter
	logger     logrus.FieldLogger
}

// Option configures an Executor.
type Option func(*Executor)

// WithRewriter rewrites each statement before it is sent to the backend.
// Classification always uses the text as submitted.
func WithRewriter(r *Rewriter) Option {
	return func(e *Executor) {
		e.rewriter = r
	}
}

// NewExecutor creates a new query executor.
func NewExecutor(conns ConnectionSource, logger logrus.FieldLogger, opts ...Option) *Executor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := &Executor{
		conns:      conns,
		classifier: DefaultClassifier,
		analyzer:   NewAnalyzer(),
		logger:     logger.WithField("component", "query"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Preview shortens sql for logging.
func Preview(sql string) string {
	r := []rune(sql)
	if len(r) <= config.QueryPreviewLength {
		return sql
	}
	return string(r[:config.QueryPreviewLength]) + "..."
}

// ExecuteQuery runs sql and returns its rows.
//
// Write statements run in their own transaction and yield a single
// {"affected_rows": N} row. Everything else is fetched eagerly as rows in
// backend order.
func (e *Executor) ExecuteQuery(ctx context.Context, sql string) (*Result, error) {
	start := time.Now()
	log := e.logger.WithField("query", Preview(sql))
	log.Info("Executing query")

	conn, err := e.conns.EnsureConnection(ctx)
	if err != nil {
		log.WithError(err).Error("No connection available")
		return nil, err
	}

	class := e.classifier.Classify(sql)
	if v := e.analyzer.Analyze(sql); v.Disagrees(class) {
		log.WithFields(logrus.Fields{
			"class":  class.String(),
			"parsed": v.Kind,
		}).Warn("Parser disagrees with keyword classification")
	}

	stmt := sql
	if e.rewriter != nil {
		if rewritten, ok := e.rewriter.Rewrite(sql); ok {
			log.WithField("rewritten", Preview(rewritten)).Debug("Rewrote statement for backend")
			stmt = rewritten
		}
	}

	var rows []Row
	if class == Write {
		rows, err = e.executeWrite(ctx, log, conn, stmt)
	} else {
		rows, err = e.executeRead(ctx, conn, stmt)
	}
	elapsed := time.Since(start)

	if err != nil {
		classified := e.classify(err)
		log.WithFields(logrus.Fields{
			"kind":     apierror.KindOf(classified),
			"code":     apierror.CodeOf(classified),
			"cause":    fmt.Sprintf("%T", err),
			"duration": elapsed.String(),
		}).WithError(err).Error("Query execution failed")
		return nil, classified
	}

	if class == Write {
		log.WithField("duration", elapsed.String()).Info("Write query executed")
	} else {
		log.WithField("duration", elapsed.String()).Infof("Read query returned %d rows", len(rows))
	}

	return &Result{Class: class, Rows: rows, Duration: elapsed}, nil
}

// executeWrite runs sql inside BEGIN/COMMIT. A failed statement is rolled
// back and its own error returned.
func (e *Executor) executeWrite(ctx context.Context, log logrus.FieldLogger, conn connection.Conn, sql string) ([]Row, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := tx.Exec(ctx, sql)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("Rollback failed")
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return newWriteResult(affected), nil
}

// executeRead fetches every row. The cursor is released on all paths.
func (e *Executor) executeRead(ctx context.Context, conn connection.Conn, sql string) ([]Row, error) {
	rs, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rs.Close() }()

	columns, err := rs.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := []Row{}
	if len(columns) == 0 {
		return result, nil
	}

	for rs.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rs.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			values[i] = convertValue(v)
		}
		result = append(result, NewRow(columns, values))
	}

	if err := rs.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// classify maps a raw failure onto the error taxonomy.
func (e *Executor) classify(err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return err
	}
	if code, ok := e.conns.ErrorCode(err); ok {
		return apierror.NewQueryError(code, err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return apierror.NewConnectionUnavailable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apierror.NewConnectionUnavailable(err)
	}
	return apierror.NewUnknownExecutionError(err)
}
