package query

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nnnkkk7/snowflake-gateway/pkg/connection"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
)

// StatementStatus represents the status of a statement.
type StatementStatus string

const (
	StatementStatusRunning StatementStatus = "running"
	StatementStatusSuccess StatementStatus = "success"
	StatementStatusFailed  StatementStatus = "failed"
)

// Statement is the history record of one executed statement.
type Statement struct {
	Handle      string
	Status      StatementStatus
	SQLText     string
	Role        string
	Warehouse   string
	Database    string
	Schema      string
	CreatedOn   time.Time
	CompletedOn *time.Time
	Result      *Result
	Error       *apierror.Error
}

// Duration returns how long the statement ran, or zero while running.
func (s *Statement) Duration() time.Duration {
	if s.CompletedOn == nil {
		return 0
	}
	return s.CompletedOn.Sub(s.CreatedOn)
}

// StatementManager keeps recent statements for lookup by handle.
type StatementManager struct {
	mu         sync.RWMutex
	statements map[string]*Statement
	ttl        time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// NewStatementManager creates a new statement manager. Completed statements
// are evicted after ttl; a non-positive ttl keeps them until Close.
func NewStatementManager(ttl time.Duration) *StatementManager {
	sm := &StatementManager{
		statements: make(map[string]*Statement),
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	if ttl > 0 {
		go sm.cleanupLoop()
	}
	return sm
}

// CreateStatement records a running statement and returns its handle.
func (sm *StatementManager) CreateStatement(sqlText string, session connection.SessionContext) string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	handle := generateStatementHandle()
	sm.statements[handle] = &Statement{
		Handle:    handle,
		Status:    StatementStatusRunning,
		SQLText:   sqlText,
		Role:      session.Role,
		Warehouse: session.Warehouse,
		Database:  session.Database,
		Schema:    session.Schema,
		CreatedOn: time.Now(),
	}
	return handle
}

// GetStatement returns a copy of the statement with the given handle.
func (sm *StatementManager) GetStatement(handle string) (Statement, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	stmt, ok := sm.statements[handle]
	if !ok {
		return Statement{}, false
	}
	return *stmt, true
}

// SetSession records the session context the statement ran under.
func (sm *StatementManager) SetSession(handle string, session connection.SessionContext) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	stmt, ok := sm.statements[handle]
	if !ok {
		return false
	}

	stmt.Role = session.Role
	stmt.Warehouse = session.Warehouse
	stmt.Database = session.Database
	stmt.Schema = session.Schema
	return true
}

// SetResult marks a statement successful.
func (sm *StatementManager) SetResult(handle string, result *Result) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	stmt, ok := sm.statements[handle]
	if !ok {
		return false
	}

	stmt.Result = result
	stmt.Status = StatementStatusSuccess
	now := time.Now()
	stmt.CompletedOn = &now
	return true
}

// SetError marks a statement failed.
func (sm *StatementManager) SetError(handle string, err *apierror.Error) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	stmt, ok := sm.statements[handle]
	if !ok {
		return false
	}

	stmt.Error = err
	stmt.Status = StatementStatusFailed
	now := time.Now()
	stmt.CompletedOn = &now
	return true
}

// DeleteStatement removes a statement from the manager.
func (sm *StatementManager) DeleteStatement(handle string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.statements, handle)
}

// Len returns the number of retained statements.
func (sm *StatementManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.statements)
}

// Close stops the cleanup loop. It is safe to call more than once.
func (sm *StatementManager) Close() {
	sm.closeOnce.Do(func() { close(sm.done) })
}

// cleanupLoop periodically removes expired statements.
func (sm *StatementManager) cleanupLoop() {
	ticker := time.NewTicker(sm.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.cleanup(time.Now())
		}
	}
}

// cleanup removes statements that completed more than ttl before now.
func (sm *StatementManager) cleanup(now time.Time) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for handle, stmt := range sm.statements {
		if stmt.CompletedOn != nil && now.Sub(*stmt.CompletedOn) > sm.ttl {
			delete(sm.statements, handle)
		}
	}
}

// generateStatementHandle generates a unique statement handle in Snowflake format.
func generateStatementHandle() string {
	id := uuid.New()
	return fmt.Sprintf("01%s", id.String()[:32])
}
