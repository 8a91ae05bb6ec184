package query_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nnnkkk7/snowflake-gateway/pkg/config"
	"github.com/nnnkkk7/snowflake-gateway/pkg/connection"
	"github.com/nnnkkk7/snowflake-gateway/pkg/connection/conntest"
	"github.com/nnnkkk7/snowflake-gateway/pkg/query"
	"github.com/nnnkkk7/snowflake-gateway/server/apierror"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type testEnv struct {
	executor *query.Executor
	manager  *connection.Manager
	backend  *conntest.Backend
	hook     *logtest.Hook
}

// setupTestExecutor wires an executor to a manager over a fake backend and
// establishes the connection so each test starts from a live session.
func setupTestExecutor(t *testing.T) *testEnv {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	backend := &conntest.Backend{
		Affected: map[string]int64{},
		Results:  map[string]conntest.Result{},
		ExecErrs: map[string]error{},
	}
	cfg := config.ConnectionConfig{
		User:      "analyst",
		Password:  "s3cret",
		Account:   "xy12345",
		Database:  "ANALYTICS",
		Schema:    "PUBLIC",
		Warehouse: "COMPUTE_WH",
		Role:      "REPORTER",
	}
	mgr := connection.NewManager(cfg, conntest.Dialect{Backend: backend}, logger)
	t.Cleanup(mgr.Close)

	if _, err := mgr.EnsureConnection(context.Background()); err != nil {
		t.Fatalf("EnsureConnection() error = %v", err)
	}
	backend.Reset()
	hook.Reset()

	return &testEnv{
		executor: query.NewExecutor(mgr, logger),
		manager:  mgr,
		backend:  backend,
		hook:     hook,
	}
}

// TestExecutor_ReadRows tests the read path returns ordered row mappings.
func TestExecutor_ReadRows(t *testing.T) {
	env := setupTestExecutor(t)
	sql := "SELECT name FROM users WHERE id = 1"
	env.backend.Results[sql] = conntest.Result{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "Alice"}},
	}

	result, err := env.executor.ExecuteQuery(context.Background(), sql)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	if result.Class != query.Read {
		t.Errorf("Class = %v, want read", result.Class)
	}
	got, err := result.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if want := `[{"id":1,"name":"Alice"}]`; got != want {
		t.Errorf("JSON() = %s, want %s", got, want)
	}

	wantLog := []string{"EXEC " + connection.ProbeStatement, "QUERY " + sql}
	if diff := cmp.Diff(wantLog, env.backend.Log); diff != "" {
		t.Errorf("call log mismatch (-want +got):\n%s", diff)
	}
	if env.backend.OpenCursors != 0 {
		t.Errorf("OpenCursors = %d, want 0", env.backend.OpenCursors)
	}
}

// TestExecutor_ColumnOrder tests that column and row order follow the backend.
func TestExecutor_ColumnOrder(t *testing.T) {
	env := setupTestExecutor(t)
	sql := "SELECT zeta, alpha, mid FROM t ORDER BY zeta"
	env.backend.Results[sql] = conntest.Result{
		Columns: []string{"zeta", "alpha", "mid"},
		Rows: [][]any{
			{"z1", []byte("a1"), nil},
			{"z2", "a2", 3.5},
		},
	}

	result, err := env.executor.ExecuteQuery(context.Background(), sql)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	want := []query.Row{
		{Columns: []string{"zeta", "alpha", "mid"}, Values: []any{"z1", "a1", nil}},
		{Columns: []string{"zeta", "alpha", "mid"}, Values: []any{"z2", "a2", 3.5}},
	}
	if diff := cmp.Diff(want, result.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

// TestExecutor_ReadEmpty tests statements without tabular output.
func TestExecutor_ReadEmpty(t *testing.T) {
	tests := []struct {
		name   string
		result conntest.Result
	}{
		{name: "NoColumns", result: conntest.Result{}},
		{name: "NoRows", result: conntest.Result{Columns: []string{"name"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestExecutor(t)
			sql := "SHOW WAREHOUSES LIKE 'none'"
			env.backend.Results[sql] = tt.result

			result, err := env.executor.ExecuteQuery(context.Background(), sql)
			if err != nil {
				t.Fatalf("ExecuteQuery() error = %v", err)
			}
			if result.Rows == nil || len(result.Rows) != 0 {
				t.Errorf("Rows = %#v, want empty non-nil slice", result.Rows)
			}
			if got, _ := result.JSON(); got != "[]" {
				t.Errorf("JSON() = %s, want []", got)
			}
			if env.backend.OpenCursors != 0 {
				t.Errorf("OpenCursors = %d, want 0", env.backend.OpenCursors)
			}
		})
	}
}

// TestExecutor_WriteCommit tests the write path envelope and shape.
func TestExecutor_WriteCommit(t *testing.T) {
	env := setupTestExecutor(t)
	sql := "DELETE FROM users WHERE id = 1"
	env.backend.Affected[sql] = 1

	result, err := env.executor.ExecuteQuery(context.Background(), sql)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	got, _ := result.JSON()
	if want := `[{"affected_rows":1}]`; got != want {
		t.Errorf("JSON() = %s, want %s", got, want)
	}
	if n, ok := result.AffectedRows(); !ok || n != 1 {
		t.Errorf("AffectedRows() = %d, %v; want 1, true", n, ok)
	}

	wantLog := []string{"EXEC " + connection.ProbeStatement, "BEGIN", "EXEC " + sql, "COMMIT"}
	if diff := cmp.Diff(wantLog, env.backend.Log); diff != "" {
		t.Errorf("call log mismatch (-want +got):\n%s", diff)
	}
}

// TestExecutor_WriteKeywords tests that every write keyword takes the
// transactional path regardless of case and surrounding whitespace.
func TestExecutor_WriteKeywords(t *testing.T) {
	statements := []string{
		"INSERT INTO t VALUES (1)",
		"  update t SET a = 1",
		"\nDelete FROM t",
		"CREATE TABLE t2 (a INT)",
		"drop table t2",
		"\tALTER TABLE t ADD COLUMN b INT",
	}

	for _, sql := range statements {
		t.Run(strings.TrimSpace(sql), func(t *testing.T) {
			env := setupTestExecutor(t)

			result, err := env.executor.ExecuteQuery(context.Background(), sql)
			if err != nil {
				t.Fatalf("ExecuteQuery() error = %v", err)
			}
			if len(result.Rows) != 1 {
				t.Fatalf("len(Rows) = %d, want 1", len(result.Rows))
			}
			if n, ok := result.AffectedRows(); !ok || n != 0 {
				t.Errorf("AffectedRows() = %d, %v; want 0, true", n, ok)
			}
			wantLog := []string{"EXEC " + connection.ProbeStatement, "BEGIN", "EXEC " + sql, "COMMIT"}
			if diff := cmp.Diff(wantLog, env.backend.Log); diff != "" {
				t.Errorf("call log mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestExecutor_WriteRollback tests that a failed write is rolled back and
// surfaces as a QueryError carrying the database code.
func TestExecutor_WriteRollback(t *testing.T) {
	tests := []struct {
		name        string
		rollbackErr error
	}{
		{name: "RollbackSucceeds"},
		{name: "RollbackFails", rollbackErr: errors.New("rollback: session gone")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestExecutor(t)
			sql := "DELETE FROM users WHERE id = 999"
			dbErr := &conntest.DBError{Code: "100132", Message: "constraint violated"}
			env.backend.ExecErrs[sql] = dbErr
			env.backend.RollbackErr = tt.rollbackErr

			_, err := env.executor.ExecuteQuery(context.Background(), sql)
			if !errors.Is(err, apierror.ErrQueryError) {
				t.Fatalf("ExecuteQuery() error = %v, want QueryError", err)
			}
			if got := apierror.CodeOf(err); got != "100132" {
				t.Errorf("CodeOf() = %q, want 100132", got)
			}
			if !errors.Is(err, dbErr) {
				t.Error("original database error should be preserved")
			}

			wantLog := []string{"EXEC " + connection.ProbeStatement, "BEGIN", "EXEC " + sql, "ROLLBACK"}
			if diff := cmp.Diff(wantLog, env.backend.Log); diff != "" {
				t.Errorf("call log mismatch (-want +got):\n%s", diff)
			}

			if tt.rollbackErr == nil {
				return
			}
			var warned bool
			for _, e := range env.hook.AllEntries() {
				if e.Message != "Rollback failed" {
					continue
				}
				warned = true
				if e.Level != logrus.WarnLevel {
					t.Errorf("rollback failure level = %v, want warning", e.Level)
				}
				if got := e.Data["query"]; got != query.Preview(sql) {
					t.Errorf("rollback failure query field = %v, want %q", got, sql)
				}
			}
			if !warned {
				t.Error("rollback failure should be logged")
			}
		})
	}
}

// TestExecutor_ErrorClassification tests the mapping of failures onto kinds.
func TestExecutor_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		queryErr error
		wantKind apierror.Kind
		wantCode string
	}{
		{
			name:     "DatabaseError",
			queryErr: &conntest.DBError{Code: "002003", Message: "Object 'USERS' does not exist"},
			wantKind: apierror.KindQueryError,
			wantCode: "002003",
		},
		{
			name:     "DroppedConnection",
			queryErr: conntest.ErrBroken,
			wantKind: apierror.KindConnectionUnavailable,
		},
		{
			name:     "Unexpected",
			queryErr: errors.New("decoder exploded"),
			wantKind: apierror.KindUnknownExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestExecutor(t)
			sql := "SELECT * FROM users"
			env.backend.QueryErrs = map[string]error{sql: tt.queryErr}

			_, err := env.executor.ExecuteQuery(context.Background(), sql)
			if err == nil {
				t.Fatal("ExecuteQuery() should fail")
			}
			if got := apierror.KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", got, tt.wantKind)
			}
			if got := apierror.CodeOf(err); got != tt.wantCode {
				t.Errorf("CodeOf() = %q, want %q", got, tt.wantCode)
			}

			entry := env.hook.LastEntry()
			if entry == nil || entry.Level != logrus.ErrorLevel {
				t.Fatalf("last log entry = %+v, want an error entry", entry)
			}
			if entry.Data["kind"] != tt.wantKind {
				t.Errorf("logged kind = %v, want %v", entry.Data["kind"], tt.wantKind)
			}
			if _, ok := entry.Data["duration"]; !ok {
				t.Error("failure log should carry the duration")
			}
		})
	}
}

// TestExecutor_Idempotent tests that repeating SELECT 1 yields the same result
// without touching session state.
func TestExecutor_Idempotent(t *testing.T) {
	env := setupTestExecutor(t)
	env.backend.Results["SELECT 1"] = conntest.Result{Columns: []string{"1"}, Rows: [][]any{{int64(1)}}}
	ctx := context.Background()

	first, err := env.executor.ExecuteQuery(ctx, "SELECT 1")
	if err != nil {
		t.Fatalf("first ExecuteQuery() error = %v", err)
	}
	second, err := env.executor.ExecuteQuery(ctx, "SELECT 1")
	if err != nil {
		t.Fatalf("second ExecuteQuery() error = %v", err)
	}

	if diff := cmp.Diff(first.Rows, second.Rows); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
	if env.backend.Dials != 1 {
		t.Errorf("Dials = %d, want 1", env.backend.Dials)
	}
	for _, entry := range env.backend.Log {
		if entry == "BEGIN" || strings.HasPrefix(entry, "EXEC USE") {
			t.Errorf("unexpected state change %q", entry)
		}
	}
	if env.manager.State() != connection.StateLive {
		t.Errorf("State() = %q, want live", env.manager.State())
	}
}

// TestExecutor_TransparentReconnect tests that a dropped connection is rebuilt
// before the statement runs.
func TestExecutor_TransparentReconnect(t *testing.T) {
	env := setupTestExecutor(t)
	sql := "SELECT name FROM users"
	env.backend.Results[sql] = conntest.Result{Columns: []string{"name"}, Rows: [][]any{{"Alice"}}}

	env.backend.Last().Break()

	result, err := env.executor.ExecuteQuery(context.Background(), sql)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Errorf("len(Rows) = %d, want 1", len(result.Rows))
	}
	if env.backend.Dials != 2 {
		t.Errorf("Dials = %d, want 2", env.backend.Dials)
	}
	if got := env.backend.Log[len(env.backend.Log)-1]; got != "QUERY "+sql {
		t.Errorf("last call = %q, want the query on the new connection", got)
	}
}

// TestExecutor_ConnectionUnavailable tests that a connection failure is
// propagated unchanged.
func TestExecutor_ConnectionUnavailable(t *testing.T) {
	env := setupTestExecutor(t)
	env.backend.Last().Break()
	env.backend.DialErr = errors.New("dial tcp: i/o timeout")

	_, err := env.executor.ExecuteQuery(context.Background(), "SELECT 1")
	if !errors.Is(err, apierror.ErrConnectionUnavailable) {
		t.Fatalf("ExecuteQuery() error = %v, want ConnectionUnavailable", err)
	}
	for _, entry := range env.backend.Log {
		if entry == "QUERY SELECT 1" {
			t.Error("statement should not run without a connection")
		}
	}
}

// TestExecutor_LogsPreview tests that long statements are truncated in logs.
func TestExecutor_LogsPreview(t *testing.T) {
	env := setupTestExecutor(t)
	sql := "SELECT '" + strings.Repeat("x", 500) + "'"

	if _, err := env.executor.ExecuteQuery(context.Background(), sql); err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}

	entries := env.hook.AllEntries()
	if len(entries) == 0 {
		t.Fatal("expected log entries")
	}
	logged, _ := entries[0].Data["query"].(string)
	if logged != query.Preview(sql) {
		t.Errorf("logged query = %q", logged)
	}
	if len([]rune(logged)) != config.QueryPreviewLength+3 || !strings.HasSuffix(logged, "...") {
		t.Errorf("logged query length = %d, want %d with ellipsis", len([]rune(logged)), config.QueryPreviewLength+3)
	}
}

// TestExecutor_ClassificationWarning tests that parser disagreement is logged
// but does not change the execution path.
func TestExecutor_ClassificationWarning(t *testing.T) {
	env := setupTestExecutor(t)
	sql := "REPLACE INTO users (id, name) VALUES (1, 'Alice')"

	result, err := env.executor.ExecuteQuery(context.Background(), sql)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if result.Class != query.Read {
		t.Errorf("Class = %v, want read", result.Class)
	}
	if got := env.backend.Log[len(env.backend.Log)-1]; got != "QUERY "+sql {
		t.Errorf("last call = %q, want read path", got)
	}

	var warned bool
	for _, e := range env.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["parsed"] == "insert" {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a classification warning")
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "Short", in: "SELECT 1", want: "SELECT 1"},
		{name: "Exact", in: strings.Repeat("a", 200), want: strings.Repeat("a", 200)},
		{name: "Long", in: strings.Repeat("a", 201), want: strings.Repeat("a", 200) + "..."},
		{name: "Multibyte", in: strings.Repeat("é", 250), want: strings.Repeat("é", 200) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := query.Preview(tt.in); got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
		})
	}
}
