package query

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRow(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		values  []any
		want    Row
	}{
		{
			name:    "Distinct",
			columns: []string{"id", "name"},
			values:  []any{1, "Alice"},
			want:    Row{Columns: []string{"id", "name"}, Values: []any{1, "Alice"}},
		},
		{
			name:    "DuplicateColumn",
			columns: []string{"id", "name", "id"},
			values:  []any{1, "Alice", 2},
			want:    Row{Columns: []string{"id", "name"}, Values: []any{2, "Alice"}},
		},
		{
			name:    "Empty",
			columns: []string{},
			values:  []any{},
			want:    Row{Columns: []string{}, Values: []any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRow(tt.columns, tt.values)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NewRow() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRow_MarshalJSON(t *testing.T) {
	row := NewRow([]string{"zeta", "alpha", "note"}, []any{int64(3), nil, `say "hi"`})

	b, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"zeta":3,"alpha":null,"note":"say \"hi\""}`; string(b) != want {
		t.Errorf("Marshal() = %s, want %s", b, want)
	}
}

func TestResult_AffectedRows(t *testing.T) {
	write := &Result{Class: Write, Rows: newWriteResult(7)}
	if n, ok := write.AffectedRows(); !ok || n != 7 {
		t.Errorf("AffectedRows() = %d, %v; want 7, true", n, ok)
	}
	if s, _ := write.JSON(); s != `[{"affected_rows":7}]` {
		t.Errorf("JSON() = %s", s)
	}

	read := &Result{Class: Read, Rows: []Row{NewRow([]string{"affected_rows"}, []any{int64(7)})}}
	if _, ok := read.AffectedRows(); ok {
		t.Error("read result should not report affected rows")
	}

	empty := &Result{Class: Read}
	if s, _ := empty.JSON(); s != "[]" {
		t.Errorf("JSON() of nil rows = %s, want []", s)
	}
}

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "Nil", in: nil, want: nil},
		{name: "Bytes", in: []byte("abc"), want: "abc"},
		{name: "Int", in: int64(5), want: int64(5)},
		{name: "String", in: "x", want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, convertValue(tt.in)); diff != "" {
				t.Errorf("convertValue() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
