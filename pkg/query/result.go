package query

import (
	"bytes"
	"encoding/json"
	"time"
)

// AffectedRowsColumn is the single column of a write result.
const AffectedRowsColumn = "affected_rows"

// Row is an ordered mapping from column name to value.
type Row struct {
	Columns []string
	Values  []any
}

// NewRow builds a row from parallel column and value slices. A repeated
// column name keeps its first position and takes the last value.
func NewRow(columns []string, values []any) Row {
	row := Row{
		Columns: make([]string, 0, len(columns)),
		Values:  make([]any, 0, len(values)),
	}
	index := make(map[string]int, len(columns))
	for i, col := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		if j, dup := index[col]; dup {
			row.Values[j] = v
			continue
		}
		index[col] = len(row.Columns)
		row.Columns = append(row.Columns, col)
		row.Values = append(row.Values, v)
	}
	return row
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the uniform outcome of one statement.
//
// A Read result holds zero or more rows in backend order. A Write result
// holds exactly one row, {"affected_rows": N}.
type Result struct {
	Class    StatementClass
	Rows     []Row
	Duration time.Duration
}

// newWriteResult builds the single-row write shape.
func newWriteResult(affected int64) []Row {
	return []Row{NewRow([]string{AffectedRowsColumn}, []any{affected})}
}

// AffectedRows returns N for a write result.
func (r *Result) AffectedRows() (int64, bool) {
	if r.Class != Write || len(r.Rows) != 1 {
		return 0, false
	}
	v, ok := r.Rows[0].Get(AffectedRowsColumn)
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// JSON renders the rows as a JSON array.
func (r *Result) JSON() (string, error) {
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// convertValue converts driver values to JSON-friendly Go types.
func convertValue(val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	default:
		return v
	}
}
