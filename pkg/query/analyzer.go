package query

import (
	"github.com/blastrain/vitess-sqlparser/sqlparser"
)

// Verdict is the parser's view of a statement.
type Verdict struct {
	// Known is false when the statement could not be parsed or its kind has
	// no read/write meaning to the parser.
	Known bool
	Class StatementClass
	Kind  string
}

// Disagrees reports whether the parser recognized the statement as a
// different class than keyword classification did.
func (v Verdict) Disagrees(class StatementClass) bool {
	return v.Known && v.Class != class
}

// Analyzer gives a parse-based second opinion on statement class. It is
// advisory: execution always follows the keyword class.
type Analyzer struct{}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze parses sql and reports what kind of statement it is.
func (a *Analyzer) Analyze(sql string) Verdict {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		// Snowflake syntax the MySQL grammar does not know.
		return Verdict{}
	}

	switch stmt.(type) {
	case *sqlparser.Select:
		return Verdict{Known: true, Class: Read, Kind: "select"}
	case *sqlparser.Union:
		return Verdict{Known: true, Class: Read, Kind: "union"}
	case *sqlparser.Insert:
		return Verdict{Known: true, Class: Write, Kind: "insert"}
	case *sqlparser.Update:
		return Verdict{Known: true, Class: Write, Kind: "update"}
	case *sqlparser.Delete:
		return Verdict{Known: true, Class: Write, Kind: "delete"}
	case *sqlparser.DDL:
		return Verdict{Known: true, Class: Write, Kind: "ddl"}
	default:
		return Verdict{}
	}
}
