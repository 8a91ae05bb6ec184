// Package query executes single SQL statements against the managed connection.
package query

import (
	"strings"
)

// StatementClass decides the transactional envelope and result shape of a
// statement.
type StatementClass int

// Statement classes.
const (
	Read StatementClass = iota
	Write
)

// String returns the class name.
func (c StatementClass) String() string {
	if c == Write {
		return "write"
	}
	return "read"
}

// WriteKeywords are the leading keywords that mark a statement as Write.
var WriteKeywords = []string{"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER"}

// Classifier classifies statements by leading keyword.
//
// The match is a plain prefix test on the trimmed, upper-cased text. It does
// not parse SQL: a CTE such as "WITH x AS (...) DELETE ..." or a CALL to a
// mutating procedure is classified Read. Analyzer reports such cases without
// changing the class.
type Classifier struct {
	prefixes []string
}

// NewClassifier creates a classifier using WriteKeywords.
func NewClassifier() *Classifier {
	return &Classifier{prefixes: WriteKeywords}
}

// Classify returns the statement class of sql.
func (c *Classifier) Classify(sql string) StatementClass {
	upperSQL := strings.ToUpper(strings.TrimSpace(sql))
	for _, p := range c.prefixes {
		if strings.HasPrefix(upperSQL, p) {
			return Write
		}
	}
	return Read
}

// DefaultClassifier is the default SQL classifier instance.
var DefaultClassifier = NewClassifier()

// ClassifySQL is a convenience function using the default classifier.
func ClassifySQL(sql string) StatementClass {
	return DefaultClassifier.Classify(sql)
}

// IsWrite is a convenience function to check if SQL takes the write path.
func IsWrite(sql string) bool {
	return DefaultClassifier.Classify(sql) == Write
}
