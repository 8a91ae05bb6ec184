package query

import (
	"strings"
	"unicode"
)

// Rewriter renames Snowflake-only functions so the statement runs on a local
// DuckDB backend. Only function-name tokens are replaced; everything else,
// including quoted identifiers, literals and comments, is kept byte for byte.
type Rewriter struct {
	renames map[string]string
}

// NewDuckDBRewriter creates a rewriter with the Snowflake to DuckDB function
// renames.
func NewDuckDBRewriter() *Rewriter {
	return &Rewriter{
		renames: map[string]string{
			"IFF":     "IF",
			"NVL":     "COALESCE",
			"IFNULL":  "COALESCE",
			"LISTAGG": "STRING_AGG",
		},
	}
}

// Rewrite returns the rewritten statement and whether anything changed.
// A name is renamed only when it is a bare word followed by an opening
// parenthesis, so columns and qualified names such as s.nvl( are left alone.
func (r *Rewriter) Rewrite(sql string) (string, bool) {
	var b strings.Builder
	modified := false

	for i := 0; i < len(sql); {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			end := skipQuoted(sql, i, c)
			b.WriteString(sql[i:end])
			i = end
		case c == '-' && strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			b.WriteString(sql[i : i+end])
			i += end
		case c == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = len(sql)
			} else {
				end = i + 2 + end + 2
			}
			b.WriteString(sql[i:end])
			i = end
		case isWordByte(c):
			end := i
			for end < len(sql) && isWordByte(sql[end]) {
				end++
			}
			word := sql[i:end]
			if to, ok := r.renames[strings.ToUpper(word)]; ok && r.isCall(sql, i, end) {
				b.WriteString(to)
				modified = true
			} else {
				b.WriteString(word)
			}
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}

	if !modified {
		return sql, false
	}
	return b.String(), true
}

// isCall reports whether the word at sql[start:end] is an unqualified
// function call.
func (r *Rewriter) isCall(sql string, start, end int) bool {
	if start > 0 && sql[start-1] == '.' {
		return false
	}
	rest := strings.TrimLeftFunc(sql[end:], unicode.IsSpace)
	return strings.HasPrefix(rest, "(")
}

// skipQuoted returns the index just past the quoted section opened at start.
// A doubled quote character is an escape. An unterminated section runs to
// the end of the text.
func skipQuoted(sql string, start int, quote byte) int {
	for i := start + 1; i < len(sql); i++ {
		if sql[i] != quote {
			continue
		}
		if i+1 < len(sql) && sql[i+1] == quote {
			i++
			continue
		}
		return i + 1
	}
	return len(sql)
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
