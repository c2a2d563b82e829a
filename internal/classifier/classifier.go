// Package classifier extracts the target table of insert-style SQL statements.
//
// It is a heuristic, not a parser. A statement is recognized when, after
// optional leading whitespace, it starts with INSERT, optionally followed by
// IGNORE and INTO, and then a table reference. The reference may be schema
// qualified and quoted with backticks or double quotes; only the last segment
// of a qualified name is returned, so "db.users", "`db`.`users`" and
// "\"users\"" all resolve to "users". Anything else is reported as no match.
package classifier

import (
	"regexp"
	"strings"
)

// StatementSeparator splits a batch into individual statements.
const StatementSeparator = ";"

// insertPattern matches the INSERT prefix and captures the whole, possibly
// qualified, table reference chain that follows it.
var insertPattern = regexp.MustCompile("(?i)\\A\\s*INSERT(?:\\s+IGNORE)?(?:\\s+INTO)?\\s+((?:\\.*[`\"]?[^.\\s`\"(]+[`\"]?)*)")

// segmentPattern matches one dot-separated segment of a table reference chain.
var segmentPattern = regexp.MustCompile("\\.*[`\"]?([^.\\s`\"(]+)[`\"]?")

// InsertedTable returns the table targeted by a single insert statement.
// The boolean is false when the statement is not an insert or no table
// reference could be found.
func InsertedTable(statement string) (string, bool) {
	m := insertPattern.FindStringSubmatch(statement)
	if m == nil || m[1] == "" {
		return "", false
	}

	segments := segmentPattern.FindAllStringSubmatch(m[1], -1)
	if len(segments) == 0 {
		return "", false
	}
	table := segments[len(segments)-1][1]
	if table == "" {
		return "", false
	}
	return table, true
}

// Classify splits sql on StatementSeparator and returns the insert target of
// every fragment that has one, in statement order. Duplicates are kept; the
// caller decides on set semantics.
func Classify(sql string) []string {
	var tables []string
	for _, statement := range strings.Split(sql, StatementSeparator) {
		if table, ok := InsertedTable(statement); ok {
			tables = append(tables, table)
		}
	}
	return tables
}
