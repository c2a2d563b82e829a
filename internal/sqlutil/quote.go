// Package sqlutil provides SQL identifier helpers for gorewinder.
package sqlutil

import (
	"strings"
)

// QuoteIdentifier quotes a MySQL identifier (table name, column name) with backticks.
// It escapes any existing backticks by doubling them.
// Example: "my_table" -> "`my_table`"
// Example: "my`table" -> "`my“table`"
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// UnquoteIdentifier strips one level of backtick or double-quote quoting.
// Unbalanced or unquoted input is returned unchanged.
// Example: "`users`" -> "users"
// Example: "\"users\"" -> "users"
func UnquoteIdentifier(name string) string {
	if len(name) < 2 {
		return name
	}
	first, last := name[0], name[len(name)-1]
	if first != last || (first != '`' && first != '"') {
		return name
	}
	inner := name[1 : len(name)-1]
	quote := string(first)
	return strings.ReplaceAll(inner, quote+quote, quote)
}

// QuoteIdentifiers quotes every name with QuoteIdentifier.
func QuoteIdentifiers(names []string) []string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = QuoteIdentifier(name)
	}
	return quoted
}
