// Package sqlutil provides SQL identifier helpers for generated queries.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, etc.)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteIdentifiers quotes each name.
func QuoteIdentifiers(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = QuoteIdentifier(name)
	}
	return out
}

// OrderTerm builds a quoted ORDER BY term. A leading "-" sorts descending.
func OrderTerm(term string) string {
	if strings.HasPrefix(term, "-") {
		return QuoteIdentifier(strings.TrimPrefix(term, "-")) + " DESC"
	}
	return QuoteIdentifier(term) + " ASC"
}
