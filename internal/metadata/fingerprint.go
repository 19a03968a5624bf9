package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	quotedLiteral  = regexp.MustCompile(`'[^']*'`)
	numericLiteral = regexp.MustCompile(`\b\d+\b`)
	whitespaceRun  = regexp.MustCompile(`\s+`)

	fromTable   = regexp.MustCompile(`\bfrom\s+([a-z_][a-z0-9_]*)`)
	joinTable   = regexp.MustCompile(`\bjoin\s+([a-z_][a-z0-9_]*)`)
	updateTable = regexp.MustCompile(`\bupdate\s+([a-z_][a-z0-9_]*)`)
	insertTable = regexp.MustCompile(`\binsert\s+into\s+([a-z_][a-z0-9_]*)`)
	deleteTable = regexp.MustCompile(`\bdelete\s+from\s+([a-z_][a-z0-9_]*)`)
)

// NormalizeQuery strips literal values from a query so that executions
// differing only in literals reduce to the same text. String literals become
// '?', bare numbers become ?, and whitespace runs collapse to one space.
func NormalizeQuery(query string) string {
	if query == "" {
		return ""
	}
	normalized := quotedLiteral.ReplaceAllString(query, "'?'")
	normalized = numericLiteral.ReplaceAllString(normalized, "?")
	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	return strings.ToLower(strings.TrimSpace(normalized))
}

// Fingerprint returns a short stable identifier for a query's shape.
func Fingerprint(query string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(query)))
	return hex.EncodeToString(sum[:])[:12]
}

// TablesReferenced extracts table names from a query by scanning FROM, JOIN,
// UPDATE, INSERT INTO and DELETE FROM clauses. It is a lexical pass, not a
// parser: schema-qualified and quoted identifiers are not resolved.
func TablesReferenced(query string) []string {
	lower := strings.ToLower(query)

	var tables []string
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{fromTable, joinTable, updateTable, insertTable, deleteTable} {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				tables = append(tables, m[1])
			}
		}
	}
	return tables
}
