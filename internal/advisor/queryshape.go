package advisor

import (
	"regexp"
	"strings"
)

// QueryShape is a lexical decomposition of a sampled query. Extraction is
// pattern matching over lowercased text, not a SQL parser: it misfires on
// subqueries, aliases and quoted identifiers. Proposals built from it are
// advisory and reviewed, so approximate extraction is acceptable.
type QueryShape struct {
	Tables       []string
	WhereColumns []string
	JoinColumns  []string
	OrderColumns []string
	GroupColumns []string
}

var (
	shapeFrom  = regexp.MustCompile(`\bfrom\s+([a-z_][a-z0-9_]*)`)
	shapeJoin  = regexp.MustCompile(`\bjoin\s+([a-z_][a-z0-9_]*)`)
	shapeWhere = regexp.MustCompile(`where\s+.*?([a-z_][a-z0-9_]*)\s*[=<>]`)
	shapeAnd   = regexp.MustCompile(`\band\s+([a-z_][a-z0-9_]*)\s*[=<>]`)
	shapeOn    = regexp.MustCompile(`\bon\s+[a-z_.]+\.([a-z_][a-z0-9_]*)\s*=`)
	shapeOrder = regexp.MustCompile(`order\s+by\s+([a-z_][a-z0-9_,\s]+)`)
	shapeGroup = regexp.MustCompile(`group\s+by\s+([a-z_][a-z0-9_,\s]+)`)
	shapeIdent = regexp.MustCompile(`[a-z_][a-z0-9_]*`)
)

// ParseQueryShape extracts tables and filter columns from a query sample.
// An empty sample yields an empty shape.
func ParseQueryShape(sample string) QueryShape {
	if sample == "" {
		return QueryShape{}
	}
	lower := strings.ToLower(sample)

	shape := QueryShape{
		Tables:       captures(lower, shapeFrom, shapeJoin),
		WhereColumns: captures(lower, shapeWhere, shapeAnd),
		JoinColumns:  captures(lower, shapeOn),
	}
	if m := shapeOrder.FindStringSubmatch(lower); m != nil {
		shape.OrderColumns = dedupe(shapeIdent.FindAllString(m[1], -1))
	}
	if m := shapeGroup.FindStringSubmatch(lower); m != nil {
		shape.GroupColumns = dedupe(shapeIdent.FindAllString(m[1], -1))
	}
	return shape
}

// captures collects the first capture group of every match of every pattern,
// deduplicated in first-seen order.
func captures(text string, patterns ...*regexp.Regexp) []string {
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, m[1])
		}
	}
	return dedupe(out)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
