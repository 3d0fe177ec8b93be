package tree

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Scope is the tuple of partition column values for a node. A nil value
// is a SQL NULL, which is a valid and distinct partition key.
//
// Every invariant of the index is evaluated per distinct scope tuple:
// two nodes in different scopes are mutually invisible.
type Scope map[string]*string

// Key returns a canonical string key for the scope tuple, suitable for
// grouping partitions in Go. Columns are consumed in the given order so
// the key is stable regardless of map iteration. String values are NFC
// normalized so that partition identity is unicode-stable.
//
// NULL is encoded distinctly from the empty string.
func (s Scope) Key(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, col := range columns {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		v, ok := s[col]
		if !ok || v == nil {
			b.WriteString("\x00null")
			continue
		}
		b.WriteByte('=')
		b.WriteString(norm.NFC.String(*v))
	}
	return b.String()
}

// Equal reports whether two scopes agree on every given column.
// NULL only equals NULL.
func (s Scope) Equal(other Scope, columns []string) bool {
	for _, col := range columns {
		a, b := s[col], other[col]
		switch {
		case a == nil && b == nil:
			continue
		case a == nil || b == nil:
			return false
		case norm.NFC.String(*a) != norm.NFC.String(*b):
			return false
		}
	}
	return true
}

// ScopeValue is a convenience for building scope literals in callers and
// tests: ScopeValue("acme") yields a non-NULL value.
func ScopeValue(v string) *string {
	return &v
}
