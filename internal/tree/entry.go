package tree

// Entry is one element of an import payload: an externally supplied
// hierarchical structure mapped onto the store by the importer.
//
// ID, when non-zero, preserves identity with an existing node; a zero ID
// creates a transient blank node. Attrs are copied verbatim onto the
// node's caller-defined columns. Children nest recursively.
type Entry struct {
	ID       int64          `yaml:"id,omitempty" json:"id,omitempty"`
	Attrs    map[string]any `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	Children []Entry        `yaml:"children,omitempty" json:"children,omitempty"`
}

// Flatten returns the ids declared anywhere in the payload, pre-order.
// Zero ids (transient entries) are skipped.
func Flatten(entries []Entry) []int64 {
	var ids []int64
	var walk func([]Entry)
	walk = func(es []Entry) {
		for _, e := range es {
			if e.ID != 0 {
				ids = append(ids, e.ID)
			}
			walk(e.Children)
		}
	}
	walk(entries)
	return ids
}
