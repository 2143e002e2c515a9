package domain

// Exporter produces the flat, prefixed mapping consumed by listing, search and
// autocomplete collaborators.
type Exporter interface {
	Data() map[string]any
}

// Labeler returns a human-readable label, empty when the primary field is unset.
type Labeler interface {
	Label() string
}

// Validator checks required fields and value constraints before persistence.
type Validator interface {
	Validate() error
}

// Record is implemented by every editable entity.
type Record interface {
	Exporter
	Labeler
	Validator
}

func exportAll[T Exporter](items []T) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.Data())
	}
	return out
}

func merge(dst, src map[string]any) map[string]any {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
