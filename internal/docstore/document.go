package docstore

// Document is a snapshot of one stored document: an id plus a bag of
// JSON-typed fields. Numbers come back as float64 after the JSON round
// trip; the typed accessors below do the coercion.
type Document struct {
	ID     string
	Path   string
	Fields map[string]any
}

// Snapshot is a full-state query result. Subscriptions always deliver
// complete snapshots, never diffs.
type Snapshot struct {
	Docs []Document
}

// String returns a string field, or "" when absent or mistyped.
func (d *Document) String(field string) string {
	if s, ok := d.Fields[field].(string); ok {
		return s
	}
	return ""
}

// Bool returns a bool field, or false when absent or mistyped.
func (d *Document) Bool(field string) bool {
	if b, ok := d.Fields[field].(bool); ok {
		return b
	}
	return false
}

// Int64 returns a numeric field as int64, or 0 when absent or mistyped.
func (d *Document) Int64(field string) int64 {
	switch v := d.Fields[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Strings returns a string-array field. Non-string elements are
// dropped.
func (d *Document) Strings(field string) []string {
	raw, ok := d.Fields[field].([]any)
	if !ok {
		// Values written in-process may still carry the original type.
		if ss, ok := d.Fields[field].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
