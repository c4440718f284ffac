package docstore

import "sort"

// Direction orders query results by a field.
type Direction int

const (
	Asc Direction = iota
	Desc
)

type filter struct {
	field string
	value any
}

// Query describes a read over one collection: equality filters, a
// single order-by with direction, and a result limit. Zero limit means
// unlimited.
type Query struct {
	Path string

	filters    []filter
	orderField string
	dir        Direction
	limit      int
}

// Collection starts a query over the collection at path.
func Collection(path string) Query {
	return Query{Path: path}
}

// Where adds a field equality filter.
func (q Query) Where(field string, value any) Query {
	q.filters = append(q.filters, filter{field: field, value: value})
	return q
}

// OrderBy sets the sort field and direction. Ties are broken by
// document id ascending so results are deterministic.
func (q Query) OrderBy(field string, dir Direction) Query {
	q.orderField = field
	q.dir = dir
	return q
}

// Limit caps the number of returned documents.
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// apply evaluates the query against a full collection scan.
func (q Query) apply(docs []Document) []Document {
	out := docs
	if len(q.filters) > 0 {
		out = nil
		for _, d := range docs {
			if q.matches(&d) {
				out = append(out, d)
			}
		}
	}
	if q.orderField != "" {
		sorted := make([]Document, len(out))
		copy(sorted, out)
		sort.SliceStable(sorted, func(i, j int) bool {
			c := compareValues(sorted[i].Fields[q.orderField], sorted[j].Fields[q.orderField])
			if c == 0 {
				return sorted[i].ID < sorted[j].ID
			}
			if q.dir == Desc {
				return c > 0
			}
			return c < 0
		})
		out = sorted
	}
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

func (q Query) matches(d *Document) bool {
	for _, f := range q.filters {
		if !valuesEqual(d.Fields[f.field], f.value) {
			return false
		}
	}
	return true
}

// compareValues orders field values with numeric coercion: numbers
// first, then strings, then bools. Missing fields sort last.
func compareValues(a, b any) int {
	an, aIsNum := asFloat(a)
	bn, bIsNum := asFloat(b)
	switch {
	case aIsNum && bIsNum:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aIsNum:
		return -1
	case bIsNum:
		return 1
	}

	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	switch {
	case aIsStr && bIsStr:
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	case aIsStr:
		return -1
	case bIsStr:
		return 1
	}

	ab, aIsBool := a.(bool)
	bb, bIsBool := b.(bool)
	if aIsBool && bIsBool {
		switch {
		case !ab && bb:
			return -1
		case ab && !bb:
			return 1
		}
	}
	return 0
}

func valuesEqual(a, b any) bool {
	if an, ok := asFloat(a); ok {
		bn, ok := asFloat(b)
		return ok && an == bn
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
