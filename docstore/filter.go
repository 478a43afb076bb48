package docstore

import "strings"

// MatchFilter reports whether the document satisfies every clause of the
// filter. An empty or nil filter matches everything.
//
// A clause value that is a single-key map whose key starts with "$" is an
// operator test ($gt, $lt, $gte, $lte, $ne, $in, $exists). Any other value is
// a plain equality test. Operator tests other than $exists never match a
// missing or null field, and an unrecognized operator never matches at all,
// so a typoed filter narrows results instead of failing the query.
func MatchFilter(doc Document, filter map[string]any) bool {
	for field, cond := range filter {
		if !matchClause(doc, field, cond) {
			return false
		}
	}
	return true
}

func matchClause(doc Document, field string, cond any) bool {
	value, present := doc[field]

	if op, operand, ok := operatorClause(cond); ok {
		if op == "$exists" {
			want, _ := operand.(bool)
			return want == (present && value != nil)
		}
		if !present || value == nil {
			return false
		}
		switch op {
		case "$ne":
			return !matchesValue(value, operand)
		case "$in":
			items, ok := operand.([]any)
			if !ok {
				return false
			}
			for _, item := range items {
				if matchesValue(value, item) {
					return true
				}
			}
			return false
		case "$gt", "$gte", "$lt", "$lte":
			cmp, ok := compareValues(value, operand)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return cmp > 0
			case "$gte":
				return cmp >= 0
			case "$lt":
				return cmp < 0
			default:
				return cmp <= 0
			}
		default:
			return false
		}
	}

	if !present {
		return false
	}
	return matchesValue(value, cond)
}

// matchesValue is equality with array membership: an array-valued field
// matches when any element equals the operand, so a filter on an array
// foreign key selects holders of the value.
func matchesValue(value, operand any) bool {
	if items, ok := value.([]any); ok {
		for _, item := range items {
			if valuesEqual(item, operand) {
				return true
			}
		}
		return false
	}
	return valuesEqual(value, operand)
}

// operatorClause unwraps a single-key {"$op": operand} condition.
func operatorClause(cond any) (op string, operand any, ok bool) {
	m, isMap := cond.(map[string]any)
	if !isMap || len(m) != 1 {
		return "", nil, false
	}
	for k, v := range m {
		if strings.HasPrefix(k, "$") {
			return k, v, true
		}
	}
	return "", nil, false
}

// valuesEqual compares two values for equality, coercing across numeric
// kinds so an int document field matches a float64 from decoded JSON.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

// compareValues orders two values: numerically when both are numeric,
// lexically when both are strings. Anything else is incomparable.
func compareValues(a, b any) (int, bool) {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, false
	}
	return strings.Compare(as, bs), true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ApplyProjection reduces a document to the requested fields. A nil
// projection returns the document untouched; a non-nil projection copies
// only fields that are actually present, so absent fields stay absent
// rather than appearing as nulls.
func ApplyProjection(doc Document, fields []string) Document {
	if fields == nil {
		return doc
	}
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}
