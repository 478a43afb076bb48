package ingest

import "strconv"

// Lookup walks a decoded JSON value by dot-notation path: map keys by name,
// list elements by numeric index. The second return is false when the path
// does not resolve or resolves to nil.
func Lookup(value any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	current := value
	start := 0
	for start <= len(path) {
		end := start
		for end < len(path) && path[end] != '.' {
			end++
		}
		key := path[start:end]
		start = end + 1

		switch v := current.(type) {
		case map[string]any:
			next, ok := v[key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}

		if current == nil {
			return nil, false
		}
	}
	return current, true
}
