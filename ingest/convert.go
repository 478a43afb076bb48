package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c360/semfuse/schema"
)

// Accepted datetime layouts, tried in order. Dates parse with the first
// layout only.
const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// Convert normalizes a raw parsed value to the field's declared type.
// A nil or empty-string value converts to nil without error; a value that
// cannot be converted returns an error so the caller can null it out with a
// warning instead of aborting the batch.
//
// Dates and datetimes normalize to canonical strings (ISO date, RFC 3339)
// so they survive JSON round trips and compare lexically in filter order.
func Convert(f schema.FieldDef, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}

	switch f.BaseType() {
	case "INT", "INTEGER", "BIGINT", "SMALLINT", "TINYINT":
		return toInt(raw)
	case "DECIMAL", "FLOAT", "DOUBLE", "NUMERIC", "REAL":
		return toFloat(raw)
	case "DATE":
		return toDate(raw)
	case "DATETIME", "TIMESTAMP":
		return toDatetime(raw)
	case "BOOLEAN", "BOOL":
		return toBool(raw)
	case "ARRAY":
		return toArray(f, raw)
	case "VARCHAR", "STRING", "TEXT", "CHAR":
		return toString(raw), nil
	default:
		// Unknown declared type: pass the raw value through.
		return raw, nil
	}
}

// toInt accepts numeric strings with a fractional part ("3.0") by parsing
// through float and truncating, matching how relational exports often
// render integer columns.
func toInt(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float32:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to integer", v)
		}
		return int(f), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to integer", raw)
	}
}

func toFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float", raw)
	}
}

func toDate(raw any) (any, error) {
	s := strings.TrimSpace(toString(raw))
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		// A datetime value in a date column keeps its date part.
		if dt, dtErr := parseDatetime(s); dtErr == nil {
			return dt.Format(dateLayout), nil
		}
		return nil, fmt.Errorf("cannot parse %q as date", s)
	}
	return t.Format(dateLayout), nil
}

func toDatetime(raw any) (any, error) {
	s := strings.TrimSpace(toString(raw))
	t, err := parseDatetime(s)
	if err != nil {
		return nil, err
	}
	return t.Format(time.RFC3339), nil
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, datetimeLayout, dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as datetime", s)
}

func toBool(raw any) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	switch strings.ToLower(strings.TrimSpace(toString(raw))) {
	case "true", "1", "t", "y", "yes":
		return true, nil
	case "false", "0", "f", "n", "no":
		return false, nil
	default:
		return nil, fmt.Errorf("unrecognized boolean value %q", toString(raw))
	}
}

// toArray converts a native list element by element, or splits a delimited
// scalar on commas the way flat CSV exports carry list columns. A failed
// element nulls the whole value.
func toArray(f schema.FieldDef, raw any) (any, error) {
	elem := schema.FieldDef{Label: f.Label, DataType: f.ElementType()}

	var parts []any
	switch v := raw.(type) {
	case []any:
		parts = v
	case []string:
		parts = make([]any, len(v))
		for i, s := range v {
			parts[i] = s
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			parts = append(parts, strings.TrimSpace(s))
		}
	default:
		return nil, fmt.Errorf("cannot convert %T to array", raw)
	}

	out := make([]any, 0, len(parts))
	for _, p := range parts {
		converted, err := Convert(elem, p)
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		if converted != nil {
			out = append(out, converted)
		}
	}
	return out, nil
}

func toString(raw any) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}
