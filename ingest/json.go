package ingest

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/schema"
)

var ingestJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONAdapter parses a JSON file holding an array of objects, or a single
// object treated as a one-element array. Each field's json_path hint is a
// dot-notation path into the object; fields without a hint are skipped.
type JSONAdapter struct {
	conv converter
}

// Parse extracts one document per top-level object.
func (a *JSONAdapter) Parse(r io.Reader, entity schema.Entity) ([]docstore.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapTransient(err, "Ingest", "Parse", "read json source")
	}

	var content any
	if err := ingestJSON.Unmarshal(data, &content); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"Ingest", "Parse", "parse json document")
	}

	var items []any
	switch v := content.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: expected a json array or object, got %T",
				errors.ErrParsingFailed, content),
			"Ingest", "Parse", "parse json document")
	}

	var docs []docstore.Document
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			a.conv.logger.Warn("skipping non-object json item",
				"entity", entity.Label, "index", i)
			continue
		}

		rec := make(docstore.Document, len(entity.Fields))
		for _, f := range entity.Fields {
			if f.JSONPath == "" {
				continue
			}
			var raw any
			if v, found := Lookup(obj, f.JSONPath); found {
				raw = v
			}
			rec[f.Label] = a.conv.value(entity.Label, f, raw)
		}
		if keepRecord(entity, rec) {
			docs = append(docs, rec)
		} else {
			a.conv.logger.Debug("skipping json item without usable values",
				"entity", entity.Label, "index", i)
		}
	}
	return docs, nil
}
