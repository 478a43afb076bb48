package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/schema"
)

// CSVAdapter parses a delimited file with a header row. Every declared
// field must be covered by a header column (matched case-insensitively);
// a missing column is a configuration error for the whole file.
type CSVAdapter struct {
	conv converter
}

// Parse reads all rows and converts each cell per its declared type.
func (a *CSVAdapter) Parse(r io.Reader, entity schema.Entity) ([]docstore.Document, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"Ingest", "Parse", "read csv header")
	}
	if len(header) > 0 {
		// A UTF-8 BOM rides into the first header cell on exported files.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}

	indexes := make([]int, len(entity.Fields))
	for i, f := range entity.Fields {
		idx, ok := columns[strings.ToLower(f.Label)]
		if !ok {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: column %q not present in csv header",
					errors.ErrInvalidConfig, f.Label),
				"Ingest", "Parse", "map csv header for entity "+entity.Label)
		}
		indexes[i] = idx
	}

	var docs []docstore.Document
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			a.conv.logger.Warn("skipping malformed csv row",
				"entity", entity.Label, "row", rowNum, "error", err)
			continue
		}

		rec := make(docstore.Document, len(entity.Fields))
		for i, f := range entity.Fields {
			var raw any
			if idx := indexes[i]; idx < len(row) {
				raw = row[idx]
			}
			rec[f.Label] = a.conv.value(entity.Label, f, raw)
		}
		docs = append(docs, rec)
	}
	return docs, nil
}
