package ingest

import (
	"io"
	"log/slog"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/metric"
	"github.com/c360/semfuse/schema"
)

// Adapter parses one source file format into flat documents, field values
// already converted to their declared types.
type Adapter interface {
	Parse(r io.Reader, entity schema.Entity) ([]docstore.Document, error)
}

// NewAdapter returns the adapter for a source kind.
func NewAdapter(kind schema.SourceKind, logger *slog.Logger, metrics *metric.Metrics) (Adapter, error) {
	conv := newConverter(logger, metrics)
	switch kind {
	case schema.SourceCSV:
		return &CSVAdapter{conv: conv}, nil
	case schema.SourceXML:
		return &XMLAdapter{conv: conv}, nil
	case schema.SourceJSON:
		return &JSONAdapter{conv: conv}, nil
	default:
		return nil, errors.WrapInvalid(nil, "Ingest", "NewAdapter",
			"unsupported source kind "+string(kind))
	}
}

// converter applies Convert with the recovery contract shared by all
// adapters: a failed conversion becomes a null value with a logged warning
// and a parse-failure count, never a batch error.
type converter struct {
	logger  *slog.Logger
	metrics *metric.Metrics
}

func newConverter(logger *slog.Logger, metrics *metric.Metrics) converter {
	if logger == nil {
		logger = slog.Default()
	}
	return converter{logger: logger, metrics: metrics}
}

func (c converter) value(entityLabel string, f schema.FieldDef, raw any) any {
	v, err := Convert(f, raw)
	if err != nil {
		c.logger.Warn("type conversion failed, value set to null",
			"entity", entityLabel, "field", f.Label, "error", err)
		if c.metrics != nil {
			c.metrics.RecordParseFailure(entityLabel)
		}
		return nil
	}
	return v
}

// keepRecord applies the record admission rule shared by the XML and JSON
// adapters: a record with a declared primary key must carry a value for it;
// without a primary key it must carry at least one non-null value.
func keepRecord(entity schema.Entity, rec docstore.Document) bool {
	if pk, ok := entity.PrimaryKey(); ok {
		return rec[pk.Label] != nil
	}
	for _, v := range rec {
		if v != nil {
			return true
		}
	}
	return false
}
