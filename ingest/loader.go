package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/metric"
	"github.com/c360/semfuse/schema"
)

// Dependencies carries what the loader needs. Logger and Metrics are
// optional.
type Dependencies struct {
	Registry *schema.Registry
	Store    docstore.Store
	Logger   *slog.Logger
	Metrics  *metric.Metrics
}

// Loader provisions collections and ingests source files for every entity
// the registry declares.
type Loader struct {
	registry *schema.Registry
	store    docstore.Store
	logger   *slog.Logger
	metrics  *metric.Metrics
	adapters map[schema.SourceKind]Adapter
}

// Report aggregates the outcome of one directory load.
type Report struct {
	Entities int // entities with a source file found
	Missing  int // entities whose source file was absent
	Inserted int
	Updated  int
	Skipped  int // records dropped for a missing primary key value
}

// NewLoader creates a loader.
func NewLoader(deps Dependencies) (*Loader, error) {
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(nil, "Loader", "NewLoader", "schema registry is required")
	}
	if deps.Store == nil {
		return nil, errors.WrapInvalid(nil, "Loader", "NewLoader", "document store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adapters := make(map[schema.SourceKind]Adapter, 3)
	for _, kind := range []schema.SourceKind{schema.SourceCSV, schema.SourceXML, schema.SourceJSON} {
		a, err := NewAdapter(kind, logger, deps.Metrics)
		if err != nil {
			return nil, err
		}
		adapters[kind] = a
	}

	return &Loader{
		registry: deps.Registry,
		store:    deps.Store,
		logger:   logger,
		metrics:  deps.Metrics,
		adapters: adapters,
	}, nil
}

// Provision ensures a collection with validator and declared primary key
// exists for every registered entity.
func (l *Loader) Provision(ctx context.Context) error {
	for _, entity := range l.registry.Entities() {
		spec := docstore.SpecForEntity(entity)
		if err := l.store.EnsureCollection(ctx, spec); err != nil {
			return errors.Wrap(err, "Loader", "Provision",
				"provision collection for entity "+entity.Label)
		}
		l.logger.Debug("collection provisioned",
			"entity", entity.Label, "collection", spec.Name)
	}
	return nil
}

// LoadDir ingests every entity whose source file exists under dir, fanning
// out one goroutine per declared source. An entity without a file is
// skipped with a warning; parse and store failures abort the whole load.
func (l *Loader) LoadDir(ctx context.Context, dir string) (Report, error) {
	var (
		mu     sync.Mutex
		report Report
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, source := range l.registry.Sources() {
		g.Go(func() error {
			start := time.Now()
			for _, decl := range source.Entities {
				entity, err := l.registry.Entity(decl.Label)
				if err != nil {
					return err
				}

				path := filepath.Join(dir, sourceFile(entity.EntityDecl))
				if _, err := os.Stat(path); err != nil {
					l.logger.Warn("source file not found, skipping entity",
						"entity", entity.Label, "path", path)
					mu.Lock()
					report.Missing++
					mu.Unlock()
					continue
				}

				result, skipped, err := l.LoadEntity(ctx, entity, path)
				if err != nil {
					return err
				}
				mu.Lock()
				report.Entities++
				report.Inserted += result.Inserted
				report.Updated += result.Updated
				report.Skipped += skipped
				mu.Unlock()
			}
			if l.metrics != nil {
				l.metrics.RecordIngestDuration(source.Name, time.Since(start))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	l.logger.Info("data directory ingested", "dir", dir,
		"entities", report.Entities, "missing", report.Missing,
		"inserted", report.Inserted, "updated", report.Updated,
		"skipped_records", report.Skipped)
	return report, nil
}

// LoadEntity parses one source file and upserts its records into the
// entity's collection, keyed on the declared primary key when there is one.
// Records without a primary key value are dropped with a warning.
func (l *Loader) LoadEntity(ctx context.Context, entity schema.Entity, path string) (docstore.UpsertResult, int, error) {
	adapter, ok := l.adapters[entity.Kind]
	if !ok {
		return docstore.UpsertResult{}, 0, errors.WrapInvalid(nil,
			"Loader", "LoadEntity", "no adapter for source kind "+string(entity.Kind))
	}

	f, err := os.Open(path)
	if err != nil {
		return docstore.UpsertResult{}, 0, errors.WrapTransient(err,
			"Loader", "LoadEntity", "open source file "+path)
	}
	defer f.Close()

	docs, err := adapter.Parse(f, entity)
	if err != nil {
		l.recordIngest(entity.Label, "error", 0)
		return docstore.UpsertResult{}, 0, err
	}

	pkField := ""
	skipped := 0
	if pk, hasPK := entity.PrimaryKey(); hasPK {
		pkField = pk.Label
		kept := docs[:0]
		for _, d := range docs {
			if d[pkField] == nil {
				l.logger.Warn("record missing primary key value, skipping",
					"entity", entity.Label, "field", pkField)
				skipped++
				continue
			}
			kept = append(kept, d)
		}
		docs = kept
	}

	if len(docs) == 0 {
		l.logger.Warn("no usable records parsed", "entity", entity.Label, "path", path)
		l.recordIngest(entity.Label, "empty", 0)
		return docstore.UpsertResult{}, skipped, nil
	}

	result, err := l.store.UpsertBatch(ctx, entity.CollectionName(), docs, pkField)
	if err != nil {
		l.recordIngest(entity.Label, "error", 0)
		return docstore.UpsertResult{}, skipped, errors.Wrap(err,
			"Loader", "LoadEntity", "upsert records for entity "+entity.Label)
	}

	l.recordIngest(entity.Label, "success", result.Inserted+result.Updated)
	l.logger.Info("entity ingested", "entity", entity.Label, "path", path,
		"inserted", result.Inserted, "updated", result.Updated, "skipped", skipped)
	return result, skipped, nil
}

func (l *Loader) recordIngest(entity, status string, count int) {
	if l.metrics != nil {
		l.metrics.RecordIngest(entity, status, count)
	}
}

// sourceFile returns the file name an entity is ingested from: the declared
// override, or "<label lowercased>.<kind>".
func sourceFile(decl schema.EntityDecl) string {
	if decl.File != "" {
		return decl.File
	}
	return strings.ToLower(decl.Label) + "." + string(decl.Kind)
}
