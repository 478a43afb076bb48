package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/metric"
)

// Dependencies carries the shared infrastructure a store backend uses.
// Zero values are fine: a nil Logger falls back to slog.Default and a nil
// Metrics disables recording.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

func (d Dependencies) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Memory is the in-process Store backend. Documents live in insertion order
// per collection with a primary-key index alongside, so repeated Finds over
// unmodified data return identical ordering.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	logger      *slog.Logger
	metrics     *metric.Metrics
}

type memCollection struct {
	spec      CollectionSpec
	validator *Validator
	docs      []Document
	byPK      map[string]int // normalized pk value -> index into docs
}

// NewMemory creates an empty in-memory store.
func NewMemory(deps Dependencies) *Memory {
	return &Memory{
		collections: make(map[string]*memCollection),
		logger:      deps.logger(),
		metrics:     deps.Metrics,
	}
}

func (m *Memory) record(operation, status string) {
	if m.metrics != nil {
		m.metrics.RecordStorageOperation("memory", operation, status)
	}
}

// EnsureCollection provisions a collection. Re-provisioning an existing
// collection replaces its spec and validator but keeps its documents.
func (m *Memory) EnsureCollection(_ context.Context, spec CollectionSpec) error {
	if spec.Name == "" {
		return errors.WrapInvalid(nil, "docstore", "EnsureCollection", "collection name cannot be empty")
	}

	validator, err := NewValidator(spec)
	if err != nil {
		m.record("ensure_collection", "error")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.collections[spec.Name]; ok {
		existing.spec = spec
		existing.validator = validator
	} else {
		m.collections[spec.Name] = &memCollection{
			spec:      spec,
			validator: validator,
			byPK:      make(map[string]int),
		}
	}

	m.record("ensure_collection", "success")
	return nil
}

// InsertMany appends documents. A duplicate primary key inside the batch or
// against stored documents rejects the whole batch without partial writes.
func (m *Memory) InsertMany(_ context.Context, collection string, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, err := m.collection(collection, "InsertMany")
	if err != nil {
		m.record("insert", "error")
		return err
	}

	prepared, err := col.prepare(docs, "InsertMany")
	if err != nil {
		m.record("insert", "error")
		return err
	}

	seen := make(map[string]bool, len(prepared))
	for _, p := range prepared {
		if p.pk == "" {
			continue
		}
		if _, exists := col.byPK[p.pk]; exists || seen[p.pk] {
			m.record("insert", "error")
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s=%q in collection %q",
					errors.ErrDuplicateEntity, col.spec.PrimaryKey, p.pk, collection),
				"docstore", "InsertMany", "enforce primary key uniqueness")
		}
		seen[p.pk] = true
	}

	for _, p := range prepared {
		if p.pk != "" {
			col.byPK[p.pk] = len(col.docs)
		}
		col.docs = append(col.docs, p.doc)
	}

	m.record("insert", "success")
	return nil
}

// UpsertBatch replaces documents matching on pkField in place and appends
// the rest, so ingestion reruns are idempotent without reordering survivors.
func (m *Memory) UpsertBatch(_ context.Context, collection string, docs []Document, pkField string) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result UpsertResult

	col, err := m.collection(collection, "UpsertBatch")
	if err != nil {
		m.record("upsert", "error")
		return result, err
	}

	if pkField != "" && pkField != col.spec.PrimaryKey {
		m.record("upsert", "error")
		return result, errors.WrapInvalid(
			fmt.Errorf("upsert key %q does not match declared primary key %q", pkField, col.spec.PrimaryKey),
			"docstore", "UpsertBatch", "resolve upsert key")
	}

	prepared, err := col.prepare(docs, "UpsertBatch")
	if err != nil {
		m.record("upsert", "error")
		return result, err
	}

	for _, p := range prepared {
		key := p.pk
		if pkField == "" {
			key = ""
		}

		if key != "" {
			if idx, exists := col.byPK[key]; exists {
				p.doc[IDField] = col.docs[idx][IDField]
				col.docs[idx] = p.doc
				result.Updated++
				continue
			}
			col.byPK[key] = len(col.docs)
		}
		col.docs = append(col.docs, p.doc)
		result.Inserted++
	}

	m.record("upsert", "success")
	return result, nil
}

// Find returns matching documents in insertion order.
func (m *Memory) Find(_ context.Context, collection string, filter map[string]any, projection []string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, err := m.collection(collection, "Find")
	if err != nil {
		m.record("find", "error")
		return nil, err
	}

	var out []Document
	for _, doc := range col.docs {
		if !MatchFilter(doc, filter) {
			continue
		}
		out = append(out, ApplyProjection(doc.Clone(), projection))
	}

	m.record("find", "success")
	return out, nil
}

// Count returns the number of documents in the collection.
func (m *Memory) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	col, err := m.collection(collection, "Count")
	if err != nil {
		m.record("count", "error")
		return 0, err
	}

	m.record("count", "success")
	return len(col.docs), nil
}

// Collections lists provisioned collection names, sorted.
func (m *Memory) Collections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Clear removes every document but keeps the collection provisioned.
func (m *Memory) Clear(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	col, err := m.collection(collection, "Clear")
	if err != nil {
		m.record("clear", "error")
		return err
	}

	col.docs = nil
	col.byPK = make(map[string]int)

	m.record("clear", "success")
	return nil
}

// Drop removes the collection entirely. Dropping an unknown collection is a
// no-op so teardown paths stay idempotent.
func (m *Memory) Drop(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections, collection)
	m.record("drop", "success")
	return nil
}

// collection resolves a provisioned collection. Callers hold the lock.
func (m *Memory) collection(name, method string) (*memCollection, error) {
	col, ok := m.collections[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrCollectionNotFound, name),
			"docstore", method, "resolve collection")
	}
	return col, nil
}

type preparedDoc struct {
	doc Document
	pk  string
}

// prepare validates and clones incoming documents, assigning store ids and
// extracting the declared primary key.
func (c *memCollection) prepare(docs []Document, method string) ([]preparedDoc, error) {
	out := make([]preparedDoc, 0, len(docs))
	for _, doc := range docs {
		if err := c.validator.Check(doc); err != nil {
			return nil, errors.WrapInvalid(err, "docstore", method, "validate document")
		}

		clone := doc.Clone()
		if _, ok := clone[IDField]; !ok {
			clone[IDField] = newDocID()
		}

		var pk string
		if c.spec.PrimaryKey != "" {
			if v, ok := clone[c.spec.PrimaryKey]; ok && v != nil {
				pk = KeyString(v)
			}
		}
		out = append(out, preparedDoc{doc: clone, pk: pk})
	}
	return out, nil
}
