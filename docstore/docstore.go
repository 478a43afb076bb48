package docstore

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// IDField is the internal identity field every stored document carries.
// Projections exclude it unless a caller asks for it explicitly.
const IDField = "_id"

// Document is one flat record: field label -> typed value.
type Document map[string]any

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// CollectionSpec describes one provisioned collection: its name, the field
// enforcing uniqueness, and an optional JSON-schema validator document.
type CollectionSpec struct {
	Name       string         `json:"name"`
	PrimaryKey string         `json:"primary_key,omitempty"`
	Validator  map[string]any `json:"validator,omitempty"`
}

// UpsertResult reports the outcome of a batch upsert.
type UpsertResult struct {
	Inserted int
	Updated  int
}

// Store is the document backend the engine reads and writes through.
// Both backends return stable order for repeated identical Finds against
// unmodified data: memory preserves insertion order, KV scans keys sorted.
type Store interface {
	// EnsureCollection provisions a collection with its validator and
	// primary-key uniqueness requirement. Idempotent.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error

	// InsertMany appends documents, assigning store ids where absent.
	InsertMany(ctx context.Context, collection string, docs []Document) error

	// UpsertBatch replaces-or-inserts each document keyed on pkField.
	// With an empty pkField every document is appended under a fresh id.
	UpsertBatch(ctx context.Context, collection string, docs []Document, pkField string) (UpsertResult, error)

	// Find returns documents matching the filter, projected to the given
	// fields. A nil projection returns documents as stored.
	Find(ctx context.Context, collection string, filter map[string]any, projection []string) ([]Document, error)

	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Collections lists provisioned collection names, sorted.
	Collections(ctx context.Context) ([]string, error)

	// Clear removes every document from the collection but keeps it provisioned.
	Clear(ctx context.Context, collection string) error

	// Drop removes the collection and its documents entirely.
	Drop(ctx context.Context, collection string) error
}

// newDocID returns a store-assigned identity for append-mode documents.
func newDocID() string {
	return uuid.NewString()
}

// KeyString normalizes a key value into a stable string so that the same
// logical key matches whether it arrived as int, int64, or a JSON float64.
// Integral floats print without a fraction. Primary-key indexing and join
// hashing both rely on this.
func KeyString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return floatKey(float64(n))
	case float64:
		return floatKey(n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func floatKey(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// sanitizeKeyPart maps an arbitrary key value onto the character set NATS KV
// keys allow. The memory backend uses the same mapping so document identity
// is backend-independent.
func sanitizeKeyPart(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '=':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
