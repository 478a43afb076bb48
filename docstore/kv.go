package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/time/rate"

	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/natsclient"
)

var kvJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// specPrefix namespaces collection specs away from document keys. Document
// keys are "<collection>.<docid>" so a collection named "_collections" would
// collide, but sanitizeKeyPart never produces a leading underscore from the
// schema loader's validated labels.
const specPrefix = "_collections."

// KVConfig tunes the NATS-backed Store.
type KVConfig struct {
	// Bucket is the JetStream KV bucket holding documents and specs.
	Bucket string
	// RateLimit caps raw KV operations per second. Zero disables throttling.
	RateLimit float64
	// RateBurst is the throttle burst size when RateLimit is set.
	RateBurst int
}

// DefaultKVConfig returns production defaults.
func DefaultKVConfig() KVConfig {
	return KVConfig{
		Bucket:    "semfuse_docs",
		RateLimit: 0,
		RateBurst: 64,
	}
}

// Validate checks the configuration.
func (c KVConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", errors.ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit cannot be negative", errors.ErrInvalidConfig)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("%w: rate burst must be positive when rate limit is set", errors.ErrInvalidConfig)
	}
	return nil
}

// KV is the NATS JetStream KV Store backend. Documents live one-per-key as
// "<collection>.<docid>"; collection specs persist under "_collections." so
// a restarted process rediscovers validators and primary keys.
type KV struct {
	store   *natsclient.KVStore
	limiter *rate.Limiter
	deps    Dependencies

	mu         sync.RWMutex
	specs      map[string]CollectionSpec
	validators map[string]*Validator
}

// NewKV creates the bucket if needed and loads any persisted collection
// specs.
func NewKV(ctx context.Context, client *natsclient.Client, cfg KVConfig, deps Dependencies) (*KV, error) {
	if client == nil {
		return nil, errors.WrapInvalid(nil, "docstore", "NewKV", "nats client cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "docstore", "NewKV", "validate config")
	}

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "semfuse document collections",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "docstore", "NewKV", "create KV bucket")
	}

	kv := &KV{
		store:      client.NewKVStore(bucket),
		deps:       deps,
		specs:      make(map[string]CollectionSpec),
		validators: make(map[string]*Validator),
	}
	if cfg.RateLimit > 0 {
		kv.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	if err := kv.loadSpecs(ctx); err != nil {
		return nil, err
	}
	return kv, nil
}

func (k *KV) record(operation, status string) {
	if k.deps.Metrics != nil {
		k.deps.Metrics.RecordStorageOperation("kv", operation, status)
	}
}

func (k *KV) throttle(ctx context.Context) error {
	if k.limiter == nil {
		return nil
	}
	return k.limiter.Wait(ctx)
}

func docKey(collection, id string) string {
	return sanitizeKeyPart(collection) + "." + sanitizeKeyPart(id)
}

func (k *KV) loadSpecs(ctx context.Context) error {
	keys, err := k.store.ListKeys(ctx, specPrefix)
	if err != nil {
		return errors.WrapTransient(err, "docstore", "loadSpecs", "list collection specs")
	}

	for _, key := range keys {
		entry, err := k.store.Get(ctx, key)
		if err != nil {
			return errors.WrapTransient(err, "docstore", "loadSpecs", "read collection spec")
		}
		var spec CollectionSpec
		if err := kvJSON.Unmarshal(entry.Value, &spec); err != nil {
			return errors.WrapFatal(err, "docstore", "loadSpecs", "decode collection spec")
		}
		validator, err := NewValidator(spec)
		if err != nil {
			return err
		}
		k.specs[spec.Name] = spec
		k.validators[spec.Name] = validator
	}
	return nil
}

// EnsureCollection persists the spec and compiles its validator.
// Re-provisioning replaces both but leaves stored documents alone.
func (k *KV) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	if spec.Name == "" {
		return errors.WrapInvalid(nil, "docstore", "EnsureCollection", "collection name cannot be empty")
	}

	validator, err := NewValidator(spec)
	if err != nil {
		k.record("ensure_collection", "error")
		return err
	}

	data, err := kvJSON.Marshal(spec)
	if err != nil {
		k.record("ensure_collection", "error")
		return errors.WrapFatal(err, "docstore", "EnsureCollection", "encode collection spec")
	}

	if err := k.throttle(ctx); err != nil {
		return errors.WrapTransient(err, "docstore", "EnsureCollection", "throttle")
	}
	if _, err := k.store.Put(ctx, specPrefix+sanitizeKeyPart(spec.Name), data); err != nil {
		k.record("ensure_collection", "error")
		return errors.WrapTransient(err, "docstore", "EnsureCollection", "persist collection spec")
	}

	k.mu.Lock()
	k.specs[spec.Name] = spec
	k.validators[spec.Name] = validator
	k.mu.Unlock()

	k.record("ensure_collection", "success")
	return nil
}

func (k *KV) spec(collection, method string) (CollectionSpec, *Validator, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	spec, ok := k.specs[collection]
	if !ok {
		return CollectionSpec{}, nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrCollectionNotFound, collection),
			"docstore", method, "resolve collection")
	}
	return spec, k.validators[collection], nil
}

// keyFor derives the document key. Documents with a primary key live under
// its sanitized value so reingestion overwrites in place; keyless documents
// get a fresh uuid and only ever append.
func keyFor(collection string, spec CollectionSpec, doc Document) (key string, keyed bool) {
	if spec.PrimaryKey != "" {
		if v, ok := doc[spec.PrimaryKey]; ok && v != nil {
			return docKey(collection, KeyString(v)), true
		}
	}
	return docKey(collection, newDocID()), false
}

// InsertMany appends documents, rejecting primary-key collisions. Documents
// written before a failing one stay written; callers treat a partial batch
// as a reingestion trigger, not corruption.
func (k *KV) InsertMany(ctx context.Context, collection string, docs []Document) error {
	spec, validator, err := k.spec(collection, "InsertMany")
	if err != nil {
		k.record("insert", "error")
		return err
	}

	for _, doc := range docs {
		if err := validator.Check(doc); err != nil {
			k.record("insert", "error")
			return errors.WrapInvalid(err, "docstore", "InsertMany", "validate document")
		}

		clone := doc.Clone()
		if _, ok := clone[IDField]; !ok {
			clone[IDField] = newDocID()
		}
		key, keyed := keyFor(collection, spec, clone)

		data, err := kvJSON.Marshal(clone)
		if err != nil {
			k.record("insert", "error")
			return errors.WrapFatal(err, "docstore", "InsertMany", "encode document")
		}

		if err := k.throttle(ctx); err != nil {
			return errors.WrapTransient(err, "docstore", "InsertMany", "throttle")
		}
		if _, err := k.store.Create(ctx, key, data); err != nil {
			k.record("insert", "error")
			if keyed && natsclient.IsKVConflictError(err) {
				return errors.WrapInvalid(
					fmt.Errorf("%w: key %q in collection %q", errors.ErrDuplicateEntity, key, collection),
					"docstore", "InsertMany", "enforce primary key uniqueness")
			}
			return errors.WrapTransient(err, "docstore", "InsertMany", "create document")
		}
	}

	k.record("insert", "success")
	return nil
}

// UpsertBatch writes each document under its primary-key-derived key,
// preserving the stored identity field on replacement.
func (k *KV) UpsertBatch(ctx context.Context, collection string, docs []Document, pkField string) (UpsertResult, error) {
	var result UpsertResult

	spec, validator, err := k.spec(collection, "UpsertBatch")
	if err != nil {
		k.record("upsert", "error")
		return result, err
	}
	if pkField != "" && pkField != spec.PrimaryKey {
		k.record("upsert", "error")
		return result, errors.WrapInvalid(
			fmt.Errorf("upsert key %q does not match declared primary key %q", pkField, spec.PrimaryKey),
			"docstore", "UpsertBatch", "resolve upsert key")
	}

	for _, doc := range docs {
		if err := validator.Check(doc); err != nil {
			k.record("upsert", "error")
			return result, errors.WrapInvalid(err, "docstore", "UpsertBatch", "validate document")
		}

		clone := doc.Clone()
		key, keyed := keyFor(collection, spec, clone)
		if pkField == "" {
			key, keyed = docKey(collection, newDocID()), false
		}

		existing := false
		if keyed {
			if err := k.throttle(ctx); err != nil {
				return result, errors.WrapTransient(err, "docstore", "UpsertBatch", "throttle")
			}
			entry, err := k.store.Get(ctx, key)
			switch {
			case err == nil:
				existing = true
				var prior Document
				if err := kvJSON.Unmarshal(entry.Value, &prior); err == nil {
					if id, ok := prior[IDField]; ok {
						clone[IDField] = id
					}
				}
			case natsclient.IsKVNotFoundError(err):
				// first write for this key
			default:
				k.record("upsert", "error")
				return result, errors.WrapTransient(err, "docstore", "UpsertBatch", "read existing document")
			}
		}
		if _, ok := clone[IDField]; !ok {
			clone[IDField] = newDocID()
		}

		data, err := kvJSON.Marshal(clone)
		if err != nil {
			k.record("upsert", "error")
			return result, errors.WrapFatal(err, "docstore", "UpsertBatch", "encode document")
		}

		if err := k.throttle(ctx); err != nil {
			return result, errors.WrapTransient(err, "docstore", "UpsertBatch", "throttle")
		}
		if _, err := k.store.Put(ctx, key, data); err != nil {
			k.record("upsert", "error")
			return result, errors.WrapTransient(err, "docstore", "UpsertBatch", "write document")
		}

		if existing {
			result.Updated++
		} else {
			result.Inserted++
		}
	}

	k.record("upsert", "success")
	return result, nil
}

// Find scans the collection's key range in sorted order and filters
// client-side. Fine for the collection sizes a metadata-driven engine
// works with; a server-side index is not worth the complexity here.
func (k *KV) Find(ctx context.Context, collection string, filter map[string]any, projection []string) ([]Document, error) {
	if _, _, err := k.spec(collection, "Find"); err != nil {
		k.record("find", "error")
		return nil, err
	}

	keys, err := k.documentKeys(ctx, collection, "Find")
	if err != nil {
		k.record("find", "error")
		return nil, err
	}

	var out []Document
	for _, key := range keys {
		if err := k.throttle(ctx); err != nil {
			return nil, errors.WrapTransient(err, "docstore", "Find", "throttle")
		}
		entry, err := k.store.Get(ctx, key)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				continue // deleted between list and get
			}
			k.record("find", "error")
			return nil, errors.WrapTransient(err, "docstore", "Find", "read document")
		}

		var doc Document
		if err := kvJSON.Unmarshal(entry.Value, &doc); err != nil {
			k.record("find", "error")
			return nil, errors.WrapFatal(err, "docstore", "Find", "decode document")
		}
		if !MatchFilter(doc, filter) {
			continue
		}
		out = append(out, ApplyProjection(doc, projection))
	}

	k.record("find", "success")
	return out, nil
}

// Count returns the number of documents in the collection.
func (k *KV) Count(ctx context.Context, collection string) (int, error) {
	if _, _, err := k.spec(collection, "Count"); err != nil {
		k.record("count", "error")
		return 0, err
	}

	keys, err := k.documentKeys(ctx, collection, "Count")
	if err != nil {
		k.record("count", "error")
		return 0, err
	}

	k.record("count", "success")
	return len(keys), nil
}

// Collections lists provisioned collection names, sorted.
func (k *KV) Collections(_ context.Context) ([]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	names := make([]string, 0, len(k.specs))
	for name := range k.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Clear purges every document but keeps the collection provisioned.
func (k *KV) Clear(ctx context.Context, collection string) error {
	if _, _, err := k.spec(collection, "Clear"); err != nil {
		k.record("clear", "error")
		return err
	}

	keys, err := k.documentKeys(ctx, collection, "Clear")
	if err != nil {
		k.record("clear", "error")
		return err
	}

	for _, key := range keys {
		if err := k.throttle(ctx); err != nil {
			return errors.WrapTransient(err, "docstore", "Clear", "throttle")
		}
		if err := k.store.Purge(ctx, key); err != nil {
			k.record("clear", "error")
			return errors.WrapTransient(err, "docstore", "Clear", "purge document")
		}
	}

	k.record("clear", "success")
	return nil
}

// Drop removes the collection's documents and its persisted spec.
func (k *KV) Drop(ctx context.Context, collection string) error {
	k.mu.RLock()
	_, known := k.specs[collection]
	k.mu.RUnlock()
	if !known {
		return nil
	}

	if err := k.Clear(ctx, collection); err != nil {
		return err
	}

	if err := k.throttle(ctx); err != nil {
		return errors.WrapTransient(err, "docstore", "Drop", "throttle")
	}
	if err := k.store.Purge(ctx, specPrefix+sanitizeKeyPart(collection)); err != nil {
		k.record("drop", "error")
		return errors.WrapTransient(err, "docstore", "Drop", "purge collection spec")
	}

	k.mu.Lock()
	delete(k.specs, collection)
	delete(k.validators, collection)
	k.mu.Unlock()

	k.record("drop", "success")
	return nil
}

// documentKeys lists the collection's document keys, sorted so result order
// is stable across identical calls.
func (k *KV) documentKeys(ctx context.Context, collection, method string) ([]string, error) {
	if err := k.throttle(ctx); err != nil {
		return nil, errors.WrapTransient(err, "docstore", method, "throttle")
	}

	prefix := sanitizeKeyPart(collection) + "."
	keys, err := k.store.ListKeys(ctx, prefix)
	if err != nil {
		return nil, errors.WrapTransient(err, "docstore", method, "list document keys")
	}

	// Prefix match alone would also catch subkeys of a collection whose
	// name extends this one past a dot; document keys have exactly one dot.
	filtered := keys[:0]
	for _, key := range keys {
		if !strings.Contains(key[len(prefix):], ".") {
			filtered = append(filtered, key)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}
