// Package semfuse is a metadata-graph-driven query engine over
// heterogeneous data sources.
//
// # Overview
//
// semfuse ingests data exported in different shapes (relational CSV
// dumps, XML documents, JSON object feeds) into one document store,
// compiles the declared schemas into a metadata graph, and answers
// queries by planning against that graph instead of against the
// declarations directly:
//
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│ CSV / XML /  │   │    Schema    │   │  JSON query  │
//	│ JSON sources │   │ declarations │   │  envelopes   │
//	└──────┬───────┘   └──────┬───────┘   └──────┬───────┘
//	       │ ingest           │ compile          │ execute
//	       ↓                  ↓                  ↓
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│   document   │◄──│   metadata   │◄──│    query     │
//	│  collections │   │    graph     │   │   executor   │
//	└──────────────┘   └──────────────┘   └──────────────┘
//
// The metadata graph holds one node per entity, one node per field,
// HAS_FIELD edges tying fields to entities, and REFERENCES edges between
// entities linked by a foreign key. Traversal queries walk REFERENCES
// edges hop by hop; the join fields for each hop come from the edge and
// the referenced entity's primary key, so a query never needs to know
// which source a record came from.
//
// # Packages
//
// Core:
//   - schema: source/entity/field declarations, YAML loading, registry
//   - docstore: document model, filters, memory and NATS KV backends
//   - metagraph: graph model, two-pass compiler, graph reads, rebuild guard
//   - query: query union, decode, single-entity and traversal execution
//   - ingest: CSV/XML/JSON adapters, type conversion, collection loader
//
// Infrastructure:
//   - natsclient: NATS connection management and JetStream KV wrapper
//   - metric: Prometheus metrics registry and HTTP endpoint
//   - config: JSON configuration with environment overrides
//   - errors: classified error handling
//   - pkg/cache: generic LRU cache
//   - pkg/retry: retry policies
//
// # Binary
//
// Build and run semfuse:
//
//	go build -o bin/semfuse ./cmd/semfuse
//
//	# Ingest a data directory and rebuild the metadata graph
//	./bin/semfuse --config configs/example.json --data ./data --rebuild
//
//	# Execute a query file
//	./bin/semfuse --query queries/students_courses.json
package semfuse
