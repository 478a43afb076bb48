// Package metagraph builds and serves the metadata graph that drives query
// planning: one collection node per declared entity, one field node per
// declared field, HAS_FIELD edges tying fields to their entity, and
// REFERENCES edges between entities linked by a foreign key.
//
// The graph persists in two document collections (metagraph_nodes,
// metagraph_edges) so the same storage backend holds data and metadata. The
// Compiler rebuilds the graph destructively in two passes; node ids derive
// from labels alone, so unchanged entities keep stable ids across rebuilds.
// Guard serializes rebuilds against concurrent query reads and tracks the
// graph generation.
package metagraph
