// Package docstore provides the document storage layer: flat records grouped
// into collections, with filtered and projected reads.
//
// Two backends implement the Store interface. Memory keeps documents
// in-process in insertion order and is the default for local runs and tests.
// KV persists each document under a "<collection>.<docid>" key in a NATS
// JetStream KV bucket, with collection specs stored alongside so a restarted
// process rediscovers validators and primary keys.
//
// Collections are provisioned from schema declarations via SpecForEntity,
// which derives a JSON-schema validator and the primary-key uniqueness
// requirement. Filters use the Mongo-style operator subset the query engine
// emits ($gt, $lt, $gte, $lte, $ne, $in, $exists); see MatchFilter for the
// exact matching rules.
package docstore
