// Package schema holds the declarative description of every data source: its
// entities, target collections, field lists with declared types, primary and
// foreign key annotations, and per-format access hints (xpath, json_path).
//
// Declarations load from YAML documents shaped as a list of sources, each
// grouping entities of one format (csv, json, xml). A Registry indexes
// entities by label; duplicate labels across sources are rejected at
// construction so graph builds stay deterministic. The graph compiler and
// ingestion loader both consume the Registry; neither reads YAML themselves.
package schema
