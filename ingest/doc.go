// Package ingest turns heterogeneous source files into documents the query
// engine can read. One adapter per format: CSV rows under a header, XML
// elements selected by an xpath base with relative field hints, JSON object
// arrays addressed by dot-notation paths. Values convert to their declared
// types on the way in; a value that will not convert becomes null with a
// logged warning instead of failing the batch.
//
// The Loader drives the adapters: it provisions a validated collection per
// declared entity, resolves each entity's source file under a data
// directory, and upserts parsed records keyed on the declared primary key,
// fanning out across sources with an errgroup.
package ingest
