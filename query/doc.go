// Package query parses and executes the two JSON query actions the engine
// serves: get_entity reads one entity's records with filters and a field
// projection, get_related walks REFERENCES edges hop by hop and joins the
// traversed entities into flat records keyed "<entity>.<field>".
//
// The executor plans against the metadata graph, not against declarations:
// each hop's join fields come from the REFERENCES edge and the referenced
// entity's primary key, resolved per hop direction. Joins are strictly
// inner, array foreign keys fan out one record per element, and entity
// lookups are cached per graph generation so a rebuild invalidates them
// without coordination.
package query
