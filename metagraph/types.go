package metagraph

import "strings"

// Node and edge vocabulary. The graph carries exactly two node types and two
// relations; anything else in the stored collections is a corruption.
const (
	NodeTypeCollection = "collection"
	NodeTypeField      = "field"

	RelationHasField   = "HAS_FIELD"
	RelationReferences = "REFERENCES"
)

// Physical collection names for the persisted graph.
const (
	NodesCollection = "metagraph_nodes"
	EdgesCollection = "metagraph_edges"
)

// Node is one metadata graph node, either a collection (entity) node or a
// field node. Property keys mirror the schema declaration they came from:
// entity nodes carry source_system_type and original_entity_type, field
// nodes carry data_type, is_primary_key, is_foreign_key, references and the
// per-format access hint (xpath or json_path).
type Node struct {
	ID             string         `json:"id"`
	NodeType       string         `json:"node_type"`
	Label          string         `json:"label"`
	Datasource     string         `json:"datasource,omitempty"`
	CollectionName string         `json:"collection_name,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
}

// IsEntity reports whether the node represents a queryable collection.
func (n Node) IsEntity() bool { return n.NodeType == NodeTypeCollection }

// PropString returns a string property, or "" when absent or non-string.
func (n Node) PropString(key string) string {
	s, _ := n.Properties[key].(string)
	return s
}

// PropBool returns a bool property, defaulting to false.
func (n Node) PropBool(key string) bool {
	b, _ := n.Properties[key].(bool)
	return b
}

// Edge is one directed metadata graph edge. REFERENCES edges always point
// referencer to referenced and carry the referencing field label under
// properties["on_field"].
type Edge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Relation   string         `json:"relation"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Key returns the edge identity: the source+target+relation triple. Two
// edges with the same key are the same edge, so rebuilds overwrite in place.
func (e Edge) Key() string {
	return e.Source + "__" + e.Target + "__" + e.Relation
}

// OnField returns the referencing field label of a REFERENCES edge.
func (e Edge) OnField() string {
	s, _ := e.Properties["on_field"].(string)
	return s
}

// EntityNodeID derives the stable id for an entity's graph node. The same
// label always yields the same id, so rebuilds keep ids stable.
func EntityNodeID(label string) string {
	return "collection_" + slug(label)
}

// FieldNodeID derives the stable id for a field node. It embeds the owning
// entity's id, so the same field label may repeat across entities.
func FieldNodeID(entityID, fieldLabel string) string {
	return entityID + "_" + slug(fieldLabel)
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "_")
}
