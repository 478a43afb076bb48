package metagraph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/errors"
)

// GraphStore persists and reads the metadata graph through a document store.
// Nodes live in metagraph_nodes keyed by node id, edges in metagraph_edges
// keyed by the source+target+relation triple.
type GraphStore struct {
	store  docstore.Store
	logger *slog.Logger
}

// NewGraphStore wraps the given document store.
func NewGraphStore(store docstore.Store, logger *slog.Logger) (*GraphStore, error) {
	if store == nil {
		return nil, errors.WrapInvalid(nil, "GraphStore", "NewGraphStore", "document store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphStore{store: store, logger: logger}, nil
}

// EnsureCollections provisions both graph collections. Idempotent.
func (g *GraphStore) EnsureCollections(ctx context.Context) error {
	for _, spec := range []docstore.CollectionSpec{
		{Name: NodesCollection, PrimaryKey: "id"},
		{Name: EdgesCollection, PrimaryKey: "id"},
	} {
		if err := g.store.EnsureCollection(ctx, spec); err != nil {
			return errors.WrapTransient(err, "GraphStore", "EnsureCollections", "provision graph collection")
		}
	}
	return nil
}

// Clear drops every node and edge but keeps the collections provisioned.
func (g *GraphStore) Clear(ctx context.Context) error {
	for _, name := range []string{NodesCollection, EdgesCollection} {
		if err := g.store.Clear(ctx, name); err != nil {
			return errors.WrapTransient(err, "GraphStore", "Clear", "clear graph collection")
		}
	}
	return nil
}

// PutNodes upserts nodes by id.
func (g *GraphStore) PutNodes(ctx context.Context, nodes ...Node) error {
	if len(nodes) == 0 {
		return nil
	}
	docs := make([]docstore.Document, 0, len(nodes))
	for _, n := range nodes {
		docs = append(docs, nodeDoc(n))
	}
	if _, err := g.store.UpsertBatch(ctx, NodesCollection, docs, "id"); err != nil {
		return errors.WrapTransient(err, "GraphStore", "PutNodes", "upsert nodes")
	}
	return nil
}

// PutEdges upserts edges by their identity triple.
func (g *GraphStore) PutEdges(ctx context.Context, edges ...Edge) error {
	if len(edges) == 0 {
		return nil
	}
	docs := make([]docstore.Document, 0, len(edges))
	for _, e := range edges {
		docs = append(docs, edgeDoc(e))
	}
	if _, err := g.store.UpsertBatch(ctx, EdgesCollection, docs, "id"); err != nil {
		return errors.WrapTransient(err, "GraphStore", "PutEdges", "upsert edges")
	}
	return nil
}

// Nodes returns every stored node.
func (g *GraphStore) Nodes(ctx context.Context) ([]Node, error) {
	docs, err := g.store.Find(ctx, NodesCollection, nil, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "GraphStore", "Nodes", "read nodes")
	}
	out := make([]Node, 0, len(docs))
	for _, d := range docs {
		out = append(out, docNode(d))
	}
	return out, nil
}

// Edges returns every stored edge.
func (g *GraphStore) Edges(ctx context.Context) ([]Edge, error) {
	docs, err := g.store.Find(ctx, EdgesCollection, nil, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "GraphStore", "Edges", "read edges")
	}
	out := make([]Edge, 0, len(docs))
	for _, d := range docs {
		out = append(out, docEdge(d))
	}
	return out, nil
}

// EntityByLabel resolves an entity node by its logical label.
func (g *GraphStore) EntityByLabel(ctx context.Context, label string) (Node, error) {
	docs, err := g.store.Find(ctx, NodesCollection,
		map[string]any{"node_type": NodeTypeCollection, "label": label}, nil)
	if err != nil {
		return Node{}, errors.WrapTransient(err, "GraphStore", "EntityByLabel", "read entity node")
	}
	if len(docs) == 0 {
		return Node{}, fmt.Errorf("%w: entity %q has no graph node", errors.ErrEntityNotFound, label)
	}
	return docNode(docs[0]), nil
}

// FieldsOf returns the field nodes attached to an entity node by HAS_FIELD
// edges, in stored order.
func (g *GraphStore) FieldsOf(ctx context.Context, entityID string) ([]Node, error) {
	edgeDocs, err := g.store.Find(ctx, EdgesCollection,
		map[string]any{"source": entityID, "relation": RelationHasField},
		[]string{"target"})
	if err != nil {
		return nil, errors.WrapTransient(err, "GraphStore", "FieldsOf", "read field edges")
	}
	if len(edgeDocs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(edgeDocs))
	for _, d := range edgeDocs {
		if id, ok := d["target"].(string); ok {
			ids = append(ids, id)
		}
	}

	nodeDocs, err := g.store.Find(ctx, NodesCollection,
		map[string]any{"id": map[string]any{"$in": ids}}, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "GraphStore", "FieldsOf", "read field nodes")
	}
	out := make([]Node, 0, len(nodeDocs))
	for _, d := range nodeDocs {
		out = append(out, docNode(d))
	}
	return out, nil
}

// ReferenceBetween finds the REFERENCES edge connecting two entity nodes,
// searching both orientations since the stored edge always points
// referencer to referenced regardless of traversal direction.
func (g *GraphStore) ReferenceBetween(ctx context.Context, aID, bID string) (Edge, bool, error) {
	for _, pair := range [][2]string{{aID, bID}, {bID, aID}} {
		docs, err := g.store.Find(ctx, EdgesCollection, map[string]any{
			"source":   pair[0],
			"target":   pair[1],
			"relation": RelationReferences,
		}, nil)
		if err != nil {
			return Edge{}, false, errors.WrapTransient(err, "GraphStore", "ReferenceBetween", "read reference edge")
		}
		if len(docs) > 0 {
			return docEdge(docs[0]), true, nil
		}
	}
	return Edge{}, false, nil
}

// PrimaryKeyField returns the entity's field node flagged is_primary_key.
func (g *GraphStore) PrimaryKeyField(ctx context.Context, entityID string) (Node, bool, error) {
	fields, err := g.FieldsOf(ctx, entityID)
	if err != nil {
		return Node{}, false, err
	}
	for _, f := range fields {
		if f.PropBool("is_primary_key") {
			return f, true, nil
		}
	}
	return Node{}, false, nil
}

func nodeDoc(n Node) docstore.Document {
	doc := docstore.Document{
		"id":        n.ID,
		"node_type": n.NodeType,
		"label":     n.Label,
	}
	if n.Datasource != "" {
		doc["datasource"] = n.Datasource
	}
	if n.CollectionName != "" {
		doc["collection_name"] = n.CollectionName
	}
	if len(n.Properties) > 0 {
		doc["properties"] = n.Properties
	}
	return doc
}

func docNode(d docstore.Document) Node {
	n := Node{
		ID:             str(d["id"]),
		NodeType:       str(d["node_type"]),
		Label:          str(d["label"]),
		Datasource:     str(d["datasource"]),
		CollectionName: str(d["collection_name"]),
	}
	if props, ok := d["properties"].(map[string]any); ok {
		n.Properties = props
	}
	return n
}

func edgeDoc(e Edge) docstore.Document {
	doc := docstore.Document{
		"id":       e.Key(),
		"source":   e.Source,
		"target":   e.Target,
		"relation": e.Relation,
	}
	if len(e.Properties) > 0 {
		doc["properties"] = e.Properties
	}
	return doc
}

func docEdge(d docstore.Document) Edge {
	e := Edge{
		Source:   str(d["source"]),
		Target:   str(d["target"]),
		Relation: str(d["relation"]),
	}
	if props, ok := d["properties"].(map[string]any); ok {
		e.Properties = props
	}
	return e
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
