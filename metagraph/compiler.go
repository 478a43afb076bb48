package metagraph

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/metric"
	"github.com/c360/semfuse/schema"
)

// Dependencies carries what the compiler needs. Guard and Metrics are
// optional; Registry and Store are required.
type Dependencies struct {
	Registry *schema.Registry
	Store    *GraphStore
	Guard    *Guard
	Logger   *slog.Logger
	Metrics  *metric.Metrics
}

// Compiler turns the schema registry into the persisted metadata graph.
type Compiler struct {
	registry *schema.Registry
	store    *GraphStore
	guard    *Guard
	logger   *slog.Logger
	metrics  *metric.Metrics
}

// BuildResult reports what one build pass produced.
type BuildResult struct {
	EntityNodes       int
	FieldNodes        int
	HasFieldEdges     int
	ReferenceEdges    int
	SkippedReferences int
	Generation        uint64
}

// Nodes returns the total node count.
func (r BuildResult) Nodes() int { return r.EntityNodes + r.FieldNodes }

// Edges returns the total edge count.
func (r BuildResult) Edges() int { return r.HasFieldEdges + r.ReferenceEdges }

// NewCompiler creates a compiler over the given registry and graph store.
func NewCompiler(deps Dependencies) (*Compiler, error) {
	if deps.Registry == nil {
		return nil, errors.WrapInvalid(nil, "Compiler", "NewCompiler", "registry is required")
	}
	if deps.Store == nil {
		return nil, errors.WrapInvalid(nil, "Compiler", "NewCompiler", "graph store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		registry: deps.Registry,
		store:    deps.Store,
		guard:    deps.Guard,
		logger:   logger,
		metrics:  deps.Metrics,
	}, nil
}

// Build rebuilds the metadata graph from the registry. The build is
// destructive: existing nodes and edges are cleared first, because recycled
// ids cannot be reliably diffed. Ids derive from labels alone, so entities
// unchanged between builds keep their ids.
//
// Two passes: pass one persists entity nodes, field nodes and HAS_FIELD
// edges while caching label to node id; pass two persists REFERENCES edges,
// so forward references resolve regardless of declaration order. A foreign
// key naming an undeclared target is logged and skipped, never fatal.
func (c *Compiler) Build(ctx context.Context) (BuildResult, error) {
	var result BuildResult

	build := func() error {
		var err error
		result, err = c.build(ctx)
		return err
	}

	if c.guard != nil {
		gen, err := c.guard.Rebuild(build)
		result.Generation = gen
		return result, err
	}
	return result, build()
}

func (c *Compiler) build(ctx context.Context) (BuildResult, error) {
	start := time.Now()
	var result BuildResult

	if err := c.store.EnsureCollections(ctx); err != nil {
		return result, err
	}
	if err := c.store.Clear(ctx); err != nil {
		return result, err
	}

	entities := c.registry.Entities()
	entityIDs := make(map[string]string, len(entities))

	var nodes []Node
	var edges []Edge
	for _, entity := range entities {
		entityNode := entityNode(entity)
		entityIDs[entity.Label] = entityNode.ID
		nodes = append(nodes, entityNode)
		result.EntityNodes++

		for _, field := range entity.Fields {
			fn := fieldNode(entityNode.ID, field)
			nodes = append(nodes, fn)
			result.FieldNodes++

			edges = append(edges, Edge{
				Source:   entityNode.ID,
				Target:   fn.ID,
				Relation: RelationHasField,
			})
			result.HasFieldEdges++
		}
	}

	if err := c.store.PutNodes(ctx, nodes...); err != nil {
		return result, err
	}
	if err := c.store.PutEdges(ctx, edges...); err != nil {
		return result, err
	}

	var refEdges []Edge
	for _, entity := range entities {
		for _, field := range entity.Fields {
			if !field.IsForeignKey || field.References == "" {
				continue
			}
			targetID, ok := entityIDs[field.References]
			if !ok {
				result.SkippedReferences++
				c.logger.Warn("skipping reference to undeclared entity",
					"entity", entity.Label,
					"field", field.Label,
					"references", field.References)
				if c.metrics != nil {
					c.metrics.RecordError("compiler", "dangling_reference")
				}
				continue
			}
			refEdges = append(refEdges, Edge{
				Source:     entityIDs[entity.Label],
				Target:     targetID,
				Relation:   RelationReferences,
				Properties: map[string]any{"on_field": field.Label},
			})
			result.ReferenceEdges++
		}
	}

	if err := c.store.PutEdges(ctx, refEdges...); err != nil {
		return result, err
	}

	if c.metrics != nil {
		c.metrics.RecordGraphBuild(time.Since(start),
			result.EntityNodes, result.FieldNodes, result.HasFieldEdges, result.ReferenceEdges)
	}
	c.logger.Info("metadata graph built",
		"entity_nodes", result.EntityNodes,
		"field_nodes", result.FieldNodes,
		"has_field_edges", result.HasFieldEdges,
		"reference_edges", result.ReferenceEdges,
		"skipped_references", result.SkippedReferences,
		"duration", time.Since(start))

	return result, nil
}

func entityNode(entity schema.Entity) Node {
	return Node{
		ID:             EntityNodeID(entity.Label),
		NodeType:       NodeTypeCollection,
		Label:          entity.Label,
		Datasource:     entity.Source,
		CollectionName: entity.CollectionName(),
		Properties: map[string]any{
			"source_system_type":   entity.SourceType,
			"original_entity_type": entity.Kind.String(),
		},
	}
}

func fieldNode(entityID string, field schema.FieldDef) Node {
	props := map[string]any{
		"data_type":      field.DataType,
		"is_primary_key": field.IsPrimaryKey,
		"is_foreign_key": field.IsForeignKey,
	}
	if field.References != "" {
		props["references"] = field.References
	}
	if field.XPath != "" {
		props["xpath"] = field.XPath
	}
	if field.JSONPath != "" {
		props["json_path"] = field.JSONPath
	}
	return Node{
		ID:         FieldNodeID(entityID, field.Label),
		NodeType:   NodeTypeField,
		Label:      field.Label,
		Properties: props,
	}
}
