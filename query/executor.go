package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/metagraph"
	"github.com/c360/semfuse/metric"
	"github.com/c360/semfuse/pkg/cache"
)

// Record is one result row. Single-entity results key by field label;
// traversal results key by "<entity_label>.<field_label>" to disambiguate
// fields from different joined entities.
type Record map[string]any

// Dependencies carries what the executor needs. Guard, Cache and Metrics
// are optional.
type Dependencies struct {
	Graph   *metagraph.GraphStore
	Store   docstore.Store
	Guard   *metagraph.Guard
	Cache   cache.Config
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// Executor resolves queries against the metadata graph and the document
// collections it describes.
type Executor struct {
	graph   *metagraph.GraphStore
	store   docstore.Store
	guard   *metagraph.Guard
	cache   cache.Cache[entityInfo]
	logger  *slog.Logger
	metrics *metric.Metrics
}

// entityInfo is the cached graph view of one entity: its node and its
// HAS_FIELD-linked field nodes. Cache keys embed the graph generation, so a
// rebuild naturally invalidates every cached entry.
type entityInfo struct {
	Node   metagraph.Node
	Fields []metagraph.Node
}

// NewExecutor creates an executor.
func NewExecutor(deps Dependencies) (*Executor, error) {
	if deps.Graph == nil {
		return nil, errors.WrapInvalid(nil, "Executor", "NewExecutor", "graph store is required")
	}
	if deps.Store == nil {
		return nil, errors.WrapInvalid(nil, "Executor", "NewExecutor", "document store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entityCache, err := cache.NewFromConfig[entityInfo](deps.Cache)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Executor", "NewExecutor", "build entity cache")
	}

	return &Executor{
		graph:   deps.Graph,
		store:   deps.Store,
		guard:   deps.Guard,
		cache:   entityCache,
		logger:  logger,
		metrics: deps.Metrics,
	}, nil
}

// Close releases the executor's cache resources.
func (e *Executor) Close() error {
	return e.cache.Close()
}

// Execute runs one query. An unknown entity label yields an empty result
// with a logged message, not an error; store failures propagate.
func (e *Executor) Execute(ctx context.Context, q Query) ([]Record, error) {
	start := time.Now()

	if err := q.Validate(); err != nil {
		if e.metrics != nil {
			e.metrics.RecordQuery(q.Action(), "invalid", time.Since(start), 0)
		}
		return nil, err
	}

	var records []Record
	run := func(generation uint64) error {
		var err error
		switch query := q.(type) {
		case EntityQuery:
			records, err = e.retrieveEntity(ctx, generation, query)
		case TraversalQuery:
			records, err = e.retrieveRelated(ctx, generation, query)
		default:
			err = errors.WrapInvalid(
				fmt.Errorf("unsupported query type %T", q),
				"Executor", "Execute", "dispatch query")
		}
		return err
	}

	var err error
	if e.guard != nil {
		err = e.guard.Read(run)
	} else {
		err = run(0)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	if e.metrics != nil {
		e.metrics.RecordQuery(q.Action(), status, time.Since(start), len(records))
	}
	return records, err
}

// retrieveEntity is the single-entity path: resolve the entity node, project
// to the requested or declared fields, run one filtered read.
func (e *Executor) retrieveEntity(ctx context.Context, generation uint64, q EntityQuery) ([]Record, error) {
	info, ok, err := e.entity(ctx, generation, q.Entity)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.logger.Info("entity has no graph node, returning empty result", "entity", q.Entity)
		return []Record{}, nil
	}

	fields := q.Fields
	if len(fields) == 0 {
		fields = fieldLabels(info.Fields)
	}

	docs, err := e.store.Find(ctx, info.Node.CollectionName, q.Filters, fields)
	if err != nil {
		return nil, errors.WrapTransient(err, "Executor", "retrieveEntity", "read entity collection")
	}

	records := make([]Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, Record(d))
	}
	return records, nil
}

// link describes how one hop joins: the field on the current entity whose
// values select target documents, and the matching field on the target.
type link struct {
	currentField string
	targetField  string
	isArray      bool
}

// hopPlan is the per-hop state accumulated during the fetch phase.
type hopPlan struct {
	target     entityInfo
	targetOK   bool
	link       link
	resolved   bool
	nextField  string // link field to carry for the following hop
	docs       []docstore.Document
	fieldScope []string
}

// retrieveRelated is the traversal path: fetch the start set, walk the hops
// collecting target documents by $in on the link field, then join hop by
// hop with a strictly inner hash join.
func (e *Executor) retrieveRelated(ctx context.Context, generation uint64, q TraversalQuery) ([]Record, error) {
	startInfo, ok, err := e.entity(ctx, generation, q.Start)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.logger.Info("start entity has no graph node, returning empty result", "entity", q.Start)
		return []Record{}, nil
	}

	firstLink, firstResolved, err := e.resolveLink(ctx, generation, startInfo, q.Hops[0])
	if err != nil {
		return nil, err
	}
	if !firstResolved {
		e.logger.Warn("cannot resolve link for first hop, returning empty result",
			"start", q.Start, "target", q.Hops[0].Target)
		return []Record{}, nil
	}

	startScope := fieldScope(q.FinalFields, q.Start, startInfo)
	startDocs, err := e.store.Find(ctx, startInfo.Node.CollectionName, q.StartFilters,
		appendUnique(startScope, firstLink.currentField))
	if err != nil {
		return nil, errors.WrapTransient(err, "Executor", "retrieveRelated", "read start collection")
	}
	if len(startDocs) == 0 {
		e.logger.Info("no starting records matched", "entity", q.Start)
		return []Record{}, nil
	}

	plans, err := e.fetchHops(ctx, generation, q, startInfo, firstLink, startDocs)
	if err != nil {
		return nil, err
	}

	joined := e.join(q, startInfo, startScope, firstLink, startDocs, plans)
	return e.clean(ctx, generation, q, joined)
}

// fetchHops walks the hops in order, querying each target collection for
// documents whose link field matches a value carried by the current set.
// Unresolvable links and empty link-value sets are recoverable: the hop's
// dataset stays empty and the join later collapses to nothing.
func (e *Executor) fetchHops(
	ctx context.Context, generation uint64, q TraversalQuery,
	startInfo entityInfo, firstLink link, startDocs []docstore.Document,
) ([]hopPlan, error) {
	plans := make([]hopPlan, len(q.Hops))

	current := startInfo
	currentOK := true
	currentLink := firstLink
	currentResolved := true
	currentDocs := startDocs

	for i, hop := range q.Hops {
		plan := &plans[i]

		plan.target, plan.targetOK, _ = e.entity(ctx, generation, hop.Target)
		if !plan.targetOK {
			e.logger.Warn("hop target has no graph node", "target", hop.Target)
			current, currentOK = plan.target, false
			currentDocs = nil
			continue
		}
		plan.fieldScope = fieldScope(q.FinalFields, hop.Target, plan.target)

		if !currentOK || !currentResolved {
			// A broken earlier hop: keep resolving metadata so logging
			// stays informative, but no documents can be fetched.
			var err error
			currentLink, currentResolved, err = e.resolveLink(ctx, generation, plan.target, hopAfter(q.Hops, i))
			if err != nil {
				return nil, err
			}
			current, currentOK = plan.target, true
			currentDocs = nil
			continue
		}

		plan.link = currentLink
		plan.resolved = true

		values := linkValues(currentDocs, currentLink)
		projection := appendUnique(plan.fieldScope, currentLink.targetField)

		// Peek ahead so the next hop's link field rides along in this read.
		if next := hopAfter(q.Hops, i); next.Target != "" {
			nextLink, nextResolved, err := e.resolveLink(ctx, generation, plan.target, next)
			if err != nil {
				return nil, err
			}
			if nextResolved {
				projection = appendUnique(projection, nextLink.currentField)
				plan.nextField = nextLink.currentField
			}
			currentLink, currentResolved = nextLink, nextResolved
		}

		if len(values) == 0 {
			e.logger.Warn("no linking values to traverse", "from", current.Node.Label, "to", hop.Target)
		} else {
			filter := map[string]any{plan.link.targetField: map[string]any{"$in": values}}
			docs, err := e.store.Find(ctx, plan.target.Node.CollectionName, filter, projection)
			if err != nil {
				return nil, errors.WrapTransient(err, "Executor", "retrieveRelated", "read hop collection")
			}
			plan.docs = docs
		}

		current, currentOK = plan.target, true
		currentDocs = plan.docs
	}

	return plans, nil
}

// join builds the output records: one partial per start document, then for
// each hop a hash lookup on the target's link field, fanning out one new
// partial per match. Strictly inner: partials without a match are dropped.
func (e *Executor) join(
	q TraversalQuery, startInfo entityInfo, startScope []string,
	firstLink link, startDocs []docstore.Document, plans []hopPlan,
) []Record {
	partials := make([]Record, 0, len(startDocs))
	for _, doc := range startDocs {
		rec := Record{}
		for _, f := range appendUnique(startScope, firstLink.currentField) {
			if v, ok := doc[f]; ok {
				rec[q.Start+"."+f] = v
			}
		}
		if len(rec) > 0 {
			partials = append(partials, rec)
		}
	}

	prevLabel := q.Start
	for i, plan := range plans {
		if !plan.resolved || len(plan.docs) == 0 {
			return nil
		}

		lookup := make(map[string][]docstore.Document, len(plan.docs))
		for _, doc := range plan.docs {
			v, ok := doc[plan.link.targetField]
			if !ok || v == nil {
				continue
			}
			// An array target field (reverse hop into an array foreign
			// key holder) is indexed once per element.
			if items, isList := v.([]any); isList {
				for _, item := range items {
					if item == nil {
						continue
					}
					key := docstore.KeyString(item)
					lookup[key] = append(lookup[key], doc)
				}
				continue
			}
			key := docstore.KeyString(v)
			lookup[key] = append(lookup[key], doc)
		}

		carry := plan.fieldScope
		if plan.nextField != "" {
			carry = appendUnique(carry, plan.nextField)
		}
		carry = appendUnique(carry, plan.link.targetField)

		linkKey := prevLabel + "." + plan.link.currentField
		var next []Record
		for _, partial := range partials {
			matches := probe(lookup, partial[linkKey], plan.link.isArray)
			for _, doc := range matches {
				rec := partial.clone()
				for _, f := range carry {
					if v, ok := doc[f]; ok {
						rec[q.Hops[i].Target+"."+f] = v
					}
				}
				next = append(next, rec)
			}
		}
		partials = next
		prevLabel = q.Hops[i].Target
		if len(partials) == 0 {
			e.logger.Warn("join produced no records", "after", q.Hops[i].Target)
			return nil
		}
	}
	return partials
}

// clean strips keys outside the final-field expansion and drops records
// whose surviving values are all null.
func (e *Executor) clean(ctx context.Context, generation uint64, q TraversalQuery, records []Record) ([]Record, error) {
	headers := make(map[string]bool)
	for label, fields := range q.FinalFields {
		if fields == nil {
			info, ok, err := e.entity(ctx, generation, label)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			fields = fieldLabels(info.Fields)
		}
		for _, f := range fields {
			headers[label+"."+f] = true
		}
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		cleaned := Record{}
		anyValue := false
		for key, v := range rec {
			if !headers[key] {
				continue
			}
			cleaned[key] = v
			if v != nil {
				anyValue = true
			}
		}
		if anyValue {
			out = append(out, cleaned)
		}
	}
	return out, nil
}

// resolveLink finds the REFERENCES edge between the current entity and the
// hop target and works out which field on each side carries the join value.
// The stored edge always points foreign-key holder to primary-key holder;
// the hop's direction decides which side the current entity is expected on.
func (e *Executor) resolveLink(ctx context.Context, generation uint64, current entityInfo, hop Hop) (link, bool, error) {
	if hop.Target == "" {
		return link{}, false, nil
	}
	target, ok, err := e.entity(ctx, generation, hop.Target)
	if err != nil || !ok {
		return link{}, false, err
	}

	edge, found, err := e.graph.ReferenceBetween(ctx, current.Node.ID, target.Node.ID)
	if err != nil {
		return link{}, false, err
	}
	if !found {
		e.logger.Warn("no reference edge between entities",
			"from", current.Node.Label, "to", target.Node.Label)
		return link{}, false, nil
	}

	fkField := edge.OnField()
	if fkField == "" {
		e.logger.Warn("reference edge missing on_field", "source", edge.Source, "target", edge.Target)
		return link{}, false, nil
	}

	pkNode, hasPK, err := e.graph.PrimaryKeyField(ctx, edge.Target)
	if err != nil {
		return link{}, false, err
	}
	if !hasPK {
		e.logger.Warn("referenced entity declares no primary key", "entity", edge.Target)
		return link{}, false, nil
	}
	pkField := pkNode.Label

	isArray := false
	if fkNode, ok := e.fieldByLabel(ctx, edge.Source, fkField); ok {
		isArray = strings.HasPrefix(strings.ToUpper(fkNode.PropString("data_type")), "ARRAY")
	}

	currentHoldsFK := current.Node.ID == edge.Source
	switch hop.Direction {
	case DirectionOut:
		if currentHoldsFK {
			return link{currentField: fkField, targetField: pkField, isArray: isArray}, true, nil
		}
		return link{currentField: pkField, targetField: fkField}, true, nil
	case DirectionIn:
		if current.Node.ID == edge.Target {
			return link{currentField: pkField, targetField: fkField}, true, nil
		}
		return link{currentField: fkField, targetField: pkField, isArray: isArray}, true, nil
	default:
		return link{}, false, nil
	}
}

// entity resolves an entity's node and fields by label, memoized per graph
// generation. The second return distinguishes "absent" from store failure.
func (e *Executor) entity(ctx context.Context, generation uint64, label string) (entityInfo, bool, error) {
	key := fmt.Sprintf("%d|%s", generation, label)
	if info, ok := e.cache.Get(key); ok {
		return info, true, nil
	}

	node, err := e.graph.EntityByLabel(ctx, label)
	if err != nil {
		if errors.IsNotFound(err) {
			return entityInfo{}, false, nil
		}
		return entityInfo{}, false, err
	}

	fields, err := e.graph.FieldsOf(ctx, node.ID)
	if err != nil {
		return entityInfo{}, false, err
	}

	info := entityInfo{Node: node, Fields: fields}
	if _, err := e.cache.Set(key, info); err != nil {
		e.logger.Debug("entity cache set failed", "label", label, "error", err)
	}
	return info, true, nil
}

// fieldByLabel finds a field node of an entity by label. The entity is known
// only by node id here, and the cache keys by label, so this reads the graph
// directly. FieldsOf is one indexed read per call.
func (e *Executor) fieldByLabel(ctx context.Context, entityID, label string) (metagraph.Node, bool) {
	fields, err := e.graph.FieldsOf(ctx, entityID)
	if err != nil {
		return metagraph.Node{}, false
	}
	for _, f := range fields {
		if f.Label == label {
			return f, true
		}
	}
	return metagraph.Node{}, false
}

// fieldScope returns the output fields an entity contributes: its explicit
// list, every declared field when listed with nil, nothing when absent.
func fieldScope(final map[string][]string, label string, info entityInfo) []string {
	fields, listed := final[label]
	if !listed {
		return nil
	}
	if fields == nil {
		return fieldLabels(info.Fields)
	}
	return fields
}

func fieldLabels(fields []metagraph.Node) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Label)
	}
	return out
}

// linkValues collects the distinct non-null link values in a document set,
// fanning out array-valued link fields element by element.
func linkValues(docs []docstore.Document, lk link) []any {
	seen := make(map[string]bool)
	var out []any
	add := func(v any) {
		if v == nil {
			return
		}
		key := docstore.KeyString(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}

	for _, doc := range docs {
		v, ok := doc[lk.currentField]
		if !ok || v == nil {
			continue
		}
		if lk.isArray {
			if items, isList := v.([]any); isList {
				for _, item := range items {
					add(item)
				}
				continue
			}
		}
		add(v)
	}
	return out
}

// probe looks up join matches for one carried link value, probing once per
// element when the carried value is an array.
func probe(lookup map[string][]docstore.Document, carried any, isArray bool) []docstore.Document {
	if carried == nil {
		return nil
	}
	if isArray {
		if items, ok := carried.([]any); ok {
			var out []docstore.Document
			for _, item := range items {
				if item == nil {
					continue
				}
				out = append(out, lookup[docstore.KeyString(item)]...)
			}
			return out
		}
	}
	return lookup[docstore.KeyString(carried)]
}

func hopAfter(hops []Hop, i int) Hop {
	if i+1 < len(hops) {
		return hops[i+1]
	}
	return Hop{}
}

func appendUnique(fields []string, extra ...string) []string {
	out := make([]string, 0, len(fields)+len(extra))
	seen := make(map[string]bool, len(fields)+len(extra))
	for _, f := range append(append([]string{}, fields...), extra...) {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func (r Record) clone() Record {
	out := make(Record, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}
