package query

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/c360/semfuse/errors"
)

var queryJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Wire action names for the JSON query envelope.
const (
	ActionGetEntity  = "get_entity"
	ActionGetRelated = "get_related"
)

// Direction says which way a hop crosses a REFERENCES edge: "out" when the
// current entity holds the foreign key, "in" when it is the referenced side.
type Direction string

const (
	DirectionOut Direction = "out"
	DirectionIn  Direction = "in"
)

// String returns the string representation of the direction.
func (d Direction) String() string { return string(d) }

// IsValid checks if the direction is one of the defined values.
func (d Direction) IsValid() bool {
	return d == DirectionOut || d == DirectionIn
}

// MarshalJSON implements json.Marshaler.
func (d Direction) MarshalJSON() ([]byte, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("invalid direction: %s", d)
	}
	return []byte(`"` + string(d) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := queryJSON.Unmarshal(data, &s); err != nil {
		return err
	}
	dir := Direction(s)
	if !dir.IsValid() {
		return fmt.Errorf("invalid direction: %s", s)
	}
	*d = dir
	return nil
}

// Relation is the edge kind a hop traverses. REFERENCES is the only relation
// the metadata graph defines between entities.
type Relation string

const RelationReferences Relation = "REFERENCES"

// String returns the string representation of the relation.
func (r Relation) String() string { return string(r) }

// IsValid checks if the relation is one of the defined values.
func (r Relation) IsValid() bool { return r == RelationReferences }

// MarshalJSON implements json.Marshaler.
func (r Relation) MarshalJSON() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid relation: %s", r)
	}
	return []byte(`"` + string(r) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Relation) UnmarshalJSON(data []byte) error {
	var s string
	if err := queryJSON.Unmarshal(data, &s); err != nil {
		return err
	}
	rel := Relation(s)
	if !rel.IsValid() {
		return fmt.Errorf("invalid relation: %s", s)
	}
	*r = rel
	return nil
}

// Query is the sealed request union. Exactly two kinds exist and the
// executor dispatches by type switch, never by inspecting action strings.
type Query interface {
	// Action returns the wire action name for the query kind.
	Action() string
	// Validate checks the query is well formed.
	Validate() error

	sealed()
}

// EntityQuery retrieves records of a single entity. Fields nil means every
// declared field; an explicit list is honored in order, and the identity
// field is excluded unless listed.
type EntityQuery struct {
	Entity  string         `json:"entity"`
	Filters map[string]any `json:"filters,omitempty"`
	Fields  []string       `json:"fields,omitempty"`
}

func (EntityQuery) sealed() {}

// Action returns the wire action name.
func (EntityQuery) Action() string { return ActionGetEntity }

// Validate checks the query is well formed.
func (q EntityQuery) Validate() error {
	if q.Entity == "" {
		return errors.WrapInvalid(nil, "Query", "Validate", "entity is required")
	}
	return nil
}

// Hop is one ordered traversal step to a target entity.
type Hop struct {
	Target    string    `json:"target"`
	Relation  Relation  `json:"relation,omitempty"`
	Direction Direction `json:"direction"`
}

// Validate checks the hop is well formed. An empty relation defaults to
// REFERENCES at decode time, so it must be valid here.
func (h Hop) Validate() error {
	if h.Target == "" {
		return errors.WrapInvalid(nil, "Query", "Validate", "hop target is required")
	}
	if !h.Relation.IsValid() {
		return errors.WrapInvalid(nil, "Query", "Validate",
			fmt.Sprintf("unsupported relation %q", h.Relation))
	}
	if !h.Direction.IsValid() {
		return errors.WrapInvalid(nil, "Query", "Validate",
			fmt.Sprintf("unsupported direction %q", h.Direction))
	}
	return nil
}

// TraversalQuery retrieves joined records across REFERENCES edges, hop by
// hop in caller order. FinalFields selects the output: only entities listed
// contribute columns; a nil field list for a listed entity means every
// declared field of that entity.
type TraversalQuery struct {
	Start        string              `json:"start"`
	StartFilters map[string]any      `json:"start_filters,omitempty"`
	Hops         []Hop               `json:"hops"`
	FinalFields  map[string][]string `json:"final_fields,omitempty"`
}

func (TraversalQuery) sealed() {}

// Action returns the wire action name.
func (TraversalQuery) Action() string { return ActionGetRelated }

// Validate checks the query is well formed.
func (q TraversalQuery) Validate() error {
	if q.Start == "" {
		return errors.WrapInvalid(nil, "Query", "Validate", "start entity is required")
	}
	if len(q.Hops) == 0 {
		return errors.WrapInvalid(nil, "Query", "Validate", "at least one hop is required")
	}
	for i, hop := range q.Hops {
		if err := hop.Validate(); err != nil {
			return errors.WrapInvalid(err, "Query", "Validate", fmt.Sprintf("hop %d", i))
		}
	}
	return nil
}

// envelope is the wire shape: the action selects the variant, the remaining
// fields belong to it.
type envelope struct {
	Action       string              `json:"action"`
	Entity       string              `json:"entity"`
	Filters      map[string]any      `json:"filters"`
	Fields       []string            `json:"fields"`
	Start        string              `json:"start"`
	StartFilters map[string]any      `json:"start_filters"`
	Hops         []Hop               `json:"hops"`
	FinalFields  map[string][]string `json:"final_fields"`
}

// Decode parses a JSON query envelope into the matching Query variant. An
// unrecognized action is a usage error, never a silent no-op.
func Decode(data []byte) (Query, error) {
	var env envelope
	if err := queryJSON.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"Query", "Decode", "parse query envelope")
	}

	switch env.Action {
	case ActionGetEntity:
		q := EntityQuery{Entity: env.Entity, Filters: env.Filters, Fields: env.Fields}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		return q, nil

	case ActionGetRelated:
		hops := env.Hops
		for i := range hops {
			if hops[i].Relation == "" {
				hops[i].Relation = RelationReferences
			}
		}
		q := TraversalQuery{
			Start:        env.Start,
			StartFilters: env.StartFilters,
			Hops:         hops,
			FinalFields:  env.FinalFields,
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		return q, nil

	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unrecognized action %q", env.Action),
			"Query", "Decode", "dispatch query action")
	}
}
