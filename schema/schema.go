package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360/semfuse/errors"
)

// SourceKind identifies the file format an entity is ingested from.
// This enum provides type-safe dispatch for the ingestion adapters.
type SourceKind string

const (
	// SourceCSV indicates a delimited text file with a header row.
	SourceCSV SourceKind = "csv"

	// SourceJSON indicates a JSON document holding an array of objects,
	// addressed by per-field json_path hints.
	SourceJSON SourceKind = "json"

	// SourceXML indicates an XML document; xpath_base selects the record
	// elements and per-field xpath hints address values within each.
	SourceXML SourceKind = "xml"
)

// String returns the string representation of the SourceKind.
func (sk SourceKind) String() string {
	return string(sk)
}

// IsValid checks if the SourceKind is one of the defined constants.
func (sk SourceKind) IsValid() bool {
	switch sk {
	case SourceCSV, SourceJSON, SourceXML:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler to ensure SourceKind serializes as a string.
func (sk SourceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(sk))
}

// UnmarshalJSON implements json.Unmarshaler to deserialize SourceKind from string.
func (sk *SourceKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*sk = SourceKind(s)
	return nil
}

// FieldDef declares one field of an entity: its label, declared data type,
// key annotations, and the format-specific access hint used at ingestion.
type FieldDef struct {
	Label        string `yaml:"label" json:"label"`
	DataType     string `yaml:"data_type" json:"data_type"`
	IsPrimaryKey bool   `yaml:"is_primary_key,omitempty" json:"is_primary_key,omitempty"`
	IsForeignKey bool   `yaml:"is_foreign_key,omitempty" json:"is_foreign_key,omitempty"`
	References   string `yaml:"references,omitempty" json:"references,omitempty"`
	XPath        string `yaml:"xpath,omitempty" json:"xpath,omitempty"`
	JSONPath     string `yaml:"json_path,omitempty" json:"json_path,omitempty"`
}

// BaseType returns the declared type with any size qualifier stripped and
// normalized to upper case: "decimal(3,2)" -> "DECIMAL", "ARRAY<STRING>" -> "ARRAY".
func (f FieldDef) BaseType() string {
	t := strings.ToUpper(strings.TrimSpace(f.DataType))
	if i := strings.IndexAny(t, "(<"); i >= 0 {
		t = t[:i]
	}
	return t
}

// IsArray reports whether the declared type is an ARRAY<T> container.
func (f FieldDef) IsArray() bool {
	return f.BaseType() == "ARRAY"
}

// ElementType returns the element type of an ARRAY<T> declaration.
// Defaults to STRING when no element type is given.
func (f FieldDef) ElementType() string {
	t := strings.ToUpper(strings.TrimSpace(f.DataType))
	open := strings.Index(t, "<")
	end := strings.LastIndex(t, ">")
	if open < 0 || end <= open {
		return "STRING"
	}
	elem := strings.TrimSpace(t[open+1 : end])
	if elem == "" {
		return "STRING"
	}
	return elem
}

// Validate checks the field declaration for structural problems.
func (f FieldDef) Validate() error {
	if f.Label == "" {
		return fmt.Errorf("field label is required")
	}
	if f.DataType == "" {
		return fmt.Errorf("field %q: data_type is required", f.Label)
	}
	return nil
}

// EntityDecl declares one logical entity: its label, target collection,
// source file, format, and field list.
type EntityDecl struct {
	Label      string     `yaml:"label" json:"label"`
	Kind       SourceKind `yaml:"kind" json:"kind"`
	Collection string     `yaml:"collection,omitempty" json:"collection,omitempty"`
	File       string     `yaml:"file,omitempty" json:"file,omitempty"`
	XPathBase  string     `yaml:"xpath_base,omitempty" json:"xpath_base,omitempty"`
	Fields     []FieldDef `yaml:"fields" json:"fields"`
}

// CollectionName returns the physical collection the entity's records land
// in. Defaults to the entity label when no override is declared.
func (e EntityDecl) CollectionName() string {
	if e.Collection != "" {
		return e.Collection
	}
	return e.Label
}

// PrimaryKey returns the field marked is_primary_key, if any.
func (e EntityDecl) PrimaryKey() (FieldDef, bool) {
	for _, f := range e.Fields {
		if f.IsPrimaryKey {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FieldByLabel returns the declared field with the given label, if any.
func (e EntityDecl) FieldByLabel(label string) (FieldDef, bool) {
	for _, f := range e.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return FieldDef{}, false
}

// FieldLabels returns the declared field labels in declaration order.
func (e EntityDecl) FieldLabels() []string {
	labels := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		labels = append(labels, f.Label)
	}
	return labels
}

// Validate checks the entity declaration for structural problems.
func (e EntityDecl) Validate() error {
	if e.Label == "" {
		return fmt.Errorf("entity label is required")
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("entity %q: kind %q is not valid (must be csv, json, or xml)", e.Label, e.Kind)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %q: at least one field is required", e.Label)
	}
	if e.Kind == SourceXML && e.XPathBase == "" {
		return fmt.Errorf("entity %q: xpath_base is required for xml entities", e.Label)
	}

	pkCount := 0
	seen := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("entity %q: %w", e.Label, err)
		}
		if seen[f.Label] {
			return fmt.Errorf("entity %q: duplicate field label %q", e.Label, f.Label)
		}
		seen[f.Label] = true
		if f.IsPrimaryKey {
			pkCount++
		}
	}
	if pkCount > 1 {
		return fmt.Errorf("entity %q: at most one primary key field is allowed, found %d", e.Label, pkCount)
	}
	return nil
}

// SourceDecl groups the entities declared by one data source.
type SourceDecl struct {
	Name     string       `yaml:"name" json:"name"`
	Type     string       `yaml:"type,omitempty" json:"type,omitempty"` // e.g. "relational", "document"
	Entities []EntityDecl `yaml:"entities" json:"entities"`
}

// Validate checks the source declaration and all its entities.
func (s SourceDecl) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if len(s.Entities) == 0 {
		return fmt.Errorf("source %q: at least one entity is required", s.Name)
	}
	for _, e := range s.Entities {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
	}
	return nil
}

// Entity is the resolved view of an entity declaration: the declaration plus
// the source it came from. This is what Registry lookups return.
type Entity struct {
	EntityDecl
	Source     string // source name, e.g. "UniversityDB"
	SourceType string // source type, e.g. "relational"
}

// wrapInvalid keeps registry construction errors in the house classification.
func wrapInvalid(err error, method, action string) error {
	return errors.WrapInvalid(err, "Registry", method, action)
}
