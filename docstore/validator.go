package docstore

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/schema"
)

// Validator checks documents against a collection's JSON-schema validator
// before they are written. The schema compiles once at provisioning time.
type Validator struct {
	collection string
	compiled   *gojsonschema.Schema
}

// NewValidator compiles the validator document from a CollectionSpec. A spec
// without a validator yields a nil Validator, which accepts everything.
func NewValidator(spec CollectionSpec) (*Validator, error) {
	if len(spec.Validator) == 0 {
		return nil, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(spec.Validator))
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: collection %q: %w", errors.ErrInvalidConfig, spec.Name, err),
			"Validator", "NewValidator", "compile validator schema")
	}
	return &Validator{collection: spec.Name, compiled: compiled}, nil
}

// Check validates one document, returning a descriptive error on rejection.
func (v *Validator) Check(doc Document) error {
	if v == nil || v.compiled == nil {
		return nil
	}
	result, err := v.compiled.Validate(gojsonschema.NewGoLoader(map[string]any(doc)))
	if err != nil {
		return errors.WrapInvalid(err, "Validator", "Check", "validate document")
	}
	if result.Valid() {
		return nil
	}

	var details []string
	for _, desc := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: collection %q: %s", errors.ErrInvalidData, v.collection, strings.Join(details, "; ")),
		"Validator", "Check", "validate document")
}

// SpecForEntity derives a CollectionSpec, including its JSON-schema
// validator, from an entity declaration. Only the primary key is required;
// every other field is optional but type-checked when present. Fields are
// nullable because conversion failures land as nulls rather than dropping
// the whole record.
func SpecForEntity(entity schema.Entity) CollectionSpec {
	properties := make(map[string]any, len(entity.Fields))
	var required []string

	for _, f := range entity.Fields {
		properties[f.Label] = fieldSchema(f)
		if f.IsPrimaryKey {
			required = append(required, f.Label)
		}
	}

	validator := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		validator["required"] = required
	}

	spec := CollectionSpec{
		Name:      entity.CollectionName(),
		Validator: validator,
	}
	if pk, ok := entity.PrimaryKey(); ok {
		spec.PrimaryKey = pk.Label
	}
	return spec
}

func fieldSchema(f schema.FieldDef) map[string]any {
	if f.IsArray() {
		return map[string]any{
			"type":  []string{"array", "null"},
			"items": map[string]any{"type": jsonType(f.ElementType())},
		}
	}
	return map[string]any{"type": []string{jsonType(f.BaseType()), "null"}}
}

// jsonType maps a declared base type onto its JSON-schema type name.
// DATE and DATETIME stay strings: documents store them in canonical string
// form, not as native timestamps.
func jsonType(baseType string) string {
	switch baseType {
	case "INT", "INTEGER", "BIGINT", "SMALLINT":
		return "integer"
	case "DECIMAL", "FLOAT", "DOUBLE", "NUMERIC":
		return "number"
	case "BOOLEAN", "BOOL":
		return "boolean"
	default:
		return "string"
	}
}
