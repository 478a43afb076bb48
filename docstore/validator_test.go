package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/schema"
)

func TestSpecForEntity(t *testing.T) {
	entity := schema.Entity{
		EntityDecl: schema.EntityDecl{
			Label:      "HackathonParticipations",
			Collection: "hackathons",
			Kind:       schema.SourceJSON,
			Fields: []schema.FieldDef{
				{Label: "ActivityID", DataType: "STRING", IsPrimaryKey: true},
				{Label: "StudentID", DataType: "INT"},
				{Label: "Score", DataType: "DECIMAL(5,2)"},
				{Label: "Won", DataType: "BOOLEAN"},
				{Label: "EventDate", DataType: "DATE"},
				{Label: "AwardsWon", DataType: "ARRAY<STRING>"},
			},
		},
	}

	spec := SpecForEntity(entity)
	assert.Equal(t, "hackathons", spec.Name)
	assert.Equal(t, "ActivityID", spec.PrimaryKey)
	assert.Equal(t, []string{"ActivityID"}, spec.Validator["required"])

	props, ok := spec.Validator["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, 6)

	typeOf := func(field string) any {
		fs, ok := props[field].(map[string]any)
		require.True(t, ok, "field %s", field)
		return fs["type"]
	}
	assert.Equal(t, []string{"integer", "null"}, typeOf("StudentID"))
	assert.Equal(t, []string{"number", "null"}, typeOf("Score"))
	assert.Equal(t, []string{"boolean", "null"}, typeOf("Won"))
	assert.Equal(t, []string{"string", "null"}, typeOf("EventDate"))
	assert.Equal(t, []string{"array", "null"}, typeOf("AwardsWon"))

	items, ok := props["AwardsWon"].(map[string]any)["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", items["type"])
}

func TestValidator(t *testing.T) {
	spec := studentsSpec()

	t.Run("no validator accepts everything", func(t *testing.T) {
		v, err := NewValidator(CollectionSpec{Name: "anything"})
		require.NoError(t, err)
		assert.Nil(t, v)
		assert.NoError(t, v.Check(Document{"x": func() {}}))
	})

	t.Run("valid document", func(t *testing.T) {
		v, err := NewValidator(spec)
		require.NoError(t, err)
		assert.NoError(t, v.Check(Document{"StudentID": 1, "Major": "Physics", "GPA": 3.1}))
	})

	t.Run("array element type enforced", func(t *testing.T) {
		entity := schema.Entity{
			EntityDecl: schema.EntityDecl{
				Label: "Clubs",
				Kind:  schema.SourceJSON,
				Fields: []schema.FieldDef{
					{Label: "Awards", DataType: "ARRAY<STRING>"},
				},
			},
		}
		v, err := NewValidator(SpecForEntity(entity))
		require.NoError(t, err)

		assert.NoError(t, v.Check(Document{"Awards": []any{"Best Design"}}))
		err = v.Check(Document{"Awards": []any{42}})
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	})

	t.Run("rejection names the offending field", func(t *testing.T) {
		v, err := NewValidator(spec)
		require.NoError(t, err)

		err = v.Check(Document{"StudentID": "oops"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "StudentID")
	})
}
