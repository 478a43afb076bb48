package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semfuse/docstore"
	"github.com/c360/semfuse/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	students := studentsEntity()
	clubs := clubsEntity()
	hackathons := hackathonsEntity()

	reg, err := schema.NewRegistry(
		schema.SourceDecl{
			Name:     "UniversityDB",
			Type:     "relational",
			Entities: []schema.EntityDecl{students.EntityDecl},
		},
		schema.SourceDecl{
			Name:     "ActivitiesDB",
			Type:     "document",
			Entities: []schema.EntityDecl{clubs.EntityDecl, hackathons.EntityDecl},
		},
		schema.SourceDecl{
			Name: "ArchiveDB",
			Type: "relational",
			Entities: []schema.EntityDecl{{
				Label: "Alumni",
				Kind:  schema.SourceCSV,
				File:  "alumni.csv",
				Fields: []schema.FieldDef{
					{Label: "AlumniID", DataType: "INT", IsPrimaryKey: true},
				},
			}},
		},
	)
	require.NoError(t, err)
	return reg
}

func TestLoader_LoadDir(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory(docstore.Dependencies{})
	loader, err := NewLoader(Dependencies{Registry: testRegistry(t), Store: store})
	require.NoError(t, err)

	require.NoError(t, loader.Provision(ctx))

	report, err := loader.LoadDir(ctx, "testdata")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Entities)
	assert.Equal(t, 1, report.Missing, "alumni.csv does not exist")
	assert.Equal(t, 7, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Skipped)

	students, err := store.Find(ctx, "Students", nil, nil)
	require.NoError(t, err)
	assert.Len(t, students, 3)

	clubs, err := store.Find(ctx, "StudentClubs",
		map[string]any{"MembershipID": "m-001"}, []string{"ClubName", "MeetingsAttended"})
	require.NoError(t, err)
	require.Len(t, clubs, 1)
	assert.Equal(t, docstore.Document{"ClubName": "Chess Club", "MeetingsAttended": 14}, clubs[0])

	t.Run("reload is idempotent", func(t *testing.T) {
		report, err := loader.LoadDir(ctx, "testdata")
		require.NoError(t, err)
		assert.Equal(t, 0, report.Inserted)
		assert.Equal(t, 7, report.Updated)

		n, err := store.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

func TestLoader_LoadEntity(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory(docstore.Dependencies{})
	loader, err := NewLoader(Dependencies{Registry: testRegistry(t), Store: store})
	require.NoError(t, err)
	require.NoError(t, loader.Provision(ctx))

	entity, err := loader.registry.Entity("Hackathons")
	require.NoError(t, err)

	result, skipped, err := loader.LoadEntity(ctx, entity, "testdata/hackathons.json")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, skipped)

	t.Run("missing file is a hard error", func(t *testing.T) {
		_, _, err := loader.LoadEntity(ctx, entity, "testdata/nope.json")
		assert.Error(t, err)
	})
}

func TestNewLoader_Validation(t *testing.T) {
	_, err := NewLoader(Dependencies{Store: docstore.NewMemory(docstore.Dependencies{})})
	assert.Error(t, err)

	_, err = NewLoader(Dependencies{Registry: testRegistry(t)})
	assert.Error(t, err)
}
