package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/schema"
)

func studentsSpec() CollectionSpec {
	return SpecForEntity(schema.Entity{
		EntityDecl: schema.EntityDecl{
			Label: "Students",
			Kind:  schema.SourceCSV,
			Fields: []schema.FieldDef{
				{Label: "StudentID", DataType: "INT", IsPrimaryKey: true},
				{Label: "Major", DataType: "VARCHAR(100)"},
				{Label: "GPA", DataType: "DECIMAL(3,2)"},
			},
		},
	})
}

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(Dependencies{})
	require.NoError(t, m.EnsureCollection(context.Background(), studentsSpec()))
	return m
}

func TestMemory_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	docs := []Document{
		{"StudentID": 1001, "Major": "Computer Science", "GPA": 3.8},
		{"StudentID": 1002, "Major": "Physics", "GPA": 3.2},
		{"StudentID": 1003, "Major": "Computer Science", "GPA": 2.9},
	}
	require.NoError(t, m.InsertMany(ctx, "Students", docs))

	t.Run("find all preserves insertion order", func(t *testing.T) {
		got, err := m.Find(ctx, "Students", nil, []string{"StudentID"})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, 1001, got[0]["StudentID"])
		assert.Equal(t, 1003, got[2]["StudentID"])
	})

	t.Run("filter with projection", func(t *testing.T) {
		got, err := m.Find(ctx, "Students",
			map[string]any{"Major": "Computer Science", "GPA": map[string]any{"$gte": 3.0}},
			[]string{"StudentID", "GPA"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, Document{"StudentID": 1001, "GPA": 3.8}, got[0])
	})

	t.Run("stored documents are isolated from caller mutation", func(t *testing.T) {
		docs[0]["Major"] = "Tampered"
		got, err := m.Find(ctx, "Students", map[string]any{"StudentID": 1001}, []string{"Major"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Computer Science", got[0]["Major"])
	})

	t.Run("nil projection includes store id", func(t *testing.T) {
		got, err := m.Find(ctx, "Students", map[string]any{"StudentID": 1002}, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.NotEmpty(t, got[0][IDField])
	})

	t.Run("count", func(t *testing.T) {
		n, err := m.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})
}

func TestMemory_PrimaryKeyUniqueness(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	require.NoError(t, m.InsertMany(ctx, "Students", []Document{{"StudentID": 1001}}))

	t.Run("duplicate against stored", func(t *testing.T) {
		err := m.InsertMany(ctx, "Students", []Document{{"StudentID": 1001}})
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateEntity)
	})

	t.Run("duplicate within batch rejects whole batch", func(t *testing.T) {
		err := m.InsertMany(ctx, "Students", []Document{
			{"StudentID": 2001}, {"StudentID": 2001},
		})
		require.Error(t, err)

		n, err := m.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("int and float keys collide", func(t *testing.T) {
		err := m.InsertMany(ctx, "Students", []Document{{"StudentID": float64(1001)}})
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateEntity)
	})
}

func TestMemory_UpsertBatch(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	res, err := m.UpsertBatch(ctx, "Students", []Document{
		{"StudentID": 1001, "Major": "Physics"},
		{"StudentID": 1002, "Major": "History"},
	}, "StudentID")
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 2}, res)

	t.Run("rerun replaces in place", func(t *testing.T) {
		res, err := m.UpsertBatch(ctx, "Students", []Document{
			{"StudentID": 1001, "Major": "Mathematics"},
			{"StudentID": 1003, "Major": "Biology"},
		}, "StudentID")
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Inserted: 1, Updated: 1}, res)

		got, err := m.Find(ctx, "Students", nil, []string{"StudentID", "Major"})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "Mathematics", got[0]["Major"], "updated document keeps its position")
		assert.Equal(t, 1003, got[2]["StudentID"])
	})

	t.Run("update preserves store id", func(t *testing.T) {
		before, err := m.Find(ctx, "Students", map[string]any{"StudentID": 1002}, nil)
		require.NoError(t, err)

		_, err = m.UpsertBatch(ctx, "Students", []Document{
			{"StudentID": 1002, "Major": "Chemistry"},
		}, "StudentID")
		require.NoError(t, err)

		after, err := m.Find(ctx, "Students", map[string]any{"StudentID": 1002}, nil)
		require.NoError(t, err)
		assert.Equal(t, before[0][IDField], after[0][IDField])
	})

	t.Run("mismatched upsert key rejected", func(t *testing.T) {
		_, err := m.UpsertBatch(ctx, "Students", []Document{{"Major": "Art"}}, "Major")
		require.Error(t, err)
		assert.True(t, pkgerrors.IsInvalid(err))
	})

	t.Run("empty key appends", func(t *testing.T) {
		before, err := m.Count(ctx, "Students")
		require.NoError(t, err)

		res, err := m.UpsertBatch(ctx, "Students", []Document{
			{"StudentID": 1001, "Major": "Duplicate on purpose"},
		}, "")
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Inserted: 1}, res)

		after, err := m.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, before+1, after)
	})
}

func TestMemory_Validation(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t)

	t.Run("wrong type rejected", func(t *testing.T) {
		err := m.InsertMany(ctx, "Students", []Document{
			{"StudentID": "not-a-number"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	})

	t.Run("missing primary key rejected", func(t *testing.T) {
		err := m.InsertMany(ctx, "Students", []Document{{"Major": "Physics"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	})

	t.Run("null optional field accepted", func(t *testing.T) {
		err := m.InsertMany(ctx, "Students", []Document{
			{"StudentID": 3001, "GPA": nil},
		})
		assert.NoError(t, err)
	})
}

func TestMemory_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Dependencies{})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := m.Find(ctx, "Ghost", nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrCollectionNotFound)
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	require.NoError(t, m.EnsureCollection(ctx, studentsSpec()))
	require.NoError(t, m.EnsureCollection(ctx, CollectionSpec{Name: "Enrollments"}))
	require.NoError(t, m.InsertMany(ctx, "Students", []Document{{"StudentID": 1}}))

	t.Run("collections sorted", func(t *testing.T) {
		names, err := m.Collections(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Enrollments", "Students"}, names)
	})

	t.Run("ensure is idempotent and keeps documents", func(t *testing.T) {
		require.NoError(t, m.EnsureCollection(ctx, studentsSpec()))
		n, err := m.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("clear keeps collection", func(t *testing.T) {
		require.NoError(t, m.Clear(ctx, "Students"))
		n, err := m.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		require.NoError(t, m.InsertMany(ctx, "Students", []Document{{"StudentID": 1}}))
	})

	t.Run("drop removes collection", func(t *testing.T) {
		require.NoError(t, m.Drop(ctx, "Students"))
		_, err := m.Count(ctx, "Students")
		assert.ErrorIs(t, err, pkgerrors.ErrCollectionNotFound)

		assert.NoError(t, m.Drop(ctx, "Students"), "dropping twice is a no-op")
	})
}
