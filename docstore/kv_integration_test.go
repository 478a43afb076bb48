//go:build integration

package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/c360/semfuse/errors"
	"github.com/c360/semfuse/natsclient"
)

func newTestKV(t *testing.T, client *natsclient.Client, bucket string) *KV {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	kv, err := NewKV(ctx, client, KVConfig{Bucket: bucket, RateLimit: 500, RateBurst: 64}, Dependencies{})
	require.NoError(t, err)
	return kv
}

func TestKV_Integration_DocumentLifecycle(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithKV())
	ctx := context.Background()

	kv := newTestKV(t, tc.Client, "docstore_lifecycle")
	require.NoError(t, kv.EnsureCollection(ctx, studentsSpec()))

	require.NoError(t, kv.InsertMany(ctx, "Students", []Document{
		{"StudentID": 1002, "Major": "Physics", "GPA": 3.2},
		{"StudentID": 1001, "Major": "Computer Science", "GPA": 3.8},
	}))

	t.Run("find returns key-sorted order", func(t *testing.T) {
		got, err := kv.Find(ctx, "Students", nil, []string{"StudentID"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, float64(1001), got[0]["StudentID"])
		assert.Equal(t, float64(1002), got[1]["StudentID"])
	})

	t.Run("filter and projection", func(t *testing.T) {
		got, err := kv.Find(ctx, "Students",
			map[string]any{"GPA": map[string]any{"$gt": 3.5}},
			[]string{"Major"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, Document{"Major": "Computer Science"}, got[0])
	})

	t.Run("duplicate primary key", func(t *testing.T) {
		err := kv.InsertMany(ctx, "Students", []Document{
			{"StudentID": 1001, "Major": "History"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateEntity)
	})

	t.Run("upsert replaces and reports counts", func(t *testing.T) {
		res, err := kv.UpsertBatch(ctx, "Students", []Document{
			{"StudentID": 1001, "Major": "Mathematics", "GPA": 3.9},
			{"StudentID": 1003, "Major": "Biology", "GPA": 3.0},
		}, "StudentID")
		require.NoError(t, err)
		assert.Equal(t, UpsertResult{Inserted: 1, Updated: 1}, res)

		n, err := kv.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		got, err := kv.Find(ctx, "Students", map[string]any{"StudentID": 1001}, []string{"Major"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Mathematics", got[0]["Major"])
	})

	t.Run("clear keeps collection provisioned", func(t *testing.T) {
		require.NoError(t, kv.Clear(ctx, "Students"))
		n, err := kv.Count(ctx, "Students")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("drop removes spec", func(t *testing.T) {
		require.NoError(t, kv.Drop(ctx, "Students"))
		_, err := kv.Count(ctx, "Students")
		assert.ErrorIs(t, err, pkgerrors.ErrCollectionNotFound)
	})
}

func TestKV_Integration_SpecsSurviveRestart(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithKV())
	ctx := context.Background()

	first := newTestKV(t, tc.Client, "docstore_restart")
	require.NoError(t, first.EnsureCollection(ctx, studentsSpec()))
	require.NoError(t, first.InsertMany(ctx, "Students", []Document{
		{"StudentID": 1001, "Major": "Physics"},
	}))

	// A fresh store over the same bucket stands in for a process restart.
	second := newTestKV(t, tc.Client, "docstore_restart")

	names, err := second.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Students"}, names)

	t.Run("validator rediscovered", func(t *testing.T) {
		err := second.InsertMany(ctx, "Students", []Document{
			{"StudentID": "not-a-number"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	})

	t.Run("uniqueness enforced across instances", func(t *testing.T) {
		err := second.InsertMany(ctx, "Students", []Document{
			{"StudentID": 1001, "Major": "History"},
		})
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateEntity)
	})
}

func TestKV_Integration_KeylessCollection(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithKV())
	ctx := context.Background()

	kv := newTestKV(t, tc.Client, "docstore_keyless")
	require.NoError(t, kv.EnsureCollection(ctx, CollectionSpec{Name: "events"}))

	// Without a primary key every insert appends under a fresh id.
	require.NoError(t, kv.InsertMany(ctx, "events", []Document{{"kind": "login"}}))
	require.NoError(t, kv.InsertMany(ctx, "events", []Document{{"kind": "login"}}))

	n, err := kv.Count(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
