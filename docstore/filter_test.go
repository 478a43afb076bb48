package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchFilter(t *testing.T) {
	doc := Document{
		"StudentID": 1001,
		"Major":     "Computer Science",
		"GPA":       3.8,
		"Credits":   float64(90),
		"Advisor":   nil,
		"ClubIDs":   []any{7, 9},
	}

	tests := []struct {
		name   string
		filter map[string]any
		want   bool
	}{
		{"nil filter", nil, true},
		{"empty filter", map[string]any{}, true},
		{"equality string", map[string]any{"Major": "Computer Science"}, true},
		{"equality mismatch", map[string]any{"Major": "History"}, false},
		{"equality int vs float", map[string]any{"StudentID": float64(1001)}, true},
		{"equality float vs int", map[string]any{"Credits": 90}, true},
		{"missing field equality", map[string]any{"Name": "Alice"}, false},
		{"gt match", map[string]any{"GPA": map[string]any{"$gt": 3.5}}, true},
		{"gt boundary", map[string]any{"GPA": map[string]any{"$gt": 3.8}}, false},
		{"gte boundary", map[string]any{"GPA": map[string]any{"$gte": 3.8}}, true},
		{"lt match", map[string]any{"StudentID": map[string]any{"$lt": 2000}}, true},
		{"lte boundary", map[string]any{"StudentID": map[string]any{"$lte": 1001}}, true},
		{"string ordering", map[string]any{"Major": map[string]any{"$gt": "Biology"}}, true},
		{"ne match", map[string]any{"Major": map[string]any{"$ne": "History"}}, true},
		{"ne mismatch", map[string]any{"Major": map[string]any{"$ne": "Computer Science"}}, false},
		{"in match", map[string]any{"StudentID": map[string]any{"$in": []any{float64(1001), float64(1002)}}}, true},
		{"in miss", map[string]any{"StudentID": map[string]any{"$in": []any{float64(9)}}}, false},
		{"in non-list operand", map[string]any{"StudentID": map[string]any{"$in": 1001}}, false},
		{"exists true", map[string]any{"Major": map[string]any{"$exists": true}}, true},
		{"exists false on present", map[string]any{"Major": map[string]any{"$exists": false}}, false},
		{"exists false on missing", map[string]any{"Name": map[string]any{"$exists": false}}, true},
		{"exists true on null", map[string]any{"Advisor": map[string]any{"$exists": true}}, false},
		{"operator on missing field", map[string]any{"Name": map[string]any{"$gt": "A"}}, false},
		{"operator on null field", map[string]any{"Advisor": map[string]any{"$ne": "x"}}, false},
		{"unknown operator", map[string]any{"GPA": map[string]any{"$near": 3.8}}, false},
		{"incomparable operands", map[string]any{"Major": map[string]any{"$gt": 5}}, false},
		{"array field contains value", map[string]any{"ClubIDs": 9}, true},
		{"array field missing value", map[string]any{"ClubIDs": 8}, false},
		{"array field in", map[string]any{"ClubIDs": map[string]any{"$in": []any{float64(7), float64(100)}}}, true},
		{"array field ne is not membership negation", map[string]any{"ClubIDs": map[string]any{"$ne": 8}}, true},
		{"multiple clauses all match", map[string]any{"Major": "Computer Science", "GPA": map[string]any{"$gte": 3.0}}, true},
		{"multiple clauses one fails", map[string]any{"Major": "Computer Science", "GPA": map[string]any{"$lt": 3.0}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchFilter(doc, tt.filter))
		})
	}
}

func TestApplyProjection(t *testing.T) {
	doc := Document{IDField: "x1", "Major": "Physics", "GPA": 3.2}

	t.Run("nil projection returns document as stored", func(t *testing.T) {
		got := ApplyProjection(doc, nil)
		assert.Equal(t, doc, got)
	})

	t.Run("include only requested fields", func(t *testing.T) {
		got := ApplyProjection(doc, []string{"Major"})
		assert.Equal(t, Document{"Major": "Physics"}, got)
	})

	t.Run("absent fields stay absent", func(t *testing.T) {
		got := ApplyProjection(doc, []string{"Major", "Name"})
		assert.Equal(t, Document{"Major": "Physics"}, got)
		_, ok := got["Name"]
		assert.False(t, ok)
	})

	t.Run("empty projection yields empty document", func(t *testing.T) {
		got := ApplyProjection(doc, []string{})
		assert.Empty(t, got)
	})
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "s-1001", "s-1001"},
		{"int", 42, "42"},
		{"int64", int64(42), "42"},
		{"integral float", float64(42), "42"},
		{"fractional float", 3.5, "3.5"},
		{"bool falls through", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyString(tt.in))
		})
	}
}

func TestSanitizeKeyPart(t *testing.T) {
	assert.Equal(t, "students", sanitizeKeyPart("students"))
	assert.Equal(t, "a_b_c", sanitizeKeyPart("a.b c"))
	assert.Equal(t, "CS-101_v2", sanitizeKeyPart("CS-101/v2"))
}
