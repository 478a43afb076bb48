package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceKind(t *testing.T) {
	t.Run("valid kinds", func(t *testing.T) {
		for _, k := range []SourceKind{SourceCSV, SourceJSON, SourceXML} {
			assert.True(t, k.IsValid(), "kind %s should be valid", k)
			assert.Equal(t, string(k), k.String())
		}
	})

	t.Run("invalid kinds", func(t *testing.T) {
		assert.False(t, SourceKind("").IsValid())
		assert.False(t, SourceKind("parquet").IsValid())
	})

	t.Run("json round trip", func(t *testing.T) {
		data, err := json.Marshal(SourceXML)
		require.NoError(t, err)
		assert.Equal(t, `"xml"`, string(data))

		var k SourceKind
		require.NoError(t, json.Unmarshal([]byte(`"csv"`), &k))
		assert.Equal(t, SourceCSV, k)
	})
}

func TestFieldDef_Types(t *testing.T) {
	tests := []struct {
		dataType string
		baseType string
		isArray  bool
		elemType string
	}{
		{"INT", "INT", false, ""},
		{"VARCHAR(50)", "VARCHAR", false, ""},
		{"DECIMAL(3,2)", "DECIMAL", false, ""},
		{"decimal(3,2)", "DECIMAL", false, ""},
		{"DATE", "DATE", false, ""},
		{"ARRAY<STRING>", "ARRAY", true, "STRING"},
		{"ARRAY<INT>", "ARRAY", true, "INT"},
		{"array<string>", "ARRAY", true, "STRING"},
		{"ARRAY", "ARRAY", true, "STRING"},
		{" STRING ", "STRING", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			f := FieldDef{Label: "x", DataType: tt.dataType}
			assert.Equal(t, tt.baseType, f.BaseType())
			assert.Equal(t, tt.isArray, f.IsArray())
			if tt.isArray {
				assert.Equal(t, tt.elemType, f.ElementType())
			}
		})
	}
}

func studentsEntity() EntityDecl {
	return EntityDecl{
		Label: "Students",
		Kind:  SourceCSV,
		File:  "students.csv",
		Fields: []FieldDef{
			{Label: "StudentID", DataType: "INT", IsPrimaryKey: true},
			{Label: "Major", DataType: "VARCHAR(100)"},
			{Label: "GPA", DataType: "DECIMAL(3,2)"},
		},
	}
}

func TestEntityDecl_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, studentsEntity().Validate())
	})

	t.Run("missing label", func(t *testing.T) {
		e := studentsEntity()
		e.Label = ""
		assert.Error(t, e.Validate())
	})

	t.Run("invalid kind", func(t *testing.T) {
		e := studentsEntity()
		e.Kind = "parquet"
		assert.Error(t, e.Validate())
	})

	t.Run("no fields", func(t *testing.T) {
		e := studentsEntity()
		e.Fields = nil
		assert.Error(t, e.Validate())
	})

	t.Run("xml requires xpath_base", func(t *testing.T) {
		e := studentsEntity()
		e.Kind = SourceXML
		assert.Error(t, e.Validate())

		e.XPathBase = "//Membership"
		assert.NoError(t, e.Validate())
	})

	t.Run("duplicate field labels", func(t *testing.T) {
		e := studentsEntity()
		e.Fields = append(e.Fields, FieldDef{Label: "Major", DataType: "STRING"})
		err := e.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate field label")
	})

	t.Run("multiple primary keys", func(t *testing.T) {
		e := studentsEntity()
		e.Fields[1].IsPrimaryKey = true
		err := e.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at most one primary key")
	})

	t.Run("field missing data type", func(t *testing.T) {
		e := studentsEntity()
		e.Fields[0].DataType = ""
		assert.Error(t, e.Validate())
	})
}

func TestEntityDecl_Accessors(t *testing.T) {
	e := studentsEntity()

	t.Run("collection defaults to label", func(t *testing.T) {
		assert.Equal(t, "Students", e.CollectionName())

		withOverride := e
		withOverride.Collection = "students_v2"
		assert.Equal(t, "students_v2", withOverride.CollectionName())
	})

	t.Run("primary key", func(t *testing.T) {
		pk, ok := e.PrimaryKey()
		require.True(t, ok)
		assert.Equal(t, "StudentID", pk.Label)

		noPK := e
		noPK.Fields = []FieldDef{{Label: "Name", DataType: "STRING"}}
		_, ok = noPK.PrimaryKey()
		assert.False(t, ok)
	})

	t.Run("field lookup", func(t *testing.T) {
		f, ok := e.FieldByLabel("GPA")
		require.True(t, ok)
		assert.Equal(t, "DECIMAL(3,2)", f.DataType)

		_, ok = e.FieldByLabel("Nope")
		assert.False(t, ok)
	})

	t.Run("field labels in order", func(t *testing.T) {
		assert.Equal(t, []string{"StudentID", "Major", "GPA"}, e.FieldLabels())
	})
}
