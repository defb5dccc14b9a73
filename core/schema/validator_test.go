package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFundingSchema(t *testing.T) *SchemaDefinition {
	t.Helper()
	sc, err := NewSchemaFromColumns("master", []string{"Service ID", "Funder Country", "Funding Committed (EUR)"})
	require.NoError(t, err)
	require.NoError(t, sc.SetFieldType("Funding Committed (EUR)", FieldTypeNumber))
	return sc
}

func TestNewSchemaFromColumns(t *testing.T) {
	t.Run("keeps header order", func(t *testing.T) {
		sc, err := NewSchemaFromColumns("registry", []string{"b", "a", "c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c"}, sc.Columns())
		assert.True(t, sc.HasField("a"))
		assert.False(t, sc.HasField("d"))
		assert.Equal(t, "c", sc.Fields["c"].Name)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewSchemaFromColumns("registry", []string{"a", "a"})
		assert.Error(t, err)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		_, err := NewSchemaFromColumns("registry", []string{"a", ""})
		assert.Error(t, err)
	})

	t.Run("falls back to sorted names", func(t *testing.T) {
		sc := &SchemaDefinition{Fields: map[string]*FieldDefinition{"z": {Name: "z"}, "m": {Name: "m"}}}
		assert.Equal(t, []string{"m", "z"}, sc.Columns())
	})
}

func TestSchemaDefinition_Clone(t *testing.T) {
	sc := newFundingSchema(t)
	cp := sc.Clone()
	require.NoError(t, cp.SetFieldType("Service ID", FieldTypeNumber))
	assert.Equal(t, FieldTypeString, sc.Fields["Service ID"].Type)
	assert.Equal(t, sc.Columns(), cp.Columns())
}

func TestValidator_Validate(t *testing.T) {
	sc := newFundingSchema(t)
	v := NewValidator(sc, nil)

	t.Run("valid record", func(t *testing.T) {
		ok, issues := v.Validate(Document{"Service ID": "A", "Funder Country": "NL", "Funding Committed (EUR)": "100"}, false)
		assert.True(t, ok)
		assert.Empty(t, issues)
	})

	t.Run("missing column", func(t *testing.T) {
		ok, issues := v.Validate(Document{"Service ID": "A", "Funding Committed (EUR)": "100"}, false)
		assert.False(t, ok)
		require.Len(t, issues, 1)
		assert.Equal(t, "REQUIRED_FIELD_MISSING", issues[0].Code)
		assert.Equal(t, "Funder Country", issues[0].Path)
	})

	t.Run("loose ignores missing column", func(t *testing.T) {
		ok, issues := v.Validate(Document{"Service ID": "A", "Funding Committed (EUR)": "100"}, true)
		assert.True(t, ok)
		assert.Empty(t, issues)
	})

	t.Run("unexpected column", func(t *testing.T) {
		ok, issues := v.Validate(Document{"Service ID": "A", "Funder Country": "NL", "Funding Committed (EUR)": "1", "Extra": "x"}, false)
		assert.False(t, ok)
		require.Len(t, issues, 1)
		assert.Equal(t, "UNEXPECTED_FIELD", issues[0].Code)
	})

	t.Run("non scalar value", func(t *testing.T) {
		ok, issues := v.Validate(Document{"Service ID": []string{"A"}, "Funder Country": "NL", "Funding Committed (EUR)": "1"}, false)
		assert.False(t, ok)
		require.Len(t, issues, 1)
		assert.Equal(t, "TYPE_MISMATCH", issues[0].Code)
	})

	t.Run("unparseable number is a warning", func(t *testing.T) {
		ok, issues := v.Validate(Document{"Service ID": "A", "Funder Country": "NL", "Funding Committed (EUR)": "n/a"}, false)
		assert.True(t, ok)
		require.Len(t, issues, 1)
		assert.Equal(t, "NUMBER_UNPARSEABLE", issues[0].Code)
		assert.Equal(t, "warning", issues[0].Severity)
	})

	t.Run("blank number is fine", func(t *testing.T) {
		ok, issues := v.Validate(Document{"Service ID": "A", "Funder Country": "NL", "Funding Committed (EUR)": " "}, false)
		assert.True(t, ok)
		assert.Empty(t, issues)
	})
}

func TestValidator_ValidateAll(t *testing.T) {
	v := NewValidator(newFundingSchema(t), nil)
	ok, issues := v.ValidateAll([]Document{
		{"Service ID": "A", "Funder Country": "NL", "Funding Committed (EUR)": "1"},
		{"Service ID": "B", "Funding Committed (EUR)": "2"},
	}, false)
	assert.False(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "[1].Funder Country", issues[0].Path)
}
