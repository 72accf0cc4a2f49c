package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	merrors "github.com/moosedb/moosedb/internal/errors"
)

func TestValidateCollectionName(t *testing.T) {
	valid := []string{"notes", "Order Items", `we"ird`}
	for _, name := range valid {
		assert.NoError(t, ValidateCollectionName(name), name)
	}

	invalid := []string{"", "   ", "a\x00b", "sqlite_master", "SQLITE_x", "_configs"}
	for _, name := range invalid {
		err := ValidateCollectionName(name)
		assert.True(t, merrors.IsInvalidInput(err), "%q should be rejected", name)
	}
}

func TestValidateFields(t *testing.T) {
	ok := []Field{
		{Title: "body", Type: TypeText},
		{Title: "stars", Type: TypeInteger, Min: i64(1), Max: i64(5)},
	}
	assert.NoError(t, ValidateFields(ok))

	tests := []struct {
		name   string
		fields []Field
	}{
		{"empty list", nil},
		{"empty title", []Field{{Title: " ", Type: TypeText}}},
		{"reserved id", []Field{{Title: "ID", Type: TypeInteger}}},
		{"reserved created_at", []Field{{Title: "created_at", Type: TypeText}}},
		{"duplicate", []Field{{Title: "a", Type: TypeText}, {Title: "A", Type: TypeText}}},
		{"min above max", []Field{{Title: "n", Type: TypeInteger, Min: i64(10), Max: i64(1)}}},
		{"nul in title", []Field{{Title: "a\x00", Type: TypeText}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFields(tt.fields)
			assert.True(t, merrors.IsInvalidInput(err))
			assert.Equal(t, merrors.CodeInvalidSchema, merrors.GetCode(err))
		})
	}
}

func TestFieldTypePredicates(t *testing.T) {
	assert.True(t, TypeVarchar.IsTextual())
	assert.True(t, FieldType("text").IsTextual())
	assert.False(t, TypeInteger.IsTextual())
	assert.True(t, TypeDecimal.IsNumeric())
	assert.False(t, TypeBoolean.IsNumeric())
	assert.True(t, TypeTimestamp.IsKnown())
	assert.False(t, FieldType("FLOAT").IsKnown())
}
