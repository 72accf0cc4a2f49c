// Package schema maps user-declared collection fields onto SQLite column
// definitions.
//
// The abstract type vocabulary is closed. Anything outside it is stored as TEXT
// rather than rejected, so a typo in a field type degrades to an untyped column
// instead of failing collection creation.
package schema

import "strings"

// FieldType is the abstract type of a collection field.
type FieldType string

const (
	TypeVarchar   FieldType = "VARCHAR"
	TypeText      FieldType = "TEXT"
	TypeInteger   FieldType = "INTEGER"
	TypeDecimal   FieldType = "DECIMAL"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeDatetime  FieldType = "DATETIME"
	TypeTimestamp FieldType = "TIMESTAMP"
)

// KnownTypes lists the abstract type vocabulary in declaration order.
var KnownTypes = []FieldType{
	TypeVarchar, TypeText, TypeInteger, TypeDecimal, TypeBoolean, TypeDatetime, TypeTimestamp,
}

// Normalize returns the canonical upper-case spelling of t.
func (t FieldType) Normalize() FieldType {
	return FieldType(strings.ToUpper(strings.TrimSpace(string(t))))
}

// IsKnown reports whether t is part of the vocabulary.
func (t FieldType) IsKnown() bool {
	switch t.Normalize() {
	case TypeVarchar, TypeText, TypeInteger, TypeDecimal, TypeBoolean, TypeDatetime, TypeTimestamp:
		return true
	}
	return false
}

// IsTextual reports whether min/max bound the value's length.
func (t FieldType) IsTextual() bool {
	n := t.Normalize()
	return n == TypeVarchar || n == TypeText
}

// IsNumeric reports whether min/max bound the value itself.
func (t FieldType) IsNumeric() bool {
	n := t.Normalize()
	return n == TypeInteger || n == TypeDecimal
}

// Field is one user-declared attribute of a collection. The JSON shape is the
// create-collection request body.
type Field struct {
	Title    string    `json:"title"`
	Type     FieldType `json:"type"`
	Unique   bool      `json:"unique"`
	Nullable bool      `json:"nullable"`
	Min      *int64    `json:"min,omitempty"`
	Max      *int64    `json:"max,omitempty"`
}

// Reserved column names every collection table carries.
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// IsReserved reports whether name collides with an engine-managed column.
func IsReserved(name string) bool {
	switch strings.ToLower(name) {
	case ColumnID, ColumnCreatedAt, ColumnUpdatedAt:
		return true
	}
	return false
}
