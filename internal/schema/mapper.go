package schema

import (
	"fmt"
	"strings"
)

// PhysicalType returns the SQLite column type for an abstract field type.
// Unknown types fall back to TEXT.
func PhysicalType(t FieldType) string {
	switch t.Normalize() {
	case TypeVarchar:
		return "VARCHAR"
	case TypeText:
		return "TEXT"
	case TypeInteger:
		return "INTEGER"
	case TypeDecimal:
		return "REAL"
	case TypeBoolean:
		return "INTEGER"
	case TypeDatetime, TypeTimestamp:
		return "TEXT"
	default:
		return "TEXT"
	}
}

// QuoteIdent quotes an SQL identifier, doubling embedded double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ConstraintClause returns the column constraints for f, each fragment with a
// leading space. Bounds on textual types constrain length; bounds on numeric
// types constrain the value. Bounds on other types are ignored.
func ConstraintClause(f Field) string {
	var b strings.Builder
	col := QuoteIdent(f.Title)

	if !f.Nullable {
		b.WriteString(" NOT NULL")
	}
	if f.Unique {
		b.WriteString(" UNIQUE")
	}

	var subject string
	switch {
	case f.Type.IsTextual():
		subject = fmt.Sprintf("length(%s)", col)
	case f.Type.IsNumeric():
		subject = col
	default:
		return b.String()
	}

	if f.Min != nil {
		fmt.Fprintf(&b, " CHECK(%s >= %d)", subject, *f.Min)
	}
	if f.Max != nil {
		fmt.Fprintf(&b, " CHECK(%s <= %d)", subject, *f.Max)
	}
	return b.String()
}

// ColumnDefinition returns the full column definition for f.
func ColumnDefinition(f Field) string {
	return QuoteIdent(f.Title) + " " + PhysicalType(f.Type) + ConstraintClause(f)
}

// CreateTableSQL builds the CREATE TABLE statement for a collection: an
// auto-increment id, one column per field in order, then the two timestamps.
func CreateTableSQL(name string, fields []Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (%s INTEGER PRIMARY KEY AUTOINCREMENT", QuoteIdent(name), ColumnID)
	for _, f := range fields {
		b.WriteString(", ")
		b.WriteString(ColumnDefinition(f))
	}
	fmt.Fprintf(&b, ", %s TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP", ColumnCreatedAt)
	fmt.Fprintf(&b, ", %s TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)", ColumnUpdatedAt)
	return b.String()
}
