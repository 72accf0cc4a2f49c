package schema

import (
	"fmt"
	"strings"

	merrors "github.com/moosedb/moosedb/internal/errors"
)

// ValidateCollectionName rejects names that cannot back a user collection.
func ValidateCollectionName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return merrors.NewInvalidInput(merrors.CodeInvalidName, "Collection name is required")
	case strings.ContainsRune(name, 0):
		return merrors.NewInvalidInput(merrors.CodeInvalidName, "Collection name must not contain NUL bytes")
	case strings.HasPrefix(strings.ToLower(name), "sqlite_"):
		return merrors.NewInvalidInput(merrors.CodeInvalidName,
			fmt.Sprintf("Collection name %q uses the reserved sqlite_ prefix", name))
	case strings.HasPrefix(name, "_"):
		return merrors.NewInvalidInput(merrors.CodeInvalidName,
			fmt.Sprintf("Collection name %q uses the reserved _ prefix", name))
	}
	return nil
}

// ValidateFields checks a field list before any table is created.
func ValidateFields(fields []Field) error {
	if len(fields) == 0 {
		return merrors.NewInvalidInput(merrors.CodeInvalidSchema, "At least one field is required")
	}

	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.Title) == "" {
			return merrors.NewInvalidInput(merrors.CodeInvalidSchema,
				fmt.Sprintf("Field %d has no title", i)).
				WithDetails(map[string]interface{}{"index": i})
		}
		if strings.ContainsRune(f.Title, 0) {
			return merrors.NewInvalidInput(merrors.CodeInvalidSchema,
				fmt.Sprintf("Field %q must not contain NUL bytes", f.Title))
		}
		if IsReserved(f.Title) {
			return merrors.NewInvalidInput(merrors.CodeInvalidSchema,
				fmt.Sprintf("Field %q collides with a reserved column", f.Title)).
				WithDetails(map[string]interface{}{"field": f.Title})
		}
		// SQLite column names are case-insensitive.
		key := strings.ToLower(f.Title)
		if _, dup := seen[key]; dup {
			return merrors.NewInvalidInput(merrors.CodeInvalidSchema,
				fmt.Sprintf("Field %q is declared more than once", f.Title)).
				WithDetails(map[string]interface{}{"field": f.Title})
		}
		seen[key] = struct{}{}

		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return merrors.NewInvalidInput(merrors.CodeInvalidSchema,
				fmt.Sprintf("Field %q has min %d greater than max %d", f.Title, *f.Min, *f.Max))
		}
	}
	return nil
}
