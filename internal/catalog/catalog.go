package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/schema"
	"github.com/moosedb/moosedb/internal/store"
)

// FieldInfo is one catalog row projected onto the field it describes.
type FieldInfo struct {
	Name     string           `json:"name"`
	Type     schema.FieldType `json:"type"`
	Unique   bool             `json:"unique"`
	Nullable bool             `json:"nullable"`
	Min      *int64           `json:"min,omitempty"`
	Max      *int64           `json:"max,omitempty"`
}

// Field converts the catalog row back into a schema field.
func (f FieldInfo) Field() schema.Field {
	return schema.Field{
		Title:    f.Name,
		Type:     f.Type,
		Unique:   f.Unique,
		Nullable: f.Nullable,
		Min:      f.Min,
		Max:      f.Max,
	}
}

// CollectionInfo identifies a collection.
type CollectionInfo struct {
	ID         string `json:"collection_id"`
	Name       string `json:"collection_name"`
	FieldCount int    `json:"field_count"`
}

// Catalog reads and writes _database_metadata. Every method takes the Queryer to
// run on so that callers keep each operation on a single borrowed connection or
// inside their own transaction.
type Catalog struct {
	cache *FieldCache
}

// New creates a Catalog. When cache is non-nil, FieldsOf results are cached
// until Invalidate is called for the collection.
func New(cache *FieldCache) *Catalog {
	return &Catalog{cache: cache}
}

// Exists reports whether the catalog table has been created. Its absence is the
// zero-collections state.
func (c *Catalog) Exists(ctx context.Context, q store.Queryer) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, TableName).Scan(&n)
	if err != nil {
		return false, store.MapError(err, "catalog: failed to check metadata table")
	}
	return n > 0, nil
}

// EnsureTable creates the catalog table if it does not exist.
func (c *Catalog) EnsureTable(ctx context.Context, q store.Queryer) error {
	for _, stmt := range AllSchemaSQL() {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return store.MapError(err, "catalog: failed to create metadata table")
		}
	}
	return nil
}

// RecordField writes the catalog row for one field of a collection.
func (c *Catalog) RecordField(ctx context.Context, q store.Queryer, id, name string, f schema.Field) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO _database_metadata
			(collection_id, collection_name, field_name, field_type, unique_field, nullable, min, max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, name, f.Title, string(f.Type), f.Unique, f.Nullable, nullableInt(f.Min), nullableInt(f.Max))
	if err != nil {
		return store.MapError(err, fmt.Sprintf("catalog: failed to record field %s.%s", name, f.Title))
	}
	return nil
}

// FieldsOf returns the fields of a collection in declaration order.
func (c *Catalog) FieldsOf(ctx context.Context, q store.Queryer, name string) ([]FieldInfo, error) {
	var gen uint64
	if c.cache != nil {
		if fields, ok := c.cache.Get(name); ok {
			return fields, nil
		}
		gen = c.cache.Generation(name)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT field_name, field_type, unique_field, nullable, min, max
		FROM _database_metadata
		WHERE collection_name = ?
		ORDER BY rowid`, name)
	if err != nil {
		return nil, store.MapError(err, "catalog: failed to read fields")
	}
	defer rows.Close()

	var fields []FieldInfo
	for rows.Next() {
		var (
			f        FieldInfo
			typ      string
			min, max sql.NullInt64
		)
		if err := rows.Scan(&f.Name, &typ, &f.Unique, &f.Nullable, &min, &max); err != nil {
			return nil, store.MapError(err, "catalog: failed to scan field")
		}
		f.Type = schema.FieldType(typ)
		if min.Valid {
			v := min.Int64
			f.Min = &v
		}
		if max.Valid {
			v := max.Int64
			f.Max = &v
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapError(err, "catalog: failed to read fields")
	}

	if len(fields) == 0 {
		return nil, merrors.NewNotFound(merrors.CodeCollectionNotFound,
			fmt.Sprintf("Collection '%s' not found", name))
	}

	if c.cache != nil {
		c.cache.PutIfGeneration(name, gen, fields)
	}
	return fields, nil
}

// CollectionIDToName resolves a collection id. Unknown ids, including every id
// while the catalog table is absent, are NOT_FOUND.
func (c *Catalog) CollectionIDToName(ctx context.Context, q store.Queryer, id string) (string, error) {
	return c.lookup(ctx, q,
		`SELECT collection_name FROM _database_metadata WHERE collection_id = ? LIMIT 1`, id,
		fmt.Sprintf("Collection with id '%s' not found", id))
}

// CollectionNameToID resolves a collection name.
func (c *Catalog) CollectionNameToID(ctx context.Context, q store.Queryer, name string) (string, error) {
	return c.lookup(ctx, q,
		`SELECT collection_id FROM _database_metadata WHERE collection_name = ? LIMIT 1`, name,
		fmt.Sprintf("Collection '%s' not found", name))
}

func (c *Catalog) lookup(ctx context.Context, q store.Queryer, query, arg, notFound string) (string, error) {
	exists, err := c.Exists(ctx, q)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", merrors.NewNotFound(merrors.CodeCollectionNotFound, notFound)
	}

	var out string
	err = q.QueryRowContext(ctx, query, arg).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return "", merrors.NewNotFound(merrors.CodeCollectionNotFound, notFound)
	}
	if err != nil {
		return "", store.MapError(err, "catalog: lookup failed")
	}
	return out, nil
}

// DeleteCollection removes every catalog row of a collection and returns how
// many rows were deleted.
func (c *Catalog) DeleteCollection(ctx context.Context, q store.Queryer, id string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM _database_metadata WHERE collection_id = ?`, id)
	if err != nil {
		return 0, store.MapError(err, "catalog: failed to delete collection rows")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.MapError(err, "catalog: failed to delete collection rows")
	}
	return n, nil
}

// ListCollections returns every collection in creation order. It returns an
// empty slice when the catalog table does not exist.
func (c *Catalog) ListCollections(ctx context.Context, q store.Queryer) ([]CollectionInfo, error) {
	exists, err := c.Exists(ctx, q)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []CollectionInfo{}, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT collection_id, collection_name, COUNT(*)
		FROM _database_metadata
		GROUP BY collection_id, collection_name
		ORDER BY MIN(rowid)`)
	if err != nil {
		return nil, store.MapError(err, "catalog: failed to list collections")
	}
	defer rows.Close()

	collections := []CollectionInfo{}
	for rows.Next() {
		var ci CollectionInfo
		if err := rows.Scan(&ci.ID, &ci.Name, &ci.FieldCount); err != nil {
			return nil, store.MapError(err, "catalog: failed to scan collection")
		}
		collections = append(collections, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapError(err, "catalog: failed to list collections")
	}
	return collections, nil
}

// Invalidate drops any cached fields for name.
func (c *Catalog) Invalidate(name string) {
	if c.cache != nil {
		c.cache.Invalidate(name)
	}
}

// TableExists reports whether a physical table called name exists.
func TableExists(ctx context.Context, q store.Queryer, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, store.MapError(err, "catalog: failed to check table")
	}
	return n > 0, nil
}

// TableColumns returns the lower-cased column names of table name. The map is
// empty when the table does not exist.
func TableColumns(ctx context.Context, q store.Queryer, name string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, store.MapError(err, "catalog: failed to read table columns")
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, store.MapError(err, "catalog: failed to scan table column")
		}
		cols[strings.ToLower(col)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapError(err, "catalog: failed to read table columns")
	}
	return cols, nil
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
