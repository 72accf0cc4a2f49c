package collection

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/moosedb/moosedb/internal/catalog"
	"github.com/moosedb/moosedb/internal/codec"
	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/schema"
	"github.com/moosedb/moosedb/internal/store"
)

// RecordSet is every record of a collection plus the column order used to
// present them.
type RecordSet struct {
	Collection catalog.CollectionInfo `json:"collection"`
	Columns    []string               `json:"columns"`
	Records    []map[string]any       `json:"records"`
}

// Registry serves the generic operations over existing collections. Each call
// borrows one pooled connection for its whole duration.
type Registry struct {
	store   *store.Store
	catalog *catalog.Catalog
	codec   *codec.Codec
}

// NewRegistry creates a Registry.
func NewRegistry(s *store.Store, cat *catalog.Catalog) *Registry {
	return &Registry{
		store:   s,
		catalog: cat,
		codec:   codec.New(cat),
	}
}

// ListCollections returns every collection, or an empty slice before the first
// collection is created.
func (r *Registry) ListCollections(ctx context.Context) ([]catalog.CollectionInfo, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return r.catalog.ListCollections(ctx, conn)
}

// GetRecords returns every record of the collection with the given id.
func (r *Registry) GetRecords(ctx context.Context, id string) (*RecordSet, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	name, err := r.catalog.CollectionIDToName(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	fields, err := r.catalog.FieldsOf(ctx, conn, name)
	if err != nil {
		return nil, err
	}

	// Quoted names that match no column read back as string literals, so
	// every catalog field must be checked against the table first.
	physical, err := catalog.TableColumns(ctx, conn, name)
	if err != nil {
		return nil, err
	}
	if len(physical) == 0 {
		return nil, danglingError(id, name)
	}
	for _, f := range fields {
		if _, ok := physical[strings.ToLower(f.Name)]; !ok {
			return nil, mismatchError(id, name, f.Name)
		}
	}

	columns := make([]string, 0, len(fields)+3)
	columns = append(columns, schema.ColumnID)
	for _, f := range fields {
		columns = append(columns, f.Name)
	}
	columns = append(columns, schema.ColumnCreatedAt, schema.ColumnUpdatedAt)

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = schema.QuoteIdent(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "), schema.QuoteIdent(name), schema.QuoteIdent(schema.ColumnID))

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, store.MapError(err, "Failed to query records")
	}
	defer rows.Close()

	records := []map[string]any{}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, store.MapError(err, "Failed to read record")
		}
		records = append(records, codec.Decode(values, columns))
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapError(err, "Failed to query records")
	}

	return &RecordSet{
		Collection: catalog.CollectionInfo{ID: id, Name: name, FieldCount: len(fields)},
		Columns:    columns,
		Records:    records,
	}, nil
}

// CreateRecord inserts obj into the collection with the given id and returns
// the new record id. Constraint violations come back as STORAGE errors carrying
// SQLite's message.
func (r *Registry) CreateRecord(ctx context.Context, id string, obj map[string]any) (int64, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	name, err := r.catalog.CollectionIDToName(ctx, conn, id)
	if err != nil {
		return 0, err
	}

	columns, params, err := r.codec.Encode(ctx, conn, name, obj)
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.QuoteIdent(name), strings.Join(columns, ", "), placeholders)

	res, err := conn.ExecContext(ctx, query, params...)
	if err != nil {
		mapped := store.MapError(err, "Failed to insert record")
		if merrors.GetCode(mapped) == merrors.CodeStatementFailed {
			if exists, terr := catalog.TableExists(ctx, conn, name); terr == nil && !exists {
				return 0, danglingError(id, name)
			}
		}
		return 0, mapped
	}

	recordID, err := res.LastInsertId()
	if err != nil {
		return 0, store.MapError(err, "Failed to read record id")
	}
	return recordID, nil
}

// DeleteCollection removes the catalog rows and drops the table of the
// collection with the given id, in one transaction. It returns the name of the
// deleted collection.
func (r *Registry) DeleteCollection(ctx context.Context, id string) (string, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return "", store.MapError(err, "Failed to begin transaction")
	}

	name, err := r.catalog.CollectionIDToName(ctx, tx, id)
	if err != nil {
		return "", abort(tx, "delete", id, false, err)
	}

	if _, err := r.catalog.DeleteCollection(ctx, tx, id); err != nil {
		return "", abort(tx, "delete", name, false, err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+schema.QuoteIdent(name)); err != nil {
		return "", abort(tx, "delete", name, true, store.MapError(err, "Failed to drop table"))
	}

	if err := tx.Commit(); err != nil {
		return "", abort(tx, "delete", name, true, store.MapError(err, "Failed to commit delete"))
	}
	r.catalog.Invalidate(name)

	log.Printf("collection: deleted %s (%s)", name, id)
	return name, nil
}

// Reconcile reports collections whose catalog rows and tables disagree.
func (r *Registry) Reconcile(ctx context.Context) (*catalog.ReconciliationReport, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return r.catalog.Reconcile(ctx, conn)
}

func mismatchError(id, name, field string) error {
	return merrors.NewInconsistentCatalog(merrors.CodeColumnMismatch,
		fmt.Sprintf("Collection '%s' has no column for catalog field '%s'", name, field), nil).
		WithDetails(map[string]interface{}{"collection_id": id, "collection": name, "field": field})
}

func danglingError(id, name string) error {
	return merrors.NewInconsistentCatalog(merrors.CodeDanglingCatalog,
		fmt.Sprintf("Collection '%s' is in the catalog but its table is missing", name), nil).
		WithDetails(map[string]interface{}{"collection_id": id, "collection": name})
}
