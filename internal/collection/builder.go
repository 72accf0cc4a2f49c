package collection

import (
	"context"
	"fmt"
	"log"

	"github.com/moosedb/moosedb/internal/catalog"
	merrors "github.com/moosedb/moosedb/internal/errors"
	"github.com/moosedb/moosedb/internal/schema"
	"github.com/moosedb/moosedb/internal/store"
)

// IDPrefix starts every collection id.
const IDPrefix = "moo_"

// IDDigits is the number of random digits after IDPrefix.
const IDDigits = 9

// NewID returns a fresh collection id. Collisions are not checked.
func NewID() string {
	return IDPrefix + store.RandomDigits(IDDigits)
}

// Builder creates collections.
type Builder struct {
	store   *store.Store
	catalog *catalog.Catalog
	newID   func() string
}

// NewBuilder creates a Builder.
func NewBuilder(s *store.Store, cat *catalog.Catalog) *Builder {
	return &Builder{
		store:   s,
		catalog: cat,
		newID:   NewID,
	}
}

// CreateCollection creates the table for a new collection and records its
// fields in the catalog, atomically.
func (b *Builder) CreateCollection(ctx context.Context, name string, fields []schema.Field) (*catalog.CollectionInfo, error) {
	if err := schema.ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if err := schema.ValidateFields(fields); err != nil {
		return nil, err
	}

	normalized := make([]schema.Field, len(fields))
	for i, f := range fields {
		if f.Type.IsKnown() {
			f.Type = f.Type.Normalize()
		}
		normalized[i] = f
	}

	conn, err := b.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.MapError(err, "Failed to begin transaction")
	}

	var taken int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE lower(name) = lower(?)`, name).Scan(&taken)
	if err != nil {
		return nil, abort(tx, "create", name, false, store.MapError(err, "Failed to check existing objects"))
	}
	if taken > 0 {
		return nil, abort(tx, "create", name, false, merrors.NewAlreadyExists(merrors.CodeCollectionExists,
			fmt.Sprintf("Collection %s already exists!", name)))
	}

	if err := b.catalog.EnsureTable(ctx, tx); err != nil {
		return nil, abort(tx, "create", name, false, err)
	}

	id := b.newID()

	if _, err := tx.ExecContext(ctx, schema.CreateTableSQL(name, normalized)); err != nil {
		return nil, abort(tx, "create", name, false, store.MapError(err, "Failed to create table"))
	}

	for _, f := range normalized {
		if err := b.catalog.RecordField(ctx, tx, id, name, f); err != nil {
			return nil, abort(tx, "create", name, true, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, abort(tx, "create", name, true, store.MapError(err, "Failed to commit collection"))
	}
	b.catalog.Invalidate(name)

	log.Printf("collection: created %s (%s) with %d fields", name, id, len(normalized))

	return &catalog.CollectionInfo{ID: id, Name: name, FieldCount: len(normalized)}, nil
}
