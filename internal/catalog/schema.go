// Package catalog records the schema of every user collection in the
// _database_metadata table.
package catalog

// TableName is the physical name of the catalog table.
const TableName = "_database_metadata"

// CreateMetadataTableSQL creates the catalog table. One row per field, keyed by
// (collection_name, field_name). rowid order is declaration order.
const CreateMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS _database_metadata (
    collection_id TEXT NOT NULL,
    collection_name TEXT NOT NULL,
    field_name TEXT NOT NULL,
    field_type TEXT NOT NULL,
    unique_field BOOLEAN NOT NULL,
    nullable BOOLEAN NOT NULL,
    min INTEGER,
    max INTEGER,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (collection_name, field_name)
)`

// CreateMetadataIndexSQL speeds up id lookups, which every registry call does.
const CreateMetadataIndexSQL = `CREATE INDEX IF NOT EXISTS idx_database_metadata_collection_id ON _database_metadata(collection_id)`

// AllSchemaSQL returns the statements run by EnsureTable, in order.
func AllSchemaSQL() []string {
	return []string{
		CreateMetadataTableSQL,
		CreateMetadataIndexSQL,
	}
}
