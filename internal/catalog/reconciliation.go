package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/moosedb/moosedb/internal/store"
)

// ReconciliationReport contains the results of a catalog/table reconciliation.
type ReconciliationReport struct {
	// DanglingEntries are collections listed in the catalog whose table is missing.
	DanglingEntries []CollectionInfo `json:"dangling_entries"`
	// OrphanedTables are user tables with no catalog rows.
	OrphanedTables []string `json:"orphaned_tables"`
	// TotalCatalogCollections is the number of collections in the catalog.
	TotalCatalogCollections int `json:"total_catalog_collections"`
	// TotalTables is the number of user tables scanned.
	TotalTables int `json:"total_tables"`
	// RunAt is when the reconciliation was performed.
	RunAt time.Time `json:"run_at"`
}

// HasIssues returns true if the report contains any dangling entries or orphaned tables.
func (r *ReconciliationReport) HasIssues() bool {
	return len(r.DanglingEntries) > 0 || len(r.OrphanedTables) > 0
}

// Reconcile compares the catalog with the tables that physically exist. It only
// reports; nothing is repaired.
func (c *Catalog) Reconcile(ctx context.Context, q store.Queryer) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		DanglingEntries: []CollectionInfo{},
		OrphanedTables:  []string{},
		RunAt:           time.Now().UTC(),
	}

	collections, err := c.ListCollections(ctx, q)
	if err != nil {
		return nil, err
	}
	report.TotalCatalogCollections = len(collections)

	tables, err := userTables(ctx, q)
	if err != nil {
		return nil, err
	}
	report.TotalTables = len(tables)

	// SQLite table names are case-insensitive.
	physical := make(map[string]bool, len(tables))
	for _, t := range tables {
		physical[strings.ToLower(t)] = true
	}
	tracked := make(map[string]bool, len(collections))
	for _, ci := range collections {
		tracked[strings.ToLower(ci.Name)] = true
		if !physical[strings.ToLower(ci.Name)] {
			report.DanglingEntries = append(report.DanglingEntries, ci)
		}
	}

	for _, t := range tables {
		if !tracked[strings.ToLower(t)] {
			report.OrphanedTables = append(report.OrphanedTables, t)
		}
	}

	return report, nil
}

// userTables lists tables that can back a collection, skipping internal
// (_-prefixed) and SQLite-owned tables.
func userTables(ctx context.Context, q store.Queryer) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, store.MapError(err, "catalog: failed to list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, store.MapError(err, "catalog: failed to scan table name")
		}
		if IsInternalTable(name) {
			continue
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, store.MapError(err, "catalog: failed to list tables")
	}
	return tables, nil
}

// IsInternalTable reports whether name is reserved for MooseDB or SQLite.
func IsInternalTable(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(strings.ToLower(name), "sqlite_")
}
