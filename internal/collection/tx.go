// Package collection creates, reads and drops user collections.
//
// Both halves of a collection, its table and its catalog rows, are written in
// one SQLite transaction. If a rollback fails after one half was applied the
// operation reports INCONSISTENT_CATALOG so an operator can reconcile.
package collection

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	merrors "github.com/moosedb/moosedb/internal/errors"
)

// abort rolls tx back after cause. partial tells whether a step that changes
// physical storage or the catalog has already run.
func abort(tx *sql.Tx, op, name string, partial bool, cause error) error {
	rbErr := tx.Rollback()
	if rbErr == nil || errors.Is(rbErr, sql.ErrTxDone) || !partial {
		return cause
	}

	log.Printf("collection: rollback of %s %q failed: %v (cause: %v)", op, name, rbErr, cause)
	return merrors.NewInconsistentCatalog(merrors.CodePartialCommit,
		fmt.Sprintf("Failed to %s collection '%s' and could not roll back; run reconcile", op, name),
		errors.Join(cause, rbErr)).
		WithDetails(map[string]interface{}{"collection": name})
}
