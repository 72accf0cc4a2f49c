package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
	merrors "github.com/moosedb/moosedb/internal/errors"
)

// MapError converts a driver error into a STORAGE MooseError. The engine's own
// message is kept as the cause so it reaches the API boundary verbatim.
// Errors that are already MooseErrors pass through unchanged.
func MapError(err error, message string) error {
	if err == nil {
		return nil
	}

	var me *merrors.MooseError
	if errors.As(err, &me) {
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return merrors.NewStorageError(merrors.CodeConstraintViolation, message, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return merrors.NewStorageError(merrors.CodeBusy, message, err)
		}
	}

	return merrors.NewStorageError(merrors.CodeStatementFailed, message, err)
}

// IsConstraint reports whether err is a constraint violation raised by SQLite.
func IsConstraint(err error) bool {
	return merrors.GetCode(err) == merrors.CodeConstraintViolation
}
