// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a row they do not own. Handlers translate it into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert or update cannot be
// performed because of conflicting state, such as a duplicate slug
// or a second pricing row for the same ticket type. Handlers
// translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create for duplicate emails.
var ErrEmailExists = errors.New("email already exists")

// erDupEntry is the MySQL server error for a unique key violation.
const erDupEntry = 1062

// isDuplicate reports whether err is a duplicate entry error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erDupEntry
}
