// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to tell a
// missing row from a constraint violation without inspecting driver
// errors itself.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a unique key, such as a
// second check-in for the same booking.
var ErrDuplicate = errors.New("duplicate record")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
