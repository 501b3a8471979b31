package store

import (
	"errors"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pqUniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a unique or primary key
// constraint on either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}

	return false
}
