package repository

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation reports whether err is a Postgres unique-constraint
// violation on the named constraint. The constraint is the final arbiter
// for races the application cannot serialize itself.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == constraint
	}
	return false
}
