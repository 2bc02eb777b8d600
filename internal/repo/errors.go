package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// pqUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

// uniqueViolation reports whether err is a unique constraint failure and
// returns a hint naming the constraint (Postgres) or columns (SQLite).
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return pqErr.Constraint, true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		msg := liteErr.Error()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE")) {
			return msg, true
		}
	}
	return "", false
}

// translateConstraint maps the scan_runs unique indexes onto the ledger's
// rejection errors. Other errors pass through unchanged.
func translateConstraint(err error) error {
	if err == nil {
		return nil
	}
	hint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	if strings.Contains(hint, "single_running") || strings.Contains(hint, "scan_runs.status") {
		return fmt.Errorf("%w: %v", apperr.ErrAlreadyRunning, err)
	}
	return fmt.Errorf("%w: %v", apperr.ErrDuplicateTrigger, err)
}
