package db

import (
	"errors"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure. On
// Postgres a non-empty constraintName must match. SQLite names columns rather
// than constraints, so columnHints (such as "invoices.invoice_number") are
// matched there instead.
func IsUniqueViolation(err error, constraintName string, columnHints ...string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && (constraintName == "" || pgErr.ConstraintName == constraintName)
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return len(columnHints) == 0 || slices.ContainsFunc(columnHints, func(hint string) bool {
			return strings.Contains(msg, hint)
		})
	}
	// Errors that lost their type on the way up still carry the SQLSTATE text.
	if strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "SQLSTATE "+pgUniqueViolation) {
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}
