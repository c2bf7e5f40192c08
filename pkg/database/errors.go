package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/medledger/medledger-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to ledger errors.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	// quantity >= 0 is the database backstop behind the guarded decrement;
	// hitting it means the guard was bypassed by a concurrent writer.
	case strings.Contains(constraint, "quantity_nonnegative"):
		return errors.StockConflict("stock level changed concurrently")

	case strings.Contains(constraint, "quantity_positive"):
		return errors.InvalidQuantity("quantity must be positive")

	case strings.Contains(constraint, "status_valid"):
		return errors.BadRequest("status must be one of: pending, approved, rejected")

	case strings.Contains(constraint, "type_valid"):
		return errors.BadRequest("notification type is not recognized")

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "medicines_name_category"):
		return "a medicine with this name and category already exists"
	case strings.Contains(constraint, "notifications_dedup"):
		return "an open notification with this key already exists"
	default:
		return "a record with these values already exists"
	}
}
