package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/stockflow/stockflow-backend/pkg/errors"
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

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "stock_non_negative"):
		return errors.Conflict("stock level would become negative")

	case strings.Contains(constraint, "quantity_positive"):
		return errors.InvalidQuantity("quantity must be greater than zero")

	case strings.Contains(constraint, "movement_type_valid"):
		return errors.Validation(map[string]string{
			"type": "must be one of: IN, OUT, ADJUSTMENT",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "is not a valid status for this resource",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "products_code"):
		return "a product with this code already exists"
	case strings.Contains(constraint, "batch_number"):
		return "a batch with this number already exists for this product"
	case strings.Contains(constraint, "inventory_items_inventory_id_product_id"):
		return "this product is already counted in the inventory"
	case strings.Contains(constraint, "stock_transfer_items_stock_transfer_id_product_id"):
		return "this product is already part of the transfer"
	case strings.Contains(constraint, "reference"):
		return "a document with this reference already exists"
	default:
		return "a record with these values already exists"
	}
}
