package database_test

import (
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		sentinel   error
		statusCode int
	}{
		{
			name:       "negative stock check",
			err:        &pq.Error{Code: "23514", Constraint: "products_stock_non_negative"},
			sentinel:   errors.ErrConflict,
			statusCode: http.StatusConflict,
		},
		{
			name:       "non positive quantity check",
			err:        &pq.Error{Code: "23514", Constraint: "stock_movements_quantity_positive"},
			sentinel:   errors.ErrInvalidQuantity,
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "movement type check",
			err:        &pq.Error{Code: "23514", Constraint: "stock_movements_movement_type_valid"},
			sentinel:   errors.ErrValidation,
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "status check",
			err:        &pq.Error{Code: "23514", Constraint: "inventories_status_valid"},
			sentinel:   errors.ErrValidation,
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "duplicate product code",
			err:        &pq.Error{Code: "23505", Constraint: "products_code_key"},
			sentinel:   errors.ErrConflict,
			statusCode: http.StatusConflict,
		},
		{
			name:       "duplicate document reference",
			err:        &pq.Error{Code: "23505", Constraint: "inventories_reference_key"},
			sentinel:   errors.ErrConflict,
			statusCode: http.StatusConflict,
		},
		{
			name:       "dangling foreign key",
			err:        &pq.Error{Code: "23503", Constraint: "stock_movements_product_id_fkey"},
			sentinel:   errors.ErrBadRequest,
			statusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := database.MapPQError(tt.err)
			require.NotNil(t, appErr)
			assert.ErrorIs(t, appErr, tt.sentinel)
			assert.Equal(t, tt.statusCode, appErr.StatusCode)
		})
	}
}

func TestMapPQError_IgnoresNonPostgresErrors(t *testing.T) {
	assert.Nil(t, database.MapPQError(assert.AnError))
	assert.Nil(t, database.MapPQError(nil))
}
