package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow-backend/internal/stock/domain"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

func newProduct(stock string, divisible bool) *domain.Product {
	return &domain.Product{
		ID:           "p-1",
		ShopID:       "shop-1",
		Code:         "PARA-500",
		Name:         "Paracetamol 500mg",
		Stock:        decimal.RequireFromString(stock),
		MinimumStock: decimal.NewFromInt(5),
		IsDivisible:  divisible,
		UnitType:     domain.UnitPiece,
		IsActive:     true,
	}
}

func TestProduct_AddStock(t *testing.T) {
	t.Run("increases stock", func(t *testing.T) {
		p := newProduct("10", false)
		err := p.AddStock(decimal.NewFromInt(3))
		require.NoError(t, err)
		assert.True(t, p.Stock.Equal(decimal.NewFromInt(13)))
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		p := newProduct("10", false)
		err := p.AddStock(decimal.Zero)
		assert.ErrorIs(t, err, errors.ErrInvalidQuantity)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		p := newProduct("10", false)
		err := p.AddStock(decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, errors.ErrInvalidQuantity)
	})

	t.Run("rejects fractional quantity on non-divisible product", func(t *testing.T) {
		p := newProduct("10", false)
		err := p.AddStock(decimal.RequireFromString("0.5"))
		assert.ErrorIs(t, err, errors.ErrInvalidQuantity)
	})

	t.Run("accepts fractional quantity on divisible product", func(t *testing.T) {
		p := newProduct("10", true)
		err := p.AddStock(decimal.RequireFromString("0.25"))
		require.NoError(t, err)
		assert.True(t, p.Stock.Equal(decimal.RequireFromString("10.25")))
	})
}

func TestProduct_RemoveStock(t *testing.T) {
	t.Run("decreases stock", func(t *testing.T) {
		p := newProduct("10", false)
		err := p.RemoveStock(decimal.NewFromInt(4))
		require.NoError(t, err)
		assert.True(t, p.Stock.Equal(decimal.NewFromInt(6)))
	})

	t.Run("removing everything leaves zero", func(t *testing.T) {
		p := newProduct("10", false)
		err := p.RemoveStock(decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.True(t, p.Stock.IsZero())
	})

	t.Run("fails when stock is insufficient", func(t *testing.T) {
		p := newProduct("3", false)
		err := p.RemoveStock(decimal.NewFromInt(4))
		assert.ErrorIs(t, err, errors.ErrInsufficientStock)

		// Stock unchanged after a failed removal
		assert.True(t, p.Stock.Equal(decimal.NewFromInt(3)))
	})

	t.Run("fails with invalid quantity before checking stock", func(t *testing.T) {
		p := newProduct("10", false)
		err := p.RemoveStock(decimal.RequireFromString("1.5"))
		assert.ErrorIs(t, err, errors.ErrInvalidQuantity)
	})
}

func TestProduct_IsLowStock(t *testing.T) {
	p := newProduct("6", false)
	assert.False(t, p.IsLowStock())

	require.NoError(t, p.RemoveStock(decimal.NewFromInt(1)))
	assert.True(t, p.IsLowStock(), "stock equal to minimum counts as low")

	require.NoError(t, p.RemoveStock(decimal.NewFromInt(3)))
	assert.True(t, p.IsLowStock())
}

func TestProduct_HasStock(t *testing.T) {
	p := newProduct("2.5", true)
	assert.True(t, p.HasStock(decimal.RequireFromString("2.5")))
	assert.False(t, p.HasStock(decimal.RequireFromString("2.51")))
}

func TestUnitType_IsValid(t *testing.T) {
	for _, u := range []domain.UnitType{domain.UnitPiece, domain.UnitLot, domain.UnitKg, domain.UnitLiter, domain.UnitBox} {
		assert.True(t, u.IsValid(), string(u))
	}
	assert.False(t, domain.UnitType("PALLET").IsValid())
}
