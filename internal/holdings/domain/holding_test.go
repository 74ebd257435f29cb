package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldingApplyBuy(t *testing.T) {
	t.Parallel()

	t.Run("first buy seeds quantity and basis", func(t *testing.T) {
		t.Parallel()
		h := NewHolding("user-1", "LST-1")
		h.ApplyBuy(500, decimal.RequireFromString("2.00"))

		assert.Equal(t, int64(500), h.ShareQuantity)
		assert.True(t, h.AverageCostBasis.Equal(decimal.RequireFromString("2.00")))
	})

	t.Run("second buy moves basis to weighted mean", func(t *testing.T) {
		t.Parallel()
		h := NewHolding("user-1", "LST-1")
		h.ApplyBuy(100, decimal.RequireFromString("2.00"))
		h.ApplyBuy(300, decimal.RequireFromString("4.00"))

		// (100*2 + 300*4) / 400 = 3.50
		assert.Equal(t, int64(400), h.ShareQuantity)
		assert.True(t, h.AverageCostBasis.Equal(decimal.RequireFromString("3.5")),
			"got %s", h.AverageCostBasis)
	})
}

func TestHoldingApplySell(t *testing.T) {
	t.Parallel()

	t.Run("partial sell keeps basis", func(t *testing.T) {
		t.Parallel()
		h := NewHolding("user-1", "LST-1")
		h.ApplyBuy(400, decimal.RequireFromString("3.50"))

		require.NoError(t, h.ApplySell(150))
		assert.Equal(t, int64(250), h.ShareQuantity)
		assert.True(t, h.AverageCostBasis.Equal(decimal.RequireFromString("3.50")))
	})

	t.Run("selling out resets basis", func(t *testing.T) {
		t.Parallel()
		h := NewHolding("user-1", "LST-1")
		h.ApplyBuy(400, decimal.RequireFromString("3.50"))

		require.NoError(t, h.ApplySell(400))
		assert.Equal(t, int64(0), h.ShareQuantity)
		assert.True(t, h.AverageCostBasis.IsZero())
	})

	t.Run("overselling fails without mutation", func(t *testing.T) {
		t.Parallel()
		h := NewHolding("user-1", "LST-1")
		h.ApplyBuy(100, decimal.RequireFromString("2.00"))

		err := h.ApplySell(101)
		require.ErrorIs(t, err, ErrInsufficientHoldings)
		assert.Equal(t, int64(100), h.ShareQuantity)
	})
}

func TestHoldingReverseBuy(t *testing.T) {
	t.Parallel()

	h := NewHolding("user-1", "LST-1")
	h.ApplyBuy(500, decimal.RequireFromString("2.00"))

	require.NoError(t, h.ReverseBuy(500))
	assert.Equal(t, int64(0), h.ShareQuantity)

	// Shares already resold: nothing left to reverse.
	err := h.ReverseBuy(1)
	require.ErrorIs(t, err, ErrInsufficientHoldings)
}
