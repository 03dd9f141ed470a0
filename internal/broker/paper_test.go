package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPaperMarketableBuyFillsImmediately(t *testing.T) {
	ctx := context.Background()
	paper := NewPaper("PURR", "USDC", decimal.Zero, dec("1000"))
	paper.Observe(0.2)

	handle, err := paper.Submit(ctx, OrderIntent{Side: Buy, LimitPrice: dec("0.2"), Size: dec("500")})
	require.NoError(t, err)
	assert.True(t, handle.Filled)

	base, ok, err := paper.Balance(ctx, "PURR")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, base.Equal(dec("500")), "base balance %s", base)

	quote, _, _ := paper.Balance(ctx, "USDC")
	assert.True(t, quote.Equal(dec("900")), "quote balance %s", quote)

	err = paper.Cancel(ctx, handle)
	var rejected *RejectedError
	assert.True(t, errors.As(err, &rejected), "cancel of a filled order must fail")
}

func TestPaperRestingOrderCancelReleasesHold(t *testing.T) {
	ctx := context.Background()
	paper := NewPaper("PURR", "USDC", dec("300"), decimal.Zero)
	paper.Observe(0.2)

	handle, err := paper.Submit(ctx, OrderIntent{Side: Sell, LimitPrice: dec("0.25"), Size: dec("300")})
	require.NoError(t, err)
	assert.False(t, handle.Filled)

	base, _, _ := paper.Balance(ctx, "PURR")
	assert.True(t, base.IsZero(), "base should be held, got %s", base)

	require.NoError(t, paper.Cancel(ctx, handle))
	base, _, _ = paper.Balance(ctx, "PURR")
	assert.True(t, base.Equal(dec("300")), "base should be released, got %s", base)
	assert.Empty(t, paper.Fills())
}

func TestPaperObserveFillsCrossedOrder(t *testing.T) {
	ctx := context.Background()
	paper := NewPaper("PURR", "USDC", dec("100"), decimal.Zero)
	paper.Observe(0.2)

	handle, err := paper.Submit(ctx, OrderIntent{Side: Sell, LimitPrice: dec("0.21"), Size: dec("100")})
	require.NoError(t, err)
	require.False(t, handle.Filled)

	paper.Observe(0.215)
	fills := paper.Fills()
	require.Len(t, fills, 1)
	assert.Equal(t, handle.ID, fills[0].OrderID)

	quote, _, _ := paper.Balance(ctx, "USDC")
	assert.True(t, quote.Equal(dec("21")), "quote balance %s", quote)
}

func TestPaperRejectsInsufficientBalance(t *testing.T) {
	paper := NewPaper("PURR", "USDC", decimal.Zero, dec("10"))
	_, err := paper.Submit(context.Background(), OrderIntent{Side: Buy, LimitPrice: dec("1"), Size: dec("11")})
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.False(t, IsTransport(err))
}

func TestPaperUnknownAsset(t *testing.T) {
	paper := NewPaper("PURR", "USDC", decimal.Zero, decimal.Zero)
	_, ok, err := paper.Balance(context.Background(), "HYPE")
	require.NoError(t, err)
	assert.False(t, ok)
}
