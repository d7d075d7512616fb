package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPrice(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		cond PriceCondition
		want bool
	}{
		{"gt positive", PriceCondition{Operator: PriceGT, Value: 1}, true},
		{"gte zero", PriceCondition{Operator: PriceGTE, Value: 0}, false},
		{"neq positive", PriceCondition{Operator: PriceNEQ, Value: 10}, true},
		{"between ordered", PriceCondition{Operator: PriceBW, FromValue: 5, ToValue: 10}, true},
		{"between equal bounds", PriceCondition{Operator: PriceBW, FromValue: 5, ToValue: 5}, true},
		{"between reversed", PriceCondition{Operator: PriceBW, FromValue: 10, ToValue: 5}, false},
		{"not between zero from", PriceCondition{Operator: PriceNBW, FromValue: 0, ToValue: 5}, false},
		{"unknown operator", PriceCondition{Operator: "approx", Value: 5}, false},
	} {
		assert.Equal(t, tc.want, ValidPrice(tc.cond), tc.name)
	}
}

func TestEvaluatePrice(t *testing.T) {
	t.Parallel()

	assert.True(t, EvaluatePrice(PriceCondition{Operator: PriceGT, Value: 100}, 101))
	assert.False(t, EvaluatePrice(PriceCondition{Operator: PriceGT, Value: 100}, 100))
	assert.True(t, EvaluatePrice(PriceCondition{Operator: PriceGTE, Value: 100}, 100))
	assert.False(t, EvaluatePrice(PriceCondition{Operator: PriceGTE, Value: 1000}, 900))
	assert.True(t, EvaluatePrice(PriceCondition{Operator: PriceLT, Value: 100}, 99))
	assert.True(t, EvaluatePrice(PriceCondition{Operator: PriceLTE, Value: 100}, 100))
	assert.True(t, EvaluatePrice(PriceCondition{Operator: PriceEQ, Value: 7}, 7))
	assert.False(t, EvaluatePrice(PriceCondition{Operator: PriceNEQ, Value: 7}, 7))

	between := PriceCondition{Operator: PriceBW, FromValue: 10, ToValue: 20}
	assert.True(t, EvaluatePrice(between, 10))
	assert.True(t, EvaluatePrice(between, 20))
	assert.False(t, EvaluatePrice(between, 21))

	outside := PriceCondition{Operator: PriceNBW, FromValue: 10, ToValue: 20}
	assert.True(t, EvaluatePrice(outside, 9))
	assert.False(t, EvaluatePrice(outside, 15))
}

func TestValidateStops(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateStops(nil))
	require.NoError(t, ValidateStops([]StopCondition{
		{Kind: StopEndTime, Value: 1700000000, IsPrimary: true},
		{Kind: StopBatchAmountReach, Value: 5},
	}))

	err := ValidateStops([]StopCondition{
		{Kind: StopBaseTokenReach, Value: 10, IsPrimary: true},
		{Kind: StopQuoteTokenReach, Value: 10, IsPrimary: true},
	})
	require.ErrorIs(t, err, ErrMultiplePrimary)

	err = ValidateStops([]StopCondition{{Kind: StopSpentBaseTokenReach, Value: 0}})
	require.ErrorIs(t, err, ErrInvalidStopCondition)

	require.ErrorIs(t, ValidateBuy(&PriceCondition{Operator: PriceBW, FromValue: 3, ToValue: 1}), ErrInvalidBuyCondition)
	require.NoError(t, ValidateBuy(nil))
}

func TestStopReached(t *testing.T) {
	t.Parallel()

	p := Progress{
		Now:                 1_000,
		BaseBalance:         40,
		QuoteBalance:        300,
		TotalBaseDeposit:    100,
		TotalQuoteDeposit:   200,
		ExecutedBatchAmount: 5,
	}

	assert.True(t, StopReached(StopCondition{Kind: StopEndTime, Value: 1_000}, p))
	assert.False(t, StopReached(StopCondition{Kind: StopEndTime, Value: 1_001}, p))
	assert.True(t, StopReached(StopCondition{Kind: StopBaseTokenReach, Value: 40}, p))
	assert.False(t, StopReached(StopCondition{Kind: StopQuoteTokenReach, Value: 301}, p))
	assert.True(t, StopReached(StopCondition{Kind: StopSpentBaseTokenReach, Value: 60}, p))
	assert.True(t, StopReached(StopCondition{Kind: StopBatchAmountReach, Value: 5}, p))

	// 余额高于累计存入时，已花费按 0 计
	assert.Equal(t, uint64(0), p.SpentQuote())
	assert.False(t, StopReached(StopCondition{Kind: StopSpentQuoteTokenReach, Value: 1}, p))
}

func TestFirstReachedIgnoresPrimaryFlag(t *testing.T) {
	t.Parallel()

	stops := []StopCondition{
		{Kind: StopEndTime, Value: 5_000, IsPrimary: true},
		{Kind: StopBatchAmountReach, Value: 3},
	}
	got, ok := FirstReached(stops, Progress{Now: 10, ExecutedBatchAmount: 3})
	require.True(t, ok)
	assert.Equal(t, StopBatchAmountReach, got.Kind)

	_, ok = FirstReached(stops, Progress{Now: 10, ExecutedBatchAmount: 2})
	assert.False(t, ok)
}
