package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pockettrade.com/internal/condition"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

func TestCreatePocket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p, err := env.pockets.CreatePocket(ctx, testOwner, env.input("p1", model.TradeSideBuy))
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusActive, p.Status)
	assert.Equal(t, p.StartAt, p.NextScheduledExecutionAt)
	assert.Equal(t, model.VaultAccount("p1", "SOL"), p.BaseVault)
	assert.Equal(t, model.VaultAccount("p1", "USDC"), p.QuoteVault)

	stored, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, testOwner, stored.OwnerID)
	assert.Nil(t, stored.Buy())

	_, err = env.pockets.CreatePocket(ctx, testOwner, env.input("p1", model.TradeSideBuy))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCreatePocketRejectsInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(in *domain.CreatePocketInput)
	}{
		{"same mints", func(in *domain.CreatePocketInput) { in.QuoteMint = in.BaseMint }},
		{"zero batch", func(in *domain.CreatePocketInput) { in.BatchVolume = 0 }},
		{"zero frequency", func(in *domain.CreatePocketInput) { in.FrequencyHours = 0 }},
		{"start in past", func(in *domain.CreatePocketInput) { in.StartAt-- }},
		{"unknown side", func(in *domain.CreatePocketInput) { in.Side = "hold" }},
		{"bad buy condition", func(in *domain.CreatePocketInput) {
			in.BuyCondition = &condition.PriceCondition{Operator: condition.PriceBW, FromValue: 10, ToValue: 5}
		}},
		{"two primary stops", func(in *domain.CreatePocketInput) {
			in.StopConditions = []condition.StopCondition{
				{Kind: condition.StopBatchAmountReach, Value: 3, IsPrimary: true},
				{Kind: condition.StopEndTime, Value: 2_000_000_000, IsPrimary: true},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := env.input("bad", model.TradeSideBuy)
			tt.mutate(&in)
			_, err := env.pockets.CreatePocket(ctx, testOwner, in)
			assert.ErrorIs(t, err, domain.ErrInvalidPocket)
			assert.Equal(t, http.StatusBadRequest, domain.HTTPStatus(err))
		})
	}

	in := env.input("bonk", model.TradeSideBuy)
	in.BaseMint = "BONK"
	_, err := env.pockets.CreatePocket(ctx, testOwner, in)
	assert.ErrorIs(t, err, domain.ErrMintNotWhitelisted)

	_, err = env.registry.SetMintEnabled(ctx, testAdmin, "SOL", false)
	require.NoError(t, err)
	_, err = env.pockets.CreatePocket(ctx, testOwner, env.input("disabled", model.TradeSideBuy))
	assert.ErrorIs(t, err, domain.ErrMintNotWhitelisted)
}

func TestUpdateStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pockets.CreatePocket(ctx, testOwner, env.input("p1", model.TradeSideBuy))
	require.NoError(t, err)
	before, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)

	_, err = env.pockets.UpdateStatus(ctx, "mallory", "p1", model.PocketStatusPaused)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusActive)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	p, err := env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusPaused, p.Status)

	_, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusPaused)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusActive)
	require.NoError(t, err)

	// active -> paused -> active 只改变状态
	after, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusActive, after.Status)
	after.UpdatedAt = before.UpdatedAt
	assert.Equal(t, *before, *after)

	_, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusWithdrawn)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	p, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusClosed, p.Status)

	for _, target := range []model.PocketStatus{model.PocketStatusActive, model.PocketStatusPaused, model.PocketStatusClosed} {
		_, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", target)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, target)
	}

	stored, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusClosed, stored.Status)
}

func TestDepositAndWithdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := model.WalletAccount(testOwner, "USDC")

	_, err := env.pockets.CreatePocket(ctx, testOwner, env.input("p1", model.TradeSideBuy))
	require.NoError(t, err)
	env.paper.Fund(wallet, 1000)

	p, err := env.pockets.Deposit(ctx, testOwner, "p1", model.AssetQuote, 600)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), p.QuoteBalance)
	assert.Equal(t, uint64(600), p.TotalQuoteDeposit)

	vault, _ := env.paper.Balance(ctx, p.QuoteVault)
	assert.Equal(t, uint64(600), vault)
	left, _ := env.paper.Balance(ctx, wallet)
	assert.Equal(t, uint64(400), left)

	// 余额不足时不记账
	_, err = env.pockets.Deposit(ctx, testOwner, "p1", model.AssetQuote, 500)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	stored, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), stored.QuoteBalance)

	_, err = env.pockets.Deposit(ctx, testOwner, "p1", model.AssetQuote, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = env.pockets.Withdraw(ctx, testOwner, "p1", "", "")
	assert.ErrorIs(t, err, domain.ErrNotAbleToWithdraw)

	_, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusClosed)
	require.NoError(t, err)

	_, err = env.pockets.Deposit(ctx, testOwner, "p1", model.AssetQuote, 100)
	assert.ErrorIs(t, err, domain.ErrNotAbleToDeposit)

	_, err = env.pockets.Withdraw(ctx, "mallory", "p1", "", "")
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	p, err = env.pockets.Withdraw(ctx, testOwner, "p1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusWithdrawn, p.Status)
	assert.Zero(t, p.QuoteBalance)
	assert.Zero(t, p.BaseBalance)
	assert.Equal(t, uint64(600), p.TotalQuoteDeposit)

	back, _ := env.paper.Balance(ctx, wallet)
	assert.Equal(t, uint64(1000), back)

	_, err = env.pockets.Withdraw(ctx, testOwner, "p1", "", "")
	assert.ErrorIs(t, err, domain.ErrNotAbleToWithdraw)
	_, err = env.pockets.Deposit(ctx, testOwner, "p1", model.AssetQuote, 1)
	assert.ErrorIs(t, err, domain.ErrNotAbleToDeposit)
}

func TestExecuteCycleBuy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fundedPocket(t, env.input("p1", model.TradeSideBuy), 1000)

	res, err := env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Outcome.FromAmount)
	assert.Equal(t, uint64(5), res.Outcome.ToAmount)
	assert.Nil(t, res.StopReached)

	p, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(900), p.QuoteBalance)
	assert.Equal(t, uint64(5), p.BaseBalance)
	assert.Equal(t, uint64(1), p.ExecutedBatchAmount)
	assert.Equal(t, env.clock.Now().Unix()+3600, p.NextScheduledExecutionAt)

	// 记录与托管账户一致
	base, _ := env.paper.Balance(ctx, p.BaseVault)
	quote, _ := env.paper.Balance(ctx, p.QuoteVault)
	assert.Equal(t, p.BaseBalance, base)
	assert.Equal(t, p.QuoteBalance, quote)

	_, err = env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrNotReadyToSwap)

	env.clock.Advance(time.Hour)
	res, err = env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Pocket.ExecutedBatchAmount)
	assert.Equal(t, uint64(800), res.Pocket.QuoteBalance)
	assert.Equal(t, uint64(10), res.Pocket.BaseBalance)
}

func TestExecuteCycleSell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.input("p1", model.TradeSideSell)
	in.BatchVolume = 10
	_, err := env.pockets.CreatePocket(ctx, testOwner, in)
	require.NoError(t, err)
	env.paper.Fund(model.WalletAccount(testOwner, "SOL"), 15)
	_, err = env.pockets.Deposit(ctx, testOwner, "p1", model.AssetBase, 15)
	require.NoError(t, err)

	res, err := env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.Pocket.BaseBalance)
	assert.Equal(t, uint64(200), res.Pocket.QuoteBalance)

	// 第二批次只剩 5 个
	env.clock.Advance(time.Hour)
	res, err = env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.Outcome.GivenAmount)
	assert.Zero(t, res.Pocket.BaseBalance)
	assert.Equal(t, uint64(300), res.Pocket.QuoteBalance)

	env.clock.Advance(time.Hour)
	_, err = env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrZeroSwap)
	assert.Equal(t, http.StatusUnprocessableEntity, domain.HTTPStatus(err))
}

func TestExecuteCycleRequiresOperator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fundedPocket(t, env.input("p1", model.TradeSideBuy), 1000)

	_, err := env.pockets.ExecuteCycle(ctx, testOwner, "p1", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrNotOperator)
	assert.Equal(t, http.StatusForbidden, domain.HTTPStatus(err))

	p, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.ExecutedBatchAmount)
	assert.Equal(t, uint64(1000), p.QuoteBalance)
}

func TestExecuteCycleNotReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.input("later", model.TradeSideBuy)
	in.StartAt = env.clock.Now().Add(time.Hour).Unix()
	env.fundedPocket(t, in, 1000)

	_, err := env.pockets.ExecuteCycle(ctx, testOperator, "later", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrNotReadyToSwap)

	env.fundedPocket(t, env.input("paused", model.TradeSideBuy), 1000)
	_, err = env.pockets.UpdateStatus(ctx, testOwner, "paused", model.PocketStatusPaused)
	require.NoError(t, err)
	_, err = env.pockets.ExecuteCycle(ctx, testOperator, "paused", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrNotReadyToSwap)

	_, err = env.pockets.ExecuteCycle(ctx, testOperator, "missing", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecuteCycleBuyConditionNotFulfilled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.input("p1", model.TradeSideBuy)
	in.BuyCondition = &condition.PriceCondition{Operator: condition.PriceGTE, Value: 6}
	env.fundedPocket(t, in, 1000)

	_, err := env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrBuyConditionNotFulfilled)

	p, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.ExecutedBatchAmount)
	assert.Equal(t, uint64(1000), p.QuoteBalance)
	assert.Zero(t, p.BaseBalance)
	assert.Equal(t, p.StartAt, p.NextScheduledExecutionAt)
}

func TestWithdrawReturnsUnrecordedFills(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.input("p1", model.TradeSideBuy)
	in.BuyCondition = &condition.PriceCondition{Operator: condition.PriceGTE, Value: 6}
	p := env.fundedPocket(t, in, 1000)

	// 成交已结算到托管账户，但记录不变
	_, err := env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	require.ErrorIs(t, err, domain.ErrBuyConditionNotFulfilled)
	quoteVault, _ := env.paper.Balance(ctx, p.QuoteVault)
	baseVault, _ := env.paper.Balance(ctx, p.BaseVault)
	assert.Equal(t, uint64(900), quoteVault)
	assert.Equal(t, uint64(5), baseVault)

	_, err = env.pockets.UpdateStatus(ctx, testOwner, "p1", model.PocketStatusClosed)
	require.NoError(t, err)

	withdrawn, err := env.pockets.Withdraw(ctx, testOwner, "p1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusWithdrawn, withdrawn.Status)
	assert.Zero(t, withdrawn.BaseBalance)
	assert.Zero(t, withdrawn.QuoteBalance)

	quoteWallet, _ := env.paper.Balance(ctx, model.WalletAccount(testOwner, "USDC"))
	baseWallet, _ := env.paper.Balance(ctx, model.WalletAccount(testOwner, "SOL"))
	assert.Equal(t, uint64(900), quoteWallet)
	assert.Equal(t, uint64(5), baseWallet)
	quoteVault, _ = env.paper.Balance(ctx, p.QuoteVault)
	baseVault, _ = env.paper.Balance(ctx, p.BaseVault)
	assert.Zero(t, quoteVault)
	assert.Zero(t, baseVault)

	stored, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusWithdrawn, stored.Status)
}

func TestExecuteCycleSlippage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fundedPocket(t, env.input("p1", model.TradeSideBuy), 1000)

	// 100 USDC 至少换 6 SOL，实际只有 5
	refs := model.VenueRefs{MinExchangeRate: &model.ExchangeRate{Rate: 6, FromDecimals: 2}}
	_, err := env.pockets.ExecuteCycle(ctx, testOperator, "p1", refs)
	assert.ErrorIs(t, err, domain.ErrSlippageExceeded)

	p, err := env.pockets.GetPocket(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.ExecutedBatchAmount)

	refs.MinExchangeRate.Rate = 5
	_, err = env.pockets.ExecuteCycle(ctx, testOperator, "p1", refs)
	require.NoError(t, err)
}

func TestExecuteCycleStopCondition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := env.input("p1", model.TradeSideBuy)
	in.StopConditions = []condition.StopCondition{
		{Kind: condition.StopBatchAmountReach, Value: 2, IsPrimary: true},
	}
	env.fundedPocket(t, in, 1000)

	res, err := env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	require.NoError(t, err)
	assert.Nil(t, res.StopReached)
	assert.Equal(t, model.PocketStatusActive, res.Pocket.Status)

	env.clock.Advance(time.Hour)
	res, err = env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	require.NoError(t, err)
	require.NotNil(t, res.StopReached)
	assert.Equal(t, condition.StopBatchAmountReach, res.StopReached.Kind)
	assert.Equal(t, model.PocketStatusClosed, res.Pocket.Status)

	env.clock.Advance(time.Hour)
	_, err = env.pockets.ExecuteCycle(ctx, testOperator, "p1", model.VenueRefs{})
	assert.ErrorIs(t, err, domain.ErrNotReadyToSwap)

	p, err := env.pockets.Withdraw(ctx, testOwner, "p1", "", "")
	require.NoError(t, err)
	assert.Equal(t, model.PocketStatusWithdrawn, p.Status)
	sol, _ := env.paper.Balance(ctx, model.WalletAccount(testOwner, "SOL"))
	usdc, _ := env.paper.Balance(ctx, model.WalletAccount(testOwner, "USDC"))
	assert.Equal(t, uint64(10), sol)
	assert.Equal(t, uint64(800), usdc)
}

func TestListPockets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := env.pockets.CreatePocket(ctx, testOwner, env.input(id, model.TradeSideBuy))
		require.NoError(t, err)
	}
	_, err := env.pockets.CreatePocket(ctx, "bob", env.input("d", model.TradeSideBuy))
	require.NoError(t, err)

	list, total, err := env.pockets.ListPockets(ctx, testOwner, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	list, _, err = env.pockets.ListPockets(ctx, testOwner, 2, 2)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListDuePockets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.fundedPocket(t, env.input("due", model.TradeSideBuy), 1000)
	env.fundedPocket(t, env.input("paused", model.TradeSideBuy), 1000)
	_, err := env.pockets.UpdateStatus(ctx, testOwner, "paused", model.PocketStatusPaused)
	require.NoError(t, err)
	later := env.input("later", model.TradeSideBuy)
	later.StartAt = env.clock.Now().Add(2 * time.Hour).Unix()
	env.fundedPocket(t, later, 1000)

	now := env.clock.Now().Unix()
	due, err := env.pockets.ListDuePockets(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "due", due[0].ID)

	_, err = env.pockets.ExecuteCycle(ctx, testOperator, "due", model.VenueRefs{})
	require.NoError(t, err)
	due, err = env.pockets.ListDuePockets(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = env.pockets.ListDuePockets(ctx, now+3*3600, 10)
	require.NoError(t, err)
	assert.Len(t, due, 2)
	assert.Equal(t, "due", due[0].ID)
	// 0 使用服务时钟
	env.clock.Advance(3 * time.Hour)
	due, err = env.pockets.ListDuePockets(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}
