package swap

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
	"pockettrade.com/internal/venue"
)

func testPocket(side model.TradeSide, batch, base, quote uint64) *model.Pocket {
	return &model.Pocket{
		ID:           "p1",
		Status:       model.PocketStatusActive,
		BaseMint:     "SOL",
		QuoteMint:    "USDC",
		MarketKey:    "SOL-USDC",
		Side:         side,
		BatchVolume:  batch,
		BaseBalance:  base,
		QuoteBalance: quote,
		BaseVault:    model.VaultAccount("p1", "SOL"),
		QuoteVault:   model.VaultAccount("p1", "USDC"),
	}
}

func setup(p *model.Pocket) (*venue.Paper, *Adapter) {
	paper := venue.NewPaper(
		venue.Market{ID: "SOL-USDC", BaseMint: "SOL", QuoteMint: "USDC", Price: decimal.NewFromInt(20)},
		venue.Market{ID: "BTC-USDC", BaseMint: "BTC", QuoteMint: "USDC", Price: decimal.NewFromInt(1000)},
	)
	paper.Fund(p.BaseVault, p.BaseBalance)
	paper.Fund(p.QuoteVault, p.QuoteBalance)
	return paper, NewAdapter(paper, paper, nil)
}

func TestSizeTradeSaturatesAtBalance(t *testing.T) {
	t.Parallel()

	side, size := SizeTrade(testPocket(model.TradeSideSell, 100, 40, 0))
	assert.Equal(t, model.OrderSideAsk, side)
	assert.Equal(t, uint64(40), size)

	side, size = SizeTrade(testPocket(model.TradeSideBuy, 100, 0, 500))
	assert.Equal(t, model.OrderSideBid, side)
	assert.Equal(t, uint64(100), size)
}

func TestSwapSellMeasuresBalanceDelta(t *testing.T) {
	t.Parallel()

	p := testPocket(model.TradeSideSell, 100, 40, 0)
	paper, a := setup(p)

	out, err := a.Swap(context.Background(), p, model.VenueRefs{})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), out.GivenAmount)
	assert.Equal(t, uint64(40), out.FromAmount)
	assert.Equal(t, uint64(800), out.ToAmount)
	assert.Equal(t, "SOL", out.FromMint)
	assert.Equal(t, "USDC", out.ToMint)

	bal, _ := paper.Balance(context.Background(), p.QuoteVault)
	assert.Equal(t, uint64(800), bal)
}

func TestSwapBuy(t *testing.T) {
	t.Parallel()

	p := testPocket(model.TradeSideBuy, 100, 0, 1_000)
	_, a := setup(p)

	out, err := a.Swap(context.Background(), p, model.VenueRefs{MarketID: "SOL-USDC"})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), out.FromAmount)
	assert.Equal(t, uint64(5), out.ToAmount)
}

func TestSwapSizeCappedByVault(t *testing.T) {
	t.Parallel()

	// 记录为 1000 USDC，托管账户只剩 60
	p := testPocket(model.TradeSideBuy, 100, 0, 1_000)
	paper := venue.NewPaper(venue.Market{ID: "SOL-USDC", BaseMint: "SOL", QuoteMint: "USDC", Price: decimal.NewFromInt(20)})
	paper.Fund(p.QuoteVault, 60)
	a := NewAdapter(paper, paper, nil)

	out, err := a.Swap(context.Background(), p, model.VenueRefs{})
	require.NoError(t, err)
	assert.Equal(t, uint64(60), out.GivenAmount)
	assert.Equal(t, uint64(60), out.FromAmount)
	assert.Equal(t, uint64(3), out.ToAmount)

	empty := testPocket(model.TradeSideSell, 100, 40, 0)
	empty.ID = "p3"
	empty.BaseVault = model.VaultAccount("p3", "SOL")
	empty.QuoteVault = model.VaultAccount("p3", "USDC")
	_, err = NewAdapter(paper, paper, nil).Swap(context.Background(), empty, model.VenueRefs{})
	require.ErrorIs(t, err, domain.ErrZeroSwap)
}

func TestSwapZeroSizeFailsWithoutVenueCall(t *testing.T) {
	t.Parallel()

	p := testPocket(model.TradeSideSell, 100, 0, 0)
	paper, a := setup(p)
	paper.Halt("SOL-USDC", true)

	_, err := a.Swap(context.Background(), p, model.VenueRefs{})
	require.ErrorIs(t, err, domain.ErrZeroSwap)
}

func TestSwapNoFillIsZeroSwap(t *testing.T) {
	t.Parallel()

	// 10 USDC 买不到 1 SOL
	p := testPocket(model.TradeSideBuy, 10, 0, 10)
	paper, a := setup(p)

	out, err := a.Swap(context.Background(), p, model.VenueRefs{})
	require.ErrorIs(t, err, domain.ErrZeroSwap)
	require.NotNil(t, out)
	assert.Equal(t, uint64(0), out.ToAmount)

	bal, _ := paper.Balance(context.Background(), p.QuoteVault)
	assert.Equal(t, uint64(10), bal, "unfilled IOC order is refunded by settle")
}

func TestSwapVenueFailure(t *testing.T) {
	t.Parallel()

	p := testPocket(model.TradeSideSell, 10, 10, 0)
	paper, a := setup(p)
	paper.Halt("SOL-USDC", true)

	_, err := a.Swap(context.Background(), p, model.VenueRefs{})
	require.ErrorIs(t, err, venue.ErrMarketHalted)
}

func TestSwapSlippageExceeded(t *testing.T) {
	t.Parallel()

	p := testPocket(model.TradeSideSell, 10, 10, 0)
	_, a := setup(p)

	// 期望每个 SOL 至少 25 USDC，实际 20
	refs := model.VenueRefs{MinExchangeRate: &model.ExchangeRate{Rate: 25, QuoteDecimals: 6}}
	out, err := a.Swap(context.Background(), p, refs)
	require.ErrorIs(t, err, domain.ErrSlippageExceeded)
	assert.Equal(t, uint8(0), out.MinExchangeRate.QuoteDecimals, "direct swaps ignore quote decimals")

	p2 := testPocket(model.TradeSideSell, 10, 10, 0)
	_, a2 := setup(p2)
	refs.MinExchangeRate.Rate = 20
	_, err = a2.Swap(context.Background(), p2, refs)
	require.NoError(t, err)
}

func TestSwapTransitiveReportsSpill(t *testing.T) {
	t.Parallel()

	// SOL -> USDC -> BTC
	p := &model.Pocket{
		ID:          "p2",
		BaseMint:    "SOL",
		QuoteMint:   "BTC",
		Side:        model.TradeSideSell,
		BatchVolume: 55,
		BaseBalance: 55,
		BaseVault:   model.VaultAccount("p2", "SOL"),
		QuoteVault:  model.VaultAccount("p2", "BTC"),
	}
	paper, a := setup(p)

	refs := model.VenueRefs{MarketID: "SOL-USDC", ViaMarketID: "BTC-USDC", IntermediateMint: "USDC"}
	out, err := a.Swap(context.Background(), p, refs)
	require.NoError(t, err)

	assert.Equal(t, uint64(55), out.FromAmount)
	assert.Equal(t, uint64(1_100), out.QuoteAmount)
	assert.Equal(t, uint64(1), out.ToAmount)
	assert.Equal(t, uint64(100), out.SpillAmount)
	assert.Equal(t, "USDC", out.QuoteMint)

	spill, _ := paper.Balance(context.Background(), model.VaultAccount("p2", "USDC"))
	assert.Equal(t, uint64(100), spill)
}

func TestSwapTransitiveRequiresIntermediate(t *testing.T) {
	t.Parallel()

	p := testPocket(model.TradeSideSell, 10, 10, 0)
	_, a := setup(p)

	_, err := a.Swap(context.Background(), p, model.VenueRefs{ViaMarketID: "BTC-USDC"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = a.Swap(context.Background(), p, model.VenueRefs{ViaMarketID: "BTC-USDC", IntermediateMint: "SOL"})
	require.ErrorIs(t, err, domain.ErrSwapTokensCannotMatch)
}
