package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"pockettrade.com/internal/condition"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/infra"
	"pockettrade.com/internal/model"
	"pockettrade.com/internal/strategies"
	"pockettrade.com/internal/swap"
	"pockettrade.com/internal/venue"
)

const (
	testAdmin    = "admin"
	testOperator = "operator"
	testOwner    = "alice"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db       *gorm.DB
	paper    *venue.Paper
	registry *RegistryServiceImpl
	pockets  *PocketServiceImpl
	clock    *fakeClock
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.Migrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db := newTestDB(t)
	paper := venue.NewPaper(
		venue.Market{ID: "SOL-USDC", BaseMint: "SOL", QuoteMint: "USDC", Price: decimal.NewFromInt(20)},
	)

	registry := NewRegistryService(db, nil, nil)
	_, err := registry.Initialize(ctx, testAdmin, []string{testOperator})
	require.NoError(t, err)
	for _, mint := range []string{"SOL", "USDC"} {
		_, err = registry.AddMint(ctx, testAdmin, mint, "")
		require.NoError(t, err)
	}

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	pockets := NewPocketService(
		db,
		registry,
		swap.NewAdapter(paper, paper, nil),
		paper,
		strategies.NewExecutor(nil, nil),
		nil,
		nil,
	).WithClock(clock.Now)

	return &testEnv{db: db, paper: paper, registry: registry, pockets: pockets, clock: clock}
}

func (e *testEnv) input(id string, side model.TradeSide) domain.CreatePocketInput {
	return domain.CreatePocketInput{
		ID:             id,
		Name:           "dca " + id,
		BaseMint:       "SOL",
		QuoteMint:      "USDC",
		MarketKey:      "SOL-USDC",
		Side:           side,
		BatchVolume:    100,
		StartAt:        e.clock.Now().Unix(),
		FrequencyHours: 1,
		StopConditions: []condition.StopCondition{},
	}
}

// fundedPocket 创建 Pocket 并从 owner 钱包存入 quote
func (e *testEnv) fundedPocket(t *testing.T, in domain.CreatePocketInput, quote uint64) *model.Pocket {
	t.Helper()
	ctx := context.Background()
	_, err := e.pockets.CreatePocket(ctx, testOwner, in)
	require.NoError(t, err)
	e.paper.Fund(model.WalletAccount(testOwner, in.QuoteMint), quote)
	p, err := e.pockets.Deposit(ctx, testOwner, in.ID, model.AssetQuote, quote)
	require.NoError(t, err)
	return p
}
