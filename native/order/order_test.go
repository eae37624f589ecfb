package order

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gmsolcore/core/events"
	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/native/common"
	"gmsolcore/native/tradeevent"
	"gmsolcore/oracle"
	"gmsolcore/storage"
	"gmsolcore/storage/trie"
)

func newTestManager(t *testing.T) *state.Manager {
	t.Helper()
	db := storage.NewMemDB()
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return state.NewManager(tr)
}

func newTestMarket(t *testing.T, manager *state.Manager) *types.Market {
	t.Helper()
	m := &types.Market{
		StoreID:       "store-1",
		MarketTokenID: "mkt-wsol",
		LongToken:     "WSOL",
		ShortToken:    "USDC",
		IndexToken:    "WSOL",
		Enabled:       true,
		Long: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(1_000_000_000_000),
			OpenInterest:         uint256.NewInt(0),
			OpenInterestInTokens: uint256.NewInt(0),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(0),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		Short: types.PoolAmounts{
			PrimaryPool:          uint256.NewInt(1_000_000_000_000),
			OpenInterest:         uint256.NewInt(0),
			OpenInterestInTokens: uint256.NewInt(0),
			CollateralSum:        uint256.NewInt(0),
			ImpactPool:           uint256.NewInt(0),
			BorrowingFactorPool:  uint256.NewInt(0),
			FundingPerSizePool:   uint256.NewInt(0),
		},
		ClaimableFeePool: uint256.NewInt(0),
		ClockUpdatedAt:   map[types.ClockKind]int64{},
		Config: types.MarketConfig{
			PositionFeeFactorBps:   10,
			ReserveFactorBps:       9000,
			MaxPnlFactorForAdl:     3500,
			MinCollateralFactorBps: 100,
		},
	}
	require.NoError(t, manager.MarketPut(m))
	return m
}

func testPrices(price int64) oracle.Prices {
	return oracle.NewPrices(map[string]oracle.Price{
		"WSOL": {Min: big.NewInt(price), Max: big.NewInt(price), Timestamp: 101},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1), Timestamp: 101},
	})
}

func TestCreateRejectsDisabledMarket(t *testing.T) {
	manager := newTestManager(t)
	m := newTestMarket(t, manager)
	m.Enabled = false
	require.NoError(t, manager.MarketPut(m))

	_, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:                         types.OrderKindMarketIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-wsol",
		InitialCollateralDeltaAmount: big.NewInt(1_000_000_000),
		SizeDeltaValue:               big.NewInt(10_000),
		AcceptablePrice:              big.NewInt(200),
		Now:                          100,
		Slot:                         1,
	})
	require.Error(t, err)
}

func TestCreateRejectsZeroCollateralIncrease(t *testing.T) {
	manager := newTestManager(t)
	newTestMarket(t, manager)

	_, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:            types.OrderKindMarketIncrease,
		Side:            types.SideLong,
		MarketID:        "mkt-wsol",
		SizeDeltaValue:  big.NewInt(10_000),
		AcceptablePrice: big.NewInt(200),
		Now:             100,
		Slot:            1,
	})
	require.Error(t, err)
}

func TestCreateMarketIncreasePersists(t *testing.T) {
	manager := newTestManager(t)
	newTestMarket(t, manager)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:                         types.OrderKindMarketIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-wsol",
		InitialCollateralDeltaAmount: big.NewInt(1_000_000_000),
		SizeDeltaValue:               big.NewInt(10_000),
		AcceptablePrice:              big.NewInt(200),
		Now:                          100,
		Slot:                         1,
	})
	require.NoError(t, err)
	require.Equal(t, types.OrderStatePending, o.State)

	loaded, ok, err := manager.OrderGet("store-1", "owner-1", o.Nonce)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, o.ID, loaded.ID)
}

func TestUpdateRejectsNonUpdatableKind(t *testing.T) {
	manager := newTestManager(t)
	newTestMarket(t, manager)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:                         types.OrderKindMarketIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-wsol",
		InitialCollateralDeltaAmount: big.NewInt(1_000_000_000),
		SizeDeltaValue:               big.NewInt(10_000),
		AcceptablePrice:              big.NewInt(200),
		Now:                          100,
		Slot:                         1,
	})
	require.NoError(t, err)

	newTrigger := big.NewInt(175)
	err = Update(manager, o, UpdateParams{TriggerPrice: newTrigger}, 101, 1)
	require.Error(t, err)
}

func TestExecuteMarketIncreaseOpensPositionAndRecordsTradeEvent(t *testing.T) {
	manager := newTestManager(t)
	newTestMarket(t, manager)
	buf, err := tradeevent.Open(t.TempDir()+"/trades.db", events.NoopEmitter{})
	require.NoError(t, err)
	defer buf.Close()

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:                         types.OrderKindMarketIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-wsol",
		InitialCollateralDeltaAmount: big.NewInt(1_000_000_000),
		SizeDeltaValue:               big.NewInt(10_000),
		AcceptablePrice:              big.NewInt(200),
		Now:                          100,
		Slot:                         1,
	})
	require.NoError(t, err)

	report, err := Execute(manager, buf, events.NoopEmitter{}, o, ExecuteParams{
		Owner:                    "owner-1",
		Prices:                   testPrices(150),
		Now:                      101,
		Slot:                     2,
		RequestExpirationSeconds: 60,
		KeeperID:                 "keeper-1",
	})
	require.NoError(t, err)
	require.False(t, report.Cancelled)
	require.Equal(t, types.OrderStateCompleted, report.Order.State)
	require.NotNil(t, report.Position)
	require.True(t, report.Position.SizeInUsd.Cmp(big.NewInt(10_000)) == 0)
	require.NotNil(t, report.TradeEvent)

	loaded, err := buf.Get("keeper-1", report.TradeEvent.Index)
	require.NoError(t, err)
	require.Equal(t, o.ID, loaded.OrderID)
}

func TestExecuteMarketKindCancelsSilentlyOnStaleOracle(t *testing.T) {
	manager := newTestManager(t)
	newTestMarket(t, manager)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:                         types.OrderKindMarketIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-wsol",
		InitialCollateralDeltaAmount: big.NewInt(1_000_000_000),
		SizeDeltaValue:               big.NewInt(10_000),
		AcceptablePrice:              big.NewInt(200),
		Now:                          100,
		Slot:                         1,
	})
	require.NoError(t, err)

	prices := oracle.NewPrices(map[string]oracle.Price{
		"WSOL": {Min: big.NewInt(150), Max: big.NewInt(150), Timestamp: 1},
		"USDC": {Min: big.NewInt(1), Max: big.NewInt(1), Timestamp: 1},
	})

	report, err := Execute(manager, nil, events.NoopEmitter{}, o, ExecuteParams{
		Owner:                    "owner-1",
		Prices:                   prices,
		Now:                      500,
		Slot:                     2,
		RequestExpirationSeconds: 60,
		KeeperID:                 "keeper-1",
	})
	require.NoError(t, err)
	require.True(t, report.Cancelled)
	require.Equal(t, types.OrderStateCancelled, report.Order.State)
}

func TestExecuteLimitIncreaseRejectsBeforeTriggerReached(t *testing.T) {
	manager := newTestManager(t)
	newTestMarket(t, manager)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:                         types.OrderKindLimitIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-wsol",
		InitialCollateralDeltaAmount: big.NewInt(1_000_000_000),
		SizeDeltaValue:               big.NewInt(10_000),
		TriggerPrice:                 big.NewInt(100),
		AcceptablePrice:              big.NewInt(200),
		Now:                          100,
		Slot:                         1,
	})
	require.NoError(t, err)

	_, err = Execute(manager, nil, events.NoopEmitter{}, o, ExecuteParams{
		Owner:                    "owner-1",
		Prices:                   testPrices(150),
		Now:                      101,
		Slot:                     2,
		RequestExpirationSeconds: 60,
		KeeperID:                 "keeper-1",
	})
	require.Error(t, err)
}

func openTestPosition(t *testing.T, manager *state.Manager, m *types.Market, owner string, side types.Side, sizeUsd, collateral int64) *types.Position {
	t.Helper()
	collateralToken := m.SettlementToken(side.IsLong())
	pos, err := manager.PositionGetOrEmpty("store-1", owner, m.MarketTokenID, collateralToken, side)
	require.NoError(t, err)
	pos.SizeInUsd = big.NewInt(sizeUsd)
	pos.SizeInTokens = big.NewInt(sizeUsd / 150)
	pos.CollateralAmount = big.NewInt(collateral)
	require.NoError(t, manager.PositionPut(pos))
	return pos
}

func TestExecuteMarketDecreaseClosesPosition(t *testing.T) {
	manager := newTestManager(t)
	m := newTestMarket(t, manager)
	openTestPosition(t, manager, m, "owner-1", types.SideLong, 10_000, 1_000_000_000)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:           types.OrderKindMarketDecrease,
		Side:           types.SideLong,
		MarketID:       "mkt-wsol",
		SizeDeltaValue: big.NewInt(10_000),
		Now:            100,
		Slot:           1,
	})
	require.NoError(t, err)

	report, err := Execute(manager, nil, events.NoopEmitter{}, o, ExecuteParams{
		Owner:                    "owner-1",
		Prices:                   testPrices(150),
		Now:                      101,
		Slot:                     2,
		RequestExpirationSeconds: 60,
		KeeperID:                 "keeper-1",
	})
	require.NoError(t, err)
	require.False(t, report.Cancelled)
	require.True(t, report.TradeEvent.ShouldRemovePosition)
}

func TestExecuteLiquidationDispatchesThroughPositionCutAndSetsRentReceiver(t *testing.T) {
	manager := newTestManager(t)
	m := newTestMarket(t, manager)
	// Undercollateralized relative to size: min collateral factor is 100bps
	// of size (100), and this position's net value is below it.
	openTestPosition(t, manager, m, "owner-1", types.SideLong, 10_000, 50)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:           types.OrderKindLiquidation,
		Side:           types.SideLong,
		MarketID:       "mkt-wsol",
		SizeDeltaValue: big.NewInt(10_000),
		RentReceiver:   "keeper-1",
		Now:            100,
		Slot:           1,
	})
	require.NoError(t, err)

	report, err := Execute(manager, nil, events.NoopEmitter{}, o, ExecuteParams{
		Owner:                    "owner-1",
		Prices:                   testPrices(150),
		Now:                      101,
		Slot:                     2,
		RequestExpirationSeconds: 60,
		KeeperID:                 "keeper-1",
	})
	require.NoError(t, err)
	require.False(t, report.Cancelled)
	require.True(t, report.TradeEvent.ShouldRemovePosition)
	require.Equal(t, "owner-1", report.Order.RentReceiver, "a fully-closed position's rent receiver reverts to the owner")
}

func TestExecuteLiquidationRejectsHealthyPosition(t *testing.T) {
	manager := newTestManager(t)
	m := newTestMarket(t, manager)
	openTestPosition(t, manager, m, "owner-1", types.SideLong, 10_000, 1_000_000_000)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:           types.OrderKindLiquidation,
		Side:           types.SideLong,
		MarketID:       "mkt-wsol",
		SizeDeltaValue: big.NewInt(10_000),
		Now:            100,
		Slot:           1,
	})
	require.NoError(t, err)

	_, err = Execute(manager, nil, events.NoopEmitter{}, o, ExecuteParams{
		Owner:                    "owner-1",
		Prices:                   testPrices(150),
		Now:                      101,
		Slot:                     2,
		RequestExpirationSeconds: 60,
		KeeperID:                 "keeper-1",
	})
	require.Error(t, err)
	require.Equal(t, types.OrderStatePending, o.State)
}

type memQuotaStore struct {
	data map[string]common.QuotaNow
}

func newMemQuotaStore() *memQuotaStore {
	return &memQuotaStore{data: map[string]common.QuotaNow{}}
}

func (s *memQuotaStore) key(module string, epoch uint64, addr []byte) string {
	return fmt.Sprintf("%s:%d:%s", module, epoch, addr)
}

func (s *memQuotaStore) Load(module string, epoch uint64, addr []byte) (common.QuotaNow, bool, error) {
	v, ok := s.data[s.key(module, epoch, addr)]
	return v, ok, nil
}

func (s *memQuotaStore) Save(module string, epoch uint64, addr []byte, counters common.QuotaNow) error {
	s.data[s.key(module, epoch, addr)] = counters
	return nil
}

func TestExecuteMarketDecreaseDefersExcessOverClaimableCap(t *testing.T) {
	manager := newTestManager(t)
	m := newTestMarket(t, manager)
	m.Config.ClaimablePayoutCapBps = 1 // 0.01% of the short pool's 1e12 primary pool = 1e8
	require.NoError(t, manager.MarketPut(m))
	openTestPosition(t, manager, m, "owner-1", types.SideShort, 10_000, 1_000_000_000)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:           types.OrderKindMarketDecrease,
		Side:           types.SideShort,
		MarketID:       "mkt-wsol",
		SizeDeltaValue: big.NewInt(10_000),
		Now:            100,
		Slot:           1,
	})
	require.NoError(t, err)

	quotas := newMemQuotaStore()
	report, err := Execute(manager, nil, events.NoopEmitter{}, o, ExecuteParams{
		Owner:                    "owner-1",
		Prices:                   testPrices(150),
		Now:                      101,
		Slot:                     2,
		RequestExpirationSeconds: 60,
		KeeperID:                 "keeper-1",
		QuotaStore:               quotas,
		ClaimableWindowSeconds:   3600,
		HoldingBeneficiary:       "holding-1",
	})
	require.NoError(t, err)
	require.False(t, report.Cancelled)

	claimable, err := manager.ClaimableGet("store-1", "USDC", "owner-1", claimableWindowKeyFor(101, 3600), 101)
	require.NoError(t, err)
	require.True(t, claimable.Amount.Sign() > 0, "payout well above the tiny configured cap must defer its excess to the claimable bucket")
	require.True(t, report.TradeEvent.OutputAmount.Cmp(big.NewInt(100_000_000)) <= 0, "immediate output must be capped at the configured per-window amount")
}

func claimableWindowKeyFor(now int64, windowSeconds uint32) uint64 {
	return uint64(now) / uint64(windowSeconds)
}

func TestCloseRejectsPendingOrder(t *testing.T) {
	manager := newTestManager(t)
	newTestMarket(t, manager)

	o, err := Create(manager, "store-1", "owner-1", CreateParams{
		Kind:                         types.OrderKindMarketIncrease,
		Side:                         types.SideLong,
		MarketID:                     "mkt-wsol",
		InitialCollateralDeltaAmount: big.NewInt(1_000_000_000),
		SizeDeltaValue:               big.NewInt(10_000),
		AcceptablePrice:              big.NewInt(200),
		Now:                          100,
		Slot:                         1,
	})
	require.NoError(t, err)

	err = Close(manager, o)
	require.Error(t, err)
}
