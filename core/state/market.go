package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
)

func marketKey(storeID, marketTokenID string) []byte {
	buf := []byte(string(marketRecordPrefix) + storeID + ":" + marketTokenID)
	return ethcrypto.Keccak256(buf)
}

func marketOrderSeqKey(storeID, marketTokenID string) []byte {
	buf := []byte(string(marketIDSeqPrefix) + storeID + ":" + marketTokenID)
	return ethcrypto.Keccak256(buf)
}

type storedPoolAmounts struct {
	PrimaryPool          *uint256.Int
	OpenInterest         *uint256.Int
	OpenInterestInTokens *uint256.Int
	CollateralSum        *uint256.Int
	ImpactPool           *uint256.Int
	BorrowingFactorPool  *uint256.Int
	FundingPerSizePool   *uint256.Int
}

func newStoredPoolAmounts(p types.PoolAmounts) storedPoolAmounts {
	zero := func(v *uint256.Int) *uint256.Int {
		if v == nil {
			return uint256.NewInt(0)
		}
		return new(uint256.Int).Set(v)
	}
	return storedPoolAmounts{
		PrimaryPool:          zero(p.PrimaryPool),
		OpenInterest:         zero(p.OpenInterest),
		OpenInterestInTokens: zero(p.OpenInterestInTokens),
		CollateralSum:        zero(p.CollateralSum),
		ImpactPool:           zero(p.ImpactPool),
		BorrowingFactorPool:  zero(p.BorrowingFactorPool),
		FundingPerSizePool:   zero(p.FundingPerSizePool),
	}
}

func (s storedPoolAmounts) toPoolAmounts() types.PoolAmounts {
	return types.PoolAmounts{
		PrimaryPool:          s.PrimaryPool,
		OpenInterest:         s.OpenInterest,
		OpenInterestInTokens: s.OpenInterestInTokens,
		CollateralSum:        s.CollateralSum,
		ImpactPool:           s.ImpactPool,
		BorrowingFactorPool:  s.BorrowingFactorPool,
		FundingPerSizePool:   s.FundingPerSizePool,
	}
}

type storedMarketConfig struct {
	SwapFeeFactorBps       uint32
	PositionFeeFactorBps   uint32
	PositionImpactExponent uint32
	ReserveFactorBps       uint32
	MaxPnlFactorForTraders uint32
	MaxPnlFactorForAdl     uint32
	MinPnlFactorAfterAdl   uint32
	MaxPnlFactorForDeposit uint32
	ClaimablePayoutCapBps  uint32
	MinCollateralFactorBps uint32
}

type storedClock struct {
	Kind uint8
	At   int64
}

type storedMarket struct {
	StoreID       string
	MarketTokenID string
	LongToken     string
	ShortToken    string
	IndexToken    string
	Enabled       bool
	Long          storedPoolAmounts
	Short         storedPoolAmounts
	ClaimableFeePool  *uint256.Int
	MarketTokenSupply *uint256.Int
	Clocks        []storedClock
	Config        storedMarketConfig
	Revision      uint64
	UpdatedAtSlot uint64
}

func newStoredMarket(m *types.Market) *storedMarket {
	clocks := make([]storedClock, 0, len(m.ClockUpdatedAt))
	for k, v := range m.ClockUpdatedAt {
		clocks = append(clocks, storedClock{Kind: uint8(k), At: v})
	}
	feePool := uint256.NewInt(0)
	if m.ClaimableFeePool != nil {
		feePool = new(uint256.Int).Set(m.ClaimableFeePool)
	}
	tokenSupply := uint256.NewInt(0)
	if m.MarketTokenSupply != nil {
		tokenSupply = new(uint256.Int).Set(m.MarketTokenSupply)
	}
	return &storedMarket{
		StoreID:           m.StoreID,
		MarketTokenID:     m.MarketTokenID,
		LongToken:         m.LongToken,
		ShortToken:        m.ShortToken,
		IndexToken:        m.IndexToken,
		Enabled:           m.Enabled,
		Long:              newStoredPoolAmounts(m.Long),
		Short:             newStoredPoolAmounts(m.Short),
		ClaimableFeePool:  feePool,
		MarketTokenSupply: tokenSupply,
		Clocks:            clocks,
		Config: storedMarketConfig{
			SwapFeeFactorBps:       m.Config.SwapFeeFactorBps,
			PositionFeeFactorBps:   m.Config.PositionFeeFactorBps,
			PositionImpactExponent: m.Config.PositionImpactExponent,
			ReserveFactorBps:       m.Config.ReserveFactorBps,
			MaxPnlFactorForTraders: m.Config.MaxPnlFactorForTraders,
			MaxPnlFactorForAdl:     m.Config.MaxPnlFactorForAdl,
			MinPnlFactorAfterAdl:   m.Config.MinPnlFactorAfterAdl,
			MaxPnlFactorForDeposit: m.Config.MaxPnlFactorForDeposit,
			ClaimablePayoutCapBps:  m.Config.ClaimablePayoutCapBps,
			MinCollateralFactorBps: m.Config.MinCollateralFactorBps,
		},
		Revision:      m.Revision,
		UpdatedAtSlot: m.UpdatedAtSlot,
	}
}

func (s *storedMarket) toMarket() *types.Market {
	clocks := make(map[types.ClockKind]int64, len(s.Clocks))
	for _, c := range s.Clocks {
		clocks[types.ClockKind(c.Kind)] = c.At
	}
	return &types.Market{
		StoreID:          s.StoreID,
		MarketTokenID:    s.MarketTokenID,
		LongToken:        s.LongToken,
		ShortToken:       s.ShortToken,
		IndexToken:       s.IndexToken,
		Enabled:          s.Enabled,
		Long:              s.Long.toPoolAmounts(),
		Short:             s.Short.toPoolAmounts(),
		ClaimableFeePool:  s.ClaimableFeePool,
		MarketTokenSupply: s.MarketTokenSupply,
		ClockUpdatedAt:    clocks,
		Config: types.MarketConfig{
			SwapFeeFactorBps:       s.Config.SwapFeeFactorBps,
			PositionFeeFactorBps:   s.Config.PositionFeeFactorBps,
			PositionImpactExponent: s.Config.PositionImpactExponent,
			ReserveFactorBps:       s.Config.ReserveFactorBps,
			MaxPnlFactorForTraders: s.Config.MaxPnlFactorForTraders,
			MaxPnlFactorForAdl:     s.Config.MaxPnlFactorForAdl,
			MinPnlFactorAfterAdl:   s.Config.MinPnlFactorAfterAdl,
			MaxPnlFactorForDeposit: s.Config.MaxPnlFactorForDeposit,
			ClaimablePayoutCapBps:  s.Config.ClaimablePayoutCapBps,
			MinCollateralFactorBps: s.Config.MinCollateralFactorBps,
		},
		Revision:      s.Revision,
		UpdatedAtSlot: s.UpdatedAtSlot,
	}
}

// MarketPut persists a market, bumping its revision counter: every
// mutation increments a revision counter.
func (m *Manager) MarketPut(market *types.Market) error {
	if market == nil {
		return fmt.Errorf("state: nil market")
	}
	market.Revision++
	stored := newStoredMarket(market)
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.trie.Update(marketKey(market.StoreID, market.MarketTokenID), encoded)
}

// MarketGet loads a market by (store, marketTokenID).
func (m *Manager) MarketGet(storeID, marketTokenID string) (*types.Market, bool, error) {
	data, err := m.trie.Get(marketKey(storeID, marketTokenID))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var stored storedMarket
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	return stored.toMarket(), true, nil
}

// MarketRequire loads a market and fails with MarketAccountIsNotProvided if
// absent, the shape most callers in native/order and native/position want.
func (m *Manager) MarketRequire(storeID, marketTokenID string) (*types.Market, error) {
	market, ok, err := m.MarketGet(storeID, marketTokenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "market not found").WithAccount(marketTokenID)
	}
	return market, nil
}

// NextOrderID draws the next monotone Order.ID from the market's indexer
//.
func (m *Manager) NextOrderID(storeID, marketTokenID string) (uint64, error) {
	key := marketOrderSeqKey(storeID, marketTokenID)
	current, err := m.loadBigInt(key)
	if err != nil {
		return 0, err
	}
	next := current.Uint64() + 1
	if err := m.writeBigInt(key, new(big.Int).SetUint64(next)); err != nil {
		return 0, err
	}
	return next, nil
}
