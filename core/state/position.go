package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
)

func positionKey(storeID, owner, marketToken, collateralToken string, side types.Side) []byte {
	buf := []byte(fmt.Sprintf("%s%s:%s:%s:%s:%d", positionRecordPrefix, storeID, owner, marketToken, collateralToken, side))
	return ethcrypto.Keccak256(buf)
}

type storedPosition struct {
	StoreID         string
	Owner           string
	MarketToken     string
	CollateralToken string
	Side            uint8

	SizeInUsd        *big.Int
	SizeInTokens     *big.Int
	CollateralAmount *big.Int

	BorrowingFactorSnapshot *big.Int

	FundingFeeAmountPerSizeLong  *big.Int
	FundingFeeAmountPerSizeShort *big.Int

	TradeID uint64

	IncreasedAt   int64
	DecreasedAt   int64
	UpdatedAtSlot uint64
}

func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func newStoredPosition(p *types.Position) *storedPosition {
	return &storedPosition{
		StoreID:                      p.StoreID,
		Owner:                        p.Owner,
		MarketToken:                  p.MarketToken,
		CollateralToken:              p.CollateralToken,
		Side:                         uint8(p.Side),
		SizeInUsd:                    zeroIfNil(p.SizeInUsd),
		SizeInTokens:                 zeroIfNil(p.SizeInTokens),
		CollateralAmount:             zeroIfNil(p.CollateralAmount),
		BorrowingFactorSnapshot:      zeroIfNil(p.BorrowingFactorSnapshot),
		FundingFeeAmountPerSizeLong:  zeroIfNil(p.FundingFeeAmountPerSizeLong),
		FundingFeeAmountPerSizeShort: zeroIfNil(p.FundingFeeAmountPerSizeShort),
		TradeID:                      p.TradeID,
		IncreasedAt:                  p.IncreasedAt,
		DecreasedAt:                  p.DecreasedAt,
		UpdatedAtSlot:                p.UpdatedAtSlot,
	}
}

func (s *storedPosition) toPosition() *types.Position {
	return &types.Position{
		StoreID:                      s.StoreID,
		Owner:                        s.Owner,
		MarketToken:                  s.MarketToken,
		CollateralToken:              s.CollateralToken,
		Side:                         types.Side(s.Side),
		SizeInUsd:                    s.SizeInUsd,
		SizeInTokens:                 s.SizeInTokens,
		CollateralAmount:             s.CollateralAmount,
		BorrowingFactorSnapshot:      s.BorrowingFactorSnapshot,
		FundingFeeAmountPerSizeLong:  s.FundingFeeAmountPerSizeLong,
		FundingFeeAmountPerSizeShort: s.FundingFeeAmountPerSizeShort,
		TradeID:                      s.TradeID,
		IncreasedAt:                  s.IncreasedAt,
		DecreasedAt:                  s.DecreasedAt,
		UpdatedAtSlot:                s.UpdatedAtSlot,
	}
}

// PositionPut persists a position keyed by its (store, owner, market,
// collateral, side) tuple.
func (m *Manager) PositionPut(p *types.Position) error {
	if p == nil {
		return fmt.Errorf("state: nil position")
	}
	encoded, err := rlp.EncodeToBytes(newStoredPosition(p))
	if err != nil {
		return err
	}
	return m.trie.Update(positionKey(p.StoreID, p.Owner, p.MarketToken, p.CollateralToken, p.Side), encoded)
}

// PositionGet loads a position by identity tuple.
func (m *Manager) PositionGet(storeID, owner, marketToken, collateralToken string, side types.Side) (*types.Position, bool, error) {
	data, err := m.trie.Get(positionKey(storeID, owner, marketToken, collateralToken, side))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	return stored.toPosition(), true, nil
}

// PositionGetOrEmpty loads a position, returning a zero-value position
// bound to the identity tuple if none exists yet, the shape an increase
// path wants.
func (m *Manager) PositionGetOrEmpty(storeID, owner, marketToken, collateralToken string, side types.Side) (*types.Position, error) {
	existing, ok, err := m.PositionGet(storeID, owner, marketToken, collateralToken, side)
	if err != nil {
		return nil, err
	}
	if ok {
		return existing, nil
	}
	return &types.Position{
		StoreID:                      storeID,
		Owner:                        owner,
		MarketToken:                  marketToken,
		CollateralToken:              collateralToken,
		Side:                         side,
		SizeInUsd:                    big.NewInt(0),
		SizeInTokens:                 big.NewInt(0),
		CollateralAmount:             big.NewInt(0),
		BorrowingFactorSnapshot:      big.NewInt(0),
		FundingFeeAmountPerSizeLong:  big.NewInt(0),
		FundingFeeAmountPerSizeShort: big.NewInt(0),
	}, nil
}

// PositionDelete removes a fully-closed position record.
func (m *Manager) PositionDelete(p *types.Position) error {
	if p == nil {
		return fmt.Errorf("state: nil position")
	}
	return m.trie.Update(positionKey(p.StoreID, p.Owner, p.MarketToken, p.CollateralToken, p.Side), nil)
}

// PositionRequireMatch loads the position stored under the order's binding
// (owner/market/collateral/side), returning NotFound if none exists. The
// binding is the lookup key, so a loaded position always matches it.
func (m *Manager) PositionRequireMatch(storeID, owner, marketToken, collateralToken string, side types.Side) (*types.Position, error) {
	existing, ok, err := m.PositionGet(storeID, owner, marketToken, collateralToken, side)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeNotFound, "position does not exist").WithAccount(owner)
	}
	return existing, nil
}
