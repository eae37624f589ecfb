package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
)

func actionKey(storeID, owner string, nonce uint64) []byte {
	buf := []byte(fmt.Sprintf("%s%s:%s:%d", actionRecordPrefix, storeID, owner, nonce))
	return ethcrypto.Keccak256(buf)
}

func actionNonceKey(storeID, owner string) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s%s:%s", actionNoncePrefix, storeID, owner)))
}

type storedAction struct {
	StoreID string
	Owner   string
	Nonce   uint64
	ID      uint64

	Kind uint8

	MarketID     string
	FromMarketID string
	ToMarketID   string

	LongAmount  *big.Int
	ShortAmount *big.Int

	LongSwapPath  []string
	ShortSwapPath []string

	MarketTokenAmount *big.Int
	MinLongOutput     *big.Int
	MinShortOutput    *big.Int
	MinMarketTokens   *big.Int

	ShouldUnwrapNative bool

	ExecutionFeeAmount *big.Int

	RentReceiver string

	State uint8

	UpdatedAt     int64
	UpdatedAtSlot uint64
}

func newStoredAction(a *types.Action) *storedAction {
	return &storedAction{
		StoreID:            a.StoreID,
		Owner:              a.Owner,
		Nonce:              a.Nonce,
		ID:                 a.ID,
		Kind:               uint8(a.Kind),
		MarketID:           a.MarketID,
		FromMarketID:       a.FromMarketID,
		ToMarketID:         a.ToMarketID,
		LongAmount:         zeroIfNil(a.LongAmount),
		ShortAmount:        zeroIfNil(a.ShortAmount),
		LongSwapPath:       append([]string(nil), a.LongSwapPath...),
		ShortSwapPath:      append([]string(nil), a.ShortSwapPath...),
		MarketTokenAmount:  zeroIfNil(a.MarketTokenAmount),
		MinLongOutput:      zeroIfNil(a.MinLongOutput),
		MinShortOutput:     zeroIfNil(a.MinShortOutput),
		MinMarketTokens:    zeroIfNil(a.MinMarketTokens),
		ShouldUnwrapNative: a.ShouldUnwrapNative,
		ExecutionFeeAmount: zeroIfNil(a.ExecutionFeeAmount),
		RentReceiver:       a.RentReceiver,
		State:              uint8(a.State),
		UpdatedAt:          a.UpdatedAt,
		UpdatedAtSlot:      a.UpdatedAtSlot,
	}
}

func (s *storedAction) toAction() *types.Action {
	return &types.Action{
		StoreID:            s.StoreID,
		Owner:              s.Owner,
		Nonce:              s.Nonce,
		ID:                 s.ID,
		Kind:               types.ActionKind(s.Kind),
		MarketID:           s.MarketID,
		FromMarketID:       s.FromMarketID,
		ToMarketID:         s.ToMarketID,
		LongAmount:         s.LongAmount,
		ShortAmount:        s.ShortAmount,
		LongSwapPath:       s.LongSwapPath,
		ShortSwapPath:      s.ShortSwapPath,
		MarketTokenAmount:  s.MarketTokenAmount,
		MinLongOutput:      s.MinLongOutput,
		MinShortOutput:     s.MinShortOutput,
		MinMarketTokens:    s.MinMarketTokens,
		ShouldUnwrapNative: s.ShouldUnwrapNative,
		ExecutionFeeAmount: s.ExecutionFeeAmount,
		RentReceiver:       s.RentReceiver,
		State:              types.OrderState(s.State),
		UpdatedAt:          s.UpdatedAt,
		UpdatedAtSlot:      s.UpdatedAtSlot,
	}
}

// ActionPut persists a deposit/withdrawal/shift action keyed by
// (store, owner, nonce), mirroring OrderPut.
func (m *Manager) ActionPut(a *types.Action) error {
	if a == nil {
		return fmt.Errorf("state: nil action")
	}
	encoded, err := rlp.EncodeToBytes(newStoredAction(a))
	if err != nil {
		return err
	}
	return m.trie.Update(actionKey(a.StoreID, a.Owner, a.Nonce), encoded)
}

// ActionGet loads an action by (store, owner, nonce).
func (m *Manager) ActionGet(storeID, owner string, nonce uint64) (*types.Action, bool, error) {
	data, err := m.trie.Get(actionKey(storeID, owner, nonce))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var stored storedAction
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	return stored.toAction(), true, nil
}

// ActionRequire loads an action and fails with NotFound if absent.
func (m *Manager) ActionRequire(storeID, owner string, nonce uint64) (*types.Action, error) {
	action, ok, err := m.ActionGet(storeID, owner, nonce)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeNotFound, "action not found").WithAccount(owner)
	}
	return action, nil
}

// ActionDelete removes a completed or cancelled action's record.
func (m *Manager) ActionDelete(storeID, owner string, nonce uint64) error {
	return m.trie.Update(actionKey(storeID, owner, nonce), nil)
}

// NextActionNonce draws the next per-owner action nonce.
func (m *Manager) NextActionNonce(storeID, owner string) (uint64, error) {
	key := actionNonceKey(storeID, owner)
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
