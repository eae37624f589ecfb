package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
)

func orderKey(storeID, owner string, nonce uint64) []byte {
	buf := []byte(fmt.Sprintf("%s%s:%s:%d", orderRecordPrefix, storeID, owner, nonce))
	return ethcrypto.Keccak256(buf)
}

func orderNonceKey(storeID, owner string) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s%s:%s", orderNoncePrefix, storeID, owner)))
}

type storedOrder struct {
	StoreID string
	Owner   string
	Nonce   uint64
	ID      uint64

	Kind       uint8
	Side       uint8
	MarketID   string
	PositionID string

	InitialCollateralDeltaAmount *big.Int
	SizeDeltaValue               *big.Int

	HasTriggerPrice bool
	TriggerPrice    *big.Int
	HasAcceptablePrice bool
	AcceptablePrice    *big.Int
	HasMinOutput       bool
	MinOutput          *big.Int

	ValidFromTs int64

	DecreasePositionSwapType uint8
	ShouldUnwrapNative       bool

	ExecutionFeeAmount    *big.Int
	PositionCutRentAmount *big.Int

	FromToken string
	ToToken   string
	SwapPath  []string

	InitialCollateralEscrowAccount string
	FinalOutputEscrowAccount       string
	SecondaryOutputEscrowAccount   string

	RentReceiver string

	State uint8

	UpdatedAt     int64
	UpdatedAtSlot uint64
}

func newStoredOrder(o *types.Order) *storedOrder {
	s := &storedOrder{
		StoreID:                      o.StoreID,
		Owner:                        o.Owner,
		Nonce:                        o.Nonce,
		ID:                           o.ID,
		Kind:                         uint8(o.Kind),
		Side:                         uint8(o.Side),
		MarketID:                     o.MarketID,
		PositionID:                   o.PositionID,
		InitialCollateralDeltaAmount: zeroIfNil(o.InitialCollateralDeltaAmount),
		SizeDeltaValue:               zeroIfNil(o.SizeDeltaValue),
		ValidFromTs:                  o.ValidFromTs,
		DecreasePositionSwapType:     uint8(o.DecreasePositionSwapType),
		ShouldUnwrapNative:           o.ShouldUnwrapNative,
		ExecutionFeeAmount:           zeroIfNil(o.ExecutionFeeAmount),
		PositionCutRentAmount:        zeroIfNil(o.PositionCutRentAmount),
		FromToken:                    o.FromToken,
		ToToken:                      o.ToToken,
		SwapPath:                     append([]string(nil), o.SwapPath...),
		InitialCollateralEscrowAccount: o.InitialCollateralEscrowAccount,
		FinalOutputEscrowAccount:       o.FinalOutputEscrowAccount,
		SecondaryOutputEscrowAccount:   o.SecondaryOutputEscrowAccount,
		RentReceiver:                   o.RentReceiver,
		State:                          uint8(o.State),
		UpdatedAt:                      o.UpdatedAt,
		UpdatedAtSlot:                  o.UpdatedAtSlot,
	}
	if o.TriggerPrice != nil {
		s.HasTriggerPrice = true
		s.TriggerPrice = new(big.Int).Set(o.TriggerPrice)
	} else {
		s.TriggerPrice = big.NewInt(0)
	}
	if o.AcceptablePrice != nil {
		s.HasAcceptablePrice = true
		s.AcceptablePrice = new(big.Int).Set(o.AcceptablePrice)
	} else {
		s.AcceptablePrice = big.NewInt(0)
	}
	if o.MinOutput != nil {
		s.HasMinOutput = true
		s.MinOutput = new(big.Int).Set(o.MinOutput)
	} else {
		s.MinOutput = big.NewInt(0)
	}
	return s
}

func (s *storedOrder) toOrder() *types.Order {
	o := &types.Order{
		StoreID:                      s.StoreID,
		Owner:                        s.Owner,
		Nonce:                        s.Nonce,
		ID:                           s.ID,
		Kind:                         types.OrderKind(s.Kind),
		Side:                         types.Side(s.Side),
		MarketID:                     s.MarketID,
		PositionID:                   s.PositionID,
		InitialCollateralDeltaAmount: s.InitialCollateralDeltaAmount,
		SizeDeltaValue:               s.SizeDeltaValue,
		ValidFromTs:                  s.ValidFromTs,
		DecreasePositionSwapType:     types.DecreasePositionSwapType(s.DecreasePositionSwapType),
		ShouldUnwrapNative:           s.ShouldUnwrapNative,
		ExecutionFeeAmount:           s.ExecutionFeeAmount,
		PositionCutRentAmount:        s.PositionCutRentAmount,
		FromToken:                    s.FromToken,
		ToToken:                      s.ToToken,
		SwapPath:                     s.SwapPath,
		InitialCollateralEscrowAccount: s.InitialCollateralEscrowAccount,
		FinalOutputEscrowAccount:       s.FinalOutputEscrowAccount,
		SecondaryOutputEscrowAccount:   s.SecondaryOutputEscrowAccount,
		RentReceiver:                   s.RentReceiver,
		State:                          types.OrderState(s.State),
		UpdatedAt:                      s.UpdatedAt,
		UpdatedAtSlot:                  s.UpdatedAtSlot,
	}
	if s.HasTriggerPrice {
		o.TriggerPrice = s.TriggerPrice
	}
	if s.HasAcceptablePrice {
		o.AcceptablePrice = s.AcceptablePrice
	}
	if s.HasMinOutput {
		o.MinOutput = s.MinOutput
	}
	return o
}

// OrderPut persists an order keyed by (store, owner, nonce).
func (m *Manager) OrderPut(o *types.Order) error {
	if o == nil {
		return fmt.Errorf("state: nil order")
	}
	encoded, err := rlp.EncodeToBytes(newStoredOrder(o))
	if err != nil {
		return err
	}
	return m.trie.Update(orderKey(o.StoreID, o.Owner, o.Nonce), encoded)
}

// OrderGet loads an order by (store, owner, nonce).
func (m *Manager) OrderGet(storeID, owner string, nonce uint64) (*types.Order, bool, error) {
	data, err := m.trie.Get(orderKey(storeID, owner, nonce))
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	var stored storedOrder
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, false, err
	}
	return stored.toOrder(), true, nil
}

// OrderRequire loads an order and fails with NotFound if absent.
func (m *Manager) OrderRequire(storeID, owner string, nonce uint64) (*types.Order, error) {
	order, ok, err := m.OrderGet(storeID, owner, nonce)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, coreerrors.New(coreerrors.CodeNotFound, "order not found").WithAccount(owner)
	}
	return order, nil
}

// OrderDelete removes a completed or cancelled order's record, freeing its
// escrow accounts' backing slot.
func (m *Manager) OrderDelete(storeID, owner string, nonce uint64) error {
	return m.trie.Update(orderKey(storeID, owner, nonce), nil)
}

// NextOrderNonce draws the next per-owner order nonce (E Create: "a
// fresh nonce drawn from the owner's sequence").
func (m *Manager) NextOrderNonce(storeID, owner string) (uint64, error) {
	key := orderNonceKey(storeID, owner)
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
