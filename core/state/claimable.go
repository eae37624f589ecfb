package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
)

func claimableKey(storeID, mint, beneficiary string, windowKey uint64) []byte {
	buf := []byte(fmt.Sprintf("%s%s:%s:%s:%d", claimableRecordPrefix, storeID, mint, beneficiary, windowKey))
	return ethcrypto.Keccak256(buf)
}

type storedClaimable struct {
	StoreID       string
	Mint          string
	Beneficiary   string
	TimeWindowKey uint64

	Amount *big.Int

	CreatedAt int64
	UpdatedAt int64

	Closed bool
}

func newStoredClaimable(c *types.Claimable) *storedClaimable {
	return &storedClaimable{
		StoreID:       c.StoreID,
		Mint:          c.Mint,
		Beneficiary:   c.Beneficiary,
		TimeWindowKey: c.TimeWindowKey,
		Amount:        zeroIfNil(c.Amount),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		Closed:        c.Closed,
	}
}

func (s *storedClaimable) toClaimable() *types.Claimable {
	return &types.Claimable{
		StoreID:       s.StoreID,
		Mint:          s.Mint,
		Beneficiary:   s.Beneficiary,
		TimeWindowKey: s.TimeWindowKey,
		Amount:        s.Amount,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		Closed:        s.Closed,
	}
}

// ClaimableGet loads a claimable bucket, returning an empty unclosed bucket
// bound to the identity tuple if it has never been credited.
func (m *Manager) ClaimableGet(storeID, mint, beneficiary string, windowKey uint64, now int64) (*types.Claimable, error) {
	data, err := m.trie.Get(claimableKey(storeID, mint, beneficiary, windowKey))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &types.Claimable{
			StoreID:       storeID,
			Mint:          mint,
			Beneficiary:   beneficiary,
			TimeWindowKey: windowKey,
			Amount:        big.NewInt(0),
			CreatedAt:     now,
			UpdatedAt:     now,
		}, nil
	}
	var stored storedClaimable
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	return stored.toClaimable(), nil
}

func (m *Manager) claimablePut(c *types.Claimable) error {
	encoded, err := rlp.EncodeToBytes(newStoredClaimable(c))
	if err != nil {
		return err
	}
	return m.trie.Update(claimableKey(c.StoreID, c.Mint, c.Beneficiary, c.TimeWindowKey), encoded)
}

// ClaimableCredit routes an amount that overran a per-window payout cap into
// the beneficiary's claimable bucket for the current time window: the
// excess routes to a claimable bucket instead of erroring. It is built on
// the credit/debit-with-rollback pattern a claimable ledger typically uses
// for dual-account balance moves.
func (m *Manager) ClaimableCredit(storeID, mint, beneficiary string, windowKey uint64, amount *big.Int, now int64) (*types.Claimable, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "claimable credit amount must be positive")
	}
	claimable, err := m.ClaimableGet(storeID, mint, beneficiary, windowKey, now)
	if err != nil {
		return nil, err
	}
	if claimable.Closed {
		return nil, coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "claimable bucket already closed").WithAccount(beneficiary)
	}
	rollback, err := MustAddBalance(claimable.Amount, amount)
	if err != nil {
		return nil, err
	}
	claimable.UpdatedAt = now
	if err := m.claimablePut(claimable); err != nil {
		rollback()
		return nil, err
	}
	return claimable, nil
}

// ClaimableDebit pays out exactly amount from the beneficiary's claimable
// bucket, failing if the bucket holds less, and closes it once drained.
func (m *Manager) ClaimableDebit(storeID, mint, beneficiary string, windowKey uint64, amount *big.Int, now int64) (*types.Claimable, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidArgument, "claimable debit amount must be positive")
	}
	claimable, err := m.ClaimableGet(storeID, mint, beneficiary, windowKey, now)
	if err != nil {
		return nil, err
	}
	if claimable.Closed || claimable.IsEmpty() {
		return nil, coreerrors.New(coreerrors.CodePreconditionsAreNotMet, "claimable bucket has nothing to claim").WithAccount(beneficiary)
	}
	rollback, err := MustSubBalance(claimable.Amount, amount)
	if err != nil {
		return nil, err
	}
	claimable.UpdatedAt = now
	if claimable.IsEmpty() {
		claimable.Closed = true
	}
	if err := m.claimablePut(claimable); err != nil {
		rollback()
		return nil, err
	}
	return claimable, nil
}
