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

func vaultKey(storeID, mint string) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s%s:%s", vaultBalancePrefix, storeID, mint)))
}

// VaultBalanceGet loads a vault's token balance, defaulting to zero.
func (m *Manager) VaultBalanceGet(storeID, mint string) (*big.Int, error) {
	data, err := m.trie.Get(vaultKey(storeID, mint))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(data, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) vaultBalancePut(storeID, mint string, balance *big.Int) error {
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return m.trie.Update(vaultKey(storeID, mint), encoded)
}

func subUint256(pool *uint256.Int, amount *uint256.Int) (func(), error) {
	if pool.Cmp(amount) < 0 {
		return nil, coreerrors.New(coreerrors.CodeNotEnoughTokenAmount, "pool amount underflow")
	}
	prior := new(uint256.Int).Set(pool)
	pool.Sub(pool, amount)
	return func() { pool.Set(prior) }, nil
}

func addUint256(pool *uint256.Int, amount *uint256.Int) func() {
	prior := new(uint256.Int).Set(pool)
	pool.Add(pool, amount)
	return func() { pool.Set(prior) }
}

// MarketTransferOut moves `amount` of the side's settlement token out of the
// market's vault and debits the matching pool amount in the same atomic
// unit, the *vault-pool invariant*. It persists
// both the market and vault balance, or leaves neither changed on error.
func (m *Manager) MarketTransferOut(market *types.Market, isLong bool, amount *big.Int) error {
	if market == nil || amount == nil || amount.Sign() <= 0 {
		return coreerrors.New(coreerrors.CodeInvalidArgument, "invalid market transfer-out amount")
	}
	token := market.SettlementToken(isLong)
	balance, err := m.VaultBalanceGet(market.StoreID, token)
	if err != nil {
		return err
	}
	rollbackBalance, err := MustSubBalance(balance, amount)
	if err != nil {
		return err
	}
	amount256, overflow := uint256.FromBig(amount)
	if overflow {
		rollbackBalance()
		return coreerrors.New(coreerrors.CodeTokenAmountOverflow, "transfer-out amount exceeds uint256 range")
	}
	pool := market.Pool(isLong)
	rollbackPool, err := subUint256(pool.PrimaryPool, amount256)
	if err != nil {
		rollbackBalance()
		return err
	}
	if err := m.vaultBalancePut(market.StoreID, token, balance); err != nil {
		rollbackPool()
		rollbackBalance()
		return err
	}
	if err := m.MarketPut(market); err != nil {
		rollbackPool()
		rollbackBalance()
		return err
	}
	return nil
}

// MarketTransferIn moves `amount` of the side's settlement token into the
// market's vault and credits the matching pool amount atomically.
func (m *Manager) MarketTransferIn(market *types.Market, isLong bool, amount *big.Int) error {
	if market == nil || amount == nil || amount.Sign() <= 0 {
		return coreerrors.New(coreerrors.CodeInvalidArgument, "invalid market transfer-in amount")
	}
	token := market.SettlementToken(isLong)
	balance, err := m.VaultBalanceGet(market.StoreID, token)
	if err != nil {
		return err
	}
	rollbackBalance, err := MustAddBalance(balance, amount)
	if err != nil {
		return err
	}
	amount256, overflow := uint256.FromBig(amount)
	if overflow {
		rollbackBalance()
		return coreerrors.New(coreerrors.CodeTokenAmountOverflow, "transfer-in amount exceeds uint256 range")
	}
	pool := market.Pool(isLong)
	rollbackPool := addUint256(pool.PrimaryPool, amount256)
	if err := m.vaultBalancePut(market.StoreID, token, balance); err != nil {
		rollbackPool()
		rollbackBalance()
		return err
	}
	if err := m.MarketPut(market); err != nil {
		rollbackPool()
		rollbackBalance()
		return err
	}
	return nil
}
