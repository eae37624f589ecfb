// Package state backs every CORE record (Market, Position, Order, Action,
// Claimable, Vault) with a keccak256-keyed, RLP-encoded entry in a
// deterministic Merkle trie, the same storage idiom used for every
// native-module record.
package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"gmsolcore/storage/trie"
)

// Manager is the read/write façade over one trie snapshot. A Revertible
// Market Overlay (native/revertible) stages cloned markets on top of a
// Manager and writes them back through MarketPut on Commit.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// Trie exposes the underlying trie, e.g. for Hash/Commit.
func (m *Manager) Trie() *trie.Trie {
	if m == nil {
		return nil
	}
	return m.trie
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP
// encoding. The key is hashed with keccak256 to match the underlying trie.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.trie.Update(kvKey(key), nil)
}

// KVGet retrieves the value stored under the supplied key and decodes it
// into the provided destination. The boolean return indicates presence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) loadBigInt(key []byte) (*big.Int, error) {
	data, err := m.trie.Get(key)
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

func (m *Manager) writeBigInt(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative value not allowed")
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.trie.Update(key, encoded)
}

// ErrInsufficientBalance is returned by MustSubBalance when the requested
// amount exceeds the current balance.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

// MustSubBalance subtracts amount from balance in place and returns a
// rollback closure that restores the prior value, matching the
// credit/debit-with-rollback pattern the Claimable Scheduler and vault
// transfers build on.
func MustSubBalance(balance *big.Int, amount *big.Int) (func(), error) {
	if balance == nil || amount == nil {
		return nil, fmt.Errorf("state: nil balance or amount")
	}
	if balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	prior := new(big.Int).Set(balance)
	balance.Sub(balance, amount)
	return func() { balance.Set(prior) }, nil
}

// MustAddBalance adds amount to balance in place and returns a rollback
// closure that restores the prior value.
func MustAddBalance(balance *big.Int, amount *big.Int) (func(), error) {
	if balance == nil || amount == nil {
		return nil, fmt.Errorf("state: nil balance or amount")
	}
	prior := new(big.Int).Set(balance)
	balance.Add(balance, amount)
	return func() { balance.Set(prior) }, nil
}
