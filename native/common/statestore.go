package common

import (
	"encoding/hex"
)

// kvStore is the part of core/state.Manager a StateStore needs; naming it
// here keeps this package free of a core/state import, which imports it.
type kvStore interface {
	KVPut(key []byte, value interface{}) error
	KVGet(key []byte, out interface{}) (bool, error)
}

// StateStore persists quota counters as ordinary RLP-encoded trie entries
// via core/state.Manager's generic KVPut/KVGet, the same keccak256-keyed
// storage every other CORE record uses. It is the concrete Store the
// claimable payout cap (native/order's applyClaimableCap)
// reaches for when a real daemon wires native/order.ExecuteParams.QuotaStore
// rather than leaving it nil (the uncapped default).
type StateStore struct {
	manager kvStore
}

// NewStateStore wraps manager as a common.Store.
func NewStateStore(manager kvStore) *StateStore {
	return &StateStore{manager: manager}
}

func quotaKey(module string, epoch uint64, addr []byte) []byte {
	key := []byte("quota/" + module + "/")
	key = append(key, []byte{
		byte(epoch >> 56), byte(epoch >> 48), byte(epoch >> 40), byte(epoch >> 32),
		byte(epoch >> 24), byte(epoch >> 16), byte(epoch >> 8), byte(epoch),
	}...)
	key = append(key, '/')
	key = append(key, []byte(hex.EncodeToString(addr))...)
	return key
}

// Load implements Store.
func (s *StateStore) Load(module string, epoch uint64, addr []byte) (QuotaNow, bool, error) {
	var out QuotaNow
	found, err := s.manager.KVGet(quotaKey(module, epoch, addr), &out)
	if err != nil {
		return QuotaNow{}, false, err
	}
	return out, found, nil
}

// Save implements Store.
func (s *StateStore) Save(module string, epoch uint64, addr []byte, counters QuotaNow) error {
	return s.manager.KVPut(quotaKey(module, epoch, addr), counters)
}
