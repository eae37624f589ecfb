package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"gmsolcore/native/common"
)

func pauseKey(storeID, module string) []byte {
	return ethcrypto.Keccak256([]byte(fmt.Sprintf("%s%s:%s", pauseFlagPrefix, storeID, module)))
}

// PauseStore adapts *Manager to native/common.PauseView, scoped to a single
// store, backing the per-module pause flags SetModulePaused toggles. The
// Order/Action Create paths guard against it the same way they guard
// against QuotaStore for the claimable payout cap: a small *Manager
// adapter passed in as an interface, keyed into the same trie.
type PauseStore struct {
	Manager *Manager
	StoreID string
}

var _ common.PauseView = PauseStore{}

// IsPaused implements native/common.PauseView.
func (p PauseStore) IsPaused(module string) bool {
	if p.Manager == nil {
		return false
	}
	data, err := p.Manager.trie.Get(pauseKey(p.StoreID, module))
	if err != nil {
		return false
	}
	return len(data) > 0 && data[0] == 1
}

// SetModulePaused flips a module's pause flag for storeID. Clearing
// (paused false) removes the record rather than writing a zero byte.
func (m *Manager) SetModulePaused(storeID, module string, paused bool) error {
	key := pauseKey(storeID, module)
	if !paused {
		return m.trie.Update(key, nil)
	}
	return m.trie.Update(key, []byte{1})
}
