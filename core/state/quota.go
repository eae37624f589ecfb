package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"gmsolcore/native/common"
)

func quotaKey(module string, epoch uint64, addr []byte) []byte {
	buf := append([]byte(fmt.Sprintf("%s%s:%d:", quotaCounterPrefix, module, epoch)), addr...)
	return ethcrypto.Keccak256(buf)
}

type storedQuotaNow struct {
	ReqCount   uint32
	AmountUsed uint64
	EpochID    uint64
}

// QuotaStore adapts *Manager to native/common.Store, backing the per-
// address/per-epoch counters native/order's applyClaimableCap uses to track how much
// of a beneficiary's per-user-per-window claimable cap has already cleared
// immediately.
type QuotaStore struct {
	Manager *Manager
}

// Load implements native/common.Store.
func (q QuotaStore) Load(module string, epoch uint64, addr []byte) (common.QuotaNow, bool, error) {
	data, err := q.Manager.trie.Get(quotaKey(module, epoch, addr))
	if err != nil {
		return common.QuotaNow{}, false, err
	}
	if len(data) == 0 {
		return common.QuotaNow{}, false, nil
	}
	var stored storedQuotaNow
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return common.QuotaNow{}, false, err
	}
	return common.QuotaNow{ReqCount: stored.ReqCount, AmountUsed: stored.AmountUsed, EpochID: stored.EpochID}, true, nil
}

// Save implements native/common.Store.
func (q QuotaStore) Save(module string, epoch uint64, addr []byte, counters common.QuotaNow) error {
	stored := storedQuotaNow{ReqCount: counters.ReqCount, AmountUsed: counters.AmountUsed, EpochID: counters.EpochID}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return q.Manager.trie.Update(quotaKey(module, epoch, addr), encoded)
}
