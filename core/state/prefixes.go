package state

// Key prefixes for every record kind. Each is hashed with keccak256 at the
// point of use (see the per-record key builders), namespacing raw
// account/record keys before hitting the trie.
var (
	marketRecordPrefix    = []byte("market/record/")
	marketIDSeqPrefix     = []byte("market/order-seq/") // per-market monotone Order.ID source
	positionRecordPrefix  = []byte("position/record/")
	orderRecordPrefix     = []byte("order/record/")
	orderNoncePrefix      = []byte("order/nonce/") // per-owner next Order.Nonce
	actionRecordPrefix    = []byte("action/record/")
	actionNoncePrefix     = []byte("action/nonce/")
	claimableRecordPrefix = []byte("claimable/record/")
	vaultBalancePrefix    = []byte("vault/balance/")
	quotaCounterPrefix    = []byte("quota/counter/")
	pauseFlagPrefix       = []byte("pause/flag/")
)
