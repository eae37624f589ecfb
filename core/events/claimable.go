package events

import (
	"strconv"

	"gmsolcore/core/types"
)

const (
	TypeClaimableCreated = "claimable.created"
	TypeClaimableUsed    = "claimable.used"
	TypeClaimableClosed  = "claimable.closed"
)

// ClaimableCreated is emitted the first time a decrease routes excess payout
// into a new claimable account.
type ClaimableCreated struct {
	StoreID       string
	Mint          string
	Beneficiary   string
	TimeWindowKey uint64
	Amount        string
}

func (ClaimableCreated) EventType() string { return TypeClaimableCreated }

func (e ClaimableCreated) Event() *types.Event {
	return &types.Event{Type: TypeClaimableCreated, Attributes: map[string]string{
		"storeId":       e.StoreID,
		"mint":          e.Mint,
		"beneficiary":   e.Beneficiary,
		"timeWindowKey": strconv.FormatUint(e.TimeWindowKey, 10),
		"amount":        e.Amount,
	}}
}

// ClaimableUsed is emitted by use_claimable_account.
type ClaimableUsed struct {
	StoreID       string
	Mint          string
	Beneficiary   string
	TimeWindowKey uint64
	Amount        string
}

func (ClaimableUsed) EventType() string { return TypeClaimableUsed }

func (e ClaimableUsed) Event() *types.Event {
	return &types.Event{Type: TypeClaimableUsed, Attributes: map[string]string{
		"storeId":       e.StoreID,
		"mint":          e.Mint,
		"beneficiary":   e.Beneficiary,
		"timeWindowKey": strconv.FormatUint(e.TimeWindowKey, 10),
		"amount":        e.Amount,
	}}
}

// ClaimableClosed is emitted by close_empty_claimable_account.
type ClaimableClosed struct {
	StoreID       string
	Mint          string
	Beneficiary   string
	TimeWindowKey uint64
}

func (ClaimableClosed) EventType() string { return TypeClaimableClosed }

func (e ClaimableClosed) Event() *types.Event {
	return &types.Event{Type: TypeClaimableClosed, Attributes: map[string]string{
		"storeId":       e.StoreID,
		"mint":          e.Mint,
		"beneficiary":   e.Beneficiary,
		"timeWindowKey": strconv.FormatUint(e.TimeWindowKey, 10),
	}}
}
