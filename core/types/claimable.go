package types

import "math/big"

// Claimable is identified by (Store, Mint, Beneficiary, TimeWindowKey); see
// a time-window bucket. It holds tokens that could not be paid out
// immediately because a per-window cap was reached.
type Claimable struct {
	StoreID       string
	Mint          string
	Beneficiary   string
	TimeWindowKey uint64 // bucket timestamp derived from the claimable-time-window

	Amount *big.Int

	CreatedAt int64
	UpdatedAt int64

	Closed bool
}

// IsEmpty reports whether the account has been fully drained, matching the
// "closed when drained" lifecycle rule.
func (c *Claimable) IsEmpty() bool {
	return c.Amount == nil || c.Amount.Sign() == 0
}

// Clone deep-copies the claimable account for staged mutation.
func (c *Claimable) Clone() *Claimable {
	out := *c
	if c.Amount != nil {
		out.Amount = new(big.Int).Set(c.Amount)
	} else {
		out.Amount = big.NewInt(0)
	}
	return &out
}
