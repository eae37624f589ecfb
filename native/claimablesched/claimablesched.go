// Package claimablesched implements the Claimable-Collateral Scheduler
//: deciding, for a single payout, how much clears immediately
// against the per-user-per-window cap and how much routes to the
// beneficiary's claimable bucket, plus the complementary holding-account
// share, then exposing use/close operations over those buckets.
package claimablesched

import (
	"math/big"

	"gmsolcore/core/state"
	"gmsolcore/core/types"
	"gmsolcore/native/common"
	"gmsolcore/observability"
)

// WindowKey buckets a timestamp into the store's claimable time window.
func WindowKey(now int64, windowSeconds uint32) uint64 {
	if windowSeconds == 0 {
		return uint64(now)
	}
	return uint64(now) / uint64(windowSeconds)
}

// PayoutSplit is the outcome of applying the per-window cap to one payout:
// Immediate clears through the normal transfer-out path, Deferred routes to
// the beneficiary's claimable bucket.
type PayoutSplit struct {
	Immediate *big.Int
	Deferred  *big.Int
}

// SplitPayout applies the per-user-per-window cap to a single payout
// amount, without mutating any state. used is
// the beneficiary's prior usage within the window; cap is the market's
// configured per-window ceiling (0 means uncapped).
func SplitPayout(used, cap uint64, amount *big.Int) PayoutSplit {
	if amount == nil || !amount.IsUint64() {
		// An amount that cannot be expressed as a uint64 cap comparison is
		// treated as uncapped; the per-window limit is itself a uint64
		// bound, so nothing beyond its own range needs deferring against it.
		return PayoutSplit{Immediate: amount, Deferred: big.NewInt(0)}
	}
	immediate, excess := common.Overflow(used, amount.Uint64(), cap)
	return PayoutSplit{
		Immediate: new(big.Int).SetUint64(immediate),
		Deferred:  new(big.Int).SetUint64(excess),
	}
}

// DeferToClaimable routes the deferred share of a payout into the
// beneficiary's claimable bucket for the current window.
// beneficiaryKind labels the metric only ("user" or "holding") and is
// never persisted: the claimable record itself is keyed by the full
// beneficiary address.
func DeferToClaimable(manager *state.Manager, storeID, mint, beneficiary string, now int64, windowSeconds uint32, amount *big.Int, beneficiaryKind string) (*types.Claimable, error) {
	if amount == nil || amount.Sign() == 0 {
		return manager.ClaimableGet(storeID, mint, beneficiary, WindowKey(now, windowSeconds), now)
	}
	observability.Engine().RecordClaimableDeferral(beneficiaryKind)
	return manager.ClaimableCredit(storeID, mint, beneficiary, WindowKey(now, windowSeconds), amount, now)
}

// UseClaimableAccount delegates exactly amount from the beneficiary's
// claimable bucket for the given timestamp's window to the caller (the
// engine's use_claimable_account(timestamp, amount) primitive), failing if
// the bucket holds less.
func UseClaimableAccount(manager *state.Manager, storeID, mint, beneficiary string, now int64, windowSeconds uint32, amount *big.Int) (*types.Claimable, error) {
	return manager.ClaimableDebit(storeID, mint, beneficiary, WindowKey(now, windowSeconds), amount, now)
}

// CloseEmptyClaimableAccount is a no-op observer: ClaimableDebit already
// closes the bucket once IsEmpty is true, so this simply reports whether
// the bucket at this window is closed or empty, for callers that want to
// confirm the close_empty_claimable_account(timestamp) postcondition.
func CloseEmptyClaimableAccount(manager *state.Manager, storeID, mint, beneficiary string, now int64, windowSeconds uint32) (bool, error) {
	claimable, err := manager.ClaimableGet(storeID, mint, beneficiary, WindowKey(now, windowSeconds), now)
	if err != nil {
		return false, err
	}
	return claimable.Closed || claimable.IsEmpty(), nil
}
