package config

import (
	"fmt"
	"strings"

	"gmsolcore/core/types"
	"gmsolcore/crypto"
)

// NewMarketConfig materializes the types.MarketConfig a freshly created
// market inherits from this Global's MarketDefaults ("Market" attributes,
// "configuration factors"), the runtime counterpart of a
// Global.PaymasterLimits-style "parse the TOML knobs into a usable value"
// accessors.
func (g Global) NewMarketConfig() types.MarketConfig {
	d := g.MarketDefaults
	return types.MarketConfig{
		SwapFeeFactorBps:       d.SwapFeeFactorBps,
		PositionFeeFactorBps:   d.PositionFeeFactorBps,
		PositionImpactExponent: d.PositionImpactExponent,
		ReserveFactorBps:       d.ReserveFactorBps,
		MaxPnlFactorForTraders: d.MaxPnlFactorForTraders,
		MaxPnlFactorForAdl:     d.ADL.MaxPnlFactorForAdl,
		MinPnlFactorAfterAdl:   d.ADL.MinPnlFactorAfterAdl,
		MaxPnlFactorForDeposit: d.MaxPnlFactorForDeposit,
		ClaimablePayoutCapBps:  d.ClaimablePayoutCapBps,
		MinCollateralFactorBps: d.MinCollateralFactorBps,
	}
}

// RequestExpirationSeconds exposes the configured oracle-staleness bound
// used by native/order's Execute when gating market-kind orders.
func (g Global) RequestExpirationSeconds() int64 {
	return g.RequestExpiration.Seconds
}

// ClaimableWindowSeconds exposes the bucket width native/claimablesched's
// WindowKey uses to derive a claimable account's time-window key.
func (g Global) ClaimableWindowSeconds() int64 {
	return g.Claimable.WindowSeconds
}

// ClaimablePerUserCapBps exposes the configured per-user-per-window payout
// cap. Nothing in the module reads it: the cap a decrease applies is the
// market's MarketConfig.ClaimablePayoutCapBps, seeded from MarketDefaults.
func (g Global) ClaimablePerUserCapBps() uint32 {
	return g.Claimable.PerUserCapBps
}

// ClaimableHoldingAddress decodes the configured holding account that
// receives the capped share of a deferred payout, returning the zero
// Address (and ok=false) when none is configured.
func (g Global) ClaimableHoldingAddress() (crypto.Address, bool, error) {
	ref := strings.TrimSpace(g.Claimable.HoldingAddress)
	if ref == "" {
		return crypto.Address{}, false, nil
	}
	addr, err := crypto.DecodeAddress(ref)
	if err != nil {
		return crypto.Address{}, false, fmt.Errorf("invalid global.claimable.holding_address: %w", err)
	}
	return addr, true, nil
}

// MaxOraclePriceAgeSeconds bounds ordinary execution; MaxAdlOraclePriceAgeSeconds
// bounds the tighter window auto-deleveraging requires, enforced separately
// from the ordinary oracle-staleness gate.
func (g Global) MaxOraclePriceAgeSeconds() int64    { return g.Oracle.MaxPriceAgeSeconds }
func (g Global) MaxAdlOraclePriceAgeSeconds() int64 { return g.Oracle.MaxAdlPriceAgeSeconds }
