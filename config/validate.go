package config

import "fmt"

// MinRequestExpirationSeconds is the smallest oracle-staleness window the
// engine will accept for market-kind orders; anything shorter would cancel
// every order before a keeper could plausibly fetch a fresh oracle snapshot.
var MinRequestExpirationSeconds = int64(5)

// ValidateConfig rejects a Global whose knobs would violate / invariants
// before it is ever handed to a keeper.
func ValidateConfig(g Global) error {
	if g.RequestExpiration.Seconds < MinRequestExpirationSeconds {
		return fmt.Errorf("request_expiration: seconds too small, must be >= %d", MinRequestExpirationSeconds)
	}
	if g.Claimable.WindowSeconds <= 0 {
		return fmt.Errorf("claimable: window_seconds <= 0")
	}
	if g.Claimable.PerUserCapBps == 0 || g.Claimable.PerUserCapBps > 10_000 {
		return fmt.Errorf("claimable: per_user_cap_bps out of range (0, 10000]")
	}
	if g.MarketDefaults.ADL.MaxPnlFactorForAdl <= g.MarketDefaults.ADL.MinPnlFactorAfterAdl {
		return fmt.Errorf("market_defaults.adl: max_pnl_factor_for_adl must exceed min_pnl_factor_after_adl")
	}
	if g.MarketDefaults.ReserveFactorBps == 0 || g.MarketDefaults.ReserveFactorBps > 10_000 {
		return fmt.Errorf("market_defaults: reserve_factor_bps out of range (0, 10000]")
	}
	if g.Oracle.MaxPriceAgeSeconds <= 0 {
		return fmt.Errorf("oracle: max_price_age_seconds <= 0")
	}
	if g.Oracle.MaxAdlPriceAgeSeconds <= 0 || g.Oracle.MaxAdlPriceAgeSeconds > g.Oracle.MaxPriceAgeSeconds {
		return fmt.Errorf("oracle: max_adl_price_age_seconds must be positive and <= max_price_age_seconds")
	}
	return nil
}
