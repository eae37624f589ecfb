package config

import (
	"encoding/hex"
	"os"

	"github.com/BurntSushi/toml"

	"gmsolcore/crypto"
)

// Config is the keeper daemon's on-disk TOML configuration: listen/RPC
// addresses, the store this keeper serves, its own signing key (generated
// on first run via the same decode/check/regenerate/rewrite bootstrap as
// any other on-disk key file), and the store-wide Global policy knobs.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	RPCAddress    string `toml:"RPCAddress"`
	DataDir       string `toml:"DataDir"`
	StoreID       string `toml:"StoreID"`
	KeeperKey     string `toml:"KeeperKey"`

	Global Global `toml:"Global"`
}

// Load reads the configuration at path, creating a default one (with a
// freshly generated keeper key) if it does not yet exist, and backfilling a
// missing keeper key with the same decode, check, regenerate, rewrite
// sequence.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.KeeperKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.KeeperKey = hex.EncodeToString(key.Bytes())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}

	if err := ValidateConfig(cfg.Global); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault writes and returns a default configuration with sane,
// conservative Global defaults and a fresh keeper key.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress: ":6001",
		RPCAddress:    ":8080",
		DataDir:       "./gmsol-data",
		StoreID:       "default",
		KeeperKey:     hex.EncodeToString(key.Bytes()),
		Global: Global{
			RequestExpiration: RequestExpiration{Seconds: 300},
			Claimable: ClaimableWindow{
				WindowSeconds:  3600,
				PerUserCapBps:  10_000,
				HoldingAddress: "",
			},
			MarketDefaults: MarketDefaults{
				SwapFeeFactorBps:       5,
				PositionFeeFactorBps:   10,
				PositionImpactExponent: 2,
				ReserveFactorBps:       9_500,
				MaxPnlFactorForTraders: 9_000,
				MaxPnlFactorForDeposit: 9_000,
				ClaimablePayoutCapBps:  10_000,
				MinCollateralFactorBps: 100,
				ADL: ADLDefaults{
					MaxPnlFactorForAdl:   6_000,
					MinPnlFactorAfterAdl: 3_000,
				},
			},
			Oracle: Oracle{
				MaxPriceAgeSeconds:   60,
				MaxAdlPriceAgeSeconds: 30,
			},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// KeeperPrivateKey decodes the configured hex-encoded keeper signing key.
func (c *Config) KeeperPrivateKey() (*crypto.PrivateKey, error) {
	b, err := hex.DecodeString(c.KeeperKey)
	if err != nil {
		return nil, err
	}
	return crypto.PrivateKeyFromBytes(b)
}
