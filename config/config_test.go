package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultWithKeeperKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":6001", cfg.ListenAddress)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.NotEmpty(t, cfg.KeeperKey)

	keyBytes, err := hex.DecodeString(cfg.KeeperKey)
	require.NoError(t, err)
	require.Len(t, keyBytes, 32)

	require.NoError(t, ValidateConfig(cfg.Global))
}

func TestLoadIsIdempotentAcrossReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	first, err := Load(path)
	require.NoError(t, err)

	second, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, first.KeeperKey, second.KeeperKey)
	require.Equal(t, first.Global, second.Global)
}

func TestLoadBackfillsMissingKeeperKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := createDefault(path)
	require.NoError(t, err)
	cfg.KeeperKey = ""

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(cfg))
	require.NoError(t, f.Close())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, reloaded.KeeperKey)
}

func TestValidateConfigRejectsInvertedAdlThresholds(t *testing.T) {
	g := Global{
		RequestExpiration: RequestExpiration{Seconds: 300},
		Claimable:         ClaimableWindow{WindowSeconds: 3600, PerUserCapBps: 10_000},
		MarketDefaults: MarketDefaults{
			ReserveFactorBps: 9_500,
			ADL: ADLDefaults{
				MaxPnlFactorForAdl:   1_000,
				MinPnlFactorAfterAdl: 2_000,
			},
		},
		Oracle: Oracle{MaxPriceAgeSeconds: 60, MaxAdlPriceAgeSeconds: 30},
	}
	require.Error(t, ValidateConfig(g))
}

func TestValidateConfigRejectsShortRequestExpiration(t *testing.T) {
	g := Global{
		RequestExpiration: RequestExpiration{Seconds: 1},
		Claimable:         ClaimableWindow{WindowSeconds: 3600, PerUserCapBps: 10_000},
		MarketDefaults: MarketDefaults{
			ReserveFactorBps: 9_500,
			ADL:              ADLDefaults{MaxPnlFactorForAdl: 6_000, MinPnlFactorAfterAdl: 3_000},
		},
		Oracle: Oracle{MaxPriceAgeSeconds: 60, MaxAdlPriceAgeSeconds: 30},
	}
	require.Error(t, ValidateConfig(g))
}

func TestKeeperPrivateKeyRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	key, err := cfg.KeeperPrivateKey()
	require.NoError(t, err)
	require.Equal(t, cfg.KeeperKey, hex.EncodeToString(key.Bytes()))
}
