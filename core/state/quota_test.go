package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gmsolcore/native/common"
)

func TestQuotaStoreLoadMissingReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	store := QuotaStore{Manager: m}

	now, ok, err := store.Load("claimable", 7, []byte("owner-1"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, common.QuotaNow{}, now)
}

func TestQuotaStoreSaveThenLoadRoundTrips(t *testing.T) {
	m := newTestManager(t)
	store := QuotaStore{Manager: m}

	require.NoError(t, store.Save("claimable", 7, []byte("owner-1"), common.QuotaNow{
		ReqCount:   3,
		AmountUsed: 600_000_000,
		EpochID:    7,
	}))

	loaded, ok, err := store.Load("claimable", 7, []byte("owner-1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(3), loaded.ReqCount)
	require.Equal(t, uint64(600_000_000), loaded.AmountUsed)
	require.Equal(t, uint64(7), loaded.EpochID)
}

func TestQuotaStoreKeysAreIsolatedByModuleEpochAndAddress(t *testing.T) {
	m := newTestManager(t)
	store := QuotaStore{Manager: m}

	require.NoError(t, store.Save("claimable", 7, []byte("owner-1"), common.QuotaNow{AmountUsed: 100}))
	require.NoError(t, store.Save("claimable", 8, []byte("owner-1"), common.QuotaNow{AmountUsed: 200}))
	require.NoError(t, store.Save("claimable", 7, []byte("owner-2"), common.QuotaNow{AmountUsed: 300}))
	require.NoError(t, store.Save("other-module", 7, []byte("owner-1"), common.QuotaNow{AmountUsed: 400}))

	loaded, ok, err := store.Load("claimable", 7, []byte("owner-1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(100), loaded.AmountUsed)
}
