package tradeevent

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gmsolcore/core/types"
)

func newTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradeevents.db")
	buf, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = buf.Close() })
	return buf
}

func sampleEvent(keeperID string, index uint64) types.TradeEvent {
	return types.TradeEvent{
		KeeperID:              keeperID,
		Index:                 index,
		StoreID:               "store-1",
		OrderID:               42,
		OrderKind:             types.OrderKindMarketIncrease,
		PositionID:            "pos-1",
		Before:                types.PositionSnapshot{SizeInUsd: big.NewInt(0), SizeInTokens: big.NewInt(0), CollateralAmount: big.NewInt(0)},
		After:                 types.PositionSnapshot{SizeInUsd: big.NewInt(10_000), SizeInTokens: big.NewInt(66), CollateralAmount: big.NewInt(1_000_000_000)},
		IndexTokenPrice:       big.NewInt(150),
		CollateralTokenPrice:  big.NewInt(1),
		SizeDeltaUsd:          big.NewInt(10_000),
		SizeDeltaInTokens:     big.NewInt(66),
		CollateralDeltaAmount: big.NewInt(1_000_000_000),
		PnlUsd:                big.NewInt(0),
		OrderFeeAmount:        big.NewInt(10),
		ExecutedAt:            time.Now().Unix(),
		ExecutedAtSlot:        1,
	}
}

func TestAppendGetRoundTrip(t *testing.T) {
	buf := newTestBuffer(t)
	ev := sampleEvent("keeper-1", 0)
	require.NoError(t, buf.Append(ev))

	loaded, err := buf.Get("keeper-1", 0)
	require.NoError(t, err)
	require.Equal(t, ev.OrderID, loaded.OrderID)
	require.True(t, ev.SizeDeltaUsd.Cmp(loaded.SizeDeltaUsd) == 0)
}

func TestNextIndexMonotone(t *testing.T) {
	buf := newTestBuffer(t)
	idx, err := buf.NextIndex("keeper-1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), idx)

	require.NoError(t, buf.Append(sampleEvent("keeper-1", idx)))

	idx, err = buf.NextIndex("keeper-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), idx)
}

func TestRangeReturnsOrderedEvents(t *testing.T) {
	buf := newTestBuffer(t)
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, buf.Append(sampleEvent("keeper-1", i)))
	}

	events, err := buf.Range("keeper-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(2), events[0].Index)
	require.Equal(t, uint64(3), events[1].Index)
}

func TestSubscribeReceivesLiveAppends(t *testing.T) {
	buf := newTestBuffer(t)
	ch, unsubscribe := buf.Subscribe("keeper-1")
	defer unsubscribe()

	require.NoError(t, buf.Append(sampleEvent("keeper-1", 0)))

	select {
	case ev := <-ch:
		require.Equal(t, uint64(0), ev.Index)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber fan-out")
	}
}

func TestGetMissingIndexReturnsNotFound(t *testing.T) {
	buf := newTestBuffer(t)
	_, err := buf.Get("keeper-1", 99)
	require.ErrorIs(t, err, ErrNotFound)
}
