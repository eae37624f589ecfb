// Package tradeevent implements the Trade Event Buffer: a
// keeper-scoped, index-addressed, append-only ring written synchronously
// inside execution, so that a successful execute call implies the event
// was durably recorded. The ring is backed by a BoltDB bucket per keeper,
// and fans newly
// appended events out to live subscribers (e.g. an RPC websocket stream)
// over buffered channels.
package tradeevent

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"gmsolcore/core/events"
	"gmsolcore/core/types"
)

// ErrNotFound is returned when a requested index has no recorded event.
var ErrNotFound = errors.New("tradeevent: not found")

func keeperBucket(keeperID string) []byte {
	return []byte("tradeevent:" + keeperID)
}

func encodeIndex(index uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, index)
	return buf
}

// Buffer persists TradeEvents into a per-keeper append-only ring and
// notifies subscribers as they land.
type Buffer struct {
	db *bolt.DB

	mu          sync.Mutex
	subscribers map[string][]chan types.TradeEvent
	emitter     events.Emitter
}

// Open initializes (and migrates) the BoltDB-backed trade event buffer.
func Open(path string, emitter events.Emitter) (*Buffer, error) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Buffer{db: db, subscribers: make(map[string][]chan types.TradeEvent), emitter: emitter}, nil
}

// Close releases the underlying Bolt database handle.
func (b *Buffer) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// NextIndex returns the next monotone index for keeperID without reserving
// it; the caller supplies the value it commits with Append.
func (b *Buffer) NextIndex(keeperID string) (uint64, error) {
	var next uint64
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(keeperBucket(keeperID))
		if bucket == nil {
			next = 0
			return nil
		}
		cursor := bucket.Cursor()
		key, _ := cursor.Last()
		if key == nil {
			next = 0
			return nil
		}
		next = binary.BigEndian.Uint64(key) + 1
		return nil
	})
	return next, err
}

// Append records ev at ev.Index within ev.KeeperID's ring, synchronously
// with the caller's own transaction commit, so success of the execute
// call implies the event was recorded. It then emits TradeRecorded and fans the
// event out to any live subscribers for that keeper.
func (b *Buffer) Append(ev types.TradeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(keeperBucket(ev.KeeperID))
		if err != nil {
			return err
		}
		return bucket.Put(encodeIndex(ev.Index), payload)
	})
	if err != nil {
		return err
	}

	b.emitter.Emit(events.TradeRecorded{
		KeeperID: ev.KeeperID,
		Index:    ev.Index,
		StoreID:  ev.StoreID,
		OrderID:  ev.OrderID,
		Kind:     ev.OrderKind,
	})
	b.broadcast(ev)
	return nil
}

// Get loads the event at index within keeperID's ring.
func (b *Buffer) Get(keeperID string, index uint64) (types.TradeEvent, error) {
	var out types.TradeEvent
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(keeperBucket(keeperID))
		if bucket == nil {
			return ErrNotFound
		}
		raw := bucket.Get(encodeIndex(index))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &out)
	})
	return out, err
}

// Range loads events for keeperID in [fromIndex, fromIndex+limit), stopping
// early if the ring is exhausted. Used to serve a subscriber's backlog
// before switching it to live fan-out.
func (b *Buffer) Range(keeperID string, fromIndex uint64, limit int) ([]types.TradeEvent, error) {
	var out []types.TradeEvent
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(keeperBucket(keeperID))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for key, raw := cursor.Seek(encodeIndex(fromIndex)); key != nil && len(out) < limit; key, raw = cursor.Next() {
			var ev types.TradeEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

// Subscribe returns a channel that receives every TradeEvent appended for
// keeperID from this point on, and an unsubscribe func the caller must
// invoke when done (e.g. when the websocket connection closes).
func (b *Buffer) Subscribe(keeperID string) (<-chan types.TradeEvent, func()) {
	ch := make(chan types.TradeEvent, 64)
	b.mu.Lock()
	b.subscribers[keeperID] = append(b.subscribers[keeperID], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[keeperID]
		for i, existing := range subs {
			if existing == ch {
				b.subscribers[keeperID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
	return ch, unsubscribe
}

func (b *Buffer) broadcast(ev types.TradeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[ev.KeeperID] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than block execution on a
			// websocket write.
		}
	}
}
