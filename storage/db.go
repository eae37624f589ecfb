package storage

import (
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/triedb"
)

// Database is the key-value store every trie.Trie is built on. It embeds
// go-ethereum's ethdb.Database so the same handle can back both raw KV
// lookups (claimable/vault balances) and the Merkle trie (TrieDB) behind
// a single handle.
type Database interface {
	ethdb.Database
	// TrieDB returns the shared triedb.Database used to open/commit tries
	// against this handle.
	TrieDB() *triedb.Database
}

type trieBacked struct {
	ethdb.Database
	trieDB *triedb.Database
}

func (d *trieBacked) TrieDB() *triedb.Database { return d.trieDB }

// NewMemDB returns an in-memory database, used by tests.
func NewMemDB() Database {
	backing := rawdb.NewMemoryDatabase()
	return &trieBacked{
		Database: backing,
		trieDB:   triedb.NewDatabase(backing, triedb.HashDefaults),
	}
}

// NewLevelDB opens (or creates) a LevelDB-backed database at path.
func NewLevelDB(path string) (Database, error) {
	backing, err := rawdb.NewLevelDBDatabase(path, 256, 64, "gmsolcore/db/", false)
	if err != nil {
		return nil, err
	}
	return &trieBacked{
		Database: backing,
		trieDB:   triedb.NewDatabase(backing, triedb.HashDefaults),
	}, nil
}
