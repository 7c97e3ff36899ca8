// Package store implements the validator's persistent key store: an
// embedded bbolt database holding key-share records, checkpoint records, and
// schema/genesis metadata (spec §4.1). bbolt has no native column-family
// prefix extractor the way RocksDB does; the store maps the spec's "columns"
// onto two top-level buckets ("metadata", "data") and its "prefix extractor"
// onto bbolt's documented Cursor.Seek(prefix) range-scan idiom.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/rubinvalidator/tss-core/internal/logx"
)

const (
	bucketMetadata = "metadata"
	bucketData     = "data"

	// dbFileName is the bbolt file inside the db_root directory (spec §6:
	// "<db_root>/ contains the database files").
	dbFileName = "keyshares.db"
)

// DB wraps an open bbolt database holding one validator's key shares and
// checkpoints, grounded on the teacher's node/store/db.go DB wrapper. root
// is the db_root directory spec §6 defines backup paths relative to.
type DB struct {
	bolt *bolt.DB
	root string
}

// Open opens or creates the key store rooted at dbRoot, creating the
// metadata/data buckets on first use and running any pending schema
// migration up to CurrentSchemaVersion (spec §4.1, open-or-create).
func Open(dbRoot string, genesisHash []byte) (*DB, error) {
	return OpenWithTarget(dbRoot, genesisHash, CurrentSchemaVersion)
}

// OpenWithTarget is Open with an explicit target schema version. The target
// is configurable only for migration tests (spec §6,
// schema_target_version: test only); production callers use Open.
func OpenWithTarget(dbRoot string, genesisHash []byte, target uint32) (*DB, error) {
	_, statErr := os.Stat(dbRoot)
	isNew := os.IsNotExist(statErr)

	if err := os.MkdirAll(dbRoot, 0o700); err != nil {
		return nil, fmt.Errorf("store: creating db root %s: %w", dbRoot, err)
	}

	dbFile := filepath.Join(dbRoot, dbFileName)
	b, err := bolt.Open(dbFile, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", dbFile, err)
	}
	db := &DB{bolt: b, root: dbRoot}

	err = db.bolt.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketMetadata)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketData)); err != nil {
			return err
		}
		if isNew {
			var buf [4]byte
			// explicit per spec §4.1: a freshly created store's schema
			// version is written as 0 in the same batch as the bucket
			// creation, even though an absent key already defaults to 0.
			return tx.Bucket([]byte(bucketMetadata)).Put([]byte(keySchemaVersion), buf[:])
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("store: initializing buckets: %w", err)
	}

	if err := db.checkOrSetGenesisHash(genesisHash); err != nil {
		b.Close()
		return nil, err
	}

	if err := db.migrateTo(target, isNew); err != nil {
		b.Close()
		return nil, err
	}

	loaded, err := db.loadedShareCounts()
	if err != nil {
		b.Close()
		return nil, err
	}
	version, _ := db.SchemaVersion()
	logx.Printf("store: opened %s at schema version %d", dbRoot, version)
	for tag, n := range loaded {
		logx.Printf("store: loaded %d key share(s) for chain tag %s", n, tag)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.bolt.Close()
}

// Root returns the db_root directory this store was opened from.
func (db *DB) Root() string { return db.root }
