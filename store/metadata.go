package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultSchemaVersion is what an absent schema_version key means: a
	// store created before schema versioning existed (persistent.rs:
	// DEFAULT_DB_SCHEMA_VERSION).
	DefaultSchemaVersion uint32 = 0

	// CurrentSchemaVersion is the schema this binary writes and expects.
	CurrentSchemaVersion uint32 = 1

	// keySchemaVersion and keyGenesisHash are byte-exact per spec §6:
	// metadata.db_schema_version and metadata.genesis_hash.
	keySchemaVersion = "db_schema_version"
	keyGenesisHash   = "genesis_hash"
)

// SchemaVersion returns the store's recorded schema version, or
// DefaultSchemaVersion if the store predates schema versioning.
func (db *DB) SchemaVersion() (uint32, error) {
	var version uint32
	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMetadata))
		v := b.Get([]byte(keySchemaVersion))
		if v == nil {
			version = DefaultSchemaVersion
			return nil
		}
		if len(v) != 4 {
			return fmt.Errorf("store: corrupt schema_version value (%d bytes)", len(v))
		}
		version = binary.BigEndian.Uint32(v)
		return nil
	})
	return version, err
}

// checkOrSetGenesisHash pins the store to a genesis hash on first use and
// rejects reopening it against a different one (spec §4.1, §8: genesis
// mismatch is a fatal error, never a silent overwrite). If the caller
// supplies no hash, an already-pinned store is trusted as-is (spec §9, open
// question: "trust the store").
func (db *DB) checkOrSetGenesisHash(genesisHash []byte) error {
	if genesisHash == nil {
		return nil
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMetadata))
		existing := b.Get([]byte(keyGenesisHash))
		if existing == nil {
			return b.Put([]byte(keyGenesisHash), genesisHash)
		}
		if !bytes.Equal(existing, genesisHash) {
			return &FatalError{
				Op:  "open",
				Err: fmt.Errorf("store: genesis hash mismatch: store pinned to %x, asked to open with %x", existing, genesisHash),
			}
		}
		return nil
	})
}

// GenesisHash returns the genesis hash this store is pinned to.
func (db *DB) GenesisHash() ([]byte, error) {
	var out []byte
	err := db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketMetadata))
		v := b.Get([]byte(keyGenesisHash))
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// FatalError marks a store operation that must abort the process rather
// than be retried or swallowed: genesis mismatch, a migration that cannot
// proceed, a backup that cannot be created, or a failed key-share or
// checkpoint write (spec §7).
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("store: fatal error during %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
