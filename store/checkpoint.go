package store

import (
	bolt "go.etcd.io/bbolt"

	"github.com/rubinvalidator/tss-core/crypto"
	"github.com/rubinvalidator/tss-core/wire"
)

// PutCheckpoint upserts the single checkpoint entry for tag (spec §4.1).
// Like PutKeyShare, a failure here is fatal to the node (spec §7).
func (db *DB) PutCheckpoint(tag crypto.ChainTag, r wire.CheckpointRecord) error {
	key := dataKey(categoryCheckpoint, tag, nil)
	value := wire.EncodeCheckpointRecord(r)
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketData)).Put(key, value)
	})
	if err != nil {
		return &FatalError{Op: "put-checkpoint", Err: err}
	}
	return nil
}

// GetCheckpoint returns the checkpoint stored for tag, or found=false if
// none has ever been written.
func (db *DB) GetCheckpoint(tag crypto.ChainTag) (rec wire.CheckpointRecord, found bool, err error) {
	key := dataKey(categoryCheckpoint, tag, nil)
	err = db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketData)).Get(key)
		if v == nil {
			return nil
		}
		found = true
		var decErr error
		rec, decErr = wire.DecodeCheckpointRecord(v)
		return decErr
	})
	return rec, found, err
}
