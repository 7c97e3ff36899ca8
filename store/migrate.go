package store

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/rubinvalidator/tss-core/internal/logx"
)

// migrateTo brings the store to schema version target, creating a backup
// first unless the store was freshly created by this Open call (spec
// §4.1). Each migration step writes its resulting schema version in the
// same batch as its data rewrites, so a crash mid-migration cannot leave
// the store between versions.
func (db *DB) migrateTo(target uint32, isNew bool) error {
	current, err := db.SchemaVersion()
	if err != nil {
		return &FatalError{Op: "migrate", Err: err}
	}
	if current == target {
		return nil
	}
	if current > target {
		return &FatalError{Op: "migrate", Err: fmt.Errorf(
			"stored schema version %d is ahead of target %d: downgrades are not supported", current, target)}
	}

	if !isNew {
		backupPath, err := db.createBackup(current)
		if err != nil {
			return &FatalError{Op: "migrate", Err: fmt.Errorf("creating pre-migration backup: %w", err)}
		}
		logx.Printf("store: created backup at %s before migrating v%d -> v%d", backupPath, current, target)
	}

	for step := current; step < target; step++ {
		apply, ok := migrationSteps[step]
		if !ok {
			return &FatalError{Op: "migrate", Err: fmt.Errorf("no migration registered for schema version %d -> %d", step, step+1)}
		}
		if err := db.bolt.Update(func(tx *bolt.Tx) error {
			if err := apply(tx); err != nil {
				return err
			}
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], step+1)
			return tx.Bucket([]byte(bucketMetadata)).Put([]byte(keySchemaVersion), buf[:])
		}); err != nil {
			return &FatalError{Op: "migrate", Err: fmt.Errorf("applying migration %d -> %d: %w", step, step+1, err)}
		}
	}
	return nil
}

// migrationSteps maps "from version" to the migration that advances the
// store by exactly one schema version.
var migrationSteps = map[uint32]func(tx *bolt.Tx) error{
	0: migrateV0ToV1,
}

// migrateV0ToV1 rewrites every v0 key-share entry — keyed by raw public-key
// bytes — under the v1 key-id encoding (epoch_index=0, public_key=old
// bytes), deleting the old key, all within the caller's single batch (spec
// §4.1, "Migration 0->1"). v0 never wrote entries in the v1 layout, so every
// entry currently under the key-share category is, by construction, in the
// old layout.
func migrateV0ToV1(tx *bolt.Tx) error {
	b := tx.Bucket([]byte(bucketData))
	c := b.Cursor()
	prefix := []byte(categoryKeyShare)

	type rewrite struct {
		oldKey []byte
		newKey []byte
		value  []byte
	}
	var rewrites []rewrite

	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if len(k) < 10 {
			continue
		}
		tagBytes := append([]byte(nil), k[8:10]...)
		oldPubKey := append([]byte(nil), k[10:]...)

		newPayload := make([]byte, 4+len(oldPubKey))
		copy(newPayload[4:], oldPubKey) // epoch_index = 0
		newKey := make([]byte, 0, 10+len(newPayload))
		newKey = append(newKey, prefix...)
		newKey = append(newKey, tagBytes...)
		newKey = append(newKey, newPayload...)

		rewrites = append(rewrites, rewrite{
			oldKey: append([]byte(nil), k...),
			newKey: newKey,
			value:  append([]byte(nil), v...),
		})
	}

	for _, r := range rewrites {
		if err := b.Delete(r.oldKey); err != nil {
			return err
		}
		if err := b.Put(r.newKey, r.value); err != nil {
			return err
		}
	}
	return nil
}
