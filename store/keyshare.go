package store

import (
	bolt "go.etcd.io/bbolt"

	"github.com/rubinvalidator/tss-core/crypto"
	"github.com/rubinvalidator/tss-core/internal/logx"
	"github.com/rubinvalidator/tss-core/wire"
)

// PutKeyShare writes r under key_____ || chain_tag || encoded(key id) in a
// single atomic write (spec §4.1). This is a runtime write: a failure here
// is fatal to the node (spec §7) because we refuse to run with a key share
// the caller believes is durable but isn't.
func (db *DB) PutKeyShare(r wire.KeyShareRecord) error {
	key := dataKey(categoryKeyShare, r.ChainTag, r.KeyID.Encode())
	value := wire.EncodeKeyShareRecord(r)
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketData)).Put(key, value)
	})
	if err != nil {
		return &FatalError{Op: "put-key-share", Err: err}
	}
	return nil
}

// LoadKeySharesForChainTag prefix-scans the key-share category for tag.
// Entries that fail to decode are logged and skipped; the remaining entries
// load normally (spec §4.1, §7).
func (db *DB) LoadKeySharesForChainTag(tag crypto.ChainTag) ([]wire.KeyShareRecord, error) {
	prefix := dataKey(categoryKeyShare, tag, nil)
	var out []wire.KeyShareRecord
	err := db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketData)).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			rec, err := wire.DecodeKeyShareRecord(v)
			if err != nil {
				logx.Printf("store: skipping undecodable key share at %x: %v", k, err)
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// loadedShareCounts tallies key-share entries by chain tag across the whole
// key-share category, for the startup log (spec §7: "logs ... the count of
// loaded shares per chain tag").
func (db *DB) loadedShareCounts() (map[crypto.ChainTag]int, error) {
	prefix := []byte(categoryKeyShare)
	counts := make(map[crypto.ChainTag]int)
	err := db.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketData)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			if len(k) < 10 {
				continue
			}
			var tag crypto.ChainTag
			tag[0], tag[1] = k[8], k[9]
			counts[tag]++
		}
		return nil
	})
	return counts, err
}
