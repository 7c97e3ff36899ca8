package store

import "github.com/rubinvalidator/tss-core/crypto"

// Category tags, ASCII underscore-padded to 8 bytes (spec §6, on-disk keys).
const (
	categoryKeyShare   = "key_____"
	categoryCheckpoint = "check___"
)

// dataKey builds a data-bucket key: 8-byte category, 2-byte chain tag, then
// payload (the key id bytes, or nothing for the single-entry-per-tag
// checkpoint category). A fixed-length prefix (category+tag) is what the
// key-share prefix scan seeks on (spec §4.1).
func dataKey(category string, tag crypto.ChainTag, payload []byte) []byte {
	out := make([]byte, 0, 10+len(payload))
	out = append(out, []byte(category)...)
	out = append(out, tag[0], tag[1])
	out = append(out, payload...)
	return out
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
