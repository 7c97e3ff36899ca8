package crypto

import (
	"encoding/binary"
	"fmt"
)

// ChainTag is a fixed-width 2-byte marker distinguishing which foreign chain
// a key or checkpoint pertains to. Tags are disjoint; adding a chain reserves
// a new tag forever (spec §3).
type ChainTag [2]byte

var (
	ChainTagSecp256k1Devnet = ChainTag{0x00, 0x01}
	ChainTagBLS12381Devnet  = ChainTag{0x00, 0x02}
)

func (t ChainTag) String() string {
	return fmt.Sprintf("%02x%02x", t[0], t[1])
}

// KeyID is the pair (epoch index, public-key bytes) identifying a key share
// (spec §3). It encodes as the 4-byte big-endian epoch concatenated with the
// compressed group-element bytes; this encoding is stable and used both as
// the on-disk index and the wire identifier.
type KeyID struct {
	Epoch     uint32
	PublicKey []byte // compressed group element, scheme-specific length
}

// Encode returns the stable on-disk/wire encoding of the key id.
func (k KeyID) Encode() []byte {
	out := make([]byte, 4+len(k.PublicKey))
	binary.BigEndian.PutUint32(out[0:4], k.Epoch)
	copy(out[4:], k.PublicKey)
	return out
}

// DecodeKeyID parses the encoding produced by Encode.
func DecodeKeyID(b []byte) (KeyID, error) {
	if len(b) < 4 {
		return KeyID{}, fmt.Errorf("keyid: truncated (%d bytes)", len(b))
	}
	epoch := binary.BigEndian.Uint32(b[0:4])
	pub := append([]byte(nil), b[4:]...)
	return KeyID{Epoch: epoch, PublicKey: pub}, nil
}

func (k KeyID) Equal(o KeyID) bool {
	if k.Epoch != o.Epoch || len(k.PublicKey) != len(o.PublicKey) {
		return false
	}
	for i := range k.PublicKey {
		if k.PublicKey[i] != o.PublicKey[i] {
			return false
		}
	}
	return true
}
