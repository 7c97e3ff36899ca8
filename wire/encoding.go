// Package wire implements the stable binary encodings shared by the key
// store and the peer-message transport: a KeyShareRecord or CheckpointRecord
// encodes to the exact same bytes whether it is being written to disk or
// placed on the wire (spec §6, external interfaces).
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/rubinvalidator/tss-core/crypto"
)

// KeyShareRecord is this validator's persisted share of a threshold key:
// its own secret share, the joint group public key, and the participant set
// needed to reconstruct party indices and Lagrange coefficients on a later
// signing ceremony (spec §3, §4.1).
type KeyShareRecord struct {
	KeyID          crypto.KeyID
	ChainTag       crypto.ChainTag
	Threshold      uint16
	Participants   []crypto.Account
	OwnIndex       uint16   // 1-based party index of this validator
	Commitments    [][]byte // aggregated Feldman commitments, len = Threshold+1
	SecretShare    []byte
	GroupPublicKey []byte
	CreatedAtUnix  int64
}

// CheckpointRecord is the furthest point a foreign-chain witnesser has
// durably processed to, for one chain tag: the last witnessed block and the
// last witnessed event index within that block (spec §3). The pair is
// monotonic — successive writes for a tag never decrease it.
type CheckpointRecord struct {
	ChainTag      crypto.ChainTag
	Block         uint64
	EventIndex    uint64
	WitnessedUnix int64
}

// Less reports whether r is strictly behind o in (block, event index) order,
// the ordering checkpoint monotonicity is defined over (spec §3, §8).
func (r CheckpointRecord) Less(o CheckpointRecord) bool {
	if r.Block != o.Block {
		return r.Block < o.Block
	}
	return r.EventIndex < o.EventIndex
}

func putBytes(buf []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, b...)
	return buf
}

func takeBytes(b []byte) (out []byte, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("wire: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return nil, nil, fmt.Errorf("wire: truncated field: want %d bytes, have %d", n, len(b))
	}
	out = append([]byte(nil), b[:n]...)
	return out, b[n:], nil
}

// EncodeKeyShareRecord produces the stable field-ordered encoding of r.
func EncodeKeyShareRecord(r KeyShareRecord) []byte {
	var buf []byte
	buf = putBytes(buf, r.KeyID.Encode())
	buf = append(buf, r.ChainTag[0], r.ChainTag[1])
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], r.Threshold)
	buf = append(buf, u16[:]...)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(r.Participants)))
	buf = append(buf, countBuf[:]...)
	for _, a := range r.Participants {
		buf = append(buf, a[:]...)
	}

	binary.BigEndian.PutUint16(u16[:], r.OwnIndex)
	buf = append(buf, u16[:]...)

	binary.BigEndian.PutUint32(countBuf[:], uint32(len(r.Commitments)))
	buf = append(buf, countBuf[:]...)
	for _, c := range r.Commitments {
		buf = putBytes(buf, c)
	}

	buf = putBytes(buf, r.SecretShare)
	buf = putBytes(buf, r.GroupPublicKey)

	var i64 [8]byte
	binary.BigEndian.PutUint64(i64[:], uint64(r.CreatedAtUnix))
	buf = append(buf, i64[:]...)
	return buf
}

// DecodeKeyShareRecord parses the encoding produced by EncodeKeyShareRecord,
// rejecting both truncated input and any trailing bytes past the last field.
func DecodeKeyShareRecord(b []byte) (KeyShareRecord, error) {
	var r KeyShareRecord

	keyIDBytes, rest, err := takeBytes(b)
	if err != nil {
		return KeyShareRecord{}, fmt.Errorf("wire: key id: %w", err)
	}
	b = rest
	r.KeyID, err = crypto.DecodeKeyID(keyIDBytes)
	if err != nil {
		return KeyShareRecord{}, fmt.Errorf("wire: key id: %w", err)
	}

	if len(b) < 2 {
		return KeyShareRecord{}, fmt.Errorf("wire: truncated chain tag")
	}
	r.ChainTag = crypto.ChainTag{b[0], b[1]}
	b = b[2:]

	if len(b) < 2 {
		return KeyShareRecord{}, fmt.Errorf("wire: truncated threshold")
	}
	r.Threshold = binary.BigEndian.Uint16(b[:2])
	b = b[2:]

	if len(b) < 4 {
		return KeyShareRecord{}, fmt.Errorf("wire: truncated participant count")
	}
	count := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(count)*32 {
		return KeyShareRecord{}, fmt.Errorf("wire: truncated participant list")
	}
	r.Participants = make([]crypto.Account, count)
	for i := uint32(0); i < count; i++ {
		copy(r.Participants[i][:], b[:32])
		b = b[32:]
	}

	if len(b) < 2 {
		return KeyShareRecord{}, fmt.Errorf("wire: truncated own index")
	}
	r.OwnIndex = binary.BigEndian.Uint16(b[:2])
	b = b[2:]

	if len(b) < 4 {
		return KeyShareRecord{}, fmt.Errorf("wire: truncated commitment count")
	}
	commitmentCount := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	r.Commitments = make([][]byte, 0, commitmentCount)
	for i := uint32(0); i < commitmentCount; i++ {
		var c []byte
		c, b, err = takeBytes(b)
		if err != nil {
			return KeyShareRecord{}, fmt.Errorf("wire: commitment %d: %w", i, err)
		}
		r.Commitments = append(r.Commitments, c)
	}

	r.SecretShare, b, err = takeBytes(b)
	if err != nil {
		return KeyShareRecord{}, fmt.Errorf("wire: secret share: %w", err)
	}
	r.GroupPublicKey, b, err = takeBytes(b)
	if err != nil {
		return KeyShareRecord{}, fmt.Errorf("wire: group public key: %w", err)
	}

	if len(b) < 8 {
		return KeyShareRecord{}, fmt.Errorf("wire: truncated created_at")
	}
	r.CreatedAtUnix = int64(binary.BigEndian.Uint64(b[:8]))
	b = b[8:]

	if len(b) != 0 {
		return KeyShareRecord{}, fmt.Errorf("wire: %d trailing bytes after key share record", len(b))
	}
	return r, nil
}

// EncodeCheckpointRecord produces the stable field-ordered encoding of r.
func EncodeCheckpointRecord(r CheckpointRecord) []byte {
	var buf []byte
	buf = append(buf, r.ChainTag[0], r.ChainTag[1])
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], r.Block)
	buf = append(buf, u64[:]...)
	binary.BigEndian.PutUint64(u64[:], r.EventIndex)
	buf = append(buf, u64[:]...)
	binary.BigEndian.PutUint64(u64[:], uint64(r.WitnessedUnix))
	buf = append(buf, u64[:]...)
	return buf
}

// DecodeCheckpointRecord parses the encoding produced by EncodeCheckpointRecord.
func DecodeCheckpointRecord(b []byte) (CheckpointRecord, error) {
	var r CheckpointRecord
	if len(b) < 2 {
		return CheckpointRecord{}, fmt.Errorf("wire: truncated chain tag")
	}
	r.ChainTag = crypto.ChainTag{b[0], b[1]}
	b = b[2:]

	if len(b) < 24 {
		return CheckpointRecord{}, fmt.Errorf("wire: truncated checkpoint body")
	}
	r.Block = binary.BigEndian.Uint64(b[:8])
	b = b[8:]
	r.EventIndex = binary.BigEndian.Uint64(b[:8])
	b = b[8:]
	r.WitnessedUnix = int64(binary.BigEndian.Uint64(b[:8]))
	b = b[8:]

	if len(b) != 0 {
		return CheckpointRecord{}, fmt.Errorf("wire: %d trailing bytes after checkpoint record", len(b))
	}
	return r, nil
}
