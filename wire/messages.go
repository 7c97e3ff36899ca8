package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/rubinvalidator/tss-core/crypto"
)

// CeremonyID names a single keygen or signing ceremony instance.
type CeremonyID [16]byte

// Kind discriminates the two ceremony families a PeerMessage can belong to.
type Kind uint8

const (
	KindKeygen  Kind = 1
	KindSigning Kind = 2
)

// Stage discriminates the protocol round a message belongs to within its
// Kind. Keygen uses stages 1 (hash-commitment broadcast) and 2 (reveal
// commitments + shares); signing uses stages 1 (commitment) and 2
// (response). Stage numbers are scoped to Kind, not global.
type Stage uint8

const (
	StageKeygenBroadcast Stage = 1
	StageKeygenReveal    Stage = 2

	StageSigningCommitment Stage = 1
	StageSigningResponse   Stage = 2
)

func (k Kind) validStage(s Stage) bool {
	switch k {
	case KindKeygen:
		return s == StageKeygenBroadcast || s == StageKeygenReveal
	case KindSigning:
		return s == StageSigningCommitment || s == StageSigningResponse
	default:
		return false
	}
}

// PeerMessage is the wire envelope carried between validators during a
// ceremony: which chain's scheme, which ceremony, which stage, and the
// stage's opaque payload (spec §6, external interfaces). keygen and signing
// own their own payload encodings; this envelope only validates the
// (Kind, Stage) discriminator pair and carries the bytes.
type PeerMessage struct {
	Kind       Kind
	ChainTag   crypto.ChainTag
	CeremonyID CeremonyID
	Stage      Stage
	Payload    []byte
}

// Encode produces the stable wire encoding of m. Fails only if m carries an
// invalid (Kind, Stage) pair, which callers must never construct.
func (m PeerMessage) Encode() ([]byte, error) {
	if !m.Kind.validStage(m.Stage) {
		return nil, fmt.Errorf("wire: stage %d is not valid for kind %d", m.Stage, m.Kind)
	}
	var buf []byte
	buf = append(buf, byte(m.Kind))
	buf = append(buf, m.ChainTag[0], m.ChainTag[1])
	buf = append(buf, m.CeremonyID[:]...)
	buf = append(buf, byte(m.Stage))
	buf = putBytes(buf, m.Payload)
	return buf, nil
}

// DecodePeerMessage parses the encoding produced by Encode, rejecting any
// (Kind, Stage) pair that does not name a real protocol round and any
// trailing bytes past the payload.
func DecodePeerMessage(b []byte) (PeerMessage, error) {
	if len(b) < 1+2+16+1 {
		return PeerMessage{}, fmt.Errorf("wire: truncated peer message header")
	}
	var m PeerMessage
	m.Kind = Kind(b[0])
	b = b[1:]
	m.ChainTag = crypto.ChainTag{b[0], b[1]}
	b = b[2:]
	copy(m.CeremonyID[:], b[:16])
	b = b[16:]
	m.Stage = Stage(b[0])
	b = b[1:]

	if !m.Kind.validStage(m.Stage) {
		return PeerMessage{}, fmt.Errorf("wire: stage %d is not valid for kind %d", m.Stage, m.Kind)
	}

	payload, rest, err := takeBytes(b)
	if err != nil {
		return PeerMessage{}, fmt.Errorf("wire: payload: %w", err)
	}
	if len(rest) != 0 {
		return PeerMessage{}, fmt.Errorf("wire: %d trailing bytes after peer message", len(rest))
	}
	m.Payload = payload
	return m, nil
}

// KeygenBroadcast is the stage-1 keygen payload: a hiding hash commitment to
// the sender's Feldman coefficient commitments, plus the sender's public
// constant term y_i = g^{a_{i,0}}. The coefficient commitments themselves
// stay hidden until stage 2 so no party can bias the group key after seeing
// the others' contributions (spec §4.4, stage 1).
type KeygenBroadcast struct {
	CommitmentHash [32]byte
	ConstantPoint  []byte
}

func (p KeygenBroadcast) Encode() []byte {
	var buf []byte
	buf = append(buf, p.CommitmentHash[:]...)
	buf = putBytes(buf, p.ConstantPoint)
	return buf
}

func DecodeKeygenBroadcast(b []byte) (KeygenBroadcast, error) {
	var p KeygenBroadcast
	if len(b) < 32 {
		return KeygenBroadcast{}, fmt.Errorf("wire: truncated commitment hash")
	}
	copy(p.CommitmentHash[:], b[:32])
	b = b[32:]
	point, rest, err := takeBytes(b)
	if err != nil {
		return KeygenBroadcast{}, fmt.Errorf("wire: constant point: %w", err)
	}
	if len(rest) != 0 {
		return KeygenBroadcast{}, fmt.Errorf("wire: %d trailing bytes after keygen broadcast", len(rest))
	}
	p.ConstantPoint = point
	return p, nil
}

// KeygenReveal is the stage-2 keygen payload: the sender's full coefficient
// commitments (checked against its stage-1 hash commitment) and the scalar
// share privately directed at the recipient (spec §4.4, stage 2).
type KeygenReveal struct {
	Commitments [][]byte
	Share       []byte
}

func (p KeygenReveal) Encode() []byte {
	var buf []byte
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(p.Commitments)))
	buf = append(buf, countBuf[:]...)
	for _, c := range p.Commitments {
		buf = putBytes(buf, c)
	}
	buf = putBytes(buf, p.Share)
	return buf
}

func DecodeKeygenReveal(b []byte) (KeygenReveal, error) {
	if len(b) < 4 {
		return KeygenReveal{}, fmt.Errorf("wire: truncated commitment count")
	}
	count := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		var c []byte
		var err error
		c, b, err = takeBytes(b)
		if err != nil {
			return KeygenReveal{}, fmt.Errorf("wire: commitment %d: %w", i, err)
		}
		out = append(out, c)
	}
	share, rest, err := takeBytes(b)
	if err != nil {
		return KeygenReveal{}, fmt.Errorf("wire: share: %w", err)
	}
	if len(rest) != 0 {
		return KeygenReveal{}, fmt.Errorf("wire: %d trailing bytes after keygen reveal", len(rest))
	}
	return KeygenReveal{Commitments: out, Share: share}, nil
}

// SigningCommitment is the stage-1 signing payload: the sender's public
// nonce commitment R_i.
type SigningCommitment struct {
	Commitment []byte
}

func (p SigningCommitment) Encode() []byte {
	return putBytes(nil, p.Commitment)
}

func DecodeSigningCommitment(b []byte) (SigningCommitment, error) {
	c, rest, err := takeBytes(b)
	if err != nil {
		return SigningCommitment{}, fmt.Errorf("wire: commitment: %w", err)
	}
	if len(rest) != 0 {
		return SigningCommitment{}, fmt.Errorf("wire: %d trailing bytes after commitment", len(rest))
	}
	return SigningCommitment{Commitment: c}, nil
}

// SigningResponse is the stage-2 signing payload: the sender's response
// share s_i.
type SigningResponse struct {
	Response []byte
}

func (p SigningResponse) Encode() []byte {
	return putBytes(nil, p.Response)
}

func DecodeSigningResponse(b []byte) (SigningResponse, error) {
	r, rest, err := takeBytes(b)
	if err != nil {
		return SigningResponse{}, fmt.Errorf("wire: response: %w", err)
	}
	if len(rest) != 0 {
		return SigningResponse{}, fmt.Errorf("wire: %d trailing bytes after response", len(rest))
	}
	return SigningResponse{Response: r}, nil
}
