package wire

import (
	"testing"

	"github.com/rubinvalidator/tss-core/crypto"
)

func TestPeerMessageRoundtrip(t *testing.T) {
	m := PeerMessage{
		Kind:       KindKeygen,
		ChainTag:   crypto.ChainTagSecp256k1Devnet,
		CeremonyID: CeremonyID{0x01, 0x02},
		Stage:      StageKeygenBroadcast,
		Payload:    []byte{0xAA, 0xBB},
	}
	encoded, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodePeerMessage(encoded)
	if err != nil {
		t.Fatalf("DecodePeerMessage: %v", err)
	}
	if decoded.Kind != m.Kind || decoded.Stage != m.Stage || decoded.CeremonyID != m.CeremonyID || decoded.ChainTag != m.ChainTag {
		t.Fatalf("decoded header mismatch: %+v", decoded)
	}
	if string(decoded.Payload) != string(m.Payload) {
		t.Fatalf("decoded payload mismatch: %v", decoded.Payload)
	}
}

func TestPeerMessageRejectsMismatchedStage(t *testing.T) {
	m := PeerMessage{
		Kind:  KindSigning,
		Stage: Stage(9), // not a valid signing stage
	}
	if _, err := m.Encode(); err == nil {
		t.Fatalf("expected error encoding mismatched kind/stage pair")
	}
}

func TestDecodePeerMessageRejectsTrailingBytes(t *testing.T) {
	m := PeerMessage{
		Kind:  KindSigning,
		Stage: StageSigningCommitment,
	}
	encoded, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded = append(encoded, 0x01)
	if _, err := DecodePeerMessage(encoded); err == nil {
		t.Fatalf("expected error decoding message with trailing bytes")
	}
}

func TestKeygenPayloadRoundtrips(t *testing.T) {
	bc := KeygenBroadcast{
		CommitmentHash: crypto.CommitmentDigest([][]byte{{0x01}, {0x02, 0x03}}),
		ConstantPoint:  []byte{0x02, 0xAA},
	}
	decodedBC, err := DecodeKeygenBroadcast(bc.Encode())
	if err != nil {
		t.Fatalf("DecodeKeygenBroadcast: %v", err)
	}
	if decodedBC.CommitmentHash != bc.CommitmentHash {
		t.Fatalf("commitment hash mismatch")
	}
	if string(decodedBC.ConstantPoint) != string(bc.ConstantPoint) {
		t.Fatalf("constant point mismatch")
	}

	rv := KeygenReveal{
		Commitments: [][]byte{{0x01}, {0x02, 0x03}},
		Share:       []byte{0x0A, 0x0B},
	}
	decodedRV, err := DecodeKeygenReveal(rv.Encode())
	if err != nil {
		t.Fatalf("DecodeKeygenReveal: %v", err)
	}
	if len(decodedRV.Commitments) != 2 {
		t.Fatalf("expected 2 commitments, got %d", len(decodedRV.Commitments))
	}
	if string(decodedRV.Share) != string(rv.Share) {
		t.Fatalf("share mismatch")
	}
}

func TestDecodeKeygenRevealRejectsTrailingBytes(t *testing.T) {
	rv := KeygenReveal{Commitments: [][]byte{{0x01}}, Share: []byte{0x0A}}
	encoded := append(rv.Encode(), 0xFF)
	if _, err := DecodeKeygenReveal(encoded); err == nil {
		t.Fatalf("expected error decoding reveal with trailing bytes")
	}
}

func TestSigningPayloadRoundtrips(t *testing.T) {
	c := SigningCommitment{Commitment: []byte{0x01, 0x02}}
	decodedC, err := DecodeSigningCommitment(c.Encode())
	if err != nil {
		t.Fatalf("DecodeSigningCommitment: %v", err)
	}
	if string(decodedC.Commitment) != string(c.Commitment) {
		t.Fatalf("commitment mismatch")
	}

	r := SigningResponse{Response: []byte{0x03, 0x04}}
	decodedR, err := DecodeSigningResponse(r.Encode())
	if err != nil {
		t.Fatalf("DecodeSigningResponse: %v", err)
	}
	if string(decodedR.Response) != string(r.Response) {
		t.Fatalf("response mismatch")
	}
}
