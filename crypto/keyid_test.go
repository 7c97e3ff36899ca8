package crypto

import "testing"

func TestKeyIDEncodeDecodeRoundtrip(t *testing.T) {
	k := KeyID{Epoch: 7, PublicKey: []byte{0x02, 0xAA, 0xBB, 0xCC}}
	encoded := k.Encode()
	decoded, err := DecodeKeyID(encoded)
	if err != nil {
		t.Fatalf("DecodeKeyID: %v", err)
	}
	if !decoded.Equal(k) {
		t.Fatalf("decoded %+v != original %+v", decoded, k)
	}
}

func TestDecodeKeyIDRejectsTruncated(t *testing.T) {
	if _, err := DecodeKeyID([]byte{0x00, 0x01}); err == nil {
		t.Fatalf("expected error decoding truncated key id")
	}
}

func TestChainTagString(t *testing.T) {
	if ChainTagSecp256k1Devnet.String() != "0001" {
		t.Fatalf("ChainTagSecp256k1Devnet.String() = %q, want %q", ChainTagSecp256k1Devnet.String(), "0001")
	}
}
