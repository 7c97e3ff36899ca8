package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestAESKW_Roundtrip(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	keyIn := bytes.Repeat([]byte{0x22}, 32)
	wrapped, err := AESKeyWrapRFC3394(kek, keyIn)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := AESKeyUnwrapRFC3394(kek, wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, keyIn) {
		t.Fatalf("unwrap mismatch")
	}
}

// Known-answer test: RFC 3394 §4.6, 256 bits of key data under a 256-bit KEK.
func TestAESKW_RFC3394Vector(t *testing.T) {
	kek, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	keyIn, _ := hex.DecodeString("00112233445566778899aabbccddeeff000102030405060708090a0b0c0d0e0f")
	want, _ := hex.DecodeString("28c9f404c4b810f4cbccb35cfb87f8263f5786e2d80ed326cbc7f0e71a99f43bfb988b9b7a02dd21")

	wrapped, err := AESKeyWrapRFC3394(kek, keyIn)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wrapped, want) {
		t.Fatalf("wrap mismatch:\n got %x\nwant %x", wrapped, want)
	}
	plain, err := AESKeyUnwrapRFC3394(kek, wrapped)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plain, keyIn) {
		t.Fatalf("unwrap mismatch")
	}
}

func TestAESKW_WrongKEKFailsIntegrityCheck(t *testing.T) {
	kek := bytes.Repeat([]byte{0x11}, 32)
	wrapped, err := AESKeyWrapRFC3394(kek, bytes.Repeat([]byte{0x22}, 32))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := AESKeyUnwrapRFC3394(bytes.Repeat([]byte{0x12}, 32), wrapped); err == nil {
		t.Fatalf("expected integrity failure under the wrong kek")
	}
}
