package crypto

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
)

// AES-256 key wrap (RFC 3394 / NIST SP 800-38F), used by the tss-noded
// export-share/import-share tooling to wrap an encoded key-share record
// under an operator-supplied KEK for cold backup.

// kwIV is the RFC 3394 default initial value; unwrap recovering anything
// else means the KEK is wrong or the blob was corrupted.
var kwIV = binary.BigEndian.Uint64([]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6})

const (
	kwMinPlain = 16
	kwMaxPlain = 4096
)

// AESKeyWrapRFC3394 wraps plaintext under a 32-byte KEK. plaintext must be
// kwMinPlain..kwMaxPlain bytes and a multiple of 8.
func AESKeyWrapRFC3394(kek, plaintext []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, errors.New("aeskw: kek must be 32 bytes (AES-256)")
	}
	if len(plaintext) < kwMinPlain || len(plaintext) > kwMaxPlain || len(plaintext)%8 != 0 {
		return nil, errors.New("aeskw: plaintext must be 16..4096 bytes and a multiple of 8")
	}

	cipher, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(plaintext) / 8
	blocks := append([]byte(nil), plaintext...)
	reg := kwIV

	var scratch [16]byte
	for round := 0; round < 6; round++ {
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint64(scratch[:8], reg)
			copy(scratch[8:], blocks[i*8:(i+1)*8])
			cipher.Encrypt(scratch[:], scratch[:])
			reg = binary.BigEndian.Uint64(scratch[:8]) ^ uint64(n*round+i+1)
			copy(blocks[i*8:(i+1)*8], scratch[8:])
		}
	}

	out := make([]byte, 8+len(blocks))
	binary.BigEndian.PutUint64(out[:8], reg)
	copy(out[8:], blocks)
	return out, nil
}

// AESKeyUnwrapRFC3394 reverses AESKeyWrapRFC3394, failing if the recovered
// initial value does not match kwIV.
func AESKeyUnwrapRFC3394(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != 32 {
		return nil, errors.New("aeskw: kek must be 32 bytes (AES-256)")
	}
	if len(wrapped) < kwMinPlain+8 || len(wrapped) > kwMaxPlain+8 || len(wrapped)%8 != 0 {
		return nil, errors.New("aeskw: wrapped blob must be 24..4104 bytes and a multiple of 8")
	}

	cipher, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := (len(wrapped) / 8) - 1
	reg := binary.BigEndian.Uint64(wrapped[:8])
	blocks := append([]byte(nil), wrapped[8:]...)

	var scratch [16]byte
	for round := 5; round >= 0; round-- {
		for i := n - 1; i >= 0; i-- {
			binary.BigEndian.PutUint64(scratch[:8], reg^uint64(n*round+i+1))
			copy(scratch[8:], blocks[i*8:(i+1)*8])
			cipher.Decrypt(scratch[:], scratch[:])
			reg = binary.BigEndian.Uint64(scratch[:8])
			copy(blocks[i*8:(i+1)*8], scratch[8:])
		}
	}

	if reg != kwIV {
		return nil, errors.New("aeskw: integrity check failed")
	}
	return blocks, nil
}
