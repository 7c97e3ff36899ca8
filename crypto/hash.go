package crypto

import "golang.org/x/crypto/sha3"

// challengeDigest computes SHA3-256(r || y || m), the raw digest both Suite
// instantiations reduce mod their own scalar order to form the Schnorr
// challenge (spec §4.2). Matches the teacher's use of golang.org/x/crypto/sha3
// for deterministic hashing (node/p2p_runtime.go's wireChecksum).
func challengeDigest(r, y, m []byte) [32]byte {
	h := sha3.New256()
	h.Write(r)
	h.Write(y)
	h.Write(m)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CommitmentDigest hashes an ordered list of Feldman coefficient commitments
// into the hiding hash commitment broadcast in keygen stage 1 (spec §4.4).
// Each element is length-framed so distinct lists can't collide by
// concatenation.
func CommitmentDigest(commitments [][]byte) [32]byte {
	h := sha3.New256()
	var lenBuf [4]byte
	for _, c := range commitments {
		lenBuf[0] = byte(len(c) >> 24)
		lenBuf[1] = byte(len(c) >> 16)
		lenBuf[2] = byte(len(c) >> 8)
		lenBuf[3] = byte(len(c))
		h.Write(lenBuf[:])
		h.Write(c)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
