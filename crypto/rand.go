package crypto

// Zeroize overwrites b in place with zero bytes. Called when a ceremony's
// secret nonces and shares go out of scope (spec §5, resource model) so
// stale scalar material doesn't linger in memory past the ceremony's life.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeAll zeroizes every slice in bs.
func ZeroizeAll(bs ...[]byte) {
	for _, b := range bs {
		Zeroize(b)
	}
}
