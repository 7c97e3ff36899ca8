package crypto

import "testing"

func allSchemes() []Scheme {
	return []Scheme{
		Adapt[secp256k1Scalar, secp256k1Point](NewSecp256k1Suite(ChainTagSecp256k1Devnet)),
		Adapt[bls12381Scalar, bls12381Point](NewBLS12381Suite(ChainTagBLS12381Devnet)),
	}
}

func TestScalarFieldRoundtrip(t *testing.T) {
	for _, s := range allSchemes() {
		a, err := s.RandomScalar()
		if err != nil {
			t.Fatalf("%s: RandomScalar: %v", s.ChainTag(), err)
		}
		b, err := s.RandomScalar()
		if err != nil {
			t.Fatalf("%s: RandomScalar: %v", s.ChainTag(), err)
		}

		sum, err := s.ScalarAdd(a, b)
		if err != nil {
			t.Fatalf("%s: ScalarAdd: %v", s.ChainTag(), err)
		}
		back, err := s.ScalarSub(sum, b)
		if err != nil {
			t.Fatalf("%s: ScalarSub: %v", s.ChainTag(), err)
		}
		if !bytesEqual(back, a) {
			t.Fatalf("%s: (a+b)-b != a", s.ChainTag())
		}

		inv, err := s.ScalarInverse(a)
		if err != nil {
			t.Fatalf("%s: ScalarInverse: %v", s.ChainTag(), err)
		}
		one, err := s.ScalarMul(a, inv)
		if err != nil {
			t.Fatalf("%s: ScalarMul: %v", s.ChainTag(), err)
		}
		if !bytesEqual(one, s.ScalarFromUint64(1)) {
			t.Fatalf("%s: a * a^-1 != 1", s.ChainTag())
		}
	}
}

func TestGroupIdentities(t *testing.T) {
	for _, s := range allSchemes() {
		g := s.Generator()
		idAdd, err := s.PointAdd(g, s.Identity())
		if err != nil {
			t.Fatalf("%s: PointAdd with identity: %v", s.ChainTag(), err)
		}
		if !s.PointEqual(idAdd, g) {
			t.Fatalf("%s: g + identity != g", s.ChainTag())
		}

		two := s.ScalarFromUint64(2)
		doubled, err := s.ScalarMult(two, g)
		if err != nil {
			t.Fatalf("%s: ScalarMult: %v", s.ChainTag(), err)
		}
		gPlusG, err := s.PointAdd(g, g)
		if err != nil {
			t.Fatalf("%s: PointAdd: %v", s.ChainTag(), err)
		}
		if !s.PointEqual(doubled, gPlusG) {
			t.Fatalf("%s: 2*g != g+g", s.ChainTag())
		}
	}
}

func TestPointSerializationRoundtrip(t *testing.T) {
	for _, s := range allSchemes() {
		sc, err := s.RandomScalar()
		if err != nil {
			t.Fatalf("%s: RandomScalar: %v", s.ChainTag(), err)
		}
		p, err := s.ScalarBaseMult(sc)
		if err != nil {
			t.Fatalf("%s: ScalarBaseMult: %v", s.ChainTag(), err)
		}
		if err := s.ValidatePoint(p); err != nil {
			t.Fatalf("%s: ValidatePoint rejected a valid point: %v", s.ChainTag(), err)
		}
	}
}

func TestLagrangeReconstructsSecret(t *testing.T) {
	for _, s := range allSchemes() {
		secret, err := s.RandomScalar()
		if err != nil {
			t.Fatalf("%s: RandomScalar: %v", s.ChainTag(), err)
		}
		poly, err := GeneratePolynomial(s, secret, 2)
		if err != nil {
			t.Fatalf("%s: GeneratePolynomial: %v", s.ChainTag(), err)
		}

		subset := []int{1, 2, 3}
		acc := s.ScalarFromUint64(0)
		for _, i := range subset {
			share, err := poly.Evaluate(s, i)
			if err != nil {
				t.Fatalf("%s: Evaluate(%d): %v", s.ChainTag(), i, err)
			}
			lambda, err := s.Lagrange(i, subset)
			if err != nil {
				t.Fatalf("%s: Lagrange(%d): %v", s.ChainTag(), i, err)
			}
			term, err := s.ScalarMul(share, lambda)
			if err != nil {
				t.Fatalf("%s: ScalarMul: %v", s.ChainTag(), err)
			}
			acc, err = s.ScalarAdd(acc, term)
			if err != nil {
				t.Fatalf("%s: ScalarAdd: %v", s.ChainTag(), err)
			}
		}

		if !bytesEqual(acc, secret) {
			t.Fatalf("%s: interpolated secret does not match", s.ChainTag())
		}
	}
}

func TestVerifyShareRejectsTamperedShare(t *testing.T) {
	for _, s := range allSchemes() {
		secret, err := s.RandomScalar()
		if err != nil {
			t.Fatalf("%s: RandomScalar: %v", s.ChainTag(), err)
		}
		poly, err := GeneratePolynomial(s, secret, 1)
		if err != nil {
			t.Fatalf("%s: GeneratePolynomial: %v", s.ChainTag(), err)
		}
		commitments, err := poly.Commitments(s)
		if err != nil {
			t.Fatalf("%s: Commitments: %v", s.ChainTag(), err)
		}

		share, err := poly.Evaluate(s, 1)
		if err != nil {
			t.Fatalf("%s: Evaluate: %v", s.ChainTag(), err)
		}
		ok, err := VerifyShare(s, commitments, 1, share)
		if err != nil {
			t.Fatalf("%s: VerifyShare: %v", s.ChainTag(), err)
		}
		if !ok {
			t.Fatalf("%s: genuine share failed verification", s.ChainTag())
		}

		tampered, err := s.ScalarAdd(share, s.ScalarFromUint64(1))
		if err != nil {
			t.Fatalf("%s: ScalarAdd: %v", s.ChainTag(), err)
		}
		ok, err = VerifyShare(s, commitments, 1, tampered)
		if err != nil {
			t.Fatalf("%s: VerifyShare: %v", s.ChainTag(), err)
		}
		if ok {
			t.Fatalf("%s: tampered share passed verification", s.ChainTag())
		}
	}
}

func TestSchnorrSignAndVerify(t *testing.T) {
	for _, s := range allSchemes() {
		secret, err := s.RandomScalar()
		if err != nil {
			t.Fatalf("%s: RandomScalar: %v", s.ChainTag(), err)
		}
		pub, err := s.ScalarBaseMult(secret)
		if err != nil {
			t.Fatalf("%s: ScalarBaseMult: %v", s.ChainTag(), err)
		}

		cs, err := GenerateCommitmentShare(s)
		if err != nil {
			t.Fatalf("%s: GenerateCommitmentShare: %v", s.ChainTag(), err)
		}

		msg := []byte("cross-chain outbound transfer #1")
		challenge, err := s.Challenge(cs.Commitment, pub, msg)
		if err != nil {
			t.Fatalf("%s: Challenge: %v", s.ChainTag(), err)
		}

		resp, err := ComputeResponseShare(s, cs.Nonce, challenge, s.ScalarFromUint64(1), secret)
		if err != nil {
			t.Fatalf("%s: ComputeResponseShare: %v", s.ChainTag(), err)
		}

		sig := Signature{R: cs.Commitment, S: resp}
		ok, err := Verify(s, pub, msg, sig)
		if err != nil {
			t.Fatalf("%s: Verify: %v", s.ChainTag(), err)
		}
		if !ok {
			t.Fatalf("%s: valid single-party signature failed verification", s.ChainTag())
		}

		ok, err = Verify(s, pub, []byte("a different message"), sig)
		if err != nil {
			t.Fatalf("%s: Verify: %v", s.ChainTag(), err)
		}
		if ok {
			t.Fatalf("%s: signature verified against the wrong message", s.ChainTag())
		}
	}
}

func TestThresholdSigningAggregation(t *testing.T) {
	for _, s := range allSchemes() {
		// Three dealers, threshold 1 (2-of-3): each dealer contributes a
		// degree-1 polynomial; parties 1..3 sum their received shares into
		// an aggregate secret share, then sign as a 2-party subset.
		var dealerPolys []*Polynomial
		for d := 0; d < 3; d++ {
			secret, err := s.RandomScalar()
			if err != nil {
				t.Fatalf("%s: RandomScalar: %v", s.ChainTag(), err)
			}
			poly, err := GeneratePolynomial(s, secret, 1)
			if err != nil {
				t.Fatalf("%s: GeneratePolynomial: %v", s.ChainTag(), err)
			}
			dealerPolys = append(dealerPolys, poly)
		}

		groupPubContribs := make([][]byte, 3)
		for d, poly := range dealerPolys {
			c, err := poly.ConstantCommitment(s)
			if err != nil {
				t.Fatalf("%s: ConstantCommitment: %v", s.ChainTag(), err)
			}
			groupPubContribs[d] = c
		}
		groupPub, err := AggregatePublicKey(s, groupPubContribs)
		if err != nil {
			t.Fatalf("%s: AggregatePublicKey: %v", s.ChainTag(), err)
		}

		aggShare := func(party int) []byte {
			var shares [][]byte
			for _, poly := range dealerPolys {
				sh, err := poly.Evaluate(s, party)
				if err != nil {
					t.Fatalf("%s: Evaluate: %v", s.ChainTag(), err)
				}
				shares = append(shares, sh)
			}
			out, err := AggregateShare(s, shares)
			if err != nil {
				t.Fatalf("%s: AggregateShare: %v", s.ChainTag(), err)
			}
			return out
		}

		share1 := aggShare(1)
		share2 := aggShare(2)
		subset := []int{1, 2}

		cs1, err := GenerateCommitmentShare(s)
		if err != nil {
			t.Fatalf("%s: GenerateCommitmentShare: %v", s.ChainTag(), err)
		}
		cs2, err := GenerateCommitmentShare(s)
		if err != nil {
			t.Fatalf("%s: GenerateCommitmentShare: %v", s.ChainTag(), err)
		}
		aggR, err := AggregateCommitments(s, [][]byte{cs1.Commitment, cs2.Commitment})
		if err != nil {
			t.Fatalf("%s: AggregateCommitments: %v", s.ChainTag(), err)
		}

		msg := []byte("checkpoint root for epoch 7")
		challenge, err := s.Challenge(aggR, groupPub, msg)
		if err != nil {
			t.Fatalf("%s: Challenge: %v", s.ChainTag(), err)
		}

		lambda1, err := s.Lagrange(1, subset)
		if err != nil {
			t.Fatalf("%s: Lagrange(1): %v", s.ChainTag(), err)
		}
		lambda2, err := s.Lagrange(2, subset)
		if err != nil {
			t.Fatalf("%s: Lagrange(2): %v", s.ChainTag(), err)
		}

		resp1, err := ComputeResponseShare(s, cs1.Nonce, challenge, lambda1, share1)
		if err != nil {
			t.Fatalf("%s: ComputeResponseShare: %v", s.ChainTag(), err)
		}
		resp2, err := ComputeResponseShare(s, cs2.Nonce, challenge, lambda2, share2)
		if err != nil {
			t.Fatalf("%s: ComputeResponseShare: %v", s.ChainTag(), err)
		}

		aggS, err := AggregateResponses(s, [][]byte{resp1, resp2})
		if err != nil {
			t.Fatalf("%s: AggregateResponses: %v", s.ChainTag(), err)
		}

		sig := Signature{R: aggR, S: aggS}
		ok, err := Verify(s, groupPub, msg, sig)
		if err != nil {
			t.Fatalf("%s: Verify: %v", s.ChainTag(), err)
		}
		if !ok {
			t.Fatalf("%s: 2-of-3 aggregate signature failed verification", s.ChainTag())
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
