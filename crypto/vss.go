package crypto

import "fmt"

// Polynomial is a degree-t polynomial over the scalar field, coeffs[0] being
// the secret term. It backs Feldman verifiable secret sharing (spec §4.4):
// each party samples one such polynomial, broadcasts commitments to its
// coefficients, and reveals f(i) privately to party i.
type Polynomial struct {
	coeffs [][]byte // scalar bytes, len = threshold+1
}

// GeneratePolynomial samples a random degree-threshold polynomial with the
// given secret as its constant term. threshold is t: any t+1 shares
// reconstruct the secret, any t do not.
func GeneratePolynomial(scheme Scheme, secret []byte, threshold int) (*Polynomial, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("vss: negative threshold")
	}
	coeffs := make([][]byte, threshold+1)
	coeffs[0] = secret
	for i := 1; i <= threshold; i++ {
		c, err := scheme.RandomScalar()
		if err != nil {
			return nil, fmt.Errorf("vss: sampling coefficient %d: %w", i, err)
		}
		coeffs[i] = c
	}
	return &Polynomial{coeffs: coeffs}, nil
}

// Commitments returns the Feldman commitments C_j = g^{a_j} for every
// coefficient, in order. These are broadcast to all parties.
func (p *Polynomial) Commitments(scheme Scheme) ([][]byte, error) {
	out := make([][]byte, len(p.coeffs))
	for j, a := range p.coeffs {
		c, err := scheme.ScalarBaseMult(a)
		if err != nil {
			return nil, fmt.Errorf("vss: commit coefficient %d: %w", j, err)
		}
		out[j] = c
	}
	return out, nil
}

// Evaluate computes f(x) for the 1-based party index x using Horner's method.
func (p *Polynomial) Evaluate(scheme Scheme, x int) ([]byte, error) {
	if x <= 0 {
		return nil, fmt.Errorf("vss: party index must be >= 1, got %d", x)
	}
	xs := scheme.ScalarFromUint64(uint64(x))
	acc := p.coeffs[len(p.coeffs)-1]
	for j := len(p.coeffs) - 2; j >= 0; j-- {
		mul, err := scheme.ScalarMul(acc, xs)
		if err != nil {
			return nil, err
		}
		acc, err = scheme.ScalarAdd(mul, p.coeffs[j])
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// EvaluateCommitments computes Prod_j C_j^(x^j) for 1-based party index x:
// the public image g^{f(x)} of the committed polynomial at x. For aggregated
// commitments this is Y_x = g^{x_x}, party x's public key share, which the
// signing response-stage verification needs (spec §4.5).
func EvaluateCommitments(scheme Scheme, commitments [][]byte, x int) ([]byte, error) {
	if x <= 0 {
		return nil, fmt.Errorf("vss: party index must be >= 1, got %d", x)
	}
	acc := scheme.Identity()
	xPow := scheme.ScalarFromUint64(1)
	xs := scheme.ScalarFromUint64(uint64(x))
	for j, c := range commitments {
		if j > 0 {
			var err error
			xPow, err = scheme.ScalarMul(xPow, xs)
			if err != nil {
				return nil, err
			}
		}
		term, err := scheme.ScalarMult(xPow, c)
		if err != nil {
			return nil, fmt.Errorf("vss: invalid commitment %d: %w", j, err)
		}
		acc, err = scheme.PointAdd(acc, term)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// VerifyShare checks that g^share == Prod_j C_j^(x^j) for 1-based party index
// x, the Feldman share-verification invariant (spec §4.4, §8).
func VerifyShare(scheme Scheme, commitments [][]byte, x int, share []byte) (bool, error) {
	lhs, err := scheme.ScalarBaseMult(share)
	if err != nil {
		return false, err
	}
	rhs, err := EvaluateCommitments(scheme, commitments, x)
	if err != nil {
		return false, err
	}
	return scheme.PointEqual(lhs, rhs), nil
}

// Zeroize overwrites every coefficient in place. Called when the owning
// ceremony state is destroyed (spec §4.2, constraints).
func (p *Polynomial) Zeroize() {
	for _, c := range p.coeffs {
		Zeroize(c)
	}
}

// ConstantCommitment returns C_0, the commitment to a party's secret term,
// which doubles as that party's contribution to the aggregate group public
// key.
func (p *Polynomial) ConstantCommitment(scheme Scheme) ([]byte, error) {
	return scheme.ScalarBaseMult(p.coeffs[0])
}

// AggregatePublicKey sums a set of points (one per participant's constant
// commitment) into the joint group public key Y = Sum Y_i (spec §4.4).
func AggregatePublicKey(scheme Scheme, points [][]byte) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("vss: no points to aggregate")
	}
	acc := scheme.Identity()
	for i, p := range points {
		var err error
		acc, err = scheme.PointAdd(acc, p)
		if err != nil {
			return nil, fmt.Errorf("vss: aggregating point %d: %w", i, err)
		}
	}
	return acc, nil
}

// AggregateCommitmentVectors sums per-dealer commitment lists coefficient by
// coefficient. The result commits to the joint polynomial f = Sum_k f_k, so
// evaluating it at party index i yields Y_i = g^{x_i} and its constant term
// is the group public key (spec §3, key share record invariant).
func AggregateCommitmentVectors(scheme Scheme, vectors [][][]byte) ([][]byte, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("vss: no commitment vectors to aggregate")
	}
	width := len(vectors[0])
	out := make([][]byte, width)
	for j := 0; j < width; j++ {
		acc := scheme.Identity()
		for k, vec := range vectors {
			if len(vec) != width {
				return nil, fmt.Errorf("vss: commitment vector %d has %d coefficients, want %d", k, len(vec), width)
			}
			var err error
			acc, err = scheme.PointAdd(acc, vec[j])
			if err != nil {
				return nil, fmt.Errorf("vss: aggregating coefficient %d of vector %d: %w", j, k, err)
			}
		}
		out[j] = acc
	}
	return out, nil
}

// AggregateShare sums the per-dealer secret shares a party received into its
// own aggregate secret share x_i (spec §4.4).
func AggregateShare(scheme Scheme, shares [][]byte) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("vss: no shares to aggregate")
	}
	acc := scheme.ScalarFromUint64(0)
	for i, s := range shares {
		var err error
		acc, err = scheme.ScalarAdd(acc, s)
		if err != nil {
			return nil, fmt.Errorf("vss: aggregating share %d: %w", i, err)
		}
	}
	return acc, nil
}
