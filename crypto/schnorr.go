package crypto

import "fmt"

// Signature is an aggregate Schnorr signature (R, s) over a group point R
// and scalar s (spec §4.5).
type Signature struct {
	R []byte
	S []byte
}

// CommitmentShare is a per-signer nonce k_i and its public commitment
// R_i = g^{k_i}, produced in the signing commitment stage.
type CommitmentShare struct {
	Nonce      []byte
	Commitment []byte
}

// GenerateCommitmentShare samples a fresh nonce and its public commitment.
// The nonce must never be reused across signing ceremonies for the same
// key share.
func GenerateCommitmentShare(scheme Scheme) (CommitmentShare, error) {
	k, err := scheme.RandomScalar()
	if err != nil {
		return CommitmentShare{}, fmt.Errorf("schnorr: sampling nonce: %w", err)
	}
	r, err := scheme.ScalarBaseMult(k)
	if err != nil {
		return CommitmentShare{}, fmt.Errorf("schnorr: committing nonce: %w", err)
	}
	return CommitmentShare{Nonce: k, Commitment: r}, nil
}

// AggregateCommitments sums per-signer commitments into the joint
// commitment R = Sum R_i (spec §4.5).
func AggregateCommitments(scheme Scheme, commitments [][]byte) ([]byte, error) {
	if len(commitments) == 0 {
		return nil, fmt.Errorf("schnorr: no commitments to aggregate")
	}
	acc := scheme.Identity()
	for i, c := range commitments {
		var err error
		acc, err = scheme.PointAdd(acc, c)
		if err != nil {
			return nil, fmt.Errorf("schnorr: aggregating commitment %d: %w", i, err)
		}
	}
	return acc, nil
}

// ComputeResponseShare computes s_i = k_i + c*lambda_i*x_i, this signer's
// contribution to the aggregate response (spec §4.5).
func ComputeResponseShare(scheme Scheme, nonce, challenge, lambda, secretShare []byte) ([]byte, error) {
	clambda, err := scheme.ScalarMul(challenge, lambda)
	if err != nil {
		return nil, err
	}
	term, err := scheme.ScalarMul(clambda, secretShare)
	if err != nil {
		return nil, err
	}
	return scheme.ScalarAdd(nonce, term)
}

// AggregateResponses sums per-signer response shares into s = Sum s_i.
func AggregateResponses(scheme Scheme, responses [][]byte) ([]byte, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("schnorr: no responses to aggregate")
	}
	acc := scheme.ScalarFromUint64(0)
	for i, s := range responses {
		var err error
		acc, err = scheme.ScalarAdd(acc, s)
		if err != nil {
			return nil, fmt.Errorf("schnorr: aggregating response %d: %w", i, err)
		}
	}
	return acc, nil
}

// VerifyResponseShare checks a single signer's response share against its
// own commitment and aggregate public key contribution: g^{s_i} ==
// R_i + (c*lambda_i)*Y_i. Used to attribute blame to a malicious signer
// during response-stage validation (spec §4.5, §7).
func VerifyResponseShare(scheme Scheme, commitment, response, challenge, lambda, pubShare []byte) (bool, error) {
	lhs, err := scheme.ScalarBaseMult(response)
	if err != nil {
		return false, err
	}
	clambda, err := scheme.ScalarMul(challenge, lambda)
	if err != nil {
		return false, err
	}
	term, err := scheme.ScalarMult(clambda, pubShare)
	if err != nil {
		return false, err
	}
	rhs, err := scheme.PointAdd(commitment, term)
	if err != nil {
		return false, err
	}
	return scheme.PointEqual(lhs, rhs), nil
}

// Verify checks an aggregate signature against a group public key and
// message: g^s == R + c*Y where c = H(R, Y, m) (spec §4.2, §8).
func Verify(scheme Scheme, pubKey []byte, message []byte, sig Signature) (bool, error) {
	c, err := scheme.Challenge(sig.R, pubKey, message)
	if err != nil {
		return false, fmt.Errorf("schnorr: computing challenge: %w", err)
	}
	lhs, err := scheme.ScalarBaseMult(sig.S)
	if err != nil {
		return false, fmt.Errorf("schnorr: invalid signature scalar: %w", err)
	}
	cy, err := scheme.ScalarMult(c, pubKey)
	if err != nil {
		return false, fmt.Errorf("schnorr: invalid public key: %w", err)
	}
	rhs, err := scheme.PointAdd(sig.R, cy)
	if err != nil {
		return false, fmt.Errorf("schnorr: invalid signature commitment: %w", err)
	}
	return scheme.PointEqual(lhs, rhs), nil
}
