package crypto

import "fmt"

// Suite is the capability set the ceremony runtime is polymorphic over: group
// arithmetic, scalar arithmetic, a chain tag, and a deterministic challenge
// hash (spec §4.2, Design Notes). It is expressed as a Go generic interface
// (the type parameter the design notes call for) rather than an inheritance
// hierarchy; S is the scalar representation and P the group-element
// representation for a concrete curve.
type Suite[S any, P any] interface {
	ChainTag() ChainTag

	// Scalar field.
	ScalarFromUint64(u uint64) S
	ScalarRandom() (S, error)
	ScalarAdd(a, b S) S
	ScalarSub(a, b S) S
	ScalarMul(a, b S) S
	ScalarNeg(a S) S
	ScalarInverse(a S) (S, error)
	ScalarIsZero(a S) bool
	ScalarEqual(a, b S) bool
	ScalarBytes(a S) []byte
	ScalarSetBytes(b []byte) (S, error)

	// Group.
	Identity() P
	Generator() P
	PointAdd(a, b P) P
	PointNeg(a P) P
	ScalarBaseMult(s S) P
	ScalarMult(s S, p P) P
	PointEqual(a, b P) bool
	PointBytes(p P) []byte
	PointSetBytes(b []byte) (P, error)

	// Challenge computes H(R, Y, m) -> scalar, the deterministic Schnorr
	// challenge hash (spec §4.2).
	Challenge(r, y P, m []byte) S
}

// Scheme is the narrow, non-generic facade the ceremony/keygen/signing
// packages consume. It operates on opaque byte encodings so those packages
// never need the Suite type parameter; a concrete Suite[S,P] is adapted into
// a Scheme by adaptedScheme below.
type Scheme interface {
	ChainTag() ChainTag

	RandomScalar() ([]byte, error)
	ScalarFromUint64(u uint64) []byte
	ScalarAdd(a, b []byte) ([]byte, error)
	ScalarSub(a, b []byte) ([]byte, error)
	ScalarMul(a, b []byte) ([]byte, error)
	ScalarInverse(a []byte) ([]byte, error)
	ScalarIsZero(a []byte) bool

	Identity() []byte
	Generator() []byte
	ScalarBaseMult(s []byte) ([]byte, error)
	ScalarMult(s, p []byte) ([]byte, error)
	PointAdd(a, b []byte) ([]byte, error)
	PointEqual(a, b []byte) bool
	ValidatePoint(p []byte) error

	// Challenge returns H(R, Y, m) as scalar bytes.
	Challenge(r, y, m []byte) ([]byte, error)

	// Lagrange returns the Lagrange coefficient lambda_i at party index i
	// (1-based) interpolated over the given signer subset of 1-based party
	// indices, evaluated at x=0 (spec §4.2/§4.5).
	Lagrange(i int, subset []int) ([]byte, error)
}

type adaptedScheme[S any, P any] struct {
	suite Suite[S, P]
}

// Adapt wraps a concrete Suite[S,P] as a non-generic Scheme.
func Adapt[S any, P any](s Suite[S, P]) Scheme {
	return &adaptedScheme[S, P]{suite: s}
}

func (a *adaptedScheme[S, P]) ChainTag() ChainTag { return a.suite.ChainTag() }

func (a *adaptedScheme[S, P]) RandomScalar() ([]byte, error) {
	s, err := a.suite.ScalarRandom()
	if err != nil {
		return nil, err
	}
	return a.suite.ScalarBytes(s), nil
}

func (a *adaptedScheme[S, P]) ScalarFromUint64(u uint64) []byte {
	return a.suite.ScalarBytes(a.suite.ScalarFromUint64(u))
}

func (a *adaptedScheme[S, P]) decodeScalar(b []byte) (S, error) {
	return a.suite.ScalarSetBytes(b)
}

func (a *adaptedScheme[S, P]) ScalarAdd(x, y []byte) ([]byte, error) {
	sx, err := a.decodeScalar(x)
	if err != nil {
		return nil, err
	}
	sy, err := a.decodeScalar(y)
	if err != nil {
		return nil, err
	}
	return a.suite.ScalarBytes(a.suite.ScalarAdd(sx, sy)), nil
}

func (a *adaptedScheme[S, P]) ScalarSub(x, y []byte) ([]byte, error) {
	sx, err := a.decodeScalar(x)
	if err != nil {
		return nil, err
	}
	sy, err := a.decodeScalar(y)
	if err != nil {
		return nil, err
	}
	return a.suite.ScalarBytes(a.suite.ScalarSub(sx, sy)), nil
}

func (a *adaptedScheme[S, P]) ScalarMul(x, y []byte) ([]byte, error) {
	sx, err := a.decodeScalar(x)
	if err != nil {
		return nil, err
	}
	sy, err := a.decodeScalar(y)
	if err != nil {
		return nil, err
	}
	return a.suite.ScalarBytes(a.suite.ScalarMul(sx, sy)), nil
}

func (a *adaptedScheme[S, P]) ScalarInverse(x []byte) ([]byte, error) {
	sx, err := a.decodeScalar(x)
	if err != nil {
		return nil, err
	}
	inv, err := a.suite.ScalarInverse(sx)
	if err != nil {
		return nil, err
	}
	return a.suite.ScalarBytes(inv), nil
}

func (a *adaptedScheme[S, P]) ScalarIsZero(x []byte) bool {
	sx, err := a.decodeScalar(x)
	if err != nil {
		return false
	}
	return a.suite.ScalarIsZero(sx)
}

func (a *adaptedScheme[S, P]) Identity() []byte  { return a.suite.PointBytes(a.suite.Identity()) }
func (a *adaptedScheme[S, P]) Generator() []byte { return a.suite.PointBytes(a.suite.Generator()) }

func (a *adaptedScheme[S, P]) ScalarBaseMult(s []byte) ([]byte, error) {
	sc, err := a.decodeScalar(s)
	if err != nil {
		return nil, err
	}
	return a.suite.PointBytes(a.suite.ScalarBaseMult(sc)), nil
}

func (a *adaptedScheme[S, P]) ScalarMult(s, p []byte) ([]byte, error) {
	sc, err := a.decodeScalar(s)
	if err != nil {
		return nil, err
	}
	pt, err := a.suite.PointSetBytes(p)
	if err != nil {
		return nil, err
	}
	return a.suite.PointBytes(a.suite.ScalarMult(sc, pt)), nil
}

func (a *adaptedScheme[S, P]) PointAdd(x, y []byte) ([]byte, error) {
	px, err := a.suite.PointSetBytes(x)
	if err != nil {
		return nil, err
	}
	py, err := a.suite.PointSetBytes(y)
	if err != nil {
		return nil, err
	}
	return a.suite.PointBytes(a.suite.PointAdd(px, py)), nil
}

func (a *adaptedScheme[S, P]) PointEqual(x, y []byte) bool {
	px, err := a.suite.PointSetBytes(x)
	if err != nil {
		return false
	}
	py, err := a.suite.PointSetBytes(y)
	if err != nil {
		return false
	}
	return a.suite.PointEqual(px, py)
}

func (a *adaptedScheme[S, P]) ValidatePoint(p []byte) error {
	_, err := a.suite.PointSetBytes(p)
	return err
}

func (a *adaptedScheme[S, P]) Challenge(r, y, m []byte) ([]byte, error) {
	pr, err := a.suite.PointSetBytes(r)
	if err != nil {
		return nil, fmt.Errorf("challenge: bad R: %w", err)
	}
	py, err := a.suite.PointSetBytes(y)
	if err != nil {
		return nil, fmt.Errorf("challenge: bad Y: %w", err)
	}
	return a.suite.ScalarBytes(a.suite.Challenge(pr, py, m)), nil
}

// Lagrange computes lambda_i = Prod_{j in subset, j != i} j / (j - i), the
// Lagrange coefficient at x=0 for party index i over the exact signer subset
// (spec §4.2, §4.5). Party indices are 1-based.
func (a *adaptedScheme[S, P]) Lagrange(i int, subset []int) ([]byte, error) {
	num := a.suite.ScalarFromUint64(1)
	den := a.suite.ScalarFromUint64(1)
	for _, j := range subset {
		if j == i {
			continue
		}
		num = a.suite.ScalarMul(num, a.suite.ScalarFromUint64(uint64(j)))
		diff := a.suite.ScalarSub(a.suite.ScalarFromUint64(uint64(j)), a.suite.ScalarFromUint64(uint64(i)))
		den = a.suite.ScalarMul(den, diff)
	}
	if a.suite.ScalarIsZero(den) {
		return nil, fmt.Errorf("lagrange: zero denominator (duplicate index in subset?)")
	}
	invDen, err := a.suite.ScalarInverse(den)
	if err != nil {
		return nil, err
	}
	return a.suite.ScalarBytes(a.suite.ScalarMul(num, invDen)), nil
}
