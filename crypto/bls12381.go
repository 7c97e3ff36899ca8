package crypto

import (
	"fmt"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// bls12381Scalar wraps a scalar field element mod the BLS12-381 subgroup
// order r.
type bls12381Scalar struct{ e fr.Element }

// bls12381Point is a G1 affine point; used as the Schnorr group for the
// second chain tag, grounded on the bls12-381 usage in the retrieved
// validation.go reference (ecc/bls12-381, ecc/bls12-381/fr).
type bls12381Point struct{ a bls12381.G1Affine }

// BLS12381Suite is the bls12-381 (G1) instantiation of Suite, giving the
// ceremony runtime a structurally distinct second curve backend.
type BLS12381Suite struct {
	tag ChainTag
}

func NewBLS12381Suite(tag ChainTag) *BLS12381Suite {
	return &BLS12381Suite{tag: tag}
}

func (s *BLS12381Suite) ChainTag() ChainTag { return s.tag }

func (s *BLS12381Suite) ScalarFromUint64(u uint64) bls12381Scalar {
	var e fr.Element
	e.SetUint64(u)
	return bls12381Scalar{e: e}
}

func (s *BLS12381Suite) ScalarRandom() (bls12381Scalar, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return bls12381Scalar{}, err
	}
	return bls12381Scalar{e: e}, nil
}

func (s *BLS12381Suite) ScalarAdd(a, b bls12381Scalar) bls12381Scalar {
	var out fr.Element
	out.Add(&a.e, &b.e)
	return bls12381Scalar{e: out}
}

func (s *BLS12381Suite) ScalarSub(a, b bls12381Scalar) bls12381Scalar {
	var out fr.Element
	out.Sub(&a.e, &b.e)
	return bls12381Scalar{e: out}
}

func (s *BLS12381Suite) ScalarMul(a, b bls12381Scalar) bls12381Scalar {
	var out fr.Element
	out.Mul(&a.e, &b.e)
	return bls12381Scalar{e: out}
}

func (s *BLS12381Suite) ScalarNeg(a bls12381Scalar) bls12381Scalar {
	var out fr.Element
	out.Neg(&a.e)
	return bls12381Scalar{e: out}
}

func (s *BLS12381Suite) ScalarInverse(a bls12381Scalar) (bls12381Scalar, error) {
	if a.e.IsZero() {
		return bls12381Scalar{}, fmt.Errorf("bls12381: inverse of zero")
	}
	var out fr.Element
	out.Inverse(&a.e)
	return bls12381Scalar{e: out}, nil
}

func (s *BLS12381Suite) ScalarIsZero(a bls12381Scalar) bool { return a.e.IsZero() }

func (s *BLS12381Suite) ScalarEqual(a, b bls12381Scalar) bool { return a.e.Equal(&b.e) }

func (s *BLS12381Suite) ScalarBytes(a bls12381Scalar) []byte {
	b := a.e.Bytes()
	return b[:]
}

func (s *BLS12381Suite) ScalarSetBytes(b []byte) (bls12381Scalar, error) {
	if len(b) != fr.Bytes {
		return bls12381Scalar{}, fmt.Errorf("bls12381: scalar must be %d bytes, got %d", fr.Bytes, len(b))
	}
	var e fr.Element
	e.SetBytes(b)
	return bls12381Scalar{e: e}, nil
}

func (s *BLS12381Suite) Identity() bls12381Point {
	return bls12381Point{a: bls12381.G1Affine{}}
}

func (s *BLS12381Suite) Generator() bls12381Point {
	_, _, g1Aff, _ := bls12381.Generators()
	return bls12381Point{a: g1Aff}
}

func (s *BLS12381Suite) PointAdd(a, b bls12381Point) bls12381Point {
	var ja, jb bls12381.G1Jac
	ja.FromAffine(&a.a)
	jb.FromAffine(&b.a)
	ja.AddAssign(&jb)
	var out bls12381.G1Affine
	out.FromJacobian(&ja)
	return bls12381Point{a: out}
}

func (s *BLS12381Suite) PointNeg(a bls12381Point) bls12381Point {
	out := a.a
	out.Y.Neg(&out.Y)
	return bls12381Point{a: out}
}

func scalarToBigInt(e fr.Element) *big.Int {
	var v big.Int
	e.BigInt(&v)
	return &v
}

func (s *BLS12381Suite) ScalarBaseMult(sc bls12381Scalar) bls12381Point {
	_, _, g1Aff, _ := bls12381.Generators()
	var out bls12381.G1Affine
	out.ScalarMultiplication(&g1Aff, scalarToBigInt(sc.e))
	return bls12381Point{a: out}
}

func (s *BLS12381Suite) ScalarMult(sc bls12381Scalar, p bls12381Point) bls12381Point {
	var out bls12381.G1Affine
	out.ScalarMultiplication(&p.a, scalarToBigInt(sc.e))
	return bls12381Point{a: out}
}

func (s *BLS12381Suite) PointEqual(a, b bls12381Point) bool {
	return a.a.Equal(&b.a)
}

func (s *BLS12381Suite) PointBytes(p bls12381Point) []byte {
	b := p.a.Bytes()
	return b[:]
}

func (s *BLS12381Suite) PointSetBytes(b []byte) (bls12381Point, error) {
	var a bls12381.G1Affine
	if _, err := a.SetBytes(b); err != nil {
		return bls12381Point{}, fmt.Errorf("bls12381: invalid point encoding: %w", err)
	}
	return bls12381Point{a: a}, nil
}

// Challenge computes H(R, Y, m) the same way the secp256k1 suite does,
// reduced mod the bls12-381 subgroup order via fr.Element.SetBytes.
func (s *BLS12381Suite) Challenge(r, y bls12381Point, m []byte) bls12381Scalar {
	digest := challengeDigest(s.PointBytes(r), s.PointBytes(y), m)
	var e fr.Element
	e.SetBytes(digest[:])
	return bls12381Scalar{e: e}
}
