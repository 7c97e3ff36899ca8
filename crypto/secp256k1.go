package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// secp256k1Order is the order of the secp256k1 base point. Scalar arithmetic
// is done with math/big reduced modulo this constant (the same pattern
// threshold-network's FROST coordinator uses: Scalar = *big.Int mod
// curve.Order()); only group-element operations go through the decred
// secp256k1 library's JacobianPoint arithmetic.
var secp256k1Order, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16,
)

type secp256k1Scalar struct{ v *big.Int }

type secp256k1Point struct{ j secp256k1.JacobianPoint }

// Secp256k1Suite is the secp256k1 instantiation of Suite, used for the
// devnet's primary foreign chain tag.
type Secp256k1Suite struct {
	tag ChainTag
}

func NewSecp256k1Suite(tag ChainTag) *Secp256k1Suite {
	return &Secp256k1Suite{tag: tag}
}

func (s *Secp256k1Suite) ChainTag() ChainTag { return s.tag }

func reduceMod(v *big.Int, order *big.Int) *big.Int {
	out := new(big.Int).Mod(v, order)
	if out.Sign() < 0 {
		out.Add(out, order)
	}
	return out
}

func (s *Secp256k1Suite) ScalarFromUint64(u uint64) secp256k1Scalar {
	return secp256k1Scalar{v: new(big.Int).SetUint64(u)}
}

func (s *Secp256k1Suite) ScalarRandom() (secp256k1Scalar, error) {
	for {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return secp256k1Scalar{}, err
		}
		v := new(big.Int).SetBytes(buf)
		if v.Sign() == 0 || v.Cmp(secp256k1Order) >= 0 {
			continue // reject and resample to avoid modulo bias
		}
		return secp256k1Scalar{v: v}, nil
	}
}

func (s *Secp256k1Suite) ScalarAdd(a, b secp256k1Scalar) secp256k1Scalar {
	return secp256k1Scalar{v: reduceMod(new(big.Int).Add(a.v, b.v), secp256k1Order)}
}

func (s *Secp256k1Suite) ScalarSub(a, b secp256k1Scalar) secp256k1Scalar {
	return secp256k1Scalar{v: reduceMod(new(big.Int).Sub(a.v, b.v), secp256k1Order)}
}

func (s *Secp256k1Suite) ScalarMul(a, b secp256k1Scalar) secp256k1Scalar {
	return secp256k1Scalar{v: reduceMod(new(big.Int).Mul(a.v, b.v), secp256k1Order)}
}

func (s *Secp256k1Suite) ScalarNeg(a secp256k1Scalar) secp256k1Scalar {
	return secp256k1Scalar{v: reduceMod(new(big.Int).Neg(a.v), secp256k1Order)}
}

func (s *Secp256k1Suite) ScalarInverse(a secp256k1Scalar) (secp256k1Scalar, error) {
	if a.v.Sign() == 0 {
		return secp256k1Scalar{}, fmt.Errorf("secp256k1: inverse of zero")
	}
	return secp256k1Scalar{v: reduceMod(new(big.Int).ModInverse(a.v, secp256k1Order), secp256k1Order)}, nil
}

func (s *Secp256k1Suite) ScalarIsZero(a secp256k1Scalar) bool { return a.v.Sign() == 0 }

func (s *Secp256k1Suite) ScalarEqual(a, b secp256k1Scalar) bool { return a.v.Cmp(b.v) == 0 }

func (s *Secp256k1Suite) ScalarBytes(a secp256k1Scalar) []byte {
	out := make([]byte, 32)
	reduceMod(a.v, secp256k1Order).FillBytes(out)
	return out
}

func (s *Secp256k1Suite) ScalarSetBytes(b []byte) (secp256k1Scalar, error) {
	if len(b) != 32 {
		return secp256k1Scalar{}, fmt.Errorf("secp256k1: scalar must be 32 bytes, got %d", len(b))
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(secp256k1Order) >= 0 {
		return secp256k1Scalar{}, fmt.Errorf("secp256k1: scalar not reduced mod order")
	}
	return secp256k1Scalar{v: v}, nil
}

func bigToModNScalar(v *big.Int) secp256k1.ModNScalar {
	var out secp256k1.ModNScalar
	b := make([]byte, 32)
	reduceMod(v, secp256k1Order).FillBytes(b)
	out.SetByteSlice(b)
	return out
}

func (s *Secp256k1Suite) Identity() secp256k1Point {
	var j secp256k1.JacobianPoint
	j.X.SetInt(0)
	j.Y.SetInt(0)
	j.Z.SetInt(0)
	return secp256k1Point{j: j}
}

func (s *Secp256k1Suite) Generator() secp256k1Point {
	one := bigToModNScalar(big.NewInt(1))
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&one, &result)
	result.ToAffine()
	return secp256k1Point{j: result}
}

func isIdentity(j *secp256k1.JacobianPoint) bool {
	return j.X.IsZero() && j.Y.IsZero() && j.Z.IsZero()
}

func (s *Secp256k1Suite) PointAdd(a, b secp256k1Point) secp256k1Point {
	if isIdentity(&a.j) {
		return b
	}
	if isIdentity(&b.j) {
		return a
	}
	var result secp256k1.JacobianPoint
	secp256k1.AddNonConst(&a.j, &b.j, &result)
	result.ToAffine()
	return secp256k1Point{j: result}
}

func (s *Secp256k1Suite) PointNeg(a secp256k1Point) secp256k1Point {
	if isIdentity(&a.j) {
		return a
	}
	out := a.j
	out.Y.Negate(1).Normalize()
	return secp256k1Point{j: out}
}

func (s *Secp256k1Suite) ScalarBaseMult(sc secp256k1Scalar) secp256k1Point {
	k := bigToModNScalar(sc.v)
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &result)
	result.ToAffine()
	return secp256k1Point{j: result}
}

func (s *Secp256k1Suite) ScalarMult(sc secp256k1Scalar, p secp256k1Point) secp256k1Point {
	if isIdentity(&p.j) {
		return p
	}
	k := bigToModNScalar(sc.v)
	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&k, &p.j, &result)
	result.ToAffine()
	return secp256k1Point{j: result}
}

func (s *Secp256k1Suite) PointEqual(a, b secp256k1Point) bool {
	if isIdentity(&a.j) || isIdentity(&b.j) {
		return isIdentity(&a.j) == isIdentity(&b.j)
	}
	return a.j.X.Equals(&b.j.X) && a.j.Y.Equals(&b.j.Y)
}

func (s *Secp256k1Suite) PointBytes(p secp256k1Point) []byte {
	if isIdentity(&p.j) {
		return []byte{0x00}
	}
	pub := secp256k1.NewPublicKey(&p.j.X, &p.j.Y)
	return pub.SerializeCompressed()
}

func (s *Secp256k1Suite) PointSetBytes(b []byte) (secp256k1Point, error) {
	if len(b) == 1 && b[0] == 0x00 {
		return s.Identity(), nil
	}
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return secp256k1Point{}, fmt.Errorf("secp256k1: invalid point encoding: %w", err)
	}
	var j secp256k1.JacobianPoint
	pub.AsJacobian(&j)
	return secp256k1Point{j: j}, nil
}

// Challenge computes H(R, Y, m) = SHA3-256(R_bytes || Y_bytes || m) reduced
// mod the scalar order, the deterministic challenge hash of spec §4.2.
func (s *Secp256k1Suite) Challenge(r, y secp256k1Point, m []byte) secp256k1Scalar {
	digest := challengeDigest(s.PointBytes(r), s.PointBytes(y), m)
	v := new(big.Int).SetBytes(digest[:])
	return secp256k1Scalar{v: reduceMod(v, secp256k1Order)}
}
