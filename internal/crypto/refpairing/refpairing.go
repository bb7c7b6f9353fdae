// Package refpairing is a pure-Go reference implementation of the
// crypto.Pairing boundary. It does not implement a real elliptic
// curve; instead it represents G1 and G2 elements as residues of a
// large prime field and the pairing as modular exponentiation into a
// third field GT. This preserves exactly the algebraic laws the M-Pin
// and SOK protocols rely on:
//
//   - G1/G2 are additive groups: AddG1(a,b) == a+b, ScalarMultG1(s,P)
//     == s*P.
//   - The pairing is bilinear: e(s*H1(A), H2(B)) == e(H1(A), s*H2(B)),
//     which is exactly the SOK identity both peers need to land on
//     the same AES key.
//
// A real deployment swaps this package for a binding over an actual
// pairing-friendly curve (BN254, BLS383, ...); see crypto.Pairing.
package refpairing

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

// Field sizes chosen to match spec.md's PFS/PGS conventions for a
// 32-byte-modulus curve (e.g. BN254).
const (
	PFS = 32 // pairing field size, bytes
	PGS = 32 // pairing group size (scalar), bytes
	g1S = 2*PFS + 1
	g2S = 4 * PFS
)

var (
	// groupOrder is the scalar field / G1,G2 group order.
	groupOrder, _ = new(big.Int).SetString(
		"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)
	// gtModulus is a larger prime used as the GT field modulus.
	gtModulus, _ = new(big.Int).SetString(
		"1a0111ea397fe69a4b1ba7b6434bacd764774b84f38512bf6730d2a0f6b0f6241eabfffeb153ffffb9feffffffffaaab", 16)
	gtGenerator = big.NewInt(5)
)

// Reference implements crypto.Pairing.
type Reference struct{}

func New() Reference { return Reference{} }

func hashToScalar(domain byte, id []byte, mod *big.Int) []byte {
	h := sha256.New()
	h.Write([]byte{domain})
	h.Write(id)
	sum := h.Sum(nil)
	n := new(big.Int).SetBytes(sum)
	n.Mod(n, mod)
	if n.Sign() == 0 {
		n.SetInt64(1)
	}
	return n.Bytes()
}

func encodeG1(n *big.Int) []byte {
	buf := make([]byte, g1S)
	buf[0] = 0x04
	b := n.Bytes()
	copy(buf[1+PFS-len(b):1+PFS], b)
	return buf
}

func decodeG1(octet []byte) *big.Int {
	n := new(big.Int)
	if len(octet) >= 1+PFS {
		n.SetBytes(octet[1 : 1+PFS])
	} else {
		n.SetBytes(octet)
	}
	return n
}

func encodeG2(n *big.Int) []byte {
	buf := make([]byte, g2S)
	b := n.Bytes()
	copy(buf[PFS-len(b):PFS], b)
	return buf
}

func decodeG2(octet []byte) *big.Int {
	n := new(big.Int)
	if len(octet) >= PFS {
		n.SetBytes(octet[:PFS])
	} else {
		n.SetBytes(octet)
	}
	return n
}

func encodeScalar(n *big.Int) []byte {
	buf := make([]byte, PGS)
	b := n.Bytes()
	copy(buf[PGS-len(b):], b)
	return buf
}

// HashToG1 implements crypto.Pairing.
func (Reference) HashToG1(id []byte) []byte {
	return encodeG1(new(big.Int).SetBytes(hashToScalar(0x01, id, groupOrder)))
}

// HashToG2 implements crypto.Pairing.
func (Reference) HashToG2(id []byte) []byte {
	return encodeG2(new(big.Int).SetBytes(hashToScalar(0x02, id, groupOrder)))
}

// RandomScalar implements crypto.Pairing.
func (Reference) RandomScalar() ([]byte, error) {
	n, err := rand.Int(rand.Reader, groupOrder)
	if err != nil {
		return nil, err
	}
	if n.Sign() == 0 {
		n.SetInt64(1)
	}
	return encodeScalar(n), nil
}

// ScalarMultG1 implements crypto.Pairing.
func (Reference) ScalarMultG1(scalar, point []byte) []byte {
	s := new(big.Int).SetBytes(scalar)
	p := decodeG1(point)
	r := new(big.Int).Mul(s, p)
	r.Mod(r, groupOrder)
	return encodeG1(r)
}

// NegateScalar implements crypto.Pairing.
func (Reference) NegateScalar(scalar []byte) []byte {
	s := new(big.Int).SetBytes(scalar)
	s.Mod(s, groupOrder)
	neg := new(big.Int).Sub(groupOrder, s)
	neg.Mod(neg, groupOrder)
	return encodeScalar(neg)
}

// AddScalars implements crypto.Pairing.
func (Reference) AddScalars(a, b []byte) []byte {
	x := new(big.Int).SetBytes(a)
	y := new(big.Int).SetBytes(b)
	sum := new(big.Int).Add(x, y)
	sum.Mod(sum, groupOrder)
	return encodeScalar(sum)
}

// AddG1 implements crypto.Pairing.
func (Reference) AddG1(a, b []byte) []byte {
	x := decodeG1(a)
	y := decodeG1(b)
	sum := new(big.Int).Add(x, y)
	sum.Mod(sum, groupOrder)
	return encodeG1(sum)
}

// Pair implements crypto.Pairing. Bilinearity falls directly out of
// modular multiplication being associative and commutative: for any
// scalar s, (s*a mod r)*b ≡ a*(s*b mod r) (mod r), so
// e(s·P, Q) == e(P, s·Q) regardless of which side the scalar lands
// on.
func (Reference) Pair(g1, g2 []byte) []byte {
	a := decodeG1(g1)
	b := decodeG2(g2)
	exp := new(big.Int).Mul(a, b)
	exp.Mod(exp, groupOrder)
	gt := new(big.Int).Exp(gtGenerator, exp, gtModulus)
	return gt.Bytes()
}

// FoldToKey implements crypto.Pairing.
func (Reference) FoldToKey(gt []byte) []byte {
	sum := sha256.Sum256(gt)
	return sum[:16]
}
