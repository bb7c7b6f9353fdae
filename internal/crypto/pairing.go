package crypto

// Pairing is the boundary to the pairing-curve arithmetic (BN/BLS
// curves, G1, G2, F12, ate pairing, hash-to-curve) that spec.md §1
// explicitly marks out of scope: "assumed available as a primitive
// library". Everything above this interface — M-Pin's three-pass
// exchange and the SOK envelope — only ever touches owned byte
// slices of the documented lengths; it never reasons about curve
// internals directly.
//
// Production deployments plug in a binding over a real pairing
// library (e.g. a CGO wrapper around an AMCL/Milagro-style curve
// implementation). The module ships refpairing.Reference, a pure-Go
// stand-in, so the rest of the module, and its tests, do not
// depend on CGO or an external curve library.
type Pairing interface {
	// HashToG1 maps an identity string to a point in G1, returned as
	// a G1S-byte octet (G1S = 2*PFS+1).
	HashToG1(id []byte) []byte

	// HashToG2 maps an identity string to a point in G2, returned as
	// a G2S-byte octet (G2S = 4*PFS).
	HashToG2(id []byte) []byte

	// RandomScalar returns a random element of the scalar field, PGS
	// bytes long.
	RandomScalar() ([]byte, error)

	// ScalarMultG1 computes scalar*point in G1.
	ScalarMultG1(scalar, point []byte) []byte

	// NegateScalar returns -scalar in the scalar field.
	NegateScalar(scalar []byte) []byte

	// AddScalars returns a+b in the scalar field.
	AddScalars(a, b []byte) []byte

	// AddG1 computes a+b in G1 (used to recombine DTA client-secret
	// shares).
	AddG1(a, b []byte) []byte

	// Pair computes the ate pairing e(g1, g2) and returns the GT
	// element's canonical byte encoding.
	Pair(g1, g2 []byte) []byte

	// FoldToKey derives a 16-byte AES key from a GT element, folding
	// its F12/F4 coefficients the way MPIN_CLIENT_KEY and SOK_PAIR1/2
	// do.
	FoldToKey(gt []byte) []byte
}
