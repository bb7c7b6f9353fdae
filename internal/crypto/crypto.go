// Package crypto is the crypto primitives facade (spec §4.1, component
// C1): a uniform interface to the pairing-curve operations M-Pin and
// SOK need, plus the CSPRNG they share. Every operation here takes and
// returns owned byte slices of documented length — no aliasing into
// curve internals, so the rest of the module never needs to know
// which pairing library backs it.
package crypto

import (
	"crypto/rand"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	// PFS is the pairing field size in bytes (modulus byte-length of
	// the chosen curve).
	PFS = 32
	// PGS is the pairing group size in bytes.
	PGS = 32
	// G1S is the octet length of a G1 point.
	G1S = 2*PFS + 1
	// G2S is the octet length of a G2 point.
	G2S = 4 * PFS
)

// Pass1 holds the ephemeral state produced by Client1: the blinding
// factor x, the in-progress ZK response sec, and the two blinded
// commitments sent to the server.
type Pass1 struct {
	X   []byte
	Sec []byte
	U   []byte
	UT  []byte
}

// Pass2 holds the server's challenge y and the client's response V,
// plus the second random commitment Z and its scalar R.
type Pass2 struct {
	Y []byte
	V []byte
	Z []byte
	R []byte
}

// Precompute holds the pairing precomputation used to derive the
// shared key.
type Precompute struct {
	G1 []byte
	G2 []byte
}

// Auth holds the data needed for the final shared-key derivation: the
// server's time value T, the transcript-binding hash HM, and the
// pairing precomputation.
type Auth struct {
	T       []byte
	HM      []byte
	Precomp Precompute
}

// Facade is the crypto primitives facade described in spec §4.1. It
// owns the CSPRNG (lazily created from an OS entropy source on first
// use) and delegates curve arithmetic to a Pairing implementation.
type Facade struct {
	pairing Pairing

	mu      sync.Mutex
	rngInit bool
	rng     io.Reader
	seed    func() ([]byte, error)
}

// New returns a Facade backed by the given Pairing implementation,
// seeding its CSPRNG from the OS entropy source on first use.
func New(p Pairing) *Facade {
	return &Facade{pairing: p, seed: RandomSeed}
}

// NewWithSeed returns a Facade whose CSPRNG is seeded deterministically
// — used by tests that need reproducible Pass1/Pass2 vectors.
func NewWithSeed(p Pairing, seed [32]byte) *Facade {
	s := seed
	return &Facade{pairing: p, seed: func() ([]byte, error) { return s[:], nil }}
}

// RandomSeed reads 32 bytes from the platform entropy source
// (crypto/rand, which is /dev/urandom on Unix and CryptGenRandom on
// Windows).
func RandomSeed() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, newMessageError("random_seed", err.Error())
	}
	return buf, nil
}

// createRNGOnce lazily expands the 32-byte entropy seed into the
// CSPRNG stream the rest of the facade reads from, reusing it for the
// lifetime of the Facade.
func (f *Facade) createRNGOnce() (io.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rngInit {
		return f.rng, nil
	}
	seed, err := f.seed()
	if err != nil {
		return nil, err
	}
	f.rng = hkdf.New(sha256New, seed, nil, []byte("iot-mpin-csprng"))
	f.rngInit = true
	return f.rng, nil
}

func (f *Facade) randomScalar() ([]byte, error) {
	rng, err := f.createRNGOnce()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, PGS)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, newMessageError("create_rng", err.Error())
	}
	return buf, nil
}

func (f *Facade) randomBytes(n int) ([]byte, error) {
	rng, err := f.createRNGOnce()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, newMessageError("create_rng", err.Error())
	}
	return buf, nil
}

// HashID implements hash_id: SHA-256 of id, left-padded to PFS.
func (f *Facade) HashID(id []byte) []byte {
	return hashID(id)
}

// Client1 performs the M-Pin client-side step 1: it draws a random
// blinding factor x and produces the blinded commitments U = x·H1(mpinID)
// and UT = x·H1(H(mpinID)) (date=0, so UT is produced in full form for
// wire compatibility but unused by the server).
func (f *Facade) Client1(mpinID, clientSecret []byte) (Pass1, error) {
	x, err := f.randomScalar()
	if err != nil {
		return Pass1{}, err
	}
	hid := f.pairing.HashToG1(mpinID)
	u := f.pairing.ScalarMultG1(x, hid)
	dateHid := f.pairing.HashToG1(f.HashID(mpinID))
	ut := f.pairing.ScalarMultG1(x, dateHid)
	sec := append([]byte(nil), clientSecret...)
	return Pass1{X: x, Sec: sec, U: u, UT: ut}, nil
}

// Client2 completes the zero-knowledge response: V = -(x+y)·sec.
func (f *Facade) Client2(x, y, sec []byte) []byte {
	sum := f.pairing.AddScalars(x, y)
	negSum := f.pairing.NegateScalar(sum)
	return f.pairing.ScalarMultG1(negSum, sec)
}

// G1Multiple picks a random scalar r and returns w = r·H1(hashID).
func (f *Facade) G1Multiple(hashID []byte) (w, r []byte, err error) {
	r, err = f.randomScalar()
	if err != nil {
		return nil, nil, err
	}
	hid := f.pairing.HashToG1(hashID)
	w = f.pairing.ScalarMultG1(r, hid)
	return w, r, nil
}

// HashAll binds the transcript: H(hid, U, y, V, Z, T), domain-separated
// from HashID.
func (f *Facade) HashAll(hid []byte, pass1 Pass1, pass2 Pass2, t []byte) []byte {
	h := newDomainHash(0x10)
	h.Write(hid)
	h.Write(pass1.U)
	h.Write(pass2.Y)
	h.Write(pass2.V)
	h.Write(pass2.Z)
	h.Write(t)
	return padToPFS(h.Sum(nil))
}

// Precompute performs the pairing precomputation from the stored
// client-secret token.
func (f *Facade) Precompute(token, hashID []byte) Precompute {
	hid1 := f.pairing.HashToG1(hashID)
	hid2 := f.pairing.HashToG2(hashID)
	g1 := f.pairing.Pair(token, hid2)
	g2 := f.pairing.Pair(hid1, hid2)
	return Precompute{G1: g1, G2: g2}
}

// SharedKey derives the M-Pin client key used as the PSK for TLS.
func (f *Facade) SharedKey(pass1 Pass1, pass2 Pass2, auth Auth) []byte {
	h := newDomainHash(0x11)
	h.Write(auth.Precomp.G1)
	h.Write(auth.Precomp.G2)
	h.Write(pass2.R)
	h.Write(pass1.X)
	h.Write(auth.HM)
	h.Write(auth.T)
	sum := h.Sum(nil)
	return sum[:16]
}

// RecombineG1 returns a+b in G1: used to recombine two DTA client
// secret shares into a renewed client secret.
func (f *Facade) RecombineG1(a, b []byte) []byte {
	return f.pairing.AddG1(a, b)
}

// SokEncrypt computes the AES-GCM key K = fold(e(sokSendKey, H2(to)))
// and encrypts message under it, with from as additional data and a
// random 12-byte IV.
func (f *Facade) SokEncrypt(message, sokSendKey, from, to []byte) (iv, ciphertext, tag []byte, err error) {
	if len(sokSendKey) != G1S {
		return nil, nil, nil, newMessageError("sok_encrypt",
			"invalid sokSendKey length")
	}
	h2to := f.pairing.HashToG2(to)
	gt := f.pairing.Pair(sokSendKey, h2to)
	key := f.pairing.FoldToKey(gt)

	iv, err = f.randomBytes(12)
	if err != nil {
		return nil, nil, nil, err
	}
	ciphertext, tag, err = aesGCMSeal(key, iv, from, message)
	if err != nil {
		return nil, nil, nil, newMessageError("sok_encrypt", err.Error())
	}
	return iv, ciphertext, tag, nil
}

// SokDecrypt computes K' = fold(e(H1(from), sokRecvKey)) and decrypts,
// verifying the tag.
func (f *Facade) SokDecrypt(iv, ciphertext, tag, sokRecvKey, from []byte) ([]byte, error) {
	if len(sokRecvKey) != G2S {
		return nil, newMessageError("sok_decrypt", "invalid sokRecvKey length")
	}
	h1from := f.pairing.HashToG1(from)
	gt := f.pairing.Pair(h1from, sokRecvKey)
	key := f.pairing.FoldToKey(gt)

	plaintext, err := aesGCMOpen(key, iv, from, ciphertext, tag)
	if err != nil {
		return nil, newMessageError("sok_decrypt", "tag mismatch")
	}
	return plaintext, nil
}
