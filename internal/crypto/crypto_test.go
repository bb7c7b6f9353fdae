package crypto

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/user/iotmpinclient/internal/crypto/refpairing"
)

// refGroupOrder mirrors refpairing's own (unexported) group order,
// used only to synthesize a matching (sendKey, recvKey) pair for the
// SOK tests below — in production these are issued by the identity's
// key server, not derived locally.
var refGroupOrder, _ = new(big.Int).SetString(
	"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)

// sokKeyPair derives a (sendKey, recvKey) pair satisfying the SOK
// pairing identity e(s*H1(from), H2(to)) == e(H1(from), s*H2(to)) for
// the same scalar s: sendKey = s*H1(from) (an ordinary G1 scalar
// multiplication), recvKey = s*H2(to) computed directly as a scalar
// product over the G2 encoding's big-endian value, since ScalarMultG1
// always treats its point operand as G1-shaped and would silently
// mis-decode a G2 point.
func sokKeyPair(t *testing.T, p Pairing, from, to []byte) (sendKey, recvKey []byte) {
	t.Helper()

	s, err := New(p).randomScalar()
	if err != nil {
		t.Fatalf("randomScalar: %v", err)
	}
	sendKey = p.ScalarMultG1(s, p.HashToG1(from))

	h2to := p.HashToG2(to)
	h2Scalar := new(big.Int).SetBytes(h2to[:PFS])
	scalar := new(big.Int).SetBytes(s)
	product := new(big.Int).Mul(scalar, h2Scalar)
	product.Mod(product, refGroupOrder)

	recvKey = make([]byte, G2S)
	b := product.Bytes()
	copy(recvKey[PFS-len(b):PFS], b)

	return sendKey, recvKey
}

func TestClient1ProducesDocumentedLengths(t *testing.T) {
	f := New(refpairing.New())
	mpinID := []byte(`{"userID":"alice@example"}`)
	clientSecret := bytes.Repeat([]byte{0x01}, G1S)

	pass1, err := f.Client1(mpinID, clientSecret)
	if err != nil {
		t.Fatalf("Client1: %v", err)
	}
	if len(pass1.X) != PGS {
		t.Errorf("x length = %d, want %d", len(pass1.X), PGS)
	}
	if len(pass1.U) != G1S {
		t.Errorf("U length = %d, want %d", len(pass1.U), G1S)
	}
	if len(pass1.UT) != G1S {
		t.Errorf("UT length = %d, want %d", len(pass1.UT), G1S)
	}
}

func TestSharedKeyDeterministicForMatchingTranscript(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	f := NewWithSeed(refpairing.New(), seed)

	mpinID := []byte(`{"userID":"alice@example"}`)
	clientSecret := bytes.Repeat([]byte{0x02}, G1S)
	clientID := f.HashID(mpinID)

	pass1, err := f.Client1(mpinID, clientSecret)
	if err != nil {
		t.Fatalf("Client1: %v", err)
	}

	y, err := f.randomScalar()
	if err != nil {
		t.Fatalf("randomScalar: %v", err)
	}
	v := f.Client2(pass1.X, y, pass1.Sec)
	z, r, err := f.G1Multiple(clientID)
	if err != nil {
		t.Fatalf("G1Multiple: %v", err)
	}
	pass2 := Pass2{Y: y, V: v, Z: z, R: r}

	tVal := []byte("server-time-value")
	hm := f.HashAll(clientID, pass1, pass2, tVal)
	precomp := f.Precompute(clientSecret, clientID)
	auth := Auth{T: tVal, HM: hm, Precomp: precomp}

	key1 := f.SharedKey(pass1, pass2, auth)
	key2 := f.SharedKey(pass1, pass2, auth)
	if !bytes.Equal(key1, key2) {
		t.Fatal("SharedKey is not deterministic for an identical transcript")
	}
	if len(key1) != 16 {
		t.Fatalf("SharedKey length = %d, want 16", len(key1))
	}

	// Invariant 1: changing any single transcript element must
	// change the derived key.
	hm2 := f.HashAll(clientID, pass1, pass2, []byte("different-time-value"))
	auth2 := Auth{T: tVal, HM: hm2, Precomp: precomp}
	key3 := f.SharedKey(pass1, pass2, auth2)
	if bytes.Equal(key1, key3) {
		t.Fatal("SharedKey did not change when the transcript changed")
	}
}

func TestRecombineG1IsAdditive(t *testing.T) {
	p := refpairing.New()
	f := New(p)

	share1, err := f.randomScalar()
	if err != nil {
		t.Fatal(err)
	}
	share2, err := f.randomScalar()
	if err != nil {
		t.Fatal(err)
	}
	g1Share1 := p.ScalarMultG1(share1, p.HashToG1([]byte("dta-point")))
	g1Share2 := p.ScalarMultG1(share2, p.HashToG1([]byte("dta-point")))

	recombined := f.RecombineG1(g1Share1, g1Share2)
	expectedScalar := p.AddScalars(share1, share2)
	expected := p.ScalarMultG1(expectedScalar, p.HashToG1([]byte("dta-point")))

	if !bytes.Equal(recombined, expected) {
		t.Fatal("RecombineG1(a,b) != (scalarA+scalarB)*basepoint")
	}
}

func TestSokRoundTrip(t *testing.T) {
	p := refpairing.New()
	f := New(p)

	from := []byte("alice")
	to := []byte("bob")
	sendKey, recvKey := sokKeyPair(t, p, from, to)

	msg := []byte("hello")
	iv, ct, tag, err := f.SokEncrypt(msg, sendKey, from, to)
	if err != nil {
		t.Fatalf("SokEncrypt: %v", err)
	}

	plain, err := f.SokDecrypt(iv, ct, tag, recvKey, from)
	if err != nil {
		t.Fatalf("SokDecrypt: %v", err)
	}
	if !bytes.Equal(plain, msg) {
		t.Fatalf("round trip mismatch: got %q, want %q", plain, msg)
	}
}

func TestSokDecryptTagTamperFails(t *testing.T) {
	p := refpairing.New()
	f := New(p)

	from := []byte("alice")
	to := []byte("bob")
	sendKey, recvKey := sokKeyPair(t, p, from, to)

	iv, ct, tag, err := f.SokEncrypt([]byte("hello"), sendKey, from, to)
	if err != nil {
		t.Fatal(err)
	}
	ct[len(ct)-1] ^= 0xff

	if _, err := f.SokDecrypt(iv, ct, tag, recvKey, from); err == nil {
		t.Fatal("expected tag mismatch error after tampering with ciphertext")
	}
}
