package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"hash"
)

func sha256New() hash.Hash {
	return sha256.New()
}

// hashID implements the hash_id operation: SHA-256 of id, left-padded
// to PFS bytes.
func hashID(id []byte) []byte {
	sum := sha256.Sum256(id)
	return padToPFS(sum[:])
}

func padToPFS(b []byte) []byte {
	if len(b) >= PFS {
		return b[:PFS]
	}
	out := make([]byte, PFS)
	copy(out[PFS-len(b):], b)
	return out
}

// newDomainHash returns a SHA-256 state pre-seeded with a
// single-byte domain separator, so HashAll and SharedKey never collide
// with HashID or with each other even on identical inputs.
func newDomainHash(domain byte) hash.Hash {
	h := sha256.New()
	h.Write([]byte{domain})
	return h
}

func aesGCMSeal(key, iv, additionalData, plaintext []byte) (ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, additionalData)
	tagSize := gcm.Overhead()
	ciphertext = sealed[:len(sealed)-tagSize]
	tag = sealed[len(sealed)-tagSize:]
	return ciphertext, tag, nil
}

func aesGCMOpen(key, iv, additionalData, ciphertext, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, err
	}
	sealed := append(append([]byte(nil), ciphertext...), tag...)
	return gcm.Open(nil, iv, sealed, additionalData)
}
