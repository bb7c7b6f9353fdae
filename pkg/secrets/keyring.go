// Package secrets provides optional at-rest encryption for the
// identity file (spec §6), adapted from the teacher's pkg/crypto
// master-key AES-GCM helper: same cipher and envelope shape, but keyed
// by a passphrase-derived key instead of a process-wide master key, so
// a lost or stolen identity file on disk is useless without the
// passphrase that sealed it.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1

	keySize = 32
)

// Keyring seals and opens identity-file contents with a single
// passphrase-derived AES-256-GCM key. It holds no reference to the
// passphrase itself once derived.
type Keyring struct {
	key [keySize]byte
}

// NewKeyring derives a Keyring's key from passphrase and salt via
// scrypt. salt should be random and persisted alongside the encrypted
// file (GenerateSalt produces one); the same (passphrase, salt) pair
// always yields the same key.
func NewKeyring(passphrase string, salt []byte) (*Keyring, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("secrets: passphrase must not be empty")
	}
	derived, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("secrets: deriving key: %w", err)
	}
	k := &Keyring{}
	copy(k.key[:], derived)
	return k, nil
}

// GenerateSalt returns a fresh random scrypt salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("secrets: generating salt: %w", err)
	}
	return salt, nil
}

// Seal encrypts plaintext and returns a base64 envelope (nonce
// prepended to ciphertext, as the teacher's pkg/crypto does), suitable
// for writing directly as the whole contents of an identity file.
func (k *Keyring) Seal(plaintext []byte) (string, error) {
	gcm, err := k.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: generating nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. It fails if the passphrase used to build k does
// not match the one the envelope was sealed with.
func (k *Keyring) Open(envelope string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("secrets: decoding envelope: %w", err)
	}

	gcm, err := k.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("secrets: envelope shorter than nonce")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("secrets: opening envelope: wrong passphrase or corrupt data: %w", err)
	}
	return plaintext, nil
}

func (k *Keyring) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(k.key[:])
	if err != nil {
		return nil, fmt.Errorf("secrets: building cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: building AEAD: %w", err)
	}
	return gcm, nil
}
