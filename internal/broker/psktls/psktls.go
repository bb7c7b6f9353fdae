// Package psktls is a reference stand-in for a PSK-TLS transport
// (spec §4.4): a pre-shared-key secured stream, keyed off the M-Pin
// shared secret, used to reach the broker. Go's standard crypto/tls
// does not expose the TLS PSK cipher suites (RFC 4279/8446 PSK binder
// support), and paho.mqtt.golang dials only plain TCP or stdlib TLS,
// so a real deployment needs a PSK-capable handshake underneath it.
//
// This package is NOT a full TLS-PSK implementation — it performs a
// minimal identity/nonce exchange, derives a session key via HKDF over
// the PSK, and frames the rest of the stream as length-prefixed
// AES-GCM records. It exists so the broker adapter has a concrete
// net.Conn to hand paho via a custom dial hook; swapping in a real
// PSK-TLS stack (e.g. a cgo binding to mbed TLS or OpenSSL's PSK
// callbacks) means replacing this package without touching
// internal/broker.
package psktls

import (
	"bufio"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/hkdf"
)

func sha256New() hash.Hash { return sha256.New() }

const (
	nonceSize  = 16
	maxRecord  = 1 << 16
	handshakeDeadline = 10 * time.Second
)

// Config carries the pre-shared key material for a PSK session: the
// key itself (the M-Pin shared_secret) and the identity hint sent to
// the peer (hex(client_id) per spec §4.4).
type Config struct {
	PSK    []byte
	PSKIdentity string
}

// Dial opens a TCP connection to addr and performs the PSK handshake,
// returning a net.Conn whose Read/Write transparently encrypt and
// decrypt AES-GCM records.
func Dial(ctx context.Context, network, addr string, cfg Config) (net.Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("psktls: dial %s: %w", addr, err)
	}

	conn, err := handshake(raw, cfg, true)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// Listener wraps a net.Listener so Accept returns handshaked *Conn
// values — used by tests that need a PSK-TLS broker stand-in to dial
// against.
type Listener struct {
	net.Listener
	cfg Config
}

// NewListener returns a Listener that performs the server side of the
// handshake on Accept.
func NewListener(inner net.Listener, cfg Config) *Listener {
	return &Listener{Listener: inner, cfg: cfg}
}

func (l *Listener) Accept() (net.Conn, error) {
	raw, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	conn, err := handshake(raw, l.cfg, false)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// handshake performs the client or server half of the PSK exchange:
// each side sends a random nonce and (if client) the PSK identity
// hint; both derive the same session key via
// HKDF(psk, clientNonce||serverNonce, "psktls-session-key"). The
// identity hint is not mixed into the key.
func handshake(raw net.Conn, cfg Config, isClient bool) (*Conn, error) {
	raw.SetDeadline(time.Now().Add(handshakeDeadline))
	defer raw.SetDeadline(time.Time{})

	var clientNonce, serverNonce [nonceSize]byte

	if isClient {
		if _, err := io.ReadFull(rand.Reader, clientNonce[:]); err != nil {
			return nil, fmt.Errorf("psktls: generating client nonce: %w", err)
		}
		if err := writeIdentityAndNonce(raw, cfg.PSKIdentity, clientNonce[:]); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(raw, serverNonce[:]); err != nil {
			return nil, fmt.Errorf("psktls: reading server nonce: %w", err)
		}
	} else {
		identity, err := readIdentityAndNonce(raw, clientNonce[:])
		if err != nil {
			return nil, err
		}
		_ = identity // the server side logs/validates identity hints out of band
		if _, err := io.ReadFull(rand.Reader, serverNonce[:]); err != nil {
			return nil, fmt.Errorf("psktls: generating server nonce: %w", err)
		}
		if _, err := raw.Write(serverNonce[:]); err != nil {
			return nil, fmt.Errorf("psktls: writing server nonce: %w", err)
		}
	}

	salt := append(append([]byte{}, clientNonce[:]...), serverNonce[:]...)
	kdf := hkdf.New(sha256New, cfg.PSK, salt, []byte("psktls-session-key"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("psktls: deriving session key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("psktls: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("psktls: %w", err)
	}

	return &Conn{
		Conn:   raw,
		aead:   aead,
		reader: bufio.NewReader(raw),
		sendCounter: writeCounter(isClient),
		recvCounter: writeCounter(!isClient),
	}, nil
}

// writeCounter seeds the nonce counter so the two directions of the
// stream never reuse a GCM nonce: the client's sends start at 0 with
// bit 0 clear, the server's at 1 with bit 0 set.
func writeCounter(isClientDirection bool) uint64 {
	if isClientDirection {
		return 0
	}
	return 1
}

func writeIdentityAndNonce(w io.Writer, identity string, nonce []byte) error {
	idBytes := []byte(identity)
	header := make([]byte, 2+len(idBytes)+len(nonce))
	binary.BigEndian.PutUint16(header[:2], uint16(len(idBytes)))
	copy(header[2:], idBytes)
	copy(header[2+len(idBytes):], nonce)
	_, err := w.Write(header)
	return err
}

func readIdentityAndNonce(r io.Reader, nonce []byte) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("psktls: reading identity length: %w", err)
	}
	idLen := binary.BigEndian.Uint16(lenBuf[:])
	idBytes := make([]byte, idLen)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return "", fmt.Errorf("psktls: reading identity: %w", err)
	}
	if _, err := io.ReadFull(r, nonce); err != nil {
		return "", fmt.Errorf("psktls: reading client nonce: %w", err)
	}
	return string(idBytes), nil
}

// Conn is a net.Conn that encrypts every Write and decrypts every Read
// as a length-prefixed AES-GCM record.
type Conn struct {
	net.Conn
	aead        cipher.AEAD
	reader      *bufio.Reader
	sendCounter uint64
	recvCounter uint64
	pending     []byte
}

func (c *Conn) nonceFor(counter uint64) []byte {
	n := make([]byte, c.aead.NonceSize())
	binary.BigEndian.PutUint64(n[len(n)-8:], counter)
	return n
}

// Write encrypts p as a single record (or several, if p exceeds
// maxRecord) and writes it length-prefixed to the underlying conn.
func (c *Conn) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxRecord {
			chunk = chunk[:maxRecord]
		}
		sealed := c.aead.Seal(nil, c.nonceFor(c.sendCounter), chunk, nil)
		c.sendCounter += 2

		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sealed)))
		if _, err := c.Conn.Write(lenBuf[:]); err != nil {
			return total, err
		}
		if _, err := c.Conn.Write(sealed); err != nil {
			return total, err
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

// Read returns decrypted record bytes, buffering any surplus for the
// next call the way a stream reader must.
func (c *Conn) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		var lenBuf [4]byte
		if _, err := io.ReadFull(c.reader, lenBuf[:]); err != nil {
			return 0, err
		}
		recordLen := binary.BigEndian.Uint32(lenBuf[:])
		if recordLen > maxRecord+uint32(c.aead.Overhead()) {
			return 0, fmt.Errorf("psktls: record length %d exceeds maximum", recordLen)
		}
		sealed := make([]byte, recordLen)
		if _, err := io.ReadFull(c.reader, sealed); err != nil {
			return 0, err
		}
		plain, err := c.aead.Open(nil, c.nonceFor(c.recvCounter), sealed, nil)
		if err != nil {
			return 0, fmt.Errorf("psktls: record authentication failed: %w", err)
		}
		c.recvCounter += 2
		c.pending = plain
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}
