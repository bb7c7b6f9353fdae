// Package sok implements the SOK private-messaging envelope (spec
// §4.3, component C3): identity-based AES-GCM encryption keyed
// directly off peer user IDs, and the JSON wire shape private
// messages travel in over the broker.
package sok

import (
	"encoding/json"
	"fmt"

	"github.com/user/iotmpinclient/internal/crypto"
	"github.com/user/iotmpinclient/internal/wire"
)

// Envelope is the JSON document a private message is carried in.
// Encrypted=true requires IV/Ciphertext/Tag; Encrypted=false requires
// Data instead.
type Envelope struct {
	From       string `json:"from"`
	Encrypted  bool   `json:"encrypted"`
	IV         string `json:"iv,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Data       string `json:"data,omitempty"`
}

// Serialize produces the wire envelope for a message from "from" to
// "to". When encrypt is true and sokSendKey is non-empty, the message
// is sealed with sok_encrypt; otherwise it travels as plaintext in the
// data field.
func Serialize(facade *crypto.Facade, from, plaintext []byte, encrypt bool, sokSendKey, to []byte) ([]byte, error) {
	env := Envelope{From: string(from)}

	if encrypt && len(sokSendKey) > 0 {
		iv, ciphertext, tag, err := facade.SokEncrypt(plaintext, sokSendKey, from, to)
		if err != nil {
			return nil, err
		}
		env.Encrypted = true
		env.IV = wire.HexEncode(iv)
		env.Ciphertext = wire.HexEncode(ciphertext)
		env.Tag = wire.HexEncode(tag)
	} else {
		env.Encrypted = false
		env.Data = string(plaintext)
	}

	return json.Marshal(env)
}

// Parse decodes a wire envelope and, if encrypted, decrypts its
// payload using sokRecvKey. The returned "from" is the sender user ID
// the envelope carried.
func Parse(facade *crypto.Facade, data []byte, sokRecvKey []byte) (from string, plaintext []byte, err error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("sok: envelope is not valid JSON: %w", err)
	}
	if env.From == "" {
		return "", nil, &wire.JSONError{Message: "sok: envelope missing required field \"from\""}
	}

	if !env.Encrypted {
		return env.From, []byte(env.Data), nil
	}

	if env.IV == "" || env.Ciphertext == "" || env.Tag == "" {
		return "", nil, &wire.JSONError{Message: "sok: encrypted envelope missing iv/ciphertext/tag"}
	}

	iv := wire.HexDecode(env.IV)
	ciphertext := wire.HexDecode(env.Ciphertext)
	tag := wire.HexDecode(env.Tag)

	plaintext, err = facade.SokDecrypt(iv, ciphertext, tag, sokRecvKey, []byte(env.From))
	if err != nil {
		return "", nil, err
	}
	return env.From, plaintext, nil
}

// PrivateTopic returns the canonical private-message topic for a user
// ID: hex(userID) + "/pm".
func PrivateTopic(userID []byte) string {
	return wire.HexEncode(userID) + "/pm"
}
