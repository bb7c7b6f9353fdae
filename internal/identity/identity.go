// Package identity models the long-term device identity (spec §3):
// the opaque mpin_id blob, the M-Pin client secret, the DTA list, and
// the optional SOK pairing keys.
package identity

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/user/iotmpinclient/internal/wire"
)

// Identity is the long-term identity persisted by the application.
type Identity struct {
	MPinID       []byte
	ClientSecret []byte
	DTAList      []string
	SokSendKey   []byte // optional, G1 octet
	SokRecvKey   []byte // optional, G2 octet
}

// wireFormat mirrors the identity file / configuration JSON documented
// in spec §6: all binary fields are lowercase hex.
type wireFormat struct {
	MPinID       string   `json:"mpin_id"`
	ClientSecret string   `json:"client_secret"`
	DTA          []string `json:"dta"`
	SokSendKey   string   `json:"sokSendKey,omitempty"`
	SokRecvKey   string   `json:"sokRecvKey,omitempty"`
}

// MarshalJSON implements json.Marshaler per the wire format in spec §6.
func (id *Identity) MarshalJSON() ([]byte, error) {
	w := wireFormat{
		MPinID:       wire.HexEncode(id.MPinID),
		ClientSecret: wire.HexEncode(id.ClientSecret),
		DTA:          id.DTAList,
	}
	if len(id.SokSendKey) > 0 {
		w.SokSendKey = wire.HexEncode(id.SokSendKey)
	}
	if len(id.SokRecvKey) > 0 {
		w.SokRecvKey = wire.HexEncode(id.SokRecvKey)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler per the wire format in
// spec §6.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var w wireFormat
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id.MPinID = wire.HexDecode(w.MPinID)
	id.ClientSecret = wire.HexDecode(w.ClientSecret)
	id.DTAList = w.DTA
	if w.SokSendKey != "" {
		id.SokSendKey = wire.HexDecode(w.SokSendKey)
	}
	if w.SokRecvKey != "" {
		id.SokRecvKey = wire.HexDecode(w.SokRecvKey)
	}
	return nil
}

// UserID extracts the stable user identifier from the mpin_id JSON
// document's userID field (spec §3).
func (id *Identity) UserID() (string, error) {
	v, err := wire.ParseObject(id.MPinID)
	if err != nil {
		return "", fmt.Errorf("identity: mpin_id is not valid JSON: %w", err)
	}
	return v.String("userID")
}

// Validate enforces the byte-length invariants from spec §3 for a
// curve whose pairing field size is pfs bytes.
func (id *Identity) Validate(pfs int) error {
	if _, err := id.UserID(); err != nil {
		return err
	}
	g1s := 2*pfs + 1
	g2s := 4 * pfs
	if len(id.ClientSecret) != g1s {
		return fmt.Errorf("identity: client_secret length = %d, want %d", len(id.ClientSecret), g1s)
	}
	if len(id.SokSendKey) != 0 && len(id.SokSendKey) != g1s {
		return fmt.Errorf("identity: sokSendKey length = %d, want %d or absent", len(id.SokSendKey), g1s)
	}
	if len(id.SokRecvKey) != 0 && len(id.SokRecvKey) != g2s {
		return fmt.Errorf("identity: sokRecvKey length = %d, want %d or absent", len(id.SokRecvKey), g2s)
	}
	return nil
}

// LoadFile reads and decodes an identity document from path. The file
// may be a plain JSON document per the wire format above, or — when
// decrypt is non-nil — an at-rest-encrypted envelope that decrypt
// opens to recover that JSON (see pkg/secrets.Keyring.Open).
func LoadFile(path string, decrypt func([]byte) ([]byte, error)) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: reading %s: %w", path, err)
	}
	if decrypt != nil {
		raw, err = decrypt(raw)
		if err != nil {
			return nil, fmt.Errorf("identity: decrypting %s: %w", path, err)
		}
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("identity: decoding %s: %w", path, err)
	}
	return &id, nil
}

// SaveFile writes id to path as JSON, optionally sealing it first when
// encrypt is non-nil (see pkg/secrets.Keyring.Seal).
func SaveFile(path string, id *Identity, encrypt func([]byte) ([]byte, error)) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("identity: encoding: %w", err)
	}
	if encrypt != nil {
		raw, err = encrypt(raw)
		if err != nil {
			return fmt.Errorf("identity: encrypting: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("identity: writing %s: %w", path, err)
	}
	return nil
}

// WithRenewal returns a copy of id with mpin_id, client_secret, and
// dta replaced, carrying the SOK keys over verbatim — the shape spec
// §4.2's identity renewal produces.
func (id *Identity) WithRenewal(mpinID, clientSecret []byte, dtaList []string) *Identity {
	return &Identity{
		MPinID:       mpinID,
		ClientSecret: clientSecret,
		DTAList:      dtaList,
		SokSendKey:   id.SokSendKey,
		SokRecvKey:   id.SokRecvKey,
	}
}
