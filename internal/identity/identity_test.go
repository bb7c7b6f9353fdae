package identity

import (
	"bytes"
	"encoding/json"
	"testing"
)

func validIdentity() *Identity {
	return &Identity{
		MPinID:       []byte(`{"userID":"alice@example"}`),
		ClientSecret: bytes.Repeat([]byte{0x01}, 2*32+1),
		DTAList:      []string{"dta1", "dta2"},
	}
}

func TestUserID(t *testing.T) {
	id := validIdentity()
	userID, err := id.UserID()
	if err != nil {
		t.Fatalf("UserID: %v", err)
	}
	if userID != "alice@example" {
		t.Errorf("UserID = %q, want alice@example", userID)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	id := validIdentity()
	id.SokSendKey = bytes.Repeat([]byte{0x02}, 2*32+1)
	id.SokRecvKey = bytes.Repeat([]byte{0x03}, 4*32)

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var round Identity
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(round.MPinID, id.MPinID) {
		t.Error("mpin_id mismatch after round trip")
	}
	if !bytes.Equal(round.ClientSecret, id.ClientSecret) {
		t.Error("client_secret mismatch after round trip")
	}
	if !bytes.Equal(round.SokSendKey, id.SokSendKey) {
		t.Error("sokSendKey mismatch after round trip")
	}
	if !bytes.Equal(round.SokRecvKey, id.SokRecvKey) {
		t.Error("sokRecvKey mismatch after round trip")
	}
}

func TestValidateRejectsWrongClientSecretLength(t *testing.T) {
	id := validIdentity()
	id.ClientSecret = []byte{0x01, 0x02}
	if err := id.Validate(32); err == nil {
		t.Fatal("expected error for short client_secret")
	}
}

func TestValidateAllowsAbsentSokKeys(t *testing.T) {
	id := validIdentity()
	if err := id.Validate(32); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMalformedMpinID(t *testing.T) {
	id := validIdentity()
	id.MPinID = []byte(`not json`)
	if err := id.Validate(32); err == nil {
		t.Fatal("expected error for malformed mpin_id")
	}
}

func TestWithRenewalCarriesSokKeysVerbatim(t *testing.T) {
	id := validIdentity()
	id.SokSendKey = bytes.Repeat([]byte{0x09}, 2*32+1)
	id.SokRecvKey = bytes.Repeat([]byte{0x0a}, 4*32)

	renewed := id.WithRenewal([]byte(`{"userID":"alice@example"}`), bytes.Repeat([]byte{0x04}, 2*32+1), []string{"dta3"})
	if !bytes.Equal(renewed.SokSendKey, id.SokSendKey) {
		t.Error("sokSendKey not carried over verbatim")
	}
	if !bytes.Equal(renewed.SokRecvKey, id.SokRecvKey) {
		t.Error("sokRecvKey not carried over verbatim")
	}
	if renewed.DTAList[0] != "dta3" {
		t.Error("dta list not replaced")
	}
}
