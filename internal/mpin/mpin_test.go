package mpin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/iotmpinclient/internal/crypto"
	"github.com/user/iotmpinclient/internal/crypto/refpairing"
	"github.com/user/iotmpinclient/internal/identity"
	"github.com/user/iotmpinclient/internal/wire"
)

func testIdentity() *identity.Identity {
	return &identity.Identity{
		MPinID:       []byte(`{"userID":"alice@example"}`),
		ClientSecret: bytes.Repeat([]byte{0x07}, crypto.G1S),
		DTAList:      []string{"dta1", "dta2"},
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// TestAuthenticateHappyPath is the S1 scenario: a fixed identity and
// mock server responses yield a 16-byte shared secret, no identity
// change, and a ClientID equal to HashID(mpin_id).
func TestAuthenticateHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/pass1":
			writeJSON(w, 200, map[string]interface{}{"y": "aa"})
		case "/auth/pass2":
			writeJSON(w, 200, map[string]interface{}{"authOTT": "token-123"})
		case "/auth/authenticate":
			writeJSON(w, 200, map[string]interface{}{"T": "bb"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	facade := crypto.New(refpairing.New())
	client := New(facade, wire.NewHTTPClient(0, nil))

	result, err := client.Authenticate(context.Background(), server.URL, testIdentity())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(result.SharedSecret) != 16 {
		t.Fatalf("SharedSecret length = %d, want 16", len(result.SharedSecret))
	}
	if result.IdentityChanged {
		t.Fatal("IdentityChanged should be false when no renewSecret is present")
	}

	// Re-running with the same facade/identity/server transcript
	// reproduces the same shared secret only if every step is
	// deterministic given the same random draws; here we instead
	// assert invariant 1 indirectly: the clientID is stable.
	clientID := facade.HashID(testIdentity().MPinID)
	if !bytes.Equal(result.ClientID, clientID) {
		t.Fatal("ClientID does not match HashID(mpin_id)")
	}
}

func TestAuthenticateNetworkErrorWrapsURL(t *testing.T) {
	facade := crypto.New(refpairing.New())
	client := New(facade, wire.NewHTTPClient(0, nil))

	_, err := client.Authenticate(context.Background(), "http://127.0.0.1:1", testIdentity())
	if err == nil {
		t.Fatal("expected network error for unreachable server")
	}
	var netErr *wire.NetworkError
	if !isNetworkError(err, &netErr) {
		t.Fatalf("expected *wire.NetworkError, got %T: %v", err, err)
	}
	if netErr.URL != "http://127.0.0.1:1/auth/pass1" {
		t.Errorf("NetworkError.URL = %q, want %q", netErr.URL, "http://127.0.0.1:1/auth/pass1")
	}
}

func isNetworkError(err error, target **wire.NetworkError) bool {
	ne, ok := err.(*wire.NetworkError)
	if !ok {
		return false
	}
	*target = ne
	return true
}

// TestAuthenticateIdentityRenewal is the S6 scenario: the final
// response embeds renewSecret, and cs2url is fetched to recombine the
// client secret.
func TestAuthenticateIdentityRenewal(t *testing.T) {
	var cs2Server *httptest.Server
	cs2Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"clientSecret": "cc"})
	}))
	defer cs2Server.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/pass1":
			writeJSON(w, 200, map[string]interface{}{"y": "aa"})
		case "/auth/pass2":
			writeJSON(w, 200, map[string]interface{}{"authOTT": "token-123"})
		case "/auth/authenticate":
			writeJSON(w, 200, map[string]interface{}{
				"T": "bb",
				"renewSecret": map[string]interface{}{
					"mpin_id":           "7b22757365724944223a22616c696365406578616d706c65227d",
					"dta":               []string{"dta3"},
					"clientSecretShare": "dd",
					"cs2url":            cs2Server.URL,
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	facade := crypto.New(refpairing.New())
	client := New(facade, wire.NewHTTPClient(0, nil))

	result, err := client.Authenticate(context.Background(), server.URL, testIdentity())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !result.IdentityChanged || result.NewIdentity == nil {
		t.Fatal("expected IdentityChanged with a NewIdentity")
	}

	expected := facade.RecombineG1(wire.HexDecode("dd"), wire.HexDecode("cc"))
	if !bytes.Equal(result.NewIdentity.ClientSecret, expected) {
		t.Fatal("NewIdentity.ClientSecret != recombine_g1(cs1, cs2)")
	}
	if result.NewIdentity.DTAList[0] != "dta3" {
		t.Fatal("NewIdentity.DTAList was not replaced from renewSecret")
	}
}

// TestAuthenticate409RenewalFallback covers the backward-compatibility
// path: the authenticate response is a 409 carrying the renewSecret
// shape directly in the body.
func TestAuthenticate409RenewalFallback(t *testing.T) {
	var cs2Server *httptest.Server
	cs2Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"clientSecret": "cc"})
	}))
	defer cs2Server.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/pass1":
			writeJSON(w, 200, map[string]interface{}{"y": "aa"})
		case "/auth/pass2":
			writeJSON(w, 200, map[string]interface{}{"authOTT": "token-123"})
		case "/auth/authenticate":
			writeJSON(w, 409, map[string]interface{}{
				"mpin_id":           "7b22757365724944223a22616c696365406578616d706c65227d",
				"dta":               []string{"dta3"},
				"clientSecretShare": "dd",
				"cs2url":            cs2Server.URL,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	facade := crypto.New(refpairing.New())
	client := New(facade, wire.NewHTTPClient(0, nil))

	_, err := client.Authenticate(context.Background(), server.URL, testIdentity())
	if err == nil {
		t.Fatal("expected RenewalRequiredError")
	}
	var renewalErr *RenewalRequiredError
	if ok := isRenewalRequired(err, &renewalErr); !ok {
		t.Fatalf("expected *RenewalRequiredError, got %T: %v", err, err)
	}
	if renewalErr.NewIdentity == nil {
		t.Fatal("expected NewIdentity to be populated")
	}
}

func isRenewalRequired(err error, target **RenewalRequiredError) bool {
	re, ok := err.(*RenewalRequiredError)
	if !ok {
		return false
	}
	*target = re
	return true
}

func TestAuthenticateHTTPErrorPreservesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		fmt.Fprint(w, `{"error":"boom"}`)
	}))
	defer server.Close()

	facade := crypto.New(refpairing.New())
	client := New(facade, wire.NewHTTPClient(0, nil))

	_, err := client.Authenticate(context.Background(), server.URL, testIdentity())
	var httpErr *wire.HTTPError
	if ok := isHTTPError(err, &httpErr); !ok {
		t.Fatalf("expected *wire.HTTPError, got %T: %v", err, err)
	}
	if string(httpErr.Body) != `{"error":"boom"}` {
		t.Errorf("body not preserved: %s", httpErr.Body)
	}
}

func isHTTPError(err error, target **wire.HTTPError) bool {
	he, ok := err.(*wire.HTTPError)
	if !ok {
		return false
	}
	*target = he
	return true
}
