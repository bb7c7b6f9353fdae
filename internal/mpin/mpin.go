// Package mpin implements the M-Pin Full client protocol (spec §4.2,
// component C2): the three-message zero-knowledge authentication
// exchange, and transparent identity renewal when the server signals
// that the stored client secret has expired.
package mpin

import (
	"context"
	"errors"

	"github.com/user/iotmpinclient/internal/crypto"
	"github.com/user/iotmpinclient/internal/identity"
	"github.com/user/iotmpinclient/internal/wire"
)

// AuthResult is the outcome of a successful Authenticate call.
type AuthResult struct {
	ClientID        []byte
	SharedSecret    []byte
	IdentityChanged bool
	NewIdentity     *identity.Identity
}

// RenewalRequiredError is returned when the server signals identity
// renewal via a 409 response instead of embedding renewSecret in the
// 200 response (spec §9's backward-compatibility open question). The
// caller should persist NewIdentity and retry Authenticate with it.
type RenewalRequiredError struct {
	NewIdentity *identity.Identity
}

func (e *RenewalRequiredError) Error() string {
	return "mpin: server requires identity renewal before authentication can proceed"
}

// Client is the M-Pin Full client.
type Client struct {
	crypto *crypto.Facade
	http   *wire.HTTPClient
}

// New returns an M-Pin Full client using the given crypto facade and
// HTTP transport.
func New(facade *crypto.Facade, httpClient *wire.HTTPClient) *Client {
	return &Client{crypto: facade, http: httpClient}
}

// Authenticate runs the three-pass M-Pin exchange against server,
// using id as the long-term identity. No retries are performed here;
// callers retry at the session level (spec §4.2).
func (c *Client) Authenticate(ctx context.Context, server string, id *identity.Identity) (AuthResult, error) {
	clientID := c.crypto.HashID(id.MPinID)

	pass1, err := c.crypto.Client1(id.MPinID, id.ClientSecret)
	if err != nil {
		return AuthResult{}, err
	}

	mpinIDHex := wire.HexEncode(id.MPinID)

	req1 := wire.NewObject().
		Set("dta", id.DTAList).
		Set("mpin_id", mpinIDHex).
		Set("U", wire.HexEncode(pass1.U)).
		Set("UT", wire.HexEncode(pass1.UT))
	resp1, err := c.http.Post(ctx, server+"/auth/pass1", req1)
	if err != nil {
		return AuthResult{}, err
	}
	yHex, err := resp1.String("y")
	if err != nil {
		return AuthResult{}, err
	}
	y := wire.HexDecode(yHex)

	v := c.crypto.Client2(pass1.X, y, pass1.Sec)
	z, r, err := c.crypto.G1Multiple(clientID)
	if err != nil {
		return AuthResult{}, err
	}
	pass2 := crypto.Pass2{Y: y, V: v, Z: z, R: r}

	req2 := wire.NewObject().
		Set("mpin_id", mpinIDHex).
		Set("WID", "").
		Set("OTP", false).
		Set("V", wire.HexEncode(v)).
		Set("Z", wire.HexEncode(z))
	resp2, err := c.http.Post(ctx, server+"/auth/pass2", req2)
	if err != nil {
		return AuthResult{}, err
	}
	authOTT, err := resp2.String("authOTT")
	if err != nil {
		return AuthResult{}, err
	}

	req3 := wire.NewObject().Set("mpinResponse", wire.NewObject().Set("authOTT", authOTT))
	resp3, err := c.http.Post(ctx, server+"/auth/authenticate", req3)
	if err != nil {
		var httpErr *wire.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == 409 {
			if renewed, rerr := c.tryParseRenewalBody(ctx, httpErr.Body, id); rerr == nil {
				return AuthResult{}, &RenewalRequiredError{NewIdentity: renewed}
			}
		}
		return AuthResult{}, err
	}

	tHex, err := resp3.String("T")
	if err != nil {
		return AuthResult{}, err
	}
	tVal := wire.HexDecode(tHex)

	hm := c.crypto.HashAll(clientID, pass1, pass2, tVal)
	precomp := c.crypto.Precompute(id.ClientSecret, clientID)
	auth := crypto.Auth{T: tVal, HM: hm, Precomp: precomp}
	sharedSecret := c.crypto.SharedKey(pass1, pass2, auth)

	result := AuthResult{ClientID: clientID, SharedSecret: sharedSecret}

	if renewVal, ok := resp3.OptionalObject("renewSecret"); ok {
		newIdentity, rerr := c.applyRenewal(ctx, renewVal, id)
		if rerr != nil {
			return AuthResult{}, rerr
		}
		result.IdentityChanged = true
		result.NewIdentity = newIdentity
	}

	return result, nil
}

// applyRenewal recombines the two DTA client-secret shares into a
// renewed identity, carrying SOK keys over verbatim (spec §4.2).
func (c *Client) applyRenewal(ctx context.Context, renewVal *wire.Value, expired *identity.Identity) (*identity.Identity, error) {
	mpinIDHex, err := renewVal.String("mpin_id")
	if err != nil {
		return nil, err
	}
	dtaList, err := renewVal.StringArray("dta")
	if err != nil {
		return nil, err
	}
	shareHex, err := renewVal.String("clientSecretShare")
	if err != nil {
		return nil, err
	}
	cs2url, err := renewVal.String("cs2url")
	if err != nil {
		return nil, err
	}

	cs1 := wire.HexDecode(shareHex)

	cs2Resp, err := c.http.Get(ctx, cs2url)
	if err != nil {
		return nil, err
	}
	cs2Hex, err := cs2Resp.String("clientSecret")
	if err != nil {
		return nil, err
	}
	cs2 := wire.HexDecode(cs2Hex)

	newSecret := c.crypto.RecombineG1(cs1, cs2)
	newMpinID := wire.HexDecode(mpinIDHex)

	return expired.WithRenewal(newMpinID, newSecret, dtaList), nil
}

// tryParseRenewalBody handles the backward-compatible 409 path: the
// error response body itself carries the renewSecret shape directly.
func (c *Client) tryParseRenewalBody(ctx context.Context, body []byte, expired *identity.Identity) (*identity.Identity, error) {
	val, err := wire.ParseObject(body)
	if err != nil {
		return nil, err
	}
	return c.applyRenewal(ctx, val, expired)
}
