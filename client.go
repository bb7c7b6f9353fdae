// Package iotmpinclient is the public entry point: an authenticated,
// end-to-end-secured IoT messaging client combining M-Pin Full
// zero-knowledge authentication, PSK-TLS broker transport, and SOK
// private messaging behind a single session facade.
package iotmpinclient

import (
	"context"
	"crypto/x509"
	"time"

	"github.com/user/iotmpinclient/internal/crypto"
	"github.com/user/iotmpinclient/internal/crypto/refpairing"
	"github.com/user/iotmpinclient/internal/identity"
	"github.com/user/iotmpinclient/internal/session"
	"github.com/user/iotmpinclient/internal/wire"
)

// EventSink is re-exported from internal/session so callers never need
// to import an internal package to implement it.
type EventSink = session.EventSink

// NoopEventSink is re-exported from internal/session.
type NoopEventSink = session.NoopEventSink

// Identity is re-exported from internal/identity: the long-term
// device identity callers load from disk and pass to New.
type Identity = identity.Identity

// Config configures a Client.
type Config struct {
	// AuthServerURL is the M-Pin authentication server's base URL.
	AuthServerURL string
	// BrokerAddress is the PSK-TLS MQTT broker's host:port.
	BrokerAddress string
	// QoS is the MQTT quality-of-service level used for publishes and
	// subscriptions (0, 1, or 2).
	QoS byte
	// Persistent requests a persistent broker session (clean_session=false).
	Persistent bool
	// CommandTimeout bounds broker connect/subscribe/publish/unsubscribe
	// calls. Defaults to 10s when zero.
	CommandTimeout time.Duration
	// Identity is the long-term device identity used for M-Pin
	// authentication and, if present, SOK private messaging.
	Identity *Identity
	// EventSink receives session lifecycle, error, and message events.
	// Defaults to NoopEventSink{} when nil.
	EventSink EventSink
	// CACertPool verifies the authentication server's TLS certificate.
	// A nil pool uses the host's default trust store.
	CACertPool *x509.CertPool
}

// Client is the application-facing facade over the session core: it
// wires the crypto facade, the HTTP client used for M-Pin, and the
// session state machine together behind a small method set.
type Client struct {
	session *session.Session
}

// New builds a Client from cfg. The underlying pairing implementation
// is the module's reference stand-in (internal/crypto/refpairing); no
// network I/O happens until a method that needs the broker (Subscribe,
// Publish, SendPrivateMessage, ...) is called after StartSession.
func New(cfg Config) (*Client, error) {
	if err := cfg.Identity.Validate(crypto.PFS); err != nil {
		return nil, err
	}

	facade := crypto.New(refpairing.New())
	httpClient := wire.NewHTTPClient(cfg.CommandTimeout, cfg.CACertPool)

	s := session.New(session.Config{
		AuthServerURL:  cfg.AuthServerURL,
		BrokerAddress:  cfg.BrokerAddress,
		QoS:            cfg.QoS,
		Persistent:     cfg.Persistent,
		CommandTimeout: cfg.CommandTimeout,
		Identity:       cfg.Identity,
		EventSink:      cfg.EventSink,
	}, facade, httpClient)

	return &Client{session: s}, nil
}

// StartSession performs the NoSession → Initial transition: it derives
// the client's user ID and private-message topic. It must be called
// before any other Client method.
func (c *Client) StartSession() error {
	return c.session.StartSession()
}

// EndSession disconnects from the broker and clears all tracked
// subscriptions, returning the client to NoSession.
func (c *Client) EndSession() {
	c.session.EndSession()
}

// IsConnected reports whether the broker connection is currently live.
func (c *Client) IsConnected() bool {
	return c.session.IsConnected()
}

// Subscribe subscribes to topic, authenticating and connecting first
// if needed.
func (c *Client) Subscribe(ctx context.Context, topic string) error {
	return c.session.Subscribe(ctx, topic)
}

// Unsubscribe removes topic from the tracked subscription set.
func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	return c.session.Unsubscribe(ctx, topic)
}

// Publish publishes payload to topic.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	return c.session.Publish(ctx, topic, payload)
}

// ListenForPrivateMessages subscribes to this identity's own private
// topic so SOK-enveloped messages addressed to it are dispatched via
// EventSink.OnPrivateMessageArrived.
func (c *Client) ListenForPrivateMessages(ctx context.Context) error {
	return c.session.ListenForPrivateMessages(ctx)
}

// SendPrivateMessage seals payload in a SOK envelope addressed to
// toUserID and publishes it to that peer's private topic. encrypt
// selects AES-GCM sealing under the SOK-derived key versus a
// plaintext-carrying envelope (spec §4.3).
func (c *Client) SendPrivateMessage(ctx context.Context, toUserID string, payload []byte, encrypt bool) error {
	return c.session.SendPrivateMessage(ctx, toUserID, payload, encrypt)
}

// RunMessageLoop blocks for up to timeout, dispatching any broker
// messages that arrive. It returns false without dispatching if the
// client isn't currently connected. Callers drive progress by calling
// this repeatedly from their own loop.
func (c *Client) RunMessageLoop(timeout time.Duration) bool {
	return c.session.RunMessageLoop(timeout)
}
