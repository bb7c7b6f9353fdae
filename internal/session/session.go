// Package session implements the session core (spec §4.5, component
// C5): the state machine composing authentication, the broker
// connection, subscription tracking, and private-message envelope
// handling into the single entry point applications drive.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/iotmpinclient/internal/broker"
	"github.com/user/iotmpinclient/internal/crypto"
	"github.com/user/iotmpinclient/internal/identity"
	"github.com/user/iotmpinclient/internal/mpin"
	"github.com/user/iotmpinclient/internal/sok"
	"github.com/user/iotmpinclient/internal/wire"
)

// state is the session's position in the NoSession → Initial →
// Connected ⇄ Disconnected machine from spec §4.5.
type state int

const (
	NoSession state = iota
	Initial
	Connected
	Disconnected
)

func (s state) String() string {
	switch s {
	case NoSession:
		return "NoSession"
	case Initial:
		return "Initial"
	case Connected:
		return "Connected"
	case Disconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// authenticator is the subset of *mpin.Client the session core needs;
// narrowed to an interface so tests can substitute a fake.
type authenticator interface {
	Authenticate(ctx context.Context, server string, id *identity.Identity) (mpin.AuthResult, error)
}

// brokerConn is the subset of *broker.Adapter the session core needs.
type brokerConn interface {
	SetCredentials(clientID string, psk []byte)
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	SessionPresent() bool
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Publish(topic string, payload []byte) error
	RunLoop(timeout time.Duration)
}

// Config configures a Session.
type Config struct {
	AuthServerURL  string
	BrokerAddress  string
	QoS            byte
	Persistent     bool
	CommandTimeout time.Duration
	Identity       *identity.Identity
	EventSink      EventSink
}

// Session is the session core. It is safe only for single-goroutine,
// single-owner use: callers drive progress by calling RunMessageLoop
// in their own loop, exactly as spec §5's concurrency model assumes.
type Session struct {
	cfg   Config
	sink  EventSink
	auth  authenticator
	conn  brokerConn
	crypto *crypto.Facade

	mu            sync.Mutex
	state         state
	identity      *identity.Identity
	userID        string
	privateTopic  string
	authenticated bool
	sharedSecret  []byte
	clientIDHex   string
	subscriptions map[string]struct{}
}

// New returns a Session wired to a real mpin.Client and broker.Adapter.
func New(cfg Config, facade *crypto.Facade, httpClient *wire.HTTPClient) *Session {
	sink := cfg.EventSink
	if sink == nil {
		sink = NoopEventSink{}
	}

	mpinClient := mpin.New(facade, httpClient)

	var conn *broker.Adapter
	s := &Session{
		cfg:           cfg,
		sink:          sink,
		auth:          mpinClient,
		crypto:        facade,
		state:         NoSession,
		identity:      cfg.Identity,
		subscriptions: make(map[string]struct{}),
	}

	conn = broker.New(broker.Config{
		Address:        cfg.BrokerAddress,
		QoS:            cfg.QoS,
		Persistent:     cfg.Persistent,
		CommandTimeout: cfg.CommandTimeout,
	}, s.dispatch)
	s.conn = conn

	return s
}

// newForTest wires a Session directly to fakes, bypassing New's real
// broker/mpin construction.
func newForTest(cfg Config, facade *crypto.Facade, auth authenticator, conn brokerConn) *Session {
	sink := cfg.EventSink
	if sink == nil {
		sink = NoopEventSink{}
	}
	return &Session{
		cfg:           cfg,
		sink:          sink,
		auth:          auth,
		conn:          conn,
		crypto:        facade,
		state:         NoSession,
		identity:      cfg.Identity,
		subscriptions: make(map[string]struct{}),
	}
}

// StartSession performs the NoSession → Initial transition: it
// derives the user ID and private-message topic from the configured
// identity. The broker adapter's address/QoS/persistence were already
// fixed at construction.
func (s *Session) StartSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NoSession {
		return fmt.Errorf("session: StartSession called from state %s, want NoSession", s.state)
	}

	userID, err := s.identity.UserID()
	if err != nil {
		return fmt.Errorf("session: deriving user ID: %w", err)
	}
	s.userID = userID
	s.privateTopic = sok.PrivateTopic([]byte(userID))
	s.state = Initial
	return nil
}

// IsSessionStarted reports whether StartSession has run.
func (s *Session) IsSessionStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != NoSession
}

// IsConnected reports whether the session is in the Connected state
// with a live broker link.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Connected && s.conn.IsConnected()
}

// EndSession performs the Connected/Disconnected/Initial → NoSession
// transition: disconnects the broker and clears subscriptions.
func (s *Session) EndSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.Disconnect()
	s.subscriptions = make(map[string]struct{})
	s.state = NoSession
	s.authenticated = false
}

// ensureConnected runs the Initial/Disconnected → Connected transition
// described in spec §4.5: authenticate (cached once valid), then
// broker connect/reconnect, replaying subscriptions if the broker
// reports no persisted session.
func (s *Session) ensureConnected(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureConnectedLocked(ctx)
}

func (s *Session) ensureConnectedLocked(ctx context.Context) error {
	switch s.state {
	case Connected:
		if s.conn.IsConnected() {
			return nil
		}
		s.sink.OnConnectionLost(fmt.Errorf("session: broker link lost"))
		s.state = Disconnected
		fallthrough
	case Disconnected, Initial:
		wasAuthenticated := s.authenticated
		if err := s.authenticateLocked(ctx); err != nil {
			s.sink.OnError(err)
			return err
		}
		if !wasAuthenticated {
			s.sink.OnAuthenticated()
		}

		var connectErr error
		if s.state == Initial {
			connectErr = s.conn.Connect(ctx)
		} else {
			connectErr = s.conn.Reconnect(ctx)
		}
		if connectErr != nil {
			s.sink.OnError(connectErr)
			return connectErr
		}

		if !s.conn.SessionPresent() {
			for topic := range s.subscriptions {
				if err := s.conn.Subscribe(topic); err != nil {
					s.sink.OnError(err)
				}
			}
		}

		s.state = Connected
		s.sink.OnConnected()
		return nil
	case NoSession:
		return fmt.Errorf("session: no active session; call StartSession first")
	default:
		return fmt.Errorf("session: unknown state %s", s.state)
	}
}

// authenticateLocked runs mpin.Authenticate unless a shared secret is
// already cached for this session (spec §4.5's authentication
// caching note). A renewal carried in the successful authenticate
// response is applied transparently and surfaced via
// OnIdentityChanged; a renewal signalled by a 409 response
// (*mpin.RenewalRequiredError) is returned as an error and the identity
// is left unchanged.
func (s *Session) authenticateLocked(ctx context.Context) error {
	if s.authenticated {
		return nil
	}

	result, err := s.auth.Authenticate(ctx, s.cfg.AuthServerURL, s.identity)
	if err != nil {
		return err
	}

	s.authenticated = true
	s.sharedSecret = result.SharedSecret
	s.clientIDHex = wire.HexEncode(result.ClientID)
	s.conn.SetCredentials(s.clientIDHex, s.sharedSecret)

	if result.IdentityChanged {
		s.identity = result.NewIdentity
		s.sink.OnIdentityChanged(result.NewIdentity)
	}
	return nil
}

// Subscribe authenticates and connects first if needed, subscribes to
// topic, and adds it to the tracked subscription set on success.
func (s *Session) Subscribe(ctx context.Context, topic string) error {
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Subscribe(topic); err != nil {
		s.sink.OnError(err)
		return err
	}
	s.subscriptions[topic] = struct{}{}
	return nil
}

// Unsubscribe removes topic from the tracked subscription set.
func (s *Session) Unsubscribe(ctx context.Context, topic string) error {
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Unsubscribe(topic); err != nil {
		s.sink.OnError(err)
		return err
	}
	delete(s.subscriptions, topic)
	return nil
}

// Publish publishes payload to topic.
func (s *Session) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Publish(topic, payload); err != nil {
		s.sink.OnError(err)
		return err
	}
	return nil
}

// ListenForPrivateMessages subscribes to this session's own private
// topic, the shorthand spec §4.5 names listen_for_private_messages.
func (s *Session) ListenForPrivateMessages(ctx context.Context) error {
	s.mu.Lock()
	topic := s.privateTopic
	s.mu.Unlock()
	return s.Subscribe(ctx, topic)
}

// SendPrivateMessage serializes a SOK envelope addressed to toUserID
// and publishes it to the peer's private topic. Serialization errors
// are surfaced via OnError and reported back as a non-nil error.
func (s *Session) SendPrivateMessage(ctx context.Context, toUserID string, payload []byte, encrypt bool) error {
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	fromUserID := s.userID
	sokSendKey := s.identity.SokSendKey
	s.mu.Unlock()

	data, err := sok.Serialize(s.crypto, []byte(fromUserID), payload, encrypt, sokSendKey, []byte(toUserID))
	if err != nil {
		s.sink.OnError(err)
		return err
	}

	return s.Publish(ctx, sok.PrivateTopic([]byte(toUserID)), data)
}

// RunMessageLoop delegates to the broker's run loop when connected;
// otherwise it sleeps for at most timeout and reports not connected,
// matching spec §4.5.
func (s *Session) RunMessageLoop(timeout time.Duration) bool {
	s.mu.Lock()
	connected := s.state == Connected
	s.mu.Unlock()

	if !connected {
		time.Sleep(timeout)
		return false
	}

	s.conn.RunLoop(timeout)
	return true
}

// dispatch classifies an arrived (topic, payload) pair and routes it
// to the event sink: the session's own private topic is parsed as a
// SOK envelope, anything else is reported verbatim (spec §4.5).
func (s *Session) dispatch(topic string, payload []byte) {
	s.mu.Lock()
	isPrivate := topic == s.privateTopic
	recvKey := s.identity.SokRecvKey
	s.mu.Unlock()

	if !isPrivate {
		s.sink.OnMessageArrived(topic, payload)
		return
	}

	from, plaintext, err := sok.Parse(s.crypto, payload, recvKey)
	if err != nil {
		s.sink.OnError(fmt.Errorf("session: parsing private message envelope (raw payload %q): %w", payload, err))
		return
	}
	s.sink.OnPrivateMessageArrived(from, plaintext)
}
