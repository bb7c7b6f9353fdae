// Package broker implements the broker adapter (spec §4.4, component
// C4): a PSK-secured MQTT connection used by the session core to
// subscribe, publish, and receive messages. It wraps
// github.com/eclipse/paho.mqtt.golang for the MQTT 3.1.1 framing and
// keepalive loop, the way the teacher's pkg/source/mqtt and
// pkg/sink/mqtt packages do, and layers the PSK handshake from
// internal/broker/psktls underneath it via a custom dial hook.
package broker

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/user/iotmpinclient/internal/broker/psktls"
)

// Config configures a broker connection. Address is host:port
// (default port 8443 per spec §4.4). ClientID is hex(client_id), used
// both as the MQTT client identifier and the PSK identity hint. PSK is
// the M-Pin shared_secret.
type Config struct {
	Address        string
	ClientID       string
	PSK            []byte
	QoS            byte
	Persistent     bool
	CommandTimeout time.Duration
}

// MessageHandler receives an arrived PUBLISH. The adapter passes every
// message to this single handler, undifferentiated; classifying it by
// topic is left to the handler (the session layer's dispatch).
type MessageHandler func(topic string, payload []byte)

type incoming struct {
	topic   string
	payload []byte
}

// Adapter is the broker connection. It is not safe for concurrent use
// from multiple goroutines beyond the single-owner model documented
// for the session core (spec §4.5).
type Adapter struct {
	cfg        Config
	handler    MessageHandler
	newClient  func(opts *paho.ClientOptions) paho.Client

	mu             sync.Mutex
	client         paho.Client
	connected      bool
	sessionPresent bool

	queue chan incoming
}

// New returns an Adapter configured per cfg. handler is invoked,
// synchronously, from RunLoop for every message the broker delivers.
func New(cfg Config, handler MessageHandler) *Adapter {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	return &Adapter{
		cfg:       cfg,
		handler:   handler,
		newClient: func(opts *paho.ClientOptions) paho.Client { return paho.NewClient(opts) },
		queue:     make(chan incoming, 256),
	}
}

// SetCredentials updates the PSK identity and key used by subsequent
// Connect/Reconnect calls — the session core calls this once
// authentication produces a client ID and shared secret, since the
// broker adapter is configured before authentication has run (spec
// §4.5's start_session transition only knows the address, QoS, and
// persistence flag at that point).
func (a *Adapter) SetCredentials(clientID string, psk []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.ClientID = clientID
	a.cfg.PSK = psk
}

func (a *Adapter) newOptions(cleanSession bool) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker("tcp://" + a.cfg.Address)
	opts.SetClientID(a.cfg.ClientID)
	opts.SetCleanSession(cleanSession)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(a.cfg.CommandTimeout)
	opts.CustomOpenConnectionFn = func(_ *url.URL, _ paho.ClientOptions) (net.Conn, error) {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.CommandTimeout)
		defer cancel()
		return psktls.Dial(ctx, "tcp", a.cfg.Address, psktls.Config{
			PSK:         a.cfg.PSK,
			PSKIdentity: a.cfg.ClientID,
		})
	}
	opts.SetDefaultPublishHandler(func(_ paho.Client, m paho.Message) {
		payload := append([]byte(nil), m.Payload()...)
		select {
		case a.queue <- incoming{topic: m.Topic(), payload: payload}:
		default:
			// queue full: drop rather than block the paho callback
			// goroutine, matching the teacher's own "defensive copy,
			// best-effort delivery" pattern in pkg/source/mqtt.
		}
	})
	return opts
}

func (a *Adapter) connectOnce(ctx context.Context, cleanSession bool) (bool, error) {
	client := a.newClient(a.newOptions(cleanSession))
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return false, newError("connect", "", ctx.Err())
	case <-time.After(a.cfg.CommandTimeout):
		return false, newError("connect", "", fmt.Errorf("timed out after %s", a.cfg.CommandTimeout))
	}
	if err := token.Error(); err != nil {
		return false, newError("connect", "", err)
	}

	sessionPresent := false
	if ct, ok := token.(interface{ SessionPresent() bool }); ok {
		sessionPresent = ct.SessionPresent()
	}

	a.mu.Lock()
	a.client = client
	a.connected = true
	a.mu.Unlock()

	return sessionPresent, nil
}

// Connect performs the clean-then-persistent double-CONNECT dance
// from spec §4.4: a first CONNECT with clean_session=true to force a
// fresh server-side state, then (if persistent sessions are
// configured) a disconnect and a second CONNECT with
// clean_session=false.
func (a *Adapter) Connect(ctx context.Context) error {
	if _, err := a.connectOnce(ctx, true); err != nil {
		return err
	}

	if !a.cfg.Persistent {
		return nil
	}

	a.teardown()

	sessionPresent, err := a.connectOnce(ctx, false)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.sessionPresent = sessionPresent
	a.mu.Unlock()
	return nil
}

// Reconnect re-establishes the connection after a loss: when
// persistent sessions are configured, it skips the initial clean
// sweep and reconnects directly with clean_session=false (spec §4.4).
func (a *Adapter) Reconnect(ctx context.Context) error {
	cleanSession := !a.cfg.Persistent
	sessionPresent, err := a.connectOnce(ctx, cleanSession)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.sessionPresent = sessionPresent
	a.mu.Unlock()
	return nil
}

// SessionPresent reports whether the most recent CONNACK carried
// session_present=true.
func (a *Adapter) SessionPresent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionPresent
}

// Disconnect tears down the connection.
func (a *Adapter) Disconnect() {
	a.teardown()
}

func (a *Adapter) teardown() {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.connected = false
	a.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(uint(a.cfg.CommandTimeout / time.Millisecond))
	}
}

// IsConnected reports true iff both the adapter believes it is
// connected and the underlying transport agrees; a disagreement tears
// down the connection and reports disconnected (spec §4.4's
// connection-health rule).
func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	client := a.client
	connected := a.connected
	a.mu.Unlock()

	if !connected || client == nil {
		return false
	}
	if !client.IsConnected() {
		a.teardown()
		return false
	}
	return true
}

// Subscribe subscribes to topic at the adapter's configured QoS.
func (a *Adapter) Subscribe(topic string) error {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return newError("subscribe", topic, fmt.Errorf("not connected"))
	}

	token := client.Subscribe(topic, a.cfg.QoS, nil)
	if !token.WaitTimeout(a.cfg.CommandTimeout) {
		return newError("subscribe", topic, fmt.Errorf("timed out after %s", a.cfg.CommandTimeout))
	}
	if err := token.Error(); err != nil {
		return newError("subscribe", topic, err)
	}
	return nil
}

// Unsubscribe unsubscribes from topic.
func (a *Adapter) Unsubscribe(topic string) error {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return newError("unsubscribe", topic, fmt.Errorf("not connected"))
	}

	token := client.Unsubscribe(topic)
	if !token.WaitTimeout(a.cfg.CommandTimeout) {
		return newError("unsubscribe", topic, fmt.Errorf("timed out after %s", a.cfg.CommandTimeout))
	}
	if err := token.Error(); err != nil {
		return newError("unsubscribe", topic, err)
	}
	return nil
}

// Publish publishes payload to topic at the adapter's configured QoS.
func (a *Adapter) Publish(topic string, payload []byte) error {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return newError("publish", topic, fmt.Errorf("not connected"))
	}

	token := client.Publish(topic, a.cfg.QoS, false, payload)
	if !token.WaitTimeout(a.cfg.CommandTimeout) {
		return newError("publish", topic, fmt.Errorf("timed out after %s", a.cfg.CommandTimeout))
	}
	if err := token.Error(); err != nil {
		return newError("publish", topic, err)
	}
	return nil
}

// RunLoop drains messages the broker has delivered since the last
// call, invoking the configured handler synchronously for each, for
// up to timeout before returning.
func (a *Adapter) RunLoop(timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case msg := <-a.queue:
			if a.handler != nil {
				a.handler(msg.topic, msg.payload)
			}
		case <-deadline.C:
			return
		}
	}
}
