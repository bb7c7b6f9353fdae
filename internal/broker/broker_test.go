package broker

import (
	"context"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is a paho.Token that resolves immediately.
type fakeToken struct {
	err            error
	sessionPresent bool
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool  { return true }
func (t *fakeToken) Done() <-chan struct{}           { ch := make(chan struct{}); close(ch); return ch }
func (t *fakeToken) Error() error                    { return t.err }
func (t *fakeToken) SessionPresent() bool            { return t.sessionPresent }

// fakeClient is a minimal paho.Client stand-in driven entirely by
// fields the test sets up in advance — no network involved.
type fakeClient struct {
	connected      bool
	sessionPresent bool
	connectErr     error
	subscribeErr   error
	publishErr     error

	connectCalls     int
	publishedTopic   string
	publishedPayload []byte
}

func (c *fakeClient) Connect() paho.Token {
	c.connectCalls++
	c.connected = c.connectErr == nil
	return &fakeToken{err: c.connectErr, sessionPresent: c.sessionPresent}
}
func (c *fakeClient) Disconnect(quiesce uint) { c.connected = false }
func (c *fakeClient) IsConnected() bool       { return c.connected }
func (c *fakeClient) IsConnectionOpen() bool  { return c.connected }
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.publishedTopic = topic
	if b, ok := payload.([]byte); ok {
		c.publishedPayload = b
	}
	return &fakeToken{err: c.publishErr}
}
func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	return &fakeToken{err: c.subscribeErr}
}
func (c *fakeClient) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	return &fakeToken{}
}
func (c *fakeClient) Unsubscribe(topics ...string) paho.Token { return &fakeToken{} }
func (c *fakeClient) AddRoute(topic string, callback paho.MessageHandler) {}
func (c *fakeClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

func newTestAdapter(t *testing.T, client *fakeClient) *Adapter {
	t.Helper()
	a := New(Config{
		Address:        "broker.example:8443",
		ClientID:       "abcd",
		PSK:            []byte("shared-secret"),
		QoS:            1,
		CommandTimeout: time.Second,
	}, nil)
	a.newClient = func(opts *paho.ClientOptions) paho.Client { return client }
	return a
}

func TestConnectNonPersistentSingleConnect(t *testing.T) {
	client := &fakeClient{sessionPresent: true}
	a := newTestAdapter(t, client)

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !a.IsConnected() {
		t.Fatal("expected connected after Connect")
	}
	if client.connectCalls != 1 {
		t.Fatalf("connectCalls = %d, want 1 for a non-persistent session", client.connectCalls)
	}
}

func TestPublishAndSubscribeDelegateToClient(t *testing.T) {
	client := &fakeClient{}
	a := newTestAdapter(t, client)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := a.Subscribe("deadbeef/pm"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := a.Publish("deadbeef/pm", []byte("hi")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if client.publishedTopic != "deadbeef/pm" || string(client.publishedPayload) != "hi" {
		t.Errorf("unexpected publish: topic=%q payload=%q", client.publishedTopic, client.publishedPayload)
	}
}

func TestIsConnectedTearsDownOnTransportDisagreement(t *testing.T) {
	client := &fakeClient{}
	a := newTestAdapter(t, client)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	client.connected = false
	if a.IsConnected() {
		t.Fatal("expected IsConnected to report false and tear down")
	}
	if err := a.Publish("x", []byte("y")); err == nil {
		t.Fatal("expected publish to fail after teardown")
	}
}

func TestRunLoopDispatchesQueuedMessages(t *testing.T) {
	var got []string
	a := New(Config{CommandTimeout: time.Second}, func(topic string, payload []byte) {
		got = append(got, topic+":"+string(payload))
	})
	a.queue <- incoming{topic: "t1", payload: []byte("p1")}
	a.queue <- incoming{topic: "t2", payload: []byte("p2")}

	a.RunLoop(50 * time.Millisecond)

	if len(got) != 2 || got[0] != "t1:p1" || got[1] != "t2:p2" {
		t.Errorf("unexpected dispatch order: %v", got)
	}
}
