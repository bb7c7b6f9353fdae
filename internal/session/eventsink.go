package session

import "github.com/user/iotmpinclient/internal/identity"

// EventSink is the polymorphic listener the session core drives
// lifecycle, error, and message events through (spec §4.6, component
// C6). Every callback is invoked synchronously from whichever
// goroutine calls RunMessageLoop; implementations must not block.
type EventSink interface {
	OnAuthenticated()
	OnIdentityChanged(newIdentity *identity.Identity)
	OnConnected()
	OnConnectionLost(err error)
	OnError(err error)
	OnMessageArrived(topic string, payload []byte)
	OnPrivateMessageArrived(from string, payload []byte)
}

// NoopEventSink implements EventSink with no-op methods, the default
// sink for callers that only care about a subset of events.
type NoopEventSink struct{}

func (NoopEventSink) OnAuthenticated()                                {}
func (NoopEventSink) OnIdentityChanged(newIdentity *identity.Identity) {}
func (NoopEventSink) OnConnected()                                    {}
func (NoopEventSink) OnConnectionLost(err error)                      {}
func (NoopEventSink) OnError(err error)                               {}
func (NoopEventSink) OnMessageArrived(topic string, payload []byte)   {}
func (NoopEventSink) OnPrivateMessageArrived(from string, payload []byte) {}
