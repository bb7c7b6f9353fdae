package main

import (
	"github.com/user/iotmpinclient/internal/clog"
	"github.com/user/iotmpinclient/internal/identity"
)

// loggingSink is the default EventSink for the CLI: every session
// event becomes a structured log line, matching the teacher's habit
// of routing lifecycle events through its Logger rather than printing
// directly.
type loggingSink struct {
	log   clog.Logger
	runID string
}

func (s *loggingSink) OnAuthenticated() {
	s.log.Info("authenticated", "run_id", s.runID)
}

func (s *loggingSink) OnIdentityChanged(newIdentity *identity.Identity) {
	s.log.Info("identity renewed", "run_id", s.runID)
}

func (s *loggingSink) OnConnected() {
	s.log.Info("broker connected", "run_id", s.runID)
}

func (s *loggingSink) OnConnectionLost(err error) {
	s.log.Warn("broker connection lost", "run_id", s.runID, "error", err)
}

func (s *loggingSink) OnError(err error) {
	s.log.Error("session error", "run_id", s.runID, "error", err)
}

func (s *loggingSink) OnMessageArrived(topic string, payload []byte) {
	s.log.Info("message arrived", "run_id", s.runID, "topic", topic, "bytes", len(payload))
}

func (s *loggingSink) OnPrivateMessageArrived(from string, payload []byte) {
	s.log.Info("private message arrived", "run_id", s.runID, "from", from, "bytes", len(payload))
}
