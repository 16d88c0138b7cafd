// Package session tracks the authentication and connectivity of the single
// chat-network session. The state machine is purely reactive: transitions
// happen only when the gateway reports a challenge, readiness, or a
// disconnect. There is no timeout transition — a session stuck waiting for a
// scan stays there until a challenge resolves or the process stops.
package session

import (
	"log/slog"
	"sync"
)

// State is the connection/authentication state of the session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAwaitingScan    State = "awaiting_scan"
	StateReady           State = "ready"
	StateDisconnected    State = "disconnected"
)

// Session owns the connection state. All mutation goes through the three
// transition methods; everything else reads an immutable snapshot.
type Session struct {
	mu               sync.RWMutex
	state            State
	lastChallenge    string
	disconnectReason string
	logger           *slog.Logger
}

// Snapshot is a consistent read of the session for status reporting.
type Snapshot struct {
	State            State
	Sendable         bool
	DisconnectReason string
}

func New(logger *slog.Logger) *Session {
	return &Session{
		state:  StateUnauthenticated,
		logger: logger,
	}
}

// OnChallenge records a fresh login challenge. A challenge always restarts
// authentication, including after a disconnect.
func (s *Session) OnChallenge(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAwaitingScan
	s.lastChallenge = data
	s.logger.Info("session awaiting scan")
}

// OnReady marks the session authenticated and connected.
func (s *Session) OnReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.disconnectReason = ""
	s.logger.Info("session ready")
}

// OnDisconnected records a lost connection and its reason.
func (s *Session) OnDisconnected(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.disconnectReason = reason
	s.logger.Warn("session disconnected", "reason", reason)
}

// Sendable reports whether outbound sends are permitted. True only in Ready.
func (s *Session) Sendable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateReady
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:            s.state,
		Sendable:         s.state == StateReady,
		DisconnectReason: s.disconnectReason,
	}
}
