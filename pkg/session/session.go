// Package session multiplexes dialog states across concurrent
// conversations.
//
// A [Manager] owns one dialog state per session ID, creating states on
// first access and serializing turns within a session. Control
// commands (reset words, the debug dump) are intercepted here, before
// the dialog core ever sees them.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/elsabot/elsabot/pkg/dialog"
	"github.com/elsabot/elsabot/pkg/topic"
)

// resetCommands are the utterances that reset a session instead of
// being answered. Matching is exact after trimming; "Reset" in a
// sentence-case message is a normal utterance.
var resetCommands = map[string]bool{
	"clear":   true,
	"reset":   true,
	"restart": true,
	"exit":    true,
	"stop":    true,
	"quit":    true,
	"q":       true,
}

// debugCommand dumps the last turn's status instead of answering.
const debugCommand = "debug"

// Config assembles a Manager.
type Config struct {
	// NewState builds the dialog state for a fresh session. Required.
	NewState func() *dialog.State

	// Fallback is the reply when an utterance cannot be processed.
	Fallback string

	// ResetReply is the reply to a reset command.
	ResetReply string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Manager is the concurrent session table. Safe for concurrent use;
// turns within one session are serialized, sessions never block each
// other.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	state *dialog.State
}

// NewManager creates an empty session table.
func NewManager(cfg Config) *Manager {
	if cfg.Fallback == "" {
		cfg.Fallback = "Sorry, I didn't catch that."
	}
	if cfg.ResetReply == "" {
		cfg.ResetReply = "Okay, starting over."
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*session)}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Delete discards a session. Unknown IDs are a no-op.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// get returns the session for id, creating it on first access. Two
// concurrent first accesses race on the map under the lock; the first
// insert wins and both callers share it.
func (m *Manager) get(id string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = &session{state: m.cfg.NewState()}
		m.sessions[id] = s
	}
	return s
}

// Respond answers one utterance within a session. Control commands are
// handled here; everything else flows through the dialog state. A turn
// the dialog core cannot answer yields the fallback reply, not an
// error: transport callers treat any returned error as a server fault.
func (m *Manager) Respond(ctx context.Context, id, text string) (string, error) {
	s := m.get(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd := strings.TrimSpace(text); {
	case resetCommands[cmd]:
		s.state.Reset()
		return m.cfg.ResetReply, nil
	case cmd == debugCommand:
		return m.debugDump(s.state), nil
	}

	if !s.state.AddUtterance(text) {
		return m.cfg.Fallback, nil
	}
	reply, err := s.state.GetResponse(ctx)
	if err != nil {
		m.cfg.Logger.Warn("response selection failed", "session", id, "error", err)
		return m.cfg.Fallback, nil
	}

	// A goodbye hook plants the reset entity; the session dies after
	// this reply is delivered.
	if s.state.Current().Entities[topic.ResetEntity] != "" {
		m.Delete(id)
	}
	return reply, nil
}

// debugDump renders the most recent turn's status.
func (m *Manager) debugDump(st *dialog.State) string {
	if h := st.History(); len(h) > 0 {
		return h[len(h)-1].String()
	}
	return st.Current().String()
}
