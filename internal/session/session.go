// Package session tracks per-identity dialog state for the bot.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// State is the conversation mode of one identity. Exactly one mode is active
// per identity at a time; unknown identities are Idle.
type State int

const (
	Idle State = iota
	AwaitingFeedback
	AwaitingKnowledgeEntry
)

func (s State) String() string {
	switch s {
	case AwaitingFeedback:
		return "awaiting_feedback"
	case AwaitingKnowledgeEntry:
		return "awaiting_knowledge_entry"
	default:
		return "idle"
	}
}

// PendingSave ties a "save this?" offer to the question and full answer it
// was made for. It lives for exactly one confirm/decline round-trip, so the
// callback payload only has to carry an opaque token instead of free text.
type PendingSave struct {
	Identity int64
	Question string
	Answer   string
}

// Manager owns the identity -> state map and the outstanding save offers.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	states  map[int64]State
	pending map[string]PendingSave
}

func NewManager() *Manager {
	return &Manager{
		states:  make(map[int64]State),
		pending: make(map[string]PendingSave),
	}
}

// State returns the current mode for identity, defaulting to Idle.
func (m *Manager) State(identity int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[identity]
}

// SetState transitions identity to st.
func (m *Manager) SetState(identity int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == Idle {
		delete(m.states, identity)
		return
	}
	m.states[identity] = st
}

// Reset returns identity to Idle.
func (m *Manager) Reset(identity int64) {
	m.SetState(identity, Idle)
}

// OfferSave registers a pending save and returns the token to embed in the
// confirm/decline button payloads.
func (m *Manager) OfferSave(identity int64, question, answer string) string {
	token := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[token] = PendingSave{Identity: identity, Question: question, Answer: answer}
	return token
}

// TakeSave removes and returns the pending save for token, provided it
// belongs to identity. An offer pressed by anyone else is left in place.
func (m *Manager) TakeSave(token string, identity int64) (PendingSave, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.pending[token]
	if !ok || ps.Identity != identity {
		return PendingSave{}, false
	}
	delete(m.pending, token)
	return ps, true
}
