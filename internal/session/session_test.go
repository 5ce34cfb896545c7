package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestState_DefaultsToIdle(t *testing.T) {
	m := NewManager()
	require.Equal(t, Idle, m.State(1))
}

func TestSetState_And_Reset(t *testing.T) {
	m := NewManager()
	m.SetState(1, AwaitingFeedback)
	require.Equal(t, AwaitingFeedback, m.State(1))

	m.Reset(1)
	require.Equal(t, Idle, m.State(1))
}

func TestState_IdentitiesAreIndependent(t *testing.T) {
	m := NewManager()
	m.SetState(1, AwaitingKnowledgeEntry)
	m.SetState(2, AwaitingFeedback)

	require.Equal(t, AwaitingKnowledgeEntry, m.State(1))
	require.Equal(t, AwaitingFeedback, m.State(2))
	require.Equal(t, Idle, m.State(3))

	m.Reset(1)
	require.Equal(t, Idle, m.State(1))
	require.Equal(t, AwaitingFeedback, m.State(2))
}

func TestOfferSave_TakeSave_RoundTrip(t *testing.T) {
	m := NewManager()
	token := m.OfferSave(7, "Вопрос?", "Ответ.")
	require.NotEmpty(t, token)

	ps, ok := m.TakeSave(token, 7)
	require.True(t, ok)
	require.Equal(t, PendingSave{Identity: 7, Question: "Вопрос?", Answer: "Ответ."}, ps)
}

func TestTakeSave_ConsumedOnce(t *testing.T) {
	m := NewManager()
	token := m.OfferSave(7, "Вопрос?", "Ответ.")

	_, ok := m.TakeSave(token, 7)
	require.True(t, ok)
	_, ok = m.TakeSave(token, 7)
	require.False(t, ok)
}

func TestTakeSave_WrongIdentityLeavesOffer(t *testing.T) {
	m := NewManager()
	token := m.OfferSave(7, "Вопрос?", "Ответ.")

	_, ok := m.TakeSave(token, 8)
	require.False(t, ok)

	// The rightful owner can still consume it.
	_, ok = m.TakeSave(token, 7)
	require.True(t, ok)
}

func TestTakeSave_UnknownToken(t *testing.T) {
	m := NewManager()
	_, ok := m.TakeSave("no-such-token", 7)
	require.False(t, ok)
}

func TestOfferSave_ConcurrentOffersDoNotCollide(t *testing.T) {
	m := NewManager()
	t1 := m.OfferSave(1, "в1", "о1")
	t2 := m.OfferSave(2, "в2", "о2")
	require.NotEqual(t, t1, t2)

	ps1, ok := m.TakeSave(t1, 1)
	require.True(t, ok)
	require.Equal(t, "в1", ps1.Question)

	ps2, ok := m.TakeSave(t2, 2)
	require.True(t, ok)
	require.Equal(t, "в2", ps2.Question)
}
