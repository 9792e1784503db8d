package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/services/jwt"
)

func newListFixture(t *testing.T) (*ListSession, *recordingHub, *models.User) {
	t.Helper()
	ada := &models.User{Model: models.Model{ID: 1}, Fullname: "Ada", Email: "ada@uni.edu", IsActive: true}
	hub := &recordingHub{}
	deps := SessionDeps{
		Auth: NewAuthenticator(testSecret, newFakeAuthRepo(ada)),
		Hub:  hub,
	}
	return NewListSession(deps, nil), hub, ada
}

func TestListSessionRejectsAnonymous(t *testing.T) {
	s, hub, _ := newListFixture(t)

	s.Run("")

	assert.Equal(t, StateClosed, s.State())
	assert.Empty(t, hub.joins)
}

func TestListSessionJoinsUserGroup(t *testing.T) {
	s, hub, ada := newListFixture(t)

	token, _, err := jwt.GenerateTokenPair(ada.Email, testSecret, ada.ID)
	require.NoError(t, err)

	// With a nil connection the read pump returns immediately, so Run
	// authenticates, joins and tears down in one pass.
	s.Run(token)

	assert.Contains(t, hub.joins, UserGroup(1))
	assert.Contains(t, hub.leaves, UserGroup(1))
	assert.Equal(t, StateClosed, s.State())
}

func TestListSessionPingPong(t *testing.T) {
	s, _, ada := newListFixture(t)
	s.user = ada

	s.handleInbound([]byte(`{"type":"ping"}`))

	select {
	case payload := <-s.send:
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &m))
		assert.Equal(t, string(EventPong), m["type"])
	default:
		t.Fatal("no pong frame")
	}
}

func TestListSessionRejectsChatCommands(t *testing.T) {
	s, _, ada := newListFixture(t)
	s.user = ada

	s.handleInbound([]byte(`{"type":"send_message","content":"hi"}`))

	select {
	case payload := <-s.send:
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &m))
		assert.Equal(t, string(EventError), m["type"])
	default:
		t.Fatal("no error frame")
	}
}

func TestListSessionRelaysEnqueuedPayloads(t *testing.T) {
	s, _, ada := newListFixture(t)
	s.user = ada

	assert.True(t, s.Enqueue([]byte(`{"type":"new_message"}`)))
	assert.Equal(t, []byte(`{"type":"new_message"}`), <-s.send)
}
