package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionSequenceIds(t *testing.T) {
	s := newTestSession(1)
	assert.Equal(t, uint64(1), s.NextSequenceId())
	assert.Equal(t, uint64(2), s.NextSequenceId())
	assert.Equal(t, uint64(3), s.NextSequenceId())
}

func TestSessionAuth(t *testing.T) {
	s := newTestSession(1)
	assert.Empty(t, s.UserId())

	s.Authenticate("u-1", "tok")
	assert.Equal(t, "u-1", s.UserId())

	assert.Equal(t, "tok", s.ClearAuth())
	assert.Empty(t, s.UserId())
	assert.Empty(t, s.ClearAuth())
}

func TestSessionQueue(t *testing.T) {
	t.Run("closed session refuses frames", func(t *testing.T) {
		s := newTestSession(1)
		s.state.Store(int32(StateClosed))
		assert.False(t, s.Queue(ServerEnvelope{Type: TypeReceiveMessage}))
	})

	t.Run("full queue drops without blocking", func(t *testing.T) {
		s := newTestSession(1)
		for i := 0; i < sendQueueSize; i++ {
			assert.True(t, s.Queue(ServerEnvelope{Type: TypeReceiveMessage}))
		}
		assert.False(t, s.Queue(ServerEnvelope{Type: TypeReceiveMessage}))
	})
}

func TestSessionActivate(t *testing.T) {
	s := &Session{send: make(chan ServerEnvelope, 1), stop: make(chan struct{})}
	assert.Equal(t, StateHandshaking, s.State())

	s.Activate()
	assert.Equal(t, StateActive, s.State())

	// never revives a session past the handshake
	s.state.Store(int32(StateClosed))
	s.Activate()
	assert.Equal(t, StateClosed, s.State())
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "handshaking", StateHandshaking.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed_by_peer", StateClosedByPeer.String())
	assert.Equal(t, "closed", StateClosed.String())
}
