package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garrison-chat/garrison/internal/stats"
	"github.com/garrison-chat/garrison/internal/testutil"
)

func TestRoomJoinLeave(t *testing.T) {
	r := newRoom("b-1")
	s1 := newTestSession(1)

	r.Join(s1)
	r.Join(s1) // idempotent
	assert.Equal(t, 1, r.Size())
	assert.True(t, r.Contains(1))

	r.Leave(1)
	r.Leave(1) // idempotent
	assert.Equal(t, 0, r.Size())
	assert.False(t, r.Contains(1))
}

func TestRoomBroadcast(t *testing.T) {
	t.Run("skips sender and retags sequence ids", func(t *testing.T) {
		r := newRoom("b-1")
		sender, other := newTestSession(1), newTestSession(2)
		r.Join(sender)
		r.Join(other)

		// advance the receiver's counter so re-tagging is observable
		other.NextSequenceId()
		other.NextSequenceId()

		n := r.Broadcast(ServerEnvelope{Type: TypeReceiveMessage}, sender.Id())
		assert.Equal(t, 1, n)

		env := recvFrame(t, other)
		assert.Equal(t, TypeReceiveMessage, env.Type)
		assert.Equal(t, uint64(3), env.SequenceId)
		assertNoFrame(t, sender)
	})

	t.Run("prunes closed sessions", func(t *testing.T) {
		r := newRoom("b-1")
		live, dead := newTestSession(1), newTestSession(2)
		dead.state.Store(int32(StateClosed))
		r.Join(live)
		r.Join(dead)

		n := r.Broadcast(ServerEnvelope{Type: TypeReceiveMessage}, 0)
		assert.Equal(t, 1, n)
		assert.False(t, r.Contains(dead.Id()))
		assert.True(t, r.Contains(live.Id()))
	})

	t.Run("broadcast order matches send order per receiver", func(t *testing.T) {
		r := newRoom("b-1")
		recv := newTestSession(1)
		r.Join(recv)

		r.Broadcast(ServerEnvelope{Type: TypeUserJoinedNotify}, 0)
		r.Broadcast(ServerEnvelope{Type: TypeReceiveMessage}, 0)

		first := recvFrame(t, recv)
		second := recvFrame(t, recv)
		assert.Equal(t, TypeUserJoinedNotify, first.Type)
		assert.Equal(t, TypeReceiveMessage, second.Type)
		assert.Less(t, first.SequenceId, second.SequenceId)
	})
}

func TestRoomRegistry(t *testing.T) {
	t.Run("get or create is stable", func(t *testing.T) {
		rr := NewRoomRegistry(testutil.TestLogger(t), stats.NopRecorder{})
		r1 := rr.GetOrCreate("b-1")
		r2 := rr.GetOrCreate("b-1")
		assert.Same(t, r1, r2)
	})

	t.Run("leave collects empty rooms", func(t *testing.T) {
		rr := NewRoomRegistry(testutil.TestLogger(t), stats.NopRecorder{})
		s := newTestSession(1)
		rr.GetOrCreate("b-1").Join(s)

		rr.Leave("b-1", s.Id())
		assert.Nil(t, rr.Get("b-1"))
	})

	t.Run("leave all drops the session everywhere", func(t *testing.T) {
		rr := NewRoomRegistry(testutil.TestLogger(t), stats.NopRecorder{})
		s1, s2 := newTestSession(1), newTestSession(2)
		rr.GetOrCreate("b-1").Join(s1)
		rr.GetOrCreate("b-1").Join(s2)
		rr.GetOrCreate("b-2").Join(s1)

		rr.LeaveAll(s1.Id())

		assert.False(t, rr.Get("b-1").Contains(s1.Id()))
		assert.True(t, rr.Get("b-1").Contains(s2.Id()))
		assert.Nil(t, rr.Get("b-2"))
	})

	t.Run("remove drops the room", func(t *testing.T) {
		rr := NewRoomRegistry(testutil.TestLogger(t), stats.NopRecorder{})
		rr.GetOrCreate("b-1")
		rr.Remove("b-1")
		assert.Nil(t, rr.Get("b-1"))
	})

	t.Run("broadcast without a room delivers nothing", func(t *testing.T) {
		rr := NewRoomRegistry(testutil.TestLogger(t), stats.NopRecorder{})
		assert.Equal(t, 0, rr.Broadcast("nope", ServerEnvelope{Type: TypeReceiveMessage}, 0))
	})
}
