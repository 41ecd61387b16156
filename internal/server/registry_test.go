package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrison-chat/garrison/internal/stats"
	"github.com/garrison-chat/garrison/internal/testutil"
)

func TestConnectionManager(t *testing.T) {
	t.Run("ids are monotonic and never reused", func(t *testing.T) {
		cm := NewConnectionManager(testutil.TestLogger(t), stats.NopRecorder{})
		first := cm.NextId()
		second := cm.NextId()
		assert.Less(t, first, second)

		cm.Unregister(first)
		assert.Greater(t, cm.NextId(), second)
	})

	t.Run("register and unregister", func(t *testing.T) {
		cm := NewConnectionManager(testutil.TestLogger(t), stats.NopRecorder{})
		s := newTestSession(cm.NextId())

		cm.Register(s)
		assert.Equal(t, 1, cm.Count())
		assert.Same(t, s, cm.Get(s.Id()))

		cm.Unregister(s.Id())
		cm.Unregister(s.Id()) // idempotent
		assert.Equal(t, 0, cm.Count())
		assert.Nil(t, cm.Get(s.Id()))
	})

	t.Run("session info snapshot", func(t *testing.T) {
		cm := NewConnectionManager(testutil.TestLogger(t), stats.NopRecorder{})
		s := newTestSession(cm.NextId())
		s.Authenticate("u-1", "tok")
		cm.Register(s)

		infos := cm.Sessions()
		require.Len(t, infos, 1)
		assert.Equal(t, s.Id(), infos[0].Id)
		assert.Equal(t, "u-1", infos[0].UserId)
		assert.Equal(t, "active", infos[0].State)
		assert.Equal(t, "127.0.0.1:0", infos[0].PeerAddr)
	})
}
