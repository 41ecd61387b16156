package server

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newTestSession builds a session without a socket; Queue and the
// sequence counter work, the pumps are never started.
func newTestSession(id uint64) *Session {
	s := &Session{
		id:       id,
		log:      zerolog.Nop(),
		send:     make(chan ServerEnvelope, sendQueueSize),
		stop:     make(chan struct{}),
		peerAddr: "127.0.0.1:0",
	}
	s.Activate()
	return s
}

func recvFrame(t *testing.T, s *Session) ServerEnvelope {
	t.Helper()

	select {
	case env := <-s.send:
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return ServerEnvelope{}
	}
}

func assertNoFrame(t *testing.T, s *Session) {
	t.Helper()

	select {
	case env := <-s.send:
		t.Fatalf("unexpected frame queued: %s", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
