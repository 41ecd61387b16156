package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096

	sendQueueSize = 256
)

type SessionState int32

const (
	StateHandshaking SessionState = iota
	StateActive
	StateClosing
	StateClosedByPeer
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosedByPeer:
		return "closed_by_peer"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-connection actor. One goroutine reads frames, one
// drains the send queue onto the socket; everything else talks to the
// session through Queue.
type Session struct {
	id   uint64
	conn *websocket.Conn
	log  zerolog.Logger

	send chan ServerEnvelope
	stop chan struct{}

	state   atomic.Int32
	nextSeq atomic.Uint64

	peerAddr    string
	connectedAt time.Time

	mu           sync.Mutex
	userId       string
	token        string
	lastActivity time.Time

	closeOnce sync.Once
	teardown  func(*Session)
}

func NewSession(id uint64, conn *websocket.Conn, logger zerolog.Logger, teardown func(*Session)) *Session {
	now := types.Now()
	s := &Session{
		id:           id,
		conn:         conn,
		log:          logger.With().Uint64("session_id", id).Logger(),
		send:         make(chan ServerEnvelope, sendQueueSize),
		stop:         make(chan struct{}),
		peerAddr:     conn.RemoteAddr().String(),
		connectedAt:  now,
		lastActivity: now,
		teardown:     teardown,
	}
	s.state.Store(int32(StateHandshaking))
	return s
}

func (s *Session) Id() uint64          { return s.id }
func (s *Session) PeerAddr() string    { return s.peerAddr }
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Activate marks the handshake complete and the session ready for traffic.
func (s *Session) Activate() {
	s.state.CompareAndSwap(int32(StateHandshaking), int32(StateActive))
}

func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// NextSequenceId hands out the tag for the next server-initiated frame.
func (s *Session) NextSequenceId() uint64 {
	return s.nextSeq.Add(1)
}

// Authenticate binds a user id and token to the session.
func (s *Session) Authenticate(userId, token string) {
	s.mu.Lock()
	s.userId = userId
	s.token = token
	s.mu.Unlock()
}

// ClearAuth drops the session's authentication and returns the token
// that was bound, empty if none.
func (s *Session) ClearAuth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := s.token
	s.userId = ""
	s.token = ""
	return token
}

// UserId returns the authenticated user id, empty when unauthenticated.
func (s *Session) UserId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userId
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = types.Now()
	s.mu.Unlock()
}

// Queue enqueues a frame for the write pump. It never blocks; a full
// queue or a closed session drops the frame.
func (s *Session) Queue(env ServerEnvelope) bool {
	if s.State() >= StateClosing {
		return false
	}

	select {
	case s.send <- env:
		return true
	case <-s.stop:
		return false
	default:
		s.log.Warn().Str("type", env.Type).Msg("send queue full, dropping frame")
		return false
	}
}

// writeLoop is the single writer on the socket. It serializes queued
// envelopes and keeps the connection alive with pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case env := <-s.send:
			bytes, err := json.Marshal(env)
			if err != nil {
				s.log.Error().Err(err).Str("type", env.Type).Msg("failed to serialize frame")
				continue
			}

			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
					s.log.Debug().Err(err).Msg("write failed")
				}
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop reads frames off the socket and hands parsed envelopes to
// submit. An unparseable frame gets an INVALID_JSON error and the
// connection stays open.
func (s *Session) readLoop(submit func(*Session, ClientEnvelope)) {
	defer s.Close(StateClosedByPeer)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("read failed")
			}
			return
		}

		s.touch()

		var env ClientEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Debug().Err(err).Msg("unparseable frame")
			s.Queue(errorEnvelope(s.NextSequenceId(), errCodeInvalidJSON, "malformed message"))
			continue
		}

		submit(s, env)
	}
}

// Close tears the session down exactly once: stops both pumps, closes
// the socket and runs the registered teardown.
func (s *Session) Close(reason SessionState) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		close(s.stop)
		s.conn.Close()
		s.state.Store(int32(reason))
		if s.teardown != nil {
			s.teardown(s)
		}
	})
}
