package server

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/stats"
)

// SessionInfo is the introspection view of one live connection.
type SessionInfo struct {
	Id           uint64    `json:"id"`
	PeerAddr     string    `json:"peer_addr"`
	State        string    `json:"state"`
	UserId       string    `json:"user_id,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ConnectionManager owns every live session. Session ids are monotonic
// for the life of the process and never reused.
type ConnectionManager struct {
	log   zerolog.Logger
	stats stats.Recorder

	mu       sync.Mutex
	nextId   uint64
	sessions map[uint64]*Session
}

func NewConnectionManager(logger zerolog.Logger, rec stats.Recorder) *ConnectionManager {
	return &ConnectionManager{
		log:      logger.With().Str("component", "connections").Logger(),
		stats:    rec,
		sessions: make(map[uint64]*Session),
	}
}

// NextId reserves a fresh session id.
func (cm *ConnectionManager) NextId() uint64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.nextId++
	return cm.nextId
}

func (cm *ConnectionManager) Register(s *Session) {
	cm.mu.Lock()
	cm.sessions[s.Id()] = s
	n := len(cm.sessions)
	cm.mu.Unlock()

	cm.stats.SessionOpened()
	cm.log.Debug().Uint64("session_id", s.Id()).Str("peer", s.PeerAddr()).Int("active", n).Msg("session registered")
}

// Unregister is idempotent; only the first call for a session id
// decrements the active count.
func (cm *ConnectionManager) Unregister(id uint64) {
	cm.mu.Lock()
	_, ok := cm.sessions[id]
	if ok {
		delete(cm.sessions, id)
	}
	n := len(cm.sessions)
	cm.mu.Unlock()

	if ok {
		cm.stats.SessionClosed()
		cm.log.Debug().Uint64("session_id", id).Int("active", n).Msg("session unregistered")
	}
}

func (cm *ConnectionManager) Get(id uint64) *Session {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.sessions[id]
}

func (cm *ConnectionManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.sessions)
}

// Sessions snapshots metadata for every live session.
func (cm *ConnectionManager) Sessions() []SessionInfo {
	cm.mu.Lock()
	live := make([]*Session, 0, len(cm.sessions))
	for _, s := range cm.sessions {
		live = append(live, s)
	}
	cm.mu.Unlock()

	infos := make([]SessionInfo, 0, len(live))
	for _, s := range live {
		infos = append(infos, SessionInfo{
			Id:           s.Id(),
			PeerAddr:     s.PeerAddr(),
			State:        s.State().String(),
			UserId:       s.UserId(),
			ConnectedAt:  s.ConnectedAt(),
			LastActivity: s.LastActivity(),
		})
	}
	return infos
}

// CloseAll closes every live session, used during shutdown.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	live := make([]*Session, 0, len(cm.sessions))
	for _, s := range cm.sessions {
		live = append(live, s)
	}
	cm.mu.Unlock()

	for _, s := range live {
		s.Close(StateClosed)
	}
}
