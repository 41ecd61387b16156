package server

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/stats"
)

// Room is the live broadcast set for one barrack. It holds non-owning
// references to sessions; the connection manager owns their lifecycle.
// Dead sessions are pruned lazily at broadcast time.
type Room struct {
	barrackId string

	mu      sync.Mutex
	members map[uint64]*Session
}

func newRoom(barrackId string) *Room {
	return &Room{
		barrackId: barrackId,
		members:   make(map[uint64]*Session),
	}
}

// Join is idempotent per session.
func (r *Room) Join(s *Session) {
	r.mu.Lock()
	r.members[s.Id()] = s
	r.mu.Unlock()
}

// Leave is idempotent; leaving a room the session isn't in is a no-op.
func (r *Room) Leave(sessionId uint64) {
	r.mu.Lock()
	delete(r.members, sessionId)
	r.mu.Unlock()
}

func (r *Room) Contains(sessionId uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[sessionId]
	return ok
}

func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Broadcast fans env out to every live member except skip. The envelope
// is re-tagged with each receiver's own sequence id. Sessions that are
// closed or refuse the frame are dropped from the room. Returns the
// number of deliveries.
func (r *Room) Broadcast(env ServerEnvelope, skip uint64) int {
	r.mu.Lock()
	targets := make([]*Session, 0, len(r.members))
	for id, s := range r.members {
		if id == skip {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		if s.State() >= StateClosing {
			r.Leave(s.Id())
			continue
		}

		out := env
		out.SequenceId = s.NextSequenceId()
		if !s.Queue(out) {
			r.Leave(s.Id())
			continue
		}
		delivered++
	}
	return delivered
}

// RoomRegistry maps barrack ids to live rooms. Rooms exist only while a
// connected session is interested in them; destroying a barrack or the
// last member leaving removes the room.
type RoomRegistry struct {
	log   zerolog.Logger
	stats stats.Recorder

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRoomRegistry(logger zerolog.Logger, rec stats.Recorder) *RoomRegistry {
	return &RoomRegistry{
		log:   logger.With().Str("component", "rooms").Logger(),
		stats: rec,
		rooms: make(map[string]*Room),
	}
}

func (rr *RoomRegistry) Get(barrackId string) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.rooms[barrackId]
}

func (rr *RoomRegistry) GetOrCreate(barrackId string) *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rooms[barrackId]
	if !ok {
		r = newRoom(barrackId)
		rr.rooms[barrackId] = r
	}
	return r
}

// Remove drops the whole room, used when its barrack is destroyed.
func (rr *RoomRegistry) Remove(barrackId string) {
	rr.mu.Lock()
	delete(rr.rooms, barrackId)
	rr.mu.Unlock()
}

// Leave removes the session from one room and collects the room if it
// emptied.
func (rr *RoomRegistry) Leave(barrackId string, sessionId uint64) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rooms[barrackId]
	if !ok {
		return
	}
	r.Leave(sessionId)
	if r.Size() == 0 {
		delete(rr.rooms, barrackId)
	}
}

// LeaveAll removes the session from every room, used at session
// teardown.
func (rr *RoomRegistry) LeaveAll(sessionId uint64) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for id, r := range rr.rooms {
		r.Leave(sessionId)
		if r.Size() == 0 {
			delete(rr.rooms, id)
		}
	}
}

// Broadcast fans out to the barrack's room if one is live.
func (rr *RoomRegistry) Broadcast(barrackId string, env ServerEnvelope, skip uint64) int {
	r := rr.Get(barrackId)
	if r == nil {
		return 0
	}

	n := r.Broadcast(env, skip)
	if n > 0 {
		rr.stats.BroadcastDelivered(n)
	}
	return n
}
