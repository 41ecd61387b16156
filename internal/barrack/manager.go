// Package barrack holds the domain engine for barrack lifecycle,
// membership and messaging. All state transitions go through the
// Manager, which keeps a cache in front of the transactional store
// and hands message persistence to a background writer.
package barrack

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"

	"github.com/garrison-chat/garrison/internal/crypto"
	"github.com/garrison-chat/garrison/internal/database"
	"github.com/garrison-chat/garrison/internal/messagestore"
	"github.com/garrison-chat/garrison/internal/stats"
	"github.com/garrison-chat/garrison/internal/types"
)

type Manager struct {
	log        zerolog.Logger
	store      database.Store
	messages   messagestore.MessageStore
	stats      stats.Recorder
	fetchLimit int

	// one lock over every cache map; the engine serializes state
	// transitions, the store and message writer do the slow work
	mu           sync.Mutex
	barracks     map[string]types.Barrack
	members      map[string]map[string]types.BarrackMember
	messageCache map[string][]types.ChatMessage // oldest first

	writeQueue chan types.ChatMessage
	writerDone sync.WaitGroup
}

func NewManager(logger zerolog.Logger, store database.Store, messages messagestore.MessageStore, rec stats.Recorder, queueSize, fetchLimit int) *Manager {
	m := &Manager{
		log:          logger.With().Str("component", "barrack").Logger(),
		store:        store,
		messages:     messages,
		stats:        rec,
		fetchLimit:   fetchLimit,
		barracks:     make(map[string]types.Barrack),
		members:      make(map[string]map[string]types.BarrackMember),
		messageCache: make(map[string][]types.ChatMessage),
		writeQueue:   make(chan types.ChatMessage, queueSize),
	}

	m.writerDone.Add(1)
	go m.writeLoop()

	return m
}

// writeLoop drains the write queue into the message store. Persistence
// is best effort: a failed append is logged and counted, never retried,
// the cache already holds the message.
func (m *Manager) writeLoop() {
	defer m.writerDone.Done()

	for msg := range m.writeQueue {
		if err := m.messages.Append(msg); err != nil {
			m.stats.MessagePersistFailed()
			m.log.Error().Err(err).
				Str("barrack_id", msg.BarrackId).
				Str("message_id", msg.MessageId).
				Msg("failed to persist message")
			continue
		}
		m.stats.MessagePersisted()
	}
}

// Close stops accepting new messages and waits for the writer to drain
// the queue.
func (m *Manager) Close() {
	close(m.writeQueue)
	m.writerDone.Wait()
}

// CreateBarrack validates and creates a new barrack owned by requesterId.
// The cache is written optimistically and rolled back if the store insert
// fails.
func (m *Manager) CreateBarrack(requesterId, name string, isPrivate bool, password string) (types.Barrack, error) {
	if len(name) <= types.MinBarrackNameLen {
		return types.Barrack{}, types.NewError(types.ErrCodeInvalidData, "barrack name too short")
	}
	if isPrivate && password == "" {
		return types.Barrack{}, types.NewError(types.ErrCodeInvalidData, "private barrack requires a password")
	}

	id, err := shortid.Generate()
	if err != nil {
		return types.Barrack{}, types.WrapError(types.ErrCodeDatabase, "generate barrack id", err)
	}

	b := types.Barrack{
		Id:        id,
		Name:      name,
		AdminId:   requesterId,
		IsPrivate: isPrivate,
		CreatedAt: types.Now(),
	}
	if isPrivate {
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return types.Barrack{}, types.WrapError(types.ErrCodeDatabase, "generate salt", err)
		}
		digest, err := crypto.HashPassword(password, salt)
		if err != nil {
			return types.Barrack{}, types.WrapError(types.ErrCodeDatabase, "hash password", err)
		}
		b.Salt = salt
		b.HashedPassword = digest
	}

	m.mu.Lock()
	m.barracks[b.Id] = b
	m.members[b.Id] = make(map[string]types.BarrackMember)
	m.mu.Unlock()

	if err := m.store.CreateBarrack(b); err != nil {
		m.mu.Lock()
		delete(m.barracks, b.Id)
		delete(m.members, b.Id)
		m.mu.Unlock()
		return types.Barrack{}, err
	}

	m.log.Info().Str("barrack_id", b.Id).Str("name", name).Str("admin_id", requesterId).Msg("barrack created")
	return b, nil
}

// DestroyBarrack removes a barrack. Only the admin may destroy it; the
// store deletes the row, its membership and enqueues the outbox event in
// one transaction, then the caches are purged.
func (m *Manager) DestroyBarrack(requesterId, barrackId string) error {
	b, err := m.GetBarrack(barrackId)
	if err != nil {
		return err
	}
	if b.AdminId != requesterId {
		return types.NewError(types.ErrCodeInvalidOwner, "only the barrack admin can destroy it")
	}

	if err := m.store.DestroyBarrack(barrackId); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.barracks, barrackId)
	delete(m.members, barrackId)
	delete(m.messageCache, barrackId)
	m.mu.Unlock()

	m.log.Info().Str("barrack_id", barrackId).Msg("barrack destroyed")
	return nil
}

// JoinBarrack adds requesterId as a member. Private barracks require the
// barrack password.
func (m *Manager) JoinBarrack(requesterId, barrackId, password string) (types.Barrack, error) {
	b, err := m.GetBarrack(barrackId)
	if err != nil {
		return types.Barrack{}, err
	}

	if b.IsPrivate && !crypto.VerifyPassword(password, b.Salt, b.HashedPassword) {
		return types.Barrack{}, types.NewError(types.ErrCodeInvalidPassword, "invalid barrack password")
	}

	member := types.BarrackMember{
		BarrackId: barrackId,
		UserId:    requesterId,
		JoinedAt:  types.Now(),
	}
	if err := m.store.AddBarrackMember(member); err != nil {
		return types.Barrack{}, err
	}

	m.mu.Lock()
	if m.members[barrackId] == nil {
		m.members[barrackId] = make(map[string]types.BarrackMember)
	}
	m.members[barrackId][requesterId] = member
	m.mu.Unlock()

	return b, nil
}

// LeaveBarrack removes requesterId from the barrack's membership.
func (m *Manager) LeaveBarrack(requesterId, barrackId string) error {
	if err := m.store.RemoveBarrackMember(barrackId, requesterId); err != nil {
		return err
	}

	m.mu.Lock()
	if mm := m.members[barrackId]; mm != nil {
		delete(mm, requesterId)
	}
	m.mu.Unlock()

	return nil
}

// MessageBarrack records a chat message from a member. The message is
// appended to the cache immediately and persisted asynchronously.
func (m *Manager) MessageBarrack(requesterId, barrackId, content string) (types.ChatMessage, error) {
	if content == "" {
		return types.ChatMessage{}, types.NewError(types.ErrCodeInvalidData, "empty message")
	}

	member, err := m.GetBarrackMember(barrackId, requesterId)
	if err != nil {
		return types.ChatMessage{}, err
	}

	// v7 ids sort by creation time, which keeps store iteration in
	// message order
	id, err := uuid.NewV7()
	if err != nil {
		return types.ChatMessage{}, types.WrapError(types.ErrCodeDatabase, "generate message id", err)
	}

	msg := types.ChatMessage{
		MessageId:    id.String(),
		BarrackId:    barrackId,
		SenderUserId: member.UserId,
		Content:      content,
		SentAt:       types.Now(),
	}

	m.mu.Lock()
	m.messageCache[barrackId] = append(m.messageCache[barrackId], msg)
	m.mu.Unlock()

	select {
	case m.writeQueue <- msg:
	default:
		m.stats.MessagePersistFailed()
		m.log.Warn().Str("barrack_id", barrackId).Msg("message write queue full, dropping persist")
	}

	return msg, nil
}

// GetBarrack reads a barrack, cache first, store on miss.
func (m *Manager) GetBarrack(barrackId string) (types.Barrack, error) {
	m.mu.Lock()
	b, ok := m.barracks[barrackId]
	m.mu.Unlock()
	if ok {
		return b, nil
	}

	b, err := m.store.GetBarrackById(barrackId)
	if err != nil {
		return types.Barrack{}, err
	}

	m.mu.Lock()
	m.barracks[barrackId] = b
	m.mu.Unlock()

	return b, nil
}

// ListBarracks returns summaries straight from the store; the listing
// includes barracks created by other nodes and is not cached.
func (m *Manager) ListBarracks() ([]database.BarrackSummary, error) {
	return m.store.ListBarracks()
}

// GetBarrackMember resolves one membership record.
func (m *Manager) GetBarrackMember(barrackId, userId string) (types.BarrackMember, error) {
	m.mu.Lock()
	if mm, ok := m.members[barrackId]; ok {
		if member, ok := mm[userId]; ok {
			m.mu.Unlock()
			return member, nil
		}
	}
	m.mu.Unlock()

	members, err := m.loadMembers(barrackId)
	if err != nil {
		return types.BarrackMember{}, err
	}

	member, ok := members[userId]
	if !ok {
		return types.BarrackMember{}, types.NewError(types.ErrCodeMemberNotFound, "not a member of this barrack")
	}
	return member, nil
}

// GetBarrackMembers lists the members of a barrack.
func (m *Manager) GetBarrackMembers(barrackId string) ([]types.BarrackMember, error) {
	m.mu.Lock()
	mm, ok := m.members[barrackId]
	if ok && len(mm) > 0 {
		out := make([]types.BarrackMember, 0, len(mm))
		for _, member := range mm {
			out = append(out, member)
		}
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	members, err := m.loadMembers(barrackId)
	if err != nil {
		return nil, err
	}

	out := make([]types.BarrackMember, 0, len(members))
	for _, member := range members {
		out = append(out, member)
	}
	return out, nil
}

// loadMembers refreshes the member cache for a barrack from the store.
// The barrack must exist; a missing barrack surfaces as NOT_FOUND.
func (m *Manager) loadMembers(barrackId string) (map[string]types.BarrackMember, error) {
	if _, err := m.GetBarrack(barrackId); err != nil {
		return nil, err
	}

	members, err := m.store.GetBarrackMembers(barrackId)
	if err != nil {
		return nil, err
	}

	mm := make(map[string]types.BarrackMember, len(members))
	for _, member := range members {
		mm[member.UserId] = member
	}

	m.mu.Lock()
	m.members[barrackId] = mm
	m.mu.Unlock()

	return mm, nil
}

// GetBarrackMessages returns up to limit recent messages, newest first.
// Limit is clamped to the configured fetch limit; zero means the full
// fetch limit.
func (m *Manager) GetBarrackMessages(barrackId string, limit int) ([]types.ChatMessage, error) {
	if limit <= 0 || limit > m.fetchLimit {
		limit = m.fetchLimit
	}

	// A cached entry is authoritative even when short of limit; the
	// store may lag behind it while the writer drains the queue.
	m.mu.Lock()
	cached, ok := m.messageCache[barrackId]
	if ok {
		out := make([]types.ChatMessage, 0, limit)
		for i := len(cached) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, cached[i])
		}
		m.mu.Unlock()
		return out, nil
	}
	m.mu.Unlock()

	if _, err := m.GetBarrack(barrackId); err != nil {
		return nil, err
	}

	msgs, err := m.messages.Fetch(barrackId, limit)
	if err != nil {
		return nil, err
	}

	// fill the cache oldest first
	cache := make([]types.ChatMessage, len(msgs))
	for i, msg := range msgs {
		cache[len(msgs)-1-i] = msg
	}
	m.mu.Lock()
	if _, ok := m.messageCache[barrackId]; !ok {
		m.messageCache[barrackId] = cache
	}
	m.mu.Unlock()

	return msgs, nil
}
