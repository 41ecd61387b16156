package database

import "github.com/garrison-chat/garrison/internal/types"

// Store is the contract the core requires of the transactional store.
// Implementations translate driver errors into *types.Error at this
// boundary; callers never see raw driver errors.
type Store interface {
	Ping() error

	CreateUser(user types.UserAccount) error
	GetUserByUsername(username string) (types.UserAccount, error)
	GetUserById(userId string) (types.UserAccount, error)

	CreateBarrack(barrack types.Barrack) error
	GetBarrackById(barrackId string) (types.Barrack, error)
	ListBarracks() ([]BarrackSummary, error)
	// DestroyBarrack deletes the barrack row, cascades membership deletion
	// and inserts one BarrackDestroyed outbox event, all in one transaction.
	DestroyBarrack(barrackId string) error

	AddBarrackMember(member types.BarrackMember) error
	RemoveBarrackMember(barrackId, userId string) error
	GetBarrackMembers(barrackId string) ([]types.BarrackMember, error)

	GetUnprocessedOutboxEvents(limit int) ([]types.OutboxEvent, error)
	DeleteOutboxEvent(eventId int64) error
}

// BarrackSummary is the row shape behind LIST_BARRACK_RESPONSE.
type BarrackSummary struct {
	Id          string `json:"barrack_id"`
	Name        string `json:"barrack_name"`
	MemberCount int    `json:"member_count"`
}
