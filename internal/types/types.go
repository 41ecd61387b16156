package types

import "time"

// MinBarrackNameLen is the length a barrack name must exceed.
const MinBarrackNameLen = 5

type UserAccount struct {
	Id             string    `json:"user_id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	Salt           string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type Barrack struct {
	Id             string    `json:"barrack_id"`
	Name           string    `json:"barrack_name"`
	AdminId        string    `json:"admin_id"`
	IsPrivate      bool      `json:"is_private"`
	HashedPassword string    `json:"-"`
	Salt           string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

type BarrackMember struct {
	BarrackId string    `json:"barrack_id"`
	UserId    string    `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ChatMessage ids are UUIDv7, so lexical order is send order.
type ChatMessage struct {
	MessageId    string    `json:"message_id"`
	BarrackId    string    `json:"barrack_id"`
	SenderUserId string    `json:"sender_id"`
	Content      string    `json:"content"`
	SentAt       time.Time `json:"sent_at"`
}

type OutboxEvent struct {
	EventId   int64     `json:"event_id"`
	EventType string    `json:"event_type"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// EventBarrackDestroyed is written to the outbox in the same transaction
// that deletes a barrack; its payload carries the barrack id.
const EventBarrackDestroyed = "BarrackDestroyed"

type BarrackDestroyedPayload struct {
	BarrackId string `json:"barrack_id"`
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
