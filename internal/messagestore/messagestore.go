// Package messagestore is the append-only chat message store. Messages are
// never mutated; retrieval is always scoped to one barrack and bounded by a
// limit, newest-first.
package messagestore

import "github.com/garrison-chat/garrison/internal/types"

type MessageStore interface {
	Append(msg types.ChatMessage) error
	// Fetch returns up to limit messages for the barrack, newest first.
	Fetch(barrackId string, limit int) ([]types.ChatMessage, error)
	// DeleteBarrackMessages removes all messages under barrackId. Deleting
	// an already-deleted barrack's messages is a no-op, not an error.
	DeleteBarrackMessages(barrackId string) error
}
