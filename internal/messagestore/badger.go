package messagestore

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/types"
)

// Keys are msg:<barrack_id>:<message_id>. Message ids are UUIDv7, so a
// reverse iteration over one barrack's prefix yields newest-first.
const msgKeyPrefix = "msg:"

type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the store at dir. An empty dir opens an
// in-memory instance, which tests use.
func Open(dir string, log zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}

	log.Info().Str("dir", dir).Msg("message store opened")
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func msgKey(barrackId, messageId string) []byte {
	return []byte(msgKeyPrefix + barrackId + ":" + messageId)
}

func barrackPrefix(barrackId string) []byte {
	return []byte(msgKeyPrefix + barrackId + ":")
}

func (s *BadgerStore) Append(msg types.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return types.WrapError(types.ErrCodeDatabase, "marshal message", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(msgKey(msg.BarrackId, msg.MessageId), data)
	})
	if err != nil {
		return types.WrapError(types.ErrCodeDatabase, "append message", err)
	}
	return nil
}

func (s *BadgerStore) Fetch(barrackId string, limit int) ([]types.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	msgs := make([]types.ChatMessage, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := barrackPrefix(barrackId)

		itOpts := badger.DefaultIteratorOptions
		itOpts.Reverse = true
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		// in reverse mode seek to the end of the prefix range
		seekKey := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(msgs) < limit; it.Next() {
			var msg types.ChatMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapError(types.ErrCodeDatabase, "fetch messages", err)
	}

	return msgs, nil
}

func (s *BadgerStore) DeleteBarrackMessages(barrackId string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := barrackPrefix(barrackId)

		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = prefix
		it := txn.NewIterator(itOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.WrapError(types.ErrCodeDatabase, "delete barrack messages", err)
	}
	return nil
}
