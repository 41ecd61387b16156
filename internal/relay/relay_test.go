package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrison-chat/garrison/internal/database"
	"github.com/garrison-chat/garrison/internal/messagestore"
	"github.com/garrison-chat/garrison/internal/stats"
	"github.com/garrison-chat/garrison/internal/testutil"
	"github.com/garrison-chat/garrison/internal/types"
)

func destroyedEvent(t *testing.T, eventId int64, barrackId string) types.OutboxEvent {
	t.Helper()

	payload, err := json.Marshal(types.BarrackDestroyedPayload{BarrackId: barrackId})
	require.NoError(t, err)

	return types.OutboxEvent{
		EventId:   eventId,
		EventType: types.EventBarrackDestroyed,
		Payload:   payload,
		CreatedAt: types.Now(),
	}
}

func newTestRelay(t *testing.T, store database.Store, msgs messagestore.MessageStore) *Relay {
	t.Helper()
	return New(testutil.TestLogger(t), store, msgs, stats.NopRecorder{}, time.Second, 10, time.Second)
}

func TestDrainBatch(t *testing.T) {
	t.Run("deletes messages then event", func(t *testing.T) {
		event := destroyedEvent(t, 1, "b-1")

		store := &database.MockStore{}
		store.On("GetUnprocessedOutboxEvents", 10).Return([]types.OutboxEvent{event}, nil)
		store.On("DeleteOutboxEvent", int64(1)).Return(nil)

		msgs := &messagestore.MockMessageStore{}
		msgs.On("DeleteBarrackMessages", "b-1").Return(nil)

		r := newTestRelay(t, store, msgs)
		require.NoError(t, r.drainBatch())

		store.AssertExpectations(t)
		msgs.AssertExpectations(t)
	})

	t.Run("keeps event when purge fails", func(t *testing.T) {
		event := destroyedEvent(t, 2, "b-2")

		store := &database.MockStore{}
		store.On("GetUnprocessedOutboxEvents", 10).Return([]types.OutboxEvent{event}, nil)

		msgs := &messagestore.MockMessageStore{}
		msgs.On("DeleteBarrackMessages", "b-2").Return(errors.New("disk error"))

		r := newTestRelay(t, store, msgs)
		require.Error(t, r.drainBatch())

		// the event was not deleted, it will be retried next poll
		store.AssertNotCalled(t, "DeleteOutboxEvent", int64(2))
	})

	t.Run("failing event stops the batch", func(t *testing.T) {
		first := destroyedEvent(t, 3, "b-3")
		second := destroyedEvent(t, 4, "b-4")

		store := &database.MockStore{}
		store.On("GetUnprocessedOutboxEvents", 10).Return([]types.OutboxEvent{first, second}, nil)

		msgs := &messagestore.MockMessageStore{}
		msgs.On("DeleteBarrackMessages", "b-3").Return(errors.New("disk error"))

		r := newTestRelay(t, store, msgs)
		require.Error(t, r.drainBatch())

		msgs.AssertNotCalled(t, "DeleteBarrackMessages", "b-4")
	})

	t.Run("unknown event type is dropped", func(t *testing.T) {
		event := types.OutboxEvent{EventId: 5, EventType: "SomethingNew", Payload: []byte(`{}`)}

		store := &database.MockStore{}
		store.On("GetUnprocessedOutboxEvents", 10).Return([]types.OutboxEvent{event}, nil)
		store.On("DeleteOutboxEvent", int64(5)).Return(nil)

		r := newTestRelay(t, store, &messagestore.MockMessageStore{})
		require.NoError(t, r.drainBatch())
		store.AssertExpectations(t)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		store := &database.MockStore{}
		store.On("GetUnprocessedOutboxEvents", 10).Return([]types.OutboxEvent{}, nil)

		r := newTestRelay(t, store, &messagestore.MockMessageStore{})
		require.NoError(t, r.drainBatch())
	})
}

func TestStartStop(t *testing.T) {
	store := &database.MockStore{}
	store.On("GetUnprocessedOutboxEvents", 10).Return([]types.OutboxEvent{}, nil).Maybe()

	r := New(testutil.TestLogger(t), store, &messagestore.MockMessageStore{}, stats.NopRecorder{}, 10*time.Millisecond, 10, 10*time.Millisecond)
	r.Start()

	time.Sleep(50 * time.Millisecond)
	r.Stop()

	// Stop returns only after the loop exited; a second drain must not run
	calls := len(store.Calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, len(store.Calls))
}
