// Package relay drains the transactional outbox. It is the only
// consumer of outbox events; an event is deleted only after its side
// effect completed, so a crash replays the event and the side effects
// must stay idempotent.
package relay

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/garrison-chat/garrison/internal/database"
	"github.com/garrison-chat/garrison/internal/messagestore"
	"github.com/garrison-chat/garrison/internal/stats"
	"github.com/garrison-chat/garrison/internal/types"
)

type Relay struct {
	log      zerolog.Logger
	store    database.Store
	messages messagestore.MessageStore
	stats    stats.Recorder

	pollInterval time.Duration
	batchSize    int
	errorBackoff time.Duration

	stop chan struct{}
	done sync.WaitGroup
}

func New(logger zerolog.Logger, store database.Store, messages messagestore.MessageStore, rec stats.Recorder, pollInterval time.Duration, batchSize int, errorBackoff time.Duration) *Relay {
	return &Relay{
		log:          logger.With().Str("component", "relay").Logger(),
		store:        store,
		messages:     messages,
		stats:        rec,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		errorBackoff: errorBackoff,
		stop:         make(chan struct{}),
	}
}

// Start launches the polling loop.
func (r *Relay) Start() {
	r.done.Add(1)
	go r.run()
}

// Stop signals the loop and waits for it to exit.
func (r *Relay) Stop() {
	close(r.stop)
	r.done.Wait()
}

func (r *Relay) run() {
	defer r.done.Done()

	delay := r.pollInterval
	for {
		select {
		case <-r.stop:
			return
		case <-time.After(delay):
		}

		if err := r.drainBatch(); err != nil {
			r.log.Error().Err(err).Msg("outbox poll failed")
			delay = r.errorBackoff
			continue
		}
		delay = r.pollInterval
	}
}

// drainBatch processes up to batchSize events oldest first. A failing
// event stops the batch so ordering is preserved on retry.
func (r *Relay) drainBatch() error {
	events, err := r.store.GetUnprocessedOutboxEvents(r.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		select {
		case <-r.stop:
			return nil
		default:
		}

		if err := r.process(event); err != nil {
			r.stats.OutboxEventFailed()
			r.log.Error().Err(err).
				Int64("event_id", event.EventId).
				Str("event_type", event.EventType).
				Msg("failed to process outbox event")
			return err
		}

		if err := r.store.DeleteOutboxEvent(event.EventId); err != nil {
			r.stats.OutboxEventFailed()
			return err
		}
		r.stats.OutboxEventProcessed()
	}

	return nil
}

func (r *Relay) process(event types.OutboxEvent) error {
	switch event.EventType {
	case types.EventBarrackDestroyed:
		var payload types.BarrackDestroyedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return err
		}

		r.log.Info().Str("barrack_id", payload.BarrackId).Msg("purging messages for destroyed barrack")
		return r.messages.DeleteBarrackMessages(payload.BarrackId)
	default:
		// unknown events are dropped, a newer node may have written them
		r.log.Warn().Str("event_type", event.EventType).Int64("event_id", event.EventId).Msg("skipping unknown event type")
		return nil
	}
}
