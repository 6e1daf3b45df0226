// Package worker holds the background queue consumers that move buffered
// session data from Redis into Postgres in batches.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// IntegrityWorker drains the integrity event queue and persists events in
// batches. Events are advisory audit data; the worker favors throughput and
// requeues on database failure rather than blocking the exam path.
type IntegrityWorker struct {
	repo *repository.IntegrityRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewIntegrityWorker(repo *repository.IntegrityRepository, rdb *redis.Client, log zerolog.Logger) *IntegrityWorker {
	return &IntegrityWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "integrity_worker").Logger(),
	}
}

type integrityPayload struct {
	InvitationID string `json:"invitation_id"`
	EventType    string `json:"event_type"`
	Timestamp    int64  `json:"timestamp"`
}

func (w *IntegrityWorker) Start(ctx context.Context) {
	w.log.Info().Msg("IntegrityWorker started")

	buffer := make([]*integrityPayload, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 &&
			(len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistIntegrityQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to the flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload integrityPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON can never succeed on retry. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then row-by-row fallback, then requeue.
func (w *IntegrityWorker) flushSafe(ctx context.Context, batch []*integrityPayload) {
	events := make([]*model.IntegrityEvent, 0, len(batch))
	bad := false
	for _, p := range batch {
		ev, err := p.toEvent()
		if err != nil {
			bad = true
			break
		}
		events = append(events, ev)
	}

	if !bad {
		if err := w.repo.BulkInsert(ctx, events); err == nil {
			return
		} else {
			w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		}
	}

	w.fallbackInsert(ctx, batch)
}

func (w *IntegrityWorker) fallbackInsert(ctx context.Context, batch []*integrityPayload) {
	requeueList := make([]*integrityPayload, 0)

	for _, p := range batch {
		ev, err := p.toEvent()
		if err != nil {
			w.log.Error().Str("invitation_id", p.InvitationID).Msg("Dropping integrity event with invalid UUID")
			continue
		}

		if err := w.repo.Insert(ctx, ev); err != nil {
			// Likely a connection failure. Requeue so nothing is lost while
			// the database is down.
			w.log.Error().Err(err).Str("invitation_id", p.InvitationID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *IntegrityWorker) requeue(ctx context.Context, items []*integrityPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistIntegrityQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}

	w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
	// Avoid thrashing while the database is down hard.
	time.Sleep(2 * time.Second)
}

func (w *IntegrityWorker) shutdown(buffer []*integrityPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func (p *integrityPayload) toEvent() (*model.IntegrityEvent, error) {
	invID, err := uuid.Parse(p.InvitationID)
	if err != nil {
		return nil, err
	}
	return &model.IntegrityEvent{
		InvitationID: invID,
		Type:         model.IntegrityEventType(p.EventType),
		OccurredAt:   time.Unix(p.Timestamp, 0),
	}, nil
}
