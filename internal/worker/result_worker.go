package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker is the durable fallback for submission results: when the
// interactive submission path cannot reach Postgres it parks the computed
// result on a Redis queue, and this worker lands it once the database is
// back. The results table dedups on invitation_id, so a result that also
// arrives through a candidate retry is a no-op here.
type ResultWorker struct {
	repo *repository.ResultRepository
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(repo *repository.ResultRepository, pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		repo: repo,
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*model.SubmissionResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.flushSafe(shutdownCtx, batch)
			cancel()
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.SubmissionResult
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

// flushSafe persists each result, requeueing failures for the next pass.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []*model.SubmissionResult) {
	if len(batch) == 0 {
		return
	}

	persisted := make([]*model.SubmissionResult, 0, len(batch))
	for _, res := range batch {
		if err := w.repo.Create(ctx, res); err != nil {
			w.log.Error().Err(err).
				Str("invitation_id", res.InvitationID.String()).
				Msg("Result persist failed, requeueing")
			raw, _ := json.Marshal(res)
			w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			continue
		}
		persisted = append(persisted, res)
	}

	if len(persisted) > 0 {
		w.bulkMarkCompleted(ctx, persisted)
		w.bulkClearSessionKeys(ctx, persisted)
	}
}

// bulkMarkCompleted mirrors the interactive path's invitation update for
// results that reach the database through this worker.
func (w *ResultWorker) bulkMarkCompleted(ctx context.Context, batch []*model.SubmissionResult) {
	ids := make([]string, 0, len(batch))
	for _, res := range batch {
		ids = append(ids, res.InvitationID.String())
	}

	_, err := w.pool.Exec(ctx,
		`UPDATE invitations SET status = 'COMPLETED'
		 WHERE id = ANY($1::uuid[]) AND status = 'ACTIVE'`, ids)
	if err != nil {
		w.log.Error().Err(err).Msg("Bulk invitation completion failed")
	}
}

// bulkClearSessionKeys drops the Redis session mirror for landed results.
func (w *ResultWorker) bulkClearSessionKeys(ctx context.Context, batch []*model.SubmissionResult) {
	pipe := w.rdb.Pipeline()
	for _, res := range batch {
		id := res.InvitationID.String()
		pipe.Del(ctx, config.CacheKey.AnswersKey(id))
		pipe.Del(ctx, config.CacheKey.SessionStartKey(id))
		pipe.Del(ctx, config.CacheKey.ShuffledOrderKey(id))
		pipe.Del(ctx, config.CacheKey.TabSwitchCountKey(id))
	}
	_, _ = pipe.Exec(ctx)
}
