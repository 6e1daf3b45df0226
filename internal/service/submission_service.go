package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/exam"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Submission triggers.
const (
	SubmitTriggerManual  = "manual"
	SubmitTriggerTimeout = "timeout"
)

// Submission domain errors. ErrSubmitFailed is retryable: the result was
// computed and parked, and a later Submit call re-sends it without rescoring.
var (
	ErrSubmitInFlight = errors.New("submission already in progress")
	ErrSubmitFailed   = errors.New("submission could not be persisted")
)

// SubmissionAck is the candidate-facing acknowledgement. No score: results
// are declared later through the company's own channel.
type SubmissionAck struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// resultStore is the slice of the result repository the submission path
// needs.
type resultStore interface {
	Create(ctx context.Context, res *model.SubmissionResult) error
	Exists(ctx context.Context, invitationID uuid.UUID) (bool, error)
}

// invitationCompleter closes out an invitation once its result is durable.
type invitationCompleter interface {
	MarkCompleted(ctx context.Context, id uuid.UUID) error
}

// verificationReader supplies the identity artifacts recorded during the
// verification flow.
type verificationReader interface {
	Artifacts(ctx context.Context, inv *model.Invitation) (model.IdentityArtifacts, error)
	Forget(invitationID uuid.UUID)
}

// SubmissionService drives the final, single-flight submission of an exam
// session: freeze, score, persist, clean up. Both triggers (the candidate's
// submit press and the countdown reaching zero) converge here; the session's
// submission slot guarantees exactly one result per invitation no matter how
// the two race.
type SubmissionService struct {
	sessions   *SessionService
	verifier   verificationReader
	invRepo    invitationCompleter
	resultRepo resultStore
	rdb        *redis.Client
	log        zerolog.Logger

	mu sync.Mutex
	// pending holds computed results whose persistence failed, keyed by
	// invitation, until a retry lands them or the background worker does.
	pending map[uuid.UUID]*model.SubmissionResult
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	sessions *SessionService,
	verifier verificationReader,
	invRepo invitationCompleter,
	resultRepo resultStore,
	rdb *redis.Client,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		sessions:   sessions,
		verifier:   verifier,
		invRepo:    invRepo,
		resultRepo: resultRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "submission_service").Logger(),
		pending:    make(map[uuid.UUID]*model.SubmissionResult),
	}
}

// Submit finalizes the exam for an invitation. Idempotent across triggers and
// retries: the first call claims the session's submission slot, scores, and
// persists; a concurrent second trigger is a no-op; a retry after a persist
// failure re-sends the already-computed result.
func (s *SubmissionService) Submit(ctx context.Context, inv *model.Invitation, trigger string) (*SubmissionAck, error) {
	log := s.log.With().
		Str("invitation_id", inv.ID.String()).
		Str("trigger", trigger).
		Logger()

	sess, err := s.sessions.Get(inv.ID)
	if err != nil {
		// No live session. If a result already exists (earlier submission,
		// possibly on another instance) acknowledge it instead of failing.
		exists, exErr := s.resultRepo.Exists(ctx, inv.ID)
		if exErr == nil && exists {
			return ackSubmitted(time.Now()), nil
		}
		return nil, err
	}

	if sess.Submitted() {
		return ackSubmitted(time.Now()), nil
	}

	if sess.BeginSubmit() {
		result, err := s.computeResult(ctx, inv, sess, trigger)
		if err != nil {
			// Without a computed result there is nothing to retry; release
			// the slot so the next trigger sees this error, not a conflict.
			sess.AbortSubmit()
			return nil, err
		}
		s.mu.Lock()
		s.pending[inv.ID] = result
		s.mu.Unlock()
		log.Info().
			Int("score_percent", result.ScorePercent).
			Str("status", string(result.Status)).
			Msg("Result computed")
	} else {
		s.mu.Lock()
		_, retryable := s.pending[inv.ID]
		s.mu.Unlock()
		if !retryable {
			// The other trigger holds the slot and has not failed; let it run.
			return nil, ErrSubmitInFlight
		}
		log.Info().Msg("Retrying result persistence")
	}

	return s.persist(ctx, inv, sess, log)
}

// computeResult freezes and scores the session exactly once.
func (s *SubmissionService) computeResult(ctx context.Context, inv *model.Invitation, sess *exam.Session, trigger string) (*model.SubmissionResult, error) {
	submittedAt := time.Now()

	// Cross-instance guard, best effort: the session slot is authoritative
	// within a process, the lock covers a split-brain deploy.
	lockKey := config.CacheKey.SubmissionLockKey(inv.ID.String())
	if ok, err := s.rdb.SetNX(ctx, lockKey, trigger, 24*time.Hour).Result(); err == nil && !ok {
		s.log.Warn().Str("invitation_id", inv.ID.String()).Msg("Submission lock already held elsewhere")
	}

	outcome, err := exam.Score(sess.Test, sess.Answers(), sess.Test.PassingScore)
	if err != nil {
		return nil, fmt.Errorf("score session: %w", err)
	}

	tabSwitches := 0
	if monitor, merr := s.sessions.Monitor(inv.ID); merr == nil {
		tabSwitches = monitor.TabSwitchCount()
	}

	candidateRef := ""
	if artifacts, aerr := s.verifier.Artifacts(ctx, inv); aerr == nil {
		candidateRef = artifacts.CandidateRef
	}

	return &model.SubmissionResult{
		InvitationID:         inv.ID,
		TestID:               inv.TestID,
		CandidateEmail:       inv.CandidateEmail,
		CandidateRef:         candidateRef,
		ScorePercent:         outcome.ScorePercent,
		Status:               outcome.Status,
		EarnedPoints:         outcome.EarnedPoints,
		TotalPoints:          outcome.TotalPoints,
		DurationTakenMinutes: sess.DurationTaken(submittedAt),
		TabSwitchCount:       tabSwitches,
		Breakdown:            outcome.Breakdown,
		SubmittedAt:          submittedAt,
	}, nil
}

// persist writes the pending result and, on success, completes the session
// teardown. On failure the result stays pending and is also queued for the
// background worker, so it survives even if the candidate never retries.
func (s *SubmissionService) persist(ctx context.Context, inv *model.Invitation, sess *exam.Session, log zerolog.Logger) (*SubmissionAck, error) {
	s.mu.Lock()
	result, ok := s.pending[inv.ID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSubmitInFlight
	}

	if err := s.resultRepo.Create(ctx, result); err != nil {
		log.Error().Err(err).Msg("Result persistence failed, queueing for worker")
		s.enqueueResult(ctx, result)
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	if err := s.invRepo.MarkCompleted(ctx, inv.ID); err != nil {
		log.Error().Err(err).Msg("Invitation completion update failed")
	}

	sess.FinishSubmit()
	s.mu.Lock()
	delete(s.pending, inv.ID)
	s.mu.Unlock()

	s.sessions.Teardown(inv.ID)
	s.sessions.CleanupKeys(ctx, inv.ID)
	s.verifier.Forget(inv.ID)

	log.Info().Msg("Submission persisted")
	return ackSubmitted(result.SubmittedAt), nil
}

// enqueueResult hands a computed result to the persistence worker queue.
func (s *SubmissionService) enqueueResult(ctx context.Context, result *model.SubmissionResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Error().Err(err).Msg("Result encode failed")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		s.log.Error().Err(err).Msg("Result enqueue failed")
	}
}

// Submitted reports whether a result has been durably recorded for an
// invitation.
func (s *SubmissionService) Submitted(ctx context.Context, invitationID uuid.UUID) (bool, error) {
	return s.resultRepo.Exists(ctx, invitationID)
}

func ackSubmitted(at time.Time) *SubmissionAck {
	return &SubmissionAck{
		Status:      "submitted",
		Message:     "Your answers have been submitted. Results will be announced by the company.",
		SubmittedAt: at,
	}
}
