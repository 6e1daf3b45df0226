package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/exam"
	"github.com/hirelane/proctor-backend/internal/integrity"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Session domain errors.
var (
	ErrNoSession              = errors.New("no active exam session")
	ErrVerificationIncomplete = errors.New("verification flow not complete")
)

// integrityQueuePayload is the wire form pushed to the integrity worker queue.
type integrityQueuePayload struct {
	InvitationID string `json:"invitation_id"`
	EventType    string `json:"event_type"`
	Timestamp    int64  `json:"timestamp"`
}

// sessionEntry bundles one live session with its monitor and timer lifetime.
type sessionEntry struct {
	inv     *model.Invitation
	session *exam.Session
	monitor *integrity.Monitor
	cancel  context.CancelFunc
}

// SessionService owns the live exam sessions. Each session is the in-memory
// engine (cursor, answers, countdown) mirrored to Redis so a reload restores
// answers, remaining time, shuffled order, and the tab-switch counter.
type SessionService struct {
	loader   *LoaderService
	verifier *VerificationService
	rdb      *redis.Client
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionEntry

	// autoSubmit is invoked from the timer goroutine when a session's
	// countdown expires and the test enables auto-submit. Wired in main to
	// the submission service.
	autoSubmit func(inv *model.Invitation)

	// expired is invoked from the timer goroutine whenever a countdown
	// reaches zero, before any auto-submission. Wired in main to the live
	// exam stream so an open socket learns its time is up.
	expired func(invitationID uuid.UUID, autoSubmit bool)
}

// NewSessionService creates a new SessionService.
func NewSessionService(loader *LoaderService, verifier *VerificationService, rdb *redis.Client, log zerolog.Logger) *SessionService {
	return &SessionService{
		loader:   loader,
		verifier: verifier,
		rdb:      rdb,
		log:      log.With().Str("component", "session_service").Logger(),
		sessions: make(map[uuid.UUID]*sessionEntry),
	}
}

// SetAutoSubmitHandler wires the timeout-triggered submission path.
func (s *SessionService) SetAutoSubmitHandler(fn func(inv *model.Invitation)) {
	s.autoSubmit = fn
}

// SetExpiryHandler wires the countdown-expiry notification.
func (s *SessionService) SetExpiryHandler(fn func(invitationID uuid.UUID, autoSubmit bool)) {
	s.expired = fn
}

// handleExpiry runs on the timer goroutine when a countdown reaches zero:
// the live stream is notified first, then the submission hand-off when the
// test enables auto-submit.
func (s *SessionService) handleExpiry(inv *model.Invitation, autoSubmit bool) {
	if s.expired != nil {
		s.expired(inv.ID, autoSubmit)
	}
	if !autoSubmit {
		// Timer stalls at zero; input stays open until a manual submit.
		s.log.Info().Str("invitation_id", inv.ID.String()).Msg("Timer expired, auto-submit disabled")
		return
	}
	if s.autoSubmit != nil {
		s.autoSubmit(inv)
	}
}

// Enter starts (or restores) the exam session for a verified invitation.
// Refused while the verification flow is anywhere short of Complete: no
// exam content is handed out before then.
func (s *SessionService) Enter(ctx context.Context, inv *model.Invitation) (*exam.Session, *model.TestPayload, error) {
	done, err := s.verifier.IsComplete(ctx, inv)
	if err != nil {
		return nil, nil, err
	}
	if !done {
		return nil, nil, ErrVerificationIncomplete
	}

	s.mu.Lock()
	if entry, ok := s.sessions[inv.ID]; ok {
		s.mu.Unlock()
		return entry.session, model.BuildTestPayload(entry.session.Test), nil
	}
	s.mu.Unlock()

	test, err := s.loader.FetchTest(ctx, inv.TestID)
	if err != nil {
		return nil, nil, err
	}
	sessTest := s.loader.PrepareSessionTest(ctx, inv, test)

	startedAt, err := s.resolveStart(ctx, inv.ID)
	if err != nil {
		return nil, nil, err
	}

	remaining := test.DurationMinutes*60 - int(time.Since(startedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	onExpire := func() { s.handleExpiry(inv, sessTest.Settings.AutoSubmit) }

	sess := exam.NewSession(inv.ID, sessTest, startedAt, remaining, nil, onExpire)

	if err := s.restoreAnswers(ctx, inv.ID, sess); err != nil {
		s.log.Warn().Err(err).Str("invitation_id", inv.ID.String()).Msg("Answer restore failed")
	}

	monitor := integrity.NewMonitor(inv.ID, sessTest.Settings.PreventTabSwitching,
		s.emitIntegrity, s.mirrorTabCount(inv.ID))
	if n, err := s.rdb.Get(ctx, config.CacheKey.TabSwitchCountKey(inv.ID.String())).Int(); err == nil {
		monitor.SetTabSwitchCount(n)
	}
	monitor.Attach()

	runCtx, cancel := context.WithCancel(context.Background())
	entry := &sessionEntry{inv: inv, session: sess, monitor: monitor, cancel: cancel}

	s.mu.Lock()
	if racing, ok := s.sessions[inv.ID]; ok {
		// Concurrent Enter won; discard ours.
		s.mu.Unlock()
		cancel()
		return racing.session, model.BuildTestPayload(racing.session.Test), nil
	}
	s.sessions[inv.ID] = entry
	s.mu.Unlock()

	go sess.Timer.Run(runCtx)
	sess.Timer.Start()

	s.log.Info().
		Str("invitation_id", inv.ID.String()).
		Int("remaining_seconds", remaining).
		Msg("Exam session active")

	return sess, model.BuildTestPayload(sessTest), nil
}

// Get returns the live session for an invitation.
func (s *SessionService) Get(invitationID uuid.UUID) (*exam.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[invitationID]
	if !ok {
		return nil, ErrNoSession
	}
	return entry.session, nil
}

// Monitor returns the integrity monitor for a live session.
func (s *SessionService) Monitor(invitationID uuid.UUID) (*integrity.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[invitationID]
	if !ok {
		return nil, ErrNoSession
	}
	return entry.monitor, nil
}

// SetAnswer records an answer on the session and mirrors it to Redis so a
// reload restores it.
func (s *SessionService) SetAnswer(ctx context.Context, invitationID, questionID uuid.UUID, ans model.Answer) error {
	sess, err := s.Get(invitationID)
	if err != nil {
		return err
	}
	if err := sess.SetAnswer(questionID, ans); err != nil {
		return err
	}

	raw, err := json.Marshal(ans)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	key := config.CacheKey.AnswersKey(invitationID.String())
	if err := s.rdb.HSet(ctx, key, questionID.String(), raw).Err(); err != nil {
		// The in-memory engine holds the truth; a mirror miss only risks
		// losing this answer across a process restart.
		s.log.Warn().Err(err).Str("invitation_id", invitationID.String()).Msg("Answer mirror failed")
	}
	return nil
}

// HandleIntegrity feeds one proctoring signal into the session's monitor.
// It returns the tab-switch count and whether this signal incremented it,
// for the candidate-facing warning.
func (s *SessionService) HandleIntegrity(invitationID uuid.UUID, eventType model.IntegrityEventType, at time.Time) (int, bool, error) {
	monitor, err := s.Monitor(invitationID)
	if err != nil {
		return 0, false, err
	}
	prev := monitor.TabSwitchCount()
	monitor.Handle(eventType, at)
	count := monitor.TabSwitchCount()
	return count, count > prev, nil
}

// SessionState is the reload snapshot: everything the exam page needs to
// resume where it left off.
type SessionState struct {
	RemainingSeconds  int                     `json:"remaining_seconds"`
	SectionIndex      int                     `json:"section_index"`
	QuestionIndex     int                     `json:"question_index"`
	Answers           map[string]model.Answer `json:"answers"`
	CompletionPercent float64                 `json:"completion_percent"`
	TabSwitchCount    int                     `json:"tab_switch_count"`
	CameraLive        bool                    `json:"camera_live"`
	Submitted         bool                    `json:"submitted"`
}

// State builds the reload snapshot for a live session.
func (s *SessionService) State(invitationID uuid.UUID) (*SessionState, error) {
	s.mu.Lock()
	entry, ok := s.sessions[invitationID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}

	sess := entry.session
	secIdx, qIdx := sess.Cursor()

	answers := make(map[string]model.Answer)
	for id, a := range sess.Answers() {
		answers[id.String()] = a
	}

	return &SessionState{
		RemainingSeconds:  sess.Timer.Remaining(),
		SectionIndex:      secIdx,
		QuestionIndex:     qIdx,
		Answers:           answers,
		CompletionPercent: sess.CompletionPercent(),
		TabSwitchCount:    entry.monitor.TabSwitchCount(),
		CameraLive:        entry.monitor.CameraLive(),
		Submitted:         sess.Submitted(),
	}, nil
}

// Invitation returns the invitation a live session belongs to.
func (s *SessionService) Invitation(invitationID uuid.UUID) (*model.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[invitationID]
	if !ok {
		return nil, ErrNoSession
	}
	return entry.inv, nil
}

// Teardown stops the timer, detaches the monitor, and drops the session.
// Answers and counters mirrored in Redis survive unless CleanupKeys is also
// called, so navigation away mid-exam remains resumable.
func (s *SessionService) Teardown(invitationID uuid.UUID) {
	s.mu.Lock()
	entry, ok := s.sessions[invitationID]
	if ok {
		delete(s.sessions, invitationID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	entry.cancel()
	entry.session.Timer.Cancel()
	entry.monitor.Detach()
}

// CleanupKeys removes the session's Redis mirror after a durable submission.
func (s *SessionService) CleanupKeys(ctx context.Context, invitationID uuid.UUID) {
	id := invitationID.String()
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AnswersKey(id))
	pipe.Del(ctx, config.CacheKey.SessionStartKey(id))
	pipe.Del(ctx, config.CacheKey.ShuffledOrderKey(id))
	pipe.Del(ctx, config.CacheKey.TabSwitchCountKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("invitation_id", id).Msg("Session key cleanup failed")
	}
}

// resolveStart reads the persisted session start, setting it on first entry.
func (s *SessionService) resolveStart(ctx context.Context, invitationID uuid.UUID) (time.Time, error) {
	key := config.CacheKey.SessionStartKey(invitationID.String())

	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		unix, perr := strconv.ParseInt(val, 10, 64)
		if perr != nil {
			return time.Time{}, fmt.Errorf("invalid start time in cache: %w", perr)
		}
		return time.Unix(unix, 0), nil
	}
	if !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("read session start: %w", err)
	}

	now := time.Now()
	if err := s.rdb.Set(ctx, key, now.Unix(), 0).Err(); err != nil {
		return time.Time{}, fmt.Errorf("persist session start: %w", err)
	}
	return now, nil
}

// restoreAnswers seeds the session from the Redis answers mirror.
func (s *SessionService) restoreAnswers(ctx context.Context, invitationID uuid.UUID, sess *exam.Session) error {
	key := config.CacheKey.AnswersKey(invitationID.String())
	stored, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return err
	}

	for qidStr, raw := range stored {
		qid, err := uuid.Parse(qidStr)
		if err != nil {
			continue
		}
		var ans model.Answer
		if err := json.Unmarshal([]byte(raw), &ans); err != nil {
			s.log.Warn().Str("question_id", qidStr).Msg("Discarding malformed mirrored answer")
			continue
		}
		if err := sess.RestoreAnswer(qid, ans); err != nil {
			s.log.Warn().Err(err).Str("question_id", qidStr).Msg("Mirrored answer rejected")
		}
	}
	return nil
}

// emitIntegrity queues an edge event for the background persistence worker.
func (s *SessionService) emitIntegrity(ev model.IntegrityEvent) {
	payload, _ := json.Marshal(integrityQueuePayload{
		InvitationID: ev.InvitationID.String(),
		EventType:    string(ev.Type),
		Timestamp:    ev.OccurredAt.Unix(),
	})
	if err := s.rdb.RPush(context.Background(), config.WorkerKey.PersistIntegrityQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Msg("Integrity event enqueue failed")
	}
}

// mirrorTabCount persists the counter on every counted excursion.
func (s *SessionService) mirrorTabCount(invitationID uuid.UUID) func(count int) {
	key := config.CacheKey.TabSwitchCountKey(invitationID.String())
	return func(count int) {
		if err := s.rdb.Set(context.Background(), key, count, 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Tab-switch mirror failed")
		}
	}
}
