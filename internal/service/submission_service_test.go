package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hirelane/proctor-backend/internal/exam"
	"github.com/hirelane/proctor-backend/internal/integrity"
	"github.com/hirelane/proctor-backend/internal/model"
)

// deadRedis returns a client pointing at nothing. Every command fails fast,
// which is fine: all Redis use on the submission path is best-effort.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

type fakeResultStore struct {
	mu       sync.Mutex
	failures int
	created  []*model.SubmissionResult
	existing bool
}

func (f *fakeResultStore) Create(_ context.Context, res *model.SubmissionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, res)
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	f.existing = true
	return nil
}

func (f *fakeResultStore) Exists(_ context.Context, _ uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing, nil
}

type fakeCompleter struct {
	mu        sync.Mutex
	completed []uuid.UUID
}

func (f *fakeCompleter) MarkCompleted(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

type stubVerifier struct {
	artifacts model.IdentityArtifacts
}

func (s *stubVerifier) Artifacts(_ context.Context, _ *model.Invitation) (model.IdentityArtifacts, error) {
	return s.artifacts, nil
}

func (s *stubVerifier) Forget(_ uuid.UUID) {}

// twoQuestionTest builds a one-section test with two single-choice questions
// worth pointsEach, both keyed to "A".
func twoQuestionTest(pointsEach int) *model.TestDefinition {
	test := &model.TestDefinition{
		ID:              uuid.New(),
		Name:            "Screening",
		DurationMinutes: 10,
		PassingScore:    50,
		Settings:        model.TestSettings{AutoSubmit: true},
	}
	section := model.Section{ID: uuid.New(), Title: "General"}
	for i := 0; i < 2; i++ {
		section.Questions = append(section.Questions, model.Question{
			ID:            uuid.New(),
			SectionID:     section.ID,
			Text:          "q",
			Type:          model.QuestionTypeMultipleChoice,
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Points:        pointsEach,
			OrderNum:      i,
		})
	}
	test.Sections = []model.Section{section}
	return test
}

// liveSession plants a running session in the registry, the way Enter would.
func liveSession(t *testing.T, sessions *SessionService, test *model.TestDefinition) (*model.Invitation, *exam.Session) {
	t.Helper()
	inv := &model.Invitation{
		ID:             uuid.New(),
		TestID:         test.ID,
		CandidateEmail: "candidate@example.com",
		Status:         model.InvitationStatusActive,
	}
	sess := exam.NewSession(inv.ID, test, time.Now(), test.DurationMinutes*60, nil, nil)
	monitor := integrity.NewMonitor(inv.ID, test.Settings.PreventTabSwitching,
		func(model.IntegrityEvent) {}, func(int) {})
	monitor.Attach()

	sessions.mu.Lock()
	sessions.sessions[inv.ID] = &sessionEntry{inv: inv, session: sess, monitor: monitor, cancel: func() {}}
	sessions.mu.Unlock()
	return inv, sess
}

func newSubmissionFixture(t *testing.T, store *fakeResultStore, test *model.TestDefinition) (*SubmissionService, *fakeCompleter, *model.Invitation, *exam.Session) {
	t.Helper()
	rdb := deadRedis()
	t.Cleanup(func() { rdb.Close() })

	sessions := NewSessionService(nil, nil, rdb, zerolog.Nop())
	inv, sess := liveSession(t, sessions, test)

	completer := &fakeCompleter{}
	verifier := &stubVerifier{artifacts: model.IdentityArtifacts{CandidateRef: "REF-001"}}
	svc := NewSubmissionService(sessions, verifier, completer, store, rdb, zerolog.Nop())
	return svc, completer, inv, sess
}

func TestSubmitPersistFailureIsRetryableWithoutRescoring(t *testing.T) {
	test := twoQuestionTest(1)
	store := &fakeResultStore{failures: 1}
	svc, completer, inv, sess := newSubmissionFixture(t, store, test)

	if err := sess.SetAnswer(test.Sections[0].Questions[0].ID, model.ChoiceAnswer("A")); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	ctx := context.Background()

	ack, err := svc.Submit(ctx, inv, SubmitTriggerManual)
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("first Submit err = %v, want ErrSubmitFailed", err)
	}
	if ack != nil {
		t.Fatalf("first Submit ack = %+v, want nil", ack)
	}
	if !sess.SubmitPending() {
		t.Error("session released its slot; retry would rescore")
	}
	if len(store.created) != 1 {
		t.Fatalf("Create calls = %d, want 1", len(store.created))
	}

	ack, err = svc.Submit(ctx, inv, SubmitTriggerManual)
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if ack.Status != "submitted" {
		t.Errorf("ack status = %q", ack.Status)
	}
	if len(store.created) != 2 {
		t.Fatalf("Create calls = %d, want 2", len(store.created))
	}
	if store.created[0] != store.created[1] {
		t.Error("retry sent a freshly computed result instead of the parked one")
	}
	if store.created[1].ScorePercent != 50 {
		t.Errorf("score percent = %d, want 50", store.created[1].ScorePercent)
	}
	if store.created[1].CandidateRef != "REF-001" {
		t.Errorf("candidate ref = %q", store.created[1].CandidateRef)
	}
	if len(completer.completed) != 1 || completer.completed[0] != inv.ID {
		t.Errorf("invitation completion = %v", completer.completed)
	}
	if !sess.Submitted() {
		t.Error("session not marked submitted after durable persist")
	}
	if _, err := svc.sessions.Get(inv.ID); !errors.Is(err, ErrNoSession) {
		t.Error("session still registered after teardown")
	}
}

func TestSubmitDegenerateTestErrorStaysVisible(t *testing.T) {
	store := &fakeResultStore{}
	svc, _, inv, sess := newSubmissionFixture(t, store, twoQuestionTest(0))

	ctx := context.Background()

	if _, err := svc.Submit(ctx, inv, SubmitTriggerManual); !errors.Is(err, exam.ErrDegenerateTest) {
		t.Fatalf("first Submit err = %v, want ErrDegenerateTest", err)
	}
	// The slot must be released: a later trigger sees the real error, not
	// a spurious in-flight conflict.
	if _, err := svc.Submit(ctx, inv, SubmitTriggerTimeout); !errors.Is(err, exam.ErrDegenerateTest) {
		t.Fatalf("second Submit err = %v, want ErrDegenerateTest", err)
	}
	if sess.SubmitPending() || sess.Submitted() {
		t.Error("failed compute left the session in a submit state")
	}
	if len(store.created) != 0 {
		t.Errorf("Create calls = %d, want 0", len(store.created))
	}
}

func TestSubmitWithoutSessionAcksExistingResult(t *testing.T) {
	rdb := deadRedis()
	t.Cleanup(func() { rdb.Close() })

	sessions := NewSessionService(nil, nil, rdb, zerolog.Nop())
	store := &fakeResultStore{existing: true}
	svc := NewSubmissionService(sessions, &stubVerifier{}, &fakeCompleter{}, store, rdb, zerolog.Nop())

	inv := &model.Invitation{ID: uuid.New(), Status: model.InvitationStatusActive}
	ack, err := svc.Submit(context.Background(), inv, SubmitTriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ack.Status != "submitted" {
		t.Errorf("ack status = %q", ack.Status)
	}
}
