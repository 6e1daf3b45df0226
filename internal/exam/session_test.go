package exam

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
)

func newTestSession(t *testing.T, questions int) *Session {
	t.Helper()
	test := buildTest(questions, 1, 1, 60) // adds a one-question written section
	return NewSession(uuid.New(), test, time.Now(), test.DurationMinutes*60, nil, nil)
}

func TestSessionNavigationBounds(t *testing.T) {
	s := newTestSession(t, 3) // section 0: 3 questions, section 1: 1 question

	// Next walks through section 0 and crosses into section 1.
	s.Next()
	s.Next()
	s.Next()
	if sec, q := s.Cursor(); sec != 1 || q != 0 {
		t.Errorf("Cursor() = (%d,%d), want (1,0)", sec, q)
	}

	// Next at the very end is a no-op.
	s.Next()
	if sec, q := s.Cursor(); sec != 1 || q != 0 {
		t.Errorf("Cursor() = (%d,%d), want (1,0) at end", sec, q)
	}

	// Previous crosses back to the last question of section 0.
	s.Previous()
	if sec, q := s.Cursor(); sec != 0 || q != 2 {
		t.Errorf("Cursor() = (%d,%d), want (0,2)", sec, q)
	}

	// Previous at the very start is a no-op.
	s.Previous()
	s.Previous()
	s.Previous()
	if sec, q := s.Cursor(); sec != 0 || q != 0 {
		t.Errorf("Cursor() = (%d,%d), want (0,0) at start", sec, q)
	}
}

func TestSessionJumpTo(t *testing.T) {
	s := newTestSession(t, 3)

	if err := s.JumpTo(1, 0); err != nil {
		t.Fatalf("JumpTo(1,0) error = %v", err)
	}
	if sec, q := s.Cursor(); sec != 1 || q != 0 {
		t.Errorf("Cursor() = (%d,%d), want (1,0)", sec, q)
	}

	tests := []struct{ sec, q int }{
		{-1, 0}, {2, 0}, {0, 3}, {0, -1},
	}
	for _, tc := range tests {
		if err := s.JumpTo(tc.sec, tc.q); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("JumpTo(%d,%d) error = %v, want ErrInvalidPosition", tc.sec, tc.q, err)
		}
	}
}

func TestSessionSetAnswer(t *testing.T) {
	s := newTestSession(t, 2)
	mcID := s.Test.Sections[0].Questions[0].ID
	writtenID := s.Test.Sections[1].Questions[0].ID

	if err := s.SetAnswer(mcID, model.ChoiceAnswer("B")); err != nil {
		t.Fatalf("SetAnswer(choice) error = %v", err)
	}

	// Last write wins.
	if err := s.SetAnswer(mcID, model.ChoiceAnswer("A")); err != nil {
		t.Fatalf("SetAnswer(overwrite) error = %v", err)
	}
	if got := s.Answers()[mcID].Choice; got != "A" {
		t.Errorf("answer = %q, want %q", got, "A")
	}

	// Shape mismatches are rejected at write time.
	if err := s.SetAnswer(mcID, model.TextAnswer("essay")); !errors.Is(err, model.ErrAnswerShape) {
		t.Errorf("SetAnswer(text for MC) error = %v, want ErrAnswerShape", err)
	}
	if err := s.SetAnswer(writtenID, model.ChoiceAnswer("A")); !errors.Is(err, model.ErrAnswerShape) {
		t.Errorf("SetAnswer(choice for written) error = %v, want ErrAnswerShape", err)
	}

	// Unknown question IDs are rejected.
	if err := s.SetAnswer(uuid.New(), model.ChoiceAnswer("A")); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("SetAnswer(unknown) error = %v, want ErrUnknownQuestion", err)
	}
}

func TestSessionCompletionPercent(t *testing.T) {
	s := newTestSession(t, 3) // 4 questions total

	if got := s.CompletionPercent(); got != 0 {
		t.Errorf("CompletionPercent() = %v, want 0", got)
	}

	mc := s.Test.Sections[0].Questions
	s.SetAnswer(mc[0].ID, model.ChoiceAnswer("A"))
	s.SetAnswer(mc[1].ID, model.ChoiceAnswer("B"))

	if got := s.CompletionPercent(); got != 50 {
		t.Errorf("CompletionPercent() = %v, want 50", got)
	}

	// Whitespace-only text does not count as answered.
	writtenID := s.Test.Sections[1].Questions[0].ID
	s.SetAnswer(writtenID, model.TextAnswer("   "))
	if got := s.CompletionPercent(); got != 50 {
		t.Errorf("CompletionPercent() = %v, want 50 with blank text", got)
	}
}

func TestSessionSingleFlightSubmit(t *testing.T) {
	s := newTestSession(t, 2)
	s.Timer.Start()

	// Race the manual trigger against the timeout trigger: exactly one wins.
	const triggers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginSubmit() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("BeginSubmit() granted %d slots, want exactly 1", wins)
	}
	if !s.SubmitPending() {
		t.Error("SubmitPending() = false after winning BeginSubmit")
	}

	// Claiming the slot freezes the countdown.
	s.Timer.Tick()
	if s.Timer.Remaining() != s.Test.DurationMinutes*60 {
		t.Error("timer still ticking after BeginSubmit")
	}

	// The slot stays claimed through a failed persist; answers stay writable
	// until the submission is durable.
	mcID := s.Test.Sections[0].Questions[0].ID
	if err := s.SetAnswer(mcID, model.ChoiceAnswer("A")); err != nil {
		t.Errorf("SetAnswer() while submit pending error = %v", err)
	}

	s.FinishSubmit()
	if !s.Submitted() {
		t.Error("Submitted() = false after FinishSubmit")
	}
	if err := s.SetAnswer(mcID, model.ChoiceAnswer("B")); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("SetAnswer() after submit error = %v, want ErrSessionFinished", err)
	}
}

func TestSessionAbortSubmitReleasesSlot(t *testing.T) {
	s := newTestSession(t, 2)

	if !s.BeginSubmit() {
		t.Fatal("BeginSubmit() = false on a fresh session")
	}
	if s.BeginSubmit() {
		t.Fatal("BeginSubmit() granted a second slot")
	}

	s.AbortSubmit()

	if s.SubmitPending() || s.Submitted() {
		t.Error("session still in a submit state after AbortSubmit")
	}
	if !s.BeginSubmit() {
		t.Error("BeginSubmit() = false after AbortSubmit released the slot")
	}

	// Aborting a persisted submission is a no-op.
	s.FinishSubmit()
	s.AbortSubmit()
	if !s.Submitted() {
		t.Error("AbortSubmit reopened a persisted submission")
	}
}

func TestSessionRestoreAnswer(t *testing.T) {
	s := newTestSession(t, 2)
	mcID := s.Test.Sections[0].Questions[0].ID

	if err := s.RestoreAnswer(mcID, model.ChoiceAnswer("C")); err != nil {
		t.Fatalf("RestoreAnswer() error = %v", err)
	}
	if got := s.Answers()[mcID].Choice; got != "C" {
		t.Errorf("restored answer = %q, want %q", got, "C")
	}

	if err := s.RestoreAnswer(mcID, model.TextAnswer("bad")); !errors.Is(err, model.ErrAnswerShape) {
		t.Errorf("RestoreAnswer(bad shape) error = %v, want ErrAnswerShape", err)
	}
}

func TestSessionDurationTaken(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	test := buildTest(1, 1, 0, 60)
	s := NewSession(uuid.New(), test, start, 600, nil, nil)

	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{29 * time.Second, 0},
		{30 * time.Second, 1},
		{10 * time.Minute, 10},
		{9*time.Minute + 40*time.Second, 10}, // rounds half-up
		{-time.Minute, 0},                    // clock skew clamps to zero
	}

	for _, tc := range tests {
		if got := s.DurationTaken(start.Add(tc.elapsed)); got != tc.want {
			t.Errorf("DurationTaken(+%v) = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestSessionTimedExamScenario(t *testing.T) {
	// A 10-minute exam whose timer runs out mid-session.
	test := buildTest(5, 1, 0, 60)
	test.Settings.AutoSubmit = true

	submitted := make(chan struct{}, 1)
	var s *Session
	s = NewSession(uuid.New(), test, time.Now(), 600, nil, func() {
		if s.BeginSubmit() {
			submitted <- struct{}{}
		}
	})
	s.Timer.Start()

	// Candidate answers two questions during the first minutes.
	s.SetAnswer(test.Sections[0].Questions[0].ID, model.ChoiceAnswer("A"))
	s.SetAnswer(test.Sections[0].Questions[1].ID, model.ChoiceAnswer("A"))

	tickN(s.Timer, 600)

	select {
	case <-submitted:
	default:
		t.Fatal("expiry did not trigger submission")
	}

	// A late manual submit press is a no-op.
	if s.BeginSubmit() {
		t.Error("manual submit claimed the slot after timeout submission")
	}

	outcome, err := Score(s.Test, s.Answers(), s.Test.PassingScore)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if outcome.ScorePercent != 40 {
		t.Errorf("ScorePercent = %d, want 40", outcome.ScorePercent)
	}
}
