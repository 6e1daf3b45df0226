package exam

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
)

// Session errors.
var (
	ErrUnknownQuestion  = errors.New("question not part of this session")
	ErrInvalidPosition  = errors.New("position outside the test bounds")
	ErrSessionFinished  = errors.New("session already submitted")
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// submitState tracks the single-flight submission guard.
type submitState int

const (
	submitNone submitState = iota
	submitInFlight
	submitDone
)

// questionRef locates a question inside the session's test copy.
type questionRef struct {
	section  int
	question int
	qType    model.QuestionType
}

// Session owns one candidate's live exam state: the navigation cursor, the
// answer set, and the countdown timer. All event sources (HTTP, WebSocket,
// timer ticks) funnel through its mutex, so two triggers arriving in the
// same instant cannot produce lost updates or a double submission.
type Session struct {
	mu sync.Mutex

	InvitationID uuid.UUID
	Test         *model.TestDefinition // session-local copy, possibly shuffled
	Timer        *CountdownTimer

	startedAt time.Time
	secIdx    int
	qIdx      int
	answers   map[uuid.UUID]model.Answer
	index     map[uuid.UUID]questionRef
	submit    submitState
}

// NewSession builds a session over a session-local test copy. The timer
// holds remainingSeconds (duration×60 for a fresh session, less for one
// restored after a reload) and is not started; call Timer.Start once the
// exam view is active.
func NewSession(invitationID uuid.UUID, test *model.TestDefinition, startedAt time.Time, remainingSeconds int, onTick func(int), onExpire func()) *Session {
	s := &Session{
		InvitationID: invitationID,
		Test:         test,
		startedAt:    startedAt,
		answers:      make(map[uuid.UUID]model.Answer),
		index:        make(map[uuid.UUID]questionRef, test.QuestionCount()),
	}
	for i := range test.Sections {
		for j := range test.Sections[i].Questions {
			q := &test.Sections[i].Questions[j]
			s.index[q.ID] = questionRef{section: i, question: j, qType: q.Type}
		}
	}
	s.Timer = NewCountdownTimer(remainingSeconds, onTick, onExpire)
	return s
}

// StartedAt returns when the session began.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Cursor returns the current (section, question) position.
func (s *Session) Cursor() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secIdx, s.qIdx
}

// Next advances to the next question, crossing into the next section at a
// boundary. No-op at the last question of the last section.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := &s.Test.Sections[s.secIdx]
	if s.qIdx < len(sec.Questions)-1 {
		s.qIdx++
		return
	}
	if s.secIdx < len(s.Test.Sections)-1 {
		s.secIdx++
		s.qIdx = 0
	}
}

// Previous is the mirror of Next: it steps back, landing on the last
// question of the previous section at a boundary. No-op at the very first
// question.
func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.qIdx > 0 {
		s.qIdx--
		return
	}
	if s.secIdx > 0 {
		s.secIdx--
		s.qIdx = len(s.Test.Sections[s.secIdx].Questions) - 1
	}
}

// JumpTo moves the cursor directly to an arbitrary position (side-panel
// navigator). Does not touch the timer or the answer set.
func (s *Session) JumpTo(section, question int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if section < 0 || section >= len(s.Test.Sections) {
		return fmt.Errorf("%w: section %d", ErrInvalidPosition, section)
	}
	if question < 0 || question >= len(s.Test.Sections[section].Questions) {
		return fmt.Errorf("%w: question %d in section %d", ErrInvalidPosition, question, section)
	}
	s.secIdx = section
	s.qIdx = question
	return nil
}

// SetAnswer records the candidate's current answer for a question,
// overwriting any previous value (last write wins, no history). The answer
// shape is validated against the question's declared type at write time.
func (s *Session) SetAnswer(questionID uuid.UUID, ans model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submit == submitDone {
		return ErrSessionFinished
	}

	ref, ok := s.index[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if err := ans.ValidateFor(ref.qType); err != nil {
		return err
	}

	s.answers[questionID] = ans
	return nil
}

// Answers returns a snapshot copy of the answer set.
func (s *Session) Answers() map[uuid.UUID]model.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[uuid.UUID]model.Answer, len(s.answers))
	for id, a := range s.answers {
		out[id] = a
	}
	return out
}

// RestoreAnswer seeds an answer during session reload without the finished
// check. Shape validation still applies.
func (s *Session) RestoreAnswer(questionID uuid.UUID, ans model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.index[questionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if err := ans.ValidateFor(ref.qType); err != nil {
		return err
	}
	s.answers[questionID] = ans
	return nil
}

// CompletionPercent returns answered/total across all sections, where a
// question counts as answered only if its value is non-empty.
func (s *Session) CompletionPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.Test.QuestionCount()
	if total == 0 {
		return 0
	}
	answered := 0
	for _, a := range s.answers {
		if !a.Empty() {
			answered++
		}
	}
	return float64(answered) / float64(total) * 100
}

// BeginSubmit claims the single submission slot. Exactly one caller — the
// candidate's submit press or the timer expiry — gets true; every later
// trigger is a no-op. The slot stays claimed through persistence retries, so
// a retry re-sends the computed result rather than rescoring.
func (s *Session) BeginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submit != submitNone {
		return false
	}
	s.submit = submitInFlight
	s.Timer.Cancel()
	return true
}

// AbortSubmit releases a claimed slot when no result could be computed, so
// the underlying error resurfaces on the next trigger instead of a spurious
// in-flight conflict. The timer stays cancelled.
func (s *Session) AbortSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submit == submitInFlight {
		s.submit = submitNone
	}
}

// FinishSubmit marks the submission as durably persisted.
func (s *Session) FinishSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submit = submitDone
}

// Submitted reports whether a submission has been persisted.
func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submit == submitDone
}

// SubmitPending reports whether a submission is claimed but not yet persisted.
func (s *Session) SubmitPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submit == submitInFlight
}

// DurationTaken returns elapsed whole minutes from session start to the
// given submission instant, rounded half-up.
func (s *Session) DurationTaken(submittedAt time.Time) int {
	elapsed := submittedAt.Sub(s.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return int((elapsed + 30*time.Second) / time.Minute)
}
