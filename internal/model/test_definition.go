package model

import (
	"time"

	"github.com/google/uuid"
)

// TestSettings are the per-test behavioral switches.
type TestSettings struct {
	ShuffleQuestions    bool `json:"shuffle_questions"`
	PreventTabSwitching bool `json:"prevent_tab_switching"`
	AllowCalculator     bool `json:"allow_calculator"`
	AutoSubmit          bool `json:"auto_submit"`
}

// TestDefinition is an immutable assessment definition. Once fetched for a
// session it is never mutated in place; shuffling produces a session-local copy.
type TestDefinition struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	DurationMinutes int          `json:"duration_minutes"`
	PassingScore    int          `json:"passing_score"`
	Instructions    string       `json:"instructions"`
	Settings        TestSettings `json:"settings"`
	Sections        []Section    `json:"sections"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Section groups an ordered run of questions.
type Section struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}

// QuestionCount returns the total number of questions across all sections.
func (t *TestDefinition) QuestionCount() int {
	n := 0
	for i := range t.Sections {
		n += len(t.Sections[i].Questions)
	}
	return n
}

// TotalPoints sums the point value of every question in the test.
func (t *TestDefinition) TotalPoints() int {
	total := 0
	for i := range t.Sections {
		for j := range t.Sections[i].Questions {
			total += t.Sections[i].Questions[j].Points
		}
	}
	return total
}

// Clone returns a deep copy safe to reorder without touching the original.
func (t *TestDefinition) Clone() *TestDefinition {
	dup := *t
	dup.Sections = make([]Section, len(t.Sections))
	for i, sec := range t.Sections {
		dup.Sections[i] = sec
		dup.Sections[i].Questions = make([]Question, len(sec.Questions))
		copy(dup.Sections[i].Questions, sec.Questions)
	}
	return &dup
}

// TestPayload is the candidate-facing view of a test (no correct answers).
type TestPayload struct {
	TestID          uuid.UUID             `json:"test_id"`
	Name            string                `json:"name"`
	DurationMinutes int                   `json:"duration_minutes"`
	Instructions    string                `json:"instructions"`
	Settings        TestSettings          `json:"settings"`
	Sections        []SectionForCandidate `json:"sections"`
}

// SectionForCandidate mirrors Section with answer keys stripped.
type SectionForCandidate struct {
	ID        uuid.UUID              `json:"id"`
	Title     string                 `json:"title"`
	Questions []QuestionForCandidate `json:"questions"`
}

// BuildTestPayload strips correct answers from a (possibly shuffled) test.
func BuildTestPayload(t *TestDefinition) *TestPayload {
	payload := &TestPayload{
		TestID:          t.ID,
		Name:            t.Name,
		DurationMinutes: t.DurationMinutes,
		Instructions:    t.Instructions,
		Settings:        t.Settings,
		Sections:        make([]SectionForCandidate, len(t.Sections)),
	}
	for i, sec := range t.Sections {
		out := SectionForCandidate{
			ID:        sec.ID,
			Title:     sec.Title,
			Questions: make([]QuestionForCandidate, len(sec.Questions)),
		}
		for j, q := range sec.Questions {
			out.Questions[j] = QuestionForCandidate{
				ID:      q.ID,
				Text:    q.Text,
				Type:    q.Type,
				Options: q.Options,
				Points:  q.Points,
			}
		}
		payload.Sections[i] = out
	}
	return payload
}
