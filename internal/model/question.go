package model

import (
	"github.com/google/uuid"
)

// QuestionType discriminates how a question is answered and graded.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeWrittenAnswer  QuestionType = "WRITTEN_ANSWER"
	QuestionTypeCoding         QuestionType = "CODING"
)

// Question is a single assessment question. CorrectAnswer never leaves the
// server: candidate-facing payloads use QuestionForCandidate instead.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	SectionID     uuid.UUID    `json:"section_id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"-"`
	Points        int          `json:"points"`
	OrderNum      int          `json:"order_num"`
}

// AutoGradable reports whether the question can be scored without a human.
func (q *Question) AutoGradable() bool {
	return q.Type == QuestionTypeMultipleChoice
}

// QuestionForCandidate is a question with the answer key stripped.
type QuestionForCandidate struct {
	ID      uuid.UUID    `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Points  int          `json:"points"`
}
