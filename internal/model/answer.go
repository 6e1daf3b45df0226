package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AnswerKind tags the shape of a candidate answer.
type AnswerKind string

const (
	AnswerKindText        AnswerKind = "text"
	AnswerKindChoice      AnswerKind = "choice"
	AnswerKindMultiChoice AnswerKind = "multi_choice"
)

// ErrAnswerShape is returned when an answer's kind does not match the
// question type it is being recorded against.
var ErrAnswerShape = errors.New("answer shape does not match question type")

// Answer is a tagged variant: free text, a single selected option, or a
// list of selected options. Exactly one of the value fields is meaningful
// for a given kind.
type Answer struct {
	Kind    AnswerKind
	Text    string
	Choice  string
	Choices []string
}

// TextAnswer builds a free-text answer (written or coding questions).
func TextAnswer(s string) Answer {
	return Answer{Kind: AnswerKindText, Text: s}
}

// ChoiceAnswer builds a single-option answer.
func ChoiceAnswer(option string) Answer {
	return Answer{Kind: AnswerKindChoice, Choice: option}
}

// MultiChoiceAnswer builds a multi-option answer.
func MultiChoiceAnswer(options []string) Answer {
	return Answer{Kind: AnswerKindMultiChoice, Choices: options}
}

// Empty reports whether the answer carries no content. An empty answer does
// not count toward completion percentage.
func (a Answer) Empty() bool {
	switch a.Kind {
	case AnswerKindText:
		return strings.TrimSpace(a.Text) == ""
	case AnswerKindChoice:
		return a.Choice == ""
	case AnswerKindMultiChoice:
		return len(a.Choices) == 0
	default:
		return true
	}
}

// Display renders the answer as a single string for result breakdowns.
func (a Answer) Display() string {
	switch a.Kind {
	case AnswerKindText:
		return a.Text
	case AnswerKindChoice:
		return a.Choice
	case AnswerKindMultiChoice:
		return strings.Join(a.Choices, ",")
	default:
		return ""
	}
}

// ValidateFor checks the answer's kind against a question type. Called at
// write time so a malformed answer never enters the answer set.
func (a Answer) ValidateFor(qt QuestionType) error {
	switch qt {
	case QuestionTypeMultipleChoice:
		if a.Kind != AnswerKindChoice && a.Kind != AnswerKindMultiChoice {
			return fmt.Errorf("%w: %s answer for %s question", ErrAnswerShape, a.Kind, qt)
		}
	case QuestionTypeWrittenAnswer, QuestionTypeCoding:
		if a.Kind != AnswerKindText {
			return fmt.Errorf("%w: %s answer for %s question", ErrAnswerShape, a.Kind, qt)
		}
	default:
		return fmt.Errorf("unknown question type %q", qt)
	}
	return nil
}

// answerJSON is the wire form of an Answer.
type answerJSON struct {
	Kind  AnswerKind      `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the answer as {"kind": ..., "value": ...} where value
// is a string or a string list depending on the kind.
func (a Answer) MarshalJSON() ([]byte, error) {
	var value any
	switch a.Kind {
	case AnswerKindText:
		value = a.Text
	case AnswerKindChoice:
		value = a.Choice
	case AnswerKindMultiChoice:
		value = a.Choices
	default:
		return nil, fmt.Errorf("unknown answer kind %q", a.Kind)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerJSON{Kind: a.Kind, Value: raw})
}

// UnmarshalJSON decodes the wire form, enforcing the value shape per kind.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var wire answerJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Kind {
	case AnswerKindText:
		a.Kind = AnswerKindText
		return json.Unmarshal(wire.Value, &a.Text)
	case AnswerKindChoice:
		a.Kind = AnswerKindChoice
		return json.Unmarshal(wire.Value, &a.Choice)
	case AnswerKindMultiChoice:
		a.Kind = AnswerKindMultiChoice
		return json.Unmarshal(wire.Value, &a.Choices)
	default:
		return fmt.Errorf("unknown answer kind %q", wire.Kind)
	}
}
