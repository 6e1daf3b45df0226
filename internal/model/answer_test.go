package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAnswerValidateFor(t *testing.T) {
	tests := []struct {
		name    string
		answer  Answer
		qType   QuestionType
		wantErr bool
	}{
		{"choice for multiple choice", ChoiceAnswer("A"), QuestionTypeMultipleChoice, false},
		{"multi choice for multiple choice", MultiChoiceAnswer([]string{"A", "B"}), QuestionTypeMultipleChoice, false},
		{"text for written", TextAnswer("essay"), QuestionTypeWrittenAnswer, false},
		{"text for coding", TextAnswer("func main() {}"), QuestionTypeCoding, false},
		{"text for multiple choice", TextAnswer("A"), QuestionTypeMultipleChoice, true},
		{"choice for written", ChoiceAnswer("A"), QuestionTypeWrittenAnswer, true},
		{"multi choice for coding", MultiChoiceAnswer([]string{"A"}), QuestionTypeCoding, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.answer.ValidateFor(tc.qType)
			if tc.wantErr && !errors.Is(err, ErrAnswerShape) {
				t.Errorf("ValidateFor() error = %v, want ErrAnswerShape", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateFor() error = %v", err)
			}
		})
	}
}

func TestAnswerEmpty(t *testing.T) {
	tests := []struct {
		name   string
		answer Answer
		want   bool
	}{
		{"blank text", TextAnswer("  \n"), true},
		{"real text", TextAnswer("x"), false},
		{"no choice", ChoiceAnswer(""), true},
		{"choice", ChoiceAnswer("B"), false},
		{"no selections", MultiChoiceAnswer(nil), true},
		{"selections", MultiChoiceAnswer([]string{"A"}), false},
		{"zero value", Answer{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.answer.Empty(); got != tc.want {
				t.Errorf("Empty() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnswerJSONWireFormat(t *testing.T) {
	raw, err := json.Marshal(ChoiceAnswer("B"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `{"kind":"choice","value":"B"}` {
		t.Errorf("wire form = %s", raw)
	}

	var decoded Answer
	if err := json.Unmarshal([]byte(`{"kind":"multi_choice","value":["A","C"]}`), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Kind != AnswerKindMultiChoice || len(decoded.Choices) != 2 || decoded.Choices[1] != "C" {
		t.Errorf("decoded = %+v", decoded)
	}

	// Unknown kinds are rejected rather than silently dropped.
	if err := json.Unmarshal([]byte(`{"kind":"maybe","value":"A"}`), &decoded); err == nil {
		t.Error("Unmarshal() accepted unknown kind")
	}

	// Value shape must match the kind.
	if err := json.Unmarshal([]byte(`{"kind":"choice","value":["A"]}`), &decoded); err == nil {
		t.Error("Unmarshal() accepted list value for choice kind")
	}
}

func TestAnswerDisplay(t *testing.T) {
	if got := MultiChoiceAnswer([]string{"A", "C"}).Display(); got != "A,C" {
		t.Errorf("Display() = %q, want %q", got, "A,C")
	}
	if got := (Answer{}).Display(); got != "" {
		t.Errorf("Display() of zero value = %q, want empty", got)
	}
}
