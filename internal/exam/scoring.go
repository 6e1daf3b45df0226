package exam

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
)

// ErrDegenerateTest is returned when a test's total point value is zero.
// Scoring such a test would divide by zero, so it fails fast instead.
var ErrDegenerateTest = errors.New("degenerate test: total points is zero")

// ScoreOutcome is the full result of grading one answer set against one test.
type ScoreOutcome struct {
	EarnedPoints int
	TotalPoints  int
	ScorePercent int
	Status       model.ResultStatus
	Breakdown    []model.QuestionResult
}

// Score grades an answer set against a test definition. Pure function: no
// side effects, deterministic, and invariant to question presentation order
// (earned and total are sums over the whole test).
//
// Only multiple-choice questions are auto-gradable, by exact match of the
// selected option against the stored correct answer. Written and coding
// answers are recorded in the breakdown but always score zero here; manual
// grading is a separate concern.
func Score(test *model.TestDefinition, answers map[uuid.UUID]model.Answer, passingScore int) (*ScoreOutcome, error) {
	total := test.TotalPoints()
	if total == 0 {
		return nil, ErrDegenerateTest
	}

	outcome := &ScoreOutcome{
		TotalPoints: total,
		Breakdown:   make([]model.QuestionResult, 0, test.QuestionCount()),
	}

	for i := range test.Sections {
		for j := range test.Sections[i].Questions {
			q := &test.Sections[i].Questions[j]
			ans, answered := answers[q.ID]

			line := model.QuestionResult{
				QuestionID:  q.ID,
				AnswerGiven: ans.Display(),
			}

			if answered && q.AutoGradable() && isCorrectChoice(q, ans) {
				line.IsCorrect = true
				line.PointsAwarded = q.Points
				outcome.EarnedPoints += q.Points
			}

			outcome.Breakdown = append(outcome.Breakdown, line)
		}
	}

	outcome.ScorePercent = int(math.Round(float64(outcome.EarnedPoints) / float64(total) * 100))

	if outcome.ScorePercent >= passingScore {
		outcome.Status = model.ResultStatusPassed
	} else {
		outcome.Status = model.ResultStatusFailed
	}

	return outcome, nil
}

// isCorrectChoice compares a choice answer against the stored key. A
// multi-choice selection is only correct when it collapses to exactly the
// single correct option.
func isCorrectChoice(q *model.Question, ans model.Answer) bool {
	switch ans.Kind {
	case model.AnswerKindChoice:
		return ans.Choice != "" && ans.Choice == q.CorrectAnswer
	case model.AnswerKindMultiChoice:
		return len(ans.Choices) == 1 && ans.Choices[0] == q.CorrectAnswer
	default:
		return false
	}
}
