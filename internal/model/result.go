package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the pass/fail outcome of a scored submission.
type ResultStatus string

const (
	ResultStatusPassed ResultStatus = "Passed"
	ResultStatusFailed ResultStatus = "Failed"
)

// QuestionResult is the per-question audit line of a scored submission.
type QuestionResult struct {
	QuestionID    uuid.UUID `json:"question_id"`
	AnswerGiven   string    `json:"answer_given"`
	IsCorrect     bool      `json:"is_correct"`
	PointsAwarded int       `json:"points_awarded"`
}

// SubmissionResult is the single immutable record produced per exam session.
// The candidate never sees the score here; declaration is a separate, later
// administrative act.
type SubmissionResult struct {
	InvitationID         uuid.UUID        `json:"invitation_id"`
	TestID               uuid.UUID        `json:"test_id"`
	CandidateEmail       string           `json:"candidate_email"`
	CandidateRef         string           `json:"candidate_ref"`
	ScorePercent         int              `json:"score_percent"`
	Status               ResultStatus     `json:"status"`
	EarnedPoints         int              `json:"earned_points"`
	TotalPoints          int              `json:"total_points"`
	DurationTakenMinutes int              `json:"duration_taken_minutes"`
	TabSwitchCount       int              `json:"tab_switch_count"`
	Breakdown            []QuestionResult `json:"breakdown"`
	SubmittedAt          time.Time        `json:"submitted_at"`
}
