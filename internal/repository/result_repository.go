package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRepository persists submission results. The table enforces one
// result per invitation; a duplicate insert is a silent no-op so retries
// and races dedup server-side.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a result, ignoring duplicates on invitation_id.
func (r *ResultRepository) Create(ctx context.Context, res *model.SubmissionResult) error {
	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO results
			(invitation_id, test_id, candidate_email, candidate_ref, score_percent, status,
			 earned_points, total_points, duration_taken_minutes, tab_switch_count, breakdown, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (invitation_id) DO NOTHING`,
		res.InvitationID, res.TestID, res.CandidateEmail, res.CandidateRef,
		res.ScorePercent, res.Status, res.EarnedPoints, res.TotalPoints,
		res.DurationTakenMinutes, res.TabSwitchCount, breakdown, res.SubmittedAt)
	return err
}

// GetByInvitation retrieves the result recorded for an invitation.
func (r *ResultRepository) GetByInvitation(ctx context.Context, invitationID uuid.UUID) (*model.SubmissionResult, error) {
	res := &model.SubmissionResult{}
	var breakdown []byte

	err := r.pool.QueryRow(ctx,
		`SELECT invitation_id, test_id, candidate_email, candidate_ref, score_percent, status,
		        earned_points, total_points, duration_taken_minutes, tab_switch_count, breakdown, submitted_at
		 FROM results WHERE invitation_id = $1`, invitationID,
	).Scan(&res.InvitationID, &res.TestID, &res.CandidateEmail, &res.CandidateRef,
		&res.ScorePercent, &res.Status, &res.EarnedPoints, &res.TotalPoints,
		&res.DurationTakenMinutes, &res.TabSwitchCount, &breakdown, &res.SubmittedAt)
	if err != nil {
		return nil, err
	}

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &res.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return res, nil
}

// Exists reports whether a result has been recorded for an invitation.
func (r *ResultRepository) Exists(ctx context.Context, invitationID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE invitation_id = $1)`, invitationID,
	).Scan(&exists)
	return exists, err
}
