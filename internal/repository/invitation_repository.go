package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvitationRepository handles invitation data access. Invitations are
// created by the recruiting side; this service only reads them and flips
// status to COMPLETED when a result lands.
type InvitationRepository struct {
	pool *pgxpool.Pool
}

// NewInvitationRepository creates a new InvitationRepository.
func NewInvitationRepository(pool *pgxpool.Pool) *InvitationRepository {
	return &InvitationRepository{pool: pool}
}

const invitationColumns = `id, token, candidate_email, candidate_name, company_name,
	test_id, status, access_code_hash, expires_at, created_at`

// GetByToken retrieves an invitation by its opaque token.
func (r *InvitationRepository) GetByToken(ctx context.Context, token string) (*model.Invitation, error) {
	inv := &model.Invitation{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE token = $1`, token,
	).Scan(&inv.ID, &inv.Token, &inv.CandidateEmail, &inv.CandidateName, &inv.CompanyName,
		&inv.TestID, &inv.Status, &inv.AccessCodeHash, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetByID retrieves an invitation by id.
func (r *InvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Invitation, error) {
	inv := &model.Invitation{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id,
	).Scan(&inv.ID, &inv.Token, &inv.CandidateEmail, &inv.CandidateName, &inv.CompanyName,
		&inv.TestID, &inv.Status, &inv.AccessCodeHash, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Create inserts a new invitation (operator CLI only).
func (r *InvitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO invitations
			(token, candidate_email, candidate_name, company_name, test_id, status, access_code_hash, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		inv.Token, inv.CandidateEmail, inv.CandidateName, inv.CompanyName,
		inv.TestID, model.InvitationStatusActive, inv.AccessCodeHash, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
}

// MarkCompleted flips an ACTIVE invitation to COMPLETED.
func (r *InvitationRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE invitations SET status = $1 WHERE id = $2 AND status = $3`,
		model.InvitationStatusCompleted, id, model.InvitationStatusActive)
	return err
}

// SaveVerification records the completed identity-verification artifacts.
func (r *InvitationRepository) SaveVerification(ctx context.Context, id uuid.UUID, artifacts model.IdentityArtifacts, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO verifications (invitation_id, candidate_ref, id_card_url, face_url, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (invitation_id) DO UPDATE
		 SET candidate_ref = EXCLUDED.candidate_ref,
		     id_card_url = EXCLUDED.id_card_url,
		     face_url = EXCLUDED.face_url,
		     completed_at = EXCLUDED.completed_at`,
		id, artifacts.CandidateRef, artifacts.IDCardURL, artifacts.FaceURL, completedAt)
	return err
}

// GetVerification returns the persisted artifacts, if verification completed.
func (r *InvitationRepository) GetVerification(ctx context.Context, id uuid.UUID) (*model.IdentityArtifacts, error) {
	a := &model.IdentityArtifacts{}
	err := r.pool.QueryRow(ctx,
		`SELECT candidate_ref, id_card_url, face_url FROM verifications WHERE invitation_id = $1`, id,
	).Scan(&a.CandidateRef, &a.IDCardURL, &a.FaceURL)
	if err != nil {
		return nil, err
	}
	return a, nil
}
