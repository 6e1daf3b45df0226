package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/repository"
	"github.com/hirelane/proctor-backend/internal/store"
	"github.com/hirelane/proctor-backend/internal/verification"
	"github.com/rs/zerolog"
)

// VerificationService drives the pre-exam verification flow. Flow state is
// session-transient; only the completion marker (keyed by invitation token)
// and the identity artifacts are persisted, so a reload skips a finished
// flow but restarts an unfinished one.
type VerificationService struct {
	invRepo *repository.InvitationRepository
	markers store.VerificationStore
	log     zerolog.Logger

	mu    sync.Mutex
	flows map[uuid.UUID]*verification.Flow
}

// NewVerificationService creates a new VerificationService.
func NewVerificationService(invRepo *repository.InvitationRepository, markers store.VerificationStore, log zerolog.Logger) *VerificationService {
	return &VerificationService{
		invRepo: invRepo,
		markers: markers,
		log:     log.With().Str("component", "verification_service").Logger(),
		flows:   make(map[uuid.UUID]*verification.Flow),
	}
}

// Flow returns the invitation's verification flow, resuming a completed one
// from its persisted marker.
func (s *VerificationService) Flow(ctx context.Context, inv *model.Invitation) (*verification.Flow, error) {
	s.mu.Lock()
	if f, ok := s.flows[inv.ID]; ok {
		s.mu.Unlock()
		return f, nil
	}
	s.mu.Unlock()

	done, err := s.markers.IsComplete(ctx, inv.Token)
	if err != nil {
		return nil, fmt.Errorf("check verification marker: %w", err)
	}

	var f *verification.Flow
	if done {
		f = verification.Resume(inv.Token)
	} else {
		f = verification.NewFlow(inv.Token)
	}

	s.mu.Lock()
	// Another request may have raced us; keep the first flow.
	if existing, ok := s.flows[inv.ID]; ok {
		f = existing
	} else {
		s.flows[inv.ID] = f
	}
	s.mu.Unlock()

	return f, nil
}

// RecordSystemCheck stores the latest system-check snapshot.
func (s *VerificationService) RecordSystemCheck(ctx context.Context, inv *model.Invitation, report model.SystemCheckReport) error {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return err
	}
	f.RecordSystemCheck(report)
	return nil
}

// AdvanceSystemCheck attempts the SystemCheck → IdentityVerification
// transition. The returned error names any failing checks.
func (s *VerificationService) AdvanceSystemCheck(ctx context.Context, inv *model.Invitation) error {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return err
	}
	return f.AdvanceFromSystemCheck()
}

// SubmitIdentity records the identity artifacts and advances to Rules.
func (s *VerificationService) SubmitIdentity(ctx context.Context, inv *model.Invitation, artifacts model.IdentityArtifacts) error {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return err
	}
	return f.SubmitIdentity(artifacts)
}

// AcceptRules completes the flow: it persists the completion marker and the
// identity artifacts so neither step repeats after a reload.
func (s *VerificationService) AcceptRules(ctx context.Context, inv *model.Invitation, accepted bool) error {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return err
	}
	if err := f.AcceptRules(accepted); err != nil {
		return err
	}

	if err := s.invRepo.SaveVerification(ctx, inv.ID, f.Artifacts(), time.Now()); err != nil {
		return fmt.Errorf("persist verification artifacts: %w", err)
	}
	if err := s.markers.MarkComplete(ctx, inv.Token); err != nil {
		return fmt.Errorf("persist verification marker: %w", err)
	}

	s.log.Info().Str("invitation_id", inv.ID.String()).Msg("Verification complete")
	return nil
}

// Back steps the flow backward at the candidate's explicit request.
func (s *VerificationService) Back(ctx context.Context, inv *model.Invitation) error {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return err
	}
	f.Back()
	return nil
}

// Preview returns a read-only snapshot of the flow without mutating it.
func (s *VerificationService) Preview(ctx context.Context, inv *model.Invitation) (verification.Snapshot, error) {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return verification.Snapshot{}, err
	}
	return f.Preview(), nil
}

// IsComplete reports whether the invitation has cleared verification.
func (s *VerificationService) IsComplete(ctx context.Context, inv *model.Invitation) (bool, error) {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return false, err
	}
	return f.Completed(), nil
}

// Artifacts returns the flow's identity artifacts, falling back to the
// persisted record for resumed flows.
func (s *VerificationService) Artifacts(ctx context.Context, inv *model.Invitation) (model.IdentityArtifacts, error) {
	f, err := s.Flow(ctx, inv)
	if err != nil {
		return model.IdentityArtifacts{}, err
	}

	artifacts := f.Artifacts()
	if artifacts.CandidateRef != "" {
		return artifacts, nil
	}

	persisted, err := s.invRepo.GetVerification(ctx, inv.ID)
	if err != nil {
		// Resumed marker without artifacts is possible if the row was
		// cleaned up; not fatal for the session.
		return model.IdentityArtifacts{}, nil
	}
	return *persisted, nil
}

// Forget drops the in-memory flow (exam completed or session torn down).
func (s *VerificationService) Forget(invitationID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, invitationID)
}
