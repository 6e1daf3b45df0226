package model

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus enumerates the lifecycle states of an invitation.
type InvitationStatus string

const (
	InvitationStatusActive    InvitationStatus = "ACTIVE"
	InvitationStatusCompleted InvitationStatus = "COMPLETED"
	InvitationStatusExpired   InvitationStatus = "EXPIRED"
)

// Invitation authorizes one candidate to take one test once.
// It is created by the recruiting side and read-only to the session core:
// the only transition this service performs is ACTIVE → COMPLETED when a
// result is recorded.
type Invitation struct {
	ID             uuid.UUID        `json:"id"`
	Token          string           `json:"-"`
	CandidateEmail string           `json:"candidate_email"`
	CandidateName  string           `json:"candidate_name"`
	CompanyName    string           `json:"company_name"`
	TestID         uuid.UUID        `json:"test_id"`
	Status         InvitationStatus `json:"status"`
	AccessCodeHash string           `json:"-"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Expired reports whether the invitation window has passed at the given instant.
func (i *Invitation) Expired(now time.Time) bool {
	return i.Status == InvitationStatusExpired || now.After(i.ExpiresAt)
}

// ClaimInvitationRequest is the payload for exchanging an invitation token
// for a candidate session token.
type ClaimInvitationRequest struct {
	Token      string `json:"token" binding:"required,min=8,max=128"`
	AccessCode string `json:"access_code" binding:"omitempty,min=4,max=64"`
}

// ClaimInvitationResponse is returned after a successful claim.
type ClaimInvitationResponse struct {
	SessionToken string     `json:"session_token"`
	Invitation   Invitation `json:"invitation"`
}
