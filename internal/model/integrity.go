package model

import (
	"time"

	"github.com/google/uuid"
)

// IntegrityEventType enumerates proctoring signals reported by the exam page.
type IntegrityEventType string

const (
	IntegrityTabHidden      IntegrityEventType = "tab_hidden"
	IntegrityTabVisible     IntegrityEventType = "tab_visible"
	IntegrityWindowBlur     IntegrityEventType = "window_blur"
	IntegrityWindowFocus    IntegrityEventType = "window_focus"
	IntegrityCameraLost     IntegrityEventType = "camera_lost"
	IntegrityCameraRestored IntegrityEventType = "camera_restored"
)

// Valid reports whether the value is a known signal.
func (t IntegrityEventType) Valid() bool {
	switch t {
	case IntegrityTabHidden, IntegrityTabVisible,
		IntegrityWindowBlur, IntegrityWindowFocus,
		IntegrityCameraLost, IntegrityCameraRestored:
		return true
	}
	return false
}

// IntegrityEvent is one append-only proctoring record. Events are recorded
// and surfaced to reviewers; they never lock or abort the exam.
type IntegrityEvent struct {
	ID           int64              `json:"id"`
	InvitationID uuid.UUID          `json:"invitation_id"`
	Type         IntegrityEventType `json:"type"`
	OccurredAt   time.Time          `json:"occurred_at"`
}
