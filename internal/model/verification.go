package model

// VerificationStep enumerates the linear gate a candidate walks before any
// exam content is rendered.
type VerificationStep string

const (
	StepSystemCheck          VerificationStep = "SYSTEM_CHECK"
	StepIdentityVerification VerificationStep = "IDENTITY_VERIFICATION"
	StepRules                VerificationStep = "RULES"
	StepComplete             VerificationStep = "COMPLETE"
)

// SystemCheckReport is the client's snapshot of its environment checks.
// All four must read true to advance past the system-check step.
type SystemCheckReport struct {
	CameraAccess      bool `json:"camera_access"`
	Fullscreen        bool `json:"fullscreen"`
	BrowserCompatible bool `json:"browser_compatible"`
	TabFocused        bool `json:"tab_focused"`
}

// IdentityArtifacts holds what identity verification captured: the candidate's
// stated identifier plus storage URLs of the two verification images.
type IdentityArtifacts struct {
	CandidateRef string `json:"candidate_ref"`
	IDCardURL    string `json:"id_card_url"`
	FaceURL      string `json:"face_url"`
}

// SystemCheckRequest is the payload for reporting system-check state.
type SystemCheckRequest struct {
	CameraAccess      bool `json:"camera_access"`
	Fullscreen        bool `json:"fullscreen"`
	BrowserCompatible bool `json:"browser_compatible"`
	TabFocused        bool `json:"tab_focused"`
}

// IdentitySubmitRequest finalizes the identity-verification step. The image
// URLs come back from the upload endpoint; the candidate reference is the
// identifier they typed (e.g. a national ID or passport number).
type IdentitySubmitRequest struct {
	CandidateRef string `json:"candidate_ref" binding:"required,min=2,max=64"`
	IDCardURL    string `json:"id_card_url" binding:"required,max=512"`
	FaceURL      string `json:"face_url" binding:"required,max=512"`
}

// RulesAcceptRequest records explicit acceptance of the assessment rules.
type RulesAcceptRequest struct {
	Accepted bool `json:"accepted"`
}
