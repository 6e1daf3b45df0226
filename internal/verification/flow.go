// Package verification implements the gate a candidate must clear before
// any exam content is rendered: System Check → Identity Verification →
// Rules → Complete. The flow is strictly linear; the only backward movement
// is an explicit Back requested by the candidate.
package verification

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hirelane/proctor-backend/internal/model"
)

var (
	ErrWrongStep        = errors.New("operation not valid for the current step")
	ErrMissingIdentity  = errors.New("identity verification requires an identifier and both images")
	ErrRulesNotAccepted = errors.New("rules must be explicitly accepted")
)

// ChecksFailedError reports which system checks blocked advancement.
type ChecksFailedError struct {
	Failed []string
}

func (e *ChecksFailedError) Error() string {
	return "system checks failed: " + strings.Join(e.Failed, ", ")
}

// Flow is one candidate's verification state machine.
type Flow struct {
	mu sync.Mutex

	token         string
	step          model.VerificationStep
	checks        model.SystemCheckReport
	artifacts     model.IdentityArtifacts
	rulesAccepted bool
}

// NewFlow starts a fresh flow at the system-check step.
func NewFlow(token string) *Flow {
	return &Flow{token: token, step: model.StepSystemCheck}
}

// Resume builds a flow already at Complete, for candidates whose persisted
// marker shows they verified earlier (e.g. before a page reload).
func Resume(token string) *Flow {
	return &Flow{token: token, step: model.StepComplete}
}

// Token returns the invitation token this flow is keyed by.
func (f *Flow) Token() string {
	return f.token
}

// Step returns the current step.
func (f *Flow) Step() model.VerificationStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Completed reports whether the flow has reached Complete.
func (f *Flow) Completed() bool {
	return f.Step() == model.StepComplete
}

// RecordSystemCheck stores the latest environment snapshot. Recording never
// advances the flow; advancement is a separate, explicit call.
func (f *Flow) RecordSystemCheck(report model.SystemCheckReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = report
}

// AdvanceFromSystemCheck moves to identity verification, refusing unless
// every check currently reads true. The error names each failed check so
// the caller can tell the candidate exactly what to fix.
func (f *Flow) AdvanceFromSystemCheck() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != model.StepSystemCheck {
		return fmt.Errorf("%w: at %s", ErrWrongStep, f.step)
	}

	var failed []string
	if !f.checks.CameraAccess {
		failed = append(failed, "camera_access")
	}
	if !f.checks.Fullscreen {
		failed = append(failed, "fullscreen")
	}
	if !f.checks.BrowserCompatible {
		failed = append(failed, "browser_compatible")
	}
	if !f.checks.TabFocused {
		failed = append(failed, "tab_focused")
	}
	if len(failed) > 0 {
		return &ChecksFailedError{Failed: failed}
	}

	f.step = model.StepIdentityVerification
	return nil
}

// SubmitIdentity records the captured artifacts and advances to the rules
// step. Requires a non-empty candidate identifier plus both image URLs.
// Upload failures are the caller's concern: a failed upload just means the
// URL is absent and capture can be retried.
func (f *Flow) SubmitIdentity(artifacts model.IdentityArtifacts) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != model.StepIdentityVerification {
		return fmt.Errorf("%w: at %s", ErrWrongStep, f.step)
	}
	if strings.TrimSpace(artifacts.CandidateRef) == "" ||
		artifacts.IDCardURL == "" || artifacts.FaceURL == "" {
		return ErrMissingIdentity
	}

	f.artifacts = artifacts
	f.step = model.StepRules
	return nil
}

// AcceptRules sets the acceptance flag and completes the flow. The caller
// persists the completion marker so a reload skips verification.
func (f *Flow) AcceptRules(accepted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != model.StepRules {
		return fmt.Errorf("%w: at %s", ErrWrongStep, f.step)
	}
	if !accepted {
		return ErrRulesNotAccepted
	}

	f.rulesAccepted = true
	f.step = model.StepComplete
	return nil
}

// Back steps to the previous step at the candidate's explicit request.
// No-op at the first step, and not available once Complete.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.step {
	case model.StepIdentityVerification:
		f.step = model.StepSystemCheck
	case model.StepRules:
		f.step = model.StepIdentityVerification
	}
}

// Snapshot is a read-only view of the flow, for the preview affordance and
// for rendering the current step. Inspecting it never mutates the flow.
type Snapshot struct {
	Step          model.VerificationStep  `json:"step"`
	Checks        model.SystemCheckReport `json:"checks"`
	Artifacts     model.IdentityArtifacts `json:"artifacts"`
	RulesAccepted bool                    `json:"rules_accepted"`
}

// Preview returns the current state without mutating anything.
func (f *Flow) Preview() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		Step:          f.step,
		Checks:        f.checks,
		Artifacts:     f.artifacts,
		RulesAccepted: f.rulesAccepted,
	}
}

// Artifacts returns the captured identity artifacts.
func (f *Flow) Artifacts() model.IdentityArtifacts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.artifacts
}
