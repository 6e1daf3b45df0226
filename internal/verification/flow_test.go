package verification

import (
	"errors"
	"testing"

	"github.com/hirelane/proctor-backend/internal/model"
)

func allChecksPass() model.SystemCheckReport {
	return model.SystemCheckReport{
		CameraAccess:      true,
		Fullscreen:        true,
		BrowserCompatible: true,
		TabFocused:        true,
	}
}

func sampleArtifacts() model.IdentityArtifacts {
	return model.IdentityArtifacts{
		CandidateRef: "ID-12345678",
		IDCardURL:    "/uploads/verification/x/id_card-1.jpg",
		FaceURL:      "/uploads/verification/x/face-1.jpg",
	}
}

// completeFlow walks a flow through every step.
func completeFlow(t *testing.T) *Flow {
	t.Helper()
	f := NewFlow("tok-1")
	f.RecordSystemCheck(allChecksPass())
	if err := f.AdvanceFromSystemCheck(); err != nil {
		t.Fatalf("AdvanceFromSystemCheck() error = %v", err)
	}
	if err := f.SubmitIdentity(sampleArtifacts()); err != nil {
		t.Fatalf("SubmitIdentity() error = %v", err)
	}
	if err := f.AcceptRules(true); err != nil {
		t.Fatalf("AcceptRules() error = %v", err)
	}
	return f
}

func TestFlowLinearProgression(t *testing.T) {
	f := NewFlow("tok-1")
	if f.Step() != model.StepSystemCheck {
		t.Fatalf("fresh flow at %s, want %s", f.Step(), model.StepSystemCheck)
	}

	f = completeFlow(t)
	if !f.Completed() {
		t.Error("Completed() = false after full walk")
	}
}

func TestFlowNamesFailedChecks(t *testing.T) {
	tests := []struct {
		name   string
		report model.SystemCheckReport
		want   []string
	}{
		{
			"no camera",
			model.SystemCheckReport{Fullscreen: true, BrowserCompatible: true, TabFocused: true},
			[]string{"camera_access"},
		},
		{
			"not fullscreen and unfocused",
			model.SystemCheckReport{CameraAccess: true, BrowserCompatible: true},
			[]string{"fullscreen", "tab_focused"},
		},
		{
			"everything failing",
			model.SystemCheckReport{},
			[]string{"camera_access", "fullscreen", "browser_compatible", "tab_focused"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFlow("tok-1")
			f.RecordSystemCheck(tc.report)

			err := f.AdvanceFromSystemCheck()
			var checksErr *ChecksFailedError
			if !errors.As(err, &checksErr) {
				t.Fatalf("AdvanceFromSystemCheck() error = %v, want ChecksFailedError", err)
			}
			if len(checksErr.Failed) != len(tc.want) {
				t.Fatalf("Failed = %v, want %v", checksErr.Failed, tc.want)
			}
			for i := range tc.want {
				if checksErr.Failed[i] != tc.want[i] {
					t.Errorf("Failed[%d] = %q, want %q", i, checksErr.Failed[i], tc.want[i])
				}
			}

			// A failed advance never moves the flow.
			if f.Step() != model.StepSystemCheck {
				t.Errorf("flow moved to %s on failed checks", f.Step())
			}
		})
	}
}

func TestFlowRecordingNeverAdvances(t *testing.T) {
	f := NewFlow("tok-1")
	f.RecordSystemCheck(allChecksPass())

	if f.Step() != model.StepSystemCheck {
		t.Errorf("RecordSystemCheck advanced the flow to %s", f.Step())
	}
}

func TestFlowChecksCanRecoverAfterFailure(t *testing.T) {
	f := NewFlow("tok-1")
	f.RecordSystemCheck(model.SystemCheckReport{})
	if err := f.AdvanceFromSystemCheck(); err == nil {
		t.Fatal("advance succeeded with failing checks")
	}

	// Candidate fixes the environment and the next advance succeeds.
	f.RecordSystemCheck(allChecksPass())
	if err := f.AdvanceFromSystemCheck(); err != nil {
		t.Fatalf("AdvanceFromSystemCheck() after fix error = %v", err)
	}
	if f.Step() != model.StepIdentityVerification {
		t.Errorf("Step() = %s, want %s", f.Step(), model.StepIdentityVerification)
	}
}

func TestFlowWrongStepOperations(t *testing.T) {
	f := NewFlow("tok-1")

	if err := f.SubmitIdentity(sampleArtifacts()); !errors.Is(err, ErrWrongStep) {
		t.Errorf("SubmitIdentity at system check error = %v, want ErrWrongStep", err)
	}
	if err := f.AcceptRules(true); !errors.Is(err, ErrWrongStep) {
		t.Errorf("AcceptRules at system check error = %v, want ErrWrongStep", err)
	}

	done := completeFlow(t)
	if err := done.AdvanceFromSystemCheck(); !errors.Is(err, ErrWrongStep) {
		t.Errorf("AdvanceFromSystemCheck at complete error = %v, want ErrWrongStep", err)
	}
}

func TestFlowMissingIdentity(t *testing.T) {
	tests := []struct {
		name      string
		artifacts model.IdentityArtifacts
	}{
		{"empty identifier", model.IdentityArtifacts{CandidateRef: "  ", IDCardURL: "a", FaceURL: "b"}},
		{"missing id card", model.IdentityArtifacts{CandidateRef: "x", FaceURL: "b"}},
		{"missing face", model.IdentityArtifacts{CandidateRef: "x", IDCardURL: "a"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFlow("tok-1")
			f.RecordSystemCheck(allChecksPass())
			if err := f.AdvanceFromSystemCheck(); err != nil {
				t.Fatalf("setup: %v", err)
			}
			if err := f.SubmitIdentity(tc.artifacts); !errors.Is(err, ErrMissingIdentity) {
				t.Errorf("SubmitIdentity() error = %v, want ErrMissingIdentity", err)
			}
		})
	}
}

func TestFlowDecliningRulesHoldsStep(t *testing.T) {
	f := NewFlow("tok-1")
	f.RecordSystemCheck(allChecksPass())
	f.AdvanceFromSystemCheck()
	f.SubmitIdentity(sampleArtifacts())

	if err := f.AcceptRules(false); !errors.Is(err, ErrRulesNotAccepted) {
		t.Fatalf("AcceptRules(false) error = %v, want ErrRulesNotAccepted", err)
	}
	if f.Step() != model.StepRules {
		t.Errorf("Step() = %s, want %s after declining", f.Step(), model.StepRules)
	}
}

func TestFlowBack(t *testing.T) {
	f := NewFlow("tok-1")
	f.RecordSystemCheck(allChecksPass())
	f.AdvanceFromSystemCheck()
	f.SubmitIdentity(sampleArtifacts())

	f.Back()
	if f.Step() != model.StepIdentityVerification {
		t.Errorf("Step() = %s, want %s", f.Step(), model.StepIdentityVerification)
	}
	f.Back()
	if f.Step() != model.StepSystemCheck {
		t.Errorf("Step() = %s, want %s", f.Step(), model.StepSystemCheck)
	}

	// Back at the first step is a no-op.
	f.Back()
	if f.Step() != model.StepSystemCheck {
		t.Errorf("Back() moved past the first step: %s", f.Step())
	}

	// No backward movement once complete.
	done := completeFlow(t)
	done.Back()
	if done.Step() != model.StepComplete {
		t.Errorf("Back() moved a completed flow to %s", done.Step())
	}
}

func TestFlowPreviewDoesNotMutate(t *testing.T) {
	f := NewFlow("tok-1")
	f.RecordSystemCheck(allChecksPass())

	before := f.Step()
	snap := f.Preview()
	if snap.Step != before {
		t.Errorf("Preview().Step = %s, want %s", snap.Step, before)
	}
	if !snap.Checks.CameraAccess {
		t.Error("Preview() lost recorded checks")
	}
	if f.Step() != before {
		t.Errorf("Preview() mutated the flow: %s", f.Step())
	}
}

func TestResumeStartsComplete(t *testing.T) {
	f := Resume("tok-1")
	if !f.Completed() {
		t.Error("Resume() flow not complete")
	}
}
