package integrity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
)

type recorder struct {
	events []model.IntegrityEvent
	warns  []int
}

func (r *recorder) emit(ev model.IntegrityEvent) { r.events = append(r.events, ev) }
func (r *recorder) warn(count int)               { r.warns = append(r.warns, count) }

func newAttachedMonitor(preventTabs bool) (*Monitor, *recorder) {
	rec := &recorder{}
	m := NewMonitor(uuid.New(), preventTabs, rec.emit, rec.warn)
	m.Attach()
	return m, rec
}

func TestMonitorCountsExcursionOnce(t *testing.T) {
	m, rec := newAttachedMonitor(true)
	now := time.Now()

	// One excursion produces several hidden-side signals in practice:
	// visibilitychange fires, then blur, then more visibility flapping.
	m.Handle(model.IntegrityTabHidden, now)
	m.Handle(model.IntegrityWindowBlur, now)
	m.Handle(model.IntegrityTabHidden, now)

	if got := m.TabSwitchCount(); got != 1 {
		t.Errorf("TabSwitchCount() = %d, want 1 for one excursion", got)
	}
	if len(rec.events) != 1 {
		t.Errorf("emitted %d events, want 1", len(rec.events))
	}
	if len(rec.warns) != 1 || rec.warns[0] != 1 {
		t.Errorf("warns = %v, want [1]", rec.warns)
	}

	// Returning and leaving again is a second excursion.
	m.Handle(model.IntegrityTabVisible, now)
	m.Handle(model.IntegrityTabHidden, now)

	if got := m.TabSwitchCount(); got != 2 {
		t.Errorf("TabSwitchCount() = %d, want 2 after second excursion", got)
	}
}

func TestMonitorBlurAndHiddenShareTheEdge(t *testing.T) {
	m, _ := newAttachedMonitor(true)
	now := time.Now()

	m.Handle(model.IntegrityWindowBlur, now)
	m.Handle(model.IntegrityTabHidden, now)
	m.Handle(model.IntegrityWindowFocus, now)
	m.Handle(model.IntegrityWindowBlur, now)

	if got := m.TabSwitchCount(); got != 2 {
		t.Errorf("TabSwitchCount() = %d, want 2", got)
	}
}

func TestMonitorCountingDisabled(t *testing.T) {
	m, rec := newAttachedMonitor(false)
	now := time.Now()

	m.Handle(model.IntegrityTabHidden, now)
	m.Handle(model.IntegrityTabVisible, now)
	m.Handle(model.IntegrityTabHidden, now)

	if got := m.TabSwitchCount(); got != 0 {
		t.Errorf("TabSwitchCount() = %d, want 0 with counting disabled", got)
	}
	if len(rec.warns) != 0 {
		t.Errorf("warned %d times with counting disabled", len(rec.warns))
	}
	// Edge events are still recorded for the audit log.
	if len(rec.events) != 2 {
		t.Errorf("emitted %d events, want 2", len(rec.events))
	}
}

func TestMonitorCameraAdvisoryOnly(t *testing.T) {
	m, rec := newAttachedMonitor(true)
	now := time.Now()

	m.Handle(model.IntegrityCameraLost, now)
	m.Handle(model.IntegrityCameraLost, now) // duplicate collapses

	if m.CameraLive() {
		t.Error("CameraLive() = true after camera loss")
	}
	if got := m.TabSwitchCount(); got != 0 {
		t.Errorf("camera loss affected tab count: %d", got)
	}
	if len(rec.events) != 1 {
		t.Errorf("emitted %d camera events, want 1", len(rec.events))
	}

	m.Handle(model.IntegrityCameraRestored, now)
	if !m.CameraLive() {
		t.Error("CameraLive() = false after restore")
	}
}

func TestMonitorIgnoresSignalsWhileDetached(t *testing.T) {
	rec := &recorder{}
	m := NewMonitor(uuid.New(), true, rec.emit, rec.warn)
	now := time.Now()

	// Never attached: nothing registers.
	m.Handle(model.IntegrityTabHidden, now)
	if m.TabSwitchCount() != 0 || len(rec.events) != 0 {
		t.Error("detached monitor recorded a signal")
	}

	m.Attach()
	m.Handle(model.IntegrityTabHidden, now)
	m.Detach()
	m.Handle(model.IntegrityTabVisible, now)
	m.Handle(model.IntegrityTabHidden, now)

	// Counters survive detachment; signals during it do not.
	if got := m.TabSwitchCount(); got != 1 {
		t.Errorf("TabSwitchCount() = %d, want 1", got)
	}
}

func TestMonitorDetachResetsExcursionEdge(t *testing.T) {
	m, _ := newAttachedMonitor(true)
	now := time.Now()

	m.Handle(model.IntegrityTabHidden, now)
	m.Detach()
	m.Attach()

	// Re-attached mid-excursion: the next hidden signal is a fresh edge.
	m.Handle(model.IntegrityTabHidden, now)
	if got := m.TabSwitchCount(); got != 2 {
		t.Errorf("TabSwitchCount() = %d, want 2", got)
	}
}

func TestMonitorRestoreSeedsCounter(t *testing.T) {
	m, _ := newAttachedMonitor(true)
	m.SetTabSwitchCount(4)

	m.Handle(model.IntegrityTabHidden, time.Now())
	if got := m.TabSwitchCount(); got != 5 {
		t.Errorf("TabSwitchCount() = %d, want 5 after restore", got)
	}
}
