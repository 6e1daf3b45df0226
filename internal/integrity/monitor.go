// Package integrity observes proctoring signals for an active exam session.
// Proctoring here is advisory: the monitor records and warns but never locks
// or submits the exam.
package integrity

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
)

// Monitor tracks one session's integrity state. It is attached once
// verification completes and the exam view is active, and detached on exam
// completion or navigation away.
//
// Tab-switch counting is edge-triggered: a hidden/blurred excursion counts
// once no matter how many hidden-side signals arrive before the candidate
// returns, and only when the test's prevent-tab-switching setting is on.
type Monitor struct {
	mu sync.Mutex

	invitationID uuid.UUID
	preventTabs  bool

	active      bool
	hidden      bool
	cameraLive  bool
	tabSwitches int

	// emit receives every edge event for durable logging. warn notifies the
	// candidate when a tab switch is counted. Either may be nil.
	emit func(model.IntegrityEvent)
	warn func(count int)
}

// NewMonitor creates a detached monitor.
func NewMonitor(invitationID uuid.UUID, preventTabSwitching bool, emit func(model.IntegrityEvent), warn func(count int)) *Monitor {
	return &Monitor{
		invitationID: invitationID,
		preventTabs:  preventTabSwitching,
		cameraLive:   true,
		emit:         emit,
		warn:         warn,
	}
}

// Attach starts observing. Signals arriving while detached are ignored.
func (m *Monitor) Attach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
}

// Detach stops observing and resets the excursion edge so a later re-attach
// starts clean. The recorded counters survive detachment.
func (m *Monitor) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.hidden = false
}

// Active reports whether the monitor is currently attached.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// TabSwitchCount returns the number of counted hidden excursions.
func (m *Monitor) TabSwitchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tabSwitches
}

// CameraLive reports whether the camera stream is currently flagged live.
func (m *Monitor) CameraLive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cameraLive
}

// SetTabSwitchCount seeds the counter when restoring a session.
func (m *Monitor) SetTabSwitchCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabSwitches = n
}

// Handle processes one raw signal from the exam page. Duplicate hidden-side
// signals inside a single excursion are collapsed; only edges are emitted
// and counted. Camera loss is flagged but never interrupts the exam.
func (m *Monitor) Handle(eventType model.IntegrityEventType, at time.Time) {
	m.mu.Lock()

	if !m.active {
		m.mu.Unlock()
		return
	}

	var emit *model.IntegrityEvent
	var warnCount int

	switch eventType {
	case model.IntegrityTabHidden, model.IntegrityWindowBlur:
		if !m.hidden {
			m.hidden = true
			if m.preventTabs {
				m.tabSwitches++
				warnCount = m.tabSwitches
			}
			emit = &model.IntegrityEvent{InvitationID: m.invitationID, Type: eventType, OccurredAt: at}
		}

	case model.IntegrityTabVisible, model.IntegrityWindowFocus:
		m.hidden = false

	case model.IntegrityCameraLost:
		if m.cameraLive {
			m.cameraLive = false
			emit = &model.IntegrityEvent{InvitationID: m.invitationID, Type: eventType, OccurredAt: at}
		}

	case model.IntegrityCameraRestored:
		m.cameraLive = true
	}

	emitFn := m.emit
	warnFn := m.warn
	m.mu.Unlock()

	if emit != nil && emitFn != nil {
		emitFn(*emit)
	}
	if warnCount > 0 && warnFn != nil {
		warnFn(warnCount)
	}
}
