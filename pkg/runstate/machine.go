package runstate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ormasoftchile/runlens/pkg/events"
)

var (
	// ErrStaleRun marks an event whose run id does not match the run the
	// machine is tracking. Stale events are discarded, never applied.
	ErrStaleRun = errors.New("event for stale run discarded")

	// ErrNotRunning marks a lifecycle event that arrived while no run is in
	// progress, which the stream contract forbids.
	ErrNotRunning = errors.New("no run in progress")
)

// Machine folds run events into a snapshot. Events are applied one at a
// time; each application is an atomic snapshot update guarded by a mutex,
// so readers via Snapshot never observe a half-applied event.
type Machine struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewMachine returns a machine with a fresh idle snapshot.
func NewMachine() *Machine {
	return &Machine{snap: NewSnapshot()}
}

// Begin resets the machine for a new run: all results, the planner state,
// the outcome and the active step are cleared regardless of what the prior
// run left behind. The machine transitions to running immediately so the
// stream's first events have a run to land in.
func (m *Machine) Begin(caseID, runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beginLocked(caseID, runID, time.Now().UTC())
}

func (m *Machine) beginLocked(caseID, runID string, at time.Time) {
	m.snap = NewSnapshot()
	m.snap.CaseID = caseID
	m.snap.RunID = runID
	m.snap.OverallStatus = OverallRunning
	m.snap.StartedAt = at
}

// Reset discards the current run and returns the machine to idle. Used on
// case selection and before replacing a subscription.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = NewSnapshot()
}

// Apply folds one event into the snapshot. Malformed events are rejected
// before any field is touched; events for a different run id return
// ErrStaleRun; non-start events outside a running run return ErrNotRunning.
// On error the snapshot is exactly as it was before the call.
func (m *Machine) Apply(evt *events.Event) error {
	if evt == nil {
		return &events.MalformedEventError{Msg: "nil event"}
	}
	if err := evt.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snap.RunID != "" && evt.RunID != m.snap.RunID {
		return fmt.Errorf("run %s: %w", evt.RunID, ErrStaleRun)
	}

	if evt.Type == events.KindRunStarted {
		m.beginLocked(evt.CaseID, evt.RunID, eventTime(evt))
		return nil
	}

	if m.snap.OverallStatus != OverallRunning {
		return fmt.Errorf("apply %s: %w", evt.Type, ErrNotRunning)
	}

	switch evt.Type {
	case events.KindPlannerStarted:
		m.snap.Planner.Active = true

	case events.KindPlannerDecided:
		m.snap.Planner = PlannerState{
			Plan:      append([]string(nil), evt.Plan...),
			Reasoning: evt.Reasoning,
		}

	case events.KindStepStarted:
		m.snap.ActiveStepID = evt.StepID
		if evt.TotalSteps > 0 {
			m.snap.TotalSteps = evt.TotalSteps
		}
		if _, exists := m.snap.Results[evt.StepID]; !exists {
			m.snap.Results[evt.StepID] = StepResult{
				StepID:      evt.StepID,
				DisplayName: evt.DisplayName,
				Status:      StatusProcessing,
				OrderIndex:  evt.OrderIndex,
			}
		}

	case events.KindStepCompleted:
		m.snap.Results[evt.StepID] = StepResult{
			StepID:      evt.StepID,
			DisplayName: evt.DisplayName,
			Status:      StatusComplete,
			OrderIndex:  evt.OrderIndex,
			DurationMs:  evt.DurationMs,
			Summary:     evt.Summary,
			Reasoning:   evt.Reasoning,
			Outputs:     cloneOutputs(evt.Outputs),
		}
		if m.snap.ActiveStepID == evt.StepID {
			m.snap.ActiveStepID = ""
		}
		m.snap.SelectedStepID = evt.StepID

	case events.KindStepSkipped:
		// Skips replace any stored result but deliberately leave both the
		// active step and the selection untouched.
		m.snap.Results[evt.StepID] = StepResult{
			StepID:      evt.StepID,
			DisplayName: evt.DisplayName,
			Status:      StatusSkipped,
			OrderIndex:  evt.OrderIndex,
			DurationMs:  0,
			Summary:     evt.Reason,
			Reasoning:   "Skipped: " + evt.Reason,
		}

	case events.KindRunCompleted:
		m.snap.Outcome = evt.Outcome
		m.snap.ActiveStepID = ""
		m.snap.OverallStatus = OverallComplete
		m.snap.FinishedAt = eventTime(evt)

	case events.KindRunFailed:
		m.snap.FailureMessage = evt.Message
		m.snap.ActiveStepID = ""
		m.snap.Planner.Active = false
		m.snap.OverallStatus = OverallFailed
		m.snap.FinishedAt = eventTime(evt)
	}

	return nil
}

// ForceFail transitions a running machine to failed with the given message,
// for externally detected conditions such as a dropped stream or a timeout.
// Stored results are kept visible. No-op unless a run is in progress.
func (m *Machine) ForceFail(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.OverallStatus != OverallRunning {
		return
	}
	m.snap.FailureMessage = message
	m.snap.ActiveStepID = ""
	m.snap.Planner.Active = false
	m.snap.OverallStatus = OverallFailed
	m.snap.FinishedAt = time.Now().UTC()
}

// SelectStep records an explicit UI focus change. Unknown ids are accepted;
// selection has no effect on run semantics.
func (m *Machine) SelectStep(stepID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.SelectedStepID = stepID
}

// StatusOf answers the three-tier step status against the live snapshot.
func (m *Machine) StatusOf(stepID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.StatusOf(stepID)
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

// RunID returns the id of the run the machine is tracking, empty when idle.
func (m *Machine) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.RunID
}

func eventTime(evt *events.Event) time.Time {
	if !evt.Timestamp.IsZero() {
		return evt.Timestamp
	}
	return time.Now().UTC()
}
