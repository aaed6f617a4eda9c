// Package runstate implements the run state machine at the heart of runlens:
// it folds the typed lifecycle events of one pipeline run into a consistent
// snapshot and answers status queries over it. One machine tracks exactly one
// run at a time; renderers read snapshots, never mutate them.
package runstate

import (
	"sort"
	"time"

	"github.com/ormasoftchile/runlens/pkg/events"
)

// Status is the per-step execution status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusSkipped    Status = "skipped"
	StatusError      Status = "error"
)

// OverallStatus is the run-level lifecycle state.
type OverallStatus string

const (
	OverallIdle     OverallStatus = "idle"
	OverallRunning  OverallStatus = "running"
	OverallComplete OverallStatus = "complete"
	OverallFailed   OverallStatus = "failed"
)

// StepResult is the stored outcome of one step. At most one result exists
// per step id per run; a later event for the same id replaces the earlier
// one wholesale, never merges.
type StepResult struct {
	StepID      string         `json:"step_id"`
	DisplayName string         `json:"display_name,omitempty"`
	Status      Status         `json:"status"`
	OrderIndex  int            `json:"order_index,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	Summary     string         `json:"summary,omitempty"`
	Reasoning   string         `json:"reasoning,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
}

// PlannerState tracks the dynamic-planning execution mode. Active is true
// between planner_started and planner_decided; Plan and Reasoning hold the
// planner's decision once made.
type PlannerState struct {
	Active    bool     `json:"active"`
	Plan      []string `json:"plan,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

// Snapshot is the aggregate state of one run. It is created empty on case
// selection, reset on every run start, and retained in full after a terminal
// event for inspection until the next reset.
type Snapshot struct {
	CaseID         string                `json:"case_id,omitempty"`
	RunID          string                `json:"run_id,omitempty"`
	OverallStatus  OverallStatus         `json:"overall_status"`
	ActiveStepID   string                `json:"active_step_id,omitempty"`
	Results        map[string]StepResult `json:"results"`
	Planner        PlannerState          `json:"planner"`
	SelectedStepID string                `json:"selected_step_id,omitempty"`
	Outcome        *events.Outcome       `json:"outcome,omitempty"`
	FailureMessage string                `json:"failure_message,omitempty"`
	TotalSteps     int                   `json:"total_steps,omitempty"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
}

// NewSnapshot returns a fresh idle snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		OverallStatus: OverallIdle,
		Results:       make(map[string]StepResult),
	}
}

// StatusOf answers the per-step status with three-tier precedence: the live
// active step reports processing, otherwise the stored result's status,
// otherwise pending. A stored processing result whose step is no longer
// active is reported as pending, so a step announced and then superseded
// (or lingering from a prior run) never reads as live.
func (s *Snapshot) StatusOf(stepID string) Status {
	if stepID != "" && s.ActiveStepID == stepID {
		return StatusProcessing
	}
	if r, ok := s.Results[stepID]; ok && r.Status != StatusProcessing {
		return r.Status
	}
	return StatusPending
}

// Terminal reports whether the run has reached a terminal state.
func (s *Snapshot) Terminal() bool {
	return s.OverallStatus == OverallComplete || s.OverallStatus == OverallFailed
}

// ResultsInOrder returns the stored results sorted by announced order index,
// ties broken by step id for stable output.
func (s *Snapshot) ResultsInOrder() []StepResult {
	out := make([]StepResult, 0, len(s.Results))
	for _, r := range s.Results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].StepID < out[j].StepID
	})
	return out
}

// Clone returns a deep copy safe to hand to renderers while the machine
// keeps mutating its own snapshot.
func (s *Snapshot) Clone() Snapshot {
	out := *s
	out.Results = make(map[string]StepResult, len(s.Results))
	for id, r := range s.Results {
		r.Outputs = cloneOutputs(r.Outputs)
		out.Results[id] = r
	}
	if s.Planner.Plan != nil {
		out.Planner.Plan = append([]string(nil), s.Planner.Plan...)
	}
	if s.Outcome != nil {
		oc := *s.Outcome
		if s.Outcome.Offer != nil {
			offer := *s.Outcome.Offer
			oc.Offer = &offer
		}
		if s.Outcome.EscalationReasons != nil {
			oc.EscalationReasons = append([]string(nil), s.Outcome.EscalationReasons...)
		}
		out.Outcome = &oc
	}
	return out
}

// cloneOutputs copies one level deep plus nested maps and slices, which is
// as deep as pipeline outputs nest in practice.
func cloneOutputs(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = cloneOutputs(vv)
		case []any:
			out[k] = append([]any(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}
