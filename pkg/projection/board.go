package projection

import (
	"sort"

	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/registry"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// Board is the fully derived view of one run: registry-ordered rows merged
// with stored results, phase rollups and gate outcomes. Renderers consume
// boards; none of them recompute any of this locally.
type Board struct {
	CaseID         string                `json:"case_id,omitempty"`
	RunID          string                `json:"run_id,omitempty"`
	Overall        runstate.OverallStatus `json:"overall_status"`
	Rows           []BoardRow            `json:"rows"`
	Phases         []PhaseRollup         `json:"phases,omitempty"`
	Gates          []GateView            `json:"gates,omitempty"`
	Active         ActiveNode            `json:"active"`
	Planner        runstate.PlannerState `json:"planner"`
	Outcome        *events.Outcome       `json:"outcome,omitempty"`
	FailureMessage string                `json:"failure_message,omitempty"`
	TotalSteps     int                   `json:"total_steps,omitempty"`
}

// BoardRow is one step line on the board.
type BoardRow struct {
	StepID      string                 `json:"step_id"`
	DisplayName string                 `json:"display_name"`
	PhaseID     string                 `json:"phase_id,omitempty"`
	Component   registry.ComponentKind `json:"component,omitempty"`
	Status      runstate.Status        `json:"status"`
	OrderIndex  int                    `json:"order_index,omitempty"`
	DurationMs  int64                  `json:"duration_ms"`
	Summary     string                 `json:"summary,omitempty"`
	Reasoning   string                 `json:"reasoning,omitempty"`
	Outputs     map[string]any         `json:"outputs,omitempty"`
	Registered  bool                   `json:"registered"`
	Selected    bool                   `json:"selected,omitempty"`
}

// PhaseRollup is the aggregate line for one phase.
type PhaseRollup struct {
	PhaseID     string      `json:"phase_id"`
	DisplayName string      `json:"display_name"`
	Status      PhaseStatus `json:"status"`
}

// GateView is the resolved outcome of one declared gate.
type GateView struct {
	StepID  string        `json:"step_id"`
	Label   string        `json:"label"`
	Outcome BranchOutcome `json:"outcome"`
}

// BuildBoard merges a snapshot with the registry: declared steps first in
// document order, then any results for steps the registry does not know,
// sorted by their announced order index.
func BuildBoard(snap *runstate.Snapshot, reg *registry.Registry) *Board {
	b := &Board{
		CaseID:         snap.CaseID,
		RunID:          snap.RunID,
		Overall:        snap.OverallStatus,
		Active:         Active(snap),
		Planner:        snap.Planner,
		Outcome:        snap.Outcome,
		FailureMessage: snap.FailureMessage,
		TotalSteps:     snap.TotalSteps,
	}

	for _, def := range reg.Steps {
		row := BoardRow{
			StepID:      def.ID,
			DisplayName: def.DisplayName,
			PhaseID:     def.PhaseID,
			Component:   def.Component,
			Status:      snap.StatusOf(def.ID),
			Registered:  true,
			Selected:    snap.SelectedStepID == def.ID,
		}
		if r, ok := snap.Results[def.ID]; ok {
			row.OrderIndex = r.OrderIndex
			row.DurationMs = r.DurationMs
			row.Summary = r.Summary
			row.Reasoning = r.Reasoning
			row.Outputs = r.Outputs
		}
		b.Rows = append(b.Rows, row)
	}

	var extras []runstate.StepResult
	for id, r := range snap.Results {
		if _, ok := reg.Step(id); !ok {
			extras = append(extras, r)
		}
	}
	sort.Slice(extras, func(i, j int) bool {
		if extras[i].OrderIndex != extras[j].OrderIndex {
			return extras[i].OrderIndex < extras[j].OrderIndex
		}
		return extras[i].StepID < extras[j].StepID
	})
	for _, r := range extras {
		name := r.DisplayName
		if name == "" {
			name = r.StepID
		}
		b.Rows = append(b.Rows, BoardRow{
			StepID:      r.StepID,
			DisplayName: name,
			Status:      snap.StatusOf(r.StepID),
			OrderIndex:  r.OrderIndex,
			DurationMs:  r.DurationMs,
			Summary:     r.Summary,
			Reasoning:   r.Reasoning,
			Outputs:     r.Outputs,
			Selected:    snap.SelectedStepID == r.StepID,
		})
	}

	for _, p := range reg.Phases {
		b.Phases = append(b.Phases, PhaseRollup{
			PhaseID:     p.ID,
			DisplayName: p.DisplayName,
			Status:      Phase(snap, reg, p.ID),
		})
	}

	for _, g := range reg.Gates {
		b.Gates = append(b.Gates, GateView{
			StepID:  g.StepID,
			Label:   g.Label,
			Outcome: Branch(snap, reg, g.StepID),
		})
	}

	return b
}

// Row returns the board row for a step id.
func (b *Board) Row(stepID string) (*BoardRow, bool) {
	for i := range b.Rows {
		if b.Rows[i].StepID == stepID {
			return &b.Rows[i], true
		}
	}
	return nil, false
}
