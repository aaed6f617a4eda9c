// Package projection derives display-level facts from a run snapshot: phase
// rollups, gate branch outcomes and the active node. Everything here is a
// pure function recomputed on read, so no renderer can drift out of sync
// with the state machine and no cache can go stale.
package projection

import (
	"github.com/ormasoftchile/runlens/pkg/registry"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// PhaseStatus is the coarse aggregate status of a phase.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseProcessing PhaseStatus = "processing"
	PhaseComplete   PhaseStatus = "complete"
)

// Phase rolls up the status of one phase's declared members: complete when
// every member completed, processing when the active step sits inside the
// phase or some but not all members completed, pending otherwise.
func Phase(snap *runstate.Snapshot, reg *registry.Registry, phaseID string) PhaseStatus {
	members := reg.StepsInPhase(phaseID)
	if len(members) == 0 {
		return PhasePending
	}

	completed := 0
	activeInside := false
	for _, m := range members {
		switch snap.StatusOf(m.ID) {
		case runstate.StatusComplete:
			completed++
		case runstate.StatusProcessing:
			activeInside = true
		}
	}

	switch {
	case completed == len(members):
		return PhaseComplete
	case activeInside || completed > 0:
		return PhaseProcessing
	default:
		return PhasePending
	}
}

// BranchOutcome tells which way a gated fork went.
type BranchOutcome string

const (
	BranchUndetermined BranchOutcome = "undetermined"
	BranchExit         BranchOutcome = "exit"
	BranchContinue     BranchOutcome = "continue"
)

// Branch evaluates the registry-declared gate on stepID. Undetermined while
// the gating step has not completed, and also when no gate is declared or
// its expression does not compile.
func Branch(snap *runstate.Snapshot, reg *registry.Registry, stepID string) BranchOutcome {
	gate, ok := reg.GateFor(stepID)
	if !ok {
		return BranchUndetermined
	}
	pred, err := CompilePredicate(gate.ExitWhen)
	if err != nil {
		return BranchUndetermined
	}
	return BranchWith(snap, stepID, pred)
}

// BranchWith evaluates an already-compiled exit predicate against the
// gating step's stored result.
func BranchWith(snap *runstate.Snapshot, stepID string, pred Predicate) BranchOutcome {
	if snap.StatusOf(stepID) != runstate.StatusComplete {
		return BranchUndetermined
	}
	if pred(snap.Results[stepID]) {
		return BranchExit
	}
	return BranchContinue
}

// ActiveKind discriminates what the pipeline is currently doing.
type ActiveKind string

const (
	ActiveNone    ActiveKind = "none"
	ActiveStep    ActiveKind = "step"
	ActivePlanner ActiveKind = "planner"
)

// ActiveNode identifies the element to highlight as live.
type ActiveNode struct {
	Kind   ActiveKind `json:"kind"`
	StepID string     `json:"step_id,omitempty"`
}

// Active returns the live node: the active step when one is announced, the
// synthetic planner marker while the planner deliberates, none otherwise.
func Active(snap *runstate.Snapshot) ActiveNode {
	if snap.ActiveStepID != "" {
		return ActiveNode{Kind: ActiveStep, StepID: snap.ActiveStepID}
	}
	if snap.Planner.Active {
		return ActiveNode{Kind: ActivePlanner}
	}
	return ActiveNode{Kind: ActiveNone}
}
