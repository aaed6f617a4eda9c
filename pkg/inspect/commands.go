package inspect

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/runlens/pkg/diagram"
	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

func (s *Session) handleStatus() {
	snap := s.machine.Snapshot()
	fmt.Fprintf(s.output, "case:    %s\n", snap.CaseID)
	fmt.Fprintf(s.output, "run:     %s\n", snap.RunID)
	fmt.Fprintf(s.output, "status:  %s\n", snap.OverallStatus)
	if snap.ActiveStepID != "" {
		fmt.Fprintf(s.output, "active:  %s\n", snap.ActiveStepID)
	}
	if snap.SelectedStepID != "" {
		fmt.Fprintf(s.output, "selected: %s\n", snap.SelectedStepID)
	}
	if snap.FailureMessage != "" {
		fmt.Fprintf(s.output, "failure: %s\n", snap.FailureMessage)
	}
	fmt.Fprintf(s.output, "results: %d of %d steps\n", len(snap.Results), len(s.reg.Steps))
}

func (s *Session) handleSteps() {
	b := s.board()
	for _, row := range b.Rows {
		marker := " "
		if row.Selected {
			marker = "▸"
		}
		line := fmt.Sprintf("%s %s %-28s %-10s", marker, statusGlyph(row.Status), row.DisplayName, row.Status)
		if row.DurationMs > 0 {
			line += fmt.Sprintf(" %5dms", row.DurationMs)
		}
		if row.Summary != "" {
			line += "  " + truncate(row.Summary, 44)
		}
		fmt.Fprintln(s.output, line)
	}
}

func (s *Session) handleStep(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintf(s.output, "Usage: step <id>\n")
		return
	}
	id := parts[1]
	snap := s.machine.Snapshot()

	name := s.reg.DisplayName(id)
	fmt.Fprintf(s.output, "%s (%s) — %s\n", name, id, snap.StatusOf(id))
	if def, ok := s.reg.Step(id); ok {
		fmt.Fprintf(s.output, "phase:     %s\n", def.PhaseID)
		fmt.Fprintf(s.output, "component: %s\n", def.Component)
	}

	r, ok := snap.Results[id]
	if !ok {
		fmt.Fprintf(s.output, "no stored result\n")
		return
	}
	fmt.Fprintf(s.output, "order:     %d\n", r.OrderIndex)
	fmt.Fprintf(s.output, "duration:  %dms\n", r.DurationMs)
	if r.Summary != "" {
		fmt.Fprintf(s.output, "summary:   %s\n", r.Summary)
	}
	if r.Reasoning != "" {
		fmt.Fprintf(s.output, "reasoning:\n%s\n", indent(r.Reasoning, "  "))
	}
	for k, v := range r.Outputs {
		fmt.Fprintf(s.output, "output %s = %v\n", k, v)
	}
}

func (s *Session) handlePhase(parts []string) {
	snap := s.machine.Snapshot()
	if len(parts) >= 2 {
		s.printPhase(&snap, parts[1])
		return
	}
	for _, p := range s.reg.Phases {
		s.printPhase(&snap, p.ID)
	}
}

func (s *Session) printPhase(snap *runstate.Snapshot, phaseID string) {
	p, ok := s.reg.Phase(phaseID)
	if !ok {
		fmt.Fprintf(s.output, "Unknown phase: %q\n", phaseID)
		return
	}
	status := projection.Phase(snap, s.reg, phaseID)
	fmt.Fprintf(s.output, "%-14s %s\n", p.DisplayName, status)
	for _, m := range s.reg.StepsInPhase(phaseID) {
		fmt.Fprintf(s.output, "  %s %s\n", statusGlyph(snap.StatusOf(m.ID)), m.DisplayName)
	}
}

func (s *Session) handleBranches() {
	b := s.board()
	if len(b.Gates) == 0 {
		fmt.Fprintf(s.output, "No gates declared in the registry.\n")
		return
	}
	for _, g := range b.Gates {
		fmt.Fprintf(s.output, "%-12s at %-16s %s\n", g.Label, g.StepID, g.Outcome)
	}
}

func (s *Session) handleOutcome() {
	snap := s.machine.Snapshot()
	if snap.Outcome == nil {
		fmt.Fprintf(s.output, "No terminal outcome yet.\n")
		return
	}
	out := snap.Outcome
	switch {
	case out.PendingApproval:
		fmt.Fprintf(s.output, "⏳ pending approval (%s)\n", out.ApprovalRequestID)
		for _, r := range out.EscalationReasons {
			fmt.Fprintf(s.output, "  escalation: %s\n", r)
		}
	case out.ShouldOffer:
		fmt.Fprintf(s.output, "✓ offer\n")
	default:
		fmt.Fprintf(s.output, "✗ no offer — %s\n", firstNonEmpty(out.SuppressionReason, out.Reason))
	}
	if out.Offer != nil {
		fmt.Fprintf(s.output, "  %s: %s (%.0f%% off, expires %s)\n",
			out.Offer.OfferID, out.Offer.Headline, out.Offer.DiscountPct, out.Offer.ExpiresAt)
	}
}

func (s *Session) handlePlanner() {
	snap := s.machine.Snapshot()
	if snap.Planner.Active {
		fmt.Fprintf(s.output, "planner is deliberating…\n")
		return
	}
	if len(snap.Planner.Plan) == 0 {
		fmt.Fprintf(s.output, "No planner activity (fixed-sequence run).\n")
		return
	}
	fmt.Fprintf(s.output, "plan: %s\n", strings.Join(snap.Planner.Plan, " → "))
	if snap.Planner.Reasoning != "" {
		fmt.Fprintf(s.output, "reasoning:\n%s\n", indent(snap.Planner.Reasoning, "  "))
	}
}

func (s *Session) handleSelect(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintf(s.output, "Usage: select <id>\n")
		return
	}
	s.machine.SelectStep(parts[1])
	fmt.Fprintf(s.output, "selected %s\n", parts[1])
}

func (s *Session) handleDiagram(parts []string) {
	format := diagram.FormatASCII
	if len(parts) >= 2 {
		format = diagram.Format(parts[1])
	}
	out, err := diagram.Generate(s.board(), format)
	if err != nil {
		fmt.Fprintf(s.output, "Error: %v\n", err)
		return
	}
	fmt.Fprint(s.output, out)
}

func (s *Session) handleHelp() {
	fmt.Fprint(s.output, `Commands:
  status           run-level summary
  steps            the full step board
  step <id>        detail for one step (summary, reasoning, outputs)
  phase [id]       phase rollup(s)
  branches         gate outcomes (exit / continue / undetermined)
  outcome          the terminal decision record
  planner          dynamic-planning state, if the run used it
  select <id>      move the UI focus to a step
  diagram [fmt]    render the pipeline (ascii or mermaid)
  help             this text
  quit             leave the inspector
`)
}

// --- helpers ---

func statusGlyph(status runstate.Status) string {
	switch status {
	case runstate.StatusComplete:
		return "✓"
	case runstate.StatusProcessing:
		return "◉"
	case runstate.StatusSkipped:
		return "⊘"
	case runstate.StatusError:
		return "✗"
	default:
		return "○"
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
