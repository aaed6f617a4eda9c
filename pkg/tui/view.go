package tui

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// View implements tea.Model.
func (m Model) View() string {
	b := m.board()
	var out strings.Builder

	out.WriteString(m.renderHeader(b))
	out.WriteString("\n")
	out.WriteString(m.renderPhaseStrip(b))
	out.WriteString("\n\n")
	out.WriteString(m.renderSteps(b))

	if line := m.renderPlanner(b); line != "" {
		out.WriteString("\n" + line + "\n")
	}
	if panel := m.renderOutcome(b); panel != "" {
		out.WriteString("\n" + panel + "\n")
	}
	if m.detail {
		out.WriteString("\n" + detailTitleStyle.Render("─── detail ───") + "\n")
		out.WriteString(m.viewport.View() + "\n")
	}

	out.WriteString("\n" + helpStyle.Render("  ↑/↓ select · enter detail · r rerun · q quit"))
	return out.String()
}

func (m Model) renderHeader(b *projection.Board) string {
	title := headerStyle.Render("runlens · " + b.CaseID)

	var badge string
	switch b.Overall {
	case runstate.OverallRunning:
		badge = m.spinner.View() + runningBadge.Render("running")
	case runstate.OverallComplete:
		badge = completeBadge.Render("complete")
	case runstate.OverallFailed:
		badge = failedBadge.Render("failed")
	default:
		badge = idleBadge.Render("idle")
	}

	line := title + "  " + badge
	if m.err != nil {
		line += "  " + errorStyle.Render(m.err.Error())
	} else if b.FailureMessage != "" {
		line += "  " + errorStyle.Render(b.FailureMessage)
	}
	return line
}

func (m Model) renderPhaseStrip(b *projection.Board) string {
	if len(b.Phases) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.Phases))
	for _, p := range b.Phases {
		label := fmt.Sprintf(" %s %s ", phaseGlyph(p.Status), p.DisplayName)
		switch p.Status {
		case projection.PhaseComplete:
			parts = append(parts, phaseComplete.Render(label))
		case projection.PhaseProcessing:
			parts = append(parts, phaseProcessing.Render(label))
		default:
			parts = append(parts, phasePending.Render(label))
		}
	}
	return "  " + strings.Join(parts, dimStyle.Render(" → "))
}

func (m Model) renderSteps(b *projection.Board) string {
	var out strings.Builder
	for i, row := range b.Rows {
		glyph := m.stepGlyph(row.Status)
		line := fmt.Sprintf("%s %-28s", glyph, row.DisplayName)
		if row.DurationMs > 0 {
			line += fmt.Sprintf(" %5dms", row.DurationMs)
		}
		if row.Summary != "" {
			line += "  " + dimStyle.Render(truncate(row.Summary, summaryCols(m.width)))
		}
		if g := gateView(b, row.StepID); g != nil && g.Outcome != projection.BranchUndetermined {
			line += "  " + gateStyleFor(g.Outcome).Render("◇ "+g.Label+" → "+string(g.Outcome))
		}

		if i == m.cursor {
			out.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			out.WriteString("  " + styleFor(row.Status).Render(line))
		}
		out.WriteString("\n")
	}
	return out.String()
}

func (m Model) renderPlanner(b *projection.Board) string {
	if b.Planner.Active {
		return "  " + plannerStyle.Render(m.spinner.View()+" planner is choosing the step sequence…")
	}
	if len(b.Planner.Plan) > 0 {
		return "  " + plannerStyle.Render("plan: "+strings.Join(b.Planner.Plan, " → "))
	}
	return ""
}

func (m Model) renderOutcome(b *projection.Board) string {
	if b.Outcome == nil {
		return ""
	}
	out := b.Outcome
	switch {
	case out.PendingApproval:
		return outcomePending.Render(fmt.Sprintf("  ⏳ pending approval (%s)", out.ApprovalRequestID))
	case out.ShouldOffer:
		line := "  ✓ offer"
		if out.Offer != nil {
			line += fmt.Sprintf(": %s — %s (%.0f%% off)", out.Offer.OfferID, out.Offer.Headline, out.Offer.DiscountPct)
		}
		return outcomeOffer.Render(line)
	default:
		reason := out.SuppressionReason
		if reason == "" {
			reason = out.Reason
		}
		return outcomeNoOffer.Render("  ✗ no offer — " + reason)
	}
}

// detailContent renders the selected step's reasoning and outputs.
func (m Model) detailContent() string {
	b := m.board()
	if m.cursor >= len(b.Rows) {
		return ""
	}
	row := b.Rows[m.cursor]

	var out strings.Builder
	fmt.Fprintf(&out, "%s %s — %s\n", m.stepGlyph(row.Status), row.DisplayName, row.Status)
	if row.Reasoning != "" {
		out.WriteString(renderMarkdown(row.Reasoning) + "\n")
	}
	for k, v := range row.Outputs {
		fmt.Fprintf(&out, "%s = %v\n", k, v)
	}
	return out.String()
}

func (m Model) stepGlyph(status runstate.Status) string {
	if status == runstate.StatusProcessing {
		return m.spinner.View()
	}
	switch status {
	case runstate.StatusComplete:
		return "✓"
	case runstate.StatusSkipped:
		return "⊘"
	case runstate.StatusError:
		return "✗"
	default:
		return "○"
	}
}

func phaseGlyph(status projection.PhaseStatus) string {
	switch status {
	case projection.PhaseComplete:
		return "✓"
	case projection.PhaseProcessing:
		return "◉"
	default:
		return "○"
	}
}

func gateView(b *projection.Board, stepID string) *projection.GateView {
	for i := range b.Gates {
		if b.Gates[i].StepID == stepID {
			return &b.Gates[i]
		}
	}
	return nil
}

func summaryCols(width int) int {
	if width <= 0 {
		return 40
	}
	cols := width - 50
	if cols < 16 {
		cols = 16
	}
	return cols
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
