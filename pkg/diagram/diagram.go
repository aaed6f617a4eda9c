// Package diagram renders a run board as a pipeline flow diagram.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// maxSummaryChars bounds the summary line inside a step box.
const maxSummaryChars = 48

// Generate produces a diagram string from a run board.
func Generate(b *projection.Board, format Format) (string, error) {
	if b == nil {
		return "", fmt.Errorf("nil board")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(b), nil
	case FormatASCII:
		return generateASCII(b), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(b *projection.Board) string {
	var out strings.Builder
	out.WriteString("flowchart TD\n")

	if len(b.Rows) == 0 {
		return out.String()
	}

	out.WriteString("    START([Start]) --> " + safeID(b.Rows[0].StepID) + "\n")

	for i, row := range b.Rows {
		out.WriteString("    " + nodeDefinition(row) + "\n")

		if gate := gateFor(b, row.StepID); gate != nil {
			gateID := safeID(row.StepID + "_gate")
			out.WriteString(fmt.Sprintf("    %s --> %s{%q}\n", safeID(row.StepID), gateID, gate.Label))
			out.WriteString(fmt.Sprintf("    %s -->|\"exit\"| %s\n", gateID, safeID(row.StepID+"_exit")))
			out.WriteString(fmt.Sprintf("    %s([No Offer])\n", safeID(row.StepID+"_exit")))
			if i < len(b.Rows)-1 {
				out.WriteString(fmt.Sprintf("    %s -->|\"continue\"| %s\n", gateID, safeID(b.Rows[i+1].StepID)))
			}
			if style := gateStyle(gate.Outcome); style != "" {
				out.WriteString(fmt.Sprintf("    style %s %s\n", gateID, style))
			}
		} else if i < len(b.Rows)-1 {
			out.WriteString(fmt.Sprintf("    %s --> %s\n", safeID(row.StepID), safeID(b.Rows[i+1].StepID)))
		}

		if style := statusStyle(row.Status); style != "" {
			out.WriteString(fmt.Sprintf("    style %s %s\n", safeID(row.StepID), style))
		}
	}

	if b.Outcome != nil {
		out.WriteString("    OUTCOME([" + outcomeLabel(b) + "])\n")
		out.WriteString(fmt.Sprintf("    %s --> OUTCOME\n", safeID(b.Rows[len(b.Rows)-1].StepID)))
	}

	return out.String()
}

func nodeDefinition(row projection.BoardRow) string {
	id := safeID(row.StepID)
	title := row.DisplayName
	if title == "" {
		title = row.StepID
	}
	label := statusGlyph(row.Status) + " " + escMermaid(title)

	// Component kinds get distinct shapes: decision agents a hexagon,
	// generative calls a parallelogram, rule workflows a plain box.
	switch row.Component {
	case "decision-agent":
		return fmt.Sprintf(`%s{{"%s"}}`, id, label)
	case "generative-call":
		return fmt.Sprintf(`%s[/"%s"/]`, id, label)
	default:
		return fmt.Sprintf(`%s["%s"]`, id, label)
	}
}

func statusStyle(status runstate.Status) string {
	switch status {
	case runstate.StatusComplete:
		return "fill:#0d6,stroke:#0a5,color:#fff"
	case runstate.StatusProcessing:
		return "fill:#07a,stroke:#058,color:#fff"
	case runstate.StatusSkipped:
		return "fill:#777,stroke:#555,color:#fff"
	case runstate.StatusError:
		return "fill:#e33,stroke:#c11,color:#fff"
	default:
		return ""
	}
}

func gateStyle(outcome projection.BranchOutcome) string {
	switch outcome {
	case projection.BranchExit:
		return "fill:#e60,stroke:#c40,color:#fff"
	case projection.BranchContinue:
		return "fill:#0d6,stroke:#0a5,color:#fff"
	default:
		return ""
	}
}

func outcomeLabel(b *projection.Board) string {
	switch {
	case b.Outcome == nil:
		return "…"
	case b.Outcome.PendingApproval:
		return "⏳ Pending Approval"
	case b.Outcome.ShouldOffer:
		return "✓ Offer"
	default:
		return "✗ No Offer"
	}
}

// --- ASCII ---

func generateASCII(b *projection.Board) string {
	var out strings.Builder

	name := b.CaseID
	if name == "" {
		name = "pipeline"
	}
	title := fmt.Sprintf("%s · %s", name, b.Overall)

	if len(b.Rows) == 0 {
		out.WriteString(title + " (empty)\n")
		return out.String()
	}

	const indent = 4
	boxWidth := computeUniformBoxWidth(b, title)
	connCol := indent + 1 + boxWidth/2
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	// Header — same width as body boxes, title centered.
	mid := boxWidth / 2
	out.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	out.WriteString(pad + "║" + centerPad(title, boxWidth) + "║\n")
	out.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	out.WriteString(connPad + "│\n")

	lastPhase := ""
	for i, row := range b.Rows {
		if row.PhaseID != "" && row.PhaseID != lastPhase {
			lastPhase = row.PhaseID
			out.WriteString(pad + "── " + phaseHeading(b, row.PhaseID) + "\n")
		}

		writeStepBox(&out, row, indent, boxWidth)

		if gate := gateFor(b, row.StepID); gate != nil {
			writeGateDiamond(&out, gate, connCol)
		}
		if i < len(b.Rows)-1 || b.Outcome != nil {
			out.WriteString(connPad + "│\n")
		}
	}

	if b.Outcome != nil {
		out.WriteString(strings.Repeat(" ", connCol-2) + outcomeLabel(b))
		if r := b.Outcome.Reason; r != "" {
			out.WriteString(" — " + truncate(r, 48))
		}
		out.WriteString("\n")
	}
	if b.FailureMessage != "" {
		out.WriteString(strings.Repeat(" ", connCol-2) + "✗ " + truncate(b.FailureMessage, 60) + "\n")
	}

	return out.String()
}

func phaseHeading(b *projection.Board, phaseID string) string {
	for _, p := range b.Phases {
		if p.PhaseID == phaseID {
			return fmt.Sprintf("%s [%s]", p.DisplayName, p.Status)
		}
	}
	return phaseID
}

func writeStepBox(out *strings.Builder, row projection.BoardRow, indent, boxWidth int) {
	content := stepContent(row)
	contentWidth := runewidth.StringWidth(content)

	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	out.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	out.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-contentWidth) + "│\n")
	if row.Summary != "" {
		sumLine := " → " + truncate(row.Summary, maxSummaryChars) + " "
		sumWidth := runewidth.StringWidth(sumLine)
		out.WriteString(pad + "│" + sumLine + strings.Repeat(" ", boxWidth-sumWidth) + "│\n")
	}
	out.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func writeGateDiamond(out *strings.Builder, gate *projection.GateView, connCol int) {
	label := fmt.Sprintf(" ◇ %s %s ", gate.Label, branchAnnotation(gate.Outcome))
	half := runewidth.StringWidth(label) / 2
	pad := connCol - half
	if pad < 0 {
		pad = 0
	}
	out.WriteString(strings.Repeat(" ", connCol) + "│\n")
	out.WriteString(strings.Repeat(" ", pad) + label + "\n")
}

func branchAnnotation(outcome projection.BranchOutcome) string {
	switch outcome {
	case projection.BranchExit:
		return "→ exit"
	case projection.BranchContinue:
		return "→ continue"
	default:
		return "(undetermined)"
	}
}

func stepContent(row projection.BoardRow) string {
	label := row.DisplayName
	if label == "" {
		label = row.StepID
	}
	content := fmt.Sprintf(" %s %s ", statusGlyph(row.Status), label)
	if row.DurationMs > 0 {
		content += fmt.Sprintf("(%dms) ", row.DurationMs)
	}
	return content
}

// computeUniformBoxWidth returns the widest interior width needed across
// all step boxes and the header title, so every connector aligns.
func computeUniformBoxWidth(b *projection.Board, title string) int {
	w := 24

	if tw := runewidth.StringWidth(title) + 4; tw > w {
		w = tw
	}
	for _, row := range b.Rows {
		if cw := runewidth.StringWidth(stepContent(row)); cw > w {
			w = cw
		}
		if row.Summary != "" {
			sumLine := " → " + truncate(row.Summary, maxSummaryChars) + " "
			if sw := runewidth.StringWidth(sumLine); sw > w {
				w = sw
			}
		}
	}
	return w
}

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

func gateFor(b *projection.Board, stepID string) *projection.GateView {
	for i := range b.Gates {
		if b.Gates[i].StepID == stepID {
			return &b.Gates[i]
		}
	}
	return nil
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
