package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorOrange = lipgloss.Color("208")
)

// --- header ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorCyan)

var (
	idleBadge     = lipgloss.NewStyle().Foreground(colorDim).Padding(0, 1)
	runningBadge  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(colorYellow).Padding(0, 1)
	completeBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(colorGreen).Padding(0, 1)
	failedBadge   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(colorRed).Padding(0, 1)
)

var errorStyle = lipgloss.NewStyle().Foreground(colorRed)

// --- phase strip ---

var (
	phaseComplete   = lipgloss.NewStyle().Foreground(colorGreen)
	phaseProcessing = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	phasePending    = lipgloss.NewStyle().Faint(true)
)

// --- step list ---

var (
	stepComplete  = lipgloss.NewStyle().Foreground(colorGreen)
	stepSkipped   = lipgloss.NewStyle().Faint(true)
	stepError     = lipgloss.NewStyle().Foreground(colorRed)
	stepPending   = lipgloss.NewStyle()
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
)

var (
	gateExitStyle     = lipgloss.NewStyle().Foreground(colorOrange)
	gateContinueStyle = lipgloss.NewStyle().Foreground(colorGreen)
)

func styleFor(status runstate.Status) lipgloss.Style {
	switch status {
	case runstate.StatusComplete:
		return stepComplete
	case runstate.StatusSkipped:
		return stepSkipped
	case runstate.StatusError:
		return stepError
	default:
		return stepPending
	}
}

func gateStyleFor(outcome projection.BranchOutcome) lipgloss.Style {
	if outcome == projection.BranchExit {
		return gateExitStyle
	}
	return gateContinueStyle
}

// --- panels ---

var (
	plannerStyle     = lipgloss.NewStyle().Foreground(colorBlue)
	outcomeOffer     = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	outcomeNoOffer   = lipgloss.NewStyle().Bold(true).Foreground(colorOrange)
	outcomePending   = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	detailTitleStyle = lipgloss.NewStyle().Foreground(colorDim)
	spinnerStyle     = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle         = lipgloss.NewStyle().Foreground(colorDim)
	helpStyle        = lipgloss.NewStyle().Faint(true)
)
