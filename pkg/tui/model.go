// Package tui implements the live terminal watch UI: it subscribes to a
// run through a monitor (or replays a recorded trace), folds every apply
// into a fresh board, and renders the pipeline as it progresses.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/launcher"
	"github.com/ormasoftchile/runlens/pkg/monitor"
	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/registry"
	"github.com/ormasoftchile/runlens/pkg/runstate"
	"github.com/ormasoftchile/runlens/pkg/trace"
)

// Config selects the event source for the watch app: a live launcher run
// (Launcher + CaseID) or a recorded trace (Events + Speed).
type Config struct {
	Registry *registry.Registry

	// live source
	Launcher *launcher.Launcher
	CaseID   string
	Recorder *trace.Recorder

	// replay source
	Events []*events.Event
	Speed  float64
}

// keyMap defines the watch UI key bindings.
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Rerun  key.Binding
	Detail key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k", "shift+tab"), key.WithHelp("↑/k", "previous step")),
	Down:   key.NewBinding(key.WithKeys("down", "j", "tab"), key.WithHelp("↓/j", "next step")),
	Rerun:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rerun case")),
	Detail: key.NewBinding(key.WithKeys("enter", "d"), key.WithHelp("enter", "toggle detail")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the Bubble Tea model for runlens watch.
type Model struct {
	reg    *registry.Registry
	caseID string

	mon     *monitor.Monitor   // live source, nil during replay
	player  *trace.Player      // replay source, nil during live runs
	machine *runstate.Machine  // replay machine; live runs use mon's

	snap    runstate.Snapshot
	cursor  int
	detail  bool
	running bool
	err     error

	updates chan runstate.Snapshot
	ctx     context.Context
	cancel  context.CancelFunc

	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
}

// --- messages ---

// snapshotMsg delivers the state after one event was applied.
type snapshotMsg struct {
	snap runstate.Snapshot
}

// runDoneMsg signals the watch/replay goroutine finished.
type runDoneMsg struct {
	snap runstate.Snapshot
	err  error
}

// New creates a watch model from a source config.
func New(cfg Config) Model {
	updates := make(chan runstate.Snapshot, 64)
	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		reg:      cfg.Registry,
		caseID:   cfg.CaseID,
		snap:     runstate.NewSnapshot(),
		updates:  updates,
		ctx:      ctx,
		cancel:   cancel,
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}

	if cfg.Launcher != nil {
		opts := []monitor.Option{
			monitor.WithOnApply(func(snap runstate.Snapshot, _ *events.Event) {
				select {
				case updates <- snap:
				case <-ctx.Done():
				}
			}),
		}
		if cfg.Recorder != nil {
			opts = append(opts, monitor.WithRecorder(cfg.Recorder))
		}
		m.mon = monitor.New(cfg.Launcher, opts...)
	} else {
		m.player = trace.NewPlayer(cfg.Events, cfg.Speed)
		m.machine = runstate.NewMachine()
		if len(cfg.Events) > 0 {
			// Begin from the first event so traces recorded mid-run still
			// fold; a leading run_started re-begins with the same ids.
			m.machine.Begin(cfg.Events[0].CaseID, cfg.Events[0].RunID)
		}
	}

	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), m.waitForUpdate())
}

// startRun drives the event source to completion in the background; every
// intermediate snapshot arrives via the updates channel.
func (m Model) startRun() tea.Cmd {
	mon, player, machine := m.mon, m.player, m.machine
	ctx, caseID, updates := m.ctx, m.caseID, m.updates

	return func() tea.Msg {
		if mon != nil {
			snap, err := mon.Watch(ctx, caseID)
			return runDoneMsg{snap: snap, err: err}
		}

		err := player.Play(ctx, func(evt *events.Event) error {
			if applyErr := machine.Apply(evt); applyErr != nil {
				if errors.Is(applyErr, runstate.ErrStaleRun) {
					return nil // superseded run's leftovers in the trace
				}
				return applyErr
			}
			select {
			case updates <- machine.Snapshot():
			case <-ctx.Done():
			}
			return nil
		})
		return runDoneMsg{snap: machine.Snapshot(), err: err}
	}
}

func (m Model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		return snapshotMsg{snap: <-updates}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.cancel()
			if m.mon != nil {
				m.mon.Stop()
			}
			return m, tea.Quit

		case key.Matches(msg, keys.Up):
			m.moveCursor(-1)

		case key.Matches(msg, keys.Down):
			m.moveCursor(1)

		case key.Matches(msg, keys.Detail):
			m.detail = !m.detail
			m.syncDetail()

		case key.Matches(msg, keys.Rerun):
			if m.mon != nil && !m.running {
				m.err = nil
				m.running = true
				return m, tea.Batch(m.spinner.Tick, m.startRun())
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = detailHeight(msg.Height)
		m.syncDetail()

	case snapshotMsg:
		m.snap = msg.snap
		m.running = m.snap.OverallStatus == runstate.OverallRunning
		m.followSelection()
		m.syncDetail()
		return m, m.waitForUpdate()

	case runDoneMsg:
		m.snap = msg.snap
		m.err = msg.err
		m.running = false
		m.followSelection()
		m.syncDetail()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.running {
			return m, cmd
		}
	}

	return m, nil
}

// board derives the render model for the current snapshot.
func (m *Model) board() *projection.Board {
	return projection.BuildBoard(&m.snap, m.reg)
}

// moveCursor shifts the cursor across board rows and records the new focus
// in the machine so the selection survives the next snapshot.
func (m *Model) moveCursor(delta int) {
	rows := m.board().Rows
	if len(rows) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}

	id := rows[m.cursor].StepID
	m.snap.SelectedStepID = id
	if m.mon != nil {
		m.mon.Machine().SelectStep(id)
	} else {
		m.machine.SelectStep(id)
	}
	m.syncDetail()
}

// followSelection keeps the cursor on the machine-selected step, so the
// auto-focus on the latest completion moves the highlight too.
func (m *Model) followSelection() {
	if m.snap.SelectedStepID == "" {
		return
	}
	for i, row := range m.board().Rows {
		if row.StepID == m.snap.SelectedStepID {
			m.cursor = i
			return
		}
	}
}

func (m *Model) syncDetail() {
	if !m.detail {
		return
	}
	m.viewport.SetContent(m.detailContent())
}

func detailHeight(total int) int {
	h := total / 3
	if h < 4 {
		h = 4
	}
	return h
}
