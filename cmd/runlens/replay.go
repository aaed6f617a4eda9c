package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/runlens/pkg/diagram"
	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/runstate"
	"github.com/ormasoftchile/runlens/pkg/trace"
	"github.com/ormasoftchile/runlens/pkg/tui"
)

var (
	replaySpeed   float64
	replayTUI     bool
	replayDiagram string
)

var replayCmd = &cobra.Command{
	Use:   "replay [trace.jsonl]",
	Short: "Replay a recorded trace through the state machine",
	Long: `Replay a JSONL trace recorded with 'runlens run --record' or
'runlens watch --record'. Events are folded through the same state machine
a live run uses, paced by their recorded timestamps scaled by --speed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	evts, err := trace.ReadFile(args[0])
	if err != nil {
		return err
	}
	if len(evts) == 0 {
		return fmt.Errorf("trace %s holds no events", args[0])
	}

	if replayTUI {
		cfg := tui.Config{
			Registry: reg,
			Events:   evts,
			Speed:    replaySpeed,
		}
		p := tea.NewProgram(tui.New(cfg), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("replay UI: %w", err)
		}
		return nil
	}

	// Begin from the first event so traces recorded mid-run still fold;
	// a leading run_started re-begins with the same ids.
	machine := runstate.NewMachine()
	machine.Begin(evts[0].CaseID, evts[0].RunID)

	player := trace.NewPlayer(evts, replaySpeed)
	playErr := player.Play(cmd.Context(), func(evt *events.Event) error {
		if err := machine.Apply(evt); err != nil {
			if errors.Is(err, runstate.ErrStaleRun) {
				return nil // superseded run's leftovers in the trace
			}
			return err
		}
		fmt.Println(eventLine(evt, reg))
		return nil
	})
	if playErr != nil {
		fmt.Fprintf(os.Stderr, "  ✗ replay stopped: %v\n", playErr)
	}

	snap := machine.Snapshot()
	board := projection.BuildBoard(&snap, reg)
	if replayDiagram != "none" {
		out, err := diagram.Generate(board, diagram.Format(replayDiagram))
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(out)
	}
	printOutcome(board)

	if playErr != nil {
		os.Exit(1)
	}
	return nil
}

func init() {
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Pacing factor: 1.0 = recorded speed, 2.0 = twice as fast, 0 = no pacing")
	replayCmd.Flags().BoolVar(&replayTUI, "tui", false, "Replay inside the terminal UI instead of printing lines")
	replayCmd.Flags().StringVar(&replayDiagram, "format", "ascii", "Final board rendering: ascii, mermaid, or none")
	rootCmd.AddCommand(replayCmd)
}
