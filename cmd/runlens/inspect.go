package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/runlens/pkg/inspect"
	"github.com/ormasoftchile/runlens/pkg/runstate"
	"github.com/ormasoftchile/runlens/pkg/trace"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [trace.jsonl]",
	Short: "Open an interactive inspection shell over a recorded trace",
	Long: `Fold a recorded trace to its final state and open a REPL for
querying it: per-step results, phase rollups, gate outcomes, planner
decisions and diagrams. Tab completes commands and step ids.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
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

	machine := runstate.NewMachine()
	machine.Begin(evts[0].CaseID, evts[0].RunID)
	for i, evt := range evts {
		if err := machine.Apply(evt); err != nil {
			if errors.Is(err, runstate.ErrStaleRun) {
				continue
			}
			return fmt.Errorf("fold event %d (%s): %w", i+1, evt.Type, err)
		}
	}

	return inspect.New(machine, reg).Run()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
