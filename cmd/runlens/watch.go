package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/runlens/pkg/launcher"
	"github.com/ormasoftchile/runlens/pkg/trace"
	"github.com/ormasoftchile/runlens/pkg/tui"
)

var watchRecord string

var watchCmd = &cobra.Command{
	Use:   "watch [caseId]",
	Short: "Watch a case run live in the terminal UI",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchCmd,
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	cfg := tui.Config{
		Registry: reg,
		Launcher: launcher.New(serverBaseURL()),
		CaseID:   args[0],
	}
	if watchRecord != "" {
		rec, err := trace.NewFileRecorder(watchRecord)
		if err != nil {
			return err
		}
		defer rec.Close()
		cfg.Recorder = rec
	}

	p := tea.NewProgram(tui.New(cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("watch UI: %w", err)
	}
	return nil
}

func init() {
	watchCmd.Flags().StringVar(&watchRecord, "record", "", "Record the event stream to this JSONL trace file")
	rootCmd.AddCommand(watchCmd)
}
