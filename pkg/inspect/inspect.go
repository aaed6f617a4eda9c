// Package inspect implements the interactive REPL for inspecting a run
// snapshot — typically a finished live run or a replayed trace.
package inspect

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/runlens/pkg/projection"
	"github.com/ormasoftchile/runlens/pkg/registry"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// Session provides an interactive REPL over one run's state.
type Session struct {
	machine *runstate.Machine
	reg     *registry.Registry
	output  io.Writer
	rl      *readline.Instance
}

// New creates a session over a machine holding the snapshot to inspect.
func New(m *runstate.Machine, reg *registry.Registry) *Session {
	return &Session{
		machine: m,
		reg:     reg,
		output:  os.Stdout,
	}
}

// Run starts the interactive REPL loop.
func (s *Session) Run() error {
	commands := []string{"status", "steps", "step", "phase", "branches",
		"outcome", "planner", "select", "diagram", "help", "quit"}

	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		switch cmd {
		case "step", "select":
			var items []readline.PrefixCompleterInterface
			for _, id := range s.reg.StepIDs() {
				items = append(items, readline.PcItem(id))
			}
			completer.Children = append(completer.Children, readline.PcItem(cmd, items...))
		case "phase":
			var items []readline.PrefixCompleterInterface
			for _, p := range s.reg.Phases {
				items = append(items, readline.PcItem(p.ID))
			}
			completer.Children = append(completer.Children, readline.PcItem(cmd, items...))
		default:
			completer.Children = append(completer.Children, readline.PcItem(cmd))
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	s.rl = rl
	defer rl.Close()

	snap := s.machine.Snapshot()
	fmt.Fprintf(s.output, "runlens inspector — case %s, %d step results\n", snap.CaseID, len(snap.Results))
	fmt.Fprintf(s.output, "Type 'help' for available commands, 'steps' for the board.\n\n")

	for {
		rl.SetPrompt(s.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if quit := s.dispatch(line); quit {
			return nil
		}
	}
}

// dispatch executes one command line. Returns true to leave the REPL.
// Split out from Run so tests can drive commands without a terminal.
func (s *Session) dispatch(line string) bool {
	parts := strings.Fields(line)
	cmd := parts[0]

	switch cmd {
	case "status":
		s.handleStatus()
	case "steps", "board":
		s.handleSteps()
	case "step":
		s.handleStep(parts)
	case "phase":
		s.handlePhase(parts)
	case "branches":
		s.handleBranches()
	case "outcome":
		s.handleOutcome()
	case "planner":
		s.handlePlanner()
	case "select":
		s.handleSelect(parts)
	case "diagram":
		s.handleDiagram(parts)
	case "help", "?":
		s.handleHelp()
	case "quit", "q", "exit":
		fmt.Fprintf(s.output, "Exiting inspector.\n")
		return true
	default:
		fmt.Fprintf(s.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
	}
	return false
}

// buildPrompt creates the prompt string: runlens[caseId|status]>
func (s *Session) buildPrompt() string {
	snap := s.machine.Snapshot()
	caseID := snap.CaseID
	if caseID == "" {
		caseID = "no case"
	}
	return fmt.Sprintf("runlens[%s|%s]> ", caseID, snap.OverallStatus)
}

func (s *Session) board() *projection.Board {
	snap := s.machine.Snapshot()
	return projection.BuildBoard(&snap, s.reg)
}
