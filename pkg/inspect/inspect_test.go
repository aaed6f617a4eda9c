package inspect

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/registry"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

// finishedSession builds a session over a completed ineligible run and a
// buffer capturing its output.
func finishedSession(t *testing.T) (*Session, *bytes.Buffer) {
	t.Helper()
	m := runstate.NewMachine()
	m.Begin("CASE-002", "run-1")
	evts := []*events.Event{
		{Type: events.KindStepCompleted, RunID: "run-1", StepID: "customer_check", OrderIndex: 1, DurationMs: 35,
			Summary: "NOT ELIGIBLE", Reasoning: "Account flagged for fraud review.\nEligibility rules short-circuit."},
		{Type: events.KindStepSkipped, RunID: "run-1", StepID: "flight_check", OrderIndex: 2, Reason: "eligibility exit"},
		{Type: events.KindRunCompleted, RunID: "run-1", Outcome: &events.Outcome{ShouldOffer: false, Reason: "ineligible"}},
	}
	for _, e := range evts {
		if err := m.Apply(e); err != nil {
			t.Fatalf("Apply(%s) = %v", e, err)
		}
	}

	s := New(m, registry.Default())
	var buf bytes.Buffer
	s.output = &buf
	return s, &buf
}

func run(t *testing.T, s *Session, buf *bytes.Buffer, line string) string {
	t.Helper()
	buf.Reset()
	if quit := s.dispatch(line); quit {
		t.Fatalf("dispatch(%q) requested quit", line)
	}
	return buf.String()
}

func TestStatusCommand(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "status")
	for _, want := range []string{"CASE-002", "complete", "results: 2 of 6"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestStepsCommand(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "steps")
	for _, want := range []string{"✓ Customer Eligibility", "⊘ Flight Disruption Check", "○ Offer Orchestration", "NOT ELIGIBLE"} {
		if !strings.Contains(out, want) {
			t.Errorf("steps output missing %q:\n%s", want, out)
		}
	}
}

func TestStepDetail(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "step customer_check")
	for _, want := range []string{"Customer Eligibility", "rule-workflow", "summary:   NOT ELIGIBLE", "Account flagged"} {
		if !strings.Contains(out, want) {
			t.Errorf("step detail missing %q:\n%s", want, out)
		}
	}

	out = run(t, s, buf, "step")
	if !strings.Contains(out, "Usage: step <id>") {
		t.Errorf("missing usage line:\n%s", out)
	}
}

func TestSkippedStepReasoning(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "step flight_check")
	if !strings.Contains(out, "Skipped: eligibility exit") {
		t.Errorf("skip reasoning not shown:\n%s", out)
	}
	if !strings.Contains(out, "duration:  0ms") {
		t.Errorf("skip duration not pinned to zero:\n%s", out)
	}
}

func TestBranchesCommand(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "branches")
	if !strings.Contains(out, "exit") {
		t.Errorf("customer_check gate should read exit:\n%s", out)
	}
	if !strings.Contains(out, "undetermined") {
		t.Errorf("orchestration gate should be undetermined:\n%s", out)
	}
}

func TestPhaseCommand(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "phase eligibility")
	if !strings.Contains(out, "Eligibility") || !strings.Contains(out, "processing") {
		t.Errorf("phase rollup wrong:\n%s", out)
	}

	out = run(t, s, buf, "phase nothere")
	if !strings.Contains(out, "Unknown phase") {
		t.Errorf("unknown phase not reported:\n%s", out)
	}
}

func TestSelectCommand(t *testing.T) {
	s, buf := finishedSession(t)
	run(t, s, buf, "select orchestration")
	if got := s.machine.Snapshot().SelectedStepID; got != "orchestration" {
		t.Errorf("selected = %q, want orchestration", got)
	}
}

func TestOutcomeCommand(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "outcome")
	if !strings.Contains(out, "no offer") || !strings.Contains(out, "ineligible") {
		t.Errorf("outcome output wrong:\n%s", out)
	}
}

func TestDiagramCommand(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "diagram mermaid")
	if !strings.Contains(out, "flowchart TD") {
		t.Errorf("mermaid diagram not rendered:\n%s", out)
	}

	out = run(t, s, buf, "diagram svg")
	if !strings.Contains(out, "Error:") {
		t.Errorf("unsupported format not surfaced:\n%s", out)
	}
}

func TestUnknownCommand(t *testing.T) {
	s, buf := finishedSession(t)
	out := run(t, s, buf, "frobnicate")
	if !strings.Contains(out, "Unknown command") {
		t.Errorf("unknown command not reported:\n%s", out)
	}
}

func TestQuitCommand(t *testing.T) {
	s, buf := finishedSession(t)
	buf.Reset()
	if quit := s.dispatch("quit"); !quit {
		t.Error("dispatch(quit) = false, want true")
	}
}
