package events

import (
	"errors"
	"strings"
	"testing"
)

// TestDecodeStepCompleted ensures a well-formed completion event decodes
// with all payload fields intact.
func TestDecodeStepCompleted(t *testing.T) {
	line := `{
		"type": "step_completed",
		"run_id": "run-42",
		"timestamp": "2026-03-01T10:15:04Z",
		"step_id": "customer_check",
		"display_name": "Customer Eligibility",
		"order_index": 1,
		"duration_ms": 340,
		"summary": "ELIGIBLE: gold tier, disrupted segment",
		"reasoning": "Customer holds gold status and flight AF812 was cancelled.",
		"outputs": {"tier": "gold", "disrupted": true}
	}`
	evt, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	if evt.Type != KindStepCompleted {
		t.Errorf("type = %q, want %q", evt.Type, KindStepCompleted)
	}
	if evt.RunID != "run-42" {
		t.Errorf("run_id = %q, want %q", evt.RunID, "run-42")
	}
	if evt.StepID != "customer_check" {
		t.Errorf("step_id = %q, want %q", evt.StepID, "customer_check")
	}
	if evt.DurationMs != 340 {
		t.Errorf("duration_ms = %d, want 340", evt.DurationMs)
	}
	if evt.Outputs["tier"] != "gold" {
		t.Errorf("outputs.tier = %v, want %q", evt.Outputs["tier"], "gold")
	}
	if evt.Terminal() {
		t.Error("step_completed must not be terminal")
	}
}

// TestDecodeRejectsUnknownFields verifies strict decoding refuses extra keys.
func TestDecodeRejectsUnknownFields(t *testing.T) {
	line := `{"type":"run_started","run_id":"r1","case_id":"c1","surprise":"field"}`
	_, err := Decode([]byte(line))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	var merr *MalformedEventError
	if !errors.As(err, &merr) {
		t.Fatalf("error type = %T, want *MalformedEventError", err)
	}
}

// TestDecodeRejectsUnknownKind verifies an unrecognized type is malformed.
func TestDecodeRejectsUnknownKind(t *testing.T) {
	line := `{"type":"step_exploded","run_id":"r1"}`
	_, err := Decode([]byte(line))
	var merr *MalformedEventError
	if !errors.As(err, &merr) {
		t.Fatalf("error type = %T, want *MalformedEventError", err)
	}
	if merr.Field != "type" {
		t.Errorf("field = %q, want %q", merr.Field, "type")
	}
}

// TestValidateRequiredFields walks each kind's required-field rules.
func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		field string
	}{
		{"missing run_id", `{"type":"step_started","step_id":"x"}`, "run_id"},
		{"run_started without case", `{"type":"run_started","run_id":"r1"}`, "case_id"},
		{"step_started without step", `{"type":"step_started","run_id":"r1"}`, "step_id"},
		{"step_completed without step", `{"type":"step_completed","run_id":"r1"}`, "step_id"},
		{"negative duration", `{"type":"step_completed","run_id":"r1","step_id":"x","duration_ms":-3}`, "duration_ms"},
		{"skip without reason", `{"type":"step_skipped","run_id":"r1","step_id":"x"}`, "reason"},
		{"planner_decided empty plan", `{"type":"planner_decided","run_id":"r1","plan":[]}`, "plan"},
		{"run_completed without outcome", `{"type":"run_completed","run_id":"r1"}`, "outcome"},
		{"run_failed without message", `{"type":"run_failed","run_id":"r1"}`, "message"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.line))
			var merr *MalformedEventError
			if !errors.As(err, &merr) {
				t.Fatalf("error = %v, want *MalformedEventError", err)
			}
			if merr.Field != tc.field {
				t.Errorf("field = %q, want %q", merr.Field, tc.field)
			}
		})
	}
}

// TestValidateAcceptsMinimalEvents exercises the smallest valid payload of
// each kind.
func TestValidateAcceptsMinimalEvents(t *testing.T) {
	lines := []string{
		`{"type":"run_started","run_id":"r1","case_id":"CASE-001"}`,
		`{"type":"planner_started","run_id":"r1"}`,
		`{"type":"planner_decided","run_id":"r1","plan":["customer_check"],"reasoning":"fixed route"}`,
		`{"type":"step_started","run_id":"r1","step_id":"customer_check"}`,
		`{"type":"step_completed","run_id":"r1","step_id":"customer_check"}`,
		`{"type":"step_skipped","run_id":"r1","step_id":"flight_check","reason":"no data"}`,
		`{"type":"run_completed","run_id":"r1","outcome":{"should_offer":false,"reason":"ineligible"}}`,
		`{"type":"run_failed","run_id":"r1","message":"upstream timeout"}`,
	}
	for _, line := range lines {
		if _, err := Decode([]byte(line)); err != nil {
			t.Errorf("Decode(%s) = %v, want nil", line, err)
		}
	}
}

// TestTerminal checks the terminal classification of every kind.
func TestTerminal(t *testing.T) {
	terminal := map[Kind]bool{
		KindRunStarted:     false,
		KindPlannerStarted: false,
		KindPlannerDecided: false,
		KindStepStarted:    false,
		KindStepCompleted:  false,
		KindStepSkipped:    false,
		KindRunCompleted:   true,
		KindRunFailed:      true,
	}
	for kind, want := range terminal {
		evt := Event{Type: kind}
		if got := evt.Terminal(); got != want {
			t.Errorf("Terminal(%s) = %v, want %v", kind, got, want)
		}
	}
}

// TestPeekToleratesGarbage ensures Peek degrades to empty values instead of
// failing on undecodable lines.
func TestPeekTolerates(t *testing.T) {
	if k := Peek([]byte(`{"type":"run_failed","run_id":"r9","bogus":1}`)); k != KindRunFailed {
		t.Errorf("kind = %q, want %q", k, KindRunFailed)
	}
	if id := PeekRunID([]byte(`{"type":"run_failed","run_id":"r9","bogus":1}`)); id != "r9" {
		t.Errorf("run_id = %q, want %q", id, "r9")
	}
	if k := Peek([]byte(`not json at all`)); k != "" {
		t.Errorf("kind = %q, want empty", k)
	}
	if id := PeekRunID([]byte(`{{{`)); id != "" {
		t.Errorf("run_id = %q, want empty", id)
	}
}

// TestSynthesizedOutcome verifies the approval bridge event is terminal and
// round-trips through strict decoding.
func TestSynthesizedOutcome(t *testing.T) {
	out := &Outcome{PendingApproval: true, ApprovalRequestID: "apr-7"}
	evt := Synthesized("run-manual-1", "CASE-004", out)
	if !evt.Terminal() {
		t.Fatal("synthesized outcome event must be terminal")
	}
	if err := evt.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

// TestGenerateJSONSchema sanity-checks the reflected event schema document.
func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema() = %v", err)
	}
	doc := string(data)
	for _, want := range []string{"events-v1.json", "run_id", "step_completed", "$schema"} {
		if !strings.Contains(doc, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
