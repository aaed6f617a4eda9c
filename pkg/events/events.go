// Package events defines the typed lifecycle events emitted by the remote
// decision pipeline and provides strict wire decoding.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the lifecycle event types carried on the run stream.
type Kind string

// Event kinds, in the order they can appear within one run. Exactly one of
// run_completed/run_failed terminates a stream.
const (
	KindRunStarted     Kind = "run_started"
	KindPlannerStarted Kind = "planner_started"
	KindPlannerDecided Kind = "planner_decided"
	KindStepStarted    Kind = "step_started"
	KindStepCompleted  Kind = "step_completed"
	KindStepSkipped    Kind = "step_skipped"
	KindRunCompleted   Kind = "run_completed"
	KindRunFailed      Kind = "run_failed"
)

// Event is a single wire message from the pipeline. One struct covers all
// kinds; which fields are populated depends on Type (see Validate).
type Event struct {
	Type      Kind      `json:"type"      jsonschema:"required,enum=run_started,enum=planner_started,enum=planner_decided,enum=step_started,enum=step_completed,enum=step_skipped,enum=run_completed,enum=run_failed"`
	RunID     string    `json:"run_id"    jsonschema:"required"`
	Timestamp time.Time `json:"timestamp"`

	// run_started
	CaseID string `json:"case_id,omitempty"`

	// step_started / step_completed / step_skipped
	StepID      string `json:"step_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	OrderIndex  int    `json:"order_index,omitempty"  jsonschema:"minimum=0"`
	TotalSteps  int    `json:"total_steps,omitempty"  jsonschema:"minimum=0"`

	// step_completed
	DurationMs int64          `json:"duration_ms,omitempty" jsonschema:"minimum=0"`
	Summary    string         `json:"summary,omitempty"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`

	// step_skipped
	Reason string `json:"reason,omitempty"`

	// planner_decided
	Plan []string `json:"plan,omitempty"`

	// run_failed
	Message string `json:"message,omitempty"`

	// run_completed
	Outcome *Outcome `json:"outcome,omitempty"`
}

// Outcome is the terminal decision record produced when a run completes.
// The approval flow reuses the same shape: a pending request sets
// PendingApproval and ApprovalRequestID instead of a final decision.
type Outcome struct {
	ShouldOffer       bool     `json:"should_offer"`
	Reason            string   `json:"reason,omitempty"`
	Offer             *Offer   `json:"offer,omitempty"`
	SuppressionReason string   `json:"suppression_reason,omitempty"`
	PendingApproval   bool     `json:"pending_approval,omitempty"`
	ApprovalRequestID string   `json:"approval_request_id,omitempty"`
	EscalationReasons []string `json:"escalation_reasons,omitempty"`
}

// Offer describes the concrete proposal attached to a positive outcome.
type Offer struct {
	OfferID     string  `json:"offer_id" jsonschema:"required"`
	Headline    string  `json:"headline,omitempty"`
	DiscountPct float64 `json:"discount_pct,omitempty" jsonschema:"minimum=0,maximum=100"`
	ExpiresAt   string  `json:"expires_at,omitempty"`
}

// Terminal reports whether this event ends the run stream.
func (e *Event) Terminal() bool {
	return e.Type == KindRunCompleted || e.Type == KindRunFailed
}

// Decode parses one wire message with strict unknown-field rejection and
// validates kind-specific required fields. Returns a MalformedEventError
// (wrapped or direct) on any failure; the input is never partially applied.
func Decode(data []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var evt Event
	if err := dec.Decode(&evt); err != nil {
		return nil, &MalformedEventError{Kind: Peek(data), Msg: err.Error()}
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return &evt, nil
}

// Peek extracts only the event kind from a wire payload, tolerating any
// other malformation. Used to classify lines that fail strict decoding.
func Peek(data []byte) Kind {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return Kind(head.Type)
}

// PeekRunID extracts the run id from a wire payload without full decoding,
// so stale-run classification works even for otherwise malformed events.
func PeekRunID(data []byte) string {
	var head struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.RunID
}

// String returns the wire name of the kind.
func (k Kind) String() string { return string(k) }

// Known reports whether k is one of the defined event kinds.
func (k Kind) Known() bool {
	switch k {
	case KindRunStarted, KindPlannerStarted, KindPlannerDecided,
		KindStepStarted, KindStepCompleted, KindStepSkipped,
		KindRunCompleted, KindRunFailed:
		return true
	}
	return false
}

// Synthesized builds a terminal run_completed event from an outcome, used
// by the approval flow to feed its single synchronous result through the
// same state machine path as a streamed run.
func Synthesized(runID, caseID string, out *Outcome) *Event {
	return &Event{
		Type:      KindRunCompleted,
		RunID:     runID,
		CaseID:    caseID,
		Timestamp: time.Now().UTC(),
		Outcome:   out,
	}
}

func (e *Event) String() string {
	switch e.Type {
	case KindStepStarted, KindStepCompleted, KindStepSkipped:
		return fmt.Sprintf("%s(%s)", e.Type, e.StepID)
	case KindRunFailed:
		return fmt.Sprintf("%s(%s)", e.Type, e.Message)
	default:
		return string(e.Type)
	}
}
