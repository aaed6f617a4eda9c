package events

import "fmt"

// MalformedEventError reports an event that fails wire validation. The
// consumer drops the event and keeps the run alive unless the event was
// terminal, in which case the run is forced to failed.
type MalformedEventError struct {
	Kind  Kind
	Field string
	Msg   string
}

func (e *MalformedEventError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "unknown"
	}
	if e.Field == "" {
		return fmt.Sprintf("malformed %s event: %s", kind, e.Msg)
	}
	return fmt.Sprintf("malformed %s event: %s: %s", kind, e.Field, e.Msg)
}

// Validate checks the kind-specific required fields of a decoded event.
// All events need a known type and a run id; the rest depends on the kind.
func (e *Event) Validate() error {
	if e.Type == "" {
		return &MalformedEventError{Field: "type", Msg: "missing"}
	}
	if !e.Type.Known() {
		return &MalformedEventError{Kind: e.Type, Field: "type", Msg: "unknown event kind"}
	}
	if e.RunID == "" {
		return &MalformedEventError{Kind: e.Type, Field: "run_id", Msg: "missing"}
	}

	switch e.Type {
	case KindRunStarted:
		if e.CaseID == "" {
			return &MalformedEventError{Kind: e.Type, Field: "case_id", Msg: "missing"}
		}

	case KindPlannerDecided:
		if len(e.Plan) == 0 {
			return &MalformedEventError{Kind: e.Type, Field: "plan", Msg: "missing or empty"}
		}
		for i, id := range e.Plan {
			if id == "" {
				return &MalformedEventError{Kind: e.Type, Field: fmt.Sprintf("plan[%d]", i), Msg: "empty step id"}
			}
		}

	case KindStepStarted:
		if e.StepID == "" {
			return &MalformedEventError{Kind: e.Type, Field: "step_id", Msg: "missing"}
		}
		if e.OrderIndex < 0 {
			return &MalformedEventError{Kind: e.Type, Field: "order_index", Msg: "negative"}
		}

	case KindStepCompleted:
		if e.StepID == "" {
			return &MalformedEventError{Kind: e.Type, Field: "step_id", Msg: "missing"}
		}
		if e.DurationMs < 0 {
			return &MalformedEventError{Kind: e.Type, Field: "duration_ms", Msg: "negative"}
		}

	case KindStepSkipped:
		if e.StepID == "" {
			return &MalformedEventError{Kind: e.Type, Field: "step_id", Msg: "missing"}
		}
		if e.Reason == "" {
			return &MalformedEventError{Kind: e.Type, Field: "reason", Msg: "missing"}
		}

	case KindRunCompleted:
		if e.Outcome == nil {
			return &MalformedEventError{Kind: e.Type, Field: "outcome", Msg: "missing"}
		}

	case KindRunFailed:
		if e.Message == "" {
			return &MalformedEventError{Kind: e.Type, Field: "message", Msg: "missing"}
		}
	}
	return nil
}
