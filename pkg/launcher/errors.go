package launcher

import "fmt"

// TransportError reports a stream or connection failure before a terminal
// event arrived. The monitor surfaces it as a failed run with the partial
// results kept visible; retrying is the caller's decision, not ours.
type TransportError struct {
	Op  string
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport: %s: %s", e.Op, e.Msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnknownCaseError reports a start-run request for a case id the server
// cannot resolve. The snapshot stays idle; nothing was started.
type UnknownCaseError struct {
	CaseID string
}

func (e *UnknownCaseError) Error() string {
	return fmt.Sprintf("unknown case %q", e.CaseID)
}
