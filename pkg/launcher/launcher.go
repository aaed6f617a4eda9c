// Package launcher starts pipeline runs on the remote decision-pipeline
// server and delivers their lifecycle event streams. It owns the error
// taxonomy of the transport boundary: connection failures become
// TransportError, unresolvable case ids become UnknownCaseError, and
// malformed wire events surface as events.MalformedEventError.
package launcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ormasoftchile/runlens/pkg/events"
)

// RunIDHeader carries the server-generated run id on the start-run
// response. The same id tags every event on the stream.
const RunIDHeader = "X-Runlens-Run-Id"

// DefaultBaseURL is where a locally running pipeline server listens.
const DefaultBaseURL = "http://localhost:8787"

// Launcher starts runs against one pipeline server.
type Launcher struct {
	baseURL    string
	httpClient *http.Client

	// newConnectBackoff builds the retry policy for the initial connect.
	// Mid-stream failures are never retried — the server's streams are not
	// resumable, so a cut stream is a failed run.
	newConnectBackoff func() backoff.BackOff
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Launcher) { l.httpClient = c }
}

// WithConnectBackoff replaces the connect retry policy. Pass a factory
// returning backoff.StopBackOff to disable connect retries entirely.
func WithConnectBackoff(f func() backoff.BackOff) Option {
	return func(l *Launcher) { l.newConnectBackoff = f }
}

// New creates a launcher for the server at baseURL.
func New(baseURL string, opts ...Option) *Launcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	l := &Launcher{
		baseURL: baseURL,
		// No overall timeout: the response body is a long-lived stream.
		httpClient: &http.Client{},
		newConnectBackoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxElapsedTime = 10 * time.Second
			return bo
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// startRequest is the wire body of POST /api/runs.
type startRequest struct {
	CaseID          string `json:"case_id"`
	RequireApproval bool   `json:"require_approval,omitempty"`
}

// Start begins a run for caseID and returns its event stream. The connect
// itself retries transient failures with exponential backoff; once the
// stream is open there are no retries. A 404 means the server does not
// know the case and nothing was started.
func (l *Launcher) Start(ctx context.Context, caseID string) (*Stream, error) {
	body, err := json.Marshal(startRequest{CaseID: caseID})
	if err != nil {
		return nil, fmt.Errorf("marshal start request: %w", err)
	}

	resp, err := backoff.RetryWithData(func() (*http.Response, error) {
		return l.postRuns(ctx, body, caseID, http.StatusAccepted)
	}, backoff.WithContext(l.newConnectBackoff(), ctx))
	if err != nil {
		return nil, err
	}

	runID := resp.Header.Get(RunIDHeader)
	if runID == "" {
		resp.Body.Close()
		return nil, &TransportError{Op: "start run", Msg: "missing " + RunIDHeader + " header"}
	}

	return newStream(ctx, runID, resp.Body), nil
}

// approvalResponse is the wire body of the synchronous approval variant.
// Exactly one of the three statuses comes back; all three fold into the
// same Outcome shape so renderers never branch on execution mode.
type approvalResponse struct {
	Status            string          `json:"status"`
	ApprovalRequestID string          `json:"approval_request_id,omitempty"`
	ProposedOffer     *events.Offer   `json:"proposed_offer,omitempty"`
	EscalationReasons []string        `json:"escalation_reasons,omitempty"`
	Outcome           *events.Outcome `json:"outcome,omitempty"`
	SuppressionReason string          `json:"suppression_reason,omitempty"`
}

// StartApproval runs the human-approval variant: a single synchronous call
// instead of a stream. Returns the run id and the folded outcome.
func (l *Launcher) StartApproval(ctx context.Context, caseID string) (string, *events.Outcome, error) {
	body, err := json.Marshal(startRequest{CaseID: caseID, RequireApproval: true})
	if err != nil {
		return "", nil, fmt.Errorf("marshal approval request: %w", err)
	}

	resp, err := backoff.RetryWithData(func() (*http.Response, error) {
		return l.postRuns(ctx, body, caseID, http.StatusOK)
	}, backoff.WithContext(l.newConnectBackoff(), ctx))
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	runID := resp.Header.Get(RunIDHeader)

	var ar approvalResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return runID, nil, &TransportError{Op: "decode approval response", Err: err}
	}

	out, err := foldApproval(&ar)
	if err != nil {
		return runID, nil, err
	}
	return runID, out, nil
}

func foldApproval(ar *approvalResponse) (*events.Outcome, error) {
	switch ar.Status {
	case "pending_approval":
		if ar.ApprovalRequestID == "" {
			return nil, &TransportError{Op: "approval response", Msg: "pending_approval without approval_request_id"}
		}
		return &events.Outcome{
			ShouldOffer:       true,
			Offer:             ar.ProposedOffer,
			PendingApproval:   true,
			ApprovalRequestID: ar.ApprovalRequestID,
			EscalationReasons: ar.EscalationReasons,
		}, nil
	case "decided":
		if ar.Outcome == nil {
			return nil, &TransportError{Op: "approval response", Msg: "decided without outcome"}
		}
		return ar.Outcome, nil
	case "no_offer":
		return &events.Outcome{
			ShouldOffer:       false,
			Reason:            ar.SuppressionReason,
			SuppressionReason: ar.SuppressionReason,
		}, nil
	default:
		return nil, &TransportError{Op: "approval response", Msg: fmt.Sprintf("unknown status %q", ar.Status)}
	}
}

// postRuns performs one POST /api/runs attempt. Errors that further
// attempts cannot fix are wrapped in backoff.Permanent.
func (l *Launcher) postRuns(ctx context.Context, body []byte, caseID string, wantStatus int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/api/runs", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(&TransportError{Op: "build start request", Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&TransportError{Op: "start run", Err: ctx.Err()})
		}
		return nil, &TransportError{Op: "start run", Err: err}
	}

	switch {
	case resp.StatusCode == wantStatus:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		drainClose(resp.Body)
		return nil, backoff.Permanent(&UnknownCaseError{CaseID: caseID})
	case resp.StatusCode >= 500:
		msg := readErrorBody(resp.Body)
		return nil, &TransportError{Op: "start run", Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, msg)}
	default:
		msg := readErrorBody(resp.Body)
		return nil, backoff.Permanent(&TransportError{Op: "start run", Msg: fmt.Sprintf("status %d: %s", resp.StatusCode, msg)})
	}
}

func readErrorBody(rc io.ReadCloser) string {
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(b))
}

func drainClose(rc io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(rc, 4096))
	rc.Close()
}
