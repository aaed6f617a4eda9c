// Package approval talks to the human-approval queue collaborator. The
// queue itself (listing, deciding, timing out requests) lives on the
// server; this package only submits runs for approval and resolves pending
// requests, folding every answer into the shared outcome shape.
package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ormasoftchile/runlens/pkg/events"
)

// ErrNotFound marks an approval request id the queue does not know.
var ErrNotFound = errors.New("approval request not found")

// Decision is the reviewer's verdict on a pending approval.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// PendingApproval is one request waiting in the queue.
type PendingApproval struct {
	ID                string        `json:"id"`
	CaseID            string        `json:"case_id"`
	RunID             string        `json:"run_id,omitempty"`
	ProposedOffer     *events.Offer `json:"proposed_offer,omitempty"`
	EscalationReasons []string      `json:"escalation_reasons,omitempty"`
	SubmittedAt       time.Time     `json:"submitted_at"`
}

// Queue is the approval collaborator surface the rest of runlens sees.
type Queue interface {
	Submit(ctx context.Context, req PendingApproval) (*PendingApproval, error)
	Get(ctx context.Context, id string) (*PendingApproval, error)
	Resolve(ctx context.Context, id string, decision Decision) (*events.Outcome, error)
}

// Client is the HTTP Queue implementation against the pipeline server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ Queue = (*Client)(nil)

// New creates an approval client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Submit places a proposed offer on the queue and returns the stored
// request, including its server-assigned id.
func (c *Client) Submit(ctx context.Context, req PendingApproval) (*PendingApproval, error) {
	var out PendingApproval
	if err := c.do(ctx, "POST", "/api/approvals", req, &out); err != nil {
		return nil, fmt.Errorf("submit approval: %w", err)
	}
	return &out, nil
}

// Get fetches one pending request.
func (c *Client) Get(ctx context.Context, id string) (*PendingApproval, error) {
	var out PendingApproval
	if err := c.do(ctx, "GET", "/api/approvals/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("get approval %s: %w", id, err)
	}
	return &out, nil
}

// Resolve records the reviewer's decision and returns the final outcome
// the pipeline produced for it.
func (c *Client) Resolve(ctx context.Context, id string, decision Decision) (*events.Outcome, error) {
	body := map[string]string{"decision": string(decision)}
	var out events.Outcome
	if err := c.do(ctx, "POST", "/api/approvals/"+id+"/resolve", body, &out); err != nil {
		return nil, fmt.Errorf("resolve approval %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
