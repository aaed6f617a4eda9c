// Package cases provides a read-only client for the pipeline server's
// static reference data: the list of selectable cases and the enriched
// detail for one case. It never touches the run state machine.
package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound marks a case id the server does not know.
var ErrNotFound = errors.New("case not found")

// CaseSummary is one entry in the selectable case list.
type CaseSummary struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name,omitempty"`
	FlightNumber string `json:"flight_number,omitempty"`
	Scenario     string `json:"scenario,omitempty"`
}

// CaseDetail is the enriched snapshot for one selected case.
type CaseDetail struct {
	CaseSummary
	Customer  map[string]any `json:"customer,omitempty"`
	Flight    map[string]any `json:"flight,omitempty"`
	Inventory map[string]any `json:"inventory,omitempty"`
	Scores    map[string]any `json:"scores,omitempty"`
}

// Client fetches reference data from one pipeline server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// List returns the selectable cases.
func (c *Client) List(ctx context.Context) ([]CaseSummary, error) {
	var out []CaseSummary
	if err := c.getJSON(ctx, "/api/cases", &out); err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return out, nil
}

// Get returns the detail for one case. Returns ErrNotFound (wrapped) when
// the server does not know the id.
func (c *Client) Get(ctx context.Context, caseID string) (*CaseDetail, error) {
	var out CaseDetail
	if err := c.getJSON(ctx, "/api/cases/"+url.PathEscape(caseID), &out); err != nil {
		return nil, fmt.Errorf("get case %s: %w", caseID, err)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
