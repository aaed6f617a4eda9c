// mock-pipeline-server is a test helper binary that serves scripted
// pipeline runs over HTTP for exercising runlens end to end:
//
//	go run testdata/tools/mock-pipeline-server.go --addr :8787 --delay 300ms
//
// Each built-in case streams a different scenario: a full happy path, an
// early eligibility exit, an agent no-offer decision, a planner-skipped
// step, a mid-run failure and a planner-driven run.
//
//go:build ignore

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

var (
	addr  = flag.String("addr", ":8787", "listen address")
	delay = flag.Duration("delay", 250*time.Millisecond, "pause between streamed events")
)

var runSeq atomic.Int64

type caseInfo struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name"`
	FlightNumber string `json:"flight_number"`
	Scenario     string `json:"scenario"`
}

var caseTable = []caseInfo{
	{ID: "CASE-001", CustomerName: "Ana Duarte", FlightNumber: "IB6251", Scenario: "happy_path"},
	{ID: "CASE-002", CustomerName: "Marco Ellis", FlightNumber: "IB3402", Scenario: "ineligible"},
	{ID: "CASE-003", CustomerName: "Petra Kovac", FlightNumber: "IB0119", Scenario: "no_offer"},
	{ID: "CASE-004", CustomerName: "Sven Olsen", FlightNumber: "IB7718", Scenario: "skipped_step"},
	{ID: "CASE-005", CustomerName: "Lia Okafor", FlightNumber: "IB6251", Scenario: "failure"},
	{ID: "CASE-006", CustomerName: "Tomas Riva", FlightNumber: "IB2200", Scenario: "planner"},
}

func main() {
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/cases", handleCases)
	mux.HandleFunc("/api/cases/", handleCase)
	mux.HandleFunc("/api/runs", handleRuns)
	mux.HandleFunc("/api/approvals", handleApprovalSubmit)
	mux.HandleFunc("/api/approvals/", handleApprovals)

	fmt.Fprintf(os.Stderr, "mock-pipeline-server: listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "mock-pipeline-server: %v\n", err)
		os.Exit(1)
	}
}

func handleCases(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(caseTable)
}

func handleCase(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/cases/")
	for _, c := range caseTable {
		if c.ID == id {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":            c.ID,
				"customer_name": c.CustomerName,
				"flight_number": c.FlightNumber,
				"scenario":      c.Scenario,
				"customer":      map[string]any{"tier": "gold", "opted_out": false},
				"flight":        map[string]any{"number": c.FlightNumber, "delay_minutes": 95},
				"inventory":     map[string]any{"business_seats": 4, "premium_seats": 11},
				"scores":        map[string]any{"propensity": 0.82},
			})
			return
		}
	}
	http.Error(w, "case not found", http.StatusNotFound)
}

func handleRuns(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CaseID string `json:"case_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var scenario string
	for _, c := range caseTable {
		if c.ID == body.CaseID {
			scenario = c.Scenario
		}
	}
	if scenario == "" {
		http.Error(w, "case not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	runID := fmt.Sprintf("run-%d", runSeq.Add(1))
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Runlens-Run-Id", runID)
	w.WriteHeader(http.StatusAccepted)
	flusher.Flush()

	for _, line := range scenarioLines(scenario) {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(*delay):
		}
		fmt.Fprintln(w, strings.ReplaceAll(line, "{run}", runID))
		flusher.Flush()
	}
}

var approvalSeq atomic.Int64

func handleApprovalSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req["id"] = fmt.Sprintf("apr-%d", approvalSeq.Add(1))
	req["submitted_at"] = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(req)
}

func handleApprovals(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/approvals/")
	w.Header().Set("Content-Type", "application/json")

	if strings.HasSuffix(rest, "/resolve") {
		var body struct {
			Decision string `json:"decision"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Decision == "approve" {
			json.NewEncoder(w).Encode(map[string]any{
				"should_offer": true,
				"offer":        map[string]any{"offer_id": "OFF-APPROVED-1", "discount_pct": 15},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"should_offer":       false,
			"suppression_reason": "rejected by reviewer",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]any{
		"id":                 rest,
		"case_id":            "CASE-001",
		"run_id":             "run-1",
		"proposed_offer":     map[string]any{"offer_id": "OFF-PENDING-1", "discount_pct": 25},
		"escalation_reasons": []string{"discount above auto-approve limit"},
		"submitted_at":       time.Now().UTC().Format(time.RFC3339),
	})
}

// scenarioLines returns the NDJSON event script for a scenario. Every
// {run} placeholder is substituted with the allocated run id.
func scenarioLines(scenario string) []string {
	prefix := []string{
		`{"type":"run_started","run_id":"{run}","case_id":"CASE","total_steps":6}`,
		`{"type":"step_started","run_id":"{run}","step_id":"customer_check","order_index":1}`,
	}
	switch scenario {
	case "happy_path":
		return append(prefix,
			`{"type":"step_completed","run_id":"{run}","step_id":"customer_check","order_index":1,"duration_ms":140,"summary":"ELIGIBLE: gold tier, opted in"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"flight_check","order_index":2}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"flight_check","order_index":2,"duration_ms":95,"summary":"DISRUPTED: 95 min delay"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"inventory_check","order_index":3}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"inventory_check","order_index":3,"duration_ms":120,"summary":"AVAILABLE: 4 business seats","outputs":{"business_seats":4}}`,
			`{"type":"step_started","run_id":"{run}","step_id":"propensity_score","order_index":4}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"propensity_score","order_index":4,"duration_ms":60,"summary":"HIGH: 0.82","outputs":{"score":0.82}}`,
			`{"type":"step_started","run_id":"{run}","step_id":"orchestration","order_index":5}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"orchestration","order_index":5,"duration_ms":830,"summary":"OFFER: business upgrade 20% off","reasoning":"High propensity and confirmed disruption justify a proactive upgrade offer."}`,
			`{"type":"step_started","run_id":"{run}","step_id":"offer_message","order_index":6}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"offer_message","order_index":6,"duration_ms":610,"summary":"Drafted upgrade message"}`,
			`{"type":"run_completed","run_id":"{run}","outcome":{"should_offer":true,"offer":{"offer_id":"OFF-2024-001","headline":"Upgrade to business for your delayed flight","discount_pct":20}}}`,
		)
	case "ineligible":
		return append(prefix,
			`{"type":"step_completed","run_id":"{run}","step_id":"customer_check","order_index":1,"duration_ms":110,"summary":"NOT ELIGIBLE: customer opted out"}`,
			`{"type":"run_completed","run_id":"{run}","outcome":{"should_offer":false,"reason":"customer not eligible"}}`,
		)
	case "no_offer":
		return append(prefix,
			`{"type":"step_completed","run_id":"{run}","step_id":"customer_check","order_index":1,"duration_ms":130,"summary":"ELIGIBLE"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"flight_check","order_index":2}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"flight_check","order_index":2,"duration_ms":90,"summary":"DISRUPTED: cancellation"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"inventory_check","order_index":3}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"inventory_check","order_index":3,"duration_ms":105,"summary":"NONE: cabin full"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"propensity_score","order_index":4}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"propensity_score","order_index":4,"duration_ms":70,"summary":"LOW: 0.21"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"orchestration","order_index":5}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"orchestration","order_index":5,"duration_ms":740,"summary":"NO OFFER: no inventory and low propensity"}`,
			`{"type":"run_completed","run_id":"{run}","outcome":{"should_offer":false,"suppression_reason":"no upgrade inventory"}}`,
		)
	case "skipped_step":
		return append(prefix,
			`{"type":"step_completed","run_id":"{run}","step_id":"customer_check","order_index":1,"duration_ms":125,"summary":"ELIGIBLE"}`,
			`{"type":"step_skipped","run_id":"{run}","step_id":"flight_check","reason":"flight status cached from previous run"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"inventory_check","order_index":3}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"inventory_check","order_index":3,"duration_ms":115,"summary":"AVAILABLE: 2 premium seats"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"propensity_score","order_index":4}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"propensity_score","order_index":4,"duration_ms":65,"summary":"MEDIUM: 0.55"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"orchestration","order_index":5}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"orchestration","order_index":5,"duration_ms":790,"summary":"OFFER: premium seat 10% off"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"offer_message","order_index":6}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"offer_message","order_index":6,"duration_ms":580,"summary":"Drafted premium seat message"}`,
			`{"type":"run_completed","run_id":"{run}","outcome":{"should_offer":true,"offer":{"offer_id":"OFF-2024-004","headline":"A premium seat is waiting","discount_pct":10}}}`,
		)
	case "failure":
		return append(prefix,
			`{"type":"step_completed","run_id":"{run}","step_id":"customer_check","order_index":1,"duration_ms":135,"summary":"ELIGIBLE"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"flight_check","order_index":2}`,
			`{"type":"run_failed","run_id":"{run}","message":"flight status provider timed out"}`,
		)
	case "planner":
		return []string{
			`{"type":"run_started","run_id":"{run}","case_id":"CASE","total_steps":6}`,
			`{"type":"planner_started","run_id":"{run}"}`,
			`{"type":"planner_decided","run_id":"{run}","plan":["customer_check","propensity_score","orchestration"]}`,
			`{"type":"step_started","run_id":"{run}","step_id":"customer_check","order_index":1}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"customer_check","order_index":1,"duration_ms":118,"summary":"ELIGIBLE"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"propensity_score","order_index":2}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"propensity_score","order_index":2,"duration_ms":72,"summary":"HIGH: 0.91"}`,
			`{"type":"step_started","run_id":"{run}","step_id":"orchestration","order_index":3}`,
			`{"type":"step_completed","run_id":"{run}","step_id":"orchestration","order_index":3,"duration_ms":650,"summary":"OFFER: loyalty bonus"}`,
			`{"type":"run_completed","run_id":"{run}","outcome":{"should_offer":true,"offer":{"offer_id":"OFF-2024-006","headline":"A loyalty thank-you"}}}`,
		}
	}
	return append(prefix,
		`{"type":"run_failed","run_id":"{run}","message":"unknown scenario"}`,
	)
}
