package trace

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/runstate"
)

func sampleEvents(runID string) []*events.Event {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []*events.Event{
		{Type: events.KindRunStarted, RunID: runID, CaseID: "CASE-001", Timestamp: base},
		{Type: events.KindStepStarted, RunID: runID, StepID: "customer_check", OrderIndex: 1, Timestamp: base.Add(10 * time.Millisecond)},
		{Type: events.KindStepCompleted, RunID: runID, StepID: "customer_check", OrderIndex: 1, DurationMs: 90, Summary: "ELIGIBLE", Timestamp: base.Add(100 * time.Millisecond)},
		{Type: events.KindRunCompleted, RunID: runID, Outcome: &events.Outcome{ShouldOffer: true}, Timestamp: base.Add(200 * time.Millisecond)},
	}
}

// TestRecordReadRoundTrip writes a stream and loads it back strictly.
func TestRecordReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	for _, evt := range sampleEvents("run-t1") {
		if err := rec.Record(evt); err != nil {
			t.Fatalf("Record = %v", err)
		}
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("events = %d, want 4", len(got))
	}
	if got[2].Summary != "ELIGIBLE" {
		t.Errorf("summary = %q, want ELIGIBLE", got[2].Summary)
	}
	if !got[3].Terminal() {
		t.Error("last event should be terminal")
	}
}

// TestFileRecorderAppends verifies the file-backed recorder and reader.
func TestFileRecorderAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	rec, err := NewFileRecorder(path)
	if err != nil {
		t.Fatalf("NewFileRecorder = %v", err)
	}
	for _, evt := range sampleEvents("run-t2") {
		if err := rec.Record(evt); err != nil {
			t.Fatalf("Record = %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("events = %d, want 4", len(got))
	}
}

// TestReadRejectsMalformedLine pins the line number in the error.
func TestReadRejectsMalformedLine(t *testing.T) {
	input := `{"type":"run_started","run_id":"r1","case_id":"c1"}
{"type":"step_started","run_id":"r1"}
`
	_, err := Read(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want line 2 reference", err)
	}
}

// TestReadSkipsBlankLines tolerates spacing between records.
func TestReadSkipsBlankLines(t *testing.T) {
	input := `{"type":"run_started","run_id":"r1","case_id":"c1"}

{"type":"run_failed","run_id":"r1","message":"boom"}
`
	got, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("events = %d, want 2", len(got))
	}
}

// TestPlayerFoldsIntoMachine replays a trace through a state machine with
// pacing disabled.
func TestPlayerFoldsIntoMachine(t *testing.T) {
	m := runstate.NewMachine()
	p := NewPlayer(sampleEvents("run-t3"), 0)

	if err := p.Play(context.Background(), m.Apply); err != nil {
		t.Fatalf("Play = %v", err)
	}
	snap := m.Snapshot()
	if snap.OverallStatus != runstate.OverallComplete {
		t.Errorf("overall = %q, want complete", snap.OverallStatus)
	}
	if snap.RunID != "run-t3" {
		t.Errorf("run_id = %q, want run-t3", snap.RunID)
	}
	if len(snap.Results) != 1 {
		t.Errorf("results = %d, want 1", len(snap.Results))
	}
}

// TestPlayerStopsOnCancel checks context cancellation interrupts pacing.
func TestPlayerStopsOnCancel(t *testing.T) {
	evts := sampleEvents("run-t4")
	// Stretch the recorded gap so the replay must sleep.
	evts[1].Timestamp = evts[0].Timestamp.Add(10 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	applied := 0
	done := make(chan error, 1)
	go func() {
		done <- NewPlayer(evts, 1.0).Play(ctx, func(*events.Event) error {
			applied++
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Play = %v, want context.Canceled", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1 (only the first, ungapped event)", applied)
	}
}

// TestPlayerStopsOnApplyError surfaces the failing event index.
func TestPlayerStopsOnApplyError(t *testing.T) {
	evts := sampleEvents("run-t5")
	evts[1].RunID = "someone-else" // stale mid-trace

	m := runstate.NewMachine()
	err := NewPlayer(evts, 0).Play(context.Background(), m.Apply)
	if err == nil {
		t.Fatal("expected replay error for stale event")
	}
	if !strings.Contains(err.Error(), "event 2") {
		t.Errorf("error = %v, want event 2 reference", err)
	}
}

// TestGapScaling checks pacing math including the stall cap.
func TestGapScaling(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := NewPlayer(nil, 2.0)

	if got := p.gap(base, base.Add(1*time.Second)); got != 500*time.Millisecond {
		t.Errorf("gap = %v, want 500ms", got)
	}
	if got := p.gap(base, base.Add(time.Hour)); got != maxReplayGap {
		t.Errorf("capped gap = %v, want %v", got, maxReplayGap)
	}
	if got := p.gap(time.Time{}, base); got != 0 {
		t.Errorf("zero-prev gap = %v, want 0", got)
	}
	if got := p.gap(base.Add(time.Second), base); got != 0 {
		t.Errorf("negative gap = %v, want 0", got)
	}
}
