// Package monitor wires the launcher to the run state machine: one Monitor
// owns at most one live event subscription, applies events in arrival
// order, and enforces the teardown ordering that keeps a superseded run's
// in-flight events out of the new run's snapshot.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/launcher"
	"github.com/ormasoftchile/runlens/pkg/runstate"
	"github.com/ormasoftchile/runlens/pkg/trace"
)

// ApplyFunc observes each event after it has been folded into the machine.
// The snapshot is a deep copy; callbacks can keep it without copying again.
type ApplyFunc func(snap runstate.Snapshot, evt *events.Event)

// Monitor drives one run at a time through the state machine.
type Monitor struct {
	launcher *launcher.Launcher
	machine  *runstate.Machine
	recorder *trace.Recorder
	onApply  ApplyFunc

	// takeoverMu serializes the Stop→Reset→Begin→register sequence so two
	// concurrent Watch calls cannot interleave takeovers and leave the
	// machine keyed to the older run.
	takeoverMu sync.Mutex

	mu      sync.Mutex
	current *launcher.Stream
	done    chan struct{}

	stale atomic.Int64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRecorder tees every applied event to a trace recorder.
func WithRecorder(r *trace.Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// WithOnApply registers a per-apply callback, invoked synchronously after
// each event lands so renderers see every intermediate snapshot.
func WithOnApply(f ApplyFunc) Option {
	return func(m *Monitor) { m.onApply = f }
}

// New creates a monitor over a launcher and a fresh state machine.
func New(l *launcher.Launcher, opts ...Option) *Monitor {
	m := &Monitor{
		launcher: l,
		machine:  runstate.NewMachine(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Machine exposes the underlying state machine for selection and status
// queries. Mutation stays inside the monitor's apply loop.
func (m *Monitor) Machine() *runstate.Machine { return m.machine }

// Snapshot returns a deep copy of the current run state.
func (m *Monitor) Snapshot() runstate.Snapshot { return m.machine.Snapshot() }

// StaleDiscarded counts events discarded because they carried the run id
// of a superseded run.
func (m *Monitor) StaleDiscarded() int64 { return m.stale.Load() }

// Watch runs one case to its terminal state, blocking until the stream
// ends. Any previous subscription is cancelled and drained BEFORE the
// machine is reset, so a stale in-flight event can never land in the new
// run; concurrent Watch calls serialize on the takeover, the later caller
// winning. On UnknownCaseError the snapshot stays idle.
func (m *Monitor) Watch(ctx context.Context, caseID string) (runstate.Snapshot, error) {
	stream, done, err := m.takeover(ctx, caseID)
	if err != nil {
		return m.machine.Snapshot(), err
	}
	defer close(done)

	for evt := range stream.Events() {
		m.apply(evt)
	}

	m.mu.Lock()
	if m.current == stream {
		m.current = nil
	}
	m.mu.Unlock()

	if err := stream.Err(); err != nil {
		// Partial results stay visible; the failure only settles the
		// run-level status.
		m.machine.ForceFail(failureMessage(err))
		return m.machine.Snapshot(), err
	}
	if err := ctx.Err(); err != nil {
		// Caller-imposed deadline or cancel; a supersede via Stop keeps the
		// caller's context live and never lands here.
		m.machine.ForceFail(fmt.Sprintf("run cancelled: %v", err))
		return m.machine.Snapshot(), err
	}
	return m.machine.Snapshot(), nil
}

// takeover cancels and drains any previous subscription, then re-keys the
// machine to a fresh run of caseID and registers its stream. Serialized so
// a concurrent Watch always sees the earlier stream registered and can
// never re-key the machine backwards.
func (m *Monitor) takeover(ctx context.Context, caseID string) (*launcher.Stream, chan struct{}, error) {
	m.takeoverMu.Lock()
	defer m.takeoverMu.Unlock()

	m.Stop()
	m.machine.Reset()

	stream, err := m.launcher.Start(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}

	m.machine.Begin(caseID, stream.RunID())

	done := make(chan struct{})
	m.mu.Lock()
	m.current = stream
	m.done = done
	m.mu.Unlock()
	return stream, done, nil
}

// WatchApproval runs the human-approval variant: the single synchronous
// result is synthesized into a terminal event and folded through the same
// machine path a streamed run takes.
func (m *Monitor) WatchApproval(ctx context.Context, caseID string) (runstate.Snapshot, error) {
	m.takeoverMu.Lock()
	defer m.takeoverMu.Unlock()

	m.Stop()
	m.machine.Reset()

	runID, out, err := m.launcher.StartApproval(ctx, caseID)
	if err != nil {
		return m.machine.Snapshot(), err
	}

	m.machine.Begin(caseID, runID)
	m.apply(events.Synthesized(runID, caseID, out))
	return m.machine.Snapshot(), nil
}

// ForceFail settles a stalled run as failed, for external watchdogs. The
// subscription, if any, is cancelled as well.
func (m *Monitor) ForceFail(message string) {
	m.machine.ForceFail(message)
	m.Stop()
}

// Stop hard-cancels the current subscription and waits for its apply loop
// to drain. Safe to call with no run in progress.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stream, done := m.current, m.done
	m.current = nil
	m.mu.Unlock()

	if stream == nil {
		return
	}
	stream.Cancel()
	<-done
}

func (m *Monitor) apply(evt *events.Event) {
	if m.recorder != nil {
		if err := m.recorder.Record(evt); err != nil {
			fmt.Fprintf(os.Stderr, "monitor: record event: %v\n", err)
		}
	}

	if err := m.machine.Apply(evt); err != nil {
		if errors.Is(err, runstate.ErrStaleRun) {
			m.stale.Add(1)
			return
		}
		fmt.Fprintf(os.Stderr, "monitor: drop event %s: %v\n", evt, err)
		return
	}

	if m.onApply != nil {
		m.onApply(m.machine.Snapshot(), evt)
	}
}

func failureMessage(err error) string {
	var me *events.MalformedEventError
	if errors.As(err, &me) {
		return fmt.Sprintf("terminal event could not be decoded: %v", me)
	}
	return fmt.Sprintf("stream failed before completion: %v", err)
}
