package launcher

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"

	"github.com/ormasoftchile/runlens/pkg/events"
)

// Stream is one run's NDJSON event stream. A goroutine decodes lines into
// the Events channel; the channel closes when a terminal event arrives, the
// stream is cancelled, or the connection drops. Check Err after the close.
type Stream struct {
	runID  string
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser

	events  chan *events.Event
	dropped atomic.Int64

	// err is written once by the read goroutine before the channel closes,
	// so reading it after the close needs no lock.
	err error
}

func newStream(ctx context.Context, runID string, body io.ReadCloser) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		runID:  runID,
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		events: make(chan *events.Event, 64),
	}

	// Closing the body is the only way to unblock a pending read.
	go func() {
		<-ctx.Done()
		body.Close()
	}()
	go s.read()

	return s
}

// RunID returns the server-generated run id for this stream.
func (s *Stream) RunID() string { return s.runID }

// Events returns the decoded event channel. It closes on terminal event,
// cancellation, or failure; call Err afterwards to distinguish the three.
func (s *Stream) Events() <-chan *events.Event { return s.events }

// Err returns why the stream ended: nil after a clean terminal event or a
// cancel, a *TransportError for a cut connection, or a
// *events.MalformedEventError when a terminal event failed to decode.
// Valid only after the Events channel has closed.
func (s *Stream) Err() error { return s.err }

// Dropped counts malformed non-terminal lines discarded so far. The run
// keeps going past them; only a malformed terminal event ends it.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

// Cancel hard-cancels the subscription and releases the connection.
func (s *Stream) Cancel() {
	s.cancel()
}

func (s *Stream) read() {
	defer s.cancel()
	defer close(s.events)

	sc := bufio.NewScanner(s.body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		evt, err := events.Decode(line)
		if err != nil {
			// A malformed terminal event means we will never learn how the
			// run ended; anything else is dropped and the run continues.
			if k := events.Peek(line); k == events.KindRunCompleted || k == events.KindRunFailed {
				s.err = err
				return
			}
			s.dropped.Add(1)
			continue
		}

		select {
		case s.events <- evt:
		case <-s.ctx.Done():
			return
		}

		if evt.Terminal() {
			return
		}
	}

	if s.ctx.Err() != nil {
		return // cancelled, not an error
	}
	if err := sc.Err(); err != nil {
		s.err = &TransportError{Op: "read stream", Err: err}
		return
	}
	s.err = &TransportError{Op: "read stream", Msg: "stream ended before a terminal event"}
}
