// Package trace records run event streams to append-only JSONL files and
// replays them later through the same fold path a live stream takes.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ormasoftchile/runlens/pkg/events"
)

// Recorder appends wire events to a JSONL stream, one event per line.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	enc    *json.Encoder
}

// NewRecorder creates a recorder that writes to the given io.Writer.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		w:   w,
		enc: json.NewEncoder(w),
	}
}

// NewFileRecorder creates a recorder that appends to a JSONL file.
func NewFileRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// Record writes one event. Safe for concurrent use.
func (r *Recorder) Record(evt *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(evt)
}

// Close closes the underlying file, if the recorder owns one.
func (r *Recorder) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadFile loads a recorded trace, validating every line strictly. Blank
// lines are tolerated; anything else that fails to decode aborts the read
// with the offending line number.
func ReadFile(path string) ([]*events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read loads a trace from an io.Reader.
func Read(rd io.Reader) ([]*events.Event, error) {
	var out []*events.Event
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		evt, err := events.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: %w", lineNo, err)
		}
		out = append(out, evt)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return out, nil
}
