package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/ormasoftchile/runlens/pkg/events"
)

// maxReplayGap caps the pause reproduced between two events, so a trace
// with a long stall does not hang a replay session.
const maxReplayGap = 3 * time.Second

// Player feeds a recorded event sequence to an apply function, reproducing
// the original inter-event pacing scaled by Speed.
type Player struct {
	Events []*events.Event

	// Speed scales pacing: 1.0 replays at recorded speed, 2.0 twice as
	// fast. Zero or negative disables pacing entirely.
	Speed float64
}

// NewPlayer builds a player over a loaded trace.
func NewPlayer(evts []*events.Event, speed float64) *Player {
	return &Player{Events: evts, Speed: speed}
}

// Play applies the events in order, sleeping between them according to
// their recorded timestamps. It stops on context cancellation or on the
// first apply error.
func (p *Player) Play(ctx context.Context, apply func(*events.Event) error) error {
	var prev time.Time
	for i, evt := range p.Events {
		if gap := p.gap(prev, evt.Timestamp); gap > 0 {
			timer := time.NewTimer(gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		prev = evt.Timestamp

		if err := apply(evt); err != nil {
			return fmt.Errorf("replay event %d (%s): %w", i+1, evt.Type, err)
		}
	}
	return nil
}

func (p *Player) gap(prev, next time.Time) time.Duration {
	if p.Speed <= 0 || prev.IsZero() || next.IsZero() {
		return 0
	}
	gap := next.Sub(prev)
	if gap <= 0 {
		return 0
	}
	gap = time.Duration(float64(gap) / p.Speed)
	if gap > maxReplayGap {
		gap = maxReplayGap
	}
	return gap
}
