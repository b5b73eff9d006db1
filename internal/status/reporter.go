package status

import (
	"context"
	"time"

	"github.com/cjeanneret/LineGo/internal/debug"
)

// Renderer shows a snapshot somewhere (text console, web stream, ...).
type Renderer interface {
	Render(Snapshot) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Snapshot) error

func (f RendererFunc) Render(s Snapshot) error { return f(s) }

// Reporter periodically renders the board on its own schedule, decoupled from
// the control loop tick.
type Reporter struct {
	board     *Board
	interval  time.Duration
	renderers []Renderer
	last      uint64
}

// NewReporter creates a reporter. interval defaults to 300ms.
func NewReporter(b *Board, interval time.Duration, renderers ...Renderer) *Reporter {
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	return &Reporter{board: b, interval: interval, renderers: renderers}
}

// Run renders every interval until ctx is cancelled. Unchanged snapshots are
// skipped.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Flush()
		}
	}
}

// Flush renders the current snapshot if it changed since the last render.
func (r *Reporter) Flush() {
	snap := r.board.Snapshot()
	if snap.Version == r.last {
		return
	}
	r.last = snap.Version
	for _, rd := range r.renderers {
		if err := rd.Render(snap); err != nil {
			debug.Error(err)
		}
	}
}
