// Package progress carries cooperative cancellation and percentage
// reporting through the phases of a materialization step.
package progress

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is returned by Check once the step has been cancelled.
var ErrCancelled = errors.New("step cancelled")

// Sink receives progress updates and may request cancellation.
type Sink interface {
	// Update reports the completion percentage (0-100) of a phase.
	Update(phase string, pct int)
	// Cancelled is polled between units of work.
	Cancelled() bool
}

// Reporter is handed to every phase of a step. It forwards percentages to
// the sink, never letting them go backwards within a phase, and turns both
// context cancellation and sink cancellation into ErrCancelled.
//
// A Reporter may be shared by goroutines working inside one phase.
type Reporter struct {
	ctx  context.Context
	sink Sink

	mu    sync.Mutex
	phase string
	pct   int
}

// NewReporter returns a reporter bound to ctx. sink may be nil.
func NewReporter(ctx context.Context, sink Sink) *Reporter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Reporter{ctx: ctx, sink: sink, pct: -1}
}

// Discard returns a reporter that never cancels and reports nowhere.
func Discard() *Reporter {
	return NewReporter(context.Background(), nil)
}

// Context returns the context the reporter was created with.
func (r *Reporter) Context() context.Context { return r.ctx }

// Check returns ErrCancelled when the context is done or the sink asks to
// stop. The returned error wraps the context error when there is one.
func (r *Reporter) Check() error {
	if err := r.ctx.Err(); err != nil {
		return errors.Join(ErrCancelled, err)
	}
	if r.sink != nil && r.sink.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// Begin starts a new phase at 0%.
func (r *Reporter) Begin(phase string) {
	r.mu.Lock()
	r.phase, r.pct = phase, -1
	r.mu.Unlock()
	r.Report(0, 1)
}

// Report records that done of total units of the current phase are
// complete. Percentages that would move backwards are dropped.
func (r *Reporter) Report(done, total int) {
	pct := 100
	if total > 0 {
		pct = done * 100 / total
	}
	pct = max(0, min(pct, 100))

	r.mu.Lock()
	if pct <= r.pct {
		r.mu.Unlock()
		return
	}
	r.pct = pct
	phase := r.phase
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.Update(phase, pct)
	}
}

// Done reports 100% for the current phase.
func (r *Reporter) Done() { r.Report(1, 1) }

// Step polls cancellation and reports progress in one call, the usual
// pattern at the top of a per-node or per-block loop.
func (r *Reporter) Step(done, total int) error {
	if err := r.Check(); err != nil {
		return err
	}
	r.Report(done, total)
	return nil
}

// Recorder is a Sink that keeps every update. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	updates []Update
	cancel  func(Update) bool
	stopped bool
}

// Update is one recorded progress event.
type Update struct {
	Phase string
	Pct   int
}

// NewRecorder returns a recorder. When cancelAt is non-nil the recorder
// starts reporting cancellation after the first update for which it
// returns true.
func NewRecorder(cancelAt func(Update) bool) *Recorder {
	return &Recorder{cancel: cancelAt}
}

// Update implements Sink.
func (r *Recorder) Update(phase string, pct int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := Update{Phase: phase, Pct: pct}
	r.updates = append(r.updates, u)
	if r.cancel != nil && r.cancel(u) {
		r.stopped = true
	}
}

// Cancelled implements Sink.
func (r *Recorder) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Updates returns a copy of the recorded updates.
func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}
