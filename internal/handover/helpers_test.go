package handover

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type triggerCall struct {
	Conn   ConnID
	Target CellID
}

type recordingSink struct {
	mu    sync.Mutex
	calls []triggerCall
}

func (s *recordingSink) TriggerHandover(_ context.Context, conn ConnID, target CellID) {
	s.mu.Lock()
	s.calls = append(s.calls, triggerCall{Conn: conn, Target: target})
	s.mu.Unlock()
}

func (s *recordingSink) Calls() []triggerCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]triggerCall(nil), s.calls...)
}

// levelCounter counts records per level.
type levelCounter struct {
	mu     sync.Mutex
	counts map[slog.Level]int
}

func newLevelCounter() *levelCounter { return &levelCounter{counts: map[slog.Level]int{}} }

func (h *levelCounter) Enabled(context.Context, slog.Level) bool { return true }

func (h *levelCounter) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.counts[r.Level]++
	h.mu.Unlock()
	return nil
}

func (h *levelCounter) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *levelCounter) WithGroup(string) slog.Handler      { return h }

func (h *levelCounter) Count(l slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[l]
}

type countingFilter struct {
	mu    sync.Mutex
	inner NeighborFilter
	calls []CellID
}

func (c *countingFilter) Valid(cell CellID) bool {
	c.mu.Lock()
	c.calls = append(c.calls, cell)
	c.mu.Unlock()
	return c.inner.Valid(cell)
}

func (c *countingFilter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *recordingSink) {
	t.Helper()
	return newTestEngineWithPolicy(t, DefaultPolicy(), opts)
}

func newTestEngineWithPolicy(t *testing.T, p PolicyConfig, opts Options) (*Engine, *recordingSink) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	sink := &recordingSink{}
	e, err := New(p, sink, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, sink
}

func a4(conn ConnID, cells ...AbsoluteObservation) NeighborAbsolute {
	return NeighborAbsolute{Connection: conn, Observations: cells}
}

func rsrq(cell CellID, v uint8) AbsoluteObservation {
	return AbsoluteObservation{Cell: cell, HasMetricA: true, MetricA: v}
}

func rsrp(cell CellID, v uint8) RelativeObservation {
	return RelativeObservation{Cell: cell, HasMetricB: true, MetricB: v}
}

func mustReport(t *testing.T, e *Engine, r Report) Result {
	t.Helper()
	res, err := e.Report(context.Background(), r)
	if err != nil {
		t.Fatalf("Report(%T): %v", r, err)
	}
	return res
}
