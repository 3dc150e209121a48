// Package sink holds handover.TriggerSink implementations that need no
// external system, plus composition helpers.
package sink

import (
	"context"
	"log/slog"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/observability"
	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

// Log records each trigger as a log line.
type Log struct {
	log *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{log: l}
}

func (s *Log) TriggerHandover(ctx context.Context, conn handover.ConnID, target handover.CellID) {
	s.log.InfoContext(ctx, "handover triggered",
		"conn", uint64(conn),
		"target", int(target),
		"path", string(handover.PathFromContext(ctx)))
	observability.ObserveSink("log", "ok")
}

// Fanout delivers every trigger to each sink in order.
type Fanout []handover.TriggerSink

func (f Fanout) TriggerHandover(ctx context.Context, conn handover.ConnID, target handover.CellID) {
	for _, s := range f {
		s.TriggerHandover(ctx, conn, target)
	}
}

// Closer is implemented by sinks owning background resources.
type Closer interface {
	Close() error
}

// Close closes every sink in f that implements Closer and returns the
// first error.
func (f Fanout) Close() error {
	var first error
	for _, s := range f {
		if c, ok := s.(Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
