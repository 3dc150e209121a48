package handover

import (
	"context"
	"fmt"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/observability"
)

// handleNeighborRelative picks the strongest inline neighbour by RSRP and
// triggers the handover. The table is only consulted to confirm the
// connection has been observed; the inline RSRP values are then written
// back into the existing row.
//
// The hybrid and plain paths perform the same action today. They stay
// separate so the two can diverge without touching dispatch.
func (e *Engine) handleNeighborRelative(ctx context.Context, r NeighborRelative) (Result, error) {
	res := Result{Kind: KindNeighborRelative}

	unlock := e.locks.lock(r.Connection)
	_, ok, err := e.table.Row(ctx, r.Connection)
	if err != nil {
		unlock()
		return res, fmt.Errorf("read neighbour row: %w", err)
	}
	if !ok {
		unlock()
		e.log.WarnContext(ctx, "skipping handover evaluation, neighbour cells information not found",
			"conn", uint64(r.Connection))
		res.Outcome = OutcomeMissingState
		return res, nil
	}
	if len(r.Observations) == 0 {
		unlock()
		e.log.WarnContext(ctx, "A3 report without neighbour measurements", "conn", uint64(r.Connection))
		res.Outcome = OutcomeEmpty
		return res, nil
	}

	var (
		bestCell CellID
		bestRSRP uint8
		rsrp     []CellValue
	)
	for _, o := range r.Observations {
		if !o.HasMetricB || o.Cell == 0 {
			continue
		}
		rsrp = append(rsrp, CellValue{Cell: o.Cell, Value: o.MetricB})
		if !e.filter.Valid(o.Cell) {
			continue
		}
		if o.MetricB > bestRSRP {
			bestCell, bestRSRP = o.Cell, o.MetricB
		}
	}

	if err := e.table.UpdateMetricB(ctx, r.Connection, rsrp); err != nil {
		e.log.WarnContext(ctx, "could not record neighbour rsrp",
			"conn", uint64(r.Connection), "err", err)
	}

	if bestCell == 0 {
		unlock()
		res.Outcome = OutcomeNoCandidate
		return res, nil
	}

	path := PathPlain
	switch e.latchMode {
	case LatchResetOnTrigger:
		if e.latch.CompareAndSwap(true, false) {
			path = PathHybrid
			observability.SetLatch(false)
		}
	default:
		if e.latch.Load() {
			path = PathHybrid
		}
	}
	unlock()

	res.Outcome = OutcomeTriggered
	res.Target = bestCell
	res.Path = path

	switch path {
	case PathHybrid:
		e.log.DebugContext(ctx, "using hybrid algorithm", "conn", uint64(r.Connection), "target_rsrp", int(bestRSRP))
		e.trigger(ctx, r.Connection, bestCell, PathHybrid)
	default:
		e.log.DebugContext(ctx, "using A3 RSRP algorithm", "conn", uint64(r.Connection), "target_rsrp", int(bestRSRP))
		e.trigger(ctx, r.Connection, bestCell, PathPlain)
	}
	return res, nil
}
