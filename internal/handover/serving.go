package handover

import (
	"context"
	"fmt"
)

// handleServingDegraded looks for a neighbour whose RSRQ beats the serving
// cell by at least NeighborOffset. Success arms the decision latch; it only
// triggers directly when ServingDegradedTriggers is set.
func (e *Engine) handleServingDegraded(ctx context.Context, r ServingDegraded) (Result, error) {
	res := Result{Kind: KindServingDegraded}
	if r.ServingMetricA > e.policy.ServingThreshold {
		return res, &ContractViolationError{
			Kind:   KindServingDegraded,
			Conn:   r.Connection,
			Reason: fmt.Sprintf("serving RSRQ %d above threshold %d", r.ServingMetricA, e.policy.ServingThreshold),
		}
	}

	unlock := e.locks.lock(r.Connection)
	samples, ok, err := e.table.Row(ctx, r.Connection)
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

	best, found := e.bestByRSRQ(samples)
	if !found {
		unlock()
		res.Outcome = OutcomeNoCandidate
		return res, nil
	}
	res.Target = best.Cell

	if int(best.MetricA)-int(r.ServingMetricA) < int(e.policy.NeighborOffset) {
		unlock()
		e.log.DebugContext(ctx, "best neighbour below offset",
			"conn", uint64(r.Connection),
			"target", int(best.Cell),
			"target_rsrq", int(best.MetricA),
			"serving_rsrq", int(r.ServingMetricA))
		res.Outcome = OutcomeBelowOffset
		return res, nil
	}

	e.armLatch()
	unlock()
	e.log.InfoContext(ctx, "serving cell degraded, hybrid path armed",
		"conn", uint64(r.Connection),
		"target", int(best.Cell),
		"target_rsrq", int(best.MetricA),
		"serving_rsrq", int(r.ServingMetricA))

	res.Outcome = OutcomeArmed
	if e.a2Triggers {
		res.Outcome = OutcomeTriggered
		res.Path = PathServingDegraded
		e.trigger(ctx, r.Connection, best.Cell, PathServingDegraded)
	}
	return res, nil
}

// bestByRSRQ keeps the first strictly greater sample, so the earliest
// inserted neighbour wins ties. Cell 0 is never a candidate.
func (e *Engine) bestByRSRQ(samples []NeighborSample) (NeighborSample, bool) {
	var best NeighborSample
	for _, s := range samples {
		if s.Cell == 0 || !e.filter.Valid(s.Cell) {
			continue
		}
		if s.MetricA > best.MetricA {
			best = s
		}
	}
	return best, best.Cell != 0 && best.MetricA > 0
}
