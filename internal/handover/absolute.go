package handover

import (
	"context"
	"fmt"
)

// handleNeighborAbsolute stores the RSRQ of every reported neighbour.
// The batch is validated first so a violation never leaves a partial update.
func (e *Engine) handleNeighborAbsolute(ctx context.Context, r NeighborAbsolute) (Result, error) {
	res := Result{Kind: KindNeighborAbsolute}
	if len(r.Observations) == 0 {
		e.log.WarnContext(ctx, "A4 report without neighbour measurements", "conn", uint64(r.Connection))
		res.Outcome = OutcomeEmpty
		return res, nil
	}

	updates := make([]CellValue, 0, len(r.Observations))
	for _, o := range r.Observations {
		if o.Cell == 0 {
			e.log.WarnContext(ctx, "ignoring A4 measurement without cell id", "conn", uint64(r.Connection))
			continue
		}
		if !o.HasMetricA {
			return res, &ContractViolationError{
				Kind:   KindNeighborAbsolute,
				Conn:   r.Connection,
				Cell:   o.Cell,
				Reason: "RSRQ measurement is missing",
			}
		}
		updates = append(updates, CellValue{Cell: o.Cell, Value: o.MetricA})
	}
	if len(updates) == 0 {
		res.Outcome = OutcomeEmpty
		return res, nil
	}

	unlock := e.locks.lock(r.Connection)
	err := e.table.UpdateMetricA(ctx, r.Connection, updates)
	unlock()
	if err != nil {
		return res, fmt.Errorf("update neighbour rsrq: %w", err)
	}
	e.observeTableSize()

	e.log.DebugContext(ctx, "updated neighbour measurements",
		"conn", uint64(r.Connection), "cells", len(updates))
	res.Outcome = OutcomeApplied
	return res, nil
}
