// Package handover decides when, and to which neighbour cell, a connection
// should be handed over.
//
// The Engine consumes already-debounced measurement reports of three kinds:
// A4 (neighbour above an absolute threshold, carries RSRQ), A2 (serving cell
// below the serving threshold) and A3 (neighbour relatively stronger, carries
// RSRP inline). A4 reports feed the per-connection neighbour table, A2
// reports evaluate the table against the relative offset and arm the
// decision latch, A3 reports pick the strongest inline neighbour and call
// the TriggerSink.
package handover
