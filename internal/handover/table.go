package handover

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// NeighborSample is the last known quality of one neighbour of a connection.
// MetricA is RSRQ (from A4), MetricB is RSRP (from A3); zero means never observed.
type NeighborSample struct {
	Cell    CellID `json:"cell"`
	MetricA uint8  `json:"rsrq"`
	MetricB uint8  `json:"rsrp"`
}

// CellValue is one metric update for one neighbour.
type CellValue struct {
	Cell  CellID
	Value uint8
}

// NeighborTable stores per-connection neighbour rows.
//
// Row returns the samples in first-insertion order and ok=false when the
// connection has never been observed. Updates create rows and cells lazily
// and leave the other metric untouched. Callers serialize access per
// connection; implementations only need to be safe across connections.
type NeighborTable interface {
	Row(ctx context.Context, conn ConnID) (samples []NeighborSample, ok bool, err error)
	UpdateMetricA(ctx context.Context, conn ConnID, updates []CellValue) error
	UpdateMetricB(ctx context.Context, conn ConnID, updates []CellValue) error
	Drop(ctx context.Context, conn ConnID) error
}

const numShards = 64

// MemoryTable is the in-process NeighborTable.
type MemoryTable struct {
	shards [numShards]tableShard
}

type tableShard struct {
	mu   sync.RWMutex
	rows map[ConnID]*row
}

type row struct {
	order   []CellID
	samples map[CellID]*NeighborSample
}

var _ NeighborTable = (*MemoryTable)(nil)

func NewMemoryTable() *MemoryTable {
	t := &MemoryTable{}
	for i := range t.shards {
		t.shards[i].rows = make(map[ConnID]*row)
	}
	return t
}

func (t *MemoryTable) Row(_ context.Context, conn ConnID) ([]NeighborSample, bool, error) {
	s := t.pick(conn)
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[conn]
	if !ok {
		return nil, false, nil
	}
	out := make([]NeighborSample, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, *r.samples[c])
	}
	return out, true, nil
}

func (t *MemoryTable) UpdateMetricA(_ context.Context, conn ConnID, updates []CellValue) error {
	t.update(conn, updates, func(s *NeighborSample, v uint8) { s.MetricA = v })
	return nil
}

func (t *MemoryTable) UpdateMetricB(_ context.Context, conn ConnID, updates []CellValue) error {
	t.update(conn, updates, func(s *NeighborSample, v uint8) { s.MetricB = v })
	return nil
}

func (t *MemoryTable) update(conn ConnID, updates []CellValue, set func(*NeighborSample, uint8)) {
	if len(updates) == 0 {
		return
	}
	s := t.pick(conn)
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.rows[conn]
	if r == nil {
		r = &row{samples: make(map[CellID]*NeighborSample)}
		s.rows[conn] = r
	}
	for _, u := range updates {
		smp := r.samples[u.Cell]
		if smp == nil {
			smp = &NeighborSample{Cell: u.Cell}
			r.samples[u.Cell] = smp
			r.order = append(r.order, u.Cell)
		}
		set(smp, u.Value)
	}
}

func (t *MemoryTable) Drop(_ context.Context, conn ConnID) error {
	s := t.pick(conn)
	s.mu.Lock()
	delete(s.rows, conn)
	s.mu.Unlock()
	return nil
}

// Size returns the number of connections with a row.
func (t *MemoryTable) Size() int {
	total := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		total += len(t.shards[i].rows)
		t.shards[i].mu.RUnlock()
	}
	return total
}

func (t *MemoryTable) pick(conn ConnID) *tableShard {
	return &t.shards[shardOf(conn)]
}

func shardOf(conn ConnID) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(conn))
	return xxhash.Sum64(b[:]) & (numShards - 1)
}
