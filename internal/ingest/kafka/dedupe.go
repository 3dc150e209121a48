package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

// seqDedupe drops redelivered reports. Sequence 0 means the producer does
// not number its reports and is never deduplicated.
type seqDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[handover.ConnID, uint64]
}

func newSeqDedupe(size int) *seqDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[handover.ConnID, uint64](size)
	return &seqDedupe{lru: c}
}

// duplicate reports whether seq is at or below the last committed one for conn.
func (d *seqDedupe) duplicate(conn handover.ConnID, seq uint64) bool {
	if seq == 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(conn)
	return ok && seq <= last
}

// commit records seq once the report is settled. A report that failed and
// will be redelivered must not be committed.
func (d *seqDedupe) commit(conn handover.ConnID, seq uint64) {
	if seq == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(conn); ok && seq <= last {
		return
	}
	d.lru.Add(conn, seq)
}

func (d *seqDedupe) forget(conn handover.ConnID) {
	d.mu.Lock()
	d.lru.Remove(conn)
	d.mu.Unlock()
}
