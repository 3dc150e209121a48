package handover

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NeighborFilter decides whether a neighbour may be a handover target.
// Implementations must be safe for concurrent use.
type NeighborFilter interface {
	Valid(cell CellID) bool
}

type FilterFunc func(cell CellID) bool

func (f FilterFunc) Valid(cell CellID) bool { return f(cell) }

// AcceptAll is the default policy.
var AcceptAll NeighborFilter = FilterFunc(func(CellID) bool { return true })

// BarredCells rejects a fixed set of cells, e.g. administratively barred ones.
type BarredCells map[CellID]struct{}

func NewBarredCells(cells ...CellID) BarredCells {
	b := make(BarredCells, len(cells))
	for _, c := range cells {
		b[c] = struct{}{}
	}
	return b
}

func (b BarredCells) Valid(cell CellID) bool {
	_, barred := b[cell]
	return !barred
}

// FailedTargets rejects cells the session layer recently reported as failed
// handover targets, until the entry expires.
type FailedTargets struct {
	lru *expirable.LRU[CellID, time.Time]
}

func NewFailedTargets(size int, ttl time.Duration) *FailedTargets {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FailedTargets{lru: expirable.NewLRU[CellID, time.Time](size, nil, ttl)}
}

func (f *FailedTargets) MarkFailed(cell CellID) {
	f.lru.Add(cell, time.Now())
}

func (f *FailedTargets) Valid(cell CellID) bool {
	return !f.lru.Contains(cell)
}

// AllOf accepts a cell only if every filter does. Nil filters are skipped.
func AllOf(filters ...NeighborFilter) NeighborFilter {
	var fs []NeighborFilter
	for _, f := range filters {
		if f != nil {
			fs = append(fs, f)
		}
	}
	return allOf(fs)
}

type allOf []NeighborFilter

func (a allOf) Valid(cell CellID) bool {
	for _, f := range a {
		if !f.Valid(cell) {
			return false
		}
	}
	return true
}
