package handover

import (
	"testing"
	"time"
)

func TestBarredCells(t *testing.T) {
	b := NewBarredCells(3, 4)
	if b.Valid(3) || b.Valid(4) || !b.Valid(5) {
		t.Fatalf("barred filter wrong: 3=%v 4=%v 5=%v", b.Valid(3), b.Valid(4), b.Valid(5))
	}
}

func TestFailedTargets_Expire(t *testing.T) {
	f := NewFailedTargets(8, 50*time.Millisecond)
	f.MarkFailed(7)
	if f.Valid(7) {
		t.Fatalf("cell 7 should be rejected right after failure")
	}
	if !f.Valid(8) {
		t.Fatalf("cell 8 never failed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for !f.Valid(7) {
		if time.Now().After(deadline) {
			t.Fatalf("failed target never expired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAllOf_SkipsNil(t *testing.T) {
	f := AllOf(nil, NewBarredCells(2), FilterFunc(func(c CellID) bool { return c != 9 }))
	for cell, want := range map[CellID]bool{1: true, 2: false, 9: false} {
		if got := f.Valid(cell); got != want {
			t.Fatalf("Valid(%d)=%v want %v", cell, got, want)
		}
	}
	if !AllOf().Valid(1) {
		t.Fatalf("empty AllOf must accept")
	}
}

func TestEngine_FailedTargetSkipped(t *testing.T) {
	failed := NewFailedTargets(8, time.Minute)
	e, sink := newTestEngine(t, Options{Filter: failed})
	mustReport(t, e, a4(1, rsrq(5, 10)))

	failed.MarkFailed(5)
	res := mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(5, 60), rsrp(6, 30)}})
	if res.Target != 6 {
		t.Fatalf("target=%d want 6", res.Target)
	}
	if calls := sink.Calls(); len(calls) != 1 || calls[0].Target != 6 {
		t.Fatalf("calls=%+v", calls)
	}
}
