package handover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
)

func TestNew_RequiresSink(t *testing.T) {
	if _, err := New(DefaultPolicy(), nil, Options{}); err == nil {
		t.Fatalf("expected error for nil sink")
	}
}

func TestNew_RejectsInvalidPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.ServingThreshold = 35
	if _, err := New(p, &recordingSink{}, Options{}); err == nil {
		t.Fatalf("expected error for serving threshold 35")
	}
}

func TestUnobservedConnection_NoTriggerNoState(t *testing.T) {
	h := newLevelCounter()
	e, sink := newTestEngine(t, Options{Logger: slog.New(h)})
	const conn ConnID = 42

	res := mustReport(t, e, ServingDegraded{Connection: conn, ServingMetricA: 10})
	if res.Outcome != OutcomeMissingState {
		t.Fatalf("A2 outcome=%s want %s", res.Outcome, OutcomeMissingState)
	}
	res = mustReport(t, e, NeighborRelative{Connection: conn, Observations: []RelativeObservation{rsrp(7, 40)}})
	if res.Outcome != OutcomeMissingState {
		t.Fatalf("A3 outcome=%s want %s", res.Outcome, OutcomeMissingState)
	}

	if n := len(sink.Calls()); n != 0 {
		t.Fatalf("triggers=%d want 0", n)
	}
	if _, ok, _ := e.Neighbors(context.Background(), conn); ok {
		t.Fatalf("table row created for unobserved connection")
	}
	if e.Latched() {
		t.Fatalf("latch armed without neighbour data")
	}
	if got := h.Count(slog.LevelWarn); got != 2 {
		t.Fatalf("warnings=%d want 2", got)
	}
}

func TestNeighborAbsolute_Idempotent(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	mustReport(t, e, a4(1, rsrq(5, 20)))
	first, _, _ := e.Neighbors(ctx, 1)
	mustReport(t, e, a4(1, rsrq(5, 20)))
	second, ok, _ := e.Neighbors(ctx, 1)

	if !ok || len(second) != 1 {
		t.Fatalf("row=%+v ok=%v want one sample", second, ok)
	}
	if first[0] != second[0] {
		t.Fatalf("sample changed after repeat: %+v -> %+v", first[0], second[0])
	}
	if second[0] != (NeighborSample{Cell: 5, MetricA: 20}) {
		t.Fatalf("sample=%+v", second[0])
	}
}

func TestNeighborAbsolute_KeepsRSRP(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	mustReport(t, e, a4(1, rsrq(7, 10)))
	mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(7, 40)}})
	mustReport(t, e, a4(1, rsrq(7, 12)))

	row, _, _ := e.Neighbors(ctx, 1)
	if len(row) != 1 || row[0] != (NeighborSample{Cell: 7, MetricA: 12, MetricB: 40}) {
		t.Fatalf("row=%+v want cell 7 rsrq 12 rsrp 40", row)
	}
}

func TestNeighborAbsolute_EmptyReportWarns(t *testing.T) {
	h := newLevelCounter()
	e, sink := newTestEngine(t, Options{Logger: slog.New(h)})

	res := mustReport(t, e, a4(3))
	if res.Outcome != OutcomeEmpty {
		t.Fatalf("outcome=%s want %s", res.Outcome, OutcomeEmpty)
	}
	if got := h.Count(slog.LevelWarn); got != 1 {
		t.Fatalf("warnings=%d want 1", got)
	}
	if _, ok, _ := e.Neighbors(context.Background(), 3); ok {
		t.Fatalf("empty report created a row")
	}
	if n := len(sink.Calls()); n != 0 {
		t.Fatalf("triggers=%d want 0", n)
	}
}

func TestNeighborAbsolute_MissingMetricAbortsBatch(t *testing.T) {
	e, _ := newTestEngine(t, Options{})

	rep := a4(1, rsrq(5, 20), AbsoluteObservation{Cell: 6})
	res, err := e.Report(context.Background(), rep)
	if !IsContractViolation(err) {
		t.Fatalf("err=%v want contract violation", err)
	}
	var cv *ContractViolationError
	if !errors.As(err, &cv) || cv.Cell != 6 || cv.Kind != KindNeighborAbsolute {
		t.Fatalf("violation=%+v want cell 6 kind a4", cv)
	}
	if res.Outcome != OutcomeViolation {
		t.Fatalf("outcome=%s want %s", res.Outcome, OutcomeViolation)
	}
	if _, ok, _ := e.Neighbors(context.Background(), 1); ok {
		t.Fatalf("partial batch was applied")
	}
}

func TestStrictContracts_Panics(t *testing.T) {
	e, _ := newTestEngine(t, Options{StrictContracts: true})
	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatalf("expected panic")
		}
		err, ok := rec.(error)
		if !ok || !IsContractViolation(err) {
			t.Fatalf("panic value=%v want contract violation", rec)
		}
	}()
	_, _ = e.Report(context.Background(), a4(1, AbsoluteObservation{Cell: 2}))
}

func TestServingDegraded_AboveThresholdIsViolation(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	mustReport(t, e, a4(1, rsrq(5, 34)))

	_, err := e.Report(context.Background(), ServingDegraded{Connection: 1, ServingMetricA: 31})
	if !IsContractViolation(err) {
		t.Fatalf("err=%v want contract violation", err)
	}
	if e.Latched() {
		t.Fatalf("latch armed by invalid report")
	}
}

func TestServingDegraded_TieKeepsFirstInserted(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	mustReport(t, e, a4(1, rsrq(3, 25)))
	mustReport(t, e, a4(1, rsrq(9, 25), rsrq(4, 11)))

	res := mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 20})
	if res.Outcome != OutcomeArmed {
		t.Fatalf("outcome=%s want %s", res.Outcome, OutcomeArmed)
	}
	if res.Target != 3 {
		t.Fatalf("best=%d want 3 (first inserted)", res.Target)
	}
}

func TestServingDegraded_OffsetBoundary(t *testing.T) {
	p := DefaultPolicy()
	p.NeighborOffset = 1

	tests := []struct {
		name      string
		neighbour uint8
		serving   uint8
		armed     bool
	}{
		{"one above arms", 21, 20, true},
		{"equal does not arm", 20, 20, false},
		{"below does not arm", 15, 20, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestEngineWithPolicy(t, p, Options{})
			mustReport(t, e, a4(1, rsrq(5, tc.neighbour)))
			res := mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: tc.serving})
			if e.Latched() != tc.armed {
				t.Fatalf("latched=%v want %v (outcome %s)", e.Latched(), tc.armed, res.Outcome)
			}
			if !tc.armed && res.Outcome != OutcomeBelowOffset {
				t.Fatalf("outcome=%s want %s", res.Outcome, OutcomeBelowOffset)
			}
		})
	}
}

func TestServingDegraded_ArmsLatchWithoutTrigger(t *testing.T) {
	p := DefaultPolicy()
	p.ServingThreshold = 30
	e, sink := newTestEngineWithPolicy(t, p, Options{})
	const c ConnID = 11

	mustReport(t, e, a4(c, rsrq(5, 35)))
	res := mustReport(t, e, ServingDegraded{Connection: c, ServingMetricA: 28})

	if !e.Latched() {
		t.Fatalf("latch not armed")
	}
	if res.Outcome != OutcomeArmed || res.Target != 5 {
		t.Fatalf("result=%+v want armed towards 5", res)
	}
	if n := len(sink.Calls()); n != 0 {
		t.Fatalf("triggers=%d want 0", n)
	}
}

func TestServingDegraded_NoCandidateWhenAllZero(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	mustReport(t, e, a4(1, rsrq(5, 0)))
	res := mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 0})
	if res.Outcome != OutcomeNoCandidate || e.Latched() {
		t.Fatalf("result=%+v latched=%v want no candidate", res, e.Latched())
	}
}

func TestServingDegraded_DirectTriggerOption(t *testing.T) {
	e, sink := newTestEngine(t, Options{ServingDegradedTriggers: true})
	mustReport(t, e, a4(1, rsrq(5, 30)))
	res := mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 10})

	if res.Outcome != OutcomeTriggered || res.Path != PathServingDegraded {
		t.Fatalf("result=%+v want triggered via serving_degraded", res)
	}
	calls := sink.Calls()
	if len(calls) != 1 || calls[0] != (triggerCall{Conn: 1, Target: 5}) {
		t.Fatalf("calls=%+v", calls)
	}
}

func TestNeighborRelative_PlainPathTriggersOnce(t *testing.T) {
	e, sink := newTestEngine(t, Options{})
	const c ConnID = 9

	mustReport(t, e, a4(c, rsrq(7, 3)))
	res := mustReport(t, e, NeighborRelative{Connection: c, Observations: []RelativeObservation{rsrp(7, 40)}})

	calls := sink.Calls()
	if len(calls) != 1 || calls[0] != (triggerCall{Conn: c, Target: 7}) {
		t.Fatalf("calls=%+v want exactly one (9,7)", calls)
	}
	if res.Path != PathPlain {
		t.Fatalf("path=%s want plain", res.Path)
	}
}

func TestNeighborRelative_UsesInlineListNotTable(t *testing.T) {
	e, sink := newTestEngine(t, Options{})
	mustReport(t, e, a4(1, rsrq(2, 30)))

	obs := []RelativeObservation{
		rsrp(4, 20),
		{Cell: 5, HasMetricB: false, MetricB: 90},
		rsrp(6, 45),
		rsrp(8, 45),
	}
	res := mustReport(t, e, NeighborRelative{Connection: 1, Observations: obs})
	if res.Target != 6 {
		t.Fatalf("target=%d want 6", res.Target)
	}
	if calls := sink.Calls(); len(calls) != 1 || calls[0].Target != 6 {
		t.Fatalf("calls=%+v", calls)
	}
}

func TestNeighborRelative_CellZeroIsNoCandidate(t *testing.T) {
	e, sink := newTestEngine(t, Options{})
	mustReport(t, e, a4(1, rsrq(2, 30)))

	res := mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(0, 50)}})
	if res.Outcome != OutcomeNoCandidate {
		t.Fatalf("outcome=%s want %s", res.Outcome, OutcomeNoCandidate)
	}
	if n := len(sink.Calls()); n != 0 {
		t.Fatalf("triggers=%d want 0", n)
	}
}

func TestNeighborRelative_EmptyListWarns(t *testing.T) {
	h := newLevelCounter()
	e, sink := newTestEngine(t, Options{Logger: slog.New(h)})
	mustReport(t, e, a4(1, rsrq(2, 30)))

	res := mustReport(t, e, NeighborRelative{Connection: 1})
	if res.Outcome != OutcomeEmpty || len(sink.Calls()) != 0 {
		t.Fatalf("result=%+v calls=%d", res, len(sink.Calls()))
	}
	if h.Count(slog.LevelWarn) != 1 {
		t.Fatalf("warnings=%d want 1", h.Count(slog.LevelWarn))
	}
}

func TestLatch_HybridPathSticky(t *testing.T) {
	e, sink := newTestEngine(t, Options{})
	mustReport(t, e, a4(1, rsrq(5, 30)))
	mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 10})

	for i := range 2 {
		res := mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(5, 60)}})
		if res.Path != PathHybrid {
			t.Fatalf("round %d path=%s want hybrid", i, res.Path)
		}
	}
	if !e.Latched() {
		t.Fatalf("sticky latch was cleared")
	}
	if n := len(sink.Calls()); n != 2 {
		t.Fatalf("triggers=%d want 2", n)
	}
}

func TestLatch_ResetOnTrigger(t *testing.T) {
	e, _ := newTestEngine(t, Options{LatchMode: LatchResetOnTrigger})
	mustReport(t, e, a4(1, rsrq(5, 30)))
	mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 10})

	first := mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(5, 60)}})
	second := mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(5, 60)}})
	if first.Path != PathHybrid || second.Path != PathPlain {
		t.Fatalf("paths=%s,%s want hybrid,plain", first.Path, second.Path)
	}
	if e.Latched() {
		t.Fatalf("latch still armed")
	}
}

func TestLatch_SharedAcrossConnections(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	mustReport(t, e, a4(1, rsrq(5, 30)))
	mustReport(t, e, a4(2, rsrq(6, 1)))
	mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 10})

	res := mustReport(t, e, NeighborRelative{Connection: 2, Observations: []RelativeObservation{rsrp(6, 60)}})
	if res.Path != PathHybrid {
		t.Fatalf("path=%s want hybrid, latch is engine wide", res.Path)
	}

	e.ResetLatch()
	res = mustReport(t, e, NeighborRelative{Connection: 2, Observations: []RelativeObservation{rsrp(6, 60)}})
	if res.Path != PathPlain {
		t.Fatalf("path=%s want plain after reset", res.Path)
	}
}

func TestFilter_ConsultedAndApplied(t *testing.T) {
	f := &countingFilter{inner: NewBarredCells(5)}
	e, sink := newTestEngine(t, Options{Filter: f})

	mustReport(t, e, a4(1, rsrq(5, 30), rsrq(6, 25)))
	res := mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 10})
	if res.Target != 6 {
		t.Fatalf("A2 best=%d want 6, cell 5 is barred", res.Target)
	}

	res = mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(5, 70), rsrp(6, 40)}})
	if res.Target != 6 || len(sink.Calls()) != 1 {
		t.Fatalf("A3 result=%+v calls=%d", res, len(sink.Calls()))
	}
	if f.Calls() < 4 {
		t.Fatalf("filter calls=%d want at least 4", f.Calls())
	}
}

func TestUnknownEvent_Ignored(t *testing.T) {
	h := newLevelCounter()
	e, sink := newTestEngine(t, Options{Logger: slog.New(h)})

	res, err := e.Report(context.Background(), Unknown{Connection: 1, Tag: "a5"})
	if err != nil || res.Outcome != OutcomeIgnored {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if h.Count(slog.LevelWarn) != 1 || len(sink.Calls()) != 0 {
		t.Fatalf("warnings=%d calls=%d", h.Count(slog.LevelWarn), len(sink.Calls()))
	}
}

func TestRelease_DropsRow(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	ctx := context.Background()
	mustReport(t, e, a4(1, rsrq(5, 30)))

	if err := e.Release(ctx, 1); err != nil {
		t.Fatalf("Release: %v", err)
	}
	res := mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 10})
	if res.Outcome != OutcomeMissingState {
		t.Fatalf("outcome=%s want %s after release", res.Outcome, OutcomeMissingState)
	}
}

type failingTable struct{ *MemoryTable }

func (failingTable) Row(context.Context, ConnID) ([]NeighborSample, bool, error) {
	return nil, false, errors.New("backend down")
}

func TestTableError_Returned(t *testing.T) {
	e, sink := newTestEngine(t, Options{Table: failingTable{NewMemoryTable()}})
	res, err := e.Report(context.Background(), ServingDegraded{Connection: 1, ServingMetricA: 5})
	if err == nil || IsContractViolation(err) {
		t.Fatalf("err=%v want backend error", err)
	}
	if res.Outcome != OutcomeError || len(sink.Calls()) != 0 {
		t.Fatalf("res=%+v calls=%d", res, len(sink.Calls()))
	}
}

func TestConcurrentReports_PerConnection(t *testing.T) {
	e, sink := newTestEngine(t, Options{})
	const conns = 64

	var wg sync.WaitGroup
	for i := 1; i <= conns; i++ {
		wg.Add(1)
		go func(c ConnID) {
			defer wg.Done()
			if _, err := e.Report(context.Background(), a4(c, rsrq(CellID(c), 20))); err != nil {
				t.Errorf("A4 conn %d: %v", c, err)
				return
			}
			if _, err := e.Report(context.Background(), NeighborRelative{Connection: c, Observations: []RelativeObservation{rsrp(CellID(c), 50)}}); err != nil {
				t.Errorf("A3 conn %d: %v", c, err)
			}
		}(ConnID(i))
	}
	wg.Wait()

	calls := sink.Calls()
	if len(calls) != conns {
		t.Fatalf("triggers=%d want %d", len(calls), conns)
	}
	for _, c := range calls {
		if CellID(c.Conn) != c.Target {
			t.Fatalf("trigger %+v crossed connections", c)
		}
	}
}

func TestConcurrentReports_SameConnection(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	const cells = 32

	var wg sync.WaitGroup
	for i := 1; i <= cells; i++ {
		wg.Add(1)
		go func(c CellID) {
			defer wg.Done()
			if _, err := e.Report(context.Background(), a4(1, rsrq(c, uint8(c)))); err != nil {
				t.Errorf("A4 cell %d: %v", c, err)
			}
		}(CellID(i))
	}
	wg.Wait()

	row, ok, _ := e.Neighbors(context.Background(), 1)
	if !ok || len(row) != cells {
		t.Fatalf("row len=%d want %d", len(row), cells)
	}
	seen := map[CellID]bool{}
	for _, s := range row {
		if seen[s.Cell] {
			t.Fatalf("duplicate sample for cell %d", s.Cell)
		}
		seen[s.Cell] = true
		if s.MetricA != uint8(s.Cell) {
			t.Fatalf("torn sample %+v", s)
		}
	}
}

type fakeRegistrar struct {
	next MeasID
	dup  bool
	cfgs []ReportConfig
}

func (f *fakeRegistrar) AddMeasReportConfig(_ context.Context, c ReportConfig) (MeasID, error) {
	f.cfgs = append(f.cfgs, c)
	if !f.dup {
		f.next++
	}
	return f.next, nil
}

func TestInit_RegistersThreeEventKinds(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	reg := &fakeRegistrar{}
	if err := e.Init(context.Background(), reg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if len(reg.cfgs) != 3 {
		t.Fatalf("configs=%d want 3", len(reg.cfgs))
	}

	a2, a3, a4 := reg.cfgs[0], reg.cfgs[1], reg.cfgs[2]
	if a2.Event != KindServingDegraded || a2.Threshold1 == nil || a2.Threshold1.Range != 30 || a2.Threshold1.Choice != QuantityRSRQ {
		t.Fatalf("A2 config=%+v", a2)
	}
	if a3.Event != KindNeighborRelative || a3.Hysteresis != 6 || a3.TimeToTrigger.Milliseconds() != 256 || a3.TriggerQuantity != QuantityRSRP {
		t.Fatalf("A3 config=%+v", a3)
	}
	if a4.Event != KindNeighborAbsolute || a4.Threshold1 == nil || a4.Threshold1.Range != 0 {
		t.Fatalf("A4 config=%+v", a4)
	}

	for id, want := range map[MeasID]EventKind{1: KindServingDegraded, 2: KindNeighborRelative, 3: KindNeighborAbsolute} {
		got, ok := e.KindForMeasID(id)
		if !ok || got != want {
			t.Fatalf("meas id %d -> %s,%v want %s", id, got, ok, want)
		}
	}
	if _, ok := e.KindForMeasID(9); ok {
		t.Fatalf("unexpected kind for unregistered meas id")
	}
}

func TestInit_RejectsDuplicateIDs(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	err := e.Init(context.Background(), &fakeRegistrar{next: 4, dup: true})
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

type errRegistrar struct{}

func (errRegistrar) AddMeasReportConfig(context.Context, ReportConfig) (MeasID, error) {
	return 0, fmt.Errorf("source unavailable")
}

func TestInit_PropagatesRegistrarError(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	if err := e.Init(context.Background(), errRegistrar{}); err == nil {
		t.Fatalf("expected error")
	}
}

type pathSink struct {
	mu    sync.Mutex
	paths []DecisionPath
}

func (s *pathSink) TriggerHandover(ctx context.Context, _ ConnID, _ CellID) {
	s.mu.Lock()
	s.paths = append(s.paths, PathFromContext(ctx))
	s.mu.Unlock()
}

func TestTrigger_PathInContext(t *testing.T) {
	sink := &pathSink{}
	e, err := New(DefaultPolicy(), sink, Options{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustReport(t, e, a4(1, rsrq(5, 30)))
	mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(5, 60)}})
	mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 10})
	mustReport(t, e, NeighborRelative{Connection: 1, Observations: []RelativeObservation{rsrp(5, 60)}})

	if len(sink.paths) != 2 || sink.paths[0] != PathPlain || sink.paths[1] != PathHybrid {
		t.Fatalf("paths=%v want [plain hybrid]", sink.paths)
	}
	if got := PathFromContext(context.Background()); got != PathNone {
		t.Fatalf("empty context path=%q", got)
	}
}

func TestServingDegraded_CellZeroNeverTarget(t *testing.T) {
	ctx := context.Background()
	table := NewMemoryTable()
	if err := table.UpdateMetricA(ctx, 1, []CellValue{{Cell: 0, Value: 35}, {Cell: 4, Value: 29}}); err != nil {
		t.Fatal(err)
	}
	if err := table.UpdateMetricA(ctx, 2, []CellValue{{Cell: 0, Value: 35}}); err != nil {
		t.Fatal(err)
	}
	e, sink := newTestEngine(t, Options{Table: table, ServingDegradedTriggers: true})

	res := mustReport(t, e, ServingDegraded{Connection: 2, ServingMetricA: 28})
	if res.Outcome != OutcomeNoCandidate || e.Latched() {
		t.Fatalf("outcome=%s latched=%v, want no candidate and unarmed", res.Outcome, e.Latched())
	}

	res = mustReport(t, e, ServingDegraded{Connection: 1, ServingMetricA: 28})
	if res.Outcome != OutcomeTriggered || res.Target != 4 {
		t.Fatalf("outcome=%s target=%d want triggered to 4", res.Outcome, res.Target)
	}
	if calls := sink.Calls(); len(calls) != 1 || calls[0].Target != 4 {
		t.Fatalf("calls=%+v", calls)
	}
}

func TestNeighborAbsolute_CellZeroSkipped(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	res := mustReport(t, e, a4(1, rsrq(0, 35), rsrq(3, 20)))
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome=%s", res.Outcome)
	}
	row, _, _ := e.Neighbors(ctx, 1)
	if len(row) != 1 || row[0].Cell != 3 {
		t.Fatalf("row=%+v want only cell 3", row)
	}

	if res := mustReport(t, e, a4(2, rsrq(0, 35))); res.Outcome != OutcomeEmpty {
		t.Fatalf("outcome=%s want %s", res.Outcome, OutcomeEmpty)
	}
	if _, ok, _ := e.Neighbors(ctx, 2); ok {
		t.Fatal("cell 0 alone must not create a row")
	}
}
