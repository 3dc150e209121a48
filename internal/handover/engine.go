package handover

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/observability"
)

// TriggerSink executes handovers. The engine does not wait for or inspect
// the outcome; the session layer owns the procedure from here on.
type TriggerSink interface {
	TriggerHandover(ctx context.Context, conn ConnID, target CellID)
}

type DecisionPath string

const (
	PathNone            DecisionPath = ""
	PathPlain           DecisionPath = "plain"
	PathHybrid          DecisionPath = "hybrid"
	PathServingDegraded DecisionPath = "serving_degraded"
)

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeArmed        Outcome = "armed"
	OutcomeTriggered    Outcome = "triggered"
	OutcomeNoCandidate  Outcome = "no_candidate"
	OutcomeBelowOffset  Outcome = "below_offset"
	OutcomeMissingState Outcome = "missing_state"
	OutcomeEmpty        Outcome = "empty"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeViolation    Outcome = "contract_violation"
	OutcomeError        Outcome = "error"
)

// Result describes what one report did.
type Result struct {
	Kind    EventKind    `json:"event"`
	Outcome Outcome      `json:"outcome"`
	Target  CellID       `json:"target,omitempty"`
	Path    DecisionPath `json:"path,omitempty"`
}

type Options struct {
	Logger *slog.Logger
	// defaults to a MemoryTable
	Table NeighborTable
	// defaults to AcceptAll
	Filter    NeighborFilter
	LatchMode LatchMode
	// A2 success also triggers the handover instead of only arming the latch
	ServingDegradedTriggers bool
	// panic on contract violations instead of returning them
	StrictContracts bool
}

type Engine struct {
	log        *slog.Logger
	policy     PolicyConfig
	table      NeighborTable
	filter     NeighborFilter
	sink       TriggerSink
	latchMode  LatchMode
	a2Triggers bool
	strict     bool

	latch atomic.Bool
	locks connLocks

	measMu    sync.RWMutex
	measKinds map[MeasID]EventKind
}

func New(policy PolicyConfig, sink TriggerSink, opts Options) (*Engine, error) {
	if sink == nil {
		return nil, errors.New("handover: trigger sink is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Table == nil {
		opts.Table = NewMemoryTable()
	}
	if opts.Filter == nil {
		opts.Filter = AcceptAll
	}
	mode, err := ParseLatchMode(string(opts.LatchMode))
	if err != nil {
		return nil, err
	}
	e := &Engine{
		log:        opts.Logger,
		policy:     policy,
		table:      opts.Table,
		filter:     opts.Filter,
		sink:       sink,
		latchMode:  mode,
		a2Triggers: opts.ServingDegradedTriggers,
		strict:     opts.StrictContracts,
		measKinds:  map[MeasID]EventKind{},
	}
	observability.SetLatch(false)
	return e, nil
}

func (e *Engine) Policy() PolicyConfig { return e.policy }

// Report classifies r and runs the matching handler. Only contract
// violations and table failures are returned; every other condition is
// handled here and reported through the Result.
func (e *Engine) Report(ctx context.Context, r Report) (Result, error) {
	start := time.Now()

	var (
		res Result
		err error
	)
	switch rep := r.(type) {
	case NeighborAbsolute:
		res, err = e.handleNeighborAbsolute(ctx, rep)
	case ServingDegraded:
		res, err = e.handleServingDegraded(ctx, rep)
	case NeighborRelative:
		res, err = e.handleNeighborRelative(ctx, rep)
	case Unknown:
		res = Result{Kind: KindUnknown, Outcome: OutcomeIgnored}
		e.log.WarnContext(ctx, "ignoring report with unknown event kind",
			"conn", uint64(rep.Connection), "tag", rep.Tag)
	default:
		res = Result{Kind: KindUnknown, Outcome: OutcomeIgnored}
		e.log.WarnContext(ctx, "ignoring unsupported report")
	}

	if err != nil {
		if IsContractViolation(err) {
			res.Outcome = OutcomeViolation
			e.log.ErrorContext(ctx, "invalid measurement report", "event", string(res.Kind), "err", err)
			observability.ObserveReport(string(res.Kind), string(res.Outcome), time.Since(start).Seconds())
			if e.strict {
				panic(err)
			}
			return res, err
		}
		res.Outcome = OutcomeError
		e.log.ErrorContext(ctx, "report processing failed", "event", string(res.Kind), "err", err)
	}
	observability.ObserveReport(string(res.Kind), string(res.Outcome), time.Since(start).Seconds())
	return res, err
}

// Release drops the neighbour row of a torn-down connection.
func (e *Engine) Release(ctx context.Context, conn ConnID) error {
	unlock := e.locks.lock(conn)
	err := e.table.Drop(ctx, conn)
	unlock()
	if err != nil {
		return err
	}
	e.observeTableSize()
	e.log.DebugContext(ctx, "released connection", "conn", uint64(conn))
	return nil
}

// Neighbors returns the current neighbour view of conn in insertion order.
func (e *Engine) Neighbors(ctx context.Context, conn ConnID) ([]NeighborSample, bool, error) {
	unlock := e.locks.lock(conn)
	defer unlock()
	return e.table.Row(ctx, conn)
}

func (e *Engine) Latched() bool { return e.latch.Load() }

func (e *Engine) ResetLatch() {
	e.latch.Store(false)
	observability.SetLatch(false)
}

func (e *Engine) armLatch() {
	e.latch.Store(true)
	observability.SetLatch(true)
}

func (e *Engine) trigger(ctx context.Context, conn ConnID, target CellID, path DecisionPath) {
	e.log.InfoContext(ctx, "trigger handover",
		"conn", uint64(conn), "target", int(target), "path", string(path))
	observability.IncTrigger(string(path))
	e.sink.TriggerHandover(context.WithValue(ctx, pathKey{}, path), conn, target)
}

type pathKey struct{}

// PathFromContext returns the decision path of the trigger being delivered,
// for sinks that publish it.
func PathFromContext(ctx context.Context) DecisionPath {
	if p, ok := ctx.Value(pathKey{}).(DecisionPath); ok {
		return p
	}
	return PathNone
}

type sizer interface{ Size() int }

func (e *Engine) observeTableSize() {
	if s, ok := e.table.(sizer); ok {
		observability.SetTableConnections(s.Size())
	}
}

type connLocks struct {
	shards [numShards]sync.Mutex
}

// lock serializes all work on one connection; unrelated connections share
// a stripe only on hash collision.
func (l *connLocks) lock(conn ConnID) (unlock func()) {
	m := &l.shards[shardOf(conn)]
	m.Lock()
	return m.Unlock
}
