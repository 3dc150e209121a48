// Package kafka consumes measurement reports from a Kafka topic and feeds
// them to the handover engine.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
	mylog "github.com/mohammed-shakir/hybrid-handover/internal/logger"
	"github.com/mohammed-shakir/hybrid-handover/internal/wire"
)

// Engine is the part of handover.Engine the runner drives.
type Engine interface {
	Report(ctx context.Context, r handover.Report) (handover.Result, error)
	Release(ctx context.Context, conn handover.ConnID) error
	KindForMeasID(id handover.MeasID) (handover.EventKind, bool)
}

type Runner struct {
	log      *slog.Logger
	cfg      Config
	engine   Engine
	ms       *metricSet
	seq      *seqDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
}

func New(cfg Config, e Engine, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:    opts.Logger,
		cfg:    cfg,
		engine: e,
		ms:     newMetricSet(opts.Register),
		seq:    newSeqDedupe(cfg.DedupeSize),
		assign: map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("report ingest disabled")
		return nil
	}
	if r.engine == nil {
		return errors.New("kafka runner: engine dependency is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range sess.Claims() {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka report ingest started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka report ingest stopped")
}

// Readiness reports ready once the group assigned partitions. A disabled
// runner is always ready.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.cfg.Enabled {
		return true, nil
	}
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// handleMessage returns an error only for failures worth redelivering.
// Malformed and invalid reports are logged, counted and committed.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	if !msg.Timestamp.IsZero() {
		r.ms.lagGauge.Set(time.Since(msg.Timestamp).Seconds())
	}

	w, err := wire.Decode(msg.Value)
	if err != nil {
		r.ms.msgs.WithLabelValues("decode_error").Inc()
		r.log.WarnContext(ctx, "dropping undecodable report",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	conn := handover.ConnID(w.Conn)
	ctx = mylog.WithConn(ctx, w.Conn)

	if w.IsRelease() {
		err := r.engine.Release(ctx, conn)
		if err == nil {
			r.seq.forget(conn)
		}
		r.observe(wire.EventRelease, err, time.Since(start))
		return err
	}

	if r.seq.duplicate(conn, w.Seq) {
		r.ms.msgs.WithLabelValues("duplicate").Inc()
		return nil
	}

	rep, err := w.ToReport(r.engine)
	if err != nil {
		r.ms.msgs.WithLabelValues("invalid").Inc()
		r.log.WarnContext(ctx, "dropping invalid report", "err", err)
		r.seq.commit(conn, w.Seq)
		return nil
	}
	ctx = mylog.WithEvent(ctx, string(rep.Kind()))

	_, err = r.engine.Report(ctx, rep)
	if handover.IsContractViolation(err) {
		r.ms.msgs.WithLabelValues("violation").Inc()
		r.seq.commit(conn, w.Seq)
		return nil
	}
	r.observe(string(rep.Kind()), err, time.Since(start))
	if err != nil {
		return err
	}
	r.seq.commit(conn, w.Seq)
	return nil
}

func (r *Runner) observe(event string, err error, dur time.Duration) {
	if err != nil {
		r.ms.msgs.WithLabelValues("error").Inc()
	} else {
		r.ms.msgs.WithLabelValues("ok").Inc()
	}
	r.ms.proc.WithLabelValues(event).Observe(dur.Seconds())
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
