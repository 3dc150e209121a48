// Package kafkasink publishes handover triggers to Kafka for the session layer.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/observability"
	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
	"github.com/mohammed-shakir/hybrid-handover/internal/wire"
)

const sinkName = "kafka"

type Publisher struct {
	log      *slog.Logger
	topic    string
	events   chan wire.Trigger
	prod     sarama.AsyncProducer
	stopped  chan struct{}
	errDone  chan struct{}
	succDone chan struct{}
	now      func() time.Time

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkasink: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, log), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		log:      log,
		topic:    topic,
		events:   make(chan wire.Trigger, queueSize),
		prod:     prod,
		stopped:  make(chan struct{}),
		errDone:  make(chan struct{}),
		succDone: make(chan struct{}),
		now:      time.Now,
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("kafkasink: marshal trigger", "err", err)
				observability.ObserveSink(sinkName, "error")
				continue
			}
			// keyed by connection so one connection's triggers stay ordered
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(strconv.FormatUint(ev.Conn, 10)),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	// ok is counted on broker acknowledgement, not on hand-off
	go func() {
		defer close(p.succDone)
		for range p.prod.Successes() {
			observability.ObserveSink(sinkName, "ok")
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Error("kafkasink: producer error", "err", err)
				observability.ObserveSink(sinkName, "error")
			}
		}
	}()

	return p
}

// TriggerHandover enqueues the trigger and never blocks the decision path.
func (p *Publisher) TriggerHandover(ctx context.Context, conn handover.ConnID, target handover.CellID) {
	ev := wire.NewTrigger(conn, target, handover.PathFromContext(ctx), p.now())
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.ObserveSink(sinkName, "dropped")
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.ObserveSink(sinkName, "dropped")
		p.log.WarnContext(ctx, "kafkasink: queue full, dropping trigger",
			"conn", uint64(conn), "target", int(target))
	}
}

// Close flushes queued triggers and closes the producer. Safe to call twice.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
		<-p.stopped

		err := p.prod.Close()
		<-p.errDone
		<-p.succDone
		if err != nil {
			p.closeErr = fmt.Errorf("kafkasink: close producer: %w", err)
		}
	})
	return p.closeErr
}
