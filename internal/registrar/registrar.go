// Package registrar implements handover.Registrar for the measurement
// sources the service can talk to.
package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

var ErrIDsExhausted = errors.New("registrar: meas id space exhausted")

// ids hands out sequential meas ids starting at 1.
type ids struct {
	mu   sync.Mutex
	last handover.MeasID
}

func (i *ids) next() (handover.MeasID, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.last == math.MaxUint8 {
		return 0, ErrIDsExhausted
	}
	i.last++
	return i.last, nil
}

// Static assigns ids locally and keeps the requested configs. It serves a
// source configured out of band, and tests.
type Static struct {
	ids  ids
	mu   sync.Mutex
	cfgs map[handover.MeasID]handover.ReportConfig
}

func NewStatic() *Static {
	return &Static{cfgs: map[handover.MeasID]handover.ReportConfig{}}
}

func (s *Static) AddMeasReportConfig(_ context.Context, cfg handover.ReportConfig) (handover.MeasID, error) {
	id, err := s.ids.next()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.cfgs[id] = cfg
	s.mu.Unlock()
	return id, nil
}

func (s *Static) Config(id handover.MeasID) (handover.ReportConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cfgs[id]
	return c, ok
}

// Message is what the Kafka registrar publishes for each config.
type Message struct {
	MeasID handover.MeasID `json:"meas_id"`
	handover.ReportConfig
}

// Kafka publishes each report config on a topic the measurement source
// consumes. The send is synchronous so startup fails when the broker does
// not accept the request.
type Kafka struct {
	log   *slog.Logger
	prod  sarama.SyncProducer
	topic string
	ids   ids
}

func NewKafka(prod sarama.SyncProducer, topic string, log *slog.Logger) *Kafka {
	if log == nil {
		log = slog.Default()
	}
	return &Kafka{log: log, prod: prod, topic: topic}
}

// DialKafka creates the sync producer and the registrar.
func DialKafka(brokers []string, topic string, log *slog.Logger) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("registrar: create sync producer: %w", err)
	}
	return NewKafka(prod, topic, log), nil
}

func (k *Kafka) AddMeasReportConfig(ctx context.Context, cfg handover.ReportConfig) (handover.MeasID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id, err := k.ids.next()
	if err != nil {
		return 0, err
	}
	b, err := json.Marshal(Message{MeasID: id, ReportConfig: cfg})
	if err != nil {
		return 0, fmt.Errorf("registrar: marshal %s config: %w", cfg.Event, err)
	}
	part, off, err := k.prod.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.Itoa(int(id))),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, fmt.Errorf("registrar: publish %s config: %w", cfg.Event, err)
	}
	k.log.DebugContext(ctx, "published report config",
		"event", string(cfg.Event), "meas_id", int(id), "partition", part, "offset", off)
	return id, nil
}

func (k *Kafka) Close() error {
	if err := k.prod.Close(); err != nil {
		return fmt.Errorf("registrar: close producer: %w", err)
	}
	return nil
}
