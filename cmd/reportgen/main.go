package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/httpclient"
	"github.com/mohammed-shakir/hybrid-handover/internal/wire"
)

type Config struct {
	Mode     string
	Target   string
	Brokers  []string
	Topic    string
	Conns    int
	Interval time.Duration
	Duration time.Duration
	Seed     int64
	Release  bool
	Sim      simConfig
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadConfig() Config {
	cfg := Config{Sim: defaultSimConfig()}
	var brokers string
	var thresh uint
	flag.StringVar(&cfg.Mode, "mode", "http", "Delivery: http|kafka")
	flag.StringVar(&cfg.Target, "target", "http://localhost:8090/v1/reports", "Report endpoint for http mode")
	flag.StringVar(&brokers, "brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "Kafka brokers (comma separated)")
	flag.StringVar(&cfg.Topic, "topic", getenv("KAFKA_REPORTS_TOPIC", "measurement-reports"), "Report topic for kafka mode")
	flag.IntVar(&cfg.Conns, "conns", 16, "Simulated connections")
	flag.DurationVar(&cfg.Interval, "interval", 240*time.Millisecond, "Report interval")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "Run duration")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Random seed (0 = time based)")
	flag.BoolVar(&cfg.Release, "release", true, "Release every connection at the end")
	flag.IntVar(&cfg.Sim.Cells, "cells", cfg.Sim.Cells, "Cells on the line")
	flag.Float64Var(&cfg.Sim.CellSpacing, "spacing", cfg.Sim.CellSpacing, "Metres between cells")
	flag.Float64Var(&cfg.Sim.SpeedMps, "speed", cfg.Sim.SpeedMps, "UE speed in m/s")
	flag.Float64Var(&cfg.Sim.HysteresisDb, "hysteresis", cfg.Sim.HysteresisDb, "A3 hysteresis in dB")
	flag.UintVar(&thresh, "serving-threshold", uint(cfg.Sim.ServingThresh), "A2 RSRQ threshold (0-34)")
	flag.Parse()

	cfg.Brokers = strings.Split(brokers, ",")
	cfg.Sim.ServingThresh = uint8(min(thresh, maxRSRQ))
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg
}

type emitter interface {
	emit(ctx context.Context, r wire.Report) error
	Close() error
}

type kafkaEmitter struct {
	prod  sarama.SyncProducer
	topic string
}

func newKafkaEmitter(brokers []string, topic string) (*kafkaEmitter, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Version = sarama.V3_6_0_0
	prod, err := sarama.NewSyncProducer(brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("producer create: %w", err)
	}
	return &kafkaEmitter{prod: prod, topic: topic}, nil
}

func (k *kafkaEmitter) emit(_ context.Context, r wire.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	// keyed by connection so one partition sees a connection's reports in order
	_, _, err = k.prod.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(r.Conn, 10)),
		Value: sarama.ByteEncoder(b),
	})
	return err
}

func (k *kafkaEmitter) Close() error { return k.prod.Close() }

type httpEmitter struct {
	url    string
	client *http.Client
}

func (h *httpEmitter) emit(ctx context.Context, r wire.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (h *httpEmitter) Close() error { return nil }

func main() {
	cfg := loadConfig()

	var (
		em  emitter
		err error
	)
	switch cfg.Mode {
	case "kafka":
		em, err = newKafkaEmitter(cfg.Brokers, cfg.Topic)
	case "http":
		em = &httpEmitter{url: cfg.Target, client: httpclient.NewOutbound(5 * time.Second)}
	default:
		err = fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil {
		log.Fatalf("reportgen: %v", err)
	}
	defer func() { _ = em.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	sim := newSimulator(cfg.Sim, cfg.Conns, cfg.Seed)
	log.Printf("reportgen: mode=%s conns=%d cells=%d interval=%s seed=%d",
		cfg.Mode, cfg.Conns, cfg.Sim.Cells, cfg.Interval, cfg.Seed)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	counts := map[string]int{}
	var failures int
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			for _, r := range sim.step(cfg.Interval) {
				if err := em.emit(ctx, r); err != nil {
					if ctx.Err() != nil {
						break loop
					}
					failures++
					log.Printf("WARN: conn %d %s: %v", r.Conn, r.Event, err)
					continue
				}
				counts[r.Event]++
			}
		}
	}

	if cfg.Release {
		rctx, rcancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, u := range sim.ues {
			if err := em.emit(rctx, wire.Report{Conn: u.conn, Event: wire.EventRelease}); err != nil {
				failures++
			}
		}
		rcancel()
	}
	log.Printf("reportgen: sent a4=%d a2=%d a3=%d failures=%d",
		counts["a4"], counts["a2"], counts["a3"], failures)
}
