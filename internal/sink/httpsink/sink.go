// Package httpsink delivers handover triggers to the session layer over HTTP.
package httpsink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/httpclient"
	"github.com/mohammed-shakir/hybrid-handover/internal/core/observability"
	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
	mylog "github.com/mohammed-shakir/hybrid-handover/internal/logger"
	"github.com/mohammed-shakir/hybrid-handover/internal/wire"
)

const sinkName = "http"

type Options struct {
	Logger  *slog.Logger
	Client  *http.Client
	Timeout time.Duration
	Queue   int
	Workers int
}

// Sink POSTs wire.Trigger JSON to a fixed URL from a small worker pool.
// A full queue drops the trigger.
type Sink struct {
	log     *slog.Logger
	url     string
	client  *http.Client
	timeout time.Duration
	jobs    chan job
	wg      sync.WaitGroup
	once    sync.Once
}

type job struct {
	reqID string
	tr    wire.Trigger
}

func New(url string, opts Options) (*Sink, error) {
	if url == "" {
		return nil, errors.New("httpsink: url is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Client == nil {
		opts.Client = httpclient.NewOutbound(opts.Timeout)
	}
	if opts.Queue <= 0 {
		opts.Queue = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	s := &Sink{
		log:     opts.Logger,
		url:     url,
		client:  opts.Client,
		timeout: opts.Timeout,
		jobs:    make(chan job, opts.Queue),
	}
	for range opts.Workers {
		s.wg.Add(1)
		go s.worker()
	}
	return s, nil
}

func (s *Sink) TriggerHandover(ctx context.Context, conn handover.ConnID, target handover.CellID) {
	j := job{
		reqID: mylog.RequestID(ctx),
		tr:    wire.NewTrigger(conn, target, handover.PathFromContext(ctx), time.Now()),
	}
	select {
	case s.jobs <- j:
	default:
		observability.ObserveSink(sinkName, "dropped")
		s.log.WarnContext(ctx, "httpsink: queue full, dropping trigger",
			"conn", uint64(conn), "target", int(target))
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		ctx = mylog.WithRequestID(ctx, j.reqID)
		err := s.post(ctx, j.tr)
		cancel()
		if err != nil {
			observability.ObserveSink(sinkName, "error")
			s.log.ErrorContext(ctx, "httpsink: deliver trigger",
				"conn", j.tr.Conn, "target", int(j.tr.Target), "err", err)
			continue
		}
		observability.ObserveSink(sinkName, "ok")
	}
}

func (s *Sink) post(ctx context.Context, tr wire.Trigger) error {
	b, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := mylog.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("session layer returned %s", resp.Status)
	}
	return nil
}

// Close stops accepting triggers and waits for queued ones to be delivered.
func (s *Sink) Close() error {
	s.once.Do(func() { close(s.jobs) })
	s.wg.Wait()
	return nil
}
