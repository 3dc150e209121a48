package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/config"
	"github.com/mohammed-shakir/hybrid-handover/internal/core/health"
	"github.com/mohammed-shakir/hybrid-handover/internal/core/observability"
	"github.com/mohammed-shakir/hybrid-handover/internal/core/router"
	"github.com/mohammed-shakir/hybrid-handover/internal/core/server"
	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
	ingest "github.com/mohammed-shakir/hybrid-handover/internal/ingest/kafka"
	"github.com/mohammed-shakir/hybrid-handover/internal/logger"
	"github.com/mohammed-shakir/hybrid-handover/internal/metrics"
	"github.com/mohammed-shakir/hybrid-handover/internal/registrar"
	"github.com/mohammed-shakir/hybrid-handover/internal/sink"
	"github.com/mohammed-shakir/hybrid-handover/internal/sink/httpsink"
	"github.com/mohammed-shakir/hybrid-handover/internal/sink/kafkasink"
	"github.com/mohammed-shakir/hybrid-handover/internal/store/neighbortable"
	"github.com/mohammed-shakir/hybrid-handover/internal/store/redisstore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	policyFlag := flag.String("policy", "", "policy YAML file")
	flag.Parse()

	if *policyFlag != "" {
		_ = os.Setenv("POLICY_FILE", strings.TrimSpace(*policyFlag))
	}
	cfg, cfgErr := config.Load()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "hybrid-handover",
		Component: "handoverd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if cfgErr != nil {
		appLog.Error("invalid configuration", "err", cfgErr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mp *metrics.Provider
	if cfg.Metrics.Enabled {
		mp = metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(mp.Registerer(), true)
		mp.ExposePolicy(cfg.Policy, handover.LatchMode(cfg.LatchMode))
	}
	observability.ExposeBuildInfo(Version)
	if cfg.A2Triggers {
		observability.SetAlgorithm("hybrid_a2_direct")
	}

	appLog.Info("starting handoverd",
		"addr", cfg.Addr,
		"version", Version,
		"serving_threshold", int(cfg.Policy.ServingThreshold),
		"neighbor_offset", int(cfg.Policy.NeighborOffset),
		"hysteresis_db", cfg.Policy.HysteresisDb,
		"ttt", cfg.Policy.TimeToTrigger,
		"latch_mode", cfg.LatchMode,
		"table", cfg.Table.Driver,
		"sinks", cfg.Sinks.Drivers)

	var (
		table handover.NeighborTable
		deps  []health.Pinger
	)
	if cfg.Table.Driver == "redis" {
		rc, err := redisstore.New(ctx, cfg.Table.RedisAddr,
			redisstore.WithPoolSize(cfg.Table.RedisPoolSize),
			redisstore.WithMinIdleConns(cfg.Table.RedisMinIdleConns),
			redisstore.WithDialTimeout(cfg.Table.RedisDialTimeout),
			redisstore.WithReadTimeout(cfg.Table.RedisReadTimeout),
			redisstore.WithWriteTimeout(cfg.Table.RedisWriteTimeout),
		)
		if err != nil {
			appLog.Error("redis neighbour table unavailable", "addr", cfg.Table.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		table = neighbortable.NewRedis(rc, neighbortable.Options{TTL: cfg.Table.TTL, OpTimeout: cfg.Table.OpTimeout})
		deps = append(deps, rc)
	}

	failed := handover.NewFailedTargets(cfg.FailedTargetSize, cfg.FailedTargetTTL)
	filter := handover.AllOf(handover.NewBarredCells(cfg.BarredCells...), failed)

	sinks, err := buildSinks(cfg, appLog)
	if err != nil {
		appLog.Error("trigger sink setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			appLog.Error("closing trigger sinks", "err", err)
		}
	}()

	engine, err := handover.New(cfg.Policy, sinks, handover.Options{
		Logger:                  appLog.With("component", "engine"),
		Table:                   table,
		Filter:                  filter,
		LatchMode:               handover.LatchMode(cfg.LatchMode),
		ServingDegradedTriggers: cfg.A2Triggers,
		StrictContracts:         cfg.Strict,
	})
	if err != nil {
		appLog.Error("engine setup failed", "err", err)
		return 1
	}

	reg, closeReg, err := buildRegistrar(cfg, appLog)
	if err != nil {
		appLog.Error("registrar setup failed", "err", err)
		return 1
	}
	defer closeReg()
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = engine.Init(initCtx, reg)
	cancel()
	if err != nil {
		appLog.Error("measurement registration failed", "err", err)
		return 1
	}

	icfg := ingest.DefaultConfig()
	icfg.Enabled = cfg.Ingest.Enabled
	icfg.Brokers = cfg.Ingest.Brokers
	if cfg.Ingest.Topic != "" {
		icfg.Topic = cfg.Ingest.Topic
	}
	if cfg.Ingest.GroupID != "" {
		icfg.GroupID = cfg.Ingest.GroupID
	}
	runner := ingest.New(icfg, engine, ingest.Options{Logger: appLog.With("component", "ingest"), Register: registerer(mp)})
	if err := runner.Start(ctx); err != nil {
		appLog.Error("report ingest failed to start", "err", err)
		return 1
	}
	defer runner.Stop()

	d := server.Deps{
		API:       router.New(appLog, engine, failed),
		Readiness: health.Readiness(runner, deps...),
	}
	if mp != nil {
		d.Metrics = mp.Handler()
	}
	if err := server.Run(ctx, cfg, appLog, d); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func buildSinks(cfg config.Config, log *slog.Logger) (sink.Fanout, error) {
	var out sink.Fanout
	for _, d := range cfg.Sinks.Drivers {
		switch d {
		case "log":
			out = append(out, sink.NewLog(log.With("component", "sink")))
		case "kafka":
			p, err := kafkasink.NewPublisher(cfg.KafkaBrokers, cfg.Sinks.KafkaTopic, cfg.Sinks.QueueSize, log)
			if err != nil {
				_ = out.Close()
				return nil, err
			}
			out = append(out, p)
		case "http":
			s, err := httpsink.New(cfg.Sinks.HTTPURL, httpsink.Options{
				Logger:  log,
				Timeout: cfg.Sinks.HTTPTimeout,
				Queue:   cfg.Sinks.QueueSize,
			})
			if err != nil {
				_ = out.Close()
				return nil, err
			}
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append(out, sink.NewLog(log))
	}
	return out, nil
}

func buildRegistrar(cfg config.Config, log *slog.Logger) (handover.Registrar, func(), error) {
	if cfg.MeasConfigTopic == "" {
		return registrar.NewStatic(), func() {}, nil
	}
	k, err := registrar.DialKafka(cfg.KafkaBrokers, cfg.MeasConfigTopic, log)
	if err != nil {
		return nil, nil, err
	}
	return k, func() { _ = k.Close() }, nil
}

func registerer(mp *metrics.Provider) prometheus.Registerer {
	if mp == nil {
		return nil
	}
	return mp.Registerer()
}
