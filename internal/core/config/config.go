package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

type IngestCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type SinkCfg struct {
	Drivers     []string
	KafkaTopic  string
	HTTPURL     string
	HTTPTimeout time.Duration
	QueueSize   int
}

type TableCfg struct {
	Driver    string
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration

	RedisPoolSize     int
	RedisMinIdleConns int
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	Policy     handover.PolicyConfig
	PolicyFile string
	LatchMode  string
	A2Triggers bool
	Strict     bool

	BarredCells      []handover.CellID
	FailedTargetTTL  time.Duration
	FailedTargetSize int

	Table   TableCfg
	Ingest  IngestCfg
	Sinks   SinkCfg
	Metrics MetricsCfg

	// empty disables registration over Kafka; ids are then assigned locally
	MeasConfigTopic string
	KafkaBrokers    []string

	// parse failures of the policy keys, reported by Load
	policyErr error
}

func FromEnv() Config {
	policy, policyErr := policyFromEnv(handover.DefaultPolicy())
	brokers := split(getenv("KAFKA_BROKERS", "localhost:9092"))

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		Policy:     policy,
		policyErr:  policyErr,
		PolicyFile: getenv("POLICY_FILE", ""),
		LatchMode:  getenv("LATCH_MODE", string(handover.LatchSticky)),
		A2Triggers: getbool("A2_TRIGGERS", false),
		Strict:     getbool("STRICT_CONTRACTS", false),

		BarredCells:      parseCells(getenv("BARRED_CELLS", "")),
		FailedTargetTTL:  getduration("FAILED_TARGET_TTL", 30*time.Second),
		FailedTargetSize: getint("FAILED_TARGET_SIZE", 1024),

		Table: TableCfg{
			Driver:    strings.ToLower(getenv("TABLE_DRIVER", "memory")),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("TABLE_TTL", 10*time.Minute),
			OpTimeout: getduration("TABLE_OP_TIMEOUT", 250*time.Millisecond),

			RedisPoolSize:     getint("REDIS_POOL_SIZE", 64),
			RedisMinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 4),
			RedisDialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			RedisReadTimeout:  getduration("REDIS_READ_TIMEOUT", time.Second),
			RedisWriteTimeout: getduration("REDIS_WRITE_TIMEOUT", time.Second),
		},
		Ingest: IngestCfg{
			Enabled: getbool("INGEST_ENABLED", false),
			Brokers: brokers,
			Topic:   getenv("KAFKA_REPORTS_TOPIC", "measurement-reports"),
			GroupID: getenv("KAFKA_GROUP_ID", "handover-decider"),
		},
		Sinks: SinkCfg{
			Drivers:     split(strings.ToLower(getenv("SINK_DRIVERS", "log"))),
			KafkaTopic:  getenv("KAFKA_TRIGGERS_TOPIC", "handover-triggers"),
			HTTPURL:     getenv("SINK_HTTP_URL", ""),
			HTTPTimeout: getduration("SINK_HTTP_TIMEOUT", 2*time.Second),
			QueueSize:   getint("SINK_QUEUE_SIZE", 1024),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", true),
			Addr:    getenv("METRICS_ADDR", ""),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},

		MeasConfigTopic: getenv("KAFKA_MEASCONFIG_TOPIC", ""),
		KafkaBrokers:    brokers,
	}
}

// policyFromEnv overrides def with the policy keys that are set. A key that
// does not parse keeps its default and is reported in the returned error.
func policyFromEnv(def handover.PolicyConfig) (handover.PolicyConfig, error) {
	var errs []error
	out := def
	if v, ok := os.LookupEnv("SERVING_THRESHOLD"); ok && v != "" {
		n, err := parseUint8(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SERVING_THRESHOLD: %w", err))
		} else {
			out.ServingThreshold = n
		}
	}
	if v, ok := os.LookupEnv("NEIGHBOR_OFFSET"); ok && v != "" {
		n, err := parseUint8(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("NEIGHBOR_OFFSET: %w", err))
		} else {
			out.NeighborOffset = n
		}
	}
	if v, ok := os.LookupEnv("HYSTERESIS_DB"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("HYSTERESIS_DB: %w", err))
		} else {
			out.HysteresisDb = f
		}
	}
	if v, ok := os.LookupEnv("TIME_TO_TRIGGER"); ok && v != "" {
		d, err := parseTTT(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TIME_TO_TRIGGER: %w", err))
		} else {
			out.TimeToTrigger = d
		}
	}
	return out, errors.Join(errs...)
}

// Load reads the environment and applies POLICY_FILE on top, then validates
// the resulting policy.
func Load() (Config, error) {
	cfg := FromEnv()
	if cfg.policyErr != nil {
		return cfg, fmt.Errorf("policy: %w", cfg.policyErr)
	}
	if cfg.PolicyFile != "" {
		p, err := LoadPolicyFile(cfg.PolicyFile, cfg.Policy)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = p
	}
	if err := cfg.Policy.Validate(); err != nil {
		return cfg, fmt.Errorf("policy: %w", err)
	}
	lm, err := handover.ParseLatchMode(cfg.LatchMode)
	if err != nil {
		return cfg, err
	}
	cfg.LatchMode = string(lm)
	switch cfg.Table.Driver {
	case "memory", "redis":
	default:
		return cfg, fmt.Errorf("unknown TABLE_DRIVER %q", cfg.Table.Driver)
	}
	for _, d := range cfg.Sinks.Drivers {
		switch d {
		case "log", "kafka":
		case "http":
			if cfg.Sinks.HTTPURL == "" {
				return cfg, fmt.Errorf("sink driver http needs SINK_HTTP_URL")
			}
		default:
			return cfg, fmt.Errorf("unknown sink driver %q", d)
		}
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseUint8(s string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, err
	}
	return uint8(n), nil
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func split(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

// parse "3,17,42" into cell ids, skipping anything that is not one
func parseCells(s string) []handover.CellID {
	var out []handover.CellID
	for _, p := range split(s) {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			continue
		}
		out = append(out, handover.CellID(n))
	}
	return out
}
