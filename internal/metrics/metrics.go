// Package metrics owns the Prometheus registry served on /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Config struct {
	Enabled bool
	Addr    string
	Path    string
	Build   BuildInfo
}

type Provider struct {
	reg        *prometheus.Registry
	buildInfo  *prometheus.GaugeVec
	policyInfo *prometheus.GaugeVec
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	policy := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "handover_policy_info",
			Help: "Active handover policy (value is always 1).",
		},
		[]string{"serving_threshold", "neighbor_offset", "hysteresis_ie", "ttt_ms", "latch_mode"},
	)
	reg.MustRegister(build, policy)

	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build.WithLabelValues(v.Version, v.Revision, v.Branch, v.BuildDate).Set(1)

	return &Provider{reg: reg, buildInfo: build, policyInfo: policy}
}

// ExposePolicy replaces the handover_policy_info series with p.
func (p *Provider) ExposePolicy(pc handover.PolicyConfig, latch handover.LatchMode) {
	ie, err := handover.HysteresisIE(pc.HysteresisDb)
	hyst := strconv.Itoa(int(ie))
	if err != nil {
		hyst = "invalid"
	}
	p.policyInfo.Reset()
	p.policyInfo.WithLabelValues(
		strconv.Itoa(int(pc.ServingThreshold)),
		strconv.Itoa(int(pc.NeighborOffset)),
		hyst,
		strconv.FormatInt(pc.TimeToTrigger.Milliseconds(), 10),
		string(latch),
	).Set(1)
}

func (p *Provider) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(p.reg,
		promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg}))
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
