package main

import (
	"math"
	"math/rand"
	"time"

	"github.com/mohammed-shakir/hybrid-handover/internal/wire"
)

// 3GPP TS 36.133 report ranges
const (
	maxRSRQ = 34
	maxRSRP = 97
)

type simConfig struct {
	Cells         int
	CellSpacing   float64 // metres between adjacent cells
	TxPowerDbm    float64
	NoiseDbm      float64
	SpeedMps      float64
	ServingThresh uint8
	HysteresisDb  float64
	ShadowSigmaDb float64
}

func defaultSimConfig() simConfig {
	return simConfig{
		Cells:         2,
		CellSpacing:   500,
		TxPowerDbm:    46,
		NoiseDbm:      -104,
		SpeedMps:      20,
		ServingThresh: 30,
		HysteresisDb:  3,
		ShadowSigmaDb: 2,
	}
}

// ue is one simulated connection moving back and forth along a line of cells.
type ue struct {
	conn    uint64
	x       float64
	dir     float64
	serving int
	seq     uint64
}

type simulator struct {
	cfg simConfig
	rnd *rand.Rand
	ues []*ue
	now func() time.Time
}

func newSimulator(cfg simConfig, conns int, seed int64) *simulator {
	if cfg.Cells < 2 {
		cfg.Cells = 2
	}
	s := &simulator{cfg: cfg, rnd: rand.New(rand.NewSource(seed)), now: time.Now}
	span := cfg.CellSpacing * float64(cfg.Cells-1)
	for i := range conns {
		x := s.rnd.Float64() * span
		u := &ue{conn: uint64(i + 1), x: x, dir: 1}
		if s.rnd.Intn(2) == 0 {
			u.dir = -1
		}
		u.serving = s.nearest(x)
		s.ues = append(s.ues, u)
	}
	return s
}

func (s *simulator) nearest(x float64) int {
	i := int(math.Round(x / s.cfg.CellSpacing))
	return min(max(i, 0), s.cfg.Cells-1)
}

// received power in dBm from cell i at position x, log-distance path loss
func (s *simulator) rxDbm(i int, x float64) float64 {
	d := math.Abs(x - float64(i)*s.cfg.CellSpacing)
	d = math.Max(d, 10)
	pl := 128.1 + 37.6*math.Log10(d/1000)
	return s.cfg.TxPowerDbm - pl + s.rnd.NormFloat64()*s.cfg.ShadowSigmaDb
}

type measurement struct {
	rsrq []uint8
	rsrp []uint8
}

func (s *simulator) measure(x float64) measurement {
	n := s.cfg.Cells
	rx := make([]float64, n)
	var total float64
	for i := range n {
		rx[i] = s.rxDbm(i, x)
		total += dbmToMw(rx[i])
	}
	total += dbmToMw(s.cfg.NoiseDbm)
	m := measurement{rsrq: make([]uint8, n), rsrp: make([]uint8, n)}
	for i := range n {
		rsrqDb := 10*math.Log10(dbmToMw(rx[i])/total) - 3
		m.rsrq[i] = clamp((rsrqDb+19.5)*2, maxRSRQ)
		m.rsrp[i] = clamp(rx[i]+140, maxRSRP)
	}
	return m
}

// step advances every UE by dt and returns the reports it would send.
func (s *simulator) step(dt time.Duration) []wire.Report {
	span := s.cfg.CellSpacing * float64(s.cfg.Cells-1)
	var out []wire.Report
	for _, u := range s.ues {
		u.x += u.dir * s.cfg.SpeedMps * dt.Seconds()
		if u.x < 0 || u.x > span {
			u.dir = -u.dir
			u.x = math.Min(math.Max(u.x, 0), span)
		}
		out = append(out, s.reportsFor(u, s.measure(u.x))...)
	}
	return out
}

func (s *simulator) reportsFor(u *ue, m measurement) []wire.Report {
	ts := s.now().UTC()
	var out []wire.Report
	next := func(r wire.Report) {
		u.seq++
		r.Conn, r.Seq, r.TS = u.conn, u.seq, ts
		out = append(out, r)
	}

	a4 := wire.Report{Event: "a4"}
	for i := range m.rsrq {
		if i == u.serving {
			continue
		}
		a4.Neighbors = append(a4.Neighbors, wire.Neighbor{Cell: cellID(i), RSRQ: wire.U8(m.rsrq[i])})
	}
	next(a4)

	if m.rsrq[u.serving] < s.cfg.ServingThresh {
		next(wire.Report{Event: "a2", ServingRSRQ: wire.U8(m.rsrq[u.serving])})
	}

	best, bestRSRP := -1, float64(m.rsrp[u.serving])+s.cfg.HysteresisDb
	a3 := wire.Report{Event: "a3"}
	for i := range m.rsrp {
		if i == u.serving {
			continue
		}
		if float64(m.rsrp[i]) > float64(m.rsrp[u.serving])+s.cfg.HysteresisDb {
			a3.Neighbors = append(a3.Neighbors, wire.Neighbor{Cell: cellID(i), RSRP: wire.U8(m.rsrp[i])})
			if float64(m.rsrp[i]) > bestRSRP {
				best, bestRSRP = i, float64(m.rsrp[i])
			}
		}
	}
	if len(a3.Neighbors) > 0 {
		next(a3)
	}
	// the session layer is assumed to complete the handover
	if best >= 0 {
		u.serving = best
	}
	return out
}

func cellID(i int) uint16 { return uint16(i + 1) }

func dbmToMw(dbm float64) float64 { return math.Pow(10, dbm/10) }

func clamp(v float64, hi uint8) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= float64(hi):
		return hi
	}
	return uint8(math.Round(v))
}
