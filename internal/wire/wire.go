// Package wire defines the JSON messages exchanged with the measurement
// source and the session layer.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

// EventRelease tells the service a connection is gone.
const EventRelease = "release"

var (
	ErrMissingServing = errors.New("a2 report without serving_rsrq")
	// cell 0 means "no cell" and is never a valid neighbour
	ErrNoCell = errors.New("neighbour without cell id")
)

type Neighbor struct {
	Cell uint16 `json:"cell"`
	RSRQ *uint8 `json:"rsrq,omitempty"`
	RSRP *uint8 `json:"rsrp,omitempty"`
}

// Report is one measurement report as received from Kafka or HTTP. Either
// Event or MeasID classifies it; Event wins when both are set.
type Report struct {
	Conn        uint64     `json:"conn"`
	Event       string     `json:"event,omitempty"`
	MeasID      *uint8     `json:"meas_id,omitempty"`
	Seq         uint64     `json:"seq,omitempty"`
	TS          time.Time  `json:"ts,omitzero"`
	ServingRSRQ *uint8     `json:"serving_rsrq,omitempty"`
	Neighbors   []Neighbor `json:"neighbors,omitempty"`
}

// MeasResolver maps meas ids handed out at registration to event kinds.
type MeasResolver interface {
	KindForMeasID(id handover.MeasID) (handover.EventKind, bool)
}

func Decode(b []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

func (r Report) IsRelease() bool { return r.Event == EventRelease }

// Kind classifies r. res may be nil.
func (r Report) Kind(res MeasResolver) handover.EventKind {
	if r.Event != "" {
		return handover.ParseEventKind(r.Event)
	}
	if r.MeasID != nil && res != nil {
		if k, ok := res.KindForMeasID(handover.MeasID(*r.MeasID)); ok {
			return k
		}
	}
	return handover.KindUnknown
}

// ToReport converts r into the engine's report type.
func (r Report) ToReport(res MeasResolver) (handover.Report, error) {
	conn := handover.ConnID(r.Conn)
	switch r.Kind(res) {
	case handover.KindServingDegraded:
		if r.ServingRSRQ == nil {
			return nil, ErrMissingServing
		}
		return handover.ServingDegraded{Connection: conn, ServingMetricA: *r.ServingRSRQ}, nil
	case handover.KindNeighborRelative:
		if err := r.checkCells(); err != nil {
			return nil, err
		}
		obs := make([]handover.RelativeObservation, 0, len(r.Neighbors))
		for _, n := range r.Neighbors {
			o := handover.RelativeObservation{Cell: handover.CellID(n.Cell)}
			if n.RSRP != nil {
				o.HasMetricB, o.MetricB = true, *n.RSRP
			}
			obs = append(obs, o)
		}
		return handover.NeighborRelative{Connection: conn, Observations: obs}, nil
	case handover.KindNeighborAbsolute:
		if err := r.checkCells(); err != nil {
			return nil, err
		}
		obs := make([]handover.AbsoluteObservation, 0, len(r.Neighbors))
		for _, n := range r.Neighbors {
			o := handover.AbsoluteObservation{Cell: handover.CellID(n.Cell)}
			if n.RSRQ != nil {
				o.HasMetricA, o.MetricA = true, *n.RSRQ
			}
			obs = append(obs, o)
		}
		return handover.NeighborAbsolute{Connection: conn, Observations: obs}, nil
	default:
		return handover.Unknown{Connection: conn, Tag: r.tag()}, nil
	}
}

func (r Report) checkCells() error {
	for i, n := range r.Neighbors {
		if n.Cell == 0 {
			return fmt.Errorf("neighbors[%d]: %w", i, ErrNoCell)
		}
	}
	return nil
}

func (r Report) tag() string {
	if r.Event != "" {
		return r.Event
	}
	if r.MeasID != nil {
		return "meas_id:" + strconv.Itoa(int(*r.MeasID))
	}
	return ""
}

// Trigger is the message published for every handover decision.
type Trigger struct {
	Conn   uint64    `json:"conn"`
	Target uint16    `json:"target"`
	Path   string    `json:"path,omitempty"`
	TS     time.Time `json:"ts"`
}

func NewTrigger(conn handover.ConnID, target handover.CellID, path handover.DecisionPath, ts time.Time) Trigger {
	return Trigger{Conn: uint64(conn), Target: uint16(target), Path: string(path), TS: ts.UTC()}
}

// U8 returns a pointer to v, for building reports in code.
func U8(v uint8) *uint8 { return &v }
