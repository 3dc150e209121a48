package handover

import "strings"

// ConnID identifies one served terminal. The session layer owns it.
type ConnID uint64

// CellID is a physical cell identifier. Zero means "no cell".
type CellID uint16

type EventKind string

const (
	KindServingDegraded  EventKind = "a2"
	KindNeighborRelative EventKind = "a3"
	KindNeighborAbsolute EventKind = "a4"
	KindUnknown          EventKind = "unknown"
)

// ParseEventKind accepts the short 3GPP names and the long descriptive ones.
func ParseEventKind(s string) EventKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a2", "serving_degraded":
		return KindServingDegraded
	case "a3", "neighbor_relative", "neighbour_relative":
		return KindNeighborRelative
	case "a4", "neighbor_absolute", "neighbour_absolute":
		return KindNeighborAbsolute
	default:
		return KindUnknown
	}
}

// Report is one measurement report. The set of implementations is closed:
// ServingDegraded, NeighborRelative, NeighborAbsolute and Unknown.
type Report interface {
	Conn() ConnID
	Kind() EventKind
	isReport()
}

// AbsoluteObservation is one neighbour entry of an A4 report.
type AbsoluteObservation struct {
	Cell       CellID
	HasMetricA bool
	MetricA    uint8
}

// RelativeObservation is one neighbour entry of an A3 report.
type RelativeObservation struct {
	Cell       CellID
	HasMetricB bool
	MetricB    uint8
}

type ServingDegraded struct {
	Connection     ConnID
	ServingMetricA uint8
}

type NeighborRelative struct {
	Connection   ConnID
	Observations []RelativeObservation
}

type NeighborAbsolute struct {
	Connection   ConnID
	Observations []AbsoluteObservation
}

// Unknown carries a report whose event tag could not be matched.
type Unknown struct {
	Connection ConnID
	Tag        string
}

func (r ServingDegraded) Conn() ConnID  { return r.Connection }
func (r NeighborRelative) Conn() ConnID { return r.Connection }
func (r NeighborAbsolute) Conn() ConnID { return r.Connection }
func (r Unknown) Conn() ConnID          { return r.Connection }

func (ServingDegraded) Kind() EventKind  { return KindServingDegraded }
func (NeighborRelative) Kind() EventKind { return KindNeighborRelative }
func (NeighborAbsolute) Kind() EventKind { return KindNeighborAbsolute }
func (Unknown) Kind() EventKind          { return KindUnknown }

func (ServingDegraded) isReport()  {}
func (NeighborRelative) isReport() {}
func (NeighborAbsolute) isReport() {}
func (Unknown) isReport()          {}
