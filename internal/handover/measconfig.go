package handover

import (
	"context"
	"fmt"
	"time"
)

// MeasID is the identifier the measurement source assigned to one report config.
type MeasID uint8

type Quantity string

const (
	QuantityRSRP Quantity = "rsrp"
	QuantityRSRQ Quantity = "rsrq"
)

type Threshold struct {
	Choice Quantity `json:"choice"`
	Range  uint8    `json:"range"`
}

// ReportConfig asks the measurement source to emit one event kind.
type ReportConfig struct {
	Event           EventKind     `json:"event"`
	Threshold1      *Threshold    `json:"threshold1,omitempty"`
	A3Offset        int8          `json:"a3_offset"`
	Hysteresis      uint8         `json:"hysteresis"`
	TimeToTrigger   time.Duration `json:"time_to_trigger"`
	ReportOnLeave   bool          `json:"report_on_leave"`
	TriggerQuantity Quantity      `json:"trigger_quantity"`
	ReportInterval  time.Duration `json:"report_interval"`
}

// Registrar is the measurement-source side of startup registration.
type Registrar interface {
	AddMeasReportConfig(ctx context.Context, cfg ReportConfig) (MeasID, error)
}

func (e *Engine) reportConfigs() ([]ReportConfig, error) {
	hys, err := HysteresisIE(e.policy.HysteresisDb)
	if err != nil {
		return nil, err
	}
	return []ReportConfig{
		{
			Event:           KindServingDegraded,
			Threshold1:      &Threshold{Choice: QuantityRSRQ, Range: e.policy.ServingThreshold},
			TriggerQuantity: QuantityRSRQ,
			ReportInterval:  240 * time.Millisecond,
		},
		{
			Event:           KindNeighborRelative,
			A3Offset:        0,
			Hysteresis:      hys,
			TimeToTrigger:   e.policy.TimeToTrigger,
			ReportOnLeave:   false,
			TriggerQuantity: QuantityRSRP,
			ReportInterval:  1024 * time.Millisecond,
		},
		{
			Event: KindNeighborAbsolute,
			// intentionally very low so every audible neighbour is reported
			Threshold1:      &Threshold{Choice: QuantityRSRQ, Range: 0},
			TriggerQuantity: QuantityRSRQ,
			ReportInterval:  480 * time.Millisecond,
		},
	}, nil
}

// Init registers the A2, A3 and A4 report configs with the measurement
// source and remembers the returned ids for classification by meas id.
func (e *Engine) Init(ctx context.Context, reg Registrar) error {
	cfgs, err := e.reportConfigs()
	if err != nil {
		return fmt.Errorf("build report configs: %w", err)
	}
	kinds := make(map[MeasID]EventKind, len(cfgs))
	for _, c := range cfgs {
		id, err := reg.AddMeasReportConfig(ctx, c)
		if err != nil {
			return fmt.Errorf("register %s report config: %w", c.Event, err)
		}
		if prev, dup := kinds[id]; dup {
			return fmt.Errorf("measurement source returned id %d for both %s and %s", id, prev, c.Event)
		}
		kinds[id] = c.Event
		e.log.InfoContext(ctx, "requested measurement reports",
			"event", string(c.Event),
			"meas_id", int(id),
			"hysteresis_ie", int(c.Hysteresis),
			"ttt_ms", c.TimeToTrigger.Milliseconds(),
		)
	}

	e.measMu.Lock()
	e.measKinds = kinds
	e.measMu.Unlock()
	return nil
}

// KindForMeasID resolves a meas id obtained during Init.
func (e *Engine) KindForMeasID(id MeasID) (EventKind, bool) {
	e.measMu.RLock()
	defer e.measMu.RUnlock()
	k, ok := e.measKinds[id]
	return k, ok
}
