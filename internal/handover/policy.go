package handover

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

const (
	// MaxRSRQRange is the top of the quantized RSRQ range (TS 36.133 9.1.7).
	MaxRSRQRange = 34
	// MaxHysteresisDb is the top of the hysteresis range; the IE range is [0..30].
	MaxHysteresisDb = 15.0
)

// PolicyConfig is fixed at engine construction.
type PolicyConfig struct {
	// serving RSRQ at or below this floor makes the source emit A2
	ServingThreshold uint8
	// minimum advantage of the best neighbour over the serving cell
	NeighborOffset uint8
	// handover margin in dB, sent to the source as IE value round(2*dB)
	HysteresisDb float64
	// used by the measurement source for A3, never by the engine
	TimeToTrigger time.Duration
}

func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		ServingThreshold: 30,
		NeighborOffset:   1,
		HysteresisDb:     3.0,
		TimeToTrigger:    256 * time.Millisecond,
	}
}

func (p PolicyConfig) Validate() error {
	if p.ServingThreshold > MaxRSRQRange {
		return fmt.Errorf("serving threshold %d outside [0..%d]", p.ServingThreshold, MaxRSRQRange)
	}
	if _, err := HysteresisIE(p.HysteresisDb); err != nil {
		return err
	}
	if !ValidTimeToTrigger(p.TimeToTrigger) {
		return fmt.Errorf("time to trigger %s is not a TS 36.331 value", p.TimeToTrigger)
	}
	return nil
}

// HysteresisIE maps dB to the hysteresis IE value, rounding to the nearest 0.5 dB.
func HysteresisIE(db float64) (uint8, error) {
	if math.IsNaN(db) || db < 0 || db > MaxHysteresisDb {
		return 0, fmt.Errorf("hysteresis %v dB outside [0..%v]", db, MaxHysteresisDb)
	}
	return uint8(math.Round(db * 2)), nil
}

var tttValuesMs = []int64{0, 40, 64, 80, 100, 128, 160, 256, 320, 480, 512, 640, 1024, 1280, 2560, 5120}

func ValidTimeToTrigger(d time.Duration) bool {
	if d%time.Millisecond != 0 {
		return false
	}
	return slices.Contains(tttValuesMs, d.Milliseconds())
}

// LatchMode controls whether the decision latch is ever cleared.
type LatchMode string

const (
	// LatchSticky never clears the latch once an A2 evaluation armed it.
	LatchSticky LatchMode = "sticky"
	// LatchResetOnTrigger clears the latch after the hybrid path fires.
	LatchResetOnTrigger LatchMode = "reset_on_trigger"
)

func ParseLatchMode(s string) (LatchMode, error) {
	switch m := LatchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", LatchSticky:
		return LatchSticky, nil
	case LatchResetOnTrigger:
		return m, nil
	default:
		return "", fmt.Errorf("unknown latch mode %q", s)
	}
}
