package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

// policyFile mirrors handover.PolicyConfig with optional fields so a file
// only overrides what it names.
type policyFile struct {
	ServingThreshold *uint8   `yaml:"serving_threshold"`
	NeighborOffset   *uint8   `yaml:"neighbor_offset"`
	HysteresisDb     *float64 `yaml:"hysteresis_db"`
	TimeToTrigger    *string  `yaml:"time_to_trigger"`
}

// LoadPolicyFile applies the YAML file at path on top of base.
// time_to_trigger takes "256ms" or a bare millisecond count.
func LoadPolicyFile(path string, base handover.PolicyConfig) (handover.PolicyConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read policy file: %w", err)
	}
	return parsePolicy(b, base)
}

func parsePolicy(b []byte, base handover.PolicyConfig) (handover.PolicyConfig, error) {
	var pf policyFile
	if err := yaml.Unmarshal(b, &pf); err != nil {
		return base, fmt.Errorf("parse policy file: %w", err)
	}
	out := base
	if pf.ServingThreshold != nil {
		out.ServingThreshold = *pf.ServingThreshold
	}
	if pf.NeighborOffset != nil {
		out.NeighborOffset = *pf.NeighborOffset
	}
	if pf.HysteresisDb != nil {
		out.HysteresisDb = *pf.HysteresisDb
	}
	if pf.TimeToTrigger != nil {
		d, err := parseTTT(*pf.TimeToTrigger)
		if err != nil {
			return base, err
		}
		out.TimeToTrigger = d
	}
	return out, nil
}
