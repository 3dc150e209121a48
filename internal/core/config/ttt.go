package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTTT accepts a Go duration or a bare millisecond count.
func parseTTT(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("time_to_trigger %q: %w", s, err)
	}
	return d, nil
}
