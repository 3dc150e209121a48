package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Pinger is a dependency that must answer before the service is ready,
// e.g. the Redis neighbour table.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Readiness(rr ReadinessReporter, deps ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status     string  `json:"status"`
			Partitions []int32 `json:"partitions,omitempty"`
			Error      string  `json:"error,omitempty"`
		}
		ready, parts := true, []int32(nil)
		if rr != nil {
			ready, parts = rr.Readiness()
		}
		out := resp{Status: "not_ready"}
		if ready {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			for _, d := range deps {
				if err := d.Ping(ctx); err != nil {
					ready = false
					out.Error = err.Error()
					break
				}
			}
			cancel()
		}
		if ready {
			out.Status = "ready"
			out.Partitions = parts
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
