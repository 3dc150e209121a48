// Package router implements the handover HTTP API.
package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/hybrid-handover/internal/core/observability"
	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
	mylog "github.com/mohammed-shakir/hybrid-handover/internal/logger"
	"github.com/mohammed-shakir/hybrid-handover/internal/wire"
)

const maxReportBytes = 64 << 10

// Engine is the part of handover.Engine the API exposes.
type Engine interface {
	Report(ctx context.Context, r handover.Report) (handover.Result, error)
	Release(ctx context.Context, conn handover.ConnID) error
	Neighbors(ctx context.Context, conn handover.ConnID) ([]handover.NeighborSample, bool, error)
	KindForMeasID(id handover.MeasID) (handover.EventKind, bool)
	Latched() bool
	ResetLatch()
}

// FailureRecorder receives failed handover targets from the session layer.
type FailureRecorder interface {
	MarkFailed(cell handover.CellID)
}

type API struct {
	log    *slog.Logger
	engine Engine
	failed FailureRecorder
}

// New builds the API. failed may be nil, which disables the failed-targets
// endpoint.
func New(log *slog.Logger, e Engine, failed FailureRecorder) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{log: log, engine: e, failed: failed}
}

func (a *API) Mount(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(observe)
		r.Post("/reports", a.postReport)
		r.Get("/connections/{conn}/neighbors", a.getNeighbors)
		r.Delete("/connections/{conn}", a.deleteConnection)
		r.Post("/connections/{conn}/failed-targets/{cell}", a.postFailedTarget)
		r.Get("/latch", a.getLatch)
		r.Delete("/latch", a.deleteLatch)
	})
}

func (a *API) postReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(body) > maxReportBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "report too large")
		return
	}
	wr, err := wire.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := mylog.WithConn(r.Context(), wr.Conn)

	if wr.IsRelease() {
		if err := a.engine.Release(ctx, handover.ConnID(wr.Conn)); err != nil {
			a.log.ErrorContext(ctx, "release failed", "err", err)
			writeError(w, http.StatusInternalServerError, "release failed")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"event": wire.EventRelease, "outcome": "released"})
		return
	}

	rep, err := wr.ToReport(a.engine)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx = mylog.WithEvent(ctx, string(rep.Kind()))

	res, err := a.engine.Report(ctx, rep)
	switch {
	case handover.IsContractViolation(err):
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			handover.Result
			Error string `json:"error"`
		}{res, err.Error()})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "report processing failed")
	default:
		writeJSON(w, http.StatusAccepted, res)
	}
}

func (a *API) getNeighbors(w http.ResponseWriter, r *http.Request) {
	conn, ok := connParam(w, r)
	if !ok {
		return
	}
	samples, found, err := a.engine.Neighbors(r.Context(), conn)
	if err != nil {
		a.log.ErrorContext(r.Context(), "read neighbours", "conn", uint64(conn), "err", err)
		writeError(w, http.StatusInternalServerError, "neighbour table unavailable")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "connection not observed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Conn      uint64                    `json:"conn"`
		Neighbors []handover.NeighborSample `json:"neighbors"`
	}{uint64(conn), samples})
}

func (a *API) deleteConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := connParam(w, r)
	if !ok {
		return
	}
	if err := a.engine.Release(r.Context(), conn); err != nil {
		a.log.ErrorContext(r.Context(), "release failed", "conn", uint64(conn), "err", err)
		writeError(w, http.StatusInternalServerError, "release failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) postFailedTarget(w http.ResponseWriter, r *http.Request) {
	if a.failed == nil {
		writeError(w, http.StatusNotImplemented, "failed target tracking disabled")
		return
	}
	conn, ok := connParam(w, r)
	if !ok {
		return
	}
	cell, err := strconv.ParseUint(chi.URLParam(r, "cell"), 10, 16)
	if err != nil || cell == 0 {
		writeError(w, http.StatusBadRequest, "invalid cell id")
		return
	}
	a.failed.MarkFailed(handover.CellID(cell))
	a.log.InfoContext(r.Context(), "handover target failed", "conn", uint64(conn), "target", int(cell))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getLatch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"armed": a.engine.Latched()})
}

func (a *API) deleteLatch(w http.ResponseWriter, r *http.Request) {
	a.engine.ResetLatch()
	a.log.InfoContext(r.Context(), "decision latch reset")
	w.WriteHeader(http.StatusNoContent)
}

func connParam(w http.ResponseWriter, r *http.Request) (handover.ConnID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "conn"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid connection id")
		return 0, false
	}
	return handover.ConnID(n), true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// observe records request metrics under the matched route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

