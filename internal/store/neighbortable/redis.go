// Package neighbortable provides a Redis-backed handover.NeighborTable so the
// neighbour view survives restarts and can be shared with other readers.
package neighbortable

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/mohammed-shakir/hybrid-handover/internal/handover"
)

// HashStore is the subset of redisstore.Client the table needs.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetWithTTL(ctx context.Context, key string, fields map[string][]byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Redis keeps one hash per connection: field = cell id, value = cellRecord.
type Redis struct {
	store     HashStore
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
}

type Options struct {
	// key prefix, defaults to "ho:nbr:"
	Prefix string
	// idle rows expire after TTL; zero keeps them until Drop
	TTL time.Duration
	// per operation deadline, zero means the caller's context only
	OpTimeout time.Duration
}

// cellRecord is the stored value. Ord preserves first-insertion order.
type cellRecord struct {
	Ord  int   `json:"ord"`
	RSRQ uint8 `json:"rsrq"`
	RSRP uint8 `json:"rsrp"`
}

var _ handover.NeighborTable = (*Redis)(nil)

func NewRedis(store HashStore, opts Options) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "ho:nbr:"
	}
	return &Redis{store: store, prefix: opts.Prefix, ttl: opts.TTL, opTimeout: opts.OpTimeout}
}

func (r *Redis) key(conn handover.ConnID) string {
	return r.prefix + strconv.FormatUint(uint64(conn), 10)
}

func (r *Redis) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.opTimeout)
}

func (r *Redis) Row(ctx context.Context, conn handover.ConnID) ([]handover.NeighborSample, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	recs, err := r.load(ctx, conn)
	if err != nil {
		return nil, false, err
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	return ordered(recs), true, nil
}

func (r *Redis) UpdateMetricA(ctx context.Context, conn handover.ConnID, updates []handover.CellValue) error {
	return r.update(ctx, conn, updates, func(c *cellRecord, v uint8) { c.RSRQ = v })
}

func (r *Redis) UpdateMetricB(ctx context.Context, conn handover.ConnID, updates []handover.CellValue) error {
	return r.update(ctx, conn, updates, func(c *cellRecord, v uint8) { c.RSRP = v })
}

// update is a read-modify-write; the engine serializes work per connection.
func (r *Redis) update(ctx context.Context, conn handover.ConnID, updates []handover.CellValue, set func(*cellRecord, uint8)) error {
	if len(updates) == 0 {
		return nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	recs, err := r.load(ctx, conn)
	if err != nil {
		return err
	}
	next := len(recs)
	changed := make(map[handover.CellID]*cellRecord, len(updates))
	for _, u := range updates {
		rec, ok := recs[u.Cell]
		if !ok {
			rec = &cellRecord{Ord: next}
			next++
			recs[u.Cell] = rec
		}
		set(rec, u.Value)
		changed[u.Cell] = rec
	}

	fields := make(map[string][]byte, len(changed))
	for cell, rec := range changed {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode cell %d: %w", cell, err)
		}
		fields[strconv.Itoa(int(cell))] = b
	}
	return r.store.HSetWithTTL(ctx, r.key(conn), fields, r.ttl)
}

func (r *Redis) Drop(ctx context.Context, conn handover.ConnID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.store.Del(ctx, r.key(conn))
}

func (r *Redis) load(ctx context.Context, conn handover.ConnID) (map[handover.CellID]*cellRecord, error) {
	raw, err := r.store.HGetAll(ctx, r.key(conn))
	if err != nil {
		return nil, err
	}
	out := make(map[handover.CellID]*cellRecord, len(raw))
	for f, v := range raw {
		cell, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("neighbour row %d: bad cell field %q", conn, f)
		}
		var rec cellRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("neighbour row %d cell %d: %w", conn, cell, err)
		}
		out[handover.CellID(cell)] = &rec
	}
	return out, nil
}

func ordered(recs map[handover.CellID]*cellRecord) []handover.NeighborSample {
	cells := make([]handover.CellID, 0, len(recs))
	for c := range recs {
		cells = append(cells, c)
	}
	slices.SortFunc(cells, func(a, b handover.CellID) int {
		if d := recs[a].Ord - recs[b].Ord; d != 0 {
			return d
		}
		return int(a) - int(b)
	})
	out := make([]handover.NeighborSample, 0, len(cells))
	for _, c := range cells {
		out = append(out, handover.NeighborSample{Cell: c, MetricA: recs[c].RSRQ, MetricB: recs[c].RSRP})
	}
	return out
}
