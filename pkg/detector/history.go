package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PerformanceRecord is one entry of the evaluation audit trail.
type PerformanceRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
}

// NewPerformanceRecord stamps an evaluation result for the audit trail.
func NewPerformanceRecord(model string, ev Evaluation) PerformanceRecord {
	return PerformanceRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Model:     model,
		Precision: ev.Precision,
		Recall:    ev.Recall,
		F1:        ev.F1,
	}
}

// History is the append-only performance trail. Records always land in
// process memory; a redis client and a postgres store, when configured,
// receive mirrored copies.
type History struct {
	mu      sync.Mutex
	records []PerformanceRecord

	rdb *redis.Client
	pg  *PostgresHistory
	ttl time.Duration
}

// NewHistory creates the trail. Both stores may be nil.
func NewHistory(rdb *redis.Client, pg *PostgresHistory) *History {
	return &History{rdb: rdb, pg: pg, ttl: 90 * 24 * time.Hour}
}

// Append records one evaluation. Mirror failures are returned but the
// in-memory append always happens first, so the trail never loses a record
// to a store outage.
func (h *History) Append(ctx context.Context, rec PerformanceRecord) error {
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()

	if h.rdb != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		key := "sentra:perf:" + rec.ID
		if err := h.rdb.Set(ctx, key, data, h.ttl).Err(); err != nil {
			return fmt.Errorf("mirror performance record: %w", err)
		}
	}
	if h.pg != nil {
		if err := h.pg.Insert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Records returns a copy of the in-memory trail, oldest first.
func (h *History) Records() []PerformanceRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]PerformanceRecord, len(h.records))
	copy(out, h.records)
	return out
}
