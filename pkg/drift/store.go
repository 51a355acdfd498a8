package drift

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Alert records one drift trigger for the audit trail.
type Alert struct {
	ID         string    `json:"id"`
	DetectedAt time.Time `json:"detected_at"`
	WindowMean float64   `json:"window_mean"`
	Width      int       `json:"width"`
	Message    string    `json:"message"`
}

// NewAlert builds an alert from the monitor's post-cut state.
func NewAlert(m *Monitor) Alert {
	return Alert{
		ID:         uuid.NewString(),
		DetectedAt: time.Now().UTC(),
		WindowMean: m.Mean(),
		Width:      m.Width(),
		Message:    "input distribution diverged from training distribution",
	}
}

// AlertStore keeps drift alerts. With a redis client they are shared and
// TTL-bounded; without one they stay in process memory.
type AlertStore struct {
	mu     sync.Mutex
	rdb    *redis.Client
	ttl    time.Duration
	local  []Alert
	prefix string
}

// NewAlertStore creates a store. rdb may be nil for in-memory operation.
func NewAlertStore(rdb *redis.Client) *AlertStore {
	return &AlertStore{rdb: rdb, ttl: 30 * 24 * time.Hour, prefix: "sentra:drift:alert:"}
}

// Save records an alert.
func (s *AlertStore) Save(ctx context.Context, alert Alert) error {
	s.mu.Lock()
	s.local = append(s.local, alert)
	s.mu.Unlock()

	if s.rdb == nil {
		return nil
	}
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.prefix+alert.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store drift alert: %w", err)
	}
	return nil
}

// Since returns alerts detected after the given time.
func (s *AlertStore) Since(ctx context.Context, since time.Time) ([]Alert, error) {
	if s.rdb == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		var out []Alert
		for _, a := range s.local {
			if a.DetectedAt.After(since) {
				out = append(out, a)
			}
		}
		return out, nil
	}

	keys, err := s.rdb.Keys(ctx, s.prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list drift alerts: %w", err)
	}
	var out []Alert
	for _, key := range keys {
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var a Alert
		if err := json.Unmarshal(data, &a); err != nil {
			continue
		}
		if a.DetectedAt.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}
