// Package ingest turns raw login telemetry into feature records, enriching
// them through optional external lookups that degrade instead of failing.
package ingest

import (
	"context"
	"hash/fnv"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentrasec/sentra/pkg/errs"
	"github.com/sentrasec/sentra/pkg/preprocess"
)

// uaBuckets is the hash-bucket count for the user-agent feature.
const uaBuckets = 32

// LoginEvent is one raw authentication attempt.
type LoginEvent struct {
	UserID    string    `json:"user_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

// Enricher resolves an external attribute of an event, such as the country
// of an IP address. Implementations own their transport and caching.
type Enricher interface {
	// Enrich returns the attribute value for the key. The name identifies
	// the lookup in logs and error reports.
	Enrich(ctx context.Context, key string) (string, error)
	Name() string
}

// Pipeline converts events to records, applying the configured enrichers.
type Pipeline struct {
	log       zerolog.Logger
	enrichers []Enricher
}

// NewPipeline builds a pipeline with zero or more enrichers.
func NewPipeline(log zerolog.Logger, enrichers ...Enricher) *Pipeline {
	return &Pipeline{
		log:       log.With().Str("component", "ingest").Logger(),
		enrichers: enrichers,
	}
}

// ToRecord derives the model features from one event. A failing enricher is
// logged and its feature degrades to the "unknown" placeholder; conversion
// itself never fails.
func (p *Pipeline) ToRecord(ctx context.Context, ev LoginEvent) preprocess.Record {
	rec := preprocess.Record{Fields: map[string]any{
		"hour_of_day":  float64(ev.Timestamp.UTC().Hour()),
		"day_of_week":  float64(ev.Timestamp.UTC().Weekday()),
		"ua_bucket":    float64(uaBucket(ev.UserAgent)),
		"ip_class":     ipClass(ev.IP),
		"user_id_hash": float64(hashBucket(ev.UserID, 1024)),
	}}

	for _, e := range p.enrichers {
		value, err := e.Enrich(ctx, ev.IP)
		if err != nil {
			lookupErr := &errs.ExternalLookupError{Lookup: e.Name(), Key: ev.IP, Err: err}
			p.log.Warn().Err(lookupErr).Msg("enrichment degraded to placeholder")
			value = "unknown"
		}
		rec.Fields[e.Name()] = value
	}
	return rec
}

// ToRecords converts a batch.
func (p *Pipeline) ToRecords(ctx context.Context, events []LoginEvent) []preprocess.Record {
	out := make([]preprocess.Record, len(events))
	for i, ev := range events {
		out[i] = p.ToRecord(ctx, ev)
	}
	return out
}

func uaBucket(ua string) int {
	return hashBucket(strings.ToLower(strings.TrimSpace(ua)), uaBuckets)
}

func hashBucket(s string, buckets int) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(buckets))
}

// ipClass coarsely categorizes the source address.
func ipClass(s string) string {
	ip := net.ParseIP(s)
	switch {
	case ip == nil:
		return "invalid"
	case ip.IsLoopback():
		return "loopback"
	case ip.IsPrivate():
		return "private"
	case ip.To4() == nil:
		return "public_v6"
	default:
		return "public_v4"
	}
}
