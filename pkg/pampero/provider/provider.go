// Package provider implements the upstream forecast clients. Every model
// sits behind the same Client interface and returns loosely-typed
// RawRecords; unit conversion and schema mapping happen later in the
// normalize package.
package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// RawRecord is one provider-native observation or forecast step: a loose
// bag of values keyed by whatever names the upstream model uses.
type RawRecord map[string]interface{}

// Float returns the value of the first present key, coerced to float64.
func (r RawRecord) Float(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// Time returns the record timestamp from the first present key. Numeric
// values are epoch milliseconds; strings are ISO-8601 with a trailing Z
// accepted as UTC.
func (r RawRecord) Time(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), true
		case float64:
			return time.UnixMilli(int64(t)).UTC(), true
		case int64:
			return time.UnixMilli(t).UTC(), true
		case int:
			return time.UnixMilli(int64(t)).UTC(), true
		case json.Number:
			if ms, err := t.Int64(); err == nil {
				return time.UnixMilli(ms).UTC(), true
			}
		case string:
			if ts, ok := parseTimeString(t); ok {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// Client is the uniform surface for one upstream model.
type Client interface {
	Source() meteo.SourceID
	GetCurrent(ctx context.Context, lat, lon float64) (RawRecord, error)
	GetForecast(ctx context.Context, lat, lon float64, hours int) ([]RawRecord, error)
}

// CAPEProvider is implemented by clients that can also serve a convective
// available potential energy series for storm pattern detection.
type CAPEProvider interface {
	GetCAPE(ctx context.Context, lat, lon float64, hours int) ([]float64, error)
}

type options struct {
	httpClient *http.Client
	clock      clock.Clock
}

// Option adjusts client construction.
type Option func(*options)

// WithHTTPClient replaces the default pooled HTTP client. All clients of a
// process normally share one.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      clock.RealClock{},
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// nearestRecord picks the record whose timestamp is closest to now. Records
// without a parseable timestamp are skipped; if none carry one, the first
// record wins.
func nearestRecord(records []RawRecord, now time.Time) RawRecord {
	if len(records) == 0 {
		return nil
	}
	best := -1
	var bestDelta time.Duration
	for i, r := range records {
		ts, ok := r.Time("timestamp", "time", "datetime", "ts")
		if !ok {
			continue
		}
		delta := ts.Sub(now)
		if delta < 0 {
			delta = -delta
		}
		if best == -1 || delta < bestDelta {
			best, bestDelta = i, delta
		}
	}
	if best == -1 {
		return records[0]
	}
	return records[best]
}
