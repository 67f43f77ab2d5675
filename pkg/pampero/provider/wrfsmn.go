package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/cache"
	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
)

// wrfsmnKeyRemap exposes native WRF field names the normalizer does not
// read directly. T2, magViento10, PP, HR2 and PSFC pass through unchanged.
var wrfsmnKeyRemap = map[string]string{
	"dirViento10": "wind_dir",
	"validTime":   "timestamp",
}

// WRFSMNClient fetches the SMN Argentina WRF deterministic model. The
// upstream publishes a new cycle every 6 hours, so responses are cached
// per (source, cycle, lat, lon) with the configured TTL.
type WRFSMNClient struct {
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock
	cache      *cache.Cache[[]RawRecord]
}

// NewWRFSMNClient builds the WRF-SMN client. cacheTTL bounds how long a
// cycle's records are reused; cleanupInterval drives the cache janitor.
func NewWRFSMNClient(baseURL string, cacheTTL, cleanupInterval time.Duration, opts ...Option) *WRFSMNClient {
	o := buildOptions(opts)
	return &WRFSMNClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: o.httpClient,
		clock:      o.clock,
		cache:      cache.New[[]RawRecord](cacheTTL, cleanupInterval),
	}
}

func (c *WRFSMNClient) Source() meteo.SourceID {
	return meteo.SourceWRFSMN
}

// Close stops the cache janitor.
func (c *WRFSMNClient) Close() {
	c.cache.Close()
}

// CacheStats exposes hit/miss counters for metrics.
func (c *WRFSMNClient) CacheStats() (hits, misses int64) {
	return c.cache.Stats()
}

// GetForecast returns one RawRecord per forecast step within the horizon.
func (c *WRFSMNClient) GetForecast(ctx context.Context, lat, lon float64, hours int) ([]RawRecord, error) {
	records, err := c.records(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return trimToHorizon(records, c.clock.Now(), hours), nil
}

// GetCurrent returns the step closest to now, or nil when the model has no
// usable steps.
func (c *WRFSMNClient) GetCurrent(ctx context.Context, lat, lon float64) (RawRecord, error) {
	records, err := c.records(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return nearestRecord(records, c.clock.Now()), nil
}

func (c *WRFSMNClient) records(ctx context.Context, lat, lon float64) ([]RawRecord, error) {
	key := cache.Key(meteo.SourceWRFSMN, c.cycle(), lat, lon)
	if records, ok := c.cache.Get(key); ok {
		metrics.CacheRequests.WithLabelValues(string(meteo.SourceWRFSMN), "hit").Inc()
		klog.V(4).InfoS("WRF-SMN cache hit", "key", key)
		return records, nil
	}
	metrics.CacheRequests.WithLabelValues(string(meteo.SourceWRFSMN), "miss").Inc()

	records, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, records)
	return records, nil
}

// cycle returns the most recent WRF run time. SMN runs at 00/06/12/18Z.
func (c *WRFSMNClient) cycle() time.Time {
	return c.clock.Now().Truncate(6 * time.Hour)
}

// wrfsmnResponse is the upstream point-forecast shape: a run timestamp and
// one entry per forecast step keyed by native WRF field names.
type wrfsmnResponse struct {
	InitTime string                   `json:"init_time"`
	Forecast []map[string]interface{} `json:"forecast"`
}

func (c *WRFSMNClient) fetch(ctx context.Context, lat, lon float64) ([]RawRecord, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%.4f", lat))
	query.Set("lon", fmt.Sprintf("%.4f", lon))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building WRF-SMN request: %v", err)
	}

	klog.V(2).InfoS("Fetching WRF-SMN forecast", "lat", lat, "lon", lon)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload wrfsmnResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &PayloadError{Err: err}
	}
	if len(payload.Forecast) == 0 {
		return nil, &PayloadError{Err: fmt.Errorf("response has no forecast steps")}
	}

	records := make([]RawRecord, 0, len(payload.Forecast))
	for _, step := range payload.Forecast {
		r := RawRecord{}
		for k, v := range step {
			if mapped, ok := wrfsmnKeyRemap[k]; ok {
				k = mapped
			}
			r[k] = v
		}
		if _, ok := r["timestamp"]; !ok && payload.InitTime != "" {
			r["timestamp"] = payload.InitTime
		}
		records = append(records, r)
	}
	return records, nil
}
