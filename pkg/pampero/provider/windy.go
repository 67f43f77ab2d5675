package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// windyModels maps sources to the model names the point-forecast API
// accepts.
var windyModels = map[meteo.SourceID]string{
	meteo.SourceWindyECMWF: "ecmwf",
	meteo.SourceWindyGFS:   "gfs",
	meteo.SourceWindyICON:  "iconEu",
}

// windyParameters is the fixed set requested for a forecast call.
var windyParameters = []string{
	"temp", "wind", "past3hprecip",
	"lclouds", "mclouds", "hclouds", "rh", "pressure", "cape",
}

// windyKeyRemap translates response series the normalizer does not read
// under their upstream names. Series absent from the map keep their name.
var windyKeyRemap = map[string]string{
	"temp-surface":     "temp",
	"pressure-surface": "pressure",
	"cape-surface":     "cape",
}

// WindyClient fetches one model from the Windy point-forecast v2 API. The
// API returns parallel arrays over a shared ts axis; the client transposes
// them into per-step RawRecords.
type WindyClient struct {
	source     meteo.SourceID
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock
}

// NewWindyClient builds a client for one Windy model source.
func NewWindyClient(source meteo.SourceID, apiKey, baseURL string, opts ...Option) (*WindyClient, error) {
	model, ok := windyModels[source]
	if !ok {
		return nil, fmt.Errorf("no windy model for source %s", source)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("windy API key is required for source %s", source)
	}

	o := buildOptions(opts)
	return &WindyClient{
		source:     source,
		model:      model,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: o.httpClient,
		clock:      o.clock,
	}, nil
}

func (c *WindyClient) Source() meteo.SourceID {
	return c.source
}

// GetForecast returns one RawRecord per timestep within the horizon.
func (c *WindyClient) GetForecast(ctx context.Context, lat, lon float64, hours int) ([]RawRecord, error) {
	payload, err := c.fetch(ctx, lat, lon, windyParameters)
	if err != nil {
		return nil, err
	}
	records, err := transposeWindy(payload)
	if err != nil {
		return nil, err
	}
	return trimToHorizon(records, c.clock.Now(), hours), nil
}

// GetCurrent returns the timestep closest to now, or nil when the model
// published nothing usable.
func (c *WindyClient) GetCurrent(ctx context.Context, lat, lon float64) (RawRecord, error) {
	payload, err := c.fetch(ctx, lat, lon, windyParameters)
	if err != nil {
		return nil, err
	}
	records, err := transposeWindy(payload)
	if err != nil {
		return nil, err
	}
	return nearestRecord(records, c.clock.Now()), nil
}

// GetCAPE returns the convective available potential energy series for the
// horizon, one value per timestep.
func (c *WindyClient) GetCAPE(ctx context.Context, lat, lon float64, hours int) ([]float64, error) {
	payload, err := c.fetch(ctx, lat, lon, []string{"cape"})
	if err != nil {
		return nil, err
	}
	records, err := transposeWindy(payload)
	if err != nil {
		return nil, err
	}

	series := make([]float64, 0, len(records))
	for _, r := range trimToHorizon(records, c.clock.Now(), hours) {
		if v, ok := r.Float("cape"); ok {
			series = append(series, v)
		}
	}
	return series, nil
}

type windyRequest struct {
	Lat        float64  `json:"lat"`
	Lon        float64  `json:"lon"`
	Model      string   `json:"model"`
	Parameters []string `json:"parameters"`
	Levels     []string `json:"levels"`
	Key        string   `json:"key"`
}

func (c *WindyClient) fetch(ctx context.Context, lat, lon float64, parameters []string) (map[string]interface{}, error) {
	body, err := json.Marshal(windyRequest{
		Lat:        lat,
		Lon:        lon,
		Model:      c.model,
		Parameters: parameters,
		Levels:     []string{"surface"},
		Key:        c.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling windy request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building windy request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	klog.V(2).InfoS("Fetching windy point forecast",
		"model", c.model,
		"lat", lat,
		"lon", lon,
		"parameters", len(parameters))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &PayloadError{Err: err}
	}
	return payload, nil
}

// transposeWindy converts the parallel-array payload into per-step records.
// Non-array members (units, warnings) are skipped.
func transposeWindy(payload map[string]interface{}) ([]RawRecord, error) {
	tsRaw, ok := payload["ts"].([]interface{})
	if !ok || len(tsRaw) == 0 {
		return nil, &PayloadError{Err: fmt.Errorf("response has no ts axis")}
	}

	records := make([]RawRecord, len(tsRaw))
	for i := range records {
		records[i] = RawRecord{"ts": tsRaw[i]}
	}

	for key, v := range payload {
		if key == "ts" {
			continue
		}
		series, ok := v.([]interface{})
		if !ok {
			continue
		}
		name := key
		if mapped, ok := windyKeyRemap[key]; ok {
			name = mapped
		}
		for i := 0; i < len(series) && i < len(records); i++ {
			if series[i] == nil {
				continue
			}
			records[i][name] = series[i]
		}
	}
	return records, nil
}

// trimToHorizon drops steps more than one hour in the past and beyond the
// requested horizon. Records without a parseable timestamp are kept.
func trimToHorizon(records []RawRecord, now time.Time, hours int) []RawRecord {
	if hours <= 0 {
		return records
	}
	floor := now.Add(-time.Hour)
	cutoff := now.Add(time.Duration(hours) * time.Hour)

	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		ts, ok := r.Time("timestamp", "time", "datetime", "ts")
		if !ok {
			out = append(out, r)
			continue
		}
		if ts.Before(floor) || ts.After(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}
