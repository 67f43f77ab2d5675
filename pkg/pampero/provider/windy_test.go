package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

func epochMS(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func windyTestPayload(base time.Time) map[string]interface{} {
	return map[string]interface{}{
		"ts":                   []interface{}{epochMS(base), epochMS(base.Add(3 * time.Hour)), epochMS(base.Add(6 * time.Hour))},
		"units":                map[string]interface{}{"temp-surface": "K"},
		"warning":              "step may change",
		"temp-surface":         []interface{}{288.15, 290.15, 291.15},
		"wind_u-surface":       []interface{}{3.0, 4.0, 5.0},
		"wind_v-surface":       []interface{}{-3.0, -4.0, -5.0},
		"past3hprecip-surface": []interface{}{0.0, 1.2, 8.0},
		"lclouds-surface":      []interface{}{10.0, 20.0, 30.0},
		"mclouds-surface":      []interface{}{5.0, 10.0, 15.0},
		"hclouds-surface":      []interface{}{0.0, 5.0, 10.0},
		"rh-surface":           []interface{}{55.0, 60.0, 70.0},
		"pressure-surface":     []interface{}{101325.0, 101300.0, 101250.0},
		"gust-surface":         []interface{}{8.0, 12.0, 20.0},
		"cape-surface":         []interface{}{250.0, 800.0, 1500.0},
	}
}

func TestWindyClientGetForecast(t *testing.T) {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	var gotReq windyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("Decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(windyTestPayload(base))
	}))
	defer server.Close()

	client, err := NewWindyClient(meteo.SourceWindyGFS, "test-key", server.URL,
		WithHTTPClient(server.Client()),
		WithClock(clock.NewMockClock(base)))
	if err != nil {
		t.Fatalf("NewWindyClient() error = %v", err)
	}

	records, err := client.GetForecast(context.Background(), -34.6, -58.4, 24)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}

	if gotReq.Model != "gfs" {
		t.Errorf("Expected model gfs, got %q", gotReq.Model)
	}
	if gotReq.Key != "test-key" {
		t.Errorf("Expected API key in request body, got %q", gotReq.Key)
	}
	if len(gotReq.Levels) != 1 || gotReq.Levels[0] != "surface" {
		t.Errorf("Expected surface level, got %v", gotReq.Levels)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	first := records[0]
	if v, ok := first.Float("temp"); !ok || v != 288.15 {
		t.Errorf("Expected temp 288.15, got %v (ok=%v)", v, ok)
	}
	if _, ok := first["temp-surface"]; ok {
		t.Error("Expected temp-surface to be remapped away")
	}
	if v, ok := first.Float("wind_u-surface"); !ok || v != 3.0 {
		t.Errorf("Expected wind_u-surface 3.0, got %v (ok=%v)", v, ok)
	}
	if v, ok := first.Float("pressure"); !ok || v != 101325.0 {
		t.Errorf("Expected pressure 101325, got %v (ok=%v)", v, ok)
	}
	if ts, ok := first.Time("ts"); !ok || !ts.Equal(base) {
		t.Errorf("Expected timestamp %v, got %v (ok=%v)", base, ts, ok)
	}
}

func TestWindyClientTrimsHorizon(t *testing.T) {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(windyTestPayload(base))
	}))
	defer server.Close()

	client, err := NewWindyClient(meteo.SourceWindyECMWF, "test-key", server.URL,
		WithHTTPClient(server.Client()),
		WithClock(clock.NewMockClock(base)))
	if err != nil {
		t.Fatalf("NewWindyClient() error = %v", err)
	}

	records, err := client.GetForecast(context.Background(), -34.6, -58.4, 4)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records within 4h horizon, got %d", len(records))
	}
}

func TestWindyClientGetCurrent(t *testing.T) {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(windyTestPayload(base))
	}))
	defer server.Close()

	client, err := NewWindyClient(meteo.SourceWindyGFS, "test-key", server.URL,
		WithHTTPClient(server.Client()),
		WithClock(clock.NewMockClock(base.Add(4*time.Hour))))
	if err != nil {
		t.Fatalf("NewWindyClient() error = %v", err)
	}

	record, err := client.GetCurrent(context.Background(), -34.6, -58.4)
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}
	if v, ok := record.Float("temp"); !ok || v != 290.15 {
		t.Errorf("Expected the 15:00 step (temp 290.15), got %v", v)
	}
}

func TestWindyClientGetCAPE(t *testing.T) {
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	var gotReq windyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ts":           []interface{}{epochMS(base), epochMS(base.Add(3 * time.Hour))},
			"cape-surface": []interface{}{800.0, 2400.0},
		})
	}))
	defer server.Close()

	client, err := NewWindyClient(meteo.SourceWindyECMWF, "test-key", server.URL,
		WithHTTPClient(server.Client()),
		WithClock(clock.NewMockClock(base)))
	if err != nil {
		t.Fatalf("NewWindyClient() error = %v", err)
	}

	series, err := client.GetCAPE(context.Background(), -34.6, -58.4, 24)
	if err != nil {
		t.Fatalf("GetCAPE() error = %v", err)
	}
	if len(gotReq.Parameters) != 1 || gotReq.Parameters[0] != "cape" {
		t.Errorf("Expected a cape-only request, got %v", gotReq.Parameters)
	}
	if len(series) != 2 || series[0] != 800.0 || series[1] != 2400.0 {
		t.Errorf("Expected [800 2400], got %v", series)
	}
}

func TestWindyClientHTTPErrors(t *testing.T) {
	tests := []struct {
		status       int
		wantsBreaker bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		client, err := NewWindyClient(meteo.SourceWindyGFS, "test-key", server.URL,
			WithHTTPClient(server.Client()))
		if err != nil {
			t.Fatalf("NewWindyClient() error = %v", err)
		}

		_, err = client.GetForecast(context.Background(), -34.6, -58.4, 24)
		server.Close()

		var he *HTTPError
		if !errors.As(err, &he) {
			t.Fatalf("Expected HTTPError for status %d, got %v", tt.status, err)
		}
		if he.StatusCode != tt.status {
			t.Errorf("Expected status %d, got %d", tt.status, he.StatusCode)
		}
		if IsTransient(err) {
			t.Errorf("HTTP %d must not be retryable", tt.status)
		}
		if got := CountsAsFailure(err); got != tt.wantsBreaker {
			t.Errorf("Expected CountsAsFailure=%v for status %d, got %v", tt.wantsBreaker, tt.status, got)
		}
	}
}

func TestWindyClientBadPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>gateway</html>"},
		{"missing ts axis", `{"temp-surface": [1, 2, 3]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewWindyClient(meteo.SourceWindyGFS, "test-key", server.URL,
				WithHTTPClient(server.Client()))
			if err != nil {
				t.Fatalf("NewWindyClient() error = %v", err)
			}

			_, err = client.GetForecast(context.Background(), -34.6, -58.4, 24)
			var pe *PayloadError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected PayloadError, got %v", err)
			}
			if CountsAsFailure(err) {
				t.Error("Bad payload must not count toward the breaker")
			}
		})
	}
}

func TestWindyClientTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewWindyClient(meteo.SourceWindyGFS, "test-key", url,
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	if err != nil {
		t.Fatalf("NewWindyClient() error = %v", err)
	}

	_, err = client.GetForecast(context.Background(), -34.6, -58.4, 24)
	if !IsTransient(err) {
		t.Errorf("Expected transient error for refused connection, got %v", err)
	}
	if !CountsAsFailure(err) {
		t.Error("Transient errors must count toward the breaker")
	}
}

func TestNewWindyClientRejectsBadInput(t *testing.T) {
	if _, err := NewWindyClient(meteo.SourceWRFSMN, "key", "http://example.com"); err == nil {
		t.Error("Expected error for a non-windy source")
	}
	if _, err := NewWindyClient(meteo.SourceWindyGFS, "", "http://example.com"); err == nil {
		t.Error("Expected error for a missing API key")
	}
}
