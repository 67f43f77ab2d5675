// Package testing provides mock implementations shared by pipeline tests.
package testing

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/provider"
)

// MockProvider implements provider.Client for testing.
// Supports both simple fixed values and function overrides for more complex
// scenarios.
type MockProvider struct {
	SourceID meteo.SourceID

	// Simple mode fields
	ForecastRecords []provider.RawRecord
	CurrentRecord   provider.RawRecord
	Err             error

	// Advanced mode function overrides (when set, these take precedence)
	GetForecastFunc func(ctx context.Context, lat, lon float64, hours int) ([]provider.RawRecord, error)
	GetCurrentFunc  func(ctx context.Context, lat, lon float64) (provider.RawRecord, error)

	forecastCalls int64
	currentCalls  int64
}

func (m *MockProvider) Source() meteo.SourceID {
	return m.SourceID
}

func (m *MockProvider) GetForecast(ctx context.Context, lat, lon float64, hours int) ([]provider.RawRecord, error) {
	atomic.AddInt64(&m.forecastCalls, 1)
	if m.GetForecastFunc != nil {
		return m.GetForecastFunc(ctx, lat, lon, hours)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ForecastRecords, nil
}

func (m *MockProvider) GetCurrent(ctx context.Context, lat, lon float64) (provider.RawRecord, error) {
	atomic.AddInt64(&m.currentCalls, 1)
	if m.GetCurrentFunc != nil {
		return m.GetCurrentFunc(ctx, lat, lon)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.CurrentRecord, nil
}

// ForecastCalls returns how many times GetForecast ran.
func (m *MockProvider) ForecastCalls() int {
	return int(atomic.LoadInt64(&m.forecastCalls))
}

// CurrentCalls returns how many times GetCurrent ran.
func (m *MockProvider) CurrentCalls() int {
	return int(atomic.LoadInt64(&m.currentCalls))
}

// MockCAPEProvider is a MockProvider that also serves a CAPE series.
type MockCAPEProvider struct {
	MockProvider

	CAPESeries []float64
	CAPEErr    error

	GetCAPEFunc func(ctx context.Context, lat, lon float64, hours int) ([]float64, error)

	capeCalls int64
}

func (m *MockCAPEProvider) GetCAPE(ctx context.Context, lat, lon float64, hours int) ([]float64, error) {
	atomic.AddInt64(&m.capeCalls, 1)
	if m.GetCAPEFunc != nil {
		return m.GetCAPEFunc(ctx, lat, lon, hours)
	}
	if m.CAPEErr != nil {
		return nil, m.CAPEErr
	}
	return m.CAPESeries, nil
}

// CAPECalls returns how many times GetCAPE ran.
func (m *MockCAPEProvider) CAPECalls() int {
	return int(atomic.LoadInt64(&m.capeCalls))
}

// ForecastRecords builds an hourly series of simple raw records starting at
// base. Each value map is merged over a record carrying only a timestamp.
func ForecastRecords(base time.Time, step time.Duration, values []map[string]interface{}) []provider.RawRecord {
	records := make([]provider.RawRecord, 0, len(values))
	for i, fields := range values {
		r := provider.RawRecord{
			"timestamp": base.Add(time.Duration(i) * step).Format(time.RFC3339),
		}
		for k, v := range fields {
			r[k] = v
		}
		records = append(records, r)
	}
	return records
}
