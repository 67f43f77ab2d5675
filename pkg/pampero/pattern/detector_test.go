package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

var detectTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestDetector() *Detector {
	return NewDetector(config.DefaultPatternThresholds(), clock.NewMockClock(detectTime))
}

func tempForecast(hour int, temp float64) meteo.UnifiedForecast {
	return meteo.UnifiedForecast{
		Timestamp:    detectTime.Add(time.Duration(hour) * time.Hour),
		ForecastHour: hour,
		TemperatureC: meteo.Float(temp),
	}
}

func hourlyTemps(n int, temp float64) []meteo.UnifiedForecast {
	out := make([]meteo.UnifiedForecast, 0, n)
	for h := 0; h < n; h++ {
		out = append(out, tempForecast(h, temp))
	}
	return out
}

func findPattern(patterns []meteo.DetectedPattern, pt meteo.PatternType) *meteo.DetectedPattern {
	for i := range patterns {
		if patterns[i].PatternType == pt {
			return &patterns[i]
		}
	}
	return nil
}

func TestDetectHeatWave(t *testing.T) {
	patterns := newTestDetector().Detect(hourlyTemps(72, 36.0), nil)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, meteo.PatternHeatWave, p.PatternType)
	assert.Equal(t, meteo.RiskHigh, p.RiskLevel)
	assert.InDelta(t, 0.80, p.Confidence, 1e-9)
	assert.InDelta(t, 3.0, p.TriggerValues["days_above_threshold"], 1e-9)
	assert.InDelta(t, 36.0, p.TriggerValues["max_temperature_c"], 1e-9)
	assert.Contains(t, p.ThresholdsExceeded, "heat_wave_day")
	assert.NotEmpty(t, p.Recommendations)
	assert.Equal(t, detectTime, p.DetectedAt)
}

func TestDetectHeatWaveBands(t *testing.T) {
	cases := []struct {
		name      string
		hours     int
		temp      float64
		wantLevel meteo.RiskLevel
		wantConf  float64
	}{
		{"under two days", 47, 36.0, "", 0},
		{"two days", 48, 36.0, meteo.RiskModerate, 0.70},
		{"three days", 72, 36.0, meteo.RiskHigh, 0.80},
		{"five days", 120, 36.0, meteo.RiskExtreme, 0.85},
		{"peak over forty", 48, 41.0, meteo.RiskExtreme, 0.85},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patterns := newTestDetector().Detect(hourlyTemps(tc.hours, tc.temp), nil)
			p := findPattern(patterns, meteo.PatternHeatWave)
			if tc.wantLevel == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tc.wantLevel, p.RiskLevel)
			assert.InDelta(t, tc.wantConf, p.Confidence, 1e-9)
		})
	}
}

func TestDetectExtremeHeat(t *testing.T) {
	patterns := newTestDetector().Detect([]meteo.UnifiedForecast{tempForecast(0, 41.0)}, nil)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, meteo.PatternExtremeHeat, p.PatternType)
	assert.Equal(t, meteo.RiskExtreme, p.RiskLevel)
	assert.InDelta(t, 0.90, p.Confidence, 1e-9)
	assert.Contains(t, p.ThresholdsExceeded, "extreme_heat")
}

func TestDetectColdWaveBands(t *testing.T) {
	cases := []struct {
		name      string
		hours     int
		temp      float64
		wantLevel meteo.RiskLevel
	}{
		{"under two days", 47, 2.0, ""},
		{"two days", 48, 2.0, meteo.RiskModerate},
		{"three days", 72, 2.0, meteo.RiskHigh},
		{"five days", 120, 2.0, meteo.RiskExtreme},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patterns := newTestDetector().Detect(hourlyTemps(tc.hours, tc.temp), nil)
			p := findPattern(patterns, meteo.PatternColdWave)
			if tc.wantLevel == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tc.wantLevel, p.RiskLevel)
		})
	}
}

func TestDetectColdWaveSevereMinimum(t *testing.T) {
	forecasts := hourlyTemps(48, 2.0)
	forecasts = append(forecasts, tempForecast(48, -6.0))

	patterns := newTestDetector().Detect(forecasts, nil)

	cold := findPattern(patterns, meteo.PatternColdWave)
	require.NotNil(t, cold)
	assert.Equal(t, meteo.RiskExtreme, cold.RiskLevel)
	assert.Contains(t, cold.ThresholdsExceeded, "severe_frost")

	// The -6 minimum also reads as severe frost on its own.
	frost := findPattern(patterns, meteo.PatternFrost)
	require.NotNil(t, frost)
	assert.Equal(t, meteo.RiskExtreme, frost.RiskLevel)
	assert.Equal(t, "Helada Severa", frost.Title)
}

func TestDetectFrost(t *testing.T) {
	patterns := newTestDetector().Detect([]meteo.UnifiedForecast{tempForecast(0, -3.0)}, nil)

	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, meteo.PatternFrost, p.PatternType)
	assert.Equal(t, meteo.RiskHigh, p.RiskLevel)
	assert.InDelta(t, 0.85, p.Confidence, 1e-9)
	assert.InDelta(t, -3.0, p.TriggerValues["min_temperature_c"], 1e-9)
	assert.NotEmpty(t, p.Recommendations)
}

func TestDetectFrostBands(t *testing.T) {
	cases := []struct {
		temp      float64
		wantLevel meteo.RiskLevel
		wantConf  float64
		wantTitle string
	}{
		{0.1, "", 0, ""},
		{0.0, meteo.RiskModerate, 0.80, "Helada"},
		{-1.0, meteo.RiskModerate, 0.80, "Helada"},
		{-2.0, meteo.RiskHigh, 0.85, "Helada"},
		{-4.9, meteo.RiskHigh, 0.85, "Helada"},
		{-5.0, meteo.RiskExtreme, 0.90, "Helada Severa"},
		{-8.0, meteo.RiskExtreme, 0.90, "Helada Severa"},
	}
	for _, tc := range cases {
		patterns := newTestDetector().Detect([]meteo.UnifiedForecast{tempForecast(0, tc.temp)}, nil)
		p := findPattern(patterns, meteo.PatternFrost)
		if tc.wantLevel == "" {
			assert.Nil(t, p, "temp %.1f", tc.temp)
			continue
		}
		require.NotNil(t, p, "temp %.1f", tc.temp)
		assert.Equal(t, tc.wantLevel, p.RiskLevel, "temp %.1f", tc.temp)
		assert.InDelta(t, tc.wantConf, p.Confidence, 1e-9, "temp %.1f", tc.temp)
		assert.Equal(t, tc.wantTitle, p.Title, "temp %.1f", tc.temp)
	}
}

func TestDetectConvectiveCape(t *testing.T) {
	cases := []struct {
		name      string
		cape      float64
		wantLevel meteo.RiskLevel
		wantConf  float64
	}{
		{"extreme", 3500, meteo.RiskExtreme, 0.9},
		{"strong", 2500, meteo.RiskHigh, 0.8},
		{"moderate", 1500, meteo.RiskModerate, 0.7},
		{"below tiers", 900, "", 0},
	}
	benign := hourlyTemps(3, 20.0)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patterns := newTestDetector().Detect(benign, []float64{500, tc.cape, 300})
			p := findPattern(patterns, meteo.PatternSevereConvectiveStorm)
			if tc.wantLevel == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tc.wantLevel, p.RiskLevel)
			assert.InDelta(t, tc.wantConf, p.Confidence, 1e-9)
			assert.InDelta(t, tc.cape, p.TriggerValues["max_cape"], 1e-9)
		})
	}
}

func TestDetectConvectiveProxy(t *testing.T) {
	mk := func(precip, wind float64) []meteo.UnifiedForecast {
		f := tempForecast(0, 22.0)
		f.PrecipMM = meteo.Float(precip)
		f.WindSpeedMS = meteo.Float(wind)
		return []meteo.UnifiedForecast{f}
	}
	cases := []struct {
		name      string
		precip    float64
		wind      float64
		wantLevel meteo.RiskLevel
		wantConf  float64
		wantRisk  float64
	}{
		{"high", 50, 21, meteo.RiskHigh, 0.6, 1.7},
		{"moderate", 40, 18, meteo.RiskModerate, 0.5, 1.4},
		{"wind gate fails", 40, 10, "", 0, 0},
		{"index too low", 16, 15, "", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			patterns := newTestDetector().Detect(mk(tc.precip, tc.wind), nil)
			p := findPattern(patterns, meteo.PatternSevereConvectiveStorm)
			if tc.wantLevel == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tc.wantLevel, p.RiskLevel)
			assert.InDelta(t, tc.wantConf, p.Confidence, 1e-9)
			assert.InDelta(t, tc.wantRisk, p.TriggerValues["storm_risk_index"], 1e-9)
		})
	}
}

func TestDetectCapeBelowTiersFallsBackToProxy(t *testing.T) {
	f := tempForecast(0, 22.0)
	f.PrecipMM = meteo.Float(50)
	f.WindSpeedMS = meteo.Float(21)

	patterns := newTestDetector().Detect([]meteo.UnifiedForecast{f}, []float64{900})

	p := findPattern(patterns, meteo.PatternSevereConvectiveStorm)
	require.NotNil(t, p)
	assert.Equal(t, meteo.RiskHigh, p.RiskLevel)
	assert.Contains(t, p.ThresholdsExceeded, "storm_proxy_precip")
}

func TestDetectCurrent(t *testing.T) {
	d := newTestDetector()

	patterns := d.DetectCurrent(tempForecast(0, -3.0), nil)
	require.Len(t, patterns, 1)
	assert.Equal(t, meteo.PatternFrost, patterns[0].PatternType)

	cape := 3200.0
	patterns = d.DetectCurrent(tempForecast(0, 22.0), &cape)
	require.Len(t, patterns, 1)
	assert.Equal(t, meteo.PatternSevereConvectiveStorm, patterns[0].PatternType)
	assert.Equal(t, meteo.RiskExtreme, patterns[0].RiskLevel)
}

func TestDetectEmpty(t *testing.T) {
	assert.Nil(t, newTestDetector().Detect(nil, nil))
}

func TestRecommendationsAlwaysPresent(t *testing.T) {
	types := []meteo.PatternType{
		meteo.PatternSevereConvectiveStorm,
		meteo.PatternHeatWave,
		meteo.PatternColdWave,
		meteo.PatternFrost,
		meteo.PatternExtremeHeat,
	}
	levels := []meteo.RiskLevel{meteo.RiskLow, meteo.RiskModerate, meteo.RiskHigh, meteo.RiskExtreme}
	for _, pt := range types {
		for _, lv := range levels {
			assert.NotEmpty(t, recommendationsFor(pt, lv), "%s/%s", pt, lv)
		}
	}
}
