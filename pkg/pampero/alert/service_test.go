package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

var alertTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService() *Service {
	return NewService(config.DefaultPatternThresholds(), clock.NewMockClock(alertTime))
}

func stormPattern(level meteo.RiskLevel, confidence float64) meteo.DetectedPattern {
	return meteo.DetectedPattern{
		PatternType: meteo.PatternSevereConvectiveStorm,
		RiskLevel:   level,
		Confidence:  confidence,
		Title:       "Tormenta Convectiva",
		Description: "Actividad convectiva prevista",
	}
}

func precipForecast(hour int, mm float64) meteo.UnifiedForecast {
	return meteo.UnifiedForecast{ForecastHour: hour, PrecipMM: meteo.Float(mm)}
}

func windForecast(hour int, ms float64) meteo.UnifiedForecast {
	return meteo.UnifiedForecast{ForecastHour: hour, WindSpeedMS: meteo.Float(ms)}
}

func tempForecast(hour int, c float64) meteo.UnifiedForecast {
	return meteo.UnifiedForecast{ForecastHour: hour, TemperatureC: meteo.Float(c)}
}

func TestGenerateDedupesPhenomenon(t *testing.T) {
	patterns := []meteo.DetectedPattern{
		stormPattern(meteo.RiskModerate, 0.5),
		stormPattern(meteo.RiskExtreme, 0.9),
	}

	alerts := newTestService().Generate(patterns, nil)

	require.Len(t, alerts, 1)
	assert.Equal(t, 4, alerts[0].Level)
	assert.Equal(t, "Alerta Crítica", alerts[0].LevelName)
	assert.Equal(t, "lluvia intensa", alerts[0].Phenomenon)
}

func TestGeneratePatternLevels(t *testing.T) {
	cases := []struct {
		risk      meteo.RiskLevel
		wantLevel int
		wantName  string
	}{
		{meteo.RiskLow, 1, "Atención"},
		{meteo.RiskModerate, 2, "Precaución"},
		{meteo.RiskHigh, 3, "Alerta"},
		{meteo.RiskExtreme, 4, "Alerta Crítica"},
	}
	for _, tc := range cases {
		alerts := newTestService().Generate([]meteo.DetectedPattern{stormPattern(tc.risk, 0.9)}, nil)
		require.Len(t, alerts, 1, "risk %s", tc.risk)
		assert.Equal(t, tc.wantLevel, alerts[0].Level, "risk %s", tc.risk)
		assert.Equal(t, tc.wantName, alerts[0].LevelName, "risk %s", tc.risk)
	}
}

func TestGenerateConfidenceDowngrade(t *testing.T) {
	alerts := newTestService().Generate([]meteo.DetectedPattern{stormPattern(meteo.RiskHigh, 0.4)}, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, 2, alerts[0].Level)

	// Level 1 never drops to 0 on low confidence.
	alerts = newTestService().Generate([]meteo.DetectedPattern{stormPattern(meteo.RiskLow, 0.3)}, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, 1, alerts[0].Level)
}

func TestGeneratePatternWindow(t *testing.T) {
	frost := meteo.DetectedPattern{
		PatternType: meteo.PatternFrost,
		RiskLevel:   meteo.RiskHigh,
		Confidence:  0.85,
		Description: "Temperatura mínima prevista de -3.0°C",
		Recommendations: []string{
			"Proteger cultivos con riego por aspersión o coberturas",
		},
	}

	alerts := newTestService().Generate([]meteo.DetectedPattern{frost}, nil)

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, 3, a.Level)
	assert.Equal(t, "heladas", a.Phenomenon)
	assert.Equal(t, "3-12h", a.TimeWindow)
	assert.Equal(t, 3, a.HorizonHours)
	assert.Equal(t, "próximas horas", a.Proximity)
	assert.Equal(t, alertTime.Add(3*time.Hour), a.ValidFrom)
	assert.Equal(t, alertTime.Add(12*time.Hour), a.ValidUntil)
	assert.Equal(t, "Proteger cultivos con riego por aspersión o coberturas", a.Recommendation)
	assert.NotEmpty(t, a.ExpectedImpact)
}

func TestGenerateNormalFallback(t *testing.T) {
	forecasts := []meteo.UnifiedForecast{
		tempForecast(0, 20.0),
		tempForecast(6, 22.0),
		tempForecast(12, 18.0),
	}

	alerts := newTestService().Generate(nil, forecasts)

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, 0, a.Level)
	assert.Equal(t, "Condición Normal", a.LevelName)
	assert.Equal(t, alertTime, a.ValidFrom)
	assert.Equal(t, alertTime.Add(72*time.Hour), a.ValidUntil)
}

func TestGenerateEmptyInput(t *testing.T) {
	alerts := newTestService().Generate(nil, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, 0, alerts[0].Level)
}

func TestWindowScanPrecip(t *testing.T) {
	cases := []struct {
		name      string
		hour      int
		wantLevel int
	}{
		{"imminent window", 1, 4},
		{"near window", 5, 3},
		{"same day", 15, 2},
		{"next day", 30, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alerts := newTestService().Generate(nil, []meteo.UnifiedForecast{precipForecast(tc.hour, 35.0)})
			require.Len(t, alerts, 1)
			assert.Equal(t, "lluvia intensa", alerts[0].Phenomenon)
			assert.Equal(t, tc.wantLevel, alerts[0].Level)
		})
	}
}

func TestWindowScanWind(t *testing.T) {
	cases := []struct {
		hour      int
		wantLevel int
	}{
		{1, 3},
		{5, 2},
		{15, 1},
	}
	for _, tc := range cases {
		alerts := newTestService().Generate(nil, []meteo.UnifiedForecast{windForecast(tc.hour, 25.0)})
		require.Len(t, alerts, 1, "hour %d", tc.hour)
		assert.Equal(t, "vientos fuertes", alerts[0].Phenomenon, "hour %d", tc.hour)
		assert.Equal(t, tc.wantLevel, alerts[0].Level, "hour %d", tc.hour)
	}
}

func TestWindowScanTemperature(t *testing.T) {
	alerts := newTestService().Generate(nil, []meteo.UnifiedForecast{tempForecast(2, 41.0)})
	require.Len(t, alerts, 1)
	assert.Equal(t, "calor extremo", alerts[0].Phenomenon)
	assert.Equal(t, 3, alerts[0].Level)

	alerts = newTestService().Generate(nil, []meteo.UnifiedForecast{tempForecast(2, -1.0)})
	require.Len(t, alerts, 1)
	assert.Equal(t, "heladas", alerts[0].Phenomenon)
	assert.Equal(t, 3, alerts[0].Level)

	alerts = newTestService().Generate(nil, []meteo.UnifiedForecast{tempForecast(30, -1.0)})
	require.Len(t, alerts, 1)
	assert.Equal(t, "heladas", alerts[0].Phenomenon)
	assert.Equal(t, 2, alerts[0].Level)
}

func TestWindowScanKeepsMaxAcrossBuckets(t *testing.T) {
	forecasts := []meteo.UnifiedForecast{
		precipForecast(1, 35.0),
		precipForecast(5, 40.0),
		precipForecast(30, 32.0),
	}

	alerts := newTestService().Generate(nil, forecasts)

	require.Len(t, alerts, 1)
	assert.Equal(t, "lluvia intensa", alerts[0].Phenomenon)
	assert.Equal(t, 4, alerts[0].Level)
}

func TestGenerateSortsByLevelDescending(t *testing.T) {
	patterns := []meteo.DetectedPattern{
		{PatternType: meteo.PatternHeatWave, RiskLevel: meteo.RiskModerate, Confidence: 0.7},
	}
	forecasts := []meteo.UnifiedForecast{
		precipForecast(1, 35.0), // lluvia intensa level 4
		windForecast(15, 25.0),  // vientos fuertes level 1
	}

	alerts := newTestService().Generate(patterns, forecasts)

	require.Len(t, alerts, 3)
	for i := 1; i < len(alerts); i++ {
		assert.GreaterOrEqual(t, alerts[i-1].Level, alerts[i].Level)
	}
	assert.Equal(t, "lluvia intensa", alerts[0].Phenomenon)
}

func TestWindowScanIgnoresBeyondTwoDays(t *testing.T) {
	alerts := newTestService().Generate(nil, []meteo.UnifiedForecast{precipForecast(50, 60.0)})
	require.Len(t, alerts, 1)
	assert.Equal(t, 0, alerts[0].Level)
}

func TestPatternAndWindowSamePhenomenonMerge(t *testing.T) {
	frost := meteo.DetectedPattern{
		PatternType: meteo.PatternFrost,
		RiskLevel:   meteo.RiskModerate,
		Confidence:  0.8,
	}
	forecasts := []meteo.UnifiedForecast{tempForecast(2, -1.0)}

	alerts := newTestService().Generate([]meteo.DetectedPattern{frost}, forecasts)

	require.Len(t, alerts, 1)
	assert.Equal(t, "heladas", alerts[0].Phenomenon)
	// Window scan raises the pattern's level 2 to 3 inside 0-3h.
	assert.Equal(t, 3, alerts[0].Level)
}
