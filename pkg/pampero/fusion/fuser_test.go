package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

func newTestFuser() *Fuser {
	cfg := config.FusionConfig{
		Weights:       config.DefaultWeightTables(),
		Inconsistency: config.DefaultInconsistencyThresholds(),
	}
	return NewFuser(cfg, clock.NewMockClock(testTime))
}

func weightSum(contribs []meteo.SourceContribution) float64 {
	sum := 0.0
	for _, c := range contribs {
		sum += c.Weight
	}
	return sum
}

func TestFuseHourEmpty(t *testing.T) {
	u := newTestFuser().FuseHour(nil, testTime, 0, -34.6, -58.4)

	assert.Equal(t, 0.0, u.OverallConfidence)
	assert.Equal(t, meteo.ConfidenceVeryLow, u.ConfidenceLevel)
	assert.Equal(t, 0, u.SourcesAvailable)
	assert.NotNil(t, u.SourcesUsed)
	assert.Empty(t, u.SourcesUsed)
	assert.Nil(t, u.TemperatureC)
	assert.Equal(t, "weighted_average", u.FusionMethod)
}

func TestFuseHourAgreement(t *testing.T) {
	points := []meteo.NormalizedPoint{
		tempPoint(meteo.SourceWindyECMWF, 20.0),
		tempPoint(meteo.SourceWindyGFS, 21.0),
		tempPoint(meteo.SourceWRFSMN, 19.5),
	}

	u := newTestFuser().FuseHour(points, testTime, 0, -34.6, -58.4)

	require.NotNil(t, u.TemperatureC)
	// wrf 0.35, ecmwf 0.30, gfs 0.20 renormalized over 0.85.
	assert.InDelta(t, 20.0294, *u.TemperatureC, 1e-4)
	assert.InDelta(t, 20.05, *u.TemperatureC, 0.2)

	assert.InDelta(t, 0.904, u.TemperatureConfidence, 1e-9)
	assert.GreaterOrEqual(t, u.TemperatureConfidence, 0.9)
	assert.False(t, u.HasSignificantInconsistencies)
	assert.InDelta(t, 0.301, u.OverallConfidence, 1e-9)

	require.Len(t, u.TemperatureContributions, 3)
	assert.InDelta(t, 1.0, weightSum(u.TemperatureContributions), 1e-6)

	assert.Equal(t, []meteo.SourceID{
		meteo.SourceWindyECMWF,
		meteo.SourceWindyGFS,
		meteo.SourceWRFSMN,
	}, u.SourcesUsed)
	assert.Equal(t, 3, u.SourcesAvailable)
}

func TestFuseHourOutlier(t *testing.T) {
	points := []meteo.NormalizedPoint{
		tempPoint(meteo.SourceWindyECMWF, 20.0),
		tempPoint(meteo.SourceWindyGFS, 35.0),
		tempPoint(meteo.SourceWRFSMN, 19.5),
	}

	u := newTestFuser().FuseHour(points, testTime, 0, -34.6, -58.4)

	require.Len(t, u.Inconsistencies, 1)
	require.Len(t, u.Inconsistencies[0].OutlierSources, 1)
	assert.Equal(t, meteo.SourceWindyGFS, u.Inconsistencies[0].OutlierSources[0])
	assert.True(t, u.HasSignificantInconsistencies)

	require.NotNil(t, u.TemperatureC)
	assert.InDelta(t, 19.7308, *u.TemperatureC, 1e-4)
	assert.GreaterOrEqual(t, *u.TemperatureC, 19.0)
	assert.LessOrEqual(t, *u.TemperatureC, 22.0)

	// The outlier is excluded from the average but still a used source.
	require.Len(t, u.TemperatureContributions, 2)
	for _, c := range u.TemperatureContributions {
		assert.NotEqual(t, meteo.SourceWindyGFS, c.Source)
	}
	assert.InDelta(t, 1.0, weightSum(u.TemperatureContributions), 1e-6)
	assert.Equal(t, 3, u.SourcesAvailable)

	assert.InDelta(t, 0.1, u.OverallConfidence, 1e-9)
	assert.Less(t, u.OverallConfidence, 0.301)
}

func TestFuseWeightsSumToOne(t *testing.T) {
	mk := func(source meteo.SourceID, temp, wind, precip float64) meteo.NormalizedPoint {
		p := tempPoint(source, temp)
		p.WindSpeedMS = meteo.Float(wind)
		p.PrecipMM = meteo.Float(precip)
		return p
	}
	points := []meteo.NormalizedPoint{
		mk(meteo.SourceWindyECMWF, 20.0, 5.0, 0.0),
		mk(meteo.SourceWindyGFS, 21.0, 6.0, 0.5),
		mk(meteo.SourceWRFSMN, 19.5, 5.5, 0.2),
	}

	u := newTestFuser().FuseHour(points, testTime, 0, -34.6, -58.4)

	assert.InDelta(t, 1.0, weightSum(u.TemperatureContributions), 1e-6)
	assert.InDelta(t, 1.0, weightSum(u.WindContributions), 1e-6)
	assert.InDelta(t, 1.0, weightSum(u.PrecipitationContributions), 1e-6)
}

func TestFuseCircularWindDirection(t *testing.T) {
	cases := []struct {
		name string
		dirs [2]float64
		want float64
	}{
		{"across north", [2]float64{350, 10}, 0},
		{"across south", [2]float64{170, 190}, 180},
		{"short way around", [2]float64{0, 270}, 315},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p1 := tempPoint(meteo.SourceWindyECMWF, 20)
			p1.WindDirDeg = meteo.Float(tc.dirs[0])
			p2 := tempPoint(meteo.SourceWindyGFS, 20)
			p2.WindDirDeg = meteo.Float(tc.dirs[1])

			u := newTestFuser().FuseHour([]meteo.NormalizedPoint{p1, p2}, testTime, 0, -34.6, -58.4)

			require.NotNil(t, u.WindDirDeg)
			assert.InDelta(t, tc.want, *u.WindDirDeg, 0.5)
			assert.GreaterOrEqual(t, *u.WindDirDeg, 0.0)
			assert.Less(t, *u.WindDirDeg, 360.0)
		})
	}
}

func TestFuseOrderInvariant(t *testing.T) {
	mk := func(source meteo.SourceID, hour int, temp, wind float64) meteo.NormalizedPoint {
		return meteo.NormalizedPoint{
			Source:       source,
			Timestamp:    testTime.Add(time.Duration(hour) * time.Hour),
			ForecastHour: hour,
			TemperatureC: meteo.Float(temp),
			WindSpeedMS:  meteo.Float(wind),
		}
	}
	points := []meteo.NormalizedPoint{
		mk(meteo.SourceWindyECMWF, 0, 20.0, 5.0),
		mk(meteo.SourceWindyGFS, 0, 21.0, 6.0),
		mk(meteo.SourceWRFSMN, 0, 19.5, 5.5),
		mk(meteo.SourceWindyECMWF, 1, 19.0, 4.0),
		mk(meteo.SourceWindyGFS, 1, 19.5, 4.5),
		mk(meteo.SourceWRFSMN, 1, 18.5, 4.2),
	}
	shuffled := []meteo.NormalizedPoint{
		points[5], points[2], points[4], points[0], points[3], points[1],
	}

	fuser := newTestFuser()
	a := fuser.FuseAll(points, -34.6, -58.4)
	b := fuser.FuseAll(shuffled, -34.6, -58.4)

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	for i := range a {
		assert.Equal(t, a[i].ForecastHour, b[i].ForecastHour)
		assert.InDelta(t, *a[i].TemperatureC, *b[i].TemperatureC, 1e-6)
		assert.InDelta(t, *a[i].WindSpeedMS, *b[i].WindSpeedMS, 1e-6)
		assert.InDelta(t, a[i].OverallConfidence, b[i].OverallConfidence, 1e-6)
		assert.Equal(t, a[i].SourcesUsed, b[i].SourcesUsed)
	}
}

func TestFuseConfidenceMonotonic(t *testing.T) {
	base := []meteo.NormalizedPoint{
		tempPoint(meteo.SourceWindyECMWF, 20.0),
		tempPoint(meteo.SourceWindyGFS, 20.4),
		tempPoint(meteo.SourceWRFSMN, 19.8),
	}
	agreeing := append(append([]meteo.NormalizedPoint{}, base...),
		tempPoint(meteo.SourceWindyICON, 20.05))
	disagreeing := append(append([]meteo.NormalizedPoint{}, base...),
		tempPoint(meteo.SourceWindyICON, 33.0))

	fuser := newTestFuser()
	ub := fuser.FuseHour(base, testTime, 0, -34.6, -58.4)
	ua := fuser.FuseHour(agreeing, testTime, 0, -34.6, -58.4)
	ud := fuser.FuseHour(disagreeing, testTime, 0, -34.6, -58.4)

	assert.GreaterOrEqual(t, ua.TemperatureConfidence, ub.TemperatureConfidence)
	assert.GreaterOrEqual(t, ua.OverallConfidence, ub.OverallConfidence)

	assert.Less(t, ud.TemperatureConfidence, ub.TemperatureConfidence)
	assert.LessOrEqual(t, ud.OverallConfidence, ub.OverallConfidence)
}

func TestFuseHorizonTables(t *testing.T) {
	mk := func(hour int) []meteo.NormalizedPoint {
		ts := testTime.Add(time.Duration(hour) * time.Hour)
		return []meteo.NormalizedPoint{
			{Source: meteo.SourceWindyECMWF, Timestamp: ts, ForecastHour: hour, TemperatureC: meteo.Float(20.0)},
			{Source: meteo.SourceWindyGFS, Timestamp: ts, ForecastHour: hour, TemperatureC: meteo.Float(21.0)},
		}
	}
	fuser := newTestFuser()

	// Hour 72 is the last short-table hour: ecmwf 0.30 / gfs 0.20.
	short := fuser.FuseHour(mk(72), testTime.Add(72*time.Hour), 72, -34.6, -58.4)
	require.NotNil(t, short.TemperatureC)
	assert.InDelta(t, 20.4, *short.TemperatureC, 1e-6)

	// Hour 73 switches to the long table: ecmwf 0.40 / gfs 0.30.
	long := fuser.FuseHour(mk(73), testTime.Add(73*time.Hour), 73, -34.6, -58.4)
	require.NotNil(t, long.TemperatureC)
	assert.InDelta(t, 20.428571, *long.TemperatureC, 1e-6)
}

func TestFuseUnknownSourceWeight(t *testing.T) {
	cfg := config.FusionConfig{
		Weights: config.WeightTables{
			meteo.VarTemperature: {
				Short: config.SourceWeights{
					Weights: map[meteo.SourceID]float64{meteo.SourceWindyGFS: 0.9},
				},
			},
		},
		Inconsistency: config.DefaultInconsistencyThresholds(),
	}
	fuser := NewFuser(cfg, clock.NewMockClock(testTime))

	points := []meteo.NormalizedPoint{
		tempPoint(meteo.SourceWindyGFS, 20.0),
		tempPoint(meteo.SourceWindyICON, 30.0),
	}
	u := fuser.FuseHour(points, testTime, 0, -34.6, -58.4)

	// icon has no table entry and no default, so it gets the 0.1 floor.
	require.NotNil(t, u.TemperatureC)
	assert.InDelta(t, 21.0, *u.TemperatureC, 1e-6)
}

func TestFuseMeanFields(t *testing.T) {
	p1 := tempPoint(meteo.SourceWindyECMWF, 20)
	p1.CloudPct = meteo.Float(40)
	p1.HumidityPct = meteo.Float(50)
	p1.PressureHPa = meteo.Float(1010)
	p2 := tempPoint(meteo.SourceWRFSMN, 20)
	p2.CloudPct = meteo.Float(60)
	p2.HumidityPct = meteo.Float(70)
	p2.PressureHPa = meteo.Float(1014)
	p2.WeatherCode = meteo.Int(95)

	u := newTestFuser().FuseHour([]meteo.NormalizedPoint{p1, p2}, testTime, 0, -34.6, -58.4)

	require.NotNil(t, u.CloudPct)
	assert.InDelta(t, 50.0, *u.CloudPct, 1e-9)
	require.NotNil(t, u.HumidityPct)
	assert.InDelta(t, 60.0, *u.HumidityPct, 1e-9)
	require.NotNil(t, u.PressureHPa)
	assert.InDelta(t, 1012.0, *u.PressureHPa, 1e-9)
	require.NotNil(t, u.WeatherCode)
	assert.Equal(t, 95, *u.WeatherCode)
}

func TestFuseAllGroupsByHour(t *testing.T) {
	mk := func(source meteo.SourceID, hour int, temp float64) meteo.NormalizedPoint {
		return meteo.NormalizedPoint{
			Source:       source,
			Timestamp:    testTime.Add(time.Duration(hour) * time.Hour),
			ForecastHour: hour,
			TemperatureC: meteo.Float(temp),
		}
	}
	points := []meteo.NormalizedPoint{
		mk(meteo.SourceWRFSMN, 1, 19.0),
		mk(meteo.SourceWindyECMWF, 0, 20.0),
		mk(meteo.SourceWindyECMWF, 2, 18.0),
		mk(meteo.SourceWRFSMN, 0, 20.5),
		mk(meteo.SourceWindyECMWF, 1, 19.5),
	}

	out := newTestFuser().FuseAll(points, -34.6, -58.4)

	require.Len(t, out, 3)
	for i, want := range []int{0, 1, 2} {
		assert.Equal(t, want, out[i].ForecastHour)
		assert.Equal(t, testTime.Add(time.Duration(want)*time.Hour), out[i].Timestamp)
	}
	assert.Equal(t, 2, out[0].SourcesAvailable)
	assert.Equal(t, 2, out[1].SourcesAvailable)
	assert.Equal(t, 1, out[2].SourcesAvailable)
}

func TestFuseAllEmpty(t *testing.T) {
	assert.Nil(t, newTestFuser().FuseAll(nil, -34.6, -58.4))
}

func TestFuseCurrentUsesEarliestTimestamp(t *testing.T) {
	early := testTime.Add(-10 * time.Minute)
	p1 := tempPoint(meteo.SourceWindyECMWF, 20)
	p1.Timestamp = early
	p2 := tempPoint(meteo.SourceWRFSMN, 21)
	p2.Timestamp = testTime.Add(-5 * time.Minute)

	u := newTestFuser().FuseCurrent([]meteo.NormalizedPoint{p1, p2}, -34.6, -58.4)

	assert.Equal(t, early, u.Timestamp)
	assert.Equal(t, 0, u.ForecastHour)
	assert.Equal(t, 2, u.SourcesAvailable)
}
