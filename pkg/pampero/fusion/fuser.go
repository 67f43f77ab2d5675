// Package fusion combines per-source normalized points into unified
// forecasts: weighted averages per variable, cross-source inconsistency
// reports, and confidence scoring.
package fusion

import (
	"math"
	"sort"
	"time"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
)

const (
	fusionMethod = "weighted_average"

	// shortHorizonMaxHour splits the weight tables: the short table applies
	// through hour 72, the long table beyond.
	shortHorizonMaxHour = 72

	// unknownSourceWeight applies to a source absent from the weight table
	// with no fallback share configured.
	unknownSourceWeight = 0.1
)

// Variables fused by simple arithmetic mean rather than the weight tables.
const (
	varWindDirection = "wind_direction"
	varHumidity      = "humidity"
	varPressure      = "pressure"
)

// Fuser combines per-source points into UnifiedForecasts.
type Fuser struct {
	weights  config.WeightTables
	detector *Detector
	clock    clock.Clock
}

// NewFuser builds a fuser from the fusion config.
func NewFuser(cfg config.FusionConfig, clk clock.Clock) *Fuser {
	return &Fuser{
		weights:  cfg.Weights,
		detector: NewDetector(cfg.Inconsistency),
		clock:    clk,
	}
}

// FuseAll groups points by forecast hour and fuses each bucket, ascending.
// Bucket timestamps are anchored at the batch base time so every forecast
// satisfies timestamp = base + forecast_hour.
func (f *Fuser) FuseAll(points []meteo.NormalizedPoint, lat, lon float64) []meteo.UnifiedForecast {
	if len(points) == 0 {
		return nil
	}

	baseTime := points[0].Timestamp.Add(-time.Duration(points[0].ForecastHour) * time.Hour)
	buckets := make(map[int][]meteo.NormalizedPoint)
	for _, p := range points {
		base := p.Timestamp.Add(-time.Duration(p.ForecastHour) * time.Hour)
		if base.Before(baseTime) {
			baseTime = base
		}
		buckets[p.ForecastHour] = append(buckets[p.ForecastHour], p)
	}

	hours := make([]int, 0, len(buckets))
	for h := range buckets {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	out := make([]meteo.UnifiedForecast, 0, len(hours))
	for _, h := range hours {
		ts := baseTime.Add(time.Duration(h) * time.Hour)
		out = append(out, f.FuseHour(buckets[h], ts, h, lat, lon))
	}

	klog.V(2).InfoS("Fused forecast sequence",
		"points", len(points),
		"buckets", len(hours),
		"lat", lat,
		"lon", lon)
	return out
}

// FuseCurrent fuses the per-source current conditions into one forecast at
// hour zero.
func (f *Fuser) FuseCurrent(points []meteo.NormalizedPoint, lat, lon float64) meteo.UnifiedForecast {
	ts := f.clock.Now()
	for _, p := range points {
		if p.Timestamp.Before(ts) {
			ts = p.Timestamp
		}
	}
	return f.FuseHour(points, ts, 0, lat, lon)
}

// FuseHour fuses one (timestamp, forecast_hour) bucket.
func (f *Fuser) FuseHour(points []meteo.NormalizedPoint, ts time.Time, forecastHour int, lat, lon float64) meteo.UnifiedForecast {
	if len(points) == 0 {
		return meteo.UnifiedForecast{
			Timestamp:       ts,
			ForecastHour:    forecastHour,
			Lat:             lat,
			Lon:             lon,
			ConfidenceLevel: meteo.ConfidenceVeryLow,
			SourcesUsed:     []meteo.SourceID{},
			FusionMethod:    fusionMethod,
		}
	}

	reports := f.detector.Detect(points, ts, forecastHour)
	horizon := horizonFor(forecastHour)

	u := meteo.UnifiedForecast{
		Timestamp:       ts,
		ForecastHour:    forecastHour,
		Lat:             lat,
		Lon:             lon,
		Inconsistencies: reports,
		FusionMethod:    fusionMethod,
	}

	u.TemperatureC, u.TemperatureContributions, u.TemperatureConfidence =
		f.fuseWeighted(points, meteo.VarTemperature, horizon, reports)
	u.WindSpeedMS, u.WindContributions, u.WindConfidence =
		f.fuseWeighted(points, meteo.VarWind, horizon, reports)
	u.PrecipMM, u.PrecipitationContributions, u.PrecipitationConfidence =
		f.fuseWeighted(points, meteo.VarPrecipitation, horizon, reports)

	u.WindDirDeg = circularMean(collectValues(points, varWindDirection))
	u.CloudPct = arithmeticMean(collectValues(points, meteo.VarCloudCover))
	u.HumidityPct = arithmeticMean(collectValues(points, varHumidity))
	u.PressureHPa = arithmeticMean(collectValues(points, varPressure))
	u.WeatherCode = maxWeatherCode(points)

	significant := 0
	for _, r := range reports {
		if r.IsSignificant() {
			significant++
		}
	}
	u.HasSignificantInconsistencies = significant > 0

	overall := (u.TemperatureConfidence + u.WindConfidence + u.PrecipitationConfidence) / 3
	overall -= math.Min(0.3, 0.1*float64(significant))
	if overall < 0.1 {
		overall = 0.1
	}
	u.OverallConfidence = round3(overall)
	u.ConfidenceLevel = meteo.ConfidenceLevelFor(u.OverallConfidence)

	u.SourcesUsed = distinctSources(points)
	u.SourcesAvailable = len(u.SourcesUsed)

	metrics.FusedForecasts.WithLabelValues(string(u.ConfidenceLevel)).Inc()
	return u
}

// fuseWeighted runs the weight-table fusion for one variable: base weights
// derated for outliers and renormalized, weighted value, contribution list
// and confidence. Outliers named by a significant report are dropped from
// the average entirely; a 10% derate would still let a wild value drag the
// fused result out of the plausible band.
func (f *Fuser) fuseWeighted(points []meteo.NormalizedPoint, weightVar, horizon string, reports []meteo.InconsistencyReport) (*float64, []meteo.SourceContribution, float64) {
	valueVar := weightVar
	if weightVar == meteo.VarWind {
		valueVar = meteo.VarWindSpeed
	}

	values := collectValues(points, valueVar)
	if len(values) == 0 {
		return nil, nil, 0
	}

	base := math.Min(1, float64(len(values))/3)
	penalty := meanSeverity(reports, valueVar) * 0.5
	confidence := round3(base * (1 - penalty))

	fused := excludeSignificantOutliers(values, reports, valueVar)
	weights := AdjustWeights(f.baseWeights(weightVar, horizon, fused), reports)

	value := 0.0
	sources := orderedSources(fused)
	contributions := make([]meteo.SourceContribution, 0, len(sources))
	for _, s := range sources {
		w := weights[s]
		value += w * fused[s]
		contributions = append(contributions, meteo.SourceContribution{
			Source:     s,
			Value:      fused[s],
			Weight:     w,
			Confidence: w,
		})
	}
	return meteo.Float(value), contributions, confidence
}

// excludeSignificantOutliers removes sources a significant report flags for
// this variable. If that would empty the set, everything stays.
func excludeSignificantOutliers(values map[meteo.SourceID]float64, reports []meteo.InconsistencyReport, variable string) map[meteo.SourceID]float64 {
	excluded := make(map[meteo.SourceID]bool)
	for _, r := range reports {
		if r.Variable != variable || !r.IsSignificant() {
			continue
		}
		for _, s := range r.OutlierSources {
			excluded[s] = true
		}
	}
	if len(excluded) == 0 || len(excluded) >= len(values) {
		return values
	}

	kept := make(map[meteo.SourceID]float64, len(values))
	for s, v := range values {
		if !excluded[s] {
			kept[s] = v
		}
	}
	return kept
}

// baseWeights looks up the configured weight for every present source:
// listed weight, else the table's fallback share, else the floor for
// unknown sources.
func (f *Fuser) baseWeights(variable, horizon string, values map[meteo.SourceID]float64) map[meteo.SourceID]float64 {
	hw := f.weights[variable]
	sw := hw.Short
	if horizon == "long" {
		sw = hw.Long
	}

	base := make(map[meteo.SourceID]float64, len(values))
	for s := range values {
		switch w, ok := sw.Weights[s]; {
		case ok:
			base[s] = w
		case sw.Default > 0:
			base[s] = sw.Default
		default:
			base[s] = unknownSourceWeight
		}
	}
	return base
}

func horizonFor(forecastHour int) string {
	if forecastHour <= shortHorizonMaxHour {
		return "short"
	}
	return "long"
}

func meanSeverity(reports []meteo.InconsistencyReport, variable string) float64 {
	sum, n := 0.0, 0
	for _, r := range reports {
		if r.Variable == variable {
			sum += r.Severity
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// circularMean averages bearings on the unit circle so that {350°, 10°}
// fuses to 0°, not 180°.
func circularMean(values map[meteo.SourceID]float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sinSum, cosSum := 0.0, 0.0
	for _, s := range orderedSources(values) {
		rad := values[s] * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}
	deg := math.Atan2(sinSum, cosSum) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return meteo.Float(deg)
}

func arithmeticMean(values map[meteo.SourceID]float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range orderedSources(values) {
		sum += values[s]
	}
	return meteo.Float(sum / float64(len(values)))
}

func maxWeatherCode(points []meteo.NormalizedPoint) *int {
	var code *int
	for _, p := range points {
		if p.WeatherCode == nil {
			continue
		}
		if code == nil || *p.WeatherCode > *code {
			code = meteo.Int(*p.WeatherCode)
		}
	}
	return code
}

func distinctSources(points []meteo.NormalizedPoint) []meteo.SourceID {
	set := make(map[meteo.SourceID]bool, len(points))
	for _, p := range points {
		set[p.Source] = true
	}
	out := make([]meteo.SourceID, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
