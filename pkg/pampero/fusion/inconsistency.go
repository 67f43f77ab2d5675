package fusion

import (
	"math"
	"sort"
	"time"

	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
)

// detectedVariables are examined for cross-source disagreement, in a fixed
// order so reports come out deterministic.
var detectedVariables = []string{
	meteo.VarTemperature,
	meteo.VarWindSpeed,
	meteo.VarPrecipitation,
	meteo.VarCloudCover,
}

// Detector flags cross-source disagreement per variable within one
// (timestamp, forecast_hour) bucket.
type Detector struct {
	thresholds map[string]config.VariableThresholds
}

// NewDetector builds a detector; variables without thresholds are skipped.
func NewDetector(thresholds map[string]config.VariableThresholds) *Detector {
	return &Detector{thresholds: thresholds}
}

// Detect reports disagreement for every variable at least two sources
// provided. Reports below the severity floor are suppressed.
func (d *Detector) Detect(points []meteo.NormalizedPoint, ts time.Time, forecastHour int) []meteo.InconsistencyReport {
	reports := make([]meteo.InconsistencyReport, 0, len(detectedVariables))
	for _, variable := range detectedVariables {
		t, ok := d.thresholds[variable]
		if !ok {
			continue
		}
		values := collectValues(points, variable)
		if len(values) < 2 {
			continue
		}
		report := analyze(variable, values, t, ts, forecastHour)
		if report.Severity > 0.1 {
			metrics.InconsistenciesDetected.WithLabelValues(variable, boolLabel(report.IsSignificant())).Inc()
			reports = append(reports, report)
		}
	}
	return reports
}

// AdjustWeights derates sources flagged as outliers: each flag costs 10% of
// the base weight down to a 50% floor, then the map is renormalized to 1.
func AdjustWeights(base map[meteo.SourceID]float64, reports []meteo.InconsistencyReport) map[meteo.SourceID]float64 {
	flags := make(map[meteo.SourceID]int)
	for _, r := range reports {
		for _, s := range r.OutlierSources {
			flags[s]++
		}
	}

	adjusted := make(map[meteo.SourceID]float64, len(base))
	total := 0.0
	for s, w := range base {
		factor := math.Max(0.5, 1-0.1*float64(flags[s]))
		adjusted[s] = w * factor
		total += w * factor
	}
	if total > 0 {
		for s := range adjusted {
			adjusted[s] /= total
		}
	}
	return adjusted
}

// collectValues maps each source to its value for the variable. When a
// source appears more than once in a bucket the first point wins.
func collectValues(points []meteo.NormalizedPoint, variable string) map[meteo.SourceID]float64 {
	values := make(map[meteo.SourceID]float64)
	for _, p := range points {
		if _, seen := values[p.Source]; seen {
			continue
		}
		if v := variableValue(p, variable); v != nil {
			values[p.Source] = *v
		}
	}
	return values
}

func variableValue(p meteo.NormalizedPoint, variable string) *float64 {
	switch variable {
	case meteo.VarTemperature:
		return p.TemperatureC
	case meteo.VarWindSpeed, meteo.VarWind:
		return p.WindSpeedMS
	case meteo.VarPrecipitation:
		return p.PrecipMM
	case meteo.VarCloudCover:
		return p.CloudPct
	case varWindDirection:
		return p.WindDirDeg
	case varHumidity:
		return p.HumidityPct
	case varPressure:
		return p.PressureHPa
	}
	return nil
}

func analyze(variable string, values map[meteo.SourceID]float64, t config.VariableThresholds, ts time.Time, forecastHour int) meteo.InconsistencyReport {
	sources := orderedSources(values)

	mean := 0.0
	for _, s := range sources {
		mean += values[s]
	}
	mean /= float64(len(sources))

	variance := 0.0
	minV, maxV := values[sources[0]], values[sources[0]]
	for _, s := range sources {
		v := values[s]
		variance += (v - mean) * (v - mean)
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	stddev := 0.0
	if len(sources) > 1 {
		stddev = math.Sqrt(variance / float64(len(sources)-1))
	}

	maxDeviation := maxV - minV
	cv := 0.0
	if mean != 0 {
		cv = stddev / math.Abs(mean)
	}

	// The outlier cutoff scales the variable's reference deviation, not the
	// sample stddev: with the usual 3-4 sources no value can sit more than
	// ~1.2 sample deviations from the mean, so a sample-relative cutoff
	// would never fire.
	var outliers []meteo.SourceID
	if stddev > 0 {
		for _, s := range sources {
			if math.Abs(values[s]-mean) > t.OutlierFactor*t.MaxStd {
				outliers = append(outliers, s)
			}
		}
	}

	stdSeverity := clamp01(stddev / t.MaxStd)
	rangeSeverity := clamp01(maxDeviation / t.MaxRange)
	cvSeverity := clamp01(cv / 0.5)
	severity := round3(math.Min(1, 0.4*stdSeverity+0.4*rangeSeverity+0.2*cvSeverity))

	return meteo.InconsistencyReport{
		Variable:               variable,
		Timestamp:              ts,
		ForecastHour:           forecastHour,
		SourceValues:           values,
		Mean:                   mean,
		StdDev:                 stddev,
		MaxDeviation:           maxDeviation,
		CoefficientOfVariation: cv,
		OutlierSources:         outliers,
		Severity:               severity,
	}
}

// orderedSources returns map keys sorted so every aggregation over them is
// independent of input order.
func orderedSources(values map[meteo.SourceID]float64) []meteo.SourceID {
	sources := make([]meteo.SourceID, 0, len(values))
	for s := range values {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
