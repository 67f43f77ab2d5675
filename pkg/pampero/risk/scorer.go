// Package risk turns fused forecasts, detected patterns and operational
// alerts into a profile-adjusted 0-5 risk score.
package risk

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
)

// DefaultHoursAhead is the assessment window when the caller does not pick
// one.
const DefaultHoursAhead = 6

// factorThreshold is the sub-score at which a variable is named among the
// main risk factors.
const factorThreshold = 40.0

var patternBaseRisk = map[meteo.RiskLevel]float64{
	meteo.RiskLow:      20,
	meteo.RiskModerate: 45,
	meteo.RiskHigh:     75,
	meteo.RiskExtreme:  100,
}

var alertLevelRisk = [5]float64{0, 20, 45, 75, 100}

type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores the forecast window for one profile. Forecasts beyond
// hoursAhead are ignored; if none fall inside the window the first
// hoursAhead entries stand in.
func (s *Scorer) Calculate(profile meteo.Profile, forecasts []meteo.UnifiedForecast, patterns []meteo.DetectedPattern, alerts []meteo.OperationalAlert, hoursAhead int) meteo.RiskScore {
	if hoursAhead < 1 {
		hoursAhead = DefaultHoursAhead
	}
	spec, resolved := SpecFor(profile)
	if resolved != profile {
		klog.V(2).InfoS("Unknown risk profile, using general", "profile", profile)
	}

	agg := aggregateWindow(windowForecasts(forecasts, hoursAhead))

	tempRisk := temperatureScore(spec.Temperature, agg)
	windRisk := windScore(spec.Wind, agg)
	precipRisk := precipScore(spec.Precip, agg)
	stormRisk, hailRisk := convectiveScores(agg)
	patternRisk := patternScore(spec, patterns, alerts)

	weighted := spec.Weights.Temperature*tempRisk +
		spec.Weights.Wind*windRisk +
		spec.Weights.Precipitation*precipRisk +
		spec.Weights.Patterns*patternRisk +
		0.2*stormRisk + 0.2*hailRisk
	maxIndividual := maxOf(tempRisk, windRisk, precipRisk, stormRisk, hailRisk, patternRisk)
	combined := 0.6*weighted + 0.4*maxIndividual

	score := math.Min(5, math.Round(combined/100*5*10)/10)
	category := categoryFor(score)

	out := meteo.RiskScore{
		Score:               score,
		Category:            category,
		Profile:             resolved,
		TemperatureRisk:     tempRisk,
		WindRisk:            windRisk,
		PrecipitationRisk:   precipRisk,
		StormRisk:           stormRisk,
		HailRisk:            hailRisk,
		PatternRisk:         patternRisk,
		MaxRisk:             maxIndividual,
		ApparentTemperature: agg.apparentNow,
		MainRiskFactors:     mainFactors(spec, agg, tempRisk, windRisk, precipRisk, stormRisk, hailRisk, patternRisk),
		Recommendation:      recommendationFor(resolved, category),
		ActionRequired:      category == meteo.CategoryVeryHigh || category == meteo.CategoryExtreme,
		ValidForHours:       hoursAhead,
	}

	metrics.RiskScores.WithLabelValues(string(resolved)).Observe(score)
	klog.V(2).InfoS("Calculated risk score",
		"profile", resolved,
		"score", score,
		"category", category,
		"maxRisk", maxIndividual)
	return out
}

// windowForecasts keeps forecasts inside the assessment window. When the
// hour filter matches nothing the leading entries stand in, so sequences
// with sparse or offset hours still score.
func windowForecasts(forecasts []meteo.UnifiedForecast, hoursAhead int) []meteo.UnifiedForecast {
	var out []meteo.UnifiedForecast
	for _, f := range forecasts {
		if f.ForecastHour <= hoursAhead {
			out = append(out, f)
		}
	}
	if len(out) > 0 {
		return out
	}
	if len(forecasts) > hoursAhead {
		return forecasts[:hoursAhead]
	}
	return forecasts
}

type windowAgg struct {
	hasTemp     bool
	maxTemp     float64
	minTemp     float64
	effMax      float64
	effMin      float64
	apparentNow *float64
	hasWind     bool
	maxWind     float64
	maxPrecip   float64
	meanPrecip  float64
	maxHumidity float64
	codes       []int
	wrfUsed     bool
}

// aggregateWindow reduces the window to the extremes the sub-scores read.
// Apparent temperature is folded into the effective extremes per point.
func aggregateWindow(window []meteo.UnifiedForecast) windowAgg {
	agg := windowAgg{
		maxTemp: math.Inf(-1),
		minTemp: math.Inf(1),
		effMax:  math.Inf(-1),
		effMin:  math.Inf(1),
	}
	sumPrecip, nPrecip := 0.0, 0
	for _, f := range window {
		if f.TemperatureC != nil {
			t := *f.TemperatureC
			apparent := apparentTemperature(t, f.HumidityPct, f.WindSpeedMS)
			if agg.apparentNow == nil {
				agg.apparentNow = meteo.Float(apparent)
			}
			agg.hasTemp = true
			agg.maxTemp = math.Max(agg.maxTemp, t)
			agg.minTemp = math.Min(agg.minTemp, t)
			agg.effMax = math.Max(agg.effMax, math.Max(t, apparent))
			agg.effMin = math.Min(agg.effMin, math.Min(t, apparent))
		}
		if f.WindSpeedMS != nil {
			agg.hasWind = true
			agg.maxWind = math.Max(agg.maxWind, *f.WindSpeedMS)
		}
		if f.PrecipMM != nil {
			sumPrecip += *f.PrecipMM
			nPrecip++
			agg.maxPrecip = math.Max(agg.maxPrecip, *f.PrecipMM)
		}
		if f.HumidityPct != nil {
			agg.maxHumidity = math.Max(agg.maxHumidity, *f.HumidityPct)
		}
		if f.WeatherCode != nil {
			agg.codes = append(agg.codes, *f.WeatherCode)
		}
		for _, src := range f.SourcesUsed {
			if src == meteo.SourceWRFSMN {
				agg.wrfUsed = true
			}
		}
	}
	if nPrecip > 0 {
		agg.meanPrecip = sumPrecip / float64(nPrecip)
	}
	return agg
}

func temperatureScore(t TemperatureThresholds, agg windowAgg) float64 {
	if !agg.hasTemp {
		return 0
	}
	risk := 0.0
	if agg.effMax > t.OptimalMax {
		base := 100.0
		if span := t.Hot - t.OptimalMax; span > 0 {
			base = math.Min(100, (agg.effMax-t.OptimalMax)/span*100)
		}
		// Above 32°C heat stress compounds faster than the linear ramp.
		if agg.effMax > 32 {
			base = math.Min(100, base*1.3)
		}
		risk = base
	}
	if agg.effMin < t.OptimalMin {
		cold := 100.0
		if span := t.OptimalMin - t.Cold; span > 0 {
			cold = math.Min(100, (t.OptimalMin-agg.effMin)/span*100)
		}
		risk = math.Max(risk, cold)
	}
	if agg.effMax >= t.Hot {
		risk = 100
	}
	if agg.effMin <= t.Cold {
		risk = math.Max(risk, 90)
	}
	return risk
}

func windScore(w WindThresholds, agg windowAgg) float64 {
	if !agg.hasWind {
		return 0
	}
	v := agg.maxWind
	switch {
	case v >= w.Dangerous:
		return 100
	case v >= w.Strong:
		return 60 + (v-w.Strong)/(w.Dangerous-w.Strong)*40
	case v >= w.Moderate:
		return 20 + (v-w.Moderate)/(w.Strong-w.Moderate)*40
	default:
		return 0
	}
}

func precipScore(p PrecipThresholds, agg windowAgg) float64 {
	eff := math.Max(agg.meanPrecip, agg.maxPrecip)
	switch {
	case eff >= p.Heavy:
		return 100
	case eff >= p.Moderate:
		return 50 + (eff-p.Moderate)/(p.Heavy-p.Moderate)*50
	case eff >= p.Light:
		return 10 + (eff-p.Light)/(p.Moderate-p.Light)*40
	default:
		return 0
	}
}

// convectiveScores grades storm and hail exposure. Explicit WMO
// present-weather codes win: 95 thunderstorm, 96 thunderstorm with hail,
// 99 heavy thunderstorm with hail, 77 snow grains. Without codes, WRF
// output with sustained moisture and meaningful precipitation reads as
// convective activity.
func convectiveScores(agg windowAgg) (storm, hail float64) {
	for _, code := range agg.codes {
		switch code {
		case 95:
			storm = math.Max(storm, 60)
		case 96:
			storm = math.Max(storm, 70)
			hail = math.Max(hail, 80)
		case 99:
			storm = math.Max(storm, 100)
			hail = math.Max(hail, 100)
		case 77:
			hail = math.Max(hail, 40)
		}
	}
	if storm > 0 || hail > 0 {
		return storm, hail
	}

	if !agg.wrfUsed || agg.maxPrecip < 10 || agg.maxHumidity < 70 {
		return 0, 0
	}
	switch {
	case agg.maxPrecip >= 50:
		storm = 90
	case agg.maxPrecip >= 30:
		storm = 75
	case agg.maxPrecip >= 20:
		storm = 55
	default:
		storm = 40
	}
	// Hail only accompanies the stronger convective grades.
	if storm >= 75 {
		hail = storm - 35
	}
	return storm, hail
}

func patternScore(spec ProfileSpec, patterns []meteo.DetectedPattern, alerts []meteo.OperationalAlert) float64 {
	risk := 0.0
	for _, p := range patterns {
		mult := 1.0
		if m, ok := spec.PatternMultipliers[p.PatternType]; ok {
			mult = m
		}
		risk = math.Max(risk, patternBaseRisk[p.RiskLevel]*p.Confidence*mult)
	}
	for _, a := range alerts {
		if a.Level >= 0 && a.Level < len(alertLevelRisk) {
			risk = math.Max(risk, alertLevelRisk[a.Level])
		}
	}
	return math.Min(100, risk)
}

func categoryFor(score float64) meteo.RiskCategory {
	switch {
	case score < 1:
		return meteo.CategoryVeryLow
	case score < 2:
		return meteo.CategoryLow
	case score < 3:
		return meteo.CategoryModerate
	case score < 4:
		return meteo.CategoryHigh
	case score < 4.5:
		return meteo.CategoryVeryHigh
	default:
		return meteo.CategoryExtreme
	}
}

func mainFactors(spec ProfileSpec, agg windowAgg, tempRisk, windRisk, precipRisk, stormRisk, hailRisk, patternRisk float64) []string {
	factors := []string{}
	if tempRisk >= factorThreshold {
		if agg.effMax > spec.Temperature.OptimalMax {
			factors = append(factors, fmt.Sprintf("temperatura elevada (máxima %.1f°C)", agg.maxTemp))
		}
		if agg.effMin < spec.Temperature.OptimalMin {
			factors = append(factors, fmt.Sprintf("temperatura baja (mínima %.1f°C)", agg.minTemp))
		}
	}
	if windRisk >= factorThreshold {
		factors = append(factors, fmt.Sprintf("viento fuerte (máximo %.0f m/s)", agg.maxWind))
	}
	if precipRisk >= factorThreshold {
		factors = append(factors, fmt.Sprintf("precipitación abundante (hasta %.1f mm)", agg.maxPrecip))
	}
	if stormRisk >= factorThreshold {
		factors = append(factors, "riesgo de tormenta")
	}
	if hailRisk >= factorThreshold {
		factors = append(factors, "riesgo de granizo")
	}
	if patternRisk >= factorThreshold {
		factors = append(factors, "patrones meteorológicos adversos")
	}
	return factors
}

func maxOf(values ...float64) float64 {
	m := 0.0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
