// Package pattern scans fused forecast sequences for named weather regimes:
// severe convection, heat and cold waves, frost and extreme heat. Rules and
// default thresholds follow SMN operational practice.
package pattern

import (
	"fmt"
	"math"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
)

// Storm proxy bounds used when no CAPE series is available. The index is
// maxPrecip/50 + maxWind/30 once both gates pass.
const (
	stormProxyMinPrecip = 15.0 // mm
	stormProxyMinWind   = 15.0 // m/s
	stormProxyHigh      = 1.5
	stormProxyModerate  = 1.0
)

// frostHighTempC splits plain frost from hard frost below the severe band.
const frostHighTempC = -2.0

// Detector applies the detection rules over a forecast sequence.
type Detector struct {
	thresholds config.PatternThresholds
	clock      clock.Clock
}

func NewDetector(thresholds config.PatternThresholds, clk clock.Clock) *Detector {
	return &Detector{thresholds: thresholds, clock: clk}
}

// Detect scans fused forecasts for patterns. capeSeries, when non-empty,
// carries CAPE values in J/kg alongside the forecasts.
func (d *Detector) Detect(forecasts []meteo.UnifiedForecast, capeSeries []float64) []meteo.DetectedPattern {
	if len(forecasts) == 0 {
		return nil
	}
	agg := d.aggregate(forecasts, capeSeries)

	var patterns []meteo.DetectedPattern
	for _, p := range []*meteo.DetectedPattern{
		d.convectiveStorm(agg),
		d.heatWave(agg),
		d.coldWave(agg),
		d.frost(agg),
		d.extremeHeat(agg),
	} {
		if p == nil {
			continue
		}
		p.DetectedAt = d.clock.Now()
		p.Recommendations = recommendationsFor(p.PatternType, p.RiskLevel)
		metrics.PatternsDetected.WithLabelValues(string(p.PatternType), string(p.RiskLevel)).Inc()
		klog.V(2).InfoS("Detected weather pattern",
			"pattern", p.PatternType,
			"riskLevel", p.RiskLevel,
			"confidence", p.Confidence)
		patterns = append(patterns, *p)
	}
	return patterns
}

// DetectCurrent applies the same rules to a single current-conditions
// forecast with an optional CAPE scalar.
func (d *Detector) DetectCurrent(current meteo.UnifiedForecast, cape *float64) []meteo.DetectedPattern {
	var series []float64
	if cape != nil {
		series = []float64{*cape}
	}
	return d.Detect([]meteo.UnifiedForecast{current}, series)
}

// aggregates holds the per-sequence extremes the rules evaluate. Each
// forecast entry counts as one hour when sizing waves.
type aggregates struct {
	maxCape   float64
	hasCape   bool
	maxPrecip float64
	maxWind   float64
	maxTemp   float64
	minTemp   float64
	hasTemp   bool
	hotHours  int
	coldHours int
}

func (d *Detector) aggregate(forecasts []meteo.UnifiedForecast, capeSeries []float64) aggregates {
	a := aggregates{maxTemp: math.Inf(-1), minTemp: math.Inf(1)}
	for _, v := range capeSeries {
		a.hasCape = true
		if v > a.maxCape {
			a.maxCape = v
		}
	}
	for _, f := range forecasts {
		if f.TemperatureC != nil {
			t := *f.TemperatureC
			a.hasTemp = true
			if t > a.maxTemp {
				a.maxTemp = t
			}
			if t < a.minTemp {
				a.minTemp = t
			}
			if t >= d.thresholds.HeatWaveDay {
				a.hotHours++
			}
			if t <= d.thresholds.ColdWave {
				a.coldHours++
			}
		}
		if f.PrecipMM != nil && *f.PrecipMM > a.maxPrecip {
			a.maxPrecip = *f.PrecipMM
		}
		if f.WindSpeedMS != nil && *f.WindSpeedMS > a.maxWind {
			a.maxWind = *f.WindSpeedMS
		}
	}
	return a
}

func (d *Detector) convectiveStorm(a aggregates) *meteo.DetectedPattern {
	t := d.thresholds
	if a.hasCape {
		var (
			level    meteo.RiskLevel
			conf     float64
			exceeded string
		)
		switch {
		case a.maxCape >= t.CapeExtreme:
			level, conf, exceeded = meteo.RiskExtreme, 0.9, "cape_extreme"
		case a.maxCape >= t.CapeStrong:
			level, conf, exceeded = meteo.RiskHigh, 0.8, "cape_strong"
		case a.maxCape >= t.CapeModerate:
			level, conf, exceeded = meteo.RiskModerate, 0.7, "cape_moderate"
		}
		if level != "" {
			return &meteo.DetectedPattern{
				PatternType: meteo.PatternSevereConvectiveStorm,
				RiskLevel:   level,
				Confidence:  conf,
				Title:       stormTitle(level),
				Description: fmt.Sprintf(
					"CAPE máximo de %.0f J/kg indica energía disponible para convección severa", a.maxCape),
				TriggerValues:      map[string]float64{"max_cape": a.maxCape},
				ThresholdsExceeded: []string{exceeded},
			}
		}
		// CAPE below every tier still leaves the precipitation/wind proxy.
	}

	if a.maxPrecip < stormProxyMinPrecip || a.maxWind < stormProxyMinWind {
		return nil
	}
	risk := a.maxPrecip/50 + a.maxWind/30
	var (
		level meteo.RiskLevel
		conf  float64
	)
	switch {
	case risk >= stormProxyHigh:
		level, conf = meteo.RiskHigh, 0.6
	case risk >= stormProxyModerate:
		level, conf = meteo.RiskModerate, 0.5
	default:
		return nil
	}
	return &meteo.DetectedPattern{
		PatternType: meteo.PatternSevereConvectiveStorm,
		RiskLevel:   level,
		Confidence:  conf,
		Title:       stormTitle(level),
		Description: fmt.Sprintf(
			"Precipitación de hasta %.1f mm con viento de %.1f m/s sugiere actividad convectiva",
			a.maxPrecip, a.maxWind),
		TriggerValues: map[string]float64{
			"max_precipitation_mm": a.maxPrecip,
			"max_wind_ms":          a.maxWind,
			"storm_risk_index":     risk,
		},
		ThresholdsExceeded: []string{"storm_proxy_precip", "storm_proxy_wind"},
	}
}

func (d *Detector) heatWave(a aggregates) *meteo.DetectedPattern {
	if !a.hasTemp {
		return nil
	}
	t := d.thresholds
	days := float64(a.hotHours) / 24
	if days < 2 {
		return nil
	}

	var (
		level meteo.RiskLevel
		conf  float64
	)
	exceeded := []string{"heat_wave_day"}
	switch {
	case a.maxTemp >= t.ExtremeHeat || days >= 5:
		level, conf = meteo.RiskExtreme, 0.85
		if a.maxTemp >= t.ExtremeHeat {
			exceeded = append(exceeded, "extreme_heat")
		}
	case days >= float64(t.WaveMinDays):
		level, conf = meteo.RiskHigh, 0.80
	default:
		level, conf = meteo.RiskModerate, 0.70
	}
	return &meteo.DetectedPattern{
		PatternType: meteo.PatternHeatWave,
		RiskLevel:   level,
		Confidence:  conf,
		Title:       "Ola de Calor",
		Description: fmt.Sprintf(
			"Se esperan %.1f días con temperaturas de %.0f°C o más, máxima prevista %.1f°C",
			days, t.HeatWaveDay, a.maxTemp),
		TriggerValues: map[string]float64{
			"days_above_threshold":  days,
			"hours_above_threshold": float64(a.hotHours),
			"max_temperature_c":     a.maxTemp,
		},
		ThresholdsExceeded: exceeded,
	}
}

func (d *Detector) coldWave(a aggregates) *meteo.DetectedPattern {
	if !a.hasTemp {
		return nil
	}
	t := d.thresholds
	days := float64(a.coldHours) / 24
	if days < 2 {
		return nil
	}

	var (
		level meteo.RiskLevel
		conf  float64
	)
	exceeded := []string{"cold_wave"}
	switch {
	case a.minTemp <= t.SevereFrost || days >= 5:
		level, conf = meteo.RiskExtreme, 0.85
		if a.minTemp <= t.SevereFrost {
			exceeded = append(exceeded, "severe_frost")
		}
	case days >= float64(t.WaveMinDays):
		level, conf = meteo.RiskHigh, 0.80
	default:
		level, conf = meteo.RiskModerate, 0.70
	}
	return &meteo.DetectedPattern{
		PatternType: meteo.PatternColdWave,
		RiskLevel:   level,
		Confidence:  conf,
		Title:       "Ola de Frío",
		Description: fmt.Sprintf(
			"Se esperan %.1f días con temperaturas de %.0f°C o menos, mínima prevista %.1f°C",
			days, t.ColdWave, a.minTemp),
		TriggerValues: map[string]float64{
			"days_below_threshold":  days,
			"hours_below_threshold": float64(a.coldHours),
			"min_temperature_c":     a.minTemp,
		},
		ThresholdsExceeded: exceeded,
	}
}

func (d *Detector) frost(a aggregates) *meteo.DetectedPattern {
	if !a.hasTemp || a.minTemp > d.thresholds.Frost {
		return nil
	}
	var (
		level meteo.RiskLevel
		conf  float64
		title string
	)
	exceeded := []string{"frost"}
	switch {
	case a.minTemp <= d.thresholds.SevereFrost:
		level, conf, title = meteo.RiskExtreme, 0.90, "Helada Severa"
		exceeded = append(exceeded, "severe_frost")
	case a.minTemp <= frostHighTempC:
		level, conf, title = meteo.RiskHigh, 0.85, "Helada"
	default:
		level, conf, title = meteo.RiskModerate, 0.80, "Helada"
	}
	return &meteo.DetectedPattern{
		PatternType: meteo.PatternFrost,
		RiskLevel:   level,
		Confidence:  conf,
		Title:       title,
		Description: fmt.Sprintf(
			"Temperatura mínima prevista de %.1f°C con riesgo de formación de hielo", a.minTemp),
		TriggerValues:      map[string]float64{"min_temperature_c": a.minTemp},
		ThresholdsExceeded: exceeded,
	}
}

func (d *Detector) extremeHeat(a aggregates) *meteo.DetectedPattern {
	if !a.hasTemp || a.maxTemp < d.thresholds.ExtremeHeat {
		return nil
	}
	return &meteo.DetectedPattern{
		PatternType: meteo.PatternExtremeHeat,
		RiskLevel:   meteo.RiskExtreme,
		Confidence:  0.90,
		Title:       "Calor Extremo",
		Description: fmt.Sprintf(
			"Temperatura máxima prevista de %.1f°C supera el umbral de calor extremo", a.maxTemp),
		TriggerValues:      map[string]float64{"max_temperature_c": a.maxTemp},
		ThresholdsExceeded: []string{"extreme_heat"},
	}
}

func stormTitle(level meteo.RiskLevel) string {
	switch level {
	case meteo.RiskExtreme:
		return "Tormenta Convectiva Severa"
	case meteo.RiskHigh:
		return "Tormenta Convectiva Fuerte"
	default:
		return "Tormenta Convectiva"
	}
}
