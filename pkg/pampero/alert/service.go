// Package alert translates detected patterns and forward-looking forecast
// windows into operational alerts on the 5-level SMN scale.
package alert

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/config"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/metrics"
)

// windStrongMS is the sustained-wind gate for the window scan. Distinct from
// the gust threshold in the pattern config; the canonical schema carries
// sustained wind only.
const windStrongMS = 20.0

// levelWindows gives the (from, until) validity offsets in hours per alert
// level. Higher levels mean nearer phenomena.
var levelWindows = [5][2]int{
	{24, 72}, // 0
	{24, 48}, // 1
	{12, 24}, // 2
	{3, 12},  // 3
	{0, 3},   // 4
}

// scanBuckets partitions forecast hours for the window scan.
var scanBuckets = [4][2]int{{0, 3}, {3, 12}, {12, 24}, {24, 48}}

// patternPhenomena maps each pattern type onto the operational phenomenon it
// alerts for. Convective storms alert through the intense-rain channel, so
// storm patterns and heavy-precipitation windows collapse into one alert.
var patternPhenomena = map[meteo.PatternType]string{
	meteo.PatternSevereConvectiveStorm: "lluvia intensa",
	meteo.PatternHeatWave:              "ola de calor",
	meteo.PatternColdWave:              "ola de frío",
	meteo.PatternFrost:                 "heladas",
	meteo.PatternExtremeHeat:           "calor extremo",
}

// Service builds operational alerts from patterns and fused forecasts.
type Service struct {
	thresholds config.PatternThresholds
	clock      clock.Clock
}

func NewService(thresholds config.PatternThresholds, clk clock.Clock) *Service {
	return &Service{thresholds: thresholds, clock: clk}
}

// Generate builds the deduplicated, level-descending alert list for the
// current instant.
func (s *Service) Generate(patterns []meteo.DetectedPattern, forecasts []meteo.UnifiedForecast) []meteo.OperationalAlert {
	return s.GenerateAt(patterns, forecasts, s.clock.Now())
}

// GenerateAt is Generate anchored at an explicit instant.
func (s *Service) GenerateAt(patterns []meteo.DetectedPattern, forecasts []meteo.UnifiedForecast, now time.Time) []meteo.OperationalAlert {
	var candidates []meteo.OperationalAlert
	for _, p := range patterns {
		candidates = append(candidates, s.patternAlert(p, now))
	}
	candidates = append(candidates, s.windowAlerts(forecasts, now)...)

	alerts := dedupe(candidates)
	if len(alerts) == 0 {
		alerts = []meteo.OperationalAlert{normalConditions(now)}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Level != alerts[j].Level {
			return alerts[i].Level > alerts[j].Level
		}
		if alerts[i].HorizonHours != alerts[j].HorizonHours {
			return alerts[i].HorizonHours < alerts[j].HorizonHours
		}
		return alerts[i].Phenomenon < alerts[j].Phenomenon
	})

	for _, a := range alerts {
		metrics.AlertsGenerated.WithLabelValues(strconv.Itoa(a.Level)).Inc()
	}
	klog.V(2).InfoS("Generated operational alerts",
		"patterns", len(patterns),
		"forecasts", len(forecasts),
		"alerts", len(alerts))
	return alerts
}

// patternAlert maps one detected pattern onto an alert candidate. Low
// confidence knocks the level down one step, never below 1.
func (s *Service) patternAlert(p meteo.DetectedPattern, now time.Time) meteo.OperationalAlert {
	level := basePatternLevel(p.RiskLevel)
	if p.Confidence < 0.5 && level > 1 {
		level--
	}
	phenomenon := patternPhenomena[p.PatternType]
	if phenomenon == "" {
		phenomenon = string(p.PatternType)
	}

	window := levelWindows[level]
	recommendation := recommendationFor(phenomenon)
	if len(p.Recommendations) > 0 {
		recommendation = p.Recommendations[0]
	}
	return meteo.OperationalAlert{
		Level:          level,
		LevelName:      meteo.AlertLevelName(level),
		Phenomenon:     phenomenon,
		Description:    p.Description,
		TimeWindow:     fmt.Sprintf("%d-%dh", window[0], window[1]),
		HorizonHours:   window[0],
		Proximity:      proximityFor(window[0]),
		ExpectedImpact: impactsFor(phenomenon),
		Recommendation: recommendation,
		ValidFrom:      now.Add(time.Duration(window[0]) * time.Hour),
		ValidUntil:     now.Add(time.Duration(window[1]) * time.Hour),
	}
}

// windowAlerts scans bucketed forecast windows for threshold crossings.
func (s *Service) windowAlerts(forecasts []meteo.UnifiedForecast, now time.Time) []meteo.OperationalAlert {
	var alerts []meteo.OperationalAlert
	for i, bucket := range scanBuckets {
		agg, any := bucketAggregates(forecasts, bucket)
		if !any {
			continue
		}

		if agg.maxPrecip >= s.thresholds.PrecipIntense {
			level := 2
			switch i {
			case 0:
				level = 4
			case 1:
				level = 3
			}
			alerts = append(alerts, s.windowAlert(i, level, "lluvia intensa",
				fmt.Sprintf("Precipitación de hasta %.1f mm prevista en la ventana %s", agg.maxPrecip, bucketLabel(bucket)), now))
		}
		if agg.maxWind >= windStrongMS {
			level := 1
			switch i {
			case 0:
				level = 3
			case 1:
				level = 2
			}
			alerts = append(alerts, s.windowAlert(i, level, "vientos fuertes",
				fmt.Sprintf("Viento sostenido de hasta %.1f m/s previsto en la ventana %s", agg.maxWind, bucketLabel(bucket)), now))
		}
		if agg.maxTemp >= s.thresholds.ExtremeHeat {
			alerts = append(alerts, s.windowAlert(i, 3, "calor extremo",
				fmt.Sprintf("Temperatura de hasta %.1f°C prevista en la ventana %s", agg.maxTemp, bucketLabel(bucket)), now))
		}
		if agg.minTemp <= s.thresholds.Frost {
			level := 2
			if i <= 1 {
				level = 3
			}
			alerts = append(alerts, s.windowAlert(i, level, "heladas",
				fmt.Sprintf("Temperatura mínima de %.1f°C prevista en la ventana %s", agg.minTemp, bucketLabel(bucket)), now))
		}
	}
	return alerts
}

func (s *Service) windowAlert(bucketIdx, level int, phenomenon, description string, now time.Time) meteo.OperationalAlert {
	bucket := scanBuckets[bucketIdx]
	return meteo.OperationalAlert{
		Level:          level,
		LevelName:      meteo.AlertLevelName(level),
		Phenomenon:     phenomenon,
		Description:    description,
		TimeWindow:     bucketLabel(bucket),
		HorizonHours:   bucket[0],
		Proximity:      proximityFor(bucket[0]),
		ExpectedImpact: impactsFor(phenomenon),
		Recommendation: recommendationFor(phenomenon),
		ValidFrom:      now.Add(time.Duration(bucket[0]) * time.Hour),
		ValidUntil:     now.Add(time.Duration(bucket[1]) * time.Hour),
	}
}

type bucketAgg struct {
	maxPrecip float64
	maxWind   float64
	maxTemp   float64
	minTemp   float64
}

// bucketAggregates reduces the forecasts whose hour falls in [from, to).
// Missing maxima read as zero and the missing minimum as +inf, so absent
// fields never trigger.
func bucketAggregates(forecasts []meteo.UnifiedForecast, bucket [2]int) (bucketAgg, bool) {
	agg := bucketAgg{maxTemp: math.Inf(-1), minTemp: math.Inf(1)}
	any := false
	for _, f := range forecasts {
		if f.ForecastHour < bucket[0] || f.ForecastHour >= bucket[1] {
			continue
		}
		any = true
		if f.PrecipMM != nil && *f.PrecipMM > agg.maxPrecip {
			agg.maxPrecip = *f.PrecipMM
		}
		if f.WindSpeedMS != nil && *f.WindSpeedMS > agg.maxWind {
			agg.maxWind = *f.WindSpeedMS
		}
		if f.TemperatureC != nil {
			if *f.TemperatureC > agg.maxTemp {
				agg.maxTemp = *f.TemperatureC
			}
			if *f.TemperatureC < agg.minTemp {
				agg.minTemp = *f.TemperatureC
			}
		}
	}
	return agg, any
}

// dedupe keeps one alert per phenomenon: the highest level, breaking ties
// toward the nearest window. Impacts from discarded duplicates are folded in.
func dedupe(candidates []meteo.OperationalAlert) []meteo.OperationalAlert {
	byPhenomenon := make(map[string]*meteo.OperationalAlert)
	var order []string
	for _, c := range candidates {
		kept, ok := byPhenomenon[c.Phenomenon]
		if !ok {
			copied := c
			byPhenomenon[c.Phenomenon] = &copied
			order = append(order, c.Phenomenon)
			continue
		}
		if c.Level > kept.Level || (c.Level == kept.Level && c.HorizonHours < kept.HorizonHours) {
			impacts := kept.ExpectedImpact
			*kept = c
			kept.ExpectedImpact = mergeImpacts(c.ExpectedImpact, impacts)
		} else {
			kept.ExpectedImpact = mergeImpacts(kept.ExpectedImpact, c.ExpectedImpact)
		}
	}

	out := make([]meteo.OperationalAlert, 0, len(order))
	for _, phenomenon := range order {
		out = append(out, *byPhenomenon[phenomenon])
	}
	return out
}

func mergeImpacts(primary, extra []string) []string {
	seen := make(map[string]bool, len(primary))
	out := make([]string, 0, len(primary)+len(extra))
	for _, s := range primary {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// normalConditions is the level-0 fallback when nothing triggers.
func normalConditions(now time.Time) meteo.OperationalAlert {
	return meteo.OperationalAlert{
		Level:          0,
		LevelName:      meteo.AlertLevelName(0),
		Phenomenon:     "condiciones generales",
		Description:    "Sin fenómenos meteorológicos significativos previstos",
		TimeWindow:     "0-72h",
		HorizonHours:   0,
		ExpectedImpact: []string{},
		Recommendation: "Condiciones normales, sin precauciones especiales",
		ValidFrom:      now,
		ValidUntil:     now.Add(72 * time.Hour),
	}
}

func basePatternLevel(r meteo.RiskLevel) int {
	switch r {
	case meteo.RiskExtreme:
		return 4
	case meteo.RiskHigh:
		return 3
	case meteo.RiskModerate:
		return 2
	default:
		return 1
	}
}

func bucketLabel(bucket [2]int) string {
	return fmt.Sprintf("%d-%dh", bucket[0], bucket[1])
}

func proximityFor(fromHours int) string {
	switch {
	case fromHours < 3:
		return "inminente"
	case fromHours < 12:
		return "próximas horas"
	case fromHours < 24:
		return "dentro del día"
	default:
		return "próximos días"
	}
}

func impactsFor(phenomenon string) []string {
	switch phenomenon {
	case "lluvia intensa":
		return []string{"Anegamientos en zonas bajas", "Visibilidad reducida en rutas"}
	case "vientos fuertes":
		return []string{"Caída de ramas y objetos sueltos", "Dificultad para circular en vehículos altos"}
	case "calor extremo":
		return []string{"Golpes de calor en grupos de riesgo", "Sobrecarga de la red eléctrica"}
	case "heladas":
		return []string{"Daños en cultivos sensibles", "Hielo en calzadas y puentes"}
	case "ola de calor":
		return []string{"Estrés térmico acumulado", "Riesgo sanitario para grupos vulnerables"}
	case "ola de frío":
		return []string{"Demanda elevada de calefacción", "Riesgo para personas expuestas al frío"}
	default:
		return []string{"Condiciones meteorológicas adversas"}
	}
}

func recommendationFor(phenomenon string) string {
	switch phenomenon {
	case "lluvia intensa":
		return "Evitar circular por calles anegadas y no cruzar cursos de agua"
	case "vientos fuertes":
		return "Asegurar objetos que puedan volarse y evitar estacionar bajo árboles"
	case "calor extremo":
		return "Hidratarse con frecuencia y evitar la exposición al sol en horas centrales"
	case "heladas":
		return "Proteger cultivos y conducir con precaución por posible hielo en la calzada"
	case "ola de calor":
		return "Reducir la actividad física y prestar atención a personas vulnerables"
	case "ola de frío":
		return "Abrigarse en capas y revisar los sistemas de calefacción"
	default:
		return "Seguir las actualizaciones del Servicio Meteorológico Nacional"
	}
}
