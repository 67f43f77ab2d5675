package risk

import (
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// RiskWeights distributes a profile's attention across the variable
// sub-scores. The four weights sum to 1; storm and hail ride on top with a
// fixed 0.2 each.
type RiskWeights struct {
	Temperature   float64
	Wind          float64
	Precipitation float64
	Patterns      float64
}

// TemperatureThresholds bound the comfortable band for a profile. Cold and
// Hot are the hard limits, Optimal the no-risk band.
type TemperatureThresholds struct {
	Cold       float64
	Hot        float64
	OptimalMin float64
	OptimalMax float64
}

// WindThresholds grade sustained wind in m/s.
type WindThresholds struct {
	Moderate  float64
	Strong    float64
	Dangerous float64
}

// PrecipThresholds grade accumulated precipitation in mm.
type PrecipThresholds struct {
	Light    float64
	Moderate float64
	Heavy    float64
}

// ProfileSpec is the full risk parameterization for one consumer profile.
type ProfileSpec struct {
	Weights     RiskWeights
	Temperature TemperatureThresholds
	Wind        WindThresholds
	Precip      PrecipThresholds

	// PatternMultipliers scale the pattern sub-score for the regimes this
	// profile is especially exposed to. Missing types multiply by 1.
	PatternMultipliers map[meteo.PatternType]float64
}

// profiles is the closed profile table. An aviation profile cares about wind
// an order of magnitude below what a trucker shrugs off; a farmer reads
// frost where a tourist reads a cold morning.
var profiles = map[meteo.Profile]ProfileSpec{
	meteo.ProfilePilot: {
		Weights:     RiskWeights{Temperature: 0.15, Wind: 0.40, Precipitation: 0.20, Patterns: 0.25},
		Temperature: TemperatureThresholds{Cold: 0, Hot: 35, OptimalMin: 10, OptimalMax: 28},
		Wind:        WindThresholds{Moderate: 8, Strong: 12, Dangerous: 18},
		Precip:      PrecipThresholds{Light: 2, Moderate: 8, Heavy: 20},
		PatternMultipliers: map[meteo.PatternType]float64{
			meteo.PatternSevereConvectiveStorm: 1.3,
		},
	},
	meteo.ProfileTrucker: {
		Weights:     RiskWeights{Temperature: 0.15, Wind: 0.35, Precipitation: 0.30, Patterns: 0.20},
		Temperature: TemperatureThresholds{Cold: -5, Hot: 38, OptimalMin: 5, OptimalMax: 30},
		Wind:        WindThresholds{Moderate: 10, Strong: 15, Dangerous: 22},
		Precip:      PrecipThresholds{Light: 5, Moderate: 15, Heavy: 30},
	},
	meteo.ProfileFarmer: {
		Weights:     RiskWeights{Temperature: 0.30, Wind: 0.20, Precipitation: 0.25, Patterns: 0.25},
		Temperature: TemperatureThresholds{Cold: 0, Hot: 36, OptimalMin: 8, OptimalMax: 30},
		Wind:        WindThresholds{Moderate: 10, Strong: 15, Dangerous: 25},
		Precip:      PrecipThresholds{Light: 10, Moderate: 25, Heavy: 50},
		PatternMultipliers: map[meteo.PatternType]float64{
			meteo.PatternColdWave: 1.3,
			meteo.PatternFrost:    1.3,
		},
	},
	meteo.ProfileOutdoorSports: {
		Weights:     RiskWeights{Temperature: 0.30, Wind: 0.25, Precipitation: 0.25, Patterns: 0.20},
		Temperature: TemperatureThresholds{Cold: 5, Hot: 32, OptimalMin: 12, OptimalMax: 26},
		Wind:        WindThresholds{Moderate: 8, Strong: 12, Dangerous: 20},
		Precip:      PrecipThresholds{Light: 2, Moderate: 10, Heavy: 25},
		PatternMultipliers: map[meteo.PatternType]float64{
			meteo.PatternSevereConvectiveStorm: 1.3,
			meteo.PatternHeatWave:              1.2,
		},
	},
	meteo.ProfileOutdoorEvent: {
		Weights:     RiskWeights{Temperature: 0.25, Wind: 0.30, Precipitation: 0.30, Patterns: 0.15},
		Temperature: TemperatureThresholds{Cold: 5, Hot: 33, OptimalMin: 12, OptimalMax: 27},
		Wind:        WindThresholds{Moderate: 7, Strong: 12, Dangerous: 18},
		Precip:      PrecipThresholds{Light: 1, Moderate: 5, Heavy: 15},
		PatternMultipliers: map[meteo.PatternType]float64{
			meteo.PatternSevereConvectiveStorm: 1.3,
		},
	},
	meteo.ProfileConstruction: {
		Weights:     RiskWeights{Temperature: 0.20, Wind: 0.35, Precipitation: 0.25, Patterns: 0.20},
		Temperature: TemperatureThresholds{Cold: 0, Hot: 36, OptimalMin: 5, OptimalMax: 30},
		Wind:        WindThresholds{Moderate: 8, Strong: 14, Dangerous: 20},
		Precip:      PrecipThresholds{Light: 5, Moderate: 15, Heavy: 30},
		PatternMultipliers: map[meteo.PatternType]float64{
			meteo.PatternHeatWave: 1.2,
		},
	},
	meteo.ProfileTourism: {
		Weights:     RiskWeights{Temperature: 0.25, Wind: 0.25, Precipitation: 0.25, Patterns: 0.25},
		Temperature: TemperatureThresholds{Cold: 5, Hot: 34, OptimalMin: 12, OptimalMax: 28},
		Wind:        WindThresholds{Moderate: 10, Strong: 15, Dangerous: 22},
		Precip:      PrecipThresholds{Light: 3, Moderate: 10, Heavy: 25},
		PatternMultipliers: map[meteo.PatternType]float64{
			meteo.PatternSevereConvectiveStorm: 1.3,
		},
	},
	meteo.ProfileGeneral: {
		Weights:     RiskWeights{Temperature: 0.25, Wind: 0.25, Precipitation: 0.25, Patterns: 0.25},
		Temperature: TemperatureThresholds{Cold: 0, Hot: 35, OptimalMin: 10, OptimalMax: 28},
		Wind:        WindThresholds{Moderate: 10, Strong: 15, Dangerous: 25},
		Precip:      PrecipThresholds{Light: 5, Moderate: 15, Heavy: 30},
	},
}

// SpecFor resolves a profile, falling back to general for unknown names.
func SpecFor(profile meteo.Profile) (ProfileSpec, meteo.Profile) {
	if spec, ok := profiles[profile]; ok {
		return spec, profile
	}
	return profiles[meteo.ProfileGeneral], meteo.ProfileGeneral
}

// profileRecommendations carries the (high, very high) guidance pair per
// profile; lower categories share generic wording.
var profileRecommendations = map[meteo.Profile][2]string{
	meteo.ProfilePilot: {
		"Revisar las condiciones antes del vuelo y considerar demoras",
		"Suspender vuelos visuales, condiciones peligrosas",
	},
	meteo.ProfileTrucker: {
		"Reducir la velocidad y aumentar la distancia de frenado",
		"Postergar el viaje hasta que mejoren las condiciones",
	},
	meteo.ProfileFarmer: {
		"Postergar labores a cielo abierto y proteger cultivos",
		"Activar medidas de protección de cultivos y hacienda",
	},
	meteo.ProfileOutdoorSports: {
		"Acortar la actividad y prever un resguardo cercano",
		"Suspender la actividad al aire libre",
	},
	meteo.ProfileOutdoorEvent: {
		"Prever estructuras seguras y un plan de evacuación",
		"Considerar la suspensión del evento",
	},
	meteo.ProfileConstruction: {
		"Asegurar andamios y detener trabajos en altura",
		"Detener la obra hasta que mejoren las condiciones",
	},
	meteo.ProfileTourism: {
		"Preferir actividades bajo techo",
		"Evitar excursiones y traslados no esenciales",
	},
	meteo.ProfileGeneral: {
		"Salir con precaución y seguir los avisos oficiales",
		"Evitar actividades al aire libre y seguir las indicaciones oficiales",
	},
}

func recommendationFor(profile meteo.Profile, category meteo.RiskCategory) string {
	switch category {
	case meteo.CategoryVeryLow, meteo.CategoryLow:
		return "Condiciones favorables para la actividad"
	case meteo.CategoryModerate:
		return "Planificar con atención a la evolución del tiempo"
	}
	pair, ok := profileRecommendations[profile]
	if !ok {
		pair = profileRecommendations[meteo.ProfileGeneral]
	}
	if category == meteo.CategoryHigh {
		return pair[0]
	}
	return pair[1]
}
