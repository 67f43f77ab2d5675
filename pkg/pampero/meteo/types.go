package meteo

import (
	"time"
)

// SourceID identifies a forecast provider model. The set is closed; labels
// coming from providers are mapped through ParseSource.
type SourceID string

const (
	SourceWindyECMWF SourceID = "windy_ecmwf"
	SourceWindyGFS   SourceID = "windy_gfs"
	SourceWindyICON  SourceID = "windy_icon"
	SourceWRFSMN     SourceID = "wrf_smn"
	SourceFused      SourceID = "fused"
)

// NormalizedPoint is one provider record converted to canonical units:
// °C, m/s, meteorological degrees, mm, %, hPa. Timestamps are UTC.
// Meteorological fields are optional; nil means the provider did not
// report the variable.
type NormalizedPoint struct {
	Source       SourceID  `json:"source"`
	Timestamp    time.Time `json:"timestamp"`
	ForecastHour int       `json:"forecast_hour"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`

	TemperatureC *float64 `json:"temperature_c,omitempty"` // Celsius, clamped [-100, 60]
	WindSpeedMS  *float64 `json:"wind_speed_ms,omitempty"` // m/s, >= 0
	WindDirDeg   *float64 `json:"wind_dir_deg,omitempty"`  // degrees [0, 360), direction wind blows FROM
	PrecipMM     *float64 `json:"precip_mm,omitempty"`     // mm per step, >= 0
	CloudPct     *float64 `json:"cloud_pct,omitempty"`     // percentage (0-100)
	HumidityPct  *float64 `json:"humidity_pct,omitempty"`  // percentage (0-100)
	PressureHPa  *float64 `json:"pressure_hpa,omitempty"`  // hPa

	// WeatherCode carries a WMO present-weather code when the provider
	// reports one (95/96/99 thunderstorms, 77 snow grains).
	WeatherCode *int `json:"weather_code,omitempty"`
}

// Variable names used by inconsistency reports and fusion weight tables.
// Inconsistency detection works on VarTemperature, VarWindSpeed,
// VarPrecipitation and VarCloudCover; the weight tables use the shorter
// VarWind for the wind pair.
const (
	VarTemperature   = "temperature"
	VarWindSpeed     = "wind_speed"
	VarWind          = "wind"
	VarPrecipitation = "precipitation"
	VarCloudCover    = "cloud_cover"
)

// InconsistencyReport describes cross-source disagreement for one variable
// at one forecast hour.
type InconsistencyReport struct {
	Variable               string               `json:"variable"`
	Timestamp              time.Time            `json:"timestamp"`
	ForecastHour           int                  `json:"forecast_hour"`
	SourceValues           map[SourceID]float64 `json:"source_values"`
	Mean                   float64              `json:"mean"`
	StdDev                 float64              `json:"stddev"`
	MaxDeviation           float64              `json:"max_deviation"`
	CoefficientOfVariation float64              `json:"coefficient_of_variation"`
	OutlierSources         []SourceID           `json:"outlier_sources"`
	Severity               float64              `json:"severity"` // [0, 1]
}

// IsSignificant reports whether the disagreement is strong enough to derate
// the fused confidence.
func (r InconsistencyReport) IsSignificant() bool {
	return r.Severity > 0.3
}

// ConfidenceLevel is the qualitative band for a numeric confidence.
type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "VERY_LOW"
	ConfidenceLow      ConfidenceLevel = "LOW"
	ConfidenceMedium   ConfidenceLevel = "MEDIUM"
	ConfidenceHigh     ConfidenceLevel = "HIGH"
	ConfidenceVeryHigh ConfidenceLevel = "VERY_HIGH"
)

// ConfidenceLevelFor buckets a confidence in [0,1] into its band.
func ConfidenceLevelFor(c float64) ConfidenceLevel {
	switch {
	case c > 0.9:
		return ConfidenceVeryHigh
	case c > 0.7:
		return ConfidenceHigh
	case c > 0.5:
		return ConfidenceMedium
	case c > 0.3:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// SourceContribution records how much one source contributed to a fused
// variable.
type SourceContribution struct {
	Source     SourceID `json:"source"`
	Value      float64  `json:"value"`
	Weight     float64  `json:"weight"`
	Confidence float64  `json:"confidence"`
}

// UnifiedForecast is the single authoritative forecast for one
// (timestamp, forecast_hour) produced by weighted fusion.
type UnifiedForecast struct {
	Timestamp    time.Time `json:"timestamp"`
	ForecastHour int       `json:"forecast_hour"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`

	TemperatureC *float64 `json:"temperature_c,omitempty"`
	WindSpeedMS  *float64 `json:"wind_speed_ms,omitempty"`
	WindDirDeg   *float64 `json:"wind_dir_deg,omitempty"`
	PrecipMM     *float64 `json:"precip_mm,omitempty"`
	CloudPct     *float64 `json:"cloud_pct,omitempty"`
	HumidityPct  *float64 `json:"humidity_pct,omitempty"`
	PressureHPa  *float64 `json:"pressure_hpa,omitempty"`
	WeatherCode  *int     `json:"weather_code,omitempty"`

	TemperatureConfidence   float64         `json:"temperature_confidence"`   // [0, 1]
	WindConfidence          float64         `json:"wind_confidence"`          // [0, 1]
	PrecipitationConfidence float64         `json:"precipitation_confidence"` // [0, 1]
	OverallConfidence       float64         `json:"overall_confidence"`       // [0, 1]
	ConfidenceLevel         ConfidenceLevel `json:"confidence_level"`

	TemperatureContributions   []SourceContribution `json:"temperature_contributions,omitempty"`
	WindContributions          []SourceContribution `json:"wind_contributions,omitempty"`
	PrecipitationContributions []SourceContribution `json:"precipitation_contributions,omitempty"`

	SourcesUsed      []SourceID            `json:"sources_used"`
	SourcesAvailable int                   `json:"sources_available"`
	Inconsistencies  []InconsistencyReport `json:"inconsistencies,omitempty"`

	HasSignificantInconsistencies bool   `json:"has_significant_inconsistencies"`
	FusionMethod                  string `json:"fusion_method"`
}

// PatternType names a detected weather regime.
type PatternType string

const (
	PatternSevereConvectiveStorm PatternType = "SEVERE_CONVECTIVE_STORM"
	PatternHeatWave              PatternType = "HEAT_WAVE"
	PatternColdWave              PatternType = "COLD_WAVE"
	PatternFrost                 PatternType = "FROST"
	PatternExtremeHeat           PatternType = "EXTREME_HEAT"
)

// RiskLevel grades a detected pattern.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskExtreme  RiskLevel = "EXTREME"
)

// DetectedPattern is one named regime found over a forecast sequence.
type DetectedPattern struct {
	PatternType        PatternType        `json:"pattern_type"`
	RiskLevel          RiskLevel          `json:"risk_level"`
	Confidence         float64            `json:"confidence"` // [0, 1]
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	TriggerValues      map[string]float64 `json:"trigger_values"`
	ThresholdsExceeded []string           `json:"thresholds_exceeded"`
	Recommendations    []string           `json:"recommendations"`
	DetectedAt         time.Time          `json:"detected_at"`
}

// OperationalAlert is a 5-level alert aligned with the SMN Argentina scale.
type OperationalAlert struct {
	Level          int       `json:"level"` // 0..4
	LevelName      string    `json:"level_name"`
	Phenomenon     string    `json:"phenomenon"`
	Description    string    `json:"description"`
	TimeWindow     string    `json:"time_window"`
	HorizonHours   int       `json:"horizon_hours"`
	Proximity      string    `json:"proximity,omitempty"`
	ExpectedImpact []string  `json:"expected_impact"`
	Recommendation string    `json:"recommendation"`
	ValidFrom      time.Time `json:"valid_from"`
	ValidUntil     time.Time `json:"valid_until"`
}

// alertLevelNames are the fixed SMN-aligned Spanish names, indexed by level.
var alertLevelNames = [5]string{
	"Condición Normal",
	"Atención",
	"Precaución",
	"Alerta",
	"Alerta Crítica",
}

// AlertLevelName returns the Spanish name for an alert level. Out-of-range
// levels collapse to the nearest bound.
func AlertLevelName(level int) string {
	if level < 0 {
		level = 0
	}
	if level > 4 {
		level = 4
	}
	return alertLevelNames[level]
}

// Profile selects the risk-weighting table for a consumer category.
type Profile string

const (
	ProfilePilot         Profile = "pilot"
	ProfileTrucker       Profile = "trucker"
	ProfileFarmer        Profile = "farmer"
	ProfileOutdoorSports Profile = "outdoor_sports"
	ProfileOutdoorEvent  Profile = "outdoor_event"
	ProfileConstruction  Profile = "construction"
	ProfileTourism       Profile = "tourism"
	ProfileGeneral       Profile = "general"
)

// RiskCategory is the qualitative band for a 0-5 risk score.
type RiskCategory string

const (
	CategoryVeryLow  RiskCategory = "very_low"
	CategoryLow      RiskCategory = "low"
	CategoryModerate RiskCategory = "moderate"
	CategoryHigh     RiskCategory = "high"
	CategoryVeryHigh RiskCategory = "very_high"
	CategoryExtreme  RiskCategory = "extreme"
)

// RiskScore is the profile-adjusted 0-5 risk assessment for a window of
// fused forecasts.
type RiskScore struct {
	Score    float64      `json:"score"` // [0, 5]
	Category RiskCategory `json:"category"`
	Profile  Profile      `json:"profile"`

	TemperatureRisk   float64 `json:"temperature_risk"`   // 0-100
	WindRisk          float64 `json:"wind_risk"`          // 0-100
	PrecipitationRisk float64 `json:"precipitation_risk"` // 0-100
	StormRisk         float64 `json:"storm_risk"`         // 0-100
	HailRisk          float64 `json:"hail_risk"`          // 0-100
	PatternRisk       float64 `json:"pattern_risk"`       // 0-100
	MaxRisk           float64 `json:"max_risk"`           // 0-100

	ApparentTemperature *float64 `json:"apparent_temperature,omitempty"` // Celsius

	MainRiskFactors []string `json:"main_risk_factors"`
	Recommendation  string   `json:"recommendation"`
	ActionRequired  bool     `json:"action_required"`
	ValidForHours   int      `json:"valid_for_hours"`
}

// Float returns a pointer to v. Convenience for building optional fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
