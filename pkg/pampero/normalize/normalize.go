// Package normalize maps provider-native records onto the canonical schema:
// Celsius, m/s, meteorological degrees, mm, percent, hPa, UTC timestamps.
// Normalization never fails; fields that cannot be read stay nil.
package normalize

import (
	"math"
	"time"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/clock"
	"github.com/meteosur/pampero/pkg/pampero/meteo"
	"github.com/meteosur/pampero/pkg/pampero/provider"
)

// Recognized provider keys per variable. The first present key wins.
var (
	temperatureKeys = []string{"temperature", "temp", "temperature_celsius", "T2"}
	windSpeedKeys   = []string{"wind_speed", "wind", "wind_speed_ms", "magViento10"}
	windDirKeys     = []string{"wind_direction", "wind_dir", "wind_direction_deg"}
	windUKeys       = []string{"wind_u-surface", "wind_u"}
	windVKeys       = []string{"wind_v-surface", "wind_v"}
	precipKeys      = []string{"precipitation", "precip", "precipitation_mm", "rain", "past3hprecip-surface", "PP"}
	cloudKeys       = []string{"cloud_cover", "clouds", "cloudiness", "cloud_cover_pct"}
	cloudLayerKeys  = []string{"lclouds-surface", "mclouds-surface", "hclouds-surface"}
	humidityKeys    = []string{"humidity", "humidity_pct", "relative_humidity", "HR2", "rh-surface"}
	pressureKeys    = []string{"pressure", "pressure_hpa", "sea_level_pressure", "PSFC"}
	timestampKeys   = []string{"timestamp", "time", "datetime", "ts"}
	weatherCodeKeys = []string{"weather_code", "weathercode", "wmo_code"}
	sourceKeys      = []string{"source", "model", "provider"}
	latKeys         = []string{"lat", "latitude"}
	lonKeys         = []string{"lon", "longitude", "lng"}
)

// Normalizer converts raw provider records to NormalizedPoints.
type Normalizer struct {
	defaultSource meteo.SourceID
	clock         clock.Clock
}

// New builds a Normalizer. defaultSource tags records whose provider label
// cannot be mapped.
func New(defaultSource meteo.SourceID, clk clock.Clock) *Normalizer {
	return &Normalizer{defaultSource: defaultSource, clock: clk}
}

// One converts a single record. An empty source means the record's own
// source/model label decides, falling back to the configured default.
func (n *Normalizer) One(record provider.RawRecord, forecastHour int, source meteo.SourceID) meteo.NormalizedPoint {
	if source == "" {
		source = meteo.ParseSource(sourceLabel(record), n.defaultSource)
	}

	ts, ok := record.Time(timestampKeys...)
	if !ok {
		ts = n.clock.Now()
	}

	p := meteo.NormalizedPoint{
		Source:       source,
		Timestamp:    ts,
		ForecastHour: forecastHour,
	}

	if v, ok := record.Float(latKeys...); ok {
		p.Lat = v
	}
	if v, ok := record.Float(lonKeys...); ok {
		p.Lon = v
	}

	if v, ok := record.Float(temperatureKeys...); ok {
		p.TemperatureC = meteo.Float(normTemperature(v))
	}

	u, uOK := record.Float(windUKeys...)
	v, vOK := record.Float(windVKeys...)

	if speed, ok := record.Float(windSpeedKeys...); ok {
		p.WindSpeedMS = meteo.Float(normWindSpeed(speed))
	} else if uOK && vOK {
		p.WindSpeedMS = meteo.Float(normWindSpeed(math.Hypot(u, v)))
	}

	if dir, ok := record.Float(windDirKeys...); ok {
		p.WindDirDeg = meteo.Float(normDirection(dir))
	} else if uOK && vOK {
		p.WindDirDeg = meteo.Float(normDirection(180 + math.Atan2(u, v)*180/math.Pi))
	}

	if precip, ok := record.Float(precipKeys...); ok {
		if precip < 0 {
			precip = 0
		}
		p.PrecipMM = meteo.Float(precip)
	}

	if cloud, ok := record.Float(cloudKeys...); ok {
		p.CloudPct = meteo.Float(normPercent(cloud))
	} else if sum, ok := cloudLayerSum(record); ok {
		p.CloudPct = meteo.Float(normPercent(sum))
	}

	if humidity, ok := record.Float(humidityKeys...); ok {
		p.HumidityPct = meteo.Float(normPercent(humidity))
	}

	if pressure, ok := record.Float(pressureKeys...); ok {
		if hpa, ok := normPressure(pressure); ok {
			p.PressureHPa = meteo.Float(hpa)
		}
	}

	if code, ok := record.Float(weatherCodeKeys...); ok {
		p.WeatherCode = meteo.Int(int(code))
	}

	return p
}

// Batch converts an ordered provider response. forecast_hour is measured
// from the first record's timestamp and records without coordinates take
// the batch's lat/lon.
func (n *Normalizer) Batch(records []provider.RawRecord, source meteo.SourceID, lat, lon float64) []meteo.NormalizedPoint {
	points := make([]meteo.NormalizedPoint, 0, len(records))
	var baseTime time.Time

	for i, r := range records {
		p := n.One(r, 0, source)
		if i == 0 {
			baseTime = p.Timestamp
		}
		p.ForecastHour = hoursBetween(baseTime, p.Timestamp)

		if _, ok := r.Float(latKeys...); !ok {
			p.Lat = lat
		}
		if _, ok := r.Float(lonKeys...); !ok {
			p.Lon = lon
		}
		points = append(points, p)
	}
	return points
}

func sourceLabel(record provider.RawRecord) string {
	for _, k := range sourceKeys {
		if s, ok := record[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// hoursBetween rounds to the nearest hour and floors at zero.
func hoursBetween(from, to time.Time) int {
	h := int(math.Round(to.Sub(from).Hours()))
	if h < 0 {
		return 0
	}
	return h
}

// normTemperature treats values above 100 as Kelvin, then clamps to the
// canonical [-100, 60] Celsius range.
func normTemperature(v float64) float64 {
	if v > 100 {
		v -= 273.15
	}
	if v < -100 {
		klog.V(2).InfoS("Clamping out-of-range temperature", "value", v)
		return -100
	}
	if v > 60 {
		klog.V(2).InfoS("Clamping out-of-range temperature", "value", v)
		return 60
	}
	return v
}

// normWindSpeed treats values above 50 as km/h and clamps to [0, 150] m/s.
func normWindSpeed(v float64) float64 {
	if v > 50 {
		v /= 3.6
	}
	if v < 0 {
		return 0
	}
	if v > 150 {
		klog.V(2).InfoS("Clamping out-of-range wind speed", "value", v)
		return 150
	}
	return v
}

// normDirection wraps a bearing into [0, 360).
func normDirection(v float64) float64 {
	d := math.Mod(v, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func normPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// normPressure converts Pa to hPa when the value is clearly Pa; readings
// outside the plausible surface range are dropped rather than clamped.
func normPressure(v float64) (float64, bool) {
	if v > 50000 {
		v /= 100
	}
	if v < 800 || v > 1100 {
		klog.V(2).InfoS("Dropping implausible pressure", "value", v)
		return 0, false
	}
	return v, true
}

func cloudLayerSum(record provider.RawRecord) (float64, bool) {
	sum := 0.0
	present := false
	for _, k := range cloudLayerKeys {
		if v, ok := record.Float(k); ok {
			sum += v
			present = true
		}
	}
	return sum, present
}
