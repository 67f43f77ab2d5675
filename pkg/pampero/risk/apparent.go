package risk

import "math"

const (
	heatIndexMinC        = 27.0
	heatIndexMinHumidity = 40.0
	windChillMaxC        = 10.0
	windChillMinKMH      = 4.8
)

// apparentTemperature folds humidity and wind into a feels-like value:
// heat index in hot humid air, wind chill in cold moving air, the plain
// air temperature otherwise.
func apparentTemperature(tempC float64, humidityPct, windMS *float64) float64 {
	if tempC >= heatIndexMinC && humidityPct != nil && *humidityPct >= heatIndexMinHumidity {
		return heatIndex(tempC, *humidityPct)
	}
	if windMS != nil {
		if kmh := *windMS * 3.6; tempC <= windChillMaxC && kmh >= windChillMinKMH {
			return windChill(tempC, kmh)
		}
	}
	return tempC
}

// heatIndex is the Rothfusz regression in Celsius. Never reads below the
// air temperature.
func heatIndex(tempC, humidity float64) float64 {
	t, r := tempC, humidity
	hi := -8.78469476 +
		1.61139411*t +
		2.33854884*r -
		0.14611605*t*r -
		0.012308094*t*t -
		0.0164248278*r*r +
		0.002211732*t*t*r +
		0.00072546*t*r*r -
		0.000003582*t*t*r*r
	return math.Max(hi, tempC)
}

// windChill is the JAG/TI formula with wind in km/h. Never reads above
// the air temperature.
func windChill(tempC, windKMH float64) float64 {
	v := math.Pow(windKMH, 0.16)
	wc := 13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v
	return math.Min(wc, tempC)
}
