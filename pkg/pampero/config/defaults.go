package config

import (
	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// DefaultWeightTables returns the operational fusion weights. Short horizon
// (through hour 72) favors the regional WRF model; long horizon shifts to
// the global models.
func DefaultWeightTables() WeightTables {
	return WeightTables{
		meteo.VarTemperature: {
			Short: SourceWeights{
				Weights: map[meteo.SourceID]float64{
					meteo.SourceWRFSMN:     0.35,
					meteo.SourceWindyECMWF: 0.30,
					meteo.SourceWindyGFS:   0.20,
				},
				Default: 0.15,
			},
			Long: SourceWeights{
				Weights: map[meteo.SourceID]float64{
					meteo.SourceWindyECMWF: 0.40,
					meteo.SourceWindyGFS:   0.30,
				},
				Default: 0.30,
			},
		},
		meteo.VarWind: {
			Short: SourceWeights{
				Weights: map[meteo.SourceID]float64{
					meteo.SourceWRFSMN:     0.40,
					meteo.SourceWindyECMWF: 0.30,
					meteo.SourceWindyGFS:   0.15,
				},
				Default: 0.15,
			},
			Long: SourceWeights{
				Weights: map[meteo.SourceID]float64{
					meteo.SourceWindyECMWF: 0.45,
					meteo.SourceWindyGFS:   0.30,
				},
				Default: 0.25,
			},
		},
		meteo.VarPrecipitation: {
			Short: SourceWeights{
				Weights: map[meteo.SourceID]float64{
					meteo.SourceWRFSMN:     0.45,
					meteo.SourceWindyECMWF: 0.30,
					meteo.SourceWindyGFS:   0.15,
				},
				Default: 0.10,
			},
			Long: SourceWeights{
				Weights: map[meteo.SourceID]float64{
					meteo.SourceWindyECMWF: 0.45,
					meteo.SourceWindyGFS:   0.35,
				},
				Default: 0.20,
			},
		},
	}
}

// DefaultInconsistencyThresholds returns the dispersion limits per variable
func DefaultInconsistencyThresholds() map[string]VariableThresholds {
	return map[string]VariableThresholds{
		meteo.VarTemperature:   {MaxStd: 3.0, MaxRange: 8.0, OutlierFactor: 2.0},
		meteo.VarWindSpeed:     {MaxStd: 4.0, MaxRange: 10.0, OutlierFactor: 2.0},
		meteo.VarPrecipitation: {MaxStd: 5.0, MaxRange: 15.0, OutlierFactor: 2.5},
		meteo.VarCloudCover:    {MaxStd: 20.0, MaxRange: 50.0, OutlierFactor: 2.0},
	}
}

// DefaultPatternThresholds returns the detection thresholds aligned with
// SMN operational practice.
func DefaultPatternThresholds() PatternThresholds {
	return PatternThresholds{
		CapeModerate:   1000,
		CapeStrong:     2000,
		CapeExtreme:    3000,
		WindGustSevere: 25,
		PrecipIntense:  30,
		HeatWaveDay:    35,
		ExtremeHeat:    40,
		ColdWave:       5,
		Frost:          0,
		SevereFrost:    -5,
		WaveMinDays:    3,
	}
}
