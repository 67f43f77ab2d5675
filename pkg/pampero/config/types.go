package config

import (
	"fmt"
	"time"

	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// Config holds all configuration for the pampero service
type Config struct {
	Providers ProvidersConfig   `yaml:"providers"`
	Ingest    IngestConfig      `yaml:"ingest"`
	Retry     RetryConfig       `yaml:"retry"`
	Breaker   BreakerConfig     `yaml:"breaker"`
	Cache     CacheConfig       `yaml:"cache"`
	Fusion    FusionConfig      `yaml:"fusion"`
	Patterns  PatternThresholds `yaml:"patterns"`
}

// ProvidersConfig holds provider selection and credentials
type ProvidersConfig struct {
	WindyAPIKey   string           `yaml:"windyAPIKey"`
	WindyBaseURL  string           `yaml:"windyBaseUrl"`
	WRFSMN        WRFSMNConfig     `yaml:"wrfSmn"`
	ActiveSources []meteo.SourceID `yaml:"activeSources"`
	// DefaultSource tags records whose provider label cannot be mapped.
	DefaultSource meteo.SourceID `yaml:"defaultSource"`
}

// WRFSMNConfig gates the SMN WRF provider
type WRFSMNConfig struct {
	Enabled  bool          `yaml:"enabled"`
	BaseURL  string        `yaml:"baseUrl"`
	CacheTTL time.Duration `yaml:"cacheTTL"` // model output cadence, 1-24h
}

// IngestConfig bounds the fan-out
type IngestConfig struct {
	MaxParallelism int           `yaml:"maxParallelism"`
	HTTPTimeout    time.Duration `yaml:"httpTimeout"` // total deadline per provider call
}

// RetryConfig is the per-call retry policy. Delay for attempt k is
// min(initialDelay*multiplier^k, maxDelay) plus up to 10% jitter.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// BreakerConfig is the per-source circuit breaker policy
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"` // consecutive failures to open
	RecoveryTimeout  time.Duration `yaml:"recoveryTimeout"`  // open -> half-open delay
}

// CacheConfig controls the in-memory forecast cache
type CacheConfig struct {
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// SourceWeights assigns fusion weights per source. Active sources not listed
// receive Default. Weights plus Default sum to 1.
type SourceWeights struct {
	Weights map[meteo.SourceID]float64 `yaml:"weights"`
	Default float64                    `yaml:"default"`
}

// HorizonWeights splits a variable's weights by lead time: Short applies
// through hour 72, Long beyond.
type HorizonWeights struct {
	Short SourceWeights `yaml:"short"`
	Long  SourceWeights `yaml:"long"`
}

// WeightTables maps fusion variable names (temperature, wind, precipitation)
// to their horizon-split weights.
type WeightTables map[string]HorizonWeights

// VariableThresholds parameterize inconsistency detection for one variable
type VariableThresholds struct {
	MaxStd        float64 `yaml:"maxStd"`
	MaxRange      float64 `yaml:"maxRange"`
	OutlierFactor float64 `yaml:"outlierFactor"`
}

// FusionConfig holds weight tables and inconsistency thresholds
type FusionConfig struct {
	Weights       WeightTables                  `yaml:"weights"`
	Inconsistency map[string]VariableThresholds `yaml:"inconsistency"`
}

// PatternThresholds parameterize pattern detection
type PatternThresholds struct {
	CapeModerate   float64 `yaml:"capeModerate"`   // J/kg
	CapeStrong     float64 `yaml:"capeStrong"`     // J/kg
	CapeExtreme    float64 `yaml:"capeExtreme"`    // J/kg
	WindGustSevere float64 `yaml:"windGustSevere"` // m/s
	PrecipIntense  float64 `yaml:"precipIntense"`  // mm/h
	HeatWaveDay    float64 `yaml:"heatWaveDay"`    // Celsius
	ExtremeHeat    float64 `yaml:"extremeHeat"`    // Celsius
	ColdWave       float64 `yaml:"coldWave"`       // Celsius
	Frost          float64 `yaml:"frost"`          // Celsius
	SevereFrost    float64 `yaml:"severeFrost"`    // Celsius
	WaveMinDays    int     `yaml:"waveMinDays"`
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	hasWindy := false
	for _, s := range c.Providers.ActiveSources {
		if !meteo.IsProvider(s) {
			return fmt.Errorf("active source %q is not a provider", s)
		}
		switch s {
		case meteo.SourceWindyECMWF, meteo.SourceWindyGFS, meteo.SourceWindyICON:
			hasWindy = true
		}
	}
	if hasWindy && c.Providers.WindyAPIKey == "" {
		return fmt.Errorf("Windy point-forecast API key is required when a Windy source is active")
	}
	if !meteo.IsProvider(c.Providers.DefaultSource) {
		return fmt.Errorf("default source %q is not a provider", c.Providers.DefaultSource)
	}

	if c.Providers.WRFSMN.Enabled {
		ttl := c.Providers.WRFSMN.CacheTTL
		if ttl < time.Hour || ttl > 24*time.Hour {
			return fmt.Errorf("WRF-SMN cache TTL must be between 1h and 24h, got %v", ttl)
		}
	}

	if c.Ingest.MaxParallelism < 1 {
		return fmt.Errorf("max parallelism must be at least 1")
	}
	if c.Ingest.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("retry initial delay must be positive")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1")
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		return fmt.Errorf("retry max delay must be at least the initial delay")
	}

	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure threshold must be at least 1")
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("breaker recovery timeout must be positive")
	}

	if err := c.Fusion.validate(); err != nil {
		return fmt.Errorf("invalid fusion config: %v", err)
	}

	if c.Patterns.WaveMinDays < 1 {
		return fmt.Errorf("wave minimum days must be at least 1")
	}
	if c.Patterns.CapeModerate >= c.Patterns.CapeStrong || c.Patterns.CapeStrong >= c.Patterns.CapeExtreme {
		return fmt.Errorf("CAPE thresholds must be strictly increasing")
	}

	return nil
}

func (f *FusionConfig) validate() error {
	for variable, hw := range f.Weights {
		for horizon, sw := range map[string]SourceWeights{"short": hw.Short, "long": hw.Long} {
			sum := sw.Default
			for _, w := range sw.Weights {
				if w < 0 {
					return fmt.Errorf("negative weight for %s/%s", variable, horizon)
				}
				sum += w
			}
			if sum < 1-1e-6 || sum > 1+1e-6 {
				return fmt.Errorf("weights for %s/%s sum to %v, want 1", variable, horizon, sum)
			}
		}
	}

	for variable, t := range f.Inconsistency {
		if t.MaxStd <= 0 || t.MaxRange <= 0 || t.OutlierFactor <= 0 {
			return fmt.Errorf("thresholds for %s must be positive", variable)
		}
	}

	return nil
}
