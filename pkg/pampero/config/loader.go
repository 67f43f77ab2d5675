package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Providers: ProvidersConfig{
			WindyAPIKey:  os.Getenv("WINDY_POINT_FORECAST_API_KEY"),
			WindyBaseURL: getEnvOrDefault("WINDY_POINT_FORECAST_API_URL", "https://api.windy.com/api/point-forecast/v2"),
			WRFSMN: WRFSMNConfig{
				Enabled:  getBoolOrDefault("WRF_SMN_ENABLED", false),
				BaseURL:  getEnvOrDefault("WRF_SMN_API_URL", "https://ws1.smn.gob.ar/v1/forecast/wrf"),
				CacheTTL: time.Duration(getIntOrDefault("WRF_SMN_CACHE_TTL_HOURS", 6)) * time.Hour,
			},
			ActiveSources: loadActiveSources(),
			DefaultSource: meteo.SourceWRFSMN,
		},
		Ingest: IngestConfig{
			MaxParallelism: getIntOrDefault("MAX_PARALLELISM", 4),
			HTTPTimeout:    time.Duration(getIntOrDefault("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  getIntOrDefault("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: getDurationOrDefault("RETRY_INITIAL_DELAY", 1*time.Second),
			Multiplier:   getFloatOrDefault("RETRY_MULTIPLIER", 2.0),
			MaxDelay:     getDurationOrDefault("RETRY_MAX_DELAY", 10*time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getIntOrDefault("CIRCUIT_BREAKER_FAILURE_THRESHOLD", 5),
			RecoveryTimeout:  getDurationOrDefault("CIRCUIT_BREAKER_RECOVERY_TIMEOUT", 60*time.Second),
		},
		Cache: CacheConfig{
			CleanupInterval: getDurationOrDefault("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Fusion: FusionConfig{
			Weights:       DefaultWeightTables(),
			Inconsistency: DefaultInconsistencyThresholds(),
		},
		Patterns: DefaultPatternThresholds(),
	}

	// Overlay tuning (fusion weights, detection thresholds) from file if given
	if path := os.Getenv("PAMPERO_TUNING_CONFIG"); path != "" {
		if err := loadTuningFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load tuning config: %v", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	return cfg, nil
}

// loadActiveSources reads ACTIVE_SOURCES as a comma-separated list of
// source labels. Defaults to the operational trio.
func loadActiveSources() []meteo.SourceID {
	raw := os.Getenv("ACTIVE_SOURCES")
	if raw == "" {
		return []meteo.SourceID{meteo.SourceWindyECMWF, meteo.SourceWindyGFS, meteo.SourceWRFSMN}
	}

	var sources []meteo.SourceID
	seen := make(map[meteo.SourceID]bool)
	for _, label := range strings.Split(raw, ",") {
		id := meteo.ParseSource(label, meteo.SourceWRFSMN)
		if !seen[id] {
			seen[id] = true
			sources = append(sources, id)
		}
	}
	return sources
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.Atoi(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid integer value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := strconv.ParseFloat(strValue, 64); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid float value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if strValue := os.Getenv(key); strValue != "" {
		value, err := strconv.ParseBool(strValue)
		if err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid boolean value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if strValue := os.Getenv(key); strValue != "" {
		if value, err := time.ParseDuration(strValue); err == nil {
			return value
		}
		klog.V(2).InfoS("Invalid duration value, using default",
			"key", key,
			"value", strValue,
			"default", defaultValue)
	}
	return defaultValue
}

// tuningFile is the YAML shape of PAMPERO_TUNING_CONFIG. Absent sections
// keep their defaults.
type tuningFile struct {
	Fusion   *FusionConfig      `yaml:"fusion"`
	Patterns *PatternThresholds `yaml:"patterns"`
}

func loadTuningFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read tuning file: %v", err)
	}

	tuning := &tuningFile{}
	if err := yaml.Unmarshal(data, tuning); err != nil {
		return fmt.Errorf("failed to parse tuning file: %v", err)
	}

	if tuning.Fusion != nil {
		if len(tuning.Fusion.Weights) > 0 {
			for variable, hw := range tuning.Fusion.Weights {
				cfg.Fusion.Weights[variable] = hw
			}
		}
		if len(tuning.Fusion.Inconsistency) > 0 {
			for variable, t := range tuning.Fusion.Inconsistency {
				cfg.Fusion.Inconsistency[variable] = t
			}
		}
	}
	if tuning.Patterns != nil {
		cfg.Patterns = *tuning.Patterns
	}

	klog.V(2).InfoS("Loaded tuning overrides", "path", path)
	return nil
}
