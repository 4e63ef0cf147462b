package config

import (
	"os"
	"strconv"
	"strings"

	"gogrowth/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Smoothing SmoothingConfig
	Detection DetectionConfig
	Band      BandConfig
	Data      DataConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// SmoothingConfig holds the LOESS and refinement defaults
type SmoothingConfig struct {
	Span             float64
	Degree           int
	RobustIterations int
	MaxPasses        int
	ConvergenceTol   float64
}

// DetectionConfig holds the log-phase detector defaults
type DetectionConfig struct {
	WindowSize int
	R2Min      float64
	ODMin      float64
	FracKMax   float64
	MuRelMin   float64
	MuRelMax   float64
}

// BandConfig holds the uncertainty-band defaults
type BandConfig struct {
	Mode              string
	ExactLimit        int
	MonteCarloSamples int
	Concurrency       int
	Seed              int64
}

// DataConfig holds input/output settings
type DataConfig struct {
	DatasetFile string
	Thresholds  []float64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Smoothing: SmoothingConfig{
			Span:             getEnvFloatOrDefault("SMOOTH_SPAN", 0.3),
			Degree:           getEnvIntOrDefault("SMOOTH_DEGREE", 2),
			RobustIterations: getEnvIntOrDefault("SMOOTH_ROBUST_ITERATIONS", 2),
			MaxPasses:        getEnvIntOrDefault("SMOOTH_MAX_PASSES", 3),
			ConvergenceTol:   getEnvFloatOrDefault("SMOOTH_CONVERGENCE_TOL", 1e-4),
		},
		Detection: DetectionConfig{
			WindowSize: getEnvIntOrDefault("DETECT_WINDOW_SIZE", 5),
			R2Min:      getEnvFloatOrDefault("DETECT_R2_MIN", 0.98),
			ODMin:      getEnvFloatOrDefault("DETECT_OD_MIN", 0.01),
			FracKMax:   getEnvFloatOrDefault("DETECT_FRAC_K_MAX", 0.4),
			MuRelMin:   getEnvFloatOrDefault("DETECT_MU_REL_MIN", 0.8),
			MuRelMax:   getEnvFloatOrDefault("DETECT_MU_REL_MAX", 1.05),
		},
		Band: BandConfig{
			Mode:              getEnvOrDefault("BAND_MODE", "pointwise"),
			ExactLimit:        getEnvIntOrDefault("BAND_EXACT_LIMIT", 6),
			MonteCarloSamples: getEnvIntOrDefault("BAND_MC_SAMPLES", 200),
			Concurrency:       getEnvIntOrDefault("BAND_CONCURRENCY", 4),
			Seed:              int64(getEnvIntOrDefault("BAND_SEED", 42)),
		},
		Data: DataConfig{
			DatasetFile: getEnvOrDefault("DATASET_FILE", ""),
			Thresholds:  getEnvFloatsOrDefault("DETECTION_THRESHOLDS", []float64{0.2, 0.5}),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Smoothing.Span <= 0 {
		return errors.ConfigInvalid("SMOOTH_SPAN must be > 0")
	}
	if config.Smoothing.Degree != 1 && config.Smoothing.Degree != 2 {
		return errors.ConfigInvalid("SMOOTH_DEGREE must be 1 or 2")
	}
	if config.Smoothing.RobustIterations < 1 {
		return errors.ConfigInvalid("SMOOTH_ROBUST_ITERATIONS must be >= 1")
	}
	if config.Smoothing.MaxPasses < 1 {
		return errors.ConfigInvalid("SMOOTH_MAX_PASSES must be >= 1")
	}
	if config.Detection.WindowSize < 2 {
		return errors.ConfigInvalid("DETECT_WINDOW_SIZE must be >= 2")
	}
	if config.Band.Mode != "pointwise" && config.Band.Mode != "simultaneous" {
		return errors.ConfigInvalid("BAND_MODE must be pointwise or simultaneous")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvFloatsOrDefault(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []float64
	for _, part := range strings.Split(value, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
