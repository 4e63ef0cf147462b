package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 0.3, cfg.Smoothing.Span)
	assert.Equal(t, 2, cfg.Smoothing.Degree)
	assert.Equal(t, 2, cfg.Smoothing.RobustIterations)
	assert.Equal(t, 3, cfg.Smoothing.MaxPasses)
	assert.Equal(t, 1e-4, cfg.Smoothing.ConvergenceTol)

	assert.Equal(t, 5, cfg.Detection.WindowSize)
	assert.Equal(t, 0.98, cfg.Detection.R2Min)
	assert.Equal(t, 0.01, cfg.Detection.ODMin)
	assert.Equal(t, 0.4, cfg.Detection.FracKMax)

	assert.Equal(t, "pointwise", cfg.Band.Mode)
	assert.Equal(t, 6, cfg.Band.ExactLimit)
	assert.Equal(t, 200, cfg.Band.MonteCarloSamples)

	assert.Equal(t, []float64{0.2, 0.5}, cfg.Data.Thresholds)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SMOOTH_SPAN", "0.5")
	t.Setenv("SMOOTH_DEGREE", "1")
	t.Setenv("DETECT_R2_MIN", "0.95")
	t.Setenv("BAND_MODE", "simultaneous")
	t.Setenv("DETECTION_THRESHOLDS", "0.1, 0.3, 0.9")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Smoothing.Span)
	assert.Equal(t, 1, cfg.Smoothing.Degree)
	assert.Equal(t, 0.95, cfg.Detection.R2Min)
	assert.Equal(t, "simultaneous", cfg.Band.Mode)
	assert.Equal(t, []float64{0.1, 0.3, 0.9}, cfg.Data.Thresholds)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero span", "SMOOTH_SPAN", "0"},
		{"bad degree", "SMOOTH_DEGREE", "3"},
		{"no robust pass", "SMOOTH_ROBUST_ITERATIONS", "0"},
		{"no pass budget", "SMOOTH_MAX_PASSES", "0"},
		{"tiny window", "DETECT_WINDOW_SIZE", "1"},
		{"unknown band mode", "BAND_MODE", "bootstrap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnparsableEnvFallsBack(t *testing.T) {
	t.Setenv("SMOOTH_SPAN", "not-a-number")
	t.Setenv("DETECTION_THRESHOLDS", "0.1,oops")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Smoothing.Span)
	assert.Equal(t, []float64{0.2, 0.5}, cfg.Data.Thresholds)
}
