// Package testkit provides deterministic fixtures shared by package tests:
// a seeded RNG adapter and a synthetic logistic growth-curve generator.
package testkit

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"gogrowth/domain/curve"
)

// RNGAdapter implements ports.RNGPort with streams derived from a base seed
// and the stream name, so every named operation replays identically.
type RNGAdapter struct {
	baseSeed int64
}

// NewRNGAdapter creates a deterministic RNG adapter.
func NewRNGAdapter(baseSeed int64) *RNGAdapter {
	return &RNGAdapter{baseSeed: baseSeed}
}

// SeededStream derives a stream from the base seed and the operation name.
func (a *RNGAdapter) SeededStream(name string, seed int64) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(name))
	return rand.New(rand.NewSource(a.baseSeed ^ seed ^ int64(h.Sum64())))
}

// GrowthConfig shapes a synthetic logistic growth curve.
type GrowthConfig struct {
	Points   int     // number of measurements
	StepMin  float64 // sampling interval, minutes
	Y0       float64 // initial OD
	K        float64 // carrying capacity, OD
	MuMax    float64 // growth rate, 1/min
	Lag      float64 // lag time, minutes
	Noise    float64 // measurement noise amplitude, OD
	Seed     int64
	Baseline float64 // additive offset, OD
}

// DefaultGrowthConfig is a plausible 12-hour plate-reader run.
func DefaultGrowthConfig() GrowthConfig {
	return GrowthConfig{
		Points:  73,
		StepMin: 10,
		Y0:      0.02,
		K:       1.2,
		MuMax:   0.01,
		Lag:     120,
		Noise:   0,
		Seed:    42,
	}
}

// GrowthCurve generates a logistic curve with optional noise. The logistic
// form follows the common reparameterization by growth rate and lag.
func GrowthCurve(cfg GrowthConfig) []curve.Point {
	rng := rand.New(rand.NewSource(cfg.Seed))
	pts := make([]curve.Point, cfg.Points)
	for i := range pts {
		t := float64(i) * cfg.StepMin
		y := logistic(t, cfg.Y0, cfg.K, cfg.MuMax, cfg.Lag)
		if cfg.Noise > 0 {
			y += rng.NormFloat64() * cfg.Noise
		}
		pts[i] = curve.Point{X: t, Y: y + cfg.Baseline}
	}
	return pts
}

func logistic(t, y0, k, mu, lag float64) float64 {
	if t <= lag {
		return y0
	}
	// Logistic growth started at the end of the lag phase.
	e := math.Exp(mu * (t - lag))
	return k * y0 * e / (k + y0*(e-1))
}

// ReplicateWells generates n replicate wells of the same sample with
// slightly varied growth parameters and per-well noise seeds.
func ReplicateWells(n int, cfg GrowthConfig) []curve.WellCurve {
	wells := make([]curve.WellCurve, n)
	for i := 0; i < n; i++ {
		wellCfg := cfg
		wellCfg.Seed = cfg.Seed + int64(i)*101
		wells[i] = curve.WellCurve{
			Well:      fmt.Sprintf("A%d", i+1),
			Replicate: i + 1,
			Points:    GrowthCurve(wellCfg),
		}
	}
	return wells
}

// IdenticalWells generates n byte-identical replicate wells, useful for
// band-collapse tests.
func IdenticalWells(n int, cfg GrowthConfig) []curve.WellCurve {
	wells := make([]curve.WellCurve, n)
	base := GrowthCurve(cfg)
	for i := 0; i < n; i++ {
		pts := make([]curve.Point, len(base))
		copy(pts, base)
		wells[i] = curve.WellCurve{
			Well:      fmt.Sprintf("A%d", i+1),
			Replicate: i + 1,
			Points:    pts,
		}
	}
	return wells
}

// Dataset flattens sample wells into the blank-corrected row format the
// ingest boundary delivers.
func Dataset(samples map[string][]curve.WellCurve) *curve.Dataset {
	ds := &curve.Dataset{File: "synthetic.xlsx", PlateID: "PLATE-1"}
	for sample, wells := range samples {
		for _, w := range wells {
			for _, p := range w.Points {
				ds.Rows = append(ds.Rows, curve.DatasetRow{
					Sample:  sample,
					Well:    w.Well,
					TimeMin: p.X,
					Value:   p.Y,
				})
			}
		}
	}
	return ds
}
