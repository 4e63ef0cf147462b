package smoothing

import (
	"math"
	"testing"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"
	"gogrowth/internal/testkit"
)

// ============================================================================
// TEST: Smooth
// ============================================================================

func TestSmooth_PreservesGridAndOrder(t *testing.T) {
	pts := testkit.GrowthCurve(testkit.DefaultGrowthConfig())

	res, err := Smooth(pts, Options{Span: 0.3, Degree: 2, RobustIterations: 2})
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	if len(res.Points) != len(pts) {
		t.Fatalf("Expected %d output points, got %d", len(pts), len(res.Points))
	}
	for i := range pts {
		if res.Points[i].X != pts[i].X {
			t.Errorf("Abscissa %d changed: want %.2f, got %.2f", i, pts[i].X, res.Points[i].X)
		}
	}
}

func TestSmooth_RecoversNoisyLogistic(t *testing.T) {
	// Scenario: a noisy logistic curve should smooth back toward the clean one.
	cfg := testkit.DefaultGrowthConfig()
	clean := testkit.GrowthCurve(cfg)
	cfg.Noise = 0.02
	noisy := testkit.GrowthCurve(cfg)

	res, err := Smooth(noisy, Options{Span: 0.3, Degree: 2, RobustIterations: 2})
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	var rawErr, smoothErr float64
	for i := range clean {
		rawErr += math.Abs(noisy[i].Y - clean[i].Y)
		smoothErr += math.Abs(res.Points[i].Y - clean[i].Y)
	}
	if smoothErr >= rawErr {
		t.Errorf("Smoothing did not reduce error: raw=%.4f smoothed=%.4f", rawErr, smoothErr)
	}
}

func TestSmooth_ResistsOutlier(t *testing.T) {
	// Scenario: a single spiked reading should be pulled back by the robust
	// reweighting, not chased.
	pts := testkit.GrowthCurve(testkit.DefaultGrowthConfig())
	spikeIdx := 40
	clean := pts[spikeIdx].Y
	pts[spikeIdx].Y = clean + 5

	res, err := Smooth(pts, Options{Span: 0.3, Degree: 2, RobustIterations: 3})
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	if math.Abs(res.Points[spikeIdx].Y-clean) > 0.5 {
		t.Errorf("Outlier not suppressed: clean=%.3f smoothed=%.3f", clean, res.Points[spikeIdx].Y)
	}
}

func TestSmooth_ThreePointFallback(t *testing.T) {
	// Scenario: three points with identical x cannot support a local line, so
	// every abscissa is served by the window-mean fallback.
	pts := []curve.Point{{X: 10, Y: 1}, {X: 10, Y: 2}, {X: 10, Y: 3}}

	res, err := Smooth(pts, Options{Span: 3, Degree: 1, RobustIterations: 1})
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}

	if res.Diagnostics.MeanFallbacks == 0 {
		t.Error("Expected degree-0 fallback on degenerate window, got none")
	}
	for i, p := range res.Points {
		if math.Abs(p.Y-2.0) > 1e-9 {
			t.Errorf("Point %d: want window mean 2.0, got %.4f", i, p.Y)
		}
	}
}

func TestSmooth_AbsoluteSpan(t *testing.T) {
	pts := testkit.GrowthCurve(testkit.DefaultGrowthConfig())

	res, err := Smooth(pts, Options{Span: 11, Degree: 1, RobustIterations: 1})
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}
	if res.Diagnostics.Window != 11 {
		t.Errorf("Expected absolute window of 11 points, got %d", res.Diagnostics.Window)
	}
}

func TestSmooth_WindowClamped(t *testing.T) {
	// A fractional span on a tiny series clamps to degree+1 points.
	pts := []curve.Point{{X: 0, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 3}, {X: 3, Y: 4}}

	res, err := Smooth(pts, Options{Span: 0.1, Degree: 2, RobustIterations: 1})
	if err != nil {
		t.Fatalf("Smooth failed: %v", err)
	}
	if res.Diagnostics.Window != 3 {
		t.Errorf("Expected window clamped to 3, got %d", res.Diagnostics.Window)
	}
}

func TestSmooth_InvalidOptions(t *testing.T) {
	pts := []curve.Point{{X: 0, Y: 1}, {X: 1, Y: 2}}

	cases := []struct {
		name string
		opts Options
	}{
		{"zero span", Options{Span: 0, Degree: 1, RobustIterations: 1}},
		{"negative span", Options{Span: -0.5, Degree: 1, RobustIterations: 1}},
		{"degree zero", Options{Span: 0.3, Degree: 0, RobustIterations: 1}},
		{"degree three", Options{Span: 0.3, Degree: 3, RobustIterations: 1}},
		{"no robust pass", Options{Span: 0.3, Degree: 1, RobustIterations: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Smooth(pts, tc.opts)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !errors.IsCode(err, errors.CodeInvalidInput) {
				t.Errorf("Expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestSmooth_EmptyInput(t *testing.T) {
	_, err := Smooth(nil, Options{Span: 0.3, Degree: 2, RobustIterations: 1})
	if err == nil {
		t.Fatal("Expected error for empty input, got nil")
	}
	if !errors.IsCode(err, errors.CodeInsufficientData) {
		t.Errorf("Expected INSUFFICIENT_DATA, got %v", err)
	}
}

// ============================================================================
// TEST: DropNonFinite
// ============================================================================

func TestDropNonFinite(t *testing.T) {
	pts := []curve.Point{
		{X: 30, Y: 0.5},
		{X: 10, Y: math.NaN()},
		{X: 20, Y: 0.3},
		{X: math.Inf(1), Y: 0.4},
		{X: 0, Y: 0.1},
	}

	out := DropNonFinite(pts)

	if len(out) != 3 {
		t.Fatalf("Expected 3 finite points, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].X < out[i-1].X {
			t.Errorf("Output not sorted at %d: %.1f after %.1f", i, out[i].X, out[i-1].X)
		}
	}
}

// ============================================================================
// TEST: kernels
// ============================================================================

func TestTricube(t *testing.T) {
	if tricube(0) != 1 {
		t.Errorf("tricube(0) = %.4f, want 1", tricube(0))
	}
	if tricube(1) != 0 {
		t.Errorf("tricube(1) = %.4f, want 0", tricube(1))
	}
	if tricube(0.5) <= tricube(0.9) {
		t.Error("tricube should decrease with distance")
	}
}

func TestBisquare(t *testing.T) {
	if bisquare(0) != 1 {
		t.Errorf("bisquare(0) = %.4f, want 1", bisquare(0))
	}
	if bisquare(1) != 0 || bisquare(2) != 0 {
		t.Error("bisquare should vanish at and beyond u=1")
	}
}
