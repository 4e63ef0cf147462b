package params

import (
	"math"
	"testing"

	"gogrowth/domain/curve"
	"gogrowth/internal/logphase"
	"gogrowth/internal/testkit"
)

func extractFixture() ([]curve.Point, *LogPhase) {
	pts := testkit.GrowthCurve(testkit.DefaultGrowthConfig())
	det, _ := logphase.Detect(pts, logphase.DefaultOptions())
	if !det.Detected() {
		return pts, nil
	}
	return pts, &LogPhase{Start: *det.StartTime, End: *det.EndTime}
}

// ============================================================================
// TEST: Extract
// ============================================================================

func TestExtract_LogisticCurve(t *testing.T) {
	cfg := testkit.DefaultGrowthConfig()
	pts, phase := extractFixture()
	if phase == nil {
		t.Fatal("Fixture did not detect a log phase")
	}

	p := Extract(pts, phase, []float64{0.2, 0.5})

	if p.MuMax == nil {
		t.Fatal("Expected muMax from the log-phase fit")
	}
	if math.Abs(*p.MuMax-cfg.MuMax)/cfg.MuMax > 0.25 {
		t.Errorf("muMax %.5f far from configured %.5f", *p.MuMax, cfg.MuMax)
	}

	// Doubling time is ln 2 over muMax, exactly.
	if p.TD == nil {
		t.Fatal("Expected td alongside positive muMax")
	}
	if math.Abs(*p.TD-math.Ln2 / *p.MuMax) > 1e-12 {
		t.Errorf("td %.4f does not equal ln2/muMax %.4f", *p.TD, math.Ln2 / *p.MuMax)
	}

	// Lambda lands near the configured lag.
	if p.Lambda == nil {
		t.Fatal("Expected lambda from the log-phase fit")
	}
	if math.Abs(*p.Lambda-cfg.Lag) > 60 {
		t.Errorf("lambda %.1f min far from configured lag %.1f min", *p.Lambda, cfg.Lag)
	}

	// The curve maximum bounds the plateau estimate.
	if p.ODMax == nil || p.KHat == nil {
		t.Fatal("Expected odMax and kHat on a full curve")
	}
	if *p.KHat > *p.ODMax {
		t.Errorf("kHat %.3f above odMax %.3f", *p.KHat, *p.ODMax)
	}

	// The inflection sits inside the growth region with a positive slope.
	if p.TInflection == nil || p.SlopeAtInflection == nil {
		t.Fatal("Expected an inflection on a sigmoidal curve")
	}
	if *p.TInflection <= cfg.Lag {
		t.Errorf("Inflection at %.1f min, inside the lag", *p.TInflection)
	}
	if *p.SlopeAtInflection <= 0 {
		t.Errorf("Expected positive slope at inflection, got %.5f", *p.SlopeAtInflection)
	}

	// tMid comes after the lag and before the inflection has long passed.
	if p.TMid == nil {
		t.Fatal("Expected tMid when kHat is defined")
	}
	if *p.TMid <= cfg.Lag {
		t.Errorf("tMid %.1f min inside the lag", *p.TMid)
	}

	if p.AUC == nil || *p.AUC < 0 {
		t.Errorf("Expected non-negative AUC, got %v", p.AUC)
	}
}

func TestExtract_FlatCurve(t *testing.T) {
	// Scenario: a blank well. Growth parameters are undefined; descriptive
	// ones still come back.
	pts := make([]curve.Point, 30)
	for i := range pts {
		pts[i] = curve.Point{X: float64(i) * 10, Y: 0.05}
	}

	p := Extract(pts, nil, []float64{0.5})

	if p.MuMax != nil || p.TD != nil || p.Lambda != nil {
		t.Error("Flat curve without a phase must leave muMax, td and lambda undefined")
	}
	if p.ODMax == nil || *p.ODMax != 0.05 {
		t.Errorf("Expected odMax 0.05, got %v", p.ODMax)
	}
	if p.KHat == nil || *p.KHat != 0.05 {
		t.Errorf("Expected kHat 0.05, got %v", p.KHat)
	}
	if p.AUC == nil || *p.AUC < 0 {
		t.Errorf("Expected non-negative AUC, got %v", p.AUC)
	}
	// 0.5 is never reached.
	if p.Detection["0.5"] != nil {
		t.Errorf("Expected nil detection time for unreached threshold, got %v", *p.Detection["0.5"])
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	p := Extract(nil, nil, []float64{0.5})
	if p.MuMax != nil || p.ODMax != nil || p.AUC != nil || p.Detection != nil {
		t.Errorf("Expected all-undefined parameters for empty input, got %+v", p)
	}
}

func TestExtract_DetectionInterpolates(t *testing.T) {
	// The curve passes 0.5 between 180 and 240 min; the crossing time must be
	// interpolated inside that bracket.
	pts := []curve.Point{
		{X: 0, Y: 0.1},
		{X: 60, Y: 0.15},
		{X: 120, Y: 0.25},
		{X: 180, Y: 0.4},
		{X: 240, Y: 0.7},
		{X: 300, Y: 0.9},
	}

	p := Extract(pts, nil, []float64{0.5})

	got := p.Detection["0.5"]
	if got == nil {
		t.Fatal("Expected a detection time for threshold 0.5")
	}
	if *got <= 180 || *got >= 240 {
		t.Errorf("Detection time %.1f outside bracket (180, 240)", *got)
	}
	want := 180 + (0.5-0.4)/(0.7-0.4)*60
	if math.Abs(*got-want) > 1e-9 {
		t.Errorf("Detection time %.2f, want %.2f", *got, want)
	}
}

func TestExtract_DetectionIgnoresDips(t *testing.T) {
	// A dip after the first crossing must not produce a later crossing time.
	pts := []curve.Point{
		{X: 0, Y: 0.1},
		{X: 60, Y: 0.6},
		{X: 120, Y: 0.45}, // dip below threshold
		{X: 180, Y: 0.8},
	}

	p := Extract(pts, nil, []float64{0.5})

	got := p.Detection["0.5"]
	if got == nil {
		t.Fatal("Expected a detection time")
	}
	if *got >= 60 {
		t.Errorf("Detection time %.1f should precede the dip, first crossing is before 60", *got)
	}
}

func TestExtract_ThresholdAlreadyExceeded(t *testing.T) {
	pts := []curve.Point{{X: 30, Y: 0.6}, {X: 60, Y: 0.7}, {X: 90, Y: 0.8}}

	p := Extract(pts, nil, []float64{0.5})

	got := p.Detection["0.5"]
	if got == nil || *got != 30 {
		t.Errorf("Expected detection at the first time point 30, got %v", got)
	}
}

func TestExtract_TwoPointPhaseWindow(t *testing.T) {
	// A phase window covering fewer than two points leaves the fit undefined.
	pts := []curve.Point{{X: 0, Y: 0.1}, {X: 60, Y: 0.2}, {X: 120, Y: 0.4}}

	p := Extract(pts, &LogPhase{Start: 500, End: 600}, nil)
	if p.MuMax != nil || p.Lambda != nil {
		t.Error("Phase window with no points must leave the fit undefined")
	}
}

// ============================================================================
// TEST: helpers
// ============================================================================

func TestMonotonize(t *testing.T) {
	pts := []curve.Point{{X: 0, Y: 0.1}, {X: 10, Y: 0.3}, {X: 20, Y: 0.2}, {X: 30, Y: 0.4}}

	mono := monotonize(pts)
	want := []float64{0.1, 0.3, 0.3, 0.4}
	for i := range mono {
		if mono[i].Y != want[i] {
			t.Errorf("mono[%d].Y = %.2f, want %.2f", i, mono[i].Y, want[i])
		}
	}
}

func TestTrapezoid(t *testing.T) {
	// Unit square plus a trapezoid: 1 + 1.5.
	pts := []curve.Point{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 2, Y: 2}}
	if got := trapezoid(pts); math.Abs(got-2.5) > 1e-12 {
		t.Errorf("trapezoid = %.4f, want 2.5", got)
	}
}

func TestInflection_FlatCurve(t *testing.T) {
	pts := []curve.Point{{X: 0, Y: 0.5}, {X: 10, Y: 0.5}, {X: 20, Y: 0.5}}

	tt, slope := inflection(pts)
	if tt == nil || slope == nil {
		t.Fatal("Flat curve still has a (zero-slope) steepest segment")
	}
	if *slope != 0 {
		t.Errorf("Expected zero slope, got %.4f", *slope)
	}
}
