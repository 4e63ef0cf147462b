package export

import (
	"path/filepath"
	"testing"

	"gogrowth/domain/curve"

	"github.com/xuri/excelize/v2"
)

func TestWriteParametersXLSX(t *testing.T) {
	export := exportFixture()
	export.WellResults = []curve.WellParameterResult{
		{
			Sample:    "WT",
			Well:      "A1",
			Replicate: 1,
			Parameters: curve.Parameters{
				MuMax:     curve.Float(0.010),
				Detection: map[string]*float64{"0.5": curve.Float(205)},
			},
		},
		{
			Sample:    "WT",
			Well:      "A2",
			Replicate: 2,
			Parameters: curve.Parameters{
				MuMax: curve.Float(0.012),
			},
		},
	}

	path := filepath.Join(t.TempDir(), "params.xlsx")
	if err := WriteParametersXLSX(path, export); err != nil {
		t.Fatalf("WriteParametersXLSX failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("Reading Results sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Results: expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "sample" || rows[1][0] != "WT" || rows[2][0] != "blank" {
		t.Errorf("Results rows out of order: %v, %v, %v", rows[0][0], rows[1][0], rows[2][0])
	}
	meanCol := indexOf(rows[0], "muMax_mean")
	if meanCol < 0 {
		t.Fatalf("Results header missing muMax_mean: %v", rows[0])
	}
	if rows[1][meanCol] != "0.011" {
		t.Errorf("muMax_mean cell = %q, want 0.011", rows[1][meanCol])
	}

	wells, err := f.GetRows("Wells")
	if err != nil {
		t.Fatalf("Reading Wells sheet: %v", err)
	}
	if len(wells) != 3 {
		t.Fatalf("Wells: expected header + 2 rows, got %d", len(wells))
	}
	if wells[1][1] != "A1" || wells[2][1] != "A2" {
		t.Errorf("Wells sheet rows: %v, %v", wells[1], wells[2])
	}
	// The second well never reached the threshold; its detection cell is
	// empty rather than zero.
	detCol := len(wells[0]) - 1
	if wells[0][detCol] != "detection_0.5" {
		t.Fatalf("Last wells column = %q, want detection_0.5", wells[0][detCol])
	}
	if len(wells[2]) > detCol && wells[2][detCol] != "" {
		t.Errorf("Undefined detection cell = %q, want empty", wells[2][detCol])
	}
}
