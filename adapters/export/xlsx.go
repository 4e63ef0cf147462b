package export

import (
	"strconv"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"

	"github.com/xuri/excelize/v2"
)

// WriteParametersXLSX writes the parameter export as a workbook with a
// per-sample results sheet and a per-well replicate sheet.
func WriteParametersXLSX(path string, export *curve.ParameterExport) error {
	f := excelize.NewFile()
	defer f.Close()

	const resultsSheet = "Results"
	f.SetSheetName(f.GetSheetName(0), resultsSheet)
	if err := writeResultsSheet(f, resultsSheet, export); err != nil {
		return err
	}

	const wellsSheet = "Wells"
	if _, err := f.NewSheet(wellsSheet); err != nil {
		return errors.Wrap(err, "failed to create wells sheet")
	}
	if err := writeWellsSheet(f, wellsSheet, export); err != nil {
		return err
	}

	return errors.Wrap(f.SaveAs(path), "failed to save workbook")
}

func writeResultsSheet(f *excelize.File, sheet string, export *curve.ParameterExport) error {
	header := []interface{}{"sample", "replicates"}
	for _, col := range scalarColumns {
		header = append(header, col, col+"_mean", col+"_sd", col+"_ciLow", col+"_ciHigh")
	}
	for _, th := range export.Thresholds {
		col := "detection_" + curve.ThresholdKey(th)
		header = append(header, col, col+"_mean", col+"_sd", col+"_ciLow", col+"_ciHigh")
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write results header")
	}

	for i, res := range export.Results {
		row := []interface{}{res.Sample, res.Replicates}
		for _, col := range scalarColumns {
			row = append(row, cellValue(scalarValue(res.Parameters, col)))
			row = append(row, spreadValues(res.Stats[col])...)
		}
		for _, th := range export.Thresholds {
			key := curve.ThresholdKey(th)
			row = append(row, cellValue(res.Detection[key]))
			row = append(row, spreadValues(res.Stats["detection_"+key])...)
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, "failed to write results row")
		}
	}
	return nil
}

func writeWellsSheet(f *excelize.File, sheet string, export *curve.ParameterExport) error {
	header := []interface{}{"sample", "well", "replicate"}
	for _, col := range scalarColumns {
		header = append(header, col)
	}
	for _, th := range export.Thresholds {
		header = append(header, "detection_"+curve.ThresholdKey(th))
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write wells header")
	}

	for i, wr := range export.WellResults {
		row := []interface{}{wr.Sample, wr.Well, wr.Replicate}
		for _, col := range scalarColumns {
			row = append(row, cellValue(scalarValue(wr.Parameters, col)))
		}
		for _, th := range export.Thresholds {
			row = append(row, cellValue(wr.Detection[curve.ThresholdKey(th)]))
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, "failed to write wells row")
		}
	}
	return nil
}

func cellValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func spreadValues(spread curve.ParameterSpread) []interface{} {
	return []interface{}{
		cellValue(spread.Mean),
		cellValue(spread.SD),
		cellValue(spread.CILow),
		cellValue(spread.CIHigh),
	}
}
