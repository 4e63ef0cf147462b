package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"
)

// scalarColumns lists the parameter columns in export order.
var scalarColumns = []string{
	"muMax", "td", "lambda", "kHat", "odMax",
	"tInflection", "tMid", "slopeAtInflection", "auc",
}

// WriteParametersCSV writes one row per sample with a column per parameter
// plus _mean/_sd/_ciLow/_ciHigh replicate columns, and the same column
// family per detection threshold. Undefined values are left empty, never NaN.
func WriteParametersCSV(w io.Writer, export *curve.ParameterExport) error {
	cw := csv.NewWriter(w)

	header := []string{"sample", "replicates"}
	for _, col := range scalarColumns {
		header = append(header, col, col+"_mean", col+"_sd", col+"_ciLow", col+"_ciHigh")
	}
	for _, th := range export.Thresholds {
		col := "detection_" + curve.ThresholdKey(th)
		header = append(header, col, col+"_mean", col+"_sd", col+"_ciLow", col+"_ciHigh")
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}

	for _, res := range export.Results {
		row := []string{res.Sample, strconv.Itoa(res.Replicates)}
		for _, col := range scalarColumns {
			row = append(row, formatCell(scalarValue(res.Parameters, col)))
			row = append(row, spreadCells(res.Stats[col])...)
		}
		for _, th := range export.Thresholds {
			key := curve.ThresholdKey(th)
			row = append(row, formatCell(res.Detection[key]))
			row = append(row, spreadCells(res.Stats["detection_"+key])...)
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}

func scalarValue(p curve.Parameters, col string) *float64 {
	switch col {
	case "muMax":
		return p.MuMax
	case "td":
		return p.TD
	case "lambda":
		return p.Lambda
	case "kHat":
		return p.KHat
	case "odMax":
		return p.ODMax
	case "tInflection":
		return p.TInflection
	case "tMid":
		return p.TMid
	case "slopeAtInflection":
		return p.SlopeAtInflection
	case "auc":
		return p.AUC
	}
	return nil
}

func spreadCells(spread curve.ParameterSpread) []string {
	return []string{
		formatCell(spread.Mean),
		formatCell(spread.SD),
		formatCell(spread.CILow),
		formatCell(spread.CIHigh),
	}
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}
