// Package ingest reads blank-corrected growth datasets from CSV and XLSX
// files into the domain row format. Blank subtraction happens upstream; this
// reader only parses and groups.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gogrowth/domain/curve"
	"gogrowth/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV dataset files.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a reader that handles both Excel and CSV files
// based on the file extension.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadDataset reads the blank-corrected rows from the file. Expected columns
// are sample, well, time_min, od600 (header names matched loosely); rows
// with unparsable or non-finite values are skipped.
func (r *DataReader) ReadDataset() (*curve.Dataset, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("%s file %s", strings.ToUpper(r.fileType), r.filePath))
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, errors.InvalidInput("file", "unsupported type "+r.fileType)
	}
	if err != nil {
		return nil, err
	}
	return r.parseRows(rows)
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CSV file")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ValidationError("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read Excel rows")
	}
	return rows, nil
}

// column aliases accepted in the header row, lowercased.
var columnAliases = map[string]string{
	"sample":                "sample",
	"sample_name":           "sample",
	"well":                  "well",
	"time":                  "time",
	"time_min":              "time",
	"t_min":                 "time",
	"value":                 "value",
	"od":                    "value",
	"od600":                 "value",
	"od600_blank_corrected": "value",
}

func (r *DataReader) parseRows(rows [][]string) (*curve.Dataset, error) {
	if len(rows) < 2 {
		return nil, errors.InsufficientData("dataset has no data rows")
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		if canon, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, taken := cols[canon]; !taken {
				cols[canon] = i
			}
		}
	}
	for _, required := range []string{"sample", "well", "time", "value"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.ValidationError("missing column: " + required)
		}
	}

	minFields := 0
	for _, idx := range cols {
		if idx >= minFields {
			minFields = idx + 1
		}
	}

	ds := &curve.Dataset{File: filepath.Base(r.filePath)}
	for _, row := range rows[1:] {
		if len(row) < minFields {
			continue
		}
		sample := strings.TrimSpace(row[cols["sample"]])
		well := strings.TrimSpace(row[cols["well"]])
		if sample == "" || well == "" {
			continue
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(row[cols["time"]]), 64)
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[cols["value"]]), 64)
		if err != nil {
			continue
		}
		ds.Rows = append(ds.Rows, curve.DatasetRow{Sample: sample, Well: well, TimeMin: t, Value: v})
	}
	if len(ds.Rows) == 0 {
		return nil, errors.InsufficientData("dataset has no parsable rows")
	}
	return ds, nil
}
