package ports

import (
	"gogrowth/domain/curve"
)

// DatasetReaderPort reads a blank-corrected dataset from some external
// source (CSV, XLSX, an instrument-export converter). The rows it returns
// are already background-corrected; nothing behind this port performs blank
// subtraction.
type DatasetReaderPort interface {
	ReadDataset() (*curve.Dataset, error)
}
