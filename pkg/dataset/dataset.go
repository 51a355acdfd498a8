// Package dataset loads tabular training data into records.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sentrasec/sentra/pkg/errs"
	"github.com/sentrasec/sentra/pkg/preprocess"
)

// LoadCSV reads a CSV file with a header row into records. The target column
// becomes the record label; excluded columns (identifiers, timestamps and
// other metadata) are dropped. Cells that parse as numbers stay numeric,
// everything else is kept as a string category.
func LoadCSV(path, targetColumn string, excludeColumns []string) ([]preprocess.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.DataLoadError{Path: path, Err: err}
	}
	defer f.Close()

	records, err := readAll(f, targetColumn, excludeColumns)
	if err != nil {
		return nil, &errs.DataLoadError{Path: path, Err: err}
	}
	return records, nil
}

func readAll(r io.Reader, targetColumn string, excludeColumns []string) ([]preprocess.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	excluded := make(map[string]bool, len(excludeColumns))
	for _, c := range excludeColumns {
		excluded[c] = true
	}

	var out []preprocess.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("line %d: %d cells, header has %d", line, len(row), len(header))
		}

		rec := preprocess.Record{Fields: make(map[string]any, len(header))}
		for i, name := range header {
			switch {
			case name == targetColumn:
				rec.Label = row[i]
			case excluded[name]:
				// dropped
			default:
				if v, err := strconv.ParseFloat(row[i], 64); err == nil {
					rec.Fields[name] = v
				} else {
					rec.Fields[name] = row[i]
				}
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
