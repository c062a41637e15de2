package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrNoColumns is returned when a dataset declares no columns.
var ErrNoColumns = errors.New("csv export requires at least one column")

// Column maps a row key to its printed header. An empty Title prints the key.
type Column struct {
	Key   string
	Title string
}

// Dataset is a tabular report keyed by Column.Key.
type Dataset struct {
	Columns []Column
	Rows    []map[string]string
}

// Titles returns the header line in column order.
func (d Dataset) Titles() []string {
	out := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		out[i] = col.Title
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}

// CSVExporter writes datasets as RFC 4180 CSV.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Write streams the dataset to w; missing keys become empty cells.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Columns) == 0 {
		return ErrNoColumns
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(data.Titles()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(data.Columns))
	for n, row := range data.Rows {
		for i, col := range data.Columns {
			record[i] = row[col.Key]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", n+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render buffers Write's output.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
