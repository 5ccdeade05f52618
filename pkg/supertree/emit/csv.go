package emit

import (
	"encoding/csv"
	"io"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// CSVEncoder writes RFC 4180 records. The TSV encoder is the same with a
// tab delimiter.
type CSVEncoder struct {
	w   *csv.Writer
	row []string
}

// NewCSVEncoder returns a comma-delimited encoder.
func NewCSVEncoder(w io.Writer) *CSVEncoder {
	return &CSVEncoder{w: csv.NewWriter(w)}
}

// NewTSVEncoder returns a tab-delimited encoder. Fields containing tabs,
// quotes or newlines are quoted as in CSV.
func NewTSVEncoder(w io.Writer) *CSVEncoder {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &CSVEncoder{w: cw}
}

// WriteHeader writes the column labels.
func (c *CSVEncoder) WriteHeader(cols []Column) error {
	return c.w.Write(Labels(cols))
}

// WriteRow writes one record.
func (c *CSVEncoder) WriteRow(cols []Column, e *types.Entry) error {
	c.row = c.row[:0]
	for _, col := range cols {
		c.row = append(c.row, col.Value(e))
	}
	return c.w.Write(c.row)
}

// Flush flushes the csv writer and reports any deferred write error.
func (c *CSVEncoder) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func init() {
	Register("csv", func(w io.Writer) Encoder { return NewCSVEncoder(w) })
	Register("tsv", func(w io.Writer) Encoder { return NewTSVEncoder(w) })
}

var _ Encoder = (*CSVEncoder)(nil)
