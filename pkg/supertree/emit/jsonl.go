package emit

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

// JSONLEncoder writes one JSON object per line. Keys are column keys in
// column order; numeric columns are JSON numbers. The header is a single
// {"columns":[...]} line.
type JSONLEncoder struct {
	w   *bufio.Writer
	buf []byte
}

// NewJSONLEncoder returns a JSON Lines encoder.
func NewJSONLEncoder(w io.Writer) *JSONLEncoder {
	return &JSONLEncoder{w: bufio.NewWriter(w)}
}

type jsonlHeader struct {
	Columns   []string `json:"columns"`
	Algorithm string   `json:"algorithm,omitempty"`
}

// WriteHeader writes the column keys and the checksum algorithm.
func (j *JSONLEncoder) WriteHeader(cols []Column) error {
	h := jsonlHeader{Columns: make([]string, len(cols))}
	for i, c := range cols {
		h.Columns[i] = c.Key
		if c.Key == KeyChecksum {
			h.Algorithm = c.Label
		}
	}
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(data); err != nil {
		return err
	}
	return j.w.WriteByte('\n')
}

// WriteRow writes one object. Object keys keep column order, which a map
// would not.
func (j *JSONLEncoder) WriteRow(cols []Column, e *types.Entry) error {
	b := append(j.buf[:0], '{')
	for i, col := range cols {
		if i > 0 {
			b = append(b, ',')
		}
		key, _ := json.Marshal(col.Key)
		b = append(b, key...)
		b = append(b, ':')

		v := col.Value(e)
		if col.Numeric() {
			b = append(b, v...)
			continue
		}
		s, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b = append(b, s...)
	}
	b = append(b, '}', '\n')
	j.buf = b

	_, err := j.w.Write(b)
	return err
}

// Flush flushes buffered lines.
func (j *JSONLEncoder) Flush() error {
	return j.w.Flush()
}

func init() {
	Register("jsonl", func(w io.Writer) Encoder { return NewJSONLEncoder(w) })
}

var _ Encoder = (*JSONLEncoder)(nil)
