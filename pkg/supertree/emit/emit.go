// Package emit serializes manifest entries as they are produced.
//
// An Emitter owns a Sink and an Encoder. The header is written exactly once,
// before the first row or at Close for an empty manifest. When the sink is a
// file, nothing is visible at the target path until Close commits it, so a
// failed run never leaves a truncated manifest behind.
package emit

import (
	"bufio"

	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

const fileBufferSize = 256 * 1024

// Emitter writes manifest rows.
type Emitter struct {
	sink   Sink
	bw     *bufio.Writer
	enc    Encoder
	cols   []Column
	header bool
	closed bool
	rows   int64
	err    error
}

// New returns an Emitter writing format to sink with cols.
func New(sink Sink, format string, cols []Column) (*Emitter, error) {
	if format == "" {
		format = DefaultFormat
	}

	size := fileBufferSize
	if sink.Streaming() {
		size = 4096
	}
	bw := bufio.NewWriterSize(sink, size)

	enc, err := GetEncoder(format, bw)
	if err != nil {
		return nil, err
	}
	return &Emitter{sink: sink, bw: bw, enc: enc, cols: cols}, nil
}

// Columns returns the emitted columns.
func (m *Emitter) Columns() []Column {
	return m.cols
}

// Rows returns the number of rows written.
func (m *Emitter) Rows() int64 {
	return m.rows
}

// Header writes the header if it has not been written yet.
func (m *Emitter) Header() error {
	if m.err != nil {
		return m.err
	}
	if m.header {
		return nil
	}
	m.header = true
	if err := m.enc.WriteHeader(m.cols); err != nil {
		return m.fail("write", err)
	}
	if m.sink.Streaming() {
		return m.flush()
	}
	return nil
}

// Emit writes one row, writing the header first if needed. Streaming sinks
// are flushed after every row.
func (m *Emitter) Emit(e *types.Entry) error {
	if err := m.Header(); err != nil {
		return err
	}
	if err := m.enc.WriteRow(m.cols, e); err != nil {
		return m.fail("write", err)
	}
	m.rows++
	if m.sink.Streaming() {
		return m.flush()
	}
	return nil
}

// Close writes the header if nothing was emitted, flushes and commits.
// On error the output is aborted.
func (m *Emitter) Close() error {
	if m.closed {
		return m.err
	}

	if err := m.Header(); err != nil {
		m.abort()
		return err
	}
	if err := m.flush(); err != nil {
		m.abort()
		return err
	}

	m.closed = true
	if err := m.sink.Commit(); err != nil {
		return m.fail("commit", err)
	}
	return nil
}

// Abort discards the output. It is safe to call after Close.
func (m *Emitter) Abort() error {
	if m.closed {
		return nil
	}
	return m.abort()
}

func (m *Emitter) abort() error {
	m.closed = true
	return m.sink.Abort()
}

func (m *Emitter) flush() error {
	if err := m.enc.Flush(); err != nil {
		return m.fail("write", err)
	}
	if err := m.bw.Flush(); err != nil {
		return m.fail("write", err)
	}
	return nil
}

func (m *Emitter) fail(op string, err error) error {
	if m.err == nil {
		m.err = wrapWrite(m.sink.Name(), op, err)
	}
	return m.err
}
