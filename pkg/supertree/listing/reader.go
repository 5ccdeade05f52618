package listing

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
)

// reportLine matches the summary tree prints without --noreport.
var reportLine = regexp.MustCompile(`^\d+ director(?:y|ies)(?:, \d+ files?)?$`)

// lineReader splits a listing into tagged lines. Blank lines and the tree
// summary line are dropped; line numbers still count them.
type lineReader struct {
	r *bufio.Reader
	n int
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (lr *lineReader) next() (RawLine, error) {
	for {
		text, err := lr.r.ReadString('\n')
		if text == "" && err != nil {
			return RawLine{}, err
		}
		lr.n++

		text = strings.TrimSuffix(text, "\n")
		text = strings.TrimSuffix(text, "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if reportLine.MatchString(text) {
			logging.Get("listing").Debug("ignoring report line", "line", lr.n, "text", text)
			continue
		}
		return RawLine{Text: text, Role: RoleOf(text), Number: lr.n}, nil
	}
}

// ReaderSource reads a listing produced earlier.
type ReaderSource struct {
	lines  *lineReader
	closer io.Closer
}

// NewReaderSource reads a listing from r. Close closes r when it is an
// io.Closer.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{lines: newLineReader(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenListing opens a listing file, or standard input for "-".
func OpenListing(path string) (*ReaderSource, error) {
	if path == "-" {
		return NewReaderSource(io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewReaderSource(f), nil
}

// Next returns the next line.
func (s *ReaderSource) Next(ctx context.Context) (RawLine, error) {
	if err := ctx.Err(); err != nil {
		return RawLine{}, err
	}
	return s.lines.next()
}

// Close closes the underlying reader.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

var _ Source = (*ReaderSource)(nil)
