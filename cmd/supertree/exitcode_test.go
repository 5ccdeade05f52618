package main

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tdilauro/dm-utils/pkg/supertree/emit"
	"github.com/tdilauro/dm-utils/pkg/supertree/listing"
	"github.com/tdilauro/dm-utils/pkg/supertree/parse"
	"github.com/tdilauro/dm-utils/pkg/supertree/pipeline"
)

func TestExitCode(t *testing.T) {
	malformed := &parse.MalformedLineError{Text: "garbage", Reason: "no opening quote"}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"other", errors.New("boom"), 1},
		{"malformed", malformed, 2},
		{"malformed with line", &pipeline.LineError{Number: 7, Err: malformed}, 2},
		{"unreadable root", &listing.UnreadableRootError{Path: "/nope", Err: syscall.ENOENT}, 3},
		{"output write", &emit.OutputWriteError{Path: "out.csv", Op: "write", Err: syscall.ENOSPC}, 4},
		{"wrapped output write", fmt.Errorf("run: %w", &emit.OutputWriteError{Path: "out.csv", Op: "commit", Err: syscall.EXDEV}), 4},
		{"downstream closed", emit.ErrDownstreamClosed, 141},
		{"interrupted", fmt.Errorf("reading: %w", context.Canceled), 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
