package main

import (
	"context"
	"errors"

	"github.com/tdilauro/dm-utils/pkg/supertree/emit"
	"github.com/tdilauro/dm-utils/pkg/supertree/listing"
	"github.com/tdilauro/dm-utils/pkg/supertree/parse"
)

// Process exit statuses.
const (
	exitOK               = 0
	exitFailure          = 1
	exitMalformedLine    = 2
	exitUnreadableRoot   = 3
	exitOutputWrite      = 4
	exitInterrupted      = 130
	exitDownstreamClosed = 141
)

// exitCode maps a run error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, emit.ErrDownstreamClosed):
		return exitDownstreamClosed
	case errors.Is(err, parse.ErrMalformedLine):
		return exitMalformedLine
	case errors.Is(err, listing.ErrUnreadableRoot):
		return exitUnreadableRoot
	case errors.Is(err, emit.ErrOutputWrite):
		return exitOutputWrite
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return exitFailure
	}
}

// reportError prints err once, except when the reader of the manifest went
// away, which ends the run silently.
func reportError(err error) {
	if err == nil || errors.Is(err, emit.ErrDownstreamClosed) {
		return
	}
	printError("%v", err)
}
