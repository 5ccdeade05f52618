// Package main provides the entry point for the supertree manifest CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// A closed stdout reader surfaces as EPIPE from write instead of
	// killing the process, so a partial file manifest can be discarded.
	signal.Ignore(syscall.SIGPIPE)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	reportError(err)
	os.Exit(exitCode(err))
}
