package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tdilauro/dm-utils/pkg/supertree/checksum"
	"github.com/tdilauro/dm-utils/pkg/supertree/emit"
	"github.com/tdilauro/dm-utils/pkg/supertree/listing"
)

// manifestFlags maps each manifest flag to its configuration key.
var manifestFlags = map[string]string{
	"digest":         "digest.algorithm",
	"all":            "listing.hidden",
	"exclude":        "listing.exclude",
	"output":         "output.path",
	"format":         "output.format",
	"columns":        "output.columns",
	"skip-malformed": "listing.skip_malformed",
	"from-listing":   "from_listing",
	"source":         "listing.source",
	"workers":        "workers",
	"no-progress":    "no_progress",
	"watch":          "watch",
	"metrics-file":   "metrics.file",
	"no-journal":     "no_journal",
}

// addManifestFlags registers the manifest flags on cmd. bindFlags ties
// them to their configuration keys.
func addManifestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("digest", "d", "", fmt.Sprintf("checksum algorithm (%s)", strings.Join(checksum.Available(), ", ")))
	f.BoolP("all", "a", false, "include entries whose names start with a dot")
	f.StringArrayP("exclude", "I", nil, "exclude names matching a pattern (may be repeated, alternatives separated by |)")
	f.StringP("output", "o", "", "manifest file, or - for standard output")
	f.StringP("format", "f", "", fmt.Sprintf("manifest format (%s)", strings.Join(emit.Formats(), ", ")))
	f.StringSliceP("columns", "c", nil, fmt.Sprintf("comma-separated columns (%s)", strings.Join(emit.Keys(), ", ")))
	f.Bool("skip-malformed", false, "log and skip malformed listing lines instead of failing")
	f.String("from-listing", "", "read an existing tree -fFQ listing from a file, or - for standard input")
	f.String("source", "", fmt.Sprintf("listing source (%s, %s, %s)", listing.SourceAuto, listing.SourceTree, listing.SourceWalk))
	f.IntP("workers", "w", 0, "concurrent checksums (0=auto, 1=sequential)")
	f.Bool("no-progress", false, "never show the progress view")
	f.Bool("watch", false, "rewrite the manifest whenever the trees change")
	f.String("metrics-file", "", "write a Prometheus textfile after each run")
	f.Bool("no-journal", false, "do not record the run in the history journal")
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// columnKeys flattens column settings, which may come from a YAML list or
// from a single comma-separated environment value.
func columnKeys(raw []string) []string {
	var keys []string
	for _, r := range raw {
		keys = append(keys, parseCommaSeparated(r)...)
	}
	return keys
}
