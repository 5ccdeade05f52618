// Package config provides configuration management for supertree.
package config

import "time"

// Default configuration values for supertree.
const (
	// AppName names the configuration, data and state directories.
	AppName = "supertree"

	// EnvPrefix prefixes environment overrides, e.g. SUPERTREE_DIGEST_ALGORITHM.
	EnvPrefix = "SUPERTREE"

	// DefaultConfigDir is the default configuration directory path.
	DefaultConfigDir = "~/.config/supertree"

	// DefaultAlgorithm is the checksum algorithm when none is configured.
	DefaultAlgorithm = "sha256"

	// DefaultOutput writes the manifest to standard output.
	DefaultOutput = "-"

	// DefaultFormat is the manifest serialization.
	DefaultFormat = "csv"

	// DefaultSource picks tree when installed and the built-in walker otherwise.
	DefaultSource = "auto"

	// DefaultCommand is the tree program.
	DefaultCommand = "tree"

	// DefaultWorkers hashes one file at a time.
	DefaultWorkers = 1

	// DefaultRetentionDays is how long journal entries are kept.
	DefaultRetentionDays = 90

	// DefaultDebounce is the quiet period before a watch-triggered run.
	DefaultDebounce = 2 * time.Second
)

// DefaultColumns is the column set of a manifest when none is configured.
var DefaultColumns = []string{
	"sequence", "depth", "tree_label", "branch_prefix", "path", "name", "kind", "checksum", "size",
}

// DefaultComponentLevels are the per-component log levels written by
// WriteDefault.
var DefaultComponentLevels = map[string]string{
	"pipeline": "info",
	"listing":  "info",
	"record":   "warn",
	"journal":  "info",
	"watch":    "info",
}
