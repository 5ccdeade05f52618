package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tdilauro/dm-utils/pkg/supertree/config"
	"github.com/tdilauro/dm-utils/pkg/supertree/emit"
	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
	"github.com/tdilauro/dm-utils/pkg/supertree/types"
)

var (
	cfgFile string

	// appConfig is the effective configuration, read once flags are parsed.
	appConfig *config.Config
	configErr error

	rootCmd = &cobra.Command{
		Use:   "supertree [flags] ROOT...",
		Short: "Write a checksum manifest of directory trees",
		Long: `Supertree walks one or more directory trees the way tree -fFQ lists them
and writes one manifest row per entry: sequence, depth, the tree drawing,
path, name, type, checksum and size.

A file manifest is written to a temporary file and renamed into place only
when the run succeeds, so an existing manifest is never left half-written.

Examples:
  supertree /data                        # CSV manifest of /data on stdout
  supertree -o data.csv /data            # write data.csv atomically
  supertree -d blake2b-256 -f jsonl /a /b
  tree -fFQ /data | supertree --from-listing -
  supertree --watch -o data.csv /data    # rewrite on change
  supertree history                      # past runs`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initializeLogging,
		RunE:              runManifest,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/supertree/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only print errors")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")

	addManifestFlags(rootCmd)
	bindFlags(rootCmd)
}

// bindFlags binds the root command's flags to their viper keys.
func bindFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("quiet", cmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	for name, key := range manifestFlags {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(name))
	}
}

// initConfig reads the config file and environment into appConfig.
func initConfig() {
	appConfig, configErr = config.Read(viper.GetViper(), cfgFile)
}

// initializeLogging is the PersistentPreRunE hook. It makes sure the
// config, data and state directories exist and starts logging.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if appConfig == nil && configErr == nil {
		initConfig()
	}
	if configErr != nil {
		return configErr
	}

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if err := config.EnsureDataDir(); err != nil {
		return err
	}
	if err := os.MkdirAll(config.StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	lc := appConfig.Logging
	return logging.Init(logging.Config{
		Level:        lc.Level,
		Path:         lc.Path,
		Rotation:     parseRotationConfig(lc.Rotation),
		Components:   lc.Components,
		Console:      os.Stderr,
		ConsoleLevel: consoleLevel(),
		Capture:      progressEnabled(appConfig),
	})
}

// parseRotationConfig converts the config file form to the logging form.
// An empty or invalid max_size falls back to 10MB.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize := int64(10 * types.MiB)
	if rc.MaxSize != "" {
		if size, err := types.ParseSize(rc.MaxSize); err == nil && size > 0 {
			maxSize = size
		}
	}

	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}

func consoleLevel() string {
	switch {
	case getQuiet():
		return "error"
	case getVerbose():
		return "debug"
	default:
		return "warn"
	}
}

// progressEnabled reports whether the progress view will run: the manifest
// goes to a file, output is not quieted and stderr is a terminal.
func progressEnabled(cfg *config.Config) bool {
	if cfg == nil || !cfg.Progress.Enabled || viper.GetBool("no_progress") || getQuiet() {
		return false
	}
	if out := cfg.Output.Path; out == "" || out == emit.StdoutPath {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message to stderr unless quiet mode is enabled.
// Standard output may carry the manifest.
func printInfo(format string, args ...any) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
