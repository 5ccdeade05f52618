package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// DigestConfig selects the checksum algorithm.
type DigestConfig struct {
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm"`
}

// OutputConfig configures the manifest destination.
type OutputConfig struct {
	Path    string   `mapstructure:"path" yaml:"path"`
	Format  string   `mapstructure:"format" yaml:"format"`
	Columns []string `mapstructure:"columns" yaml:"columns"`
}

// ListingConfig configures where listing lines come from.
type ListingConfig struct {
	Source        string   `mapstructure:"source" yaml:"source"`
	Command       string   `mapstructure:"command" yaml:"command"`
	Hidden        bool     `mapstructure:"hidden" yaml:"hidden"`
	Exclude       []string `mapstructure:"exclude" yaml:"exclude"`
	SkipMalformed bool     `mapstructure:"skip_malformed" yaml:"skip_malformed"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Path          string `mapstructure:"path" yaml:"path"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// MetricsConfig configures the Prometheus textfile.
type MetricsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// ProgressConfig configures the terminal progress view.
type ProgressConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Count   bool `mapstructure:"count" yaml:"count"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Config represents the application configuration.
type Config struct {
	Digest   DigestConfig   `mapstructure:"digest" yaml:"digest"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Listing  ListingConfig  `mapstructure:"listing" yaml:"listing"`
	Workers  int            `mapstructure:"workers" yaml:"workers"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Progress ProgressConfig `mapstructure:"progress" yaml:"progress"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/supertree/config.yaml
//   - $HOME/.config/supertree/config.yaml
//
// Environment variables are prefixed with SUPERTREE_ (e.g.,
// SUPERTREE_DIGEST_ALGORITHM).
func Load() (*Config, error) {
	return Read(viper.New(), "")
}

// Read configures v with the search paths, environment binding and
// defaults, reads the config file (file, when set, overrides the search)
// and decodes the result. Flags bound to v before the call take
// precedence over everything else.
func Read(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, AppName))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", AppName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var err error
	for _, p := range []*string{&cfg.Output.Path, &cfg.Journal.Path, &cfg.Metrics.File, &cfg.Logging.Path} {
		if *p, err = ExpandPath(*p); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("digest.algorithm", DefaultAlgorithm)

	v.SetDefault("output.path", DefaultOutput)
	v.SetDefault("output.format", DefaultFormat)
	v.SetDefault("output.columns", DefaultColumns)

	v.SetDefault("listing.source", DefaultSource)
	v.SetDefault("listing.command", DefaultCommand)
	v.SetDefault("listing.hidden", true)
	v.SetDefault("listing.exclude", []string{})
	v.SetDefault("listing.skip_malformed", false)

	v.SetDefault("workers", DefaultWorkers)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "") // Empty means DefaultJournalPath
	v.SetDefault("journal.retention_days", DefaultRetentionDays)

	v.SetDefault("metrics.file", "")

	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.count", true)

	v.SetDefault("watch.debounce", DefaultDebounce)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{})
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the path WriteDefault writes to.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left alone.
func WriteDefault() (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# supertree configuration

digest:
  # md5, sha1, sha224, sha256, sha384, sha512, sha512_256,
  # sha3-256, sha3-512, blake2b-256, blake2b-512
  algorithm: %s

output:
  # "-" writes to standard output; a path is replaced atomically
  path: "%s"
  # csv, tsv or jsonl
  format: %s
  columns: [%s]

listing:
  # auto, tree or walk
  source: %s
  command: %s
  hidden: true
  exclude: []
  skip_malformed: false

# Concurrent checksums (0 = auto)
workers: %d

journal:
  enabled: true
  # Empty means $XDG_DATA_HOME/supertree/journal
  path: ""
  retention_days: %d

metrics:
  # Prometheus textfile written after each run
  file: ""

progress:
  enabled: true
  # Pre-count entries so the progress bar has a total
  count: true

watch:
  debounce: %s

logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/supertree/supertree.log, "off" disables)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
%s`,
		DefaultAlgorithm, DefaultOutput, DefaultFormat, strings.Join(DefaultColumns, ", "),
		DefaultSource, DefaultCommand, DefaultWorkers, DefaultRetentionDays, DefaultDebounce,
		componentLines(DefaultComponentLevels))

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

func componentLines(levels map[string]string) string {
	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "    %s: %s\n", name, levels[name])
	}
	return b.String()
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/supertree/ for the run journal.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns $XDG_STATE_HOME/supertree/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultJournalPath returns the default run journal directory.
func DefaultJournalPath() string {
	return filepath.Join(DataDir(), "journal")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), AppName+".log")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
