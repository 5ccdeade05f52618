// Package logging provides component loggers for supertree built on
// charmbracelet/log.
//
// Every component gets its own logger from Get. Records go to a rotating
// log file under the XDG state directory and, when enabled, to a console
// writer (normally stderr). While the progress view owns the terminal,
// console output is suppressed and recent records are captured in a ring
// buffer instead.
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Get("listing").Info("tree started", "roots", roots)
//
// Before Init all loggers discard their output.
package logging

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a logging severity.
type Level int

// Levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

var charmLevels = map[Level]log.Level{
	LevelDebug: log.DebugLevel,
	LevelInfo:  log.InfoLevel,
	LevelWarn:  log.WarnLevel,
	LevelError: log.ErrorLevel,
}

// String returns the lowercase level name.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

func (l Level) charm() log.Level {
	if lvl, ok := charmLevels[l]; ok {
		return lvl
	}
	return log.InfoLevel
}

// ErrInvalidLevel is returned for unrecognized level names.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a level name. "warning" is accepted for warn.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		name = "warn"
	}
	for lvl, n := range levelNames {
		if n == name {
			return lvl, nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// PathDisabled turns file logging off when used as Config.Path.
const PathDisabled = "off"

// Config configures the logging system.
type Config struct {
	// Level is the default file log level.
	Level string

	// Path is the log file. Empty means DefaultLogPath; PathDisabled turns
	// file logging off.
	Path string

	// Rotation controls log file rotation.
	Rotation RotationConfig

	// Components overrides the level per component name.
	Components map[string]string

	// Console receives human-oriented output when non-nil.
	Console io.Writer

	// ConsoleLevel is the minimum level written to Console. Empty means warn.
	ConsoleLevel string

	// Capture suppresses console output and keeps recent records in a ring
	// buffer for the progress view.
	Capture bool
}

// Entry is a broadcast copy of one log record.
type Entry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
	Fields    []any
}

// Logger is a component logger.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
	fields    []any
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...any) { l.log(LevelDebug, msg, kv) }

// Info logs at info level.
func (l *Logger) Info(msg string, kv ...any) { l.log(LevelInfo, msg, kv) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...any) { l.log(LevelWarn, msg, kv) }

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...any) { l.log(LevelError, msg, kv) }

func (l *Logger) log(level Level, msg string, kv []any) {
	emit(l.file, level, msg, kv)
	if l.console != nil {
		emit(l.console, level, msg, kv)
	}

	fields := kv
	if len(l.fields) > 0 {
		fields = append(append([]any{}, l.fields...), kv...)
	}
	current.broadcast(Entry{
		Time:      time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Fields:    fields,
	})
}

func emit(logger *log.Logger, level Level, msg string, kv []any) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, kv...)
	case LevelInfo:
		logger.Info(msg, kv...)
	case LevelWarn:
		logger.Warn(msg, kv...)
	default:
		logger.Error(msg, kv...)
	}
}

// With returns a logger that adds kv to every record.
func (l *Logger) With(kv ...any) *Logger {
	child := &Logger{
		file:      l.file.With(kv...),
		component: l.component,
		fields:    append(append([]any{}, l.fields...), kv...),
	}
	if l.console != nil {
		child.console = l.console.With(kv...)
	}
	return child
}

type state struct {
	mu          sync.RWMutex
	initialized bool
	writer      io.WriteCloser
	level       Level
	components  map[string]Level
	loggers     map[string]*Logger
	subscribers map[chan Entry]struct{}

	console      io.Writer
	consoleLevel Level
	capture      bool
	recent       *LogBuffer
}

var current = newState()

func newState() *state {
	return &state{
		level:       LevelInfo,
		components:  make(map[string]Level),
		loggers:     make(map[string]*Logger),
		subscribers: make(map[chan Entry]struct{}),
	}
}

// Init configures logging. It may be called again to reconfigure; existing
// loggers are rebuilt.
func Init(cfg Config) error {
	level := LevelInfo
	if cfg.Level != "" {
		var err error
		if level, err = ParseLevel(cfg.Level); err != nil {
			return fmt.Errorf("parsing log level: %w", err)
		}
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, name := range cfg.Components {
		lvl, err := ParseLevel(name)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = lvl
	}

	consoleLevel := LevelWarn
	if cfg.ConsoleLevel != "" {
		var err error
		if consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	var writer io.WriteCloser
	if cfg.Path != PathDisabled {
		path := cfg.Path
		if path == "" {
			path = DefaultLogPath()
		}
		w, err := NewRotatingWriter(path, cfg.Rotation)
		if err != nil {
			return fmt.Errorf("creating log writer: %w", err)
		}
		writer = w
	}

	s := current
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		_ = s.writer.Close()
	}

	s.writer = writer
	s.level = level
	s.components = components
	s.console = cfg.Console
	s.consoleLevel = consoleLevel
	s.capture = cfg.Capture
	s.recent = nil
	if cfg.Capture {
		s.recent = NewLogBuffer(DefaultBufferSize)
	}
	s.initialized = true

	for comp := range s.loggers {
		s.loggers[comp] = s.build(comp)
	}
	return nil
}

// Get returns the logger for component, creating it on first use.
func Get(component string) *Logger {
	s := current
	s.mu.RLock()
	logger, ok := s.loggers[component]
	s.mu.RUnlock()
	if ok {
		return logger
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if logger, ok := s.loggers[component]; ok {
		return logger
	}
	logger = s.build(component)
	s.loggers[component] = logger
	return logger
}

// build must be called with s.mu held.
func (s *state) build(component string) *Logger {
	level := s.level
	if lvl, ok := s.components[component]; ok {
		level = lvl
	}

	var out io.Writer = io.Discard
	if s.initialized && s.writer != nil {
		out = s.writer
	}

	logger := &Logger{
		file: log.NewWithOptions(out, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}

	if s.initialized && s.console != nil && !s.capture {
		logger.console = log.NewWithOptions(s.console, log.Options{
			Level:  s.consoleLevel.charm(),
			Prefix: "supertree",
		})
	}
	return logger
}

// Close closes the log file and all subscriptions. Loggers obtained
// afterwards discard their output until the next Init.
func Close() error {
	s := current
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, ch)
	}

	var err error
	if s.writer != nil {
		err = s.writer.Close()
		s.writer = nil
	}

	s.initialized = false
	s.console = nil
	s.capture = false
	s.recent = nil
	s.loggers = make(map[string]*Logger)
	s.components = make(map[string]Level)

	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// Subscribe returns a channel receiving every record. Records are dropped
// rather than blocking when the channel is full.
func Subscribe() <-chan Entry {
	s := current
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Entry, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe stops delivery to ch. The channel is not closed.
func Unsubscribe(ch <-chan Entry) {
	s := current
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subscribers {
		if sub == ch {
			delete(s.subscribers, sub)
			return
		}
	}
}

func (s *state) broadcast(e Entry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.recent != nil {
		s.recent.Add(e)
	}
	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Recent returns the capture buffer, or nil when capture is off.
func Recent() *LogBuffer {
	current.mu.RLock()
	defer current.mu.RUnlock()
	return current.recent
}

// DefaultLogPath returns $XDG_STATE_HOME/supertree/supertree.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "supertree", "supertree.log")
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
