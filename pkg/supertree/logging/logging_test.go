package logging_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tdilauro/dm-utils/pkg/supertree/logging"
)

// These tests share the package-level logging state and must not run in
// parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"warn", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{" error ", logging.LevelError, false},
		{"loud", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, logging.ErrInvalidLevel) {
			t.Errorf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{"defaults", logging.Config{Path: filepath.Join(dir, "a.log")}, false},
		{"file disabled", logging.Config{Path: logging.PathDisabled}, false},
		{
			"component overrides",
			logging.Config{
				Level:      "info",
				Path:       filepath.Join(dir, "b.log"),
				Components: map[string]string{"checksum": "debug", "listing": "error"},
			},
			false,
		},
		{"bad level", logging.Config{Level: "loud", Path: logging.PathDisabled}, true},
		{"bad component level", logging.Config{Path: logging.PathDisabled, Components: map[string]string{"x": "?"}}, true},
		{"bad console level", logging.Config{Path: logging.PathDisabled, ConsoleLevel: "?"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err := logging.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supertree.log")
	if err := logging.Init(logging.Config{
		Level:      "info",
		Path:       path,
		Components: map[string]string{"record": "debug"},
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	logging.Get("listing").Debug("hidden debug")
	logging.Get("listing").Info("tree started", "roots", 2)
	logging.Get("record").Debug("visible debug")

	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)

	if strings.Contains(out, "hidden debug") {
		t.Errorf("debug record below component level was written:\n%s", out)
	}
	if !strings.Contains(out, "tree started") || !strings.Contains(out, "roots=2") {
		t.Errorf("info record missing:\n%s", out)
	}
	if !strings.Contains(out, "visible debug") {
		t.Errorf("component override not applied:\n%s", out)
	}
}

func TestConsoleOutput(t *testing.T) {
	var console bytes.Buffer
	if err := logging.Init(logging.Config{
		Path:         logging.PathDisabled,
		Console:      &console,
		ConsoleLevel: "warn",
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer logging.Close()

	logging.Get("emit").Info("quiet")
	logging.Get("emit").Warn("unknown column dropped", "column", "colour")

	out := console.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info record reached warn console: %q", out)
	}
	if !strings.Contains(out, "unknown column dropped") {
		t.Errorf("warn record missing from console: %q", out)
	}
}

func TestCapture(t *testing.T) {
	var console bytes.Buffer
	if err := logging.Init(logging.Config{
		Path:    logging.PathDisabled,
		Console: &console,
		Capture: true,
	}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer logging.Close()

	logging.Get("record").Warn("checksum failed", "path", "/r/a")
	logging.Get("record").Info("later info")

	if console.Len() != 0 {
		t.Errorf("console written while capturing: %q", console.String())
	}

	buf := logging.Recent()
	if buf == nil {
		t.Fatal("Recent() = nil with Capture on")
	}
	e, ok := buf.Latest(logging.LevelWarn)
	if !ok {
		t.Fatal("Latest(warn) found nothing")
	}
	if e.Message != "checksum failed" || e.Component != "record" {
		t.Errorf("Latest(warn) = %+v", e)
	}
	if len(e.Fields) != 2 || e.Fields[1] != "/r/a" {
		t.Errorf("Fields = %v", e.Fields)
	}
}

func TestGetBeforeInitDiscards(t *testing.T) {
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Must not panic.
	logging.Get("pipeline").Error("nobody listening")
	if logging.Recent() != nil {
		t.Error("Recent() should be nil before Init")
	}
}

func TestSubscribe(t *testing.T) {
	if err := logging.Init(logging.Config{Path: logging.PathDisabled}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer logging.Close()

	ch := logging.Subscribe()
	logging.Get("watch").With("root", "/r").Info("change detected")

	select {
	case e := <-ch:
		if e.Message != "change detected" || e.Level != logging.LevelInfo {
			t.Errorf("got %+v", e)
		}
		if len(e.Fields) != 2 || e.Fields[0] != "root" {
			t.Errorf("With fields not broadcast: %v", e.Fields)
		}
	case <-time.After(time.Second):
		t.Fatal("no entry received")
	}

	logging.Unsubscribe(ch)
	logging.Get("watch").Info("after unsubscribe")
	select {
	case e := <-ch:
		t.Errorf("received after Unsubscribe: %+v", e)
	default:
	}
}

func TestDefaultLogPath(t *testing.T) {
	p := logging.DefaultLogPath()
	if filepath.Base(p) != "supertree.log" || filepath.Base(filepath.Dir(p)) != "supertree" {
		t.Errorf("DefaultLogPath() = %q", p)
	}
}
