package main

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/tdilauro/dm-utils/pkg/supertree/config"
)

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"path", []string{"path"}},
		{"path, sha256 ,size", []string{"path", "sha256", "size"}},
		{",,path,,", []string{"path"}},
	}
	for _, tt := range tests {
		got := parseCommaSeparated(tt.input)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommaSeparated(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestColumnKeys(t *testing.T) {
	got := columnKeys([]string{"path,checksum", "size"})
	want := []string{"path", "checksum", "size"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("columnKeys() = %v, want %v", got, want)
	}
	if got := columnKeys(nil); len(got) != 0 {
		t.Errorf("columnKeys(nil) = %v, want empty", got)
	}
}

func TestManifestFlagsRegistered(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	for name, key := range manifestFlags {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s is not registered", name)
		}
		// Dotted keys and workers are configuration keys; the rest are
		// command-line switches only.
		if strings.Contains(key, ".") || key == "workers" {
			if !v.IsSet(key) {
				t.Errorf("flag --%s is bound to %q, which has no default", name, key)
			}
		}
	}
}

func TestShortFlags(t *testing.T) {
	shorts := map[string]string{
		"d": "digest",
		"a": "all",
		"I": "exclude",
		"o": "output",
		"f": "format",
		"c": "columns",
		"w": "workers",
	}
	for short, name := range shorts {
		f := rootCmd.Flags().ShorthandLookup(short)
		if f == nil || f.Name != name {
			t.Errorf("-%s should be --%s", short, name)
		}
	}
}
