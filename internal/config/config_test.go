package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/recera/mxc/internal/cache"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeConfig(t, `
srcDir: views
extension: mx
workers: 4
compiler:
  events:
    extra: [swipe, longPress]
  globals: [$app]
cache:
  enabled: false
dev:
  port: 9000
`)
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := DefaultConfig()
	want.SrcDir = "views"
	want.Extension = ".mx"
	want.Workers = 4
	want.Compiler.Events.Extra = []string{"swipe", "longPress"}
	want.Compiler.Globals = []string{"$app"}
	want.Cache.Enabled = false
	want.Dev.Port = 9000
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	events := got.EventSet()
	for _, name := range []string{"click", "swipe", "longPress"} {
		if !events.Has(name) {
			t.Errorf("event %s missing from vocabulary", name)
		}
	}
	if _, enabled := got.CacheOptions(); enabled {
		t.Error("cache should be disabled")
	}
	if g := got.CodegenOptions().Globals; g[len(g)-1] != "$app" {
		t.Errorf("configured global not appended: %v", g)
	}
}

func TestLoadReplaceEvents(t *testing.T) {
	dir := writeConfig(t, "compiler:\n  events:\n    replace: [tap]\n")
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"tap"}, got.EventSet().Names()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if ns := got.MarkupOptions().Namespaces(); len(ns) != 5 {
		t.Errorf("default namespaces not applied: %v", ns)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "malformed yaml",
			content: "srcDir: [unclosed",
			want:    []string{"parsing"},
		},
		{
			name:    "every invalid field is reported",
			content: "workers: -1\ndev:\n  port: 70000\n  debounce: soon\ncache:\n  maxSize: lots\n  strategy: random\n",
			want: []string{
				"workers must not be negative",
				"dev.port 70000 is out of range",
				"dev.debounce",
				"cache.maxSize",
				"cache.strategy",
			},
		},
		{
			name:    "extra and replace",
			content: "compiler:\n  events:\n    extra: [a]\n    replace: [b]\n",
			want:    []string{"mutually exclusive"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q does not mention %q", err, w)
				}
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig()
	config.OutDir = "build/js"
	config.Compiler.QualifyMethods = true

	if err := Save(config, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(config, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFingerprint(t *testing.T) {
	base := DefaultConfig()
	if base.Fingerprint() != DefaultConfig().Fingerprint() {
		t.Error("fingerprint is not deterministic")
	}

	changed := []func(c *Config){
		func(c *Config) { c.Compiler.Events.Extra = []string{"swipe"} },
		func(c *Config) { c.Compiler.Globals = []string{"$app"} },
		func(c *Config) { c.Compiler.QualifyMethods = true },
		func(c *Config) { c.Compiler.Namespaces.Legacy = nil },
	}
	for i, change := range changed {
		c := DefaultConfig()
		change(c)
		if c.Fingerprint() == base.Fingerprint() {
			t.Errorf("change %d did not alter the fingerprint", i)
		}
	}

	c := DefaultConfig()
	c.OutDir = "elsewhere"
	c.Dev.Port = 1
	if c.Fingerprint() != base.Fingerprint() {
		t.Error("settings that do not affect output changed the fingerprint")
	}
}

func TestCacheOptions(t *testing.T) {
	c := DefaultConfig()
	c.Cache.MaxSize = "2MB"
	c.Cache.MaxAge = "1h"
	c.Cache.Strategy = "fifo"

	got, enabled := c.CacheOptions()
	want := cache.Config{MaxSize: 2 << 20, MaxAge: time.Hour, Strategy: cache.FIFO}
	if !enabled {
		t.Error("cache should be enabled by default")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cache options mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1024", want: 1024},
		{in: "512KB", want: 512 << 10},
		{in: "256 mb", want: 256 << 20},
		{in: "1GB", want: 1 << 30},
		{in: "10B", want: 10},
		{in: "-1MB", wantErr: true},
		{in: "huge", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
