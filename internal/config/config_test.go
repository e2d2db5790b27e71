package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occd.yaml")
	writeFile(t, path, `
listen: ":9000"
bus:
  transport: sim
poll:
  refresh_interval_ms: 250
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Bus.Transport != TransportSim {
		t.Errorf("Transport = %q", cfg.Bus.Transport)
	}
	if cfg.Poll.RefreshIntervalMs != 250 {
		t.Errorf("RefreshIntervalMs = %d", cfg.Poll.RefreshIntervalMs)
	}
	// Untouched fields keep their defaults.
	if cfg.Bus.Address != 0x50 {
		t.Errorf("Address = 0x%02x, want default 0x50", cfg.Bus.Address)
	}
	if cfg.Poll.IntervalMs != Default().Poll.IntervalMs {
		t.Errorf("IntervalMs = %d, want default", cfg.Poll.IntervalMs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"sim without device", func(c *Config) {
			c.Bus.Transport = TransportSim
			c.Bus.Device = ""
		}, true},
		{"unknown transport", func(c *Config) { c.Bus.Transport = "spi" }, false},
		{"i2c without device", func(c *Config) { c.Bus.Device = "" }, false},
		{"serial with zero baud", func(c *Config) {
			c.Bus.Transport = TransportSerial
			c.Bus.BaudRate = 0
		}, false},
		{"zero refresh interval", func(c *Config) { c.Poll.RefreshIntervalMs = 0 }, false},
		{"negative poll interval", func(c *Config) { c.Poll.IntervalMs = -1 }, false},
		{"poller disabled", func(c *Config) { c.Poll.IntervalMs = 0 }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate accepted a bad config")
			}
		})
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "occd.yaml")
	writeFile(t, path, "listen: \":9000\"\n")

	var mu sync.Mutex
	var got []Config
	w, err := Watch(path, func(cfg Config) {
		mu.Lock()
		got = append(got, cfg)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeFile(t, path, "listen: \":9100\"\n")

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no reload observed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	last := got[len(got)-1]
	mu.Unlock()
	if last.Listen != ":9100" {
		t.Errorf("reloaded Listen = %q", last.Listen)
	}
}

func TestWatchSkipsInvalidVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "occd.yaml")
	writeFile(t, path, "listen: \":9000\"\n")

	var mu sync.Mutex
	calls := 0
	w, err := Watch(path, func(Config) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	writeFile(t, path, "bus: {transport: spi}\n")
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("invalid config reached the callback %d times", calls)
	}
}
