package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scale.json")
	contents := `{"device_mac": "88:22:B2:A7:CE:B6", "scan_interval": "5s"}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DeviceMAC != "88:22:B2:A7:CE:B6" {
		t.Errorf("DeviceMAC = %q", cfg.DeviceMAC)
	}
	if time.Duration(cfg.ScanInterval) != 5*time.Second {
		t.Errorf("ScanInterval = %s, want 5s", time.Duration(cfg.ScanInterval))
	}
	// Untouched fields keep defaults.
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want default :8080", cfg.Listen)
	}
	if cfg.DefaultHeightCm != 180 {
		t.Errorf("DefaultHeightCm = %d, want default 180", cfg.DefaultHeightCm)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scale.json")
	if err := os.WriteFile(path, []byte(`{"listen": ":9000"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SCALE_LISTEN", ":7070")
	t.Setenv("SCALE_BACKOFF", "45s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("Listen = %q, want env override :7070", cfg.Listen)
	}
	if time.Duration(cfg.Backoff) != 45*time.Second {
		t.Errorf("Backoff = %s, want 45s", time.Duration(cfg.Backoff))
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	if _, err := Load("scale.yaml"); err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Load(yaml) error = %v, want extension complaint", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero scan window", func(c *Config) { c.ScanWindow = 0 }, "scan_window"},
		{"negative interval", func(c *Config) { c.ScanInterval = Duration(-time.Second) }, "scan_interval"},
		{"empty history path", func(c *Config) { c.HistoryCSV = "" }, "history_csv"},
		{"empty profiles path", func(c *Config) { c.ProfilesPath = "" }, "profiles_path"},
		{"bad units", func(c *Config) { c.Units = "oz" }, "units"},
		{"bad height", func(c *Config) { c.DefaultHeightCm = 300 }, "default_height_cm"},
		{"bad age", func(c *Config) { c.DefaultAge = 200 }, "default_age"},
		{"bad sex", func(c *Config) { c.DefaultSex = "other" }, "default_sex"},
		{"amqp addr without queue", func(c *Config) { c.AMQPAddr = "amqp://localhost" }, "amqp_queue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDurationJSONRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := d.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"1m30s"` {
		t.Errorf("MarshalJSON() = %s", data)
	}

	var back Duration
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if back != d {
		t.Errorf("round trip = %v, want %v", back, d)
	}
}
