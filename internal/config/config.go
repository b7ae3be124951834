// Package config loads the daemon configuration.
//
// Precedence, lowest to highest: built-in defaults, the JSON config file,
// SCALE_* environment variables, then whatever flags the command overlays
// on the result. A partial config file is fine; omitted fields keep their
// defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/banshee-data/scale.report/internal/units"
)

// Config is the full daemon configuration.
type Config struct {
	// DeviceMAC is the scale's BLE address (colon-hex, case-insensitive).
	// Empty means accept frames from any device.
	DeviceMAC string `json:"device_mac" env:"SCALE_DEVICE_MAC"`

	// SerialPort is the HCI-UART device the scanner opens.
	SerialPort string `json:"serial_port" env:"SCALE_SERIAL_PORT"`
	BaudRate   int    `json:"baud_rate" env:"SCALE_BAUD_RATE"`

	// ScanWindow bounds one scan; ScanInterval is the pause between
	// cycles; Backoff is the pause after an unexpected cycle failure.
	ScanWindow   Duration `json:"scan_window" env:"SCALE_SCAN_WINDOW"`
	ScanInterval Duration `json:"scan_interval" env:"SCALE_SCAN_INTERVAL"`
	Backoff      Duration `json:"backoff" env:"SCALE_BACKOFF"`

	// HistoryCSV is the canonical append-only measurement log. DBPath,
	// when set, mirrors records into a SQLite database as well.
	HistoryCSV string `json:"history_csv" env:"SCALE_HISTORY_CSV"`
	DBPath     string `json:"db_path" env:"SCALE_DB_PATH"`

	// ProfilesPath is the users JSON document.
	ProfilesPath string `json:"profiles_path" env:"SCALE_PROFILES_PATH"`

	// Listen is the HTTP listen address; empty disables the HTTP surface.
	Listen string `json:"listen" env:"SCALE_LISTEN"`

	// Units selects the display unit for the dashboard and API (kg, lb,
	// st). Stores always hold kilograms.
	Units string `json:"units" env:"SCALE_UNITS"`

	// AMQPAddr, when set, mirrors each persisted record to a message
	// queue named AMQPQueue.
	AMQPAddr  string `json:"amqp_addr" env:"SCALE_AMQP_ADDR"`
	AMQPQueue string `json:"amqp_queue" env:"SCALE_AMQP_QUEUE"`

	// Default analysis parameters, used for the provisional first pass
	// and for attributed users without a stored profile.
	DefaultHeightCm int    `json:"default_height_cm" env:"SCALE_DEFAULT_HEIGHT_CM"`
	DefaultAge      int    `json:"default_age" env:"SCALE_DEFAULT_AGE"`
	DefaultSex      string `json:"default_sex" env:"SCALE_DEFAULT_SEX"`
}

// Default returns the built-in baseline configuration.
func Default() Config {
	return Config{
		SerialPort:      "/dev/ttyUSB0",
		BaudRate:        115200,
		ScanWindow:      Duration(20 * time.Second),
		ScanInterval:    Duration(10 * time.Second),
		Backoff:         Duration(30 * time.Second),
		HistoryCSV:      "scale_data.csv",
		ProfilesPath:    "users.json",
		Listen:          ":8080",
		Units:           units.KG,
		DefaultHeightCm: 180,
		DefaultAge:      30,
		DefaultSex:      "male",
	}
}

// Load builds a Config from defaults, the optional JSON file at path, and
// the SCALE_* environment. Pass an empty path to skip the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate rejects values the daemon cannot start with.
func (c Config) Validate() error {
	if c.ScanWindow <= 0 {
		return fmt.Errorf("scan_window must be positive, got %s", time.Duration(c.ScanWindow))
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval must be positive, got %s", time.Duration(c.ScanInterval))
	}
	if c.Backoff <= 0 {
		return fmt.Errorf("backoff must be positive, got %s", time.Duration(c.Backoff))
	}
	if c.HistoryCSV == "" {
		return fmt.Errorf("history_csv must not be empty")
	}
	if c.ProfilesPath == "" {
		return fmt.Errorf("profiles_path must not be empty")
	}
	if !units.IsValid(c.Units) {
		return fmt.Errorf("units must be one of %s, got %q", units.GetValidUnitsString(), c.Units)
	}
	if c.DefaultHeightCm <= 0 || c.DefaultHeightCm > 250 {
		return fmt.Errorf("default_height_cm must be between 1 and 250, got %d", c.DefaultHeightCm)
	}
	if c.DefaultAge < 0 || c.DefaultAge > 120 {
		return fmt.Errorf("default_age must be between 0 and 120, got %d", c.DefaultAge)
	}
	if c.DefaultSex != "male" && c.DefaultSex != "female" {
		return fmt.Errorf("default_sex must be male or female, got %q", c.DefaultSex)
	}
	if c.AMQPAddr != "" && c.AMQPQueue == "" {
		return fmt.Errorf("amqp_queue must be set when amqp_addr is set")
	}
	return nil
}

// Duration marshals as a duration string ("30s") in JSON and parses the
// same syntax from the environment.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}
