// Package config holds the runtime configuration of the LED watcher.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrConfiguration is returned for invalid configuration values.
var ErrConfiguration = errors.New("configuration error")

// Acquisition source kinds.
const (
	SourceCamera = "camera"
	SourceStill  = "still"
	SourceDir    = "dir"
)

// maxFileSize bounds the size of a configuration file.
const maxFileSize = 1 << 20

// Duration is a time.Duration that encodes as a Go duration string ("30s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MQTT configures the MQTT verdict sink. An empty Broker disables it.
type MQTT struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
	// PublishTicks also publishes every tick result under Topic + "/ticks".
	PublishTicks bool `json:"publish_ticks"`
}

// Config is the watcher configuration.
type Config struct {
	CalibrationPath     string   `json:"calibration_path"`
	DetectionThreshold  float64  `json:"detection_threshold"`
	TickInterval        Duration `json:"tick_interval"`
	RequiredNoLedCount  int      `json:"required_no_led_count"`
	RequiredEndingCount int      `json:"required_ending_count"`

	Debug    bool   `json:"debug"`
	DebugDir string `json:"debug_dir"`

	Source       string   `json:"source"`
	CameraID     int      `json:"camera_id"`
	CameraWidth  int      `json:"camera_width"`
	CameraHeight int      `json:"camera_height"`
	StillCommand []string `json:"still_command"`
	StillPath    string   `json:"still_path"`
	ReplayDir    string   `json:"replay_dir"`
	ReplayLoop   bool     `json:"replay_loop"`

	DBPath   string `json:"db_path"`
	HTTPAddr string `json:"http_addr"`
	Tray     bool   `json:"tray"`
	MQTT     MQTT   `json:"mqtt"`

	PluginDir     string   `json:"plugin_dir"`
	PluginTimeout Duration `json:"plugin_timeout"`
	// Plugins holds per-plugin configuration passed to each plugin as is.
	Plugins map[string]json.RawMessage `json:"plugins"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		CalibrationPath:     "leds.json",
		DetectionThreshold:  0.5,
		TickInterval:        Duration(30 * time.Second),
		RequiredNoLedCount:  5,
		RequiredEndingCount: 5,
		DebugDir:            filepath.Join(os.TempDir(), "ledwatch"),
		Source:              SourceStill,
		StillCommand: []string{
			"raspistill", "-o", "{out}", "-q", "100", "-vs",
			"-ex", "auto", "-mm", "average", "-awb", "auto",
		},
		StillPath:     filepath.Join(os.TempDir(), "img.jpg"),
		PluginTimeout: Duration(30 * time.Second),
		MQTT: MQTT{
			ClientID: "ledwatch",
			Topic:    "ledwatch/verdict",
			QoS:      1,
		},
	}
}

// Load reads a JSON configuration file on top of the defaults.
// Fields omitted from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("%w: config file must have .json extension, got %q", ErrConfiguration, ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return cfg, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrConfiguration, info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: failed to parse %s: %v", ErrConfiguration, cleanPath, err)
	}
	return cfg, nil
}

// Interval returns the tick interval as a time.Duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.TickInterval)
}

// Validate checks every value that would make the watcher misbehave.
func (c Config) Validate() error {
	if c.CalibrationPath == "" {
		return fmt.Errorf("%w: calibration_path is required", ErrConfiguration)
	}
	if !(c.DetectionThreshold > 0 && c.DetectionThreshold < 1) {
		return fmt.Errorf("%w: detection_threshold must be in (0,1), got %v", ErrConfiguration, c.DetectionThreshold)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be > 0, got %s", ErrConfiguration, c.Interval())
	}
	if c.RequiredNoLedCount <= 0 {
		return fmt.Errorf("%w: required_no_led_count must be > 0, got %d", ErrConfiguration, c.RequiredNoLedCount)
	}
	if c.RequiredEndingCount <= 0 {
		return fmt.Errorf("%w: required_ending_count must be > 0, got %d", ErrConfiguration, c.RequiredEndingCount)
	}
	if c.Debug && c.DebugDir == "" {
		return fmt.Errorf("%w: debug_dir is required when debug is enabled", ErrConfiguration)
	}

	switch c.Source {
	case SourceCamera:
		if c.CameraID < 0 {
			return fmt.Errorf("%w: camera_id must be >= 0, got %d", ErrConfiguration, c.CameraID)
		}
	case SourceStill:
		if len(c.StillCommand) == 0 || c.StillPath == "" {
			return fmt.Errorf("%w: still source needs still_command and still_path", ErrConfiguration)
		}
	case SourceDir:
		if c.ReplayDir == "" {
			return fmt.Errorf("%w: dir source needs replay_dir", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrConfiguration, c.Source)
	}

	if c.CameraWidth < 0 || c.CameraHeight < 0 {
		return fmt.Errorf("%w: camera resolution must be >= 0", ErrConfiguration)
	}
	if c.PluginDir != "" && c.PluginTimeout <= 0 {
		return fmt.Errorf("%w: plugin_timeout must be > 0, got %s", ErrConfiguration, time.Duration(c.PluginTimeout))
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.Topic == "" {
			return fmt.Errorf("%w: mqtt.topic is required when mqtt.broker is set", ErrConfiguration)
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2, got %d", ErrConfiguration, c.MQTT.QoS)
		}
	}
	return nil
}
