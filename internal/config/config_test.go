package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.DetectionThreshold)
	assert.Equal(t, 30*time.Second, cfg.Interval())
	assert.Equal(t, 5, cfg.RequiredNoLedCount)
	assert.Equal(t, 5, cfg.RequiredEndingCount)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "ledwatch.json", `{
		"detection_threshold": 0.6,
		"tick_interval": "2s",
		"mqtt": {"broker": "tcp://localhost:1883"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.6, cfg.DetectionThreshold)
	assert.Equal(t, 2*time.Second, cfg.Interval())
	assert.Equal(t, "leds.json", cfg.CalibrationPath)
	assert.Equal(t, 5, cfg.RequiredEndingCount)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "ledwatch/verdict", cfg.MQTT.Topic, "nested defaults survive")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("wrong extension", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ledwatch.yaml", `{}`))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ledwatch.json", `{"threshold": 0.5}`))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, "ledwatch.json", `{"tick_interval": "soon"}`))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "threshold zero", mutate: func(c *Config) { c.DetectionThreshold = 0 }},
		{name: "threshold one", mutate: func(c *Config) { c.DetectionThreshold = 1 }},
		{name: "threshold negative", mutate: func(c *Config) { c.DetectionThreshold = -0.2 }},
		{name: "zero interval", mutate: func(c *Config) { c.TickInterval = 0 }},
		{name: "negative interval", mutate: func(c *Config) { c.TickInterval = Duration(-time.Second) }},
		{name: "zero no-led count", mutate: func(c *Config) { c.RequiredNoLedCount = 0 }},
		{name: "negative ending count", mutate: func(c *Config) { c.RequiredEndingCount = -3 }},
		{name: "no calibration path", mutate: func(c *Config) { c.CalibrationPath = "" }},
		{name: "unknown source", mutate: func(c *Config) { c.Source = "webcam" }},
		{name: "dir without path", mutate: func(c *Config) { c.Source = SourceDir }},
		{name: "still without command", mutate: func(c *Config) { c.StillCommand = nil }},
		{name: "negative camera", mutate: func(c *Config) { c.Source = SourceCamera; c.CameraID = -1 }},
		{name: "debug without dir", mutate: func(c *Config) { c.Debug = true; c.DebugDir = "" }},
		{name: "mqtt bad qos", mutate: func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.QoS = 3 }},
		{name: "mqtt no topic", mutate: func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.Topic = "" }},
		{name: "negative width", mutate: func(c *Config) { c.CameraWidth = -640 }},
		{name: "plugins without timeout", mutate: func(c *Config) { c.PluginDir = "plugins"; c.PluginTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, d, back)
}
