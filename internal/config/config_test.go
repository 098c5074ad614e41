package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "situation_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `# viewer settings
MQTT_BROKER=tcp://broker.local:1883
TOPIC_GPS=car/gps
SENSOR_SOURCE=mqtt
INITIAL_DELTA_MEAN_MS=250
PLAYBACK_LAG_FACTOR=2
RENDER_INTERVAL_MS=16
WEB_SERVER_PORT=9090
LOG_LEVEL=debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTTBroker)
	assert.Equal(t, "car/gps", cfg.TopicGPS)
	assert.Equal(t, SourceMQTT, cfg.SensorSource)
	assert.InDelta(t, 250.0, cfg.InitialDeltaMeanMs, 1e-9)
	assert.InDelta(t, 2.0, cfg.PlaybackLagFactor, 1e-9)
	assert.Equal(t, 16, cfg.RenderIntervalMs)
	assert.Equal(t, 9090, cfg.WebServerPort)
	assert.Equal(t, "DEBUG", cfg.LogLevel)

	// untouched keys keep their defaults
	assert.Equal(t, "inertial/gps/error", cfg.TopicGPSError)
	assert.Equal(t, 9600, cfg.GPSBaudRate)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.InDelta(t, 500.0, cfg.InitialDeltaMeanMs, 1e-9)
	assert.InDelta(t, 1.5, cfg.PlaybackLagFactor, 1e-9)
	assert.Equal(t, SourceMock, cfg.SensorSource)
	assert.NoError(t, cfg.validate())
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   string
	}{
		{"unknown key", map[string]string{"NOPE": "1"}, "unknown config key"},
		{"not a number", map[string]string{"RENDER_INTERVAL_MS": "many"}, "invalid RENDER_INTERVAL_MS"},
		{"fixed track capacity", map[string]string{"TRACK_CAPACITY": "500"}, "unknown config key"},
		{"bad lag", map[string]string{"PLAYBACK_LAG_FACTOR": "0"}, "PLAYBACK_LAG_FACTOR must be"},
		{"bad port", map[string]string{"WEB_SERVER_PORT": "70000"}, "WEB_SERVER_PORT must be 1-65535"},
		{"bad source", map[string]string{"SENSOR_SOURCE": "bluetooth"}, "SENSOR_SOURCE must be one of"},
		{"bad level", map[string]string{"LOG_LEVEL": "chatty"}, "LOG_LEVEL must be"},
		{"mqtt without topic", map[string]string{"SENSOR_SOURCE": "mqtt", "TOPIC_GPS": ""}, "TOPIC_GPS is required"},
		{"mqtt without broker", map[string]string{"SENSOR_SOURCE": "mqtt", "MQTT_BROKER": ""}, "MQTT_BROKER is required"},
		{"nmea without port", map[string]string{"SENSOR_SOURCE": "nmea", "GPS_SERIAL_PORT": ""}, "GPS_SERIAL_PORT is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.values)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromMap_QuiesceAndMock(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"MQTT_DISCONNECT_QUIESCE_MS": "1000",
		"MOCK_RADIUS_M":              " 75 ",
		"MOCK_INTERVAL_MS":           "200",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1000), cfg.MQTTDisconnectQuiesceMs)
	assert.InDelta(t, 75.0, cfg.MockRadiusM, 1e-9)
	assert.Equal(t, 200, cfg.MockIntervalMs)
}

func TestLoad_SampleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "situation_config.txt"))
	require.NoError(t, err)
	assert.Equal(t, "logs/situation.log", cfg.LogPath)

	// everything else in the sample matches the built-in defaults
	cfg.LogPath = ""
	assert.Equal(t, Default(), cfg)
}
