// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Sensor sources.
const (
	SourceNMEA = "nmea" // GPS receiver on a serial port
	SourceMQTT = "mqtt" // fixes published by gps_producer
	SourceMock = "mock" // synthetic circular track
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker              string
	MQTTClientIDGPS         string
	MQTTClientIDViewer      string
	MQTTClientIDConsole     string
	MQTTClientIDMockGPS     string
	TopicGPS                string
	TopicGPSError           string
	MQTTDisconnectQuiesceMs uint

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Sensor
	SensorSource    string // nmea, mqtt or mock
	SensorTimeoutMs int    // no fix for this long raises a timeout error (0 = off)
	MockCenterLat   float64
	MockCenterLon   float64
	MockRadiusM     float64
	MockPeriodS     float64
	MockIntervalMs  int
	MockJitterMs    int

	// Tracking
	InitialDeltaMeanMs float64
	PlaybackLagFactor  float64

	// Rendering
	RenderIntervalMs int // frame cadence of the viewer / console

	// Web Server
	WebServerPort int
	WebStaticDir  string
	MapCenterLat  float64
	MapCenterLon  float64
	MapZoom       int

	// Logging
	LogLevel string
	LogPath  string
}

// Package-level singleton, set once by InitGlobal and read with Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the built-in configuration. Load starts from these values.
func Default() *Config {
	return &Config{
		MQTTBroker:              "tcp://localhost:1883",
		MQTTClientIDGPS:         "situation-gps-producer",
		MQTTClientIDViewer:      "situation-viewer",
		MQTTClientIDConsole:     "situation-console",
		MQTTClientIDMockGPS:     "situation-mock-gps",
		TopicGPS:                "inertial/gps",
		TopicGPSError:           "inertial/gps/error",
		MQTTDisconnectQuiesceMs: 250,

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		SensorSource:    SourceMock,
		SensorTimeoutMs: 10000,
		MockCenterLat:   51.71905,
		MockCenterLon:   8.75439,
		MockRadiusM:     150,
		MockPeriodS:     120,
		MockIntervalMs:  1000,
		MockJitterMs:    250,

		InitialDeltaMeanMs: 500,
		PlaybackLagFactor:  1.5,

		RenderIntervalMs: 50,

		WebServerPort: 8080,
		WebStaticDir:  "web",
		MapCenterLat:  51.71905,
		MapCenterLon:  8.75439,
		MapZoom:       14,

		LogLevel: "INFO",
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their Default value.
func Load(configPath string) (*Config, error) {
	values, err := godotenv.Read(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return FromMap(values)
}

// FromMap builds a Config from KEY=VALUE pairs on top of Default.
func FromMap(values map[string]string) (*Config, error) {
	cfg := Default()

	// Deterministic order so the first bad key reported is stable.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cfg.setValue(key, strings.TrimSpace(values[key])); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_VIEWER":
		c.MQTTClientIDViewer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_MOCK_GPS":
		c.MQTTClientIDMockGPS = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_GPS_ERROR":
		c.TopicGPSError = value
	case "MQTT_DISCONNECT_QUIESCE_MS":
		var v int
		v, err = parseInt(key, value, 0, 60000)
		c.MQTTDisconnectQuiesceMs = uint(v)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value, 1, 921600)

	// Sensor
	case "SENSOR_SOURCE":
		switch value {
		case SourceNMEA, SourceMQTT, SourceMock:
			c.SensorSource = value
		default:
			return fmt.Errorf("SENSOR_SOURCE must be one of nmea, mqtt, mock, got %q", value)
		}
	case "SENSOR_TIMEOUT_MS":
		c.SensorTimeoutMs, err = parseInt(key, value, 0, 3600000)
	case "MOCK_CENTER_LAT":
		c.MockCenterLat, err = parseFloat(key, value, -85, 85)
	case "MOCK_CENTER_LON":
		c.MockCenterLon, err = parseFloat(key, value, -180, 180)
	case "MOCK_RADIUS_M":
		c.MockRadiusM, err = parseFloat(key, value, 0, 100000)
	case "MOCK_PERIOD_S":
		c.MockPeriodS, err = parseFloat(key, value, 1, 86400)
	case "MOCK_INTERVAL_MS":
		c.MockIntervalMs, err = parseInt(key, value, 10, 600000)
	case "MOCK_JITTER_MS":
		c.MockJitterMs, err = parseInt(key, value, 0, 600000)

	// Tracking
	case "INITIAL_DELTA_MEAN_MS":
		c.InitialDeltaMeanMs, err = parseFloat(key, value, 1, 600000)
	case "PLAYBACK_LAG_FACTOR":
		c.PlaybackLagFactor, err = parseFloat(key, value, 0.01, 100)

	// Rendering
	case "RENDER_INTERVAL_MS":
		c.RenderIntervalMs, err = parseInt(key, value, 1, 10000)

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "WEB_STATIC_DIR":
		c.WebStaticDir = value
	case "MAP_CENTER_LAT":
		c.MapCenterLat, err = parseFloat(key, value, -85, 85)
	case "MAP_CENTER_LON":
		c.MapCenterLon, err = parseFloat(key, value, -180, 180)
	case "MAP_ZOOM":
		c.MapZoom, err = parseInt(key, value, 0, 28)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToUpper(value)
	case "LOG_PATH":
		c.LogPath = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func parseInt(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseFloat(key, value string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %g-%g, got %g", key, lo, hi, v)
	}
	return v, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.SensorSource == SourceMQTT {
		if c.MQTTBroker == "" {
			return fmt.Errorf("MQTT_BROKER is required for SENSOR_SOURCE=mqtt")
		}
		if c.TopicGPS == "" {
			return fmt.Errorf("TOPIC_GPS is required for SENSOR_SOURCE=mqtt")
		}
	}
	if c.SensorSource == SourceNMEA && c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required for SENSOR_SOURCE=nmea")
	}
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("LOG_LEVEL must be DEBUG, INFO, WARN or ERROR, got %q", c.LogLevel)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has an effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
