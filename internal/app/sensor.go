// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/paulmach/orb"

	"github.com/relabs-tech/situation_viewer/internal/config"
	"github.com/relabs-tech/situation_viewer/internal/sensors"
	"github.com/relabs-tech/situation_viewer/internal/timeutil"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// runnableSensor is a tracking sensor with its own read loop.
type runnableSensor interface {
	tracking.Sensor
	Run(ctx context.Context) error
}

// connectMQTT connects to the configured broker.
func connectMQTT(cfg *config.Config, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.MQTTBroker, token.Error())
	}
	slog.Info("connected to MQTT broker", "broker", cfg.MQTTBroker, "client_id", clientID)
	return client, nil
}

// newSensor builds the sensor selected by SENSOR_SOURCE. The returned
// function releases the port or broker connection.
func newSensor(cfg *config.Config, clientID string, clock timeutil.Clock) (runnableSensor, func(), error) {
	timeout := time.Duration(cfg.SensorTimeoutMs) * time.Millisecond

	switch cfg.SensorSource {
	case config.SourceNMEA:
		port, err := sensors.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("GPS serial port opened", "port", cfg.GPSSerialPort, "baud", cfg.GPSBaudRate)
		s := sensors.NewNMEASensor(port, clock, timeout, slog.Default())
		return s, func() { port.Close() }, nil

	case config.SourceMQTT:
		client, err := connectMQTT(cfg, clientID)
		if err != nil {
			return nil, nil, err
		}
		s := sensors.NewMQTTSensor(client, cfg.TopicGPS, cfg.TopicGPSError, clock, timeout, slog.Default())
		return s, func() { client.Disconnect(cfg.MQTTDisconnectQuiesceMs) }, nil

	case config.SourceMock:
		return sensors.NewMockSensor(mockConfig(cfg), clock, slog.Default()), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown sensor source %q", cfg.SensorSource)
	}
}

func mockConfig(cfg *config.Config) sensors.MockConfig {
	return sensors.MockConfig{
		Center:   orb.Point{cfg.MockCenterLon, cfg.MockCenterLat},
		RadiusM:  cfg.MockRadiusM,
		Period:   time.Duration(cfg.MockPeriodS * float64(time.Second)),
		Interval: time.Duration(cfg.MockIntervalMs) * time.Millisecond,
		Jitter:   time.Duration(cfg.MockJitterMs) * time.Millisecond,
	}
}

// newSession wires a tracking session to s using the configured tuning.
func newSession(cfg *config.Config, s tracking.Sensor) *tracking.Session {
	return tracking.NewSession(s, tracking.Options{
		InitialDeltaMeanMs: cfg.InitialDeltaMeanMs,
		LagFactor:          cfg.PlaybackLagFactor,
		Logger:             slog.Default(),
	})
}
