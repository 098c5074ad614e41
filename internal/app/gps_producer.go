// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/situation_viewer/internal/config"
	"github.com/relabs-tech/situation_viewer/internal/gps"
	"github.com/relabs-tech/situation_viewer/internal/sensors"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// Publisher is the part of mqtt.Client used by the producers.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// RunGPSProducer opens the GPS serial port, parses NMEA sentences, and
// publishes every RMC fix as JSON to the GPS topic.
func RunGPSProducer(ctx context.Context, cfg *config.Config) error {
	client, err := connectMQTT(cfg, cfg.MQTTClientIDGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(cfg.MQTTDisconnectQuiesceMs)

	port, err := sensors.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
	if err != nil {
		return err
	}
	slog.Info("GPS serial port opened", "port", cfg.GPSSerialPort, "baud", cfg.GPSBaudRate)

	// a blocked read only returns once the port is closed
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	err = publishFixes(port, client, cfg.TopicGPS, cfg.TopicGPSError)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// publishFixes reads NMEA sentences from r until it fails. Read errors are
// also published on errorTopic so subscribers see why fixes stopped.
func publishFixes(r io.Reader, pub Publisher, topic, errorTopic string) error {
	log := slog.With("component", "gps-producer")
	reader := bufio.NewReader(r)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Error("GPS read error", "error", err)
			publishError(pub, errorTopic, tracking.CodePositionUnavailable, "GPS read error: "+err.Error())
			return fmt.Errorf("read GPS: %w", err)
		}

		fix, err := gps.ParseSentence(line)
		if err != nil && !errors.Is(err, gps.ErrNoFix) {
			// GGA, GSA and partial sentences
			continue
		}

		payload, err := json.Marshal(fix)
		if err != nil {
			log.Error("GPS JSON marshal error", "error", err)
			continue
		}

		token := pub.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Warn("GPS publish error", "error", token.Error())
			continue
		}
		log.Debug("published GPS fix", "lat", fix.Latitude, "lon", fix.Longitude, "validity", fix.Validity)
	}
}

func publishError(pub Publisher, topic string, code int, message string) {
	if topic == "" {
		return
	}
	payload, err := json.Marshal(tracking.SensorError{Code: code, Message: message})
	if err != nil {
		return
	}
	token := pub.Publish(topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		slog.Warn("GPS error publish failed", "error", token.Error())
	}
}
