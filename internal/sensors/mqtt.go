// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/situation_viewer/internal/gps"
	"github.com/relabs-tech/situation_viewer/internal/timeutil"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// Subscriber is the part of mqtt.Client used by MQTTSensor.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// MQTTSensor follows the GPS fixes published by gps_producer. It is
// subscribed only while tracking.
type MQTTSensor struct {
	dispatcher
	client     Subscriber
	topic      string
	errorTopic string
	clock      timeutil.Clock
	timeout    time.Duration
	log        *slog.Logger
}

// NewMQTTSensor creates a sensor for fixes on topic and sensor errors on
// errorTopic. An empty errorTopic disables error forwarding.
func NewMQTTSensor(client Subscriber, topic, errorTopic string, clock timeutil.Clock, timeout time.Duration, log *slog.Logger) *MQTTSensor {
	if log == nil {
		log = slog.Default()
	}
	return &MQTTSensor{
		client:     client,
		topic:      topic,
		errorTopic: errorTopic,
		clock:      clock,
		timeout:    timeout,
		log:        log.With("component", "mqtt-sensor", "topic", topic),
	}
}

// SetTracking subscribes to the fix topics when enabled and unsubscribes
// when disabled. A failed subscription is reported as CodePositionUnavailable.
func (s *MQTTSensor) SetTracking(enabled bool) {
	if !s.setTracking(enabled, s.clock.Now()) {
		return
	}

	if !enabled {
		topics := []string{s.topic}
		if s.errorTopic != "" {
			topics = append(topics, s.errorTopic)
		}
		token := s.client.Unsubscribe(topics...)
		token.Wait()
		if token.Error() != nil {
			s.log.Warn("unsubscribe failed", "error", token.Error())
		}
		return
	}

	if err := s.subscribe(s.topic, s.handleFix); err != nil {
		s.emitError(tracking.CodePositionUnavailable, "subscribe "+s.topic+": "+err.Error())
		return
	}
	if s.errorTopic != "" {
		if err := s.subscribe(s.errorTopic, s.handleError); err != nil {
			s.log.Warn("error topic unavailable", "error", err)
		}
	}
	s.log.Info("subscribed to GPS fixes")
}

func (s *MQTTSensor) subscribe(topic string, handler mqtt.MessageHandler) error {
	token := s.client.Subscribe(topic, 0, handler)
	token.Wait()
	return token.Error()
}

// Run watches for silent periods until ctx is done.
func (s *MQTTSensor) Run(ctx context.Context) error {
	if s.timeout <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := s.clock.NewTicker(s.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			s.checkTimeout(now, s.timeout)
		}
	}
}

func (s *MQTTSensor) handleFix(_ mqtt.Client, msg mqtt.Message) {
	s.HandleFix(msg.Payload())
}

func (s *MQTTSensor) handleError(_ mqtt.Client, msg mqtt.Message) {
	s.HandleError(msg.Payload())
}

// HandleFix decodes a JSON gps.Fix. A run of void fixes is reported once as
// CodePositionUnavailable.
func (s *MQTTSensor) HandleFix(payload []byte) {
	var f gps.Fix
	if err := json.Unmarshal(payload, &f); err != nil {
		s.log.Warn("GPS payload unmarshal error", "error", err)
		return
	}
	if !f.Valid() {
		if s.emitNoFix() {
			s.log.Warn("GPS receiver has no fix")
		}
		return
	}
	now := s.clock.Now()
	s.emitUpdate(UpdateFromFix(f, now), now)
}

// HandleError decodes a JSON sensor error and passes it on.
func (s *MQTTSensor) HandleError(payload []byte) {
	var e tracking.SensorError
	if err := json.Unmarshal(payload, &e); err != nil {
		s.log.Warn("GPS error payload unmarshal error", "error", err)
		return
	}
	s.emitError(e.Code, e.Message)
}
