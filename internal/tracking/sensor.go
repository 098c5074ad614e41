// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"fmt"

	"github.com/relabs-tech/situation_viewer/internal/track"
)

// Sensor error codes, following the geolocation API convention.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// Update is one raw fix reported by a location sensor. Heading is in radians
// (not unwrapped), Speed in m/s. Optional fields are only meaningful when the
// matching Has flag is set.
type Update struct {
	X           float64
	Y           float64
	Heading     float64
	HasHeading  bool
	Speed       float64
	HasSpeed    bool
	TimestampMs int64
}

// Sensor is a location source driving a Session.
type Sensor interface {
	// OnUpdate registers the handler for new fixes.
	OnUpdate(fn func(Update))
	// OnError registers the handler for sensor failures.
	OnError(fn func(code int, message string))
	// SetTracking turns fix delivery on or off.
	SetTracking(enabled bool)
	// CurrentPosition returns the last known position, if any.
	CurrentPosition() (track.Point, bool)
}

// SensorError is a failure reported by the sensor. It is passed on unchanged.
type SensorError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e SensorError) Error() string {
	return fmt.Sprintf("sensor error %d: %s", e.Code, e.Message)
}
