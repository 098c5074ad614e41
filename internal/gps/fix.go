// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// KnotsToMPS converts knots to metres per second.
const KnotsToMPS = 1852.0 / 3600.0

// ErrNoFix is returned for a sentence that carries no valid position.
var ErrNoFix = errors.New("gps: no valid fix")

// ErrUnsupported is returned for sentence types that are not decoded.
var ErrUnsupported = errors.New("gps: unsupported sentence")

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
	// HasCourse is false when the receiver left the course field empty.
	HasCourse bool `json:"has_course"`
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC
}

// SpeedMPS returns the speed over ground in m/s.
func (f Fix) SpeedMPS() float64 {
	return f.SpeedKnots * KnotsToMPS
}

// LonLat returns the fix as a WGS84 orb point (lon, lat order).
func (f Fix) LonLat() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// Mercator returns the fix projected to Web Mercator metres (EPSG:3857),
// the coordinate system of the map view.
func (f Fix) Mercator() orb.Point {
	return project.Point(f.LonLat(), project.WGS84.ToMercator)
}

// FromRMC builds a Fix from an RMC sentence.
func FromRMC(m nmea.RMC) Fix {
	return Fix{
		Time:       m.Time.String(),
		Date:       m.Date.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		SpeedKnots: m.Speed,
		CourseDeg:  m.Course,
		Validity:   m.Validity,
		HasCourse:  len(m.Fields) > 7 && m.Fields[7] != "",
	}
}

// ParseSentence decodes one NMEA line. Only RMC sentences produce a fix;
// other valid sentences return ErrUnsupported.
func ParseSentence(line string) (Fix, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, fmt.Errorf("gps: not an NMEA sentence: %q", line)
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, fmt.Errorf("gps: parse: %w", err)
	}

	if sentence.DataType() != nmea.TypeRMC {
		return Fix{}, ErrUnsupported
	}
	fix := FromRMC(sentence.(nmea.RMC))
	if !fix.Valid() {
		return fix, ErrNoFix
	}
	return fix, nil
}
