// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package measure formats geodesic lengths, areas and coordinate labels for
// display next to the map.
package measure

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// ToLonLat converts a Web Mercator point to WGS84.
func ToLonLat(p orb.Point) orb.Point {
	return project.Point(p, project.Mercator.ToWGS84)
}

// LineToLonLat converts a Web Mercator line to WGS84 without modifying ls.
func LineToLonLat(ls orb.LineString) orb.LineString {
	return project.LineString(ls.Clone(), project.Mercator.ToWGS84)
}

// FormatLength returns the geodesic length of a WGS84 line, in metres up to
// 100 m and in kilometres above, rounded to two decimals.
func FormatLength(ls orb.LineString) string {
	length := geo.Length(ls)
	if length > 100 {
		return formatNumber(length/1000) + " km"
	}
	return formatNumber(length) + " m"
}

// FormatArea returns the geodesic area of a WGS84 polygon, in square metres
// up to 10000 m² and in square kilometres above.
func FormatArea(poly orb.Polygon) string {
	area := math.Abs(geo.Area(poly))
	if area > 10000 {
		return formatNumber(area/1000000) + " km²"
	}
	return formatNumber(area) + " m²"
}

// FormatRadius returns the distance from the centre of a circle-like WGS84
// polygon to its last vertex.
func FormatRadius(poly orb.Polygon) string {
	if len(poly) == 0 || len(poly[0]) == 0 {
		return "Radius " + FormatLength(nil)
	}
	center, _ := planar.CentroidArea(poly)
	ring := poly[0]
	return "Radius " + FormatLength(orb.LineString{center, ring[len(ring)-1]})
}

// FormatHDMS returns a "DD° MM′ SS″ N DDD° MM′ SS″ E" label for a WGS84
// point, latitude first.
func FormatHDMS(p orb.Point) string {
	return degreesToHDMS("NS", p.Lat()) + " " + degreesToHDMS("EW", p.Lon())
}

func degreesToHDMS(hemispheres string, degrees float64) string {
	normalized := math.Mod(math.Mod(degrees+180, 360)+360, 360) - 180
	x := math.Abs(3600 * normalized)

	deg := math.Floor(x / 3600)
	mins := math.Floor((x - deg*3600) / 60)
	secs := math.Round(x - deg*3600 - mins*60)
	if secs >= 60 {
		secs = 0
		mins++
	}
	if mins >= 60 {
		mins = 0
		deg++
	}

	label := fmt.Sprintf("%d° %02d′ %02d″", int(deg), int(mins), int(secs))
	switch {
	case normalized < 0:
		label += " " + hemispheres[1:2]
	case normalized > 0:
		label += " " + hemispheres[0:1]
	}
	return label
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
