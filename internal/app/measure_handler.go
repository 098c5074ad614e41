// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"io"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/relabs-tech/situation_viewer/internal/measure"
)

const maxMeasureBody = 1 << 20

// handleMeasure labels a GeoJSON geometry in WGS84: a point with its HDMS
// coordinates, a line with its length and a polygon with its area, or with
// its radius when ?circle=true.
func handleMeasure(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxMeasureBody))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		http.Error(w, "invalid GeoJSON geometry: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp := MeasureResponse{Type: g.Type}
	switch geom := g.Coordinates.(type) {
	case orb.Point:
		resp.Label = measure.FormatHDMS(geom)
	case orb.LineString:
		resp.Label = measure.FormatLength(geom)
	case orb.Polygon:
		if r.URL.Query().Get("circle") == "true" {
			resp.Label = measure.FormatRadius(geom)
		} else {
			resp.Label = measure.FormatArea(geom)
		}
	default:
		http.Error(w, "unsupported geometry type "+g.Type, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
