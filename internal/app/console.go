// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/relabs-tech/situation_viewer/internal/config"
	"github.com/relabs-tech/situation_viewer/internal/heading"
	"github.com/relabs-tech/situation_viewer/internal/timeutil"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// RunConsole tracks the configured sensor and prints the marker state to
// stdout every RENDER_INTERVAL_MS until ctx is done.
func RunConsole(ctx context.Context, cfg *config.Config) error {
	clock := timeutil.RealClock{}

	sensor, closeSensor, err := newSensor(cfg, cfg.MQTTClientIDConsole, clock)
	if err != nil {
		return err
	}
	defer closeSensor()

	session := newSession(cfg, sensor)
	defer session.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sensorErr := make(chan error, 1)
	go func() { sensorErr <- sensor.Run(ctx) }()

	if err := session.Start(); err != nil {
		return err
	}
	slog.Info("console: tracking", "source", cfg.SensorSource)

	interval := time.Duration(cfg.RenderIntervalMs) * time.Millisecond
	go printFrames(ctx, os.Stdout, session, clock, interval)

	select {
	case <-ctx.Done():
		slog.Info("console: shutting down")
		return nil
	case err := <-sensorErr:
		return err
	}
}

// printFrames writes one line per rendered frame and per sensor error.
func printFrames(ctx context.Context, w io.Writer, session *tracking.Session, clock timeutil.Clock, interval time.Duration) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	errs := session.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			frame, ok := session.FrameAt(now.UnixMilli())
			if !ok {
				continue
			}
			fmt.Fprintln(w, formatFrame(newMarker(frame), session.DeltaMean()))
		case serr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(w, "[ERR ]  code=%d %s\n", serr.Code, serr.Message)
		}
	}
}

func formatFrame(m Marker, deltaMeanMs float64) string {
	hdg := "   -  "
	if m.HasHeading {
		hdg = fmt.Sprintf("%6.1f", heading.RadToDeg(heading.Mod2Pi(m.Heading)))
	}
	return fmt.Sprintf(
		"[MARK]  t=%d lat=%.6f lon=%.6f hdg=%s° marker=%-7s dmean=%.0fms",
		m.TimestampMs, m.Lat, m.Lon, hdg, m.Variant, deltaMeanMs,
	)
}
