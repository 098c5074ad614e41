// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/relabs-tech/situation_viewer/internal/config"
	"github.com/relabs-tech/situation_viewer/internal/gps"
	"github.com/relabs-tech/situation_viewer/internal/heading"
	"github.com/relabs-tech/situation_viewer/internal/sensors"
	"github.com/relabs-tech/situation_viewer/internal/timeutil"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// RunMockGPSProducer publishes the synthetic circular track to the GPS topic
// in the same format as RunGPSProducer.
func RunMockGPSProducer(ctx context.Context, cfg *config.Config) error {
	client, err := connectMQTT(cfg, cfg.MQTTClientIDMockGPS)
	if err != nil {
		return err
	}
	defer client.Disconnect(cfg.MQTTDisconnectQuiesceMs)

	src := sensors.NewMockSensor(mockConfig(cfg), timeutil.RealClock{}, slog.Default())
	src.OnUpdate(func(u tracking.Update) {
		payload, err := json.Marshal(fixFromUpdate(u))
		if err != nil {
			slog.Error("json marshal error", "error", err)
			return
		}
		token := client.Publish(cfg.TopicGPS, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			slog.Warn("mock GPS publish error", "error", token.Error())
		}
	})
	src.SetTracking(true)
	defer src.SetTracking(false)

	slog.Info("publishing mock GPS track", "topic", cfg.TopicGPS, "interval_ms", cfg.MockIntervalMs)
	return src.Run(ctx)
}

// fixFromUpdate turns a sensor update back into the GPS fix a receiver
// would have reported.
func fixFromUpdate(u tracking.Update) gps.Fix {
	ll := project.Point(orb.Point{u.X, u.Y}, project.Mercator.ToWGS84)
	t := time.UnixMilli(u.TimestampMs).UTC()
	f := gps.Fix{
		Time:       t.Format("15:04:05.000"),
		Date:       t.Format("02/01/06"),
		Latitude:   ll.Lat(),
		Longitude:  ll.Lon(),
		SpeedKnots: u.Speed / gps.KnotsToMPS,
		Validity:   "A",
	}
	if u.HasHeading {
		f.CourseDeg = heading.RadToDeg(heading.Mod2Pi(u.Heading))
		f.HasCourse = true
	}
	return f
}
