// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/relabs-tech/situation_viewer/internal/heading"
	"github.com/relabs-tech/situation_viewer/internal/timeutil"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// MockConfig describes the synthetic track.
type MockConfig struct {
	Center   orb.Point // WGS84 lon/lat
	RadiusM  float64
	Period   time.Duration // one lap
	Interval time.Duration // between fixes
	Jitter   time.Duration // max delivery delay added to each fix
}

// MockSensor drives clockwise around a circle, one fix per interval.
type MockSensor struct {
	dispatcher
	cfg    MockConfig
	center orb.Point // Web Mercator
	scale  float64   // Mercator units per ground metre at the centre
	clock  timeutil.Clock
	start  time.Time
	rng    *rand.Rand
	log    *slog.Logger
}

// NewMockSensor creates a mock sensor. Laps are counted from the clock's
// current time.
func NewMockSensor(cfg MockConfig, clock timeutil.Clock, log *slog.Logger) *MockSensor {
	if cfg.Period <= 0 {
		cfg.Period = 2 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	now := clock.Now()
	return &MockSensor{
		cfg:    cfg,
		center: project.Point(cfg.Center, project.WGS84.ToMercator),
		scale:  1 / math.Cos(heading.DegToRad(cfg.Center.Lat())),
		clock:  clock,
		start:  now,
		rng:    rand.New(rand.NewPCG(uint64(now.UnixNano()), 0x9e3779b97f4a7c15)),
		log:    log.With("component", "mock-sensor"),
	}
}

// SetTracking turns fix delivery on or off.
func (s *MockSensor) SetTracking(enabled bool) {
	if s.setTracking(enabled, s.clock.Now()) {
		s.log.Debug("tracking toggled", "enabled", enabled)
	}
}

// Next returns the fix for time t. Heading follows the direction of travel,
// clockwise from north.
func (s *MockSensor) Next(t time.Time) tracking.Update {
	elapsed := t.Sub(s.start).Seconds()
	period := s.cfg.Period.Seconds()
	// angle from north, increasing clockwise
	theta := 2 * math.Pi * math.Mod(elapsed, period) / period

	r := s.cfg.RadiusM * s.scale
	return tracking.Update{
		X:           s.center.X() + r*math.Sin(theta),
		Y:           s.center.Y() + r*math.Cos(theta),
		Heading:     heading.Mod2Pi(theta + math.Pi/2),
		HasHeading:  s.cfg.RadiusM > 0,
		Speed:       2 * math.Pi * s.cfg.RadiusM / period,
		HasSpeed:    true,
		TimestampMs: t.UnixMilli(),
	}
}

// Run emits a fix every interval until ctx is done.
func (s *MockSensor) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			s.emit(now)
		}
	}
}

func (s *MockSensor) emit(now time.Time) {
	u := s.Next(now)
	if s.cfg.Jitter > 0 {
		// fix time trails the tick by a random delivery delay
		delay := time.Duration(s.rng.Int64N(int64(s.cfg.Jitter) + 1))
		u.TimestampMs = now.Add(-delay).UnixMilli()
	}
	s.emitUpdate(u, now)
}
