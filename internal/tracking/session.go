// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package tracking

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/relabs-tech/situation_viewer/internal/heading"
	"github.com/relabs-tech/situation_viewer/internal/track"
)

// DefaultLagFactor scales DeltaMean into the playback delay of the marker.
const DefaultLagFactor = 1.5

// ErrClosed is returned by Start on a closed session.
var ErrClosed = errors.New("tracking session closed")

// Options configures a Session. Zero values select the defaults.
type Options struct {
	InitialDeltaMeanMs float64
	LagFactor          float64
	Logger             *slog.Logger
	// OnError, if set, is called for every sensor error while tracking.
	OnError func(SensorError)
}

// Frame is the marker state for one rendered frame.
type Frame struct {
	track.Fix
	Variant ImageVariant `json:"variant"`
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID          string         `json:"id"`
	State       State          `json:"state"`
	DeltaMeanMs float64        `json:"delta_mean_ms"`
	WatermarkMs int64          `json:"watermark_ms"`
	Variant     ImageVariant   `json:"variant"`
	Samples     []track.Sample `json:"samples"`
}

// Session owns the trajectory of one tracked sensor. Sensor callbacks and
// renderer queries may come from different goroutines; a single mutex
// serialises them.
type Session struct {
	sensor    Sensor
	lagFactor float64
	onError   func(SensorError)
	log       *slog.Logger

	mu           sync.Mutex
	id           string
	state        State
	closed       bool
	buf          *track.Buffer
	interval     *track.IntervalEstimator
	unwrap       heading.Unwrapper
	interp       track.Interpolator
	variant      ImageVariant
	watermark    int64
	hasWatermark bool
	errs         chan SensorError
}

// NewSession creates a stopped session and registers its handlers on sensor.
func NewSession(sensor Sensor, opts Options) *Session {
	if opts.LagFactor <= 0 {
		opts.LagFactor = DefaultLagFactor
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		sensor:    sensor,
		lagFactor: opts.LagFactor,
		onError:   opts.OnError,
		log:       opts.Logger.With("component", "tracking"),
		state:     StateStopped,
		buf:       track.NewBuffer(track.DefaultCapacity),
		interval:  track.NewIntervalEstimator(opts.InitialDeltaMeanMs),
		variant:   VariantPlain,
		errs:      make(chan SensorError, 16),
	}

	sensor.OnUpdate(s.OnSample)
	sensor.OnError(s.OnError)
	return s
}

// Start clears the trajectory and turns the sensor on. Starting a session
// that is already tracking does nothing.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateTracking {
		s.mu.Unlock()
		return nil
	}
	s.id = uuid.NewString()
	s.buf.Reset()
	s.interval.Reset()
	s.unwrap.Reset()
	s.interp.Reset()
	s.variant = VariantPlain
	s.watermark, s.hasWatermark = 0, false
	s.state = StateTracking
	id := s.id
	s.mu.Unlock()

	s.log.Info("tracking started", "session", id)
	s.sensor.SetTracking(true)
	return nil
}

// Stop turns the sensor off. The trajectory is kept until the next Start.
// Stop may be called at any time and any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateTracking {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	id := s.id
	n := s.buf.Len()
	s.mu.Unlock()

	s.sensor.SetTracking(false)
	s.log.Info("tracking stopped", "session", id, "samples", n)
}

// Run starts tracking and blocks until ctx is done. The sensor is turned
// off on return.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()
	<-ctx.Done()
	return nil
}

// Close stops the session for good and releases the error channel.
func (s *Session) Close() {
	s.Stop()

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.errs)
	}
	s.mu.Unlock()

	s.sensor.SetTracking(false)
}

// OnSample handles a sensor fix. It is ignored unless the session is
// tracking. Fixes with invalid coordinates or a timestamp not newer than the
// last accepted fix are dropped.
func (s *Session) OnSample(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateTracking {
		return
	}
	if !finite(u.X) || !finite(u.Y) {
		s.log.Warn("dropping fix with invalid coordinates", "session", s.id, "x", u.X, "y", u.Y)
		return
	}
	if !s.buf.Accepts(u.TimestampMs) {
		s.log.Debug("dropping out-of-order fix", "session", s.id, "t_ms", u.TimestampMs)
		return
	}

	hdg, hasHeading := s.unwrap.Next(u.Heading, u.HasHeading && finite(u.Heading))
	sample := track.Sample{
		X:           u.X,
		Y:           u.Y,
		Heading:     hdg,
		HasHeading:  hasHeading,
		TimestampMs: u.TimestampMs,
	}
	if err := s.buf.Append(sample); err != nil {
		s.log.Debug("dropping fix", "session", s.id, "error", err)
		return
	}

	s.interval.Recompute(s.buf.Samples())
	s.variant = variantFor(hasHeading, hdg, u.HasSpeed && finite(u.Speed), u.Speed)
}

// OnError passes a sensor error on to the error channel and the OnError
// callback. The trajectory and state are left untouched.
func (s *Session) OnError(code int, message string) {
	s.mu.Lock()
	if s.state != StateTracking {
		s.mu.Unlock()
		return
	}
	serr := SensorError{Code: code, Message: message}
	id := s.id
	select {
	case s.errs <- serr:
	default:
		s.log.Warn("error channel full, dropping sensor error", "session", id, "code", code)
	}
	s.mu.Unlock()

	s.log.Warn("sensor error", "session", id, "code", code, "message", message)
	if s.onError != nil {
		s.onError(serr)
	}
}

// Errors returns the channel of sensor errors. It is closed by Close.
func (s *Session) Errors() <-chan SensorError {
	return s.errs
}

// PositionAt returns the marker position for a frame rendered at nowMs.
func (s *Session) PositionAt(nowMs int64) (track.Point, bool) {
	f, ok := s.FrameAt(nowMs)
	return f.Point, ok
}

// FrameAt returns the marker state for a frame rendered at nowMs. The query
// time trails nowMs by DeltaMean × lag factor and never moves backwards.
func (s *Session) FrameAt(nowMs int64) (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := int64(math.Round(float64(nowMs) - s.interval.Mean()*s.lagFactor))
	if s.hasWatermark && q < s.watermark {
		q = s.watermark
	}
	s.watermark, s.hasWatermark = q, true

	fix, ok := s.interp.At(q, s.buf.Samples())
	if !ok {
		return Frame{}, false
	}
	return Frame{Fix: fix, Variant: s.variant}, true
}

// ImageVariant returns the marker glyph for the latest fix.
func (s *Session) ImageVariant() ImageVariant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variant
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DeltaMean returns the current sampling period estimate in ms.
func (s *Session) DeltaMean() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval.Mean()
}

// CurrentPosition returns the sensor's last known position.
func (s *Session) CurrentPosition() (track.Point, bool) {
	return s.sensor.CurrentPosition()
}

// Trajectory returns the path through the retained samples.
func (s *Session) Trajectory() orb.LineString {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.LineString()
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:          s.id,
		State:       s.state,
		DeltaMeanMs: s.interval.Mean(),
		WatermarkMs: s.watermark,
		Variant:     s.variant,
		Samples:     s.buf.Samples(),
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
