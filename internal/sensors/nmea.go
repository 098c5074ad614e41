// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/situation_viewer/internal/gps"
	"github.com/relabs-tech/situation_viewer/internal/heading"
	"github.com/relabs-tech/situation_viewer/internal/timeutil"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// OpenSerial opens the GPS receiver's serial port (8N1).
// Typical names are /dev/serial0, /dev/ttyAMA0 and /dev/ttyUSB0.
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open GPS serial port %s: %w", portName, err)
	}
	return port, nil
}

// NMEASensor reads NMEA sentences from a GPS receiver and reports RMC fixes
// in Web Mercator coordinates.
type NMEASensor struct {
	dispatcher
	r       io.Reader
	clock   timeutil.Clock
	timeout time.Duration
	log     *slog.Logger
}

// NewNMEASensor creates a sensor reading sentences from r. A positive
// timeout raises CodeTimeout when no fix arrives for that long.
func NewNMEASensor(r io.Reader, clock timeutil.Clock, timeout time.Duration, log *slog.Logger) *NMEASensor {
	if log == nil {
		log = slog.Default()
	}
	return &NMEASensor{
		r:       r,
		clock:   clock,
		timeout: timeout,
		log:     log.With("component", "gps"),
	}
}

// SetTracking turns fix delivery on or off.
func (s *NMEASensor) SetTracking(enabled bool) {
	if s.setTracking(enabled, s.clock.Now()) {
		s.log.Debug("tracking toggled", "enabled", enabled)
	}
}

// Run reads sentences until ctx is done or the reader fails. The reader is
// not closed.
func (s *NMEASensor) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(s.r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	var tick <-chan time.Time
	if s.timeout > 0 {
		ticker := s.clock.NewTicker(s.timeout / 2)
		defer ticker.Stop()
		tick = ticker.C()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			s.HandleLine(line)
		case now := <-tick:
			s.checkTimeout(now, s.timeout)
		case err := <-readErr:
			s.log.Error("GPS read error", "error", err)
			s.emitError(tracking.CodePositionUnavailable, "GPS read error: "+err.Error())
			return fmt.Errorf("read GPS: %w", err)
		}
	}
}

// HandleLine decodes one NMEA sentence. Sentences other than RMC and
// malformed lines are skipped.
func (s *NMEASensor) HandleLine(line string) {
	fix, err := gps.ParseSentence(line)
	switch {
	case err == nil:
	case errors.Is(err, gps.ErrNoFix):
		if s.emitNoFix() {
			s.log.Warn("GPS receiver has no fix")
		}
		return
	case errors.Is(err, gps.ErrUnsupported):
		return
	default:
		// noisy receivers emit partial sentences
		s.log.Debug("NMEA parse error", "error", err, "line", line)
		return
	}

	now := s.clock.Now()
	s.emitUpdate(UpdateFromFix(fix, now), now)
}

// UpdateFromFix converts a GPS fix received at t into a sensor update.
func UpdateFromFix(fix gps.Fix, t time.Time) tracking.Update {
	p := fix.Mercator()
	u := tracking.Update{
		X:           p.X(),
		Y:           p.Y(),
		Speed:       fix.SpeedMPS(),
		HasSpeed:    true,
		TimestampMs: t.UnixMilli(),
	}
	if fix.HasCourse {
		u.Heading = heading.DegToRad(fix.CourseDeg)
		u.HasHeading = true
	}
	return u
}
