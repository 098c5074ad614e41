package tracking

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/situation_viewer/internal/heading"
	"github.com/relabs-tech/situation_viewer/internal/track"
)

type fakeSensor struct {
	mu       sync.Mutex
	onUpdate func(Update)
	onError  func(int, string)
	tracking bool
	toggles  []bool
	current  track.Point
	haveCur  bool
}

func (f *fakeSensor) OnUpdate(fn func(Update))             { f.onUpdate = fn }
func (f *fakeSensor) OnError(fn func(int, string))         { f.onError = fn }
func (f *fakeSensor) CurrentPosition() (track.Point, bool) { return f.current, f.haveCur }

func (f *fakeSensor) SetTracking(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = enabled
	f.toggles = append(f.toggles, enabled)
}

func (f *fakeSensor) isTracking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracking
}

func (f *fakeSensor) emit(x, y float64, t int64) {
	f.onUpdate(Update{X: x, Y: y, TimestampMs: t})
}

func newTestSession(t *testing.T) (*Session, *fakeSensor) {
	t.Helper()
	sensor := &fakeSensor{}
	s := NewSession(sensor, Options{})
	t.Cleanup(s.Close)
	return s, sensor
}

func TestSession_StartStopLifecycle(t *testing.T) {
	s, sensor := newTestSession(t)
	assert.Equal(t, StateStopped, s.State())

	require.NoError(t, s.Start())
	assert.Equal(t, StateTracking, s.State())
	assert.True(t, sensor.isTracking())
	first := s.Snapshot().ID
	assert.NotEmpty(t, first)

	// Idempotent start keeps the same run.
	require.NoError(t, s.Start())
	assert.Equal(t, first, s.Snapshot().ID)

	s.Stop()
	s.Stop()
	assert.Equal(t, StateStopped, s.State())
	assert.False(t, sensor.isTracking())
	assert.Equal(t, []bool{true, false}, sensor.toggles)
}

func TestSession_IgnoresSamplesWhileStopped(t *testing.T) {
	s, sensor := newTestSession(t)
	sensor.emit(1, 1, 1)
	assert.Empty(t, s.Snapshot().Samples)

	require.NoError(t, s.Start())
	sensor.emit(1, 1, 1)
	s.Stop()
	sensor.emit(2, 2, 2)

	samples := s.Snapshot().Samples
	require.Len(t, samples, 1, "trajectory is kept after stop")
	assert.Equal(t, int64(1), samples[0].TimestampMs)

	require.NoError(t, s.Start())
	assert.Empty(t, s.Snapshot().Samples, "start clears the trajectory")
}

func TestSession_InterpolationScenario(t *testing.T) {
	s, sensor := newTestSession(t)
	require.NoError(t, s.Start())

	sensor.onUpdate(Update{X: 0, Y: 0, Heading: 0, HasHeading: true, TimestampMs: 0})
	sensor.onUpdate(Update{X: 10, Y: 0, Heading: 0, HasHeading: true, TimestampMs: 1000})
	assert.Equal(t, 1000.0, s.DeltaMean())

	// Query time is now - 1000*1.5.
	p, ok := s.PositionAt(2000)
	require.True(t, ok)
	assert.InDelta(t, 5.0, p.X, 1e-9)
	assert.InDelta(t, 0.0, p.Y, 1e-9)

	_, ok = s.PositionAt(3000)
	assert.False(t, ok, "query time 1500 is past the last sample")
}

func TestSession_WatermarkNeverRewinds(t *testing.T) {
	s, sensor := newTestSession(t)
	require.NoError(t, s.Start())
	sensor.emit(0, 0, 0)
	sensor.emit(10, 0, 1000)

	p1, ok := s.PositionAt(2000) // q = 500
	require.True(t, ok)
	assert.Equal(t, int64(500), s.Snapshot().WatermarkMs)

	// Clock jitter: an earlier frame time must not move the marker back.
	p2, ok := s.PositionAt(1800)
	require.True(t, ok)
	assert.Equal(t, p1, p2)
	assert.Equal(t, int64(500), s.Snapshot().WatermarkMs)

	p3, ok := s.PositionAt(2100) // q = 600
	require.True(t, ok)
	assert.Greater(t, p3.X, p2.X)
}

func TestSession_RejectsOutOfOrderSamples(t *testing.T) {
	s, sensor := newTestSession(t)
	require.NoError(t, s.Start())
	sensor.emit(0, 0, 1000)
	sensor.emit(1, 0, 2000)
	sensor.emit(5, 5, 2000)
	sensor.emit(5, 5, 1500)

	snap := s.Snapshot()
	require.Len(t, snap.Samples, 2)
	assert.Equal(t, int64(2000), snap.Samples[1].TimestampMs)
	assert.Equal(t, 1.0, snap.Samples[1].X)
	assert.Equal(t, 1000.0, snap.DeltaMeanMs)
}

func TestSession_DropsInvalidCoordinates(t *testing.T) {
	s, sensor := newTestSession(t)
	require.NoError(t, s.Start())
	sensor.emit(math.NaN(), 0, 1)
	sensor.emit(0, math.Inf(1), 2)
	assert.Empty(t, s.Snapshot().Samples)
}

func TestSession_HeadingUnwrapAndVariant(t *testing.T) {
	s, sensor := newTestSession(t)
	require.NoError(t, s.Start())

	sensor.onUpdate(Update{Heading: heading.DegToRad(350), HasHeading: true, Speed: 3, HasSpeed: true, TimestampMs: 1})
	assert.Equal(t, VariantHeading, s.ImageVariant())

	sensor.onUpdate(Update{Heading: heading.DegToRad(10), HasHeading: true, Speed: 3, HasSpeed: true, TimestampMs: 2})
	samples := s.Snapshot().Samples
	require.Len(t, samples, 2)
	assert.InDelta(t, 350.0, heading.RadToDeg(samples[0].Heading), 1e-6)
	assert.InDelta(t, 370.0, heading.RadToDeg(samples[1].Heading), 1e-6)

	// No speed: plain marker.
	sensor.onUpdate(Update{Heading: heading.DegToRad(20), HasHeading: true, TimestampMs: 3})
	assert.Equal(t, VariantPlain, s.ImageVariant())

	// Missing heading resets unwrapping for the next sample.
	sensor.onUpdate(Update{Speed: 3, HasSpeed: true, TimestampMs: 4})
	assert.Equal(t, VariantPlain, s.ImageVariant())
	sensor.onUpdate(Update{Heading: heading.DegToRad(10), HasHeading: true, Speed: 3, HasSpeed: true, TimestampMs: 5})

	samples = s.Snapshot().Samples
	require.Len(t, samples, 5)
	assert.False(t, samples[3].HasHeading)
	assert.InDelta(t, 10.0, heading.RadToDeg(samples[4].Heading), 1e-6)
}

func TestSession_CapacityBound(t *testing.T) {
	s, sensor := newTestSession(t)
	require.NoError(t, s.Start())
	for i := int64(1); i <= 25; i++ {
		sensor.emit(float64(i), 0, i*100)
	}

	samples := s.Snapshot().Samples
	require.Len(t, samples, track.DefaultCapacity)
	assert.Equal(t, int64(600), samples[0].TimestampMs)
	assert.Equal(t, int64(2500), samples[19].TimestampMs)
	assert.Len(t, s.Trajectory(), track.DefaultCapacity)
}

func TestSession_ErrorsAreSurfaced(t *testing.T) {
	var got []SensorError
	sensor := &fakeSensor{}
	s := NewSession(sensor, Options{OnError: func(e SensorError) { got = append(got, e) }})
	defer s.Close()

	sensor.onError(CodeTimeout, "ignored while stopped")
	assert.Empty(t, got)

	require.NoError(t, s.Start())
	sensor.emit(1, 1, 1)
	sensor.onError(CodePositionUnavailable, "no fix")

	require.Len(t, got, 1)
	assert.Equal(t, SensorError{Code: 2, Message: "no fix"}, got[0])
	assert.Contains(t, got[0].Error(), "no fix")

	select {
	case e := <-s.Errors():
		assert.Equal(t, CodePositionUnavailable, e.Code)
	default:
		t.Fatal("expected error on channel")
	}

	assert.Equal(t, StateTracking, s.State(), "errors do not stop tracking")
	assert.Len(t, s.Snapshot().Samples, 1, "errors keep the trajectory")
}

func TestSession_RunTurnsSensorOff(t *testing.T) {
	s, sensor := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, sensor.isTracking, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, sensor.isTracking())
	assert.Equal(t, StateStopped, s.State())
}

func TestSession_CloseIsFinal(t *testing.T) {
	sensor := &fakeSensor{}
	s := NewSession(sensor, Options{})
	require.NoError(t, s.Start())
	s.Close()
	s.Close()

	assert.False(t, sensor.isTracking())
	assert.ErrorIs(t, s.Start(), ErrClosed)
	_, open := <-s.Errors()
	assert.False(t, open)
}

func TestSession_CustomOptions(t *testing.T) {
	sensor := &fakeSensor{current: track.Point{X: 4, Y: 2}, haveCur: true}
	s := NewSession(sensor, Options{InitialDeltaMeanMs: 100, LagFactor: 2})
	defer s.Close()

	require.NoError(t, s.Start())
	assert.Equal(t, 100.0, s.DeltaMean())
	sensor.emit(0, 0, 0)

	// q = 200 - 100*2 = 0
	p, ok := s.PositionAt(200)
	require.True(t, ok)
	assert.Equal(t, track.Point{}, p)

	cur, ok := s.CurrentPosition()
	require.True(t, ok)
	assert.Equal(t, track.Point{X: 4, Y: 2}, cur)
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s, sensor := newTestSession(t)
	require.NoError(t, s.Start())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := int64(0); i < 500; i++ {
			sensor.emit(float64(i), float64(i), i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := int64(0); i < 500; i++ {
			if p, ok := s.PositionAt(i + 750); ok {
				assert.Equal(t, p.X, p.Y)
			}
		}
	}()
	wg.Wait()
}
