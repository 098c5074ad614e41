package app

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/situation_viewer/internal/track"
	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

// fakeSensor is a tracking.Sensor driven by the test.
type fakeSensor struct {
	mu       sync.Mutex
	onUpdate func(tracking.Update)
	onError  func(int, string)
	tracking bool
	pos      track.Point
	hasPos   bool
}

func (f *fakeSensor) OnUpdate(fn func(tracking.Update)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onUpdate = fn
}

func (f *fakeSensor) OnError(fn func(int, string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onError = fn
}

func (f *fakeSensor) SetTracking(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracking = enabled
}

func (f *fakeSensor) CurrentPosition() (track.Point, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, f.hasPos
}

func (f *fakeSensor) Tracking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tracking
}

func (f *fakeSensor) setPosition(p track.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos, f.hasPos = p, true
}

func (f *fakeSensor) push(x, y float64, tMs int64) {
	f.mu.Lock()
	fn := f.onUpdate
	f.mu.Unlock()
	fn(tracking.Update{X: x, Y: y, TimestampMs: tMs})
}

func (f *fakeSensor) fail(code int, message string) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(code, message)
}

// endedSensor is a sensor whose read loop ends at once, like a GPS stream
// that hits EOF.
type endedSensor struct {
	*fakeSensor
	ran chan struct{}
}

func (s *endedSensor) Run(context.Context) error {
	close(s.ran)
	return io.EOF
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{}
}

func (p *fakePublisher) on(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}
