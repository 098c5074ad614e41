package sensors

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/situation_viewer/internal/tracking"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// recorder collects what a sensor delivers.
type recorder struct {
	mu      sync.Mutex
	updates []tracking.Update
	errs    []tracking.SensorError
}

type sensor interface {
	OnUpdate(fn func(tracking.Update))
	OnError(fn func(code int, message string))
}

func record(s sensor) *recorder {
	r := &recorder{}
	s.OnUpdate(func(u tracking.Update) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.updates = append(r.updates, u)
	})
	s.OnError(func(code int, message string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.errs = append(r.errs, tracking.SensorError{Code: code, Message: message})
	})
	return r
}

func (r *recorder) Updates() []tracking.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracking.Update(nil), r.updates...)
}

func (r *recorder) Errors() []tracking.SensorError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tracking.SensorError(nil), r.errs...)
}

func (r *recorder) countCode(code int) int {
	n := 0
	for _, e := range r.Errors() {
		if e.Code == code {
			n++
		}
	}
	return n
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

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	subscribeErr error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return &fakeToken{err: f.subscribeErr}
	}
	f.handlers[topic] = callback
	return &fakeToken{}
}

func (f *fakeSubscriber) Unsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	f.unsubscribed = append(f.unsubscribed, topics...)
	return &fakeToken{}
}

// publish delivers payload to the handler subscribed to topic, if any.
func (f *fakeSubscriber) publish(topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(nil, fakeMessage{topic: topic, payload: payload})
	return true
}
