package eventsvc

import (
	"context"
	"sync"

	"github.com/trezcool/cts/core"
)

// NoopPublisher is used when NATS is not configured.
type NoopPublisher struct{}

var _ core.EventPublisher = (*NoopPublisher)(nil)

func (*NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (*NoopPublisher) Close() error                                       { return nil }

// Event is a published event kept by a Recorder.
type Event struct {
	Topic string
	Data  interface{}
}

// Recorder keeps published events in memory, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ core.EventPublisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, topic string, event interface{}) error {
	r.mu.Lock()
	r.events = append(r.events, Event{Topic: topic, Data: event})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Topics returns the topics of the recorded events, in order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]string, 0, len(r.events))
	for _, e := range r.events {
		topics = append(topics, e.Topic)
	}
	return topics
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
