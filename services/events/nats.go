package eventsvc

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
)

// NATSPublisher publishes workflow events as JSON to the NATS subject named after their topic.
type NATSPublisher struct {
	conn *nats.Conn
}

var _ core.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name("cts-api")}, opts...)...)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to NATS at %s", url)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshaling event")
	}
	return p.conn.Publish(topic, data)
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.Drain()
	if err != nil {
		p.conn.Close()
	}
	return err
}

// New returns a NATS publisher when `url` is set, a NoopPublisher otherwise.
func New(url string) (core.EventPublisher, error) {
	if url == "" {
		return new(NoopPublisher), nil
	}
	return NewNATSPublisher(url)
}
