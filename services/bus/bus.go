// Package bus publishes application events: in process by default, on NATS when configured.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type (
	Handler func(topic string, payload []byte)

	Bus interface {
		Publish(ctx context.Context, topic string, payload []byte) error
		Subscribe(topic string, h Handler) (unsubscribe func(), err error)
		Close() error
	}
)

// New connects to NATS when conf.NatsURL is set and falls back to the local bus otherwise.
func New(conf *core.Config, logger core.Logger) Bus {
	if conf.NatsURL == "" {
		return NewLocal()
	}
	b, err := NewNats(conf.NatsURL, conf.AppName)
	if err != nil {
		logger.Warn(fmt.Sprintf("connecting to NATS at %s, falling back to the local bus: %v", conf.NatsURL, err), err)
		return NewLocal()
	}
	return b
}

// Local delivers events synchronously to the subscribers of this process.
type Local struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
}

var _ Bus = (*Local)(nil)

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]Handler)}
}

func (b *Local) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

func (b *Local) Subscribe(topic string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}, nil
}

func (b *Local) Close() error { return nil }

// Nats publishes on a NATS server.
type Nats struct {
	conn *nats.Conn
}

var _ Bus = (*Nats)(nil)

func NewNats(url, name string) (*Nats, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to NATS")
	}
	return &Nats{conn: conn}, nil
}

func (b *Nats) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(topic, payload); err != nil {
		return errors.Wrapf(err, "publishing on %s", topic)
	}
	return nil
}

func (b *Nats) Subscribe(topic string, h Handler) (func(), error) {
	sub, err := b.conn.Subscribe(topic, func(msg *nats.Msg) { h(msg.Subject, msg.Data) })
	if err != nil {
		return nil, errors.Wrapf(err, "subscribing to %s", topic)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close flushes the pending messages and closes the connection.
func (b *Nats) Close() error {
	err := b.conn.Drain()
	return errors.Wrap(err, "draining NATS connection")
}
