package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/predefine/core/events"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	published []message
	err       error
	drained   bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, message{subject, data})
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func TestPublisher_Subject(t *testing.T) {
	p := NewPublisher(&fakeConn{}, "predefine.", zerolog.Nop())

	assert.Equal(t, "predefine.currencies.created", p.Subject(events.Event{Name: events.Created, Bucket: "currencies"}))
	assert.Equal(t, "predefine.deleted", p.Subject(events.Event{Name: events.Deleted}))

	bare := NewPublisher(&fakeConn{}, "", zerolog.Nop())
	assert.Equal(t, "units.updated", bare.Subject(events.Event{Name: events.Updated, Bucket: "units"}))
}

func TestPublisher_PublishFromBus(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "predefine", zerolog.Nop())

	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe("predefine.*", p.Publish)

	at := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	bus.Publish(context.Background(), events.Event{
		Name:      events.Created,
		Namespace: "Unit",
		Bucket:    "units",
		ID:        "p1",
		At:        at,
	})

	require.Len(t, conn.published, 1)
	assert.Equal(t, "predefine.units.created", conn.published[0].subject)

	var got events.Event
	require.NoError(t, json.Unmarshal(conn.published[0].data, &got))
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "Unit", got.Namespace)
	assert.Equal(t, at, got.At)
}

func TestPublisher_Errors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := NewPublisher(conn, "predefine", zerolog.Nop())

	err := p.Publish(context.Background(), events.Event{Name: events.Created})
	assert.ErrorIs(t, err, conn.err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, events.Event{Name: events.Created}), context.Canceled)
}

func TestPublisher_Close(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, NewPublisher(conn, "predefine", zerolog.Nop()).Close())
	assert.True(t, conn.drained)
}
