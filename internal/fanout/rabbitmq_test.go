package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

type fakeChannel struct {
	closed     bool
	publishErr error
	published  []amqp.Publishing
	keys       []string
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) IsClosed() bool { return c.closed }

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConn struct{ closed bool }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeBroker struct {
	dials    int
	dialErr  error
	channels []*fakeChannel
	conns    []*fakeConn
}

func (b *fakeBroker) dial() (channel, io.Closer, error) {
	b.dials++
	if b.dialErr != nil {
		return nil, nil, b.dialErr
	}
	ch, conn := &fakeChannel{}, &fakeConn{}
	b.channels = append(b.channels, ch)
	b.conns = append(b.conns, conn)
	return ch, conn, nil
}

func approvedNote() model.Notification {
	return model.Notification{
		ID:          "n-1",
		RecipientID: "org-1",
		Type:        model.NotifyEventApproved,
		Payload:     map[string]string{"event_id": "ev-1"},
	}
}

func TestRabbitPublisherDeliver(t *testing.T) {
	broker := &fakeBroker{}
	p, err := newRabbitPublisher(broker.dial)
	require.NoError(t, err)

	require.NoError(t, p.Deliver(context.Background(), approvedNote()))
	require.Len(t, broker.channels[0].published, 1)

	msg := broker.channels[0].published[0]
	assert.Equal(t, "notifications/notification.event_approved", broker.channels[0].keys[0])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "n-1", msg.MessageId)

	var body Message
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "org-1", body.RecipientID)
	assert.Equal(t, "ev-1", body.Payload["event_id"])
}

func TestRabbitPublisherRedials(t *testing.T) {
	t.Run("after the broker closed the channel", func(t *testing.T) {
		broker := &fakeBroker{}
		p, err := newRabbitPublisher(broker.dial)
		require.NoError(t, err)

		broker.channels[0].closed = true
		require.NoError(t, p.Deliver(context.Background(), approvedNote()))

		assert.Equal(t, 2, broker.dials)
		assert.True(t, broker.conns[0].closed)
		assert.Len(t, broker.channels[1].published, 1)
	})

	t.Run("after a failed publish", func(t *testing.T) {
		broker := &fakeBroker{}
		p, err := newRabbitPublisher(broker.dial)
		require.NoError(t, err)

		broker.channels[0].publishErr = amqp.ErrClosed
		err = p.Deliver(context.Background(), approvedNote())
		require.ErrorIs(t, err, amqp.ErrClosed)

		require.NoError(t, p.Deliver(context.Background(), approvedNote()))
		assert.Equal(t, 2, broker.dials)
		assert.Len(t, broker.channels[1].published, 1)
	})

	t.Run("broker still down", func(t *testing.T) {
		broker := &fakeBroker{}
		p, err := newRabbitPublisher(broker.dial)
		require.NoError(t, err)

		broker.channels[0].closed = true
		broker.dialErr = errors.New("connection refused")
		assert.Error(t, p.Deliver(context.Background(), approvedNote()))

		broker.dialErr = nil
		require.NoError(t, p.Deliver(context.Background(), approvedNote()))
		assert.Equal(t, 3, broker.dials)
	})
}

func TestRabbitPublisherClose(t *testing.T) {
	broker := &fakeBroker{}
	p, err := newRabbitPublisher(broker.dial)
	require.NoError(t, err)

	p.Close()
	assert.True(t, broker.conns[0].closed)
	assert.Error(t, p.Deliver(context.Background(), approvedNote()))
	assert.Equal(t, 1, broker.dials)
}

func TestNewRabbitPublisherDialFailure(t *testing.T) {
	broker := &fakeBroker{dialErr: errors.New("connection refused")}
	_, err := newRabbitPublisher(broker.dial)
	assert.Error(t, err)
}
