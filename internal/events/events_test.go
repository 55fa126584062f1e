package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitMQPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQPublisher{channel: ch, logger: zap.NewNop()}

	maxViews := 2
	err := p.Publish(context.Background(), Event{Type: PasteViewed, PasteID: "abcd1234", ViewsCount: 1, MaxViews: &maxViews})
	require.NoError(t, err)

	assert.Equal(t, Exchange, ch.exchange)
	assert.Equal(t, PasteViewed, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var got Event
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "abcd1234", got.PasteID)
	assert.Equal(t, 1, got.ViewsCount)
	assert.False(t, got.OccurredAt.IsZero())
	assert.NotContains(t, string(ch.msg.Body), "content")
}

func TestRabbitMQPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &RabbitMQPublisher{channel: ch, logger: zap.NewNop()}

	err := p.Publish(context.Background(), Event{Type: PasteCreated, OccurredAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), PasteCreated)
}

func TestRabbitMQPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQPublisher{channel: ch, logger: zap.NewNop()}

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: PasteCreated}))
	assert.NoError(t, p.Close())
}
