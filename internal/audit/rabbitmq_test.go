package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "PumpMCP/internal/errors"
)

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestRabbitMQSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := &RabbitMQSink{ch: pub, queue: "pumpmcp.audit"}

	event := NewEvent("create_asset", xerrors.New(xerrors.CodeInvalidInput, ""), time.Millisecond, time.Now())
	require.NoError(t, sink.Record(context.Background(), event))

	assert.Equal(t, "", pub.exchange)
	assert.Equal(t, "pumpmcp.audit", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, event.ID, pub.msg.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.Equal(t, OutcomeInvalidInput, decoded.Outcome)

	require.NoError(t, sink.Close())
	assert.True(t, pub.closed)
}

func TestRabbitMQSinkPublishFailure(t *testing.T) {
	sink := &RabbitMQSink{ch: &fakePublisher{err: errors.New("channel closed")}, queue: "q"}
	err := sink.Record(context.Background(), Event{Tool: "create_wallet"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeSinkFailure, xerrors.CodeOf(err))
}

func TestRabbitMQSinkRequiresURL(t *testing.T) {
	_, err := NewRabbitMQSink(RabbitMQConfig{})
	assert.Error(t, err)

	var empty *RabbitMQSink
	assert.Error(t, empty.Record(context.Background(), Event{}))
	assert.NoError(t, empty.Close())
}
