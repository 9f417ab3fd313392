package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "a", Body: json.RawMessage(`1`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "b", Body: json.RawMessage(`2`)}))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	first := <-msgs
	second := <-msgs
	assert.Equal(t, "a", first.Type)
	assert.Equal(t, "b", second.Type)
	assert.JSONEq(t, `2`, string(second.Body))
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), Message{Type: "a"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Publish(ctx, Message{Type: "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryConsumeClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer channel not closed")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	raw, err := serialize(Message{Type: "audit", Body: json.RawMessage(`{"id":"x|y"}`)})
	require.NoError(t, err)

	msg, err := deserialize(raw)
	require.NoError(t, err)
	assert.Equal(t, "audit", msg.Type)
	assert.JSONEq(t, `{"id":"x|y"}`, string(msg.Body))
}

func TestSerializeRejectsUntypedMessages(t *testing.T) {
	_, err := serialize(Message{})
	assert.Error(t, err)

	_, err = deserialize(`{"body":1}`)
	assert.Error(t, err)

	_, err = deserialize(`not json`)
	assert.Error(t, err)
}
