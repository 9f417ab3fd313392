package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"checkin/internal/queue"
)

type memorySink struct {
	mu     sync.Mutex
	events []Event
	fail   string
}

func (s *memorySink) Append(_ context.Context, evt Event) error {
	if evt.Type == s.fail {
		return errors.New("sink down")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *memorySink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestNew(t *testing.T) {
	at := time.Date(2025, 9, 17, 10, 0, 0, 0, time.FixedZone("AMT", -4*3600))
	a := New(RecordCreated, "ana@example.org", "r1", at, map[string]any{"status": "present"})
	b := New(RecordCreated, "ana@example.org", "r1", at, nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.At.Location())
	assert.True(t, a.At.Equal(at))
}

func TestPublishConsumeRoundTrip(t *testing.T) {
	q := queue.NewInMemory(8)
	pub := NewQueuePublisher(q)
	sink := &memorySink{fail: UserCreated}
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	at := time.Date(2025, 9, 17, 14, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Publish(ctx, New(RecordCreated, "ana@example.org", "r1", at, map[string]any{"status": "present"})))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other", Body: []byte(`{}`)}))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: MessageType, Body: []byte(`not json`)}))
	require.NoError(t, pub.Publish(ctx, New(UserCreated, "ana@example.org", "u1", at, nil)))
	require.NoError(t, pub.Publish(ctx, New(UpdateConflict, "bia@example.org", "r1", at, map[string]any{"expectedUpdateCount": 5})))

	done := make(chan error, 1)
	go func() { done <- NewConsumer(q, sink, nil).Run(ctx) }()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	got := sink.snapshot()
	assert.Equal(t, RecordCreated, got[0].Type)
	assert.Equal(t, "present", got[0].Details["status"])
	assert.Equal(t, UpdateConflict, got[1].Type)
	assert.InDelta(t, 5, got[1].Details["expectedUpdateCount"], 0, "numbers decode as float64")
	assert.True(t, got[1].At.Equal(at))
}

func TestDecode(t *testing.T) {
	_, err := Decode(queue.Message{Type: "checkin", Body: []byte(`{}`)})
	assert.Error(t, err)

	_, err = Decode(queue.Message{Type: MessageType, Body: []byte(`[`)})
	assert.Error(t, err)

	evt, err := Decode(queue.Message{Type: MessageType, Body: []byte(`{"id":"e1","type":"options.replaced","actor":"admin@ipda.org.br"}`)})
	require.NoError(t, err)
	assert.Equal(t, OptionsReplaced, evt.Type)
	assert.Equal(t, "admin@ipda.org.br", evt.Actor)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := LogSink{Log: zap.New(core)}

	require.NoError(t, sink.Append(t.Context(), New(UserRoleChanged, "admin@ipda.org.br", "u1", time.Now(), map[string]any{"to": "editor"})))

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	assert.Equal(t, UserRoleChanged, entries[0].ContextMap()["type"])
	assert.Equal(t, "u1", entries[0].ContextMap()["record_id"])
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Publish(t.Context(), New(RecordUpdated, "", "", time.Now(), nil)))
}
