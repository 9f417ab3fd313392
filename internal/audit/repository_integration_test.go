//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/queue"
	"checkin/internal/testutil/containers"
)

func TestRepositoryIntegration(t *testing.T) {
	db := containers.NewPostgres(t)
	repo := NewRepository(db.Client)
	ctx := t.Context()
	at := time.Date(2025, 9, 17, 14, 0, 0, 0, time.UTC)

	first := New(RecordCreated, "ana@example.org", "r1", at, map[string]any{"status": "present"})
	second := New(RecordUpdated, "bia@example.org", "r1", at.Add(time.Minute), nil)
	require.NoError(t, repo.Append(ctx, second))
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, first), "replays are ignored")
	require.NoError(t, repo.Append(ctx, New(RecordCreated, "ana@example.org", "r2", at, nil)))

	events, err := repo.ForRecord(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, "present", events[0].Details["status"])
	assert.Equal(t, second.ID, events[1].ID)
	assert.True(t, events[1].At.Equal(second.At))
}

func TestRedisQueueToRepositoryIntegration(t *testing.T) {
	db := containers.NewPostgres(t)
	client := containers.NewRedis(t)
	repo := NewRepository(db.Client)
	q := queue.NewRedisQueue(client, "checkin:audit:test", nil)

	evt := New(UserRoleChanged, "admin@ipda.org.br", "u1", time.Now(), map[string]any{"to": "editor"})
	require.NoError(t, NewQueuePublisher(q).Publish(t.Context(), evt))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = NewConsumer(q, repo, nil).Run(ctx) }()

	require.Eventually(t, func() bool {
		events, err := repo.ForRecord(t.Context(), "u1")
		return err == nil && len(events) == 1 && events[0].ID == evt.ID
	}, 10*time.Second, 100*time.Millisecond)
}
