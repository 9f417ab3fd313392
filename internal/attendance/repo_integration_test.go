//go:build integration

package attendance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/options"
	"checkin/internal/orgday"
	"checkin/internal/testutil/containers"
)

func TestRepositoryIntegration(t *testing.T) {
	db := containers.NewPostgres(t)
	repo := NewRepository(db.Client)
	ctx := t.Context()
	at := time.Date(2025, 9, 17, 14, 0, 0, 0, time.UTC)

	u := NewUpdater(repo, func() time.Time { return at })
	rec := validCandidate().ToRecord()
	rec.Timestamp = at
	created, err := u.Create(ctx, rec, "ana@example.org")
	require.NoError(t, err)
	assert.Equal(t, 1, created.UpdateCount)

	t.Run("lookups", func(t *testing.T) {
		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.NationalID, got.NationalID)
		assert.True(t, got.Timestamp.Equal(at))

		byID, err := repo.FindByNationalID(ctx, "12345678901")
		require.NoError(t, err)
		assert.Len(t, byID, 1)

		byName, err := repo.FindByNameKey(ctx, NameKey("  MARIA silva "))
		require.NoError(t, err)
		assert.Len(t, byName, 1)

		_, err = repo.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("conditional write", func(t *testing.T) {
		city, nid := "Parintins", "10987654321"
		res, err := u.Update(ctx, created.ID, Patch{City: &city, NationalID: &nid}, "bia@example.org", intPtr(1))
		require.NoError(t, err)
		assert.Equal(t, 2, res.NewUpdateCount)
		assert.Equal(t, "Parintins", res.Record.City)
		assert.Equal(t, "10987654321", res.Record.NationalID)
		assert.Equal(t, "bia@example.org", res.Record.LastUpdatedBy)

		_, err = u.Update(ctx, created.ID, Patch{City: &city}, "caio@example.org", intPtr(1))
		assert.ErrorIs(t, err, ErrConflict)

		_, err = u.Update(ctx, "missing", Patch{City: &city}, "caio@example.org", intPtr(1))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("one winner among concurrent editors", func(t *testing.T) {
		cur, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)

		const editors = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		for i := range editors {
			wg.Add(1)
			go func() {
				defer wg.Done()
				region := "Região " + string(rune('A'+i))
				_, err := u.Update(ctx, created.ID, Patch{Region: &region}, "editor@example.org", intPtr(cur.UpdateCount))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if assert.ErrorIs(t, err, ErrConflict) {
					conflicts++
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
		assert.Equal(t, editors-1, conflicts)

		after, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, cur.UpdateCount+1, after.UpdateCount)
	})

	t.Run("report over postgres", func(t *testing.T) {
		cal, err := orgday.New(orgday.DefaultTimezone)
		require.NoError(t, err)
		svc := NewService(repo, options.Static(options.Default()), cal, WithClock(func() time.Time { return at }))
		rep, err := svc.Report(ctx, "2025-09-17", "2025-09-17")
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Stats.Total)
		assert.Equal(t, 1, rep.Stats.Present)
	})
}
