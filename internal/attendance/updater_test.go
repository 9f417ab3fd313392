package attendance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/model"
)

var t0 = time.Date(2025, 9, 17, 14, 0, 0, 0, time.UTC)

func TestUpdaterCreate(t *testing.T) {
	store := NewMemoryStore()
	u := NewUpdater(store, newClock(t0).Now)

	rec, err := u.Create(context.Background(), validCandidate().ToRecord(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1, rec.UpdateCount)
	assert.Equal(t, UnknownEditor, rec.CreatedBy)
	assert.Equal(t, UnknownEditor, rec.LastUpdatedBy)
	assert.Equal(t, t0, rec.CreatedAt)
	assert.Equal(t, t0, rec.Timestamp)
	assert.Equal(t, model.ScanMethodForm, rec.ScanMethod)

	stored, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, stored)
}

func TestUpdaterCreateDefaultsStatusToPresent(t *testing.T) {
	rec := validCandidate().ToRecord()
	rec.Status = ""

	out, err := NewUpdater(NewMemoryStore(), newClock(t0).Now).Create(context.Background(), rec, "ana@example.org")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPresent, out.Status)
	assert.Equal(t, "ana@example.org", out.CreatedBy)
}

func TestUpdaterUpdate(t *testing.T) {
	ctx := context.Background()
	clk := newClock(t0)

	setup := func(t *testing.T, count int) (*MemoryStore, *Updater, model.Record) {
		store := NewMemoryStore()
		rec := seed(t, store, model.Record{ID: "r1", FullName: "Maria Silva", NationalID: "12345678901",
			Status: model.StatusAbsent, AbsentReason: "viagem", Timestamp: t0, UpdateCount: count})
		return store, NewUpdater(store, clk.Now), rec
	}

	t.Run("matching precondition increments the count", func(t *testing.T) {
		_, u, rec := setup(t, 5)
		clk.Advance(time.Minute)

		res, err := u.Update(ctx, rec.ID, Patch{Status: strPtr(model.StatusPresent)}, "ana@example.org", intPtr(5))
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 6, res.NewUpdateCount)
		assert.Equal(t, model.StatusPresent, res.Record.Status)
		assert.Equal(t, "ana@example.org", res.Record.LastUpdatedBy)
		assert.Equal(t, clk.Now(), res.Record.LastUpdated)
	})

	t.Run("stale precondition fails without mutating", func(t *testing.T) {
		store, u, rec := setup(t, 6)

		_, err := u.Update(ctx, rec.ID, Patch{Status: strPtr(model.StatusPresent)}, "ana@example.org", intPtr(5))
		require.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "conflict", Outcome(err))

		stored, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec, stored)
	})

	t.Run("missing record is NotFound", func(t *testing.T) {
		_, u, _ := setup(t, 1)
		_, err := u.Update(ctx, "nope", Patch{}, "ana@example.org", intPtr(1))
		require.ErrorIs(t, err, ErrNotFound)
		assert.False(t, IsRetryable(err))
	})

	t.Run("empty id is NotFound", func(t *testing.T) {
		_, u, _ := setup(t, 1)
		_, err := u.Update(ctx, "", Patch{}, "ana@example.org", nil)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("without precondition the write is unconditional", func(t *testing.T) {
		_, u, rec := setup(t, 9)
		res, err := u.Update(ctx, rec.ID, Patch{City: strPtr("Manacapuru")}, "", nil)
		require.NoError(t, err)
		assert.Equal(t, 10, res.NewUpdateCount)
		assert.Equal(t, "Manacapuru", res.Record.City)
		assert.Equal(t, UnknownEditor, res.Record.LastUpdatedBy)
		assert.Equal(t, "viagem", res.Record.AbsentReason)
	})
}

func TestUpdaterConcurrentEditorsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := seed(t, store, model.Record{ID: "r1", FullName: "Maria Silva", Timestamp: t0, UpdateCount: 5})
	u := NewUpdater(store, nil)

	const editors = 16
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := u.Update(ctx, rec.ID, Patch{City: strPtr("Parintins")}, "admin@example.org", intPtr(5))
			switch {
			case err == nil:
				wins.Add(1)
			case IsRetryable(err):
				t.Errorf("unexpected retryable error: %v", err)
			default:
				assert.ErrorIs(t, err, ErrConflict)
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, editors-1, conflicts.Load())
	stored, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.UpdateCount)
}

func TestStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := NewMemoryStore().Get(ctx, "r1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "unavailable", Outcome(err))

	// A caller that went away is not a store outage.
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = NewMemoryStore().Get(ctx, "r1")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, "error", Outcome(err))
}

func TestPatchApply(t *testing.T) {
	rec := model.Record{FullName: "Maria Silva", City: "Manaus", UpdateCount: 3, LastUpdatedBy: "x"}
	at := t0.Add(time.Hour)

	out := Patch{City: strPtr("Tefé"), Timestamp: &at}.Apply(rec)
	assert.Equal(t, "Maria Silva", out.FullName)
	assert.Equal(t, "Tefé", out.City)
	assert.Equal(t, at, out.Timestamp)
	assert.Equal(t, 3, out.UpdateCount)
	assert.Equal(t, "x", out.LastUpdatedBy)
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, "maria da silva", NameKey("  Maria   DA\tSilva "))
}
