package orgday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manaus(t *testing.T) *Calendar {
	t.Helper()
	cal, err := New("")
	require.NoError(t, err)
	return cal
}

func TestKey(t *testing.T) {
	cal := manaus(t)

	t.Run("late UTC evening belongs to the same Manaus day", func(t *testing.T) {
		// 02:30 UTC on the 18th is 22:30 on the 17th in Manaus (UTC-4).
		at := time.Date(2025, 9, 18, 2, 30, 0, 0, time.UTC)
		assert.Equal(t, Day("2025-09-17"), cal.Key(at))
	})

	t.Run("midnight boundary is attributed to exactly one day", func(t *testing.T) {
		midnight := time.Date(2025, 9, 17, 0, 0, 0, 0, cal.Location())
		assert.Equal(t, Day("2025-09-17"), cal.Key(midnight))
		assert.Equal(t, Day("2025-09-16"), cal.Key(midnight.Add(-time.Nanosecond)))
	})

	t.Run("idempotent for the same instant", func(t *testing.T) {
		at := time.Date(2025, 1, 1, 3, 59, 59, 0, time.UTC)
		assert.Equal(t, cal.Key(at), cal.Key(at))
		assert.Equal(t, cal.Key(at), cal.Key(at.In(time.FixedZone("X", 9*3600))))
	})
}

func TestBounds(t *testing.T) {
	cal := manaus(t)

	start, end, err := cal.Bounds("2025-09-17")
	require.NoError(t, err)
	assert.Equal(t, Day("2025-09-17"), cal.Key(start))
	assert.Equal(t, Day("2025-09-18"), cal.Key(end))
	assert.Equal(t, Day("2025-09-17"), cal.Key(end.Add(-time.Nanosecond)))

	_, _, err = cal.Bounds("17/09/2025")
	assert.Error(t, err)
}

func TestInRange(t *testing.T) {
	cal := manaus(t)
	at := time.Date(2025, 9, 18, 2, 30, 0, 0, time.UTC)

	assert.True(t, cal.InRange(at, "2025-09-17", "2025-09-17"))
	assert.False(t, cal.InRange(at, "2025-09-18", "2025-09-20"))
}

func TestDayArithmetic(t *testing.T) {
	assert.Equal(t, Day("2025-03-01"), Day("2025-02-28").Next())
	assert.Equal(t, Day("2024-12-31"), Day("2025-01-01").Prev())
	assert.Equal(t, []Day{"2025-09-16", "2025-09-17", "2025-09-18"}, Range("2025-09-16", "2025-09-18"))
	assert.Nil(t, Range("2025-09-18", "2025-09-16"))

	_, err := ParseDay("2025-13-01")
	assert.Error(t, err)
}

func TestNewRejectsUnknownZone(t *testing.T) {
	_, err := New("Mars/Olympus")
	assert.Error(t, err)
}
