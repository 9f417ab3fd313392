package attendance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"checkin/internal/model"
	"checkin/internal/orgday"
)

// clock is a settable time source for tests.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func manausCalendar(t *testing.T) *orgday.Calendar {
	t.Helper()
	cal, err := orgday.New(orgday.DefaultTimezone)
	require.NoError(t, err)
	return cal
}

func validCandidate() model.Candidate {
	return model.Candidate{
		FullName:         "Maria Silva",
		NationalID:       "12345678901",
		Reclassification: "Local",
		ChurchPosition:   "Membro",
		Region:           "Norte",
		City:             "Manaus",
		Shift:            model.ShiftMorning,
		Status:           model.StatusPresent,
	}
}

func seed(t *testing.T, s *MemoryStore, rec model.Record) model.Record {
	t.Helper()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.Timestamp
	}
	if rec.UpdateCount == 0 {
		rec.UpdateCount = 1
	}
	out, err := s.Insert(t.Context(), rec)
	require.NoError(t, err)
	return out
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
