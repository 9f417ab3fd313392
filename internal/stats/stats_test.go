package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/model"
	"checkin/internal/options"
	"checkin/internal/orgday"
)

func calendar(t *testing.T) *orgday.Calendar {
	t.Helper()
	cal, err := orgday.New(orgday.DefaultTimezone)
	require.NoError(t, err)
	return cal
}

func record(id, nid, status string, at time.Time) model.Record {
	return model.Record{
		ID:               id,
		FullName:         "Pessoa " + id,
		NationalID:       nid,
		Reclassification: "Local",
		ChurchPosition:   "Membro",
		Region:           "Norte",
		City:             "Manaus",
		Shift:            model.ShiftMorning,
		Status:           status,
		Timestamp:        at,
	}
}

var (
	day17 = orgday.Day("2025-09-17")
	day18 = orgday.Day("2025-09-18")
	// 10:00 in Manaus on the 17th.
	morning17 = time.Date(2025, 9, 17, 14, 0, 0, 0, time.UTC)
)

func TestAggregateEmpty(t *testing.T) {
	rep := Aggregate(nil, day17, day17, calendar(t), options.Default())

	assert.Zero(t, rep.Stats.Total)
	assert.Zero(t, rep.Stats.AttendanceRate)
	assert.Empty(t, rep.Stats.PerDay)
	assert.Empty(t, rep.Quality.DuplicateClusters)
	assert.Empty(t, rep.Quality.MissingRequired)
}

func TestAggregateAllPresentIsExactlyOne(t *testing.T) {
	var recs []model.Record
	for i, nid := range []string{"11111111111", "22222222222", "33333333333"} {
		recs = append(recs, record(string(rune('a'+i)), nid, model.StatusPresent, morning17))
	}
	rep := Aggregate(recs, day17, day17, calendar(t), options.Default())

	assert.Equal(t, 3, rep.Stats.Total)
	assert.Equal(t, 1.0, rep.Stats.AttendanceRate)
	require.Len(t, rep.Stats.PerDay, 1)
	assert.Equal(t, 1.0, rep.Stats.PerDay[0].AttendanceRate)
}

func TestAggregateBreakdowns(t *testing.T) {
	a := record("a", "11111111111", model.StatusPresent, morning17)
	b := record("b", "22222222222", model.StatusAbsent, morning17)
	b.AbsentReason = "viagem"
	b.Region = "Sul"
	b.Shift = model.ShiftEvening
	c := record("c", "33333333333", model.StatusExcused, morning17.Add(24*time.Hour))
	c.AbsentReason = "doente"
	c.ChurchPosition = "Pastor"
	c.Region = ""
	d := record("d", "44444444444", model.StatusPresent, morning17.Add(-24*time.Hour))

	rep := Aggregate([]model.Record{a, b, c, d}, day17, day18, calendar(t), options.Default())
	st := rep.Stats

	assert.Equal(t, day17, st.From)
	assert.Equal(t, day18, st.To)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Present)
	assert.InDelta(t, 1.0/3.0, st.AttendanceRate, 1e-9)
	assert.Equal(t, map[string]int{model.StatusPresent: 1, model.StatusAbsent: 1, model.StatusExcused: 1}, st.ByStatus)
	assert.Equal(t, map[string]int{model.ShiftMorning: 2, model.ShiftEvening: 1}, st.ByShift)
	assert.Equal(t, map[string]int{"Norte": 1, "Sul": 1, Unspecified: 1}, st.ByRegion)
	assert.Equal(t, map[string]int{"Membro": 2, "Pastor": 1}, st.ByPosition)
	assert.Equal(t, map[string]int{"Local": 3}, st.ByReclassification)

	require.Len(t, st.PerDay, 2)
	assert.Equal(t, day17, st.PerDay[0].Day)
	assert.Equal(t, 2, st.PerDay[0].Total)
	assert.InDelta(t, 0.5, st.PerDay[0].AttendanceRate, 1e-9)
	assert.Equal(t, day18, st.PerDay[1].Day)
	assert.Zero(t, st.PerDay[1].AttendanceRate)

	require.Len(t, rep.Quality.MissingRequired, 1)
	assert.Equal(t, "c", rep.Quality.MissingRequired[0].RecordID)
	assert.Equal(t, []string{"region"}, rep.Quality.MissingRequired[0].Fields)
}

func TestAggregateDayBoundary(t *testing.T) {
	cal := calendar(t)
	start, _, err := cal.Bounds(day18)
	require.NoError(t, err)

	atBoundary := record("edge", "11111111111", model.StatusPresent, start)
	justBefore := record("before", "22222222222", model.StatusPresent, start.Add(-time.Nanosecond))

	for _, day := range []orgday.Day{day17, day18} {
		rep := Aggregate([]model.Record{atBoundary, justBefore}, day, day, cal, options.Default())
		assert.Equal(t, 1, rep.Stats.Total, day)
	}
	rep := Aggregate([]model.Record{atBoundary, justBefore}, day17, day18, cal, options.Default())
	assert.Equal(t, 2, rep.Stats.Total)
}

func TestQualityReport(t *testing.T) {
	legacy := record("legacy", "11111111111", "late", morning17)
	legacy.Shift = "Noite"
	legacy.AbsentReason = "atraso"

	dup1 := record("dup1", "22222222222", model.StatusPresent, morning17)
	dup2 := record("dup2", "22222222222", model.StatusPresent, morning17.Add(2*time.Hour))
	dup2.FullName = "Outra Pessoa"
	otherDay := record("dup3", "22222222222", model.StatusPresent, morning17.Add(24*time.Hour))

	missing := record("missing", "", model.StatusAbsent, morning17)
	missing.City = " "

	undated := record("undated", "33333333333", model.StatusPresent, time.Time{})

	rep := Aggregate([]model.Record{legacy, dup1, dup2, otherDay, missing, undated}, day17, day18, calendar(t), options.Default())
	q := rep.Quality

	assert.Equal(t, []UnknownOption{
		{RecordID: "legacy", Field: options.FieldShift, Value: "Noite"},
		{RecordID: "legacy", Field: options.FieldStatus, Value: "late"},
	}, q.UnknownOptions)

	require.Len(t, q.DuplicateClusters, 1)
	cl := q.DuplicateClusters[0]
	assert.Equal(t, day17, cl.Day)
	assert.Equal(t, "22222222222", cl.NationalID)
	assert.Equal(t, []string{"dup1", "dup2"}, cl.RecordIDs)
	assert.Equal(t, []string{"Pessoa dup1", "Outra Pessoa"}, cl.Names)

	require.Len(t, q.MissingRequired, 1)
	assert.Equal(t, []string{"nationalId", "city", "absentReason"}, q.MissingRequired[0].Fields)

	assert.Equal(t, 1, q.Undated)
	assert.Equal(t, 5, rep.Stats.Total, "unknown options stay readable and counted")
}

func TestAccumulatorMatchesAggregate(t *testing.T) {
	cal := calendar(t)
	recs := []model.Record{
		record("a", "11111111111", model.StatusPresent, morning17),
		record("b", "11111111111", model.StatusAbsent, morning17),
	}

	acc := NewAccumulator(day17, day17, cal, options.Default())
	for _, r := range recs {
		acc.Add(r)
	}
	assert.Equal(t, Aggregate(recs, day17, day17, cal, options.Default()), acc.Report())
}

func TestRate(t *testing.T) {
	assert.Zero(t, Rate(0, 0))
	assert.Equal(t, 1.0, Rate(7, 7))
	assert.Equal(t, 0.25, Rate(1, 4))
}
