// Package stats aggregates attendance records into day-bounded statistics and a
// separate data-quality report. Aggregation is pure: callers supply the records.
package stats

import (
	"sort"
	"strings"

	"checkin/internal/model"
	"checkin/internal/options"
	"checkin/internal/orgday"
)

// Unspecified labels records with an empty classification value.
const Unspecified = "unspecified"

// Stats are the attendance figures for a day range.
type Stats struct {
	From               orgday.Day     `json:"from"`
	To                 orgday.Day     `json:"to"`
	Total              int            `json:"total"`
	Present            int            `json:"present"`
	AttendanceRate     float64        `json:"attendanceRate"`
	ByStatus           map[string]int `json:"byStatus"`
	ByShift            map[string]int `json:"byShift"`
	ByRegion           map[string]int `json:"byRegion"`
	ByPosition         map[string]int `json:"byPosition"`
	ByReclassification map[string]int `json:"byReclassification"`
	PerDay             []DayStats     `json:"perDay"`
}

// DayStats are the figures for a single organizational day.
type DayStats struct {
	Day            orgday.Day     `json:"day"`
	Total          int            `json:"total"`
	Present        int            `json:"present"`
	AttendanceRate float64        `json:"attendanceRate"`
	ByStatus       map[string]int `json:"byStatus"`
}

// MissingFields lists required fields a record lacks.
type MissingFields struct {
	RecordID   string   `json:"recordId"`
	NationalID string   `json:"nationalId"`
	Fields     []string `json:"fields"`
}

// UnknownOption is an enum value no longer present in the configured options.
type UnknownOption struct {
	RecordID string `json:"recordId"`
	Field    string `json:"field"`
	Value    string `json:"value"`
}

// Cluster is a group of records sharing an identifier on one organizational day.
type Cluster struct {
	Day        orgday.Day `json:"day"`
	NationalID string     `json:"nationalId"`
	RecordIDs  []string   `json:"recordIds"`
	Names      []string   `json:"names"`
}

// Quality is the data-quality report for the same range. It is kept apart from Stats.
type Quality struct {
	MissingRequired   []MissingFields `json:"missingRequired"`
	UnknownOptions    []UnknownOption `json:"unknownOptions"`
	DuplicateClusters []Cluster       `json:"duplicateClusters"`
	// Undated counts records with no event or creation time; they belong to no day.
	Undated int `json:"undated"`
}

// Report pairs the statistics with the quality findings.
type Report struct {
	Stats   Stats   `json:"stats"`
	Quality Quality `json:"quality"`
}

// Rate returns present/total, defined as 0 for an empty total.
func Rate(present, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(present) / float64(total)
}

// Aggregate computes the report for records attributed to days from..to inclusive.
func Aggregate(records []model.Record, from, to orgday.Day, cal *orgday.Calendar, opts options.Set) Report {
	acc := NewAccumulator(from, to, cal, opts)
	for _, r := range records {
		acc.Add(r)
	}
	return acc.Report()
}

// Accumulator builds a Report one record at a time so large scans need not be
// held in memory.
type Accumulator struct {
	from, to orgday.Day
	cal      *orgday.Calendar
	opts     options.Set

	stats    Stats
	perDay   map[orgday.Day]*DayStats
	quality  Quality
	clusters map[clusterKey]*Cluster
}

type clusterKey struct {
	day orgday.Day
	nid string
}

// NewAccumulator starts an empty report for from..to.
func NewAccumulator(from, to orgday.Day, cal *orgday.Calendar, opts options.Set) *Accumulator {
	return &Accumulator{
		from: from,
		to:   to,
		cal:  cal,
		opts: opts,
		stats: Stats{
			From:               from,
			To:                 to,
			ByStatus:           map[string]int{},
			ByShift:            map[string]int{},
			ByRegion:           map[string]int{},
			ByPosition:         map[string]int{},
			ByReclassification: map[string]int{},
		},
		perDay:   map[orgday.Day]*DayStats{},
		clusters: map[clusterKey]*Cluster{},
	}
}

// Add folds one record into the report. Records outside the range are ignored.
func (a *Accumulator) Add(rec model.Record) {
	at := rec.EventTime()
	if at.IsZero() {
		a.quality.Undated++
		return
	}
	day := a.cal.Key(at)
	if day.Before(a.from) || day.After(a.to) {
		return
	}

	present := rec.Status == model.StatusPresent
	a.stats.Total++
	if present {
		a.stats.Present++
	}
	a.stats.ByStatus[label(rec.Status)]++
	a.stats.ByShift[label(rec.Shift)]++
	a.stats.ByRegion[label(rec.Region)]++
	a.stats.ByPosition[label(rec.ChurchPosition)]++
	a.stats.ByReclassification[label(rec.Reclassification)]++

	ds, ok := a.perDay[day]
	if !ok {
		ds = &DayStats{Day: day, ByStatus: map[string]int{}}
		a.perDay[day] = ds
	}
	ds.Total++
	if present {
		ds.Present++
	}
	ds.ByStatus[label(rec.Status)]++

	a.checkQuality(rec, day)
}

func (a *Accumulator) checkQuality(rec model.Record, day orgday.Day) {
	if missing := missingRequired(rec); len(missing) > 0 {
		a.quality.MissingRequired = append(a.quality.MissingRequired, MissingFields{
			RecordID: rec.ID, NationalID: rec.NationalID, Fields: missing,
		})
	}

	values := map[string]string{
		options.FieldReclassification: rec.Reclassification,
		options.FieldChurchPosition:   rec.ChurchPosition,
		options.FieldShift:            rec.Shift,
		options.FieldStatus:           rec.Status,
	}
	for _, field := range options.Fields {
		v := values[field]
		if v != "" && !a.opts.Contains(field, v) {
			a.quality.UnknownOptions = append(a.quality.UnknownOptions, UnknownOption{
				RecordID: rec.ID, Field: field, Value: v,
			})
		}
	}

	if rec.NationalID == "" {
		return
	}
	key := clusterKey{day: day, nid: rec.NationalID}
	c, ok := a.clusters[key]
	if !ok {
		c = &Cluster{Day: day, NationalID: rec.NationalID}
		a.clusters[key] = c
	}
	c.RecordIDs = append(c.RecordIDs, rec.ID)
	if !containsFold(c.Names, rec.FullName) {
		c.Names = append(c.Names, rec.FullName)
	}
}

// Report returns the accumulated report. The accumulator may keep receiving records.
func (a *Accumulator) Report() Report {
	st := a.stats
	st.AttendanceRate = Rate(st.Present, st.Total)
	st.PerDay = make([]DayStats, 0, len(a.perDay))
	for _, ds := range a.perDay {
		d := *ds
		d.AttendanceRate = Rate(d.Present, d.Total)
		st.PerDay = append(st.PerDay, d)
	}
	sort.Slice(st.PerDay, func(i, j int) bool { return st.PerDay[i].Day < st.PerDay[j].Day })

	q := Quality{
		MissingRequired:   append([]MissingFields{}, a.quality.MissingRequired...),
		UnknownOptions:    append([]UnknownOption{}, a.quality.UnknownOptions...),
		DuplicateClusters: []Cluster{},
		Undated:           a.quality.Undated,
	}
	for _, c := range a.clusters {
		if len(c.RecordIDs) > 1 {
			cp := *c
			cp.RecordIDs = append([]string(nil), c.RecordIDs...)
			sort.Strings(cp.RecordIDs)
			cp.Names = append([]string(nil), c.Names...)
			q.DuplicateClusters = append(q.DuplicateClusters, cp)
		}
	}
	sort.Slice(q.DuplicateClusters, func(i, j int) bool {
		ci, cj := q.DuplicateClusters[i], q.DuplicateClusters[j]
		if ci.Day != cj.Day {
			return ci.Day < cj.Day
		}
		return ci.NationalID < cj.NationalID
	})
	sort.Slice(q.MissingRequired, func(i, j int) bool { return q.MissingRequired[i].RecordID < q.MissingRequired[j].RecordID })
	sort.Slice(q.UnknownOptions, func(i, j int) bool {
		ui, uj := q.UnknownOptions[i], q.UnknownOptions[j]
		if ui.RecordID != uj.RecordID {
			return ui.RecordID < uj.RecordID
		}
		return ui.Field < uj.Field
	})
	return Report{Stats: st, Quality: q}
}

func missingRequired(rec model.Record) []string {
	var missing []string
	check := func(field, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	check("fullName", rec.FullName)
	check("nationalId", rec.NationalID)
	check(options.FieldReclassification, rec.Reclassification)
	check(options.FieldChurchPosition, rec.ChurchPosition)
	check("region", rec.Region)
	check("city", rec.City)
	check(options.FieldShift, rec.Shift)
	check(options.FieldStatus, rec.Status)
	if rec.Status != "" && rec.Status != model.StatusPresent {
		check("absentReason", rec.AbsentReason)
	}
	return missing
}

func label(v string) string {
	if strings.TrimSpace(v) == "" {
		return Unspecified
	}
	return v
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
