package attendance

import (
	"context"
	"fmt"
	"strings"

	"checkin/internal/model"
	"checkin/internal/orgday"
	"checkin/internal/validation"
)

// DuplicateResult reports records sharing an identifier. The detector never
// blocks; the caller applies its own policy.
type DuplicateResult struct {
	IsDuplicate bool              `json:"isDuplicate"`
	Count       int               `json:"count"`
	Day         *orgday.Day       `json:"day,omitempty"`
	Matches     []model.RecordRef `json:"matches"`
}

// SimilarResult reports records with the same full name under a different identifier.
type SimilarResult struct {
	HasSimilar bool              `json:"hasSimilar"`
	TooShort   bool              `json:"tooShort,omitempty"`
	Matches    []model.RecordRef `json:"matches"`
}

// Detector finds identity collisions in the record store.
type Detector struct {
	store RecordStore
	cal   *orgday.Calendar
}

// NewDetector creates a detector over store using cal for day boundaries.
func NewDetector(store RecordStore, cal *orgday.Calendar) *Detector {
	return &Detector{store: store, cal: cal}
}

// CheckDuplicate looks up records with nationalID. When asOfDay is set only
// records attributed to that organizational day count.
func (d *Detector) CheckDuplicate(ctx context.Context, nationalID string, asOfDay *orgday.Day) (DuplicateResult, error) {
	nid := validation.NormalizeNationalID(nationalID)
	res := DuplicateResult{Day: asOfDay, Matches: []model.RecordRef{}}
	if nid == "" {
		return res, nil
	}
	recs, err := d.store.FindByNationalID(ctx, nid)
	if err != nil {
		return DuplicateResult{}, fmt.Errorf("find by national id: %w", err)
	}
	for _, rec := range recs {
		if asOfDay != nil && d.cal.Key(rec.EventTime()) != *asOfDay {
			continue
		}
		res.Matches = append(res.Matches, d.Ref(rec))
	}
	res.Count = len(res.Matches)
	res.IsDuplicate = res.Count > 0
	return res, nil
}

// CheckSimilarName looks for records whose case-normalized full name equals
// fullName. Records with excludeNationalID are ignored so a record being edited
// does not collide with itself.
func (d *Detector) CheckSimilarName(ctx context.Context, fullName, excludeNationalID string) (SimilarResult, error) {
	res := SimilarResult{Matches: []model.RecordRef{}}
	if !checkableName(fullName) {
		res.TooShort = true
		return res, nil
	}
	recs, err := d.store.FindByNameKey(ctx, NameKey(fullName))
	if err != nil {
		return SimilarResult{}, fmt.Errorf("find by name: %w", err)
	}
	exclude := validation.NormalizeNationalID(excludeNationalID)
	for _, rec := range recs {
		if exclude != "" && rec.NationalID == exclude {
			continue
		}
		res.Matches = append(res.Matches, d.Ref(rec))
	}
	res.HasSimilar = len(res.Matches) > 0
	return res, nil
}

// Ref projects rec for a human reviewer.
func (d *Detector) Ref(rec model.Record) model.RecordRef {
	ref := model.RecordRef{
		ID:             rec.ID,
		FullName:       rec.FullName,
		NationalID:     rec.NationalID,
		Region:         rec.Region,
		ChurchPosition: rec.ChurchPosition,
		Status:         rec.Status,
		Timestamp:      rec.EventTime(),
		LastUpdatedBy:  rec.LastUpdatedBy,
	}
	if !ref.Timestamp.IsZero() {
		ref.Day = d.cal.Key(ref.Timestamp).String()
	}
	return ref
}

// checkableName requires at least two name parts longer than two characters;
// shorter names produce too many accidental matches.
func checkableName(fullName string) bool {
	n := 0
	for _, part := range strings.Fields(fullName) {
		if len([]rune(part)) > 2 {
			n++
		}
	}
	return n >= 2
}
