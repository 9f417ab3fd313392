package attendance

import (
	"context"
	"strings"
	"time"

	"checkin/internal/model"
)

// RecordStore is the document store holding attendance records.
//
// Write must apply patch and stamp atomically: when expected is non-nil the write
// only happens if the stored update count still equals *expected, otherwise it
// fails with ErrConflict. Every successful write increments the update count by one.
type RecordStore interface {
	Get(ctx context.Context, id string) (model.Record, error)
	FindByNationalID(ctx context.Context, nationalID string) ([]model.Record, error)
	FindByNameKey(ctx context.Context, nameKey string) ([]model.Record, error)
	Insert(ctx context.Context, rec model.Record) (model.Record, error)
	Write(ctx context.Context, id string, patch Patch, stamp Stamp, expected *int) (model.Record, error)
	Scan(ctx context.Context, fn func(model.Record) error) error
}

// Stamp is the audit information attached to every write.
type Stamp struct {
	Editor string
	At     time.Time
}

// Patch lists the fields an update changes. Nil fields are left untouched.
type Patch struct {
	FullName         *string    `json:"fullName,omitempty"`
	NationalID       *string    `json:"nationalId,omitempty"`
	Birthday         *string    `json:"birthday,omitempty"`
	PastorName       *string    `json:"pastorName,omitempty"`
	Reclassification *string    `json:"reclassification,omitempty"`
	ChurchPosition   *string    `json:"churchPosition,omitempty"`
	Region           *string    `json:"region,omitempty"`
	City             *string    `json:"city,omitempty"`
	Shift            *string    `json:"shift,omitempty"`
	Status           *string    `json:"status,omitempty"`
	AbsentReason     *string    `json:"absentReason,omitempty"`
	ScanMethod       *string    `json:"scanMethod,omitempty"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
}

// Apply returns rec with the patch's fields written over it. Audit fields are
// not touched.
func (p Patch) Apply(rec model.Record) model.Record {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&rec.FullName, p.FullName)
	set(&rec.NationalID, p.NationalID)
	set(&rec.Birthday, p.Birthday)
	set(&rec.PastorName, p.PastorName)
	set(&rec.Reclassification, p.Reclassification)
	set(&rec.ChurchPosition, p.ChurchPosition)
	set(&rec.Region, p.Region)
	set(&rec.City, p.City)
	set(&rec.Shift, p.Shift)
	set(&rec.Status, p.Status)
	set(&rec.AbsentReason, p.AbsentReason)
	set(&rec.ScanMethod, p.ScanMethod)
	if p.Timestamp != nil {
		rec.Timestamp = *p.Timestamp
	}
	return rec
}

// PatchFromCandidate builds a patch that overwrites every data field with c's values.
func PatchFromCandidate(c model.Candidate) Patch {
	return Patch{
		FullName:         &c.FullName,
		NationalID:       &c.NationalID,
		Birthday:         &c.Birthday,
		PastorName:       &c.PastorName,
		Reclassification: &c.Reclassification,
		ChurchPosition:   &c.ChurchPosition,
		Region:           &c.Region,
		City:             &c.City,
		Shift:            &c.Shift,
		Status:           &c.Status,
		AbsentReason:     &c.AbsentReason,
	}
}

// CandidateFrom rebuilds the submission view of rec, used to validate an edited record.
func CandidateFrom(rec model.Record) model.Candidate {
	return model.Candidate{
		RecordID:         rec.ID,
		FullName:         rec.FullName,
		NationalID:       rec.NationalID,
		Birthday:         rec.Birthday,
		PastorName:       rec.PastorName,
		Reclassification: rec.Reclassification,
		ChurchPosition:   rec.ChurchPosition,
		Region:           rec.Region,
		City:             rec.City,
		Shift:            rec.Shift,
		Status:           rec.Status,
		AbsentReason:     rec.AbsentReason,
	}
}

// NameKey is the case-normalized form used for exact full-name matching.
func NameKey(fullName string) string {
	return strings.ToLower(strings.Join(strings.Fields(fullName), " "))
}
