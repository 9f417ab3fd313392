package model

import "time"

// Canonical status values. Only StatusPresent carries meaning inside the engine.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusExcused = "excused"
)

// Canonical shift values.
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftEvening   = "evening"
)

// Scan methods recorded on the last presence mark.
const (
	ScanMethodForm    = "form"
	ScanMethodScanner = "scanner"
)

// Record is one person's attendance record. Status holds the current state and is
// overwritten on each check-in.
type Record struct {
	ID               string    `json:"id"`
	FullName         string    `json:"fullName"`
	NationalID       string    `json:"nationalId"`
	Birthday         string    `json:"birthday,omitempty"`
	PastorName       string    `json:"pastorName,omitempty"`
	Reclassification string    `json:"reclassification"`
	ChurchPosition   string    `json:"churchPosition"`
	Region           string    `json:"region"`
	City             string    `json:"city"`
	Shift            string    `json:"shift"`
	Status           string    `json:"status"`
	AbsentReason     string    `json:"absentReason,omitempty"`
	ScanMethod       string    `json:"scanMethod,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	CreatedAt        time.Time `json:"createdAt"`
	CreatedBy        string    `json:"createdBy"`
	UpdateCount      int       `json:"updateCount"`
	LastUpdatedBy    string    `json:"lastUpdatedBy"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// Candidate is a registration or edit submission. NationalID is expected to be
// normalized to digits by the caller.
type Candidate struct {
	RecordID            string `json:"recordId,omitempty"`
	ExpectedUpdateCount *int   `json:"expectedUpdateCount,omitempty"`

	FullName         string `json:"fullName" validate:"required,min=3"`
	NationalID       string `json:"nationalId" validate:"required,national_id"`
	Birthday         string `json:"birthday,omitempty"`
	PastorName       string `json:"pastorName,omitempty"`
	Reclassification string `json:"reclassification" validate:"required"`
	ChurchPosition   string `json:"churchPosition" validate:"required"`
	Region           string `json:"region" validate:"required"`
	City             string `json:"city" validate:"required,min=2"`
	Shift            string `json:"shift" validate:"required"`
	Status           string `json:"status" validate:"required"`
	AbsentReason     string `json:"absentReason,omitempty"`
}

// EventTime is the instant the record is attributed to: its event timestamp,
// or its creation time when it never had one.
func (r Record) EventTime() time.Time {
	if !r.Timestamp.IsZero() {
		return r.Timestamp
	}
	return r.CreatedAt
}

// ToRecord copies the candidate's data fields into a new record.
func (c Candidate) ToRecord() Record {
	return Record{
		ID:               c.RecordID,
		FullName:         c.FullName,
		NationalID:       c.NationalID,
		Birthday:         c.Birthday,
		PastorName:       c.PastorName,
		Reclassification: c.Reclassification,
		ChurchPosition:   c.ChurchPosition,
		Region:           c.Region,
		City:             c.City,
		Shift:            c.Shift,
		Status:           c.Status,
		AbsentReason:     c.AbsentReason,
	}
}

// RecordRef is the projection returned with duplicate and similarity findings.
type RecordRef struct {
	ID             string    `json:"id"`
	FullName       string    `json:"fullName"`
	NationalID     string    `json:"nationalId"`
	Region         string    `json:"region"`
	ChurchPosition string    `json:"churchPosition"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Day            string    `json:"day"`
	LastUpdatedBy  string    `json:"lastUpdatedBy"`
}

// User is an account profile. Role is authoritative; the remaining capability
// fields are a cache derived from it.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"displayName"`
	Role              string    `json:"role"`
	UserType          string    `json:"userType"`
	Active            bool      `json:"active"`
	IsActive          bool      `json:"isActive"`
	Permissions       []string  `json:"permissions"`
	CanEditAttendance bool      `json:"canEditAttendance"`
	CanViewAttendance bool      `json:"canViewAttendance"`
	CanManageUsers    bool      `json:"canManageUsers"`
	CanAccessReports  bool      `json:"canAccessReports"`
	CanRegister       bool      `json:"canRegister"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
