// Package options holds the administrator-editable enum option sets that records
// are validated against.
package options

import (
	"context"
	"fmt"

	"checkin/internal/model"
)

// Option-set field names.
const (
	FieldReclassification = "reclassification"
	FieldChurchPosition   = "churchPosition"
	FieldShift            = "shift"
	FieldStatus           = "status"
)

// Fields lists every configurable field in a stable order.
var Fields = []string{FieldReclassification, FieldChurchPosition, FieldShift, FieldStatus}

// Set is a snapshot of the configured option lists.
type Set struct {
	Reclassification []string `json:"reclassificationOptions" yaml:"reclassificationOptions"`
	ChurchPosition   []string `json:"churchPositionOptions" yaml:"churchPositionOptions"`
	Shift            []string `json:"shiftOptions" yaml:"shiftOptions"`
	Status           []string `json:"statusOptions" yaml:"statusOptions"`
}

// Source yields the current option set.
type Source interface {
	Current(ctx context.Context) (Set, error)
}

// Values returns the list configured for field, or nil for an unknown field.
func (s Set) Values(field string) []string {
	switch field {
	case FieldReclassification:
		return s.Reclassification
	case FieldChurchPosition:
		return s.ChurchPosition
	case FieldShift:
		return s.Shift
	case FieldStatus:
		return s.Status
	}
	return nil
}

// Contains reports whether value is a member of field's list. Membership is exact.
func (s Set) Contains(field, value string) bool {
	for _, v := range s.Values(field) {
		if v == value {
			return true
		}
	}
	return false
}

// With returns a copy of s with field's list replaced.
func (s Set) With(field string, values []string) (Set, error) {
	cp := append([]string(nil), values...)
	switch field {
	case FieldReclassification:
		s.Reclassification = cp
	case FieldChurchPosition:
		s.ChurchPosition = cp
	case FieldShift:
		s.Shift = cp
	case FieldStatus:
		s.Status = cp
	default:
		return Set{}, fmt.Errorf("unknown option field %q", field)
	}
	return s, nil
}

// FillMissing copies lists from fallback for every field left empty in s.
func (s Set) FillMissing(fallback Set) Set {
	for _, f := range Fields {
		if len(s.Values(f)) == 0 {
			s, _ = s.With(f, fallback.Values(f))
		}
	}
	return s
}

// Static is a fixed, caller-supplied snapshot.
type Static Set

// Current returns the snapshot.
func (s Static) Current(context.Context) (Set, error) { return Set(s), nil }

// Default is the option set the organization shipped with.
func Default() Set {
	return Set{
		Reclassification: []string{"Local", "Setorial", "Central", "Casa de oração", "Estadual", "Regional"},
		ChurchPosition: []string{
			"Conselheiro(a)", "Financeiro(a)", "Secretário(a)", "Pastor", "Presbítero", "Diácono",
			"Dirigente 1", "Dirigente 2", "Dirigente 3", "Cooperador(a)", "Líder Reação",
			"Líder Simplifique", "Líder Creative", "Líder Discipulus", "Líder Adore",
			"Auxiliar Expansão (a)", "Etda Professor(a)", "Coordenador Etda (a)", "Líder Galileu (a)",
			"Líder Adote uma alma (a)", "Membro", "Outro",
		},
		Shift:  []string{model.ShiftMorning, model.ShiftAfternoon, model.ShiftEvening},
		Status: []string{model.StatusPresent, model.StatusAbsent, model.StatusExcused},
	}
}

// IsField reports whether name is a configurable field.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}
