package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"checkin/internal/audit"
	"checkin/internal/metrics"
	"checkin/internal/model"
	"checkin/internal/options"
	"checkin/internal/orgday"
	"checkin/internal/stats"
	"checkin/internal/validation"
)

// DefaultRepeatWindow suppresses the same status being re-applied by a double click.
const DefaultRepeatWindow = 5 * time.Minute

// ErrInvalidRange is returned by Report when to precedes from.
var ErrInvalidRange = errors.New("invalid day range")

// Policy decides what a submission does with a same-day duplicate.
type Policy string

const (
	// PolicyWarn persists the submission and returns the findings.
	PolicyWarn Policy = "warn"
	// PolicyBlock refuses a submission whose identifier already has a record today.
	PolicyBlock Policy = "block"
)

// ParsePolicy accepts "warn" or "block"; empty means warn.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyWarn:
		return PolicyWarn, nil
	case PolicyBlock:
		return PolicyBlock, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q", s)
}

// Outcome values reported by the service.
const (
	OutcomeInvalid        = "invalid"
	OutcomeBlocked        = "blocked"
	OutcomeCreated        = "created"
	OutcomeUpdated        = "updated"
	OutcomeRepeated       = "repeated"
	OutcomeAmbiguous      = "ambiguous"
	OutcomeAlreadyPresent = "already_present"
	OutcomeMarked         = "marked"
)

// SubmitResult is the answer to a registration or full-record edit.
type SubmitResult struct {
	Outcome        string            `json:"outcome"`
	Validation     validation.Result `json:"validation"`
	Duplicate      DuplicateResult   `json:"duplicate"`
	Similar        SimilarResult     `json:"similar"`
	Record         *model.Record     `json:"record,omitempty"`
	NewUpdateCount int               `json:"newUpdateCount,omitempty"`
}

// ScanResult is the answer to an identifier scan.
type ScanResult struct {
	Outcome        string            `json:"outcome"`
	Validation     validation.Result `json:"validation"`
	Record         *model.Record     `json:"record,omitempty"`
	Candidates     []model.RecordRef `json:"candidates,omitempty"`
	NewUpdateCount int               `json:"newUpdateCount,omitempty"`
}

// ChangeResult is the answer to a status change or partial edit.
type ChangeResult struct {
	Outcome        string            `json:"outcome"`
	Validation     validation.Result `json:"validation"`
	Record         *model.Record     `json:"record,omitempty"`
	NewUpdateCount int               `json:"newUpdateCount,omitempty"`
}

// Service composes validation, duplicate detection and the updater into the
// registration, scan and edit flows.
type Service struct {
	store     RecordStore
	options   options.Source
	cal       *orgday.Calendar
	detector  *Detector
	updater   *Updater
	log       *zap.Logger
	metrics   *metrics.Metrics
	publisher audit.Publisher
	now       func() time.Time
	repeat    time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metric collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher sets the audit publisher.
func WithPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRepeatWindow sets the repeated-status guard. Zero disables it.
func WithRepeatWindow(d time.Duration) Option {
	return func(s *Service) { s.repeat = d }
}

// NewService wires a service over store.
func NewService(store RecordStore, opts options.Source, cal *orgday.Calendar, optFns ...Option) *Service {
	s := &Service{
		store:     store,
		options:   opts,
		cal:       cal,
		log:       zap.NewNop(),
		publisher: audit.Discard{},
		now:       time.Now,
		repeat:    DefaultRepeatWindow,
	}
	for _, fn := range optFns {
		fn(s)
	}
	s.detector = NewDetector(store, cal)
	s.updater = NewUpdater(store, s.now)
	return s
}

// Detector exposes the duplicate detector used by the service.
func (s *Service) Detector() *Detector { return s.detector }

// Updater exposes the updater used by the service.
func (s *Service) Updater() *Updater { return s.updater }

// Calendar returns the organizational calendar.
func (s *Service) Calendar() *orgday.Calendar { return s.cal }

// Options returns the current option sets.
func (s *Service) Options(ctx context.Context) (options.Set, error) {
	set, err := s.options.Current(ctx)
	if err != nil {
		return options.Set{}, s.observe(fmt.Errorf("load options: %w", classify(err)))
	}
	return set, nil
}

// Validate checks c against the current option sets.
func (s *Service) Validate(ctx context.Context, c model.Candidate) (validation.Result, error) {
	opts, err := s.Options(ctx)
	if err != nil {
		return validation.Result{}, err
	}
	c.NationalID = validation.NormalizeNationalID(c.NationalID)
	return validation.Validate(c, opts), nil
}

// Submit validates c, checks it for duplicates and then creates a record or, when
// c.RecordID is set, overwrites that record's fields.
func (s *Service) Submit(ctx context.Context, c model.Candidate, editor string, policy Policy) (SubmitResult, error) {
	opts, err := s.Options(ctx)
	if err != nil {
		return SubmitResult{}, err
	}
	c = validation.Clean(c)
	c.NationalID = validation.NormalizeNationalID(c.NationalID)

	res := SubmitResult{Validation: validation.Validate(c, opts)}
	if !res.Validation.Valid {
		res.Outcome = OutcomeInvalid
		s.metrics.Submission(OutcomeInvalid)
		return res, nil
	}

	today := s.cal.Today(s.now())
	dup, err := s.detector.CheckDuplicate(ctx, c.NationalID, &today)
	if err != nil {
		return SubmitResult{}, s.observe(err)
	}
	res.Duplicate = withoutRecord(dup, c.RecordID)
	sim, err := s.detector.CheckSimilarName(ctx, c.FullName, c.NationalID)
	if err != nil {
		return SubmitResult{}, s.observe(err)
	}
	res.Similar = sim

	if res.Duplicate.IsDuplicate {
		s.metrics.Duplicate()
		s.publish(ctx, audit.New(audit.DuplicateFlagged, editorOrUnknown(editor), c.RecordID, s.now(), map[string]any{
			"nationalId": c.NationalID,
			"day":        today.String(),
			"matches":    res.Duplicate.Count,
			"policy":     string(policy),
		}))
	}
	if res.Similar.HasSimilar {
		s.metrics.Similar()
	}
	if policy == PolicyBlock && res.Duplicate.IsDuplicate {
		res.Outcome = OutcomeBlocked
		s.metrics.Submission(OutcomeBlocked)
		return res, nil
	}

	if c.RecordID == "" {
		rec := c.ToRecord()
		rec.ScanMethod = model.ScanMethodForm
		created, err := s.updater.Create(ctx, rec, editor)
		if err != nil {
			return SubmitResult{}, s.observe(err)
		}
		res.Outcome = OutcomeCreated
		res.Record = &created
		res.NewUpdateCount = created.UpdateCount
		s.metrics.Submission(OutcomeCreated)
		s.publish(ctx, audit.New(audit.RecordCreated, created.CreatedBy, created.ID, created.CreatedAt, map[string]any{
			"nationalId": created.NationalID,
			"status":     created.Status,
		}))
		s.log.Info("record created", zap.String("record_id", created.ID), zap.String("editor", created.CreatedBy))
		return res, nil
	}

	patch := PatchFromCandidate(c)
	upd, err := s.update(ctx, c.RecordID, patch, editor, c.ExpectedUpdateCount)
	if err != nil {
		return SubmitResult{}, err
	}
	res.Outcome = OutcomeUpdated
	res.Record = &upd.Record
	res.NewUpdateCount = upd.NewUpdateCount
	s.metrics.Submission(OutcomeUpdated)
	return res, nil
}

// Edit applies a partial patch after validating the merged record.
func (s *Service) Edit(ctx context.Context, recordID string, patch Patch, editor string, expected *int) (ChangeResult, error) {
	opts, err := s.Options(ctx)
	if err != nil {
		return ChangeResult{}, err
	}
	if patch.NationalID != nil {
		nid := validation.NormalizeNationalID(*patch.NationalID)
		patch.NationalID = &nid
	}
	if patch.Status != nil && *patch.Status == model.StatusPresent && patch.AbsentReason == nil {
		empty := ""
		patch.AbsentReason = &empty
	}
	cur, err := s.store.Get(ctx, recordID)
	if err != nil {
		return ChangeResult{}, s.observe(fmt.Errorf("get record %s: %w", recordID, err))
	}

	res := ChangeResult{Validation: validation.Validate(CandidateFrom(patch.Apply(cur)), opts)}
	if !res.Validation.Valid {
		res.Outcome = OutcomeInvalid
		s.metrics.Submission(OutcomeInvalid)
		return res, nil
	}
	upd, err := s.update(ctx, recordID, patch, editor, expected)
	if err != nil {
		return ChangeResult{}, err
	}
	res.Outcome = OutcomeUpdated
	res.Record = &upd.Record
	res.NewUpdateCount = upd.NewUpdateCount
	s.metrics.Submission(OutcomeUpdated)
	return res, nil
}

// SetStatus changes only the status of recordID. Re-applying the current status
// within the repeat window is reported as repeated and not written.
func (s *Service) SetStatus(ctx context.Context, recordID, status, absentReason, editor string, expected *int) (ChangeResult, error) {
	opts, err := s.Options(ctx)
	if err != nil {
		return ChangeResult{}, err
	}
	status = strings.TrimSpace(status)
	absentReason = strings.TrimSpace(absentReason)

	res := ChangeResult{Validation: validation.ValidateStatus(status, absentReason, opts)}
	if !res.Validation.Valid {
		res.Outcome = OutcomeInvalid
		return res, nil
	}

	cur, err := s.store.Get(ctx, recordID)
	if err != nil {
		return ChangeResult{}, s.observe(fmt.Errorf("get record %s: %w", recordID, err))
	}
	now := s.now()
	if s.repeat > 0 && cur.Status == status && now.Sub(cur.EventTime()) < s.repeat {
		res.Outcome = OutcomeRepeated
		res.Record = &cur
		res.NewUpdateCount = cur.UpdateCount
		s.publish(ctx, audit.New(audit.ScanRepeated, editorOrUnknown(editor), recordID, now, map[string]any{
			"status": status,
		}))
		return res, nil
	}

	if status == model.StatusPresent {
		absentReason = ""
	}
	ts := now.UTC()
	patch := Patch{Status: &status, AbsentReason: &absentReason, Timestamp: &ts}
	upd, err := s.update(ctx, recordID, patch, editor, expected)
	if err != nil {
		return ChangeResult{}, err
	}
	res.Outcome = OutcomeUpdated
	res.Record = &upd.Record
	res.NewUpdateCount = upd.NewUpdateCount
	return res, nil
}

// Scan marks the person identified by nationalID present. When several records
// share the identifier recordID selects one; without it the scan is ambiguous.
func (s *Service) Scan(ctx context.Context, nationalID, recordID, editor string) (ScanResult, error) {
	nid := validation.NormalizeNationalID(nationalID)
	if len(nid) != 11 {
		s.metrics.Scan(OutcomeInvalid)
		return ScanResult{
			Outcome: OutcomeInvalid,
			Validation: validation.Result{Errors: []validation.FieldError{{
				Field: "nationalId", Rule: validation.RuleNationalID, Message: "nationalId must contain exactly 11 digits",
			}}},
		}, nil
	}

	recs, err := s.store.FindByNationalID(ctx, nid)
	if err != nil {
		return ScanResult{}, s.observe(fmt.Errorf("find by national id: %w", err))
	}
	rec, ok, err := pick(recs, recordID)
	if err != nil {
		return ScanResult{}, err
	}
	res := ScanResult{Validation: validation.Result{Valid: true}}
	if !ok {
		res.Outcome = OutcomeAmbiguous
		for _, r := range recs {
			res.Candidates = append(res.Candidates, s.detector.Ref(r))
		}
		s.metrics.Scan(OutcomeAmbiguous)
		return res, nil
	}

	now := s.now()
	if rec.Status == model.StatusPresent && s.cal.Key(rec.EventTime()) == s.cal.Today(now) {
		res.Outcome = OutcomeAlreadyPresent
		res.Record = &rec
		res.NewUpdateCount = rec.UpdateCount
		s.metrics.Scan(OutcomeAlreadyPresent)
		return res, nil
	}

	status, reason, method, ts := model.StatusPresent, "", model.ScanMethodScanner, now.UTC()
	patch := Patch{Status: &status, AbsentReason: &reason, ScanMethod: &method, Timestamp: &ts}
	expected := rec.UpdateCount
	upd, err := s.update(ctx, rec.ID, patch, editor, &expected)
	if err != nil {
		s.metrics.Scan(Outcome(err))
		return ScanResult{}, err
	}
	res.Outcome = OutcomeMarked
	res.Record = &upd.Record
	res.NewUpdateCount = upd.NewUpdateCount
	s.metrics.Scan(OutcomeMarked)
	return res, nil
}

// Report aggregates every record attributed to from..to.
func (s *Service) Report(ctx context.Context, from, to orgday.Day) (stats.Report, error) {
	if to.Before(from) {
		return stats.Report{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to, from)
	}
	opts, err := s.Options(ctx)
	if err != nil {
		return stats.Report{}, err
	}
	acc := stats.NewAccumulator(from, to, s.cal, opts)
	if err := s.store.Scan(ctx, func(rec model.Record) error {
		acc.Add(rec)
		return nil
	}); err != nil {
		return stats.Report{}, s.observe(fmt.Errorf("scan records: %w", err))
	}
	return acc.Report(), nil
}

func (s *Service) update(ctx context.Context, recordID string, patch Patch, editor string, expected *int) (UpdateResult, error) {
	upd, err := s.updater.Update(ctx, recordID, patch, editor, expected)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.Conflict()
			s.publish(ctx, audit.New(audit.UpdateConflict, editorOrUnknown(editor), recordID, s.now(), map[string]any{
				"expectedUpdateCount": deref(expected),
			}))
			s.log.Info("update conflict", zap.String("record_id", recordID), zap.String("editor", editor))
		}
		return UpdateResult{}, s.observe(err)
	}
	s.publish(ctx, audit.New(audit.RecordUpdated, upd.Record.LastUpdatedBy, recordID, upd.Record.LastUpdated, map[string]any{
		"updateCount": upd.NewUpdateCount,
		"status":      upd.Record.Status,
	}))
	return upd, nil
}

func (s *Service) observe(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		s.metrics.Unavailable()
		s.log.Warn("record store unavailable", zap.Error(err))
	}
	return err
}

func (s *Service) publish(ctx context.Context, evt audit.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("audit publish failed", zap.String("type", evt.Type), zap.Error(err))
	}
}

// pick selects the record a scan applies to. ok is false when the choice is ambiguous.
func pick(recs []model.Record, recordID string) (model.Record, bool, error) {
	if recordID != "" {
		for _, r := range recs {
			if r.ID == recordID {
				return r, true, nil
			}
		}
		return model.Record{}, false, fmt.Errorf("record %s with that identifier: %w", recordID, ErrNotFound)
	}
	switch len(recs) {
	case 0:
		return model.Record{}, false, fmt.Errorf("no record with that identifier: %w", ErrNotFound)
	case 1:
		return recs[0], true, nil
	}
	return model.Record{}, false, nil
}

func withoutRecord(res DuplicateResult, recordID string) DuplicateResult {
	if recordID == "" {
		return res
	}
	kept := res.Matches[:0:0]
	for _, m := range res.Matches {
		if m.ID != recordID {
			kept = append(kept, m)
		}
	}
	res.Matches = kept
	res.Count = len(kept)
	res.IsDuplicate = res.Count > 0
	return res
}
