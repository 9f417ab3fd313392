package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"checkin/internal/audit"
	"checkin/internal/model"
	"checkin/internal/permissions"
)

// Reconciliation is the drift found on one profile.
type Reconciliation struct {
	UserID string              `json:"userId"`
	Email  string              `json:"email"`
	Drift  []permissions.Drift `json:"drift"`
}

// Service implements the account lifecycle.
type Service struct {
	store     Store
	gate      *permissions.Gate
	log       *zap.Logger
	publisher audit.Publisher
	now       func() time.Time
}

// NewService creates a service. A nil publisher discards audit events.
func NewService(store Store, gate *permissions.Gate, log *zap.Logger, publisher audit.Publisher) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if publisher == nil {
		publisher = audit.Discard{}
	}
	return &Service{store: store, gate: gate, log: log, publisher: publisher, now: time.Now}
}

// Gate returns the privileged allow-list.
func (s *Service) Gate() *permissions.Gate { return s.gate }

// EnsureUser returns the profile for email, creating a user-role profile on
// first authentication.
func (s *Service) EnsureUser(ctx context.Context, email, displayName string) (model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return model.User{}, fmt.Errorf("ensure user: empty email: %w", ErrNotFound)
	}
	u, err := s.store.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.User{}, fmt.Errorf("load user %s: %w", email, err)
	}

	now := s.now().UTC()
	u = permissions.Apply(model.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, permissions.Resolve(string(permissions.RoleUser)))
	if err := s.store.Save(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("create user %s: %w", email, err)
	}
	s.publish(ctx, audit.New(audit.UserCreated, email, u.ID, now, map[string]any{"role": u.Role}))
	s.log.Info("user created", zap.String("user_id", u.ID), zap.String("email", email))
	return u, nil
}

// Capabilities resolves what email may do. Inactive accounts get nothing.
func (s *Service) Capabilities(ctx context.Context, email string) (permissions.Capabilities, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return permissions.Capabilities{}, err
	}
	if !u.Active {
		return permissions.None(), nil
	}
	return permissions.Resolve(u.Role), nil
}

// SetRole changes targetID's role and recomputes its derived fields.
func (s *Service) SetRole(ctx context.Context, actor, targetID, role string) (model.User, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return model.User{}, err
	}
	r, ok := permissions.ParseRole(role)
	if !ok {
		return model.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	u, err := s.store.Get(ctx, targetID)
	if err != nil {
		return model.User{}, err
	}
	previous := u.Role
	u = permissions.Apply(u, permissions.Resolve(string(r)))
	u.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("save user %s: %w", targetID, err)
	}
	s.publish(ctx, audit.New(audit.UserRoleChanged, NormalizeEmail(actor), u.ID, u.UpdatedAt, map[string]any{
		"from": previous,
		"to":   u.Role,
	}))
	s.log.Info("role changed", zap.String("user_id", u.ID), zap.String("from", previous), zap.String("to", u.Role))
	return u, nil
}

// Deactivate soft-deactivates targetID, keeping both activity flags in step.
func (s *Service) Deactivate(ctx context.Context, actor, targetID string) (model.User, error) {
	if err := s.authorize(ctx, actor); err != nil {
		return model.User{}, err
	}
	u, err := s.store.Get(ctx, targetID)
	if err != nil {
		return model.User{}, err
	}
	u.Active = false
	u.IsActive = false
	u.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("save user %s: %w", targetID, err)
	}
	s.publish(ctx, audit.New(audit.UserDeactivated, NormalizeEmail(actor), u.ID, u.UpdatedAt, nil))
	return u, nil
}

// ReconcileAll recomputes every stored profile from its role, saves the ones
// that drifted, and returns what changed.
func (s *Service) ReconcileAll(ctx context.Context, actor string) ([]Reconciliation, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := []Reconciliation{}
	for _, u := range users {
		fixed, drift := permissions.Reconcile(u)
		if len(drift) == 0 {
			continue
		}
		fixed.UpdatedAt = s.now().UTC()
		if err := s.store.Save(ctx, fixed); err != nil {
			return out, fmt.Errorf("save user %s: %w", u.ID, err)
		}
		out = append(out, Reconciliation{UserID: u.ID, Email: u.Email, Drift: drift})
		s.publish(ctx, audit.New(audit.UserReconciled, NormalizeEmail(actor), u.ID, fixed.UpdatedAt, map[string]any{
			"fields": len(drift),
		}))
	}
	s.log.Info("profiles reconciled", zap.Int("checked", len(users)), zap.Int("corrected", len(out)))
	return out, nil
}

func (s *Service) authorize(ctx context.Context, actor string) error {
	if s.gate.IsPrivileged(actor) {
		return nil
	}
	caps, err := s.Capabilities(ctx, actor)
	if errors.Is(err, ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if !caps.CanManageUsers {
		return ErrForbidden
	}
	return nil
}

func (s *Service) publish(ctx context.Context, evt audit.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("audit publish failed", zap.String("type", evt.Type), zap.Error(err))
	}
}
