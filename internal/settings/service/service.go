package service

import (
	"context"
	"errors"
	"log/slog"

	"tessera/internal/settings/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

const settingsLockKey = "platform:settings"

type Store interface {
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns fee rates and the global pause switch. Only the platform
// operator may change either.
type Service struct {
	store          Store
	tx             tx.Runner
	operator       domain.PartyID
	defaults       models.Settings
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithTxRunner sets the runner that makes a change and its audit event atomic.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// WithDefaultFees sets the rates in effect until the operator saves new ones.
func WithDefaultFees(platformBP, managerBP int64) Option {
	return func(s *Service) {
		s.defaults.PlatformFeeBP = platformBP
		s.defaults.ManagerFeeBP = managerBP
	}
}

func New(store Store, operator domain.PartyID, opts ...Option) (*Service, error) {
	if operator.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "platform operator is required")
	}
	s := &Service{
		store:    store,
		operator: operator,
		defaults: models.Settings{PlatformFeeBP: 250, ManagerFeeBP: 500},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewSharded()
	}
	if err := models.ValidateFees(s.defaults.PlatformFeeBP, s.defaults.ManagerFeeBP); err != nil {
		return nil, err
	}
	return s, nil
}

// Operator returns the platform operator party.
func (s *Service) Operator() domain.PartyID {
	return s.operator
}

// Current returns the persisted settings, or the defaults when none were saved.
func (s *Service) Current(ctx context.Context) (*models.Settings, error) {
	current, err := tx.Read(ctx, s.tx, settingsLockKey, s.store.Get)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			d := s.defaults
			return &d, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	return current, nil
}

// Fees returns the platform and manager rates in basis points.
func (s *Service) Fees(ctx context.Context) (platformBP, managerBP int64, err error) {
	current, err := s.Current(ctx)
	if err != nil {
		return 0, 0, err
	}
	return current.PlatformFeeBP, current.ManagerFeeBP, nil
}

// EnsureNotPaused fails with CodePaused while the platform is paused.
// Mutating entry points call it before any other check.
func (s *Service) EnsureNotPaused(ctx context.Context) error {
	current, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if current.Paused {
		return dErrors.New(dErrors.CodePaused, "platform is paused")
	}
	return nil
}

// SetFees replaces both fee rates. Pausing does not block fee changes.
func (s *Service) SetFees(ctx context.Context, caller domain.PartyID, platformBP, managerBP int64) (*models.Settings, error) {
	if err := s.requireOperator(caller); err != nil {
		return nil, err
	}
	if err := models.ValidateFees(platformBP, managerBP); err != nil {
		return nil, err
	}
	var current *models.Settings
	err := s.tx.RunInTx(ctx, settingsLockKey, func(ctx context.Context) error {
		var err error
		current, err = s.Current(ctx)
		if err != nil {
			return err
		}
		current.PlatformFeeBP = platformBP
		current.ManagerFeeBP = managerBP
		current.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Save(ctx, current); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save settings")
		}
		if err := s.logAudit(ctx, audit.EventFeesUpdated, caller,
			"platform_fee_bp", platformBP,
			"manager_fee_bp", managerBP,
		); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record fee change")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Pause halts every mutating ledger and distribution operation.
func (s *Service) Pause(ctx context.Context, caller domain.PartyID) (*models.Settings, error) {
	return s.setPaused(ctx, caller, true)
}

// Unpause resumes normal operation.
func (s *Service) Unpause(ctx context.Context, caller domain.PartyID) (*models.Settings, error) {
	return s.setPaused(ctx, caller, false)
}

func (s *Service) setPaused(ctx context.Context, caller domain.PartyID, paused bool) (*models.Settings, error) {
	if err := s.requireOperator(caller); err != nil {
		return nil, err
	}
	var current *models.Settings
	err := s.tx.RunInTx(ctx, settingsLockKey, func(ctx context.Context) error {
		var err error
		current, err = s.Current(ctx)
		if err != nil {
			return err
		}
		if current.Paused == paused {
			return nil
		}
		current.Paused = paused
		current.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Save(ctx, current); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save settings")
		}

		event := audit.EventPlatformUnpaused
		if paused {
			event = audit.EventPlatformPaused
		}
		if err := s.logAudit(ctx, event, caller); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record pause change")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Service) requireOperator(caller domain.PartyID) error {
	if caller != s.operator {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the platform operator may change settings")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, actor domain.PartyID, attributes ...any) error {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "actor_id", actor.String(), "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event), args...)
	}
	if s.auditPublisher == nil {
		return nil
	}
	return s.auditPublisher.Emit(ctx, audit.Event{
		PartyID: actor,
		Subject: "platform",
		Action:  string(event),
		ActorID: actor.String(),
	})
}
