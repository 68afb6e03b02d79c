package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"tessera/internal/compliance/models"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
	"tessera/pkg/platform/circuit"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

type Store interface {
	Get(ctx context.Context, party domain.PartyID) (*models.Approval, error)
	Save(ctx context.Context, approval *models.Approval) error
}

// Cache holds recent decisions. Cache failures never decide an outcome;
// the store is consulted instead.
type Cache interface {
	Get(ctx context.Context, party domain.PartyID) (approved, found bool, err error)
	Set(ctx context.Context, party domain.PartyID, approved bool) error
	Invalidate(ctx context.Context, party domain.PartyID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the compliance gate. It denies whenever it cannot prove approval.
type Service struct {
	store          Store
	cache          Cache
	breaker        *circuit.Breaker
	tx             tx.Runner
	operator       domain.PartyID
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

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithBreaker(breaker *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = breaker
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(store Store, operator domain.PartyID, opts ...Option) *Service {
	s := &Service{store: store, operator: operator}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("compliance-store")
	}
	if s.tx == nil {
		s.tx = tx.NewSharded()
	}
	return s
}

// IsApproved reports whether party may hold or move shares. Lookup failures
// and an open breaker both deny, returning an unavailable error alongside false.
func (s *Service) IsApproved(ctx context.Context, party domain.PartyID) (bool, error) {
	if party.IsNil() {
		return false, nil
	}
	if s.cache != nil {
		approved, found, err := s.cache.Get(ctx, party)
		if err != nil {
			s.warn(ctx, "compliance cache read failed", party, err)
		} else if found {
			return approved, nil
		}
	}

	approved := false
	approval, err := s.store.Get(ctx, party)
	switch {
	case err == nil:
		approved = approval.Approved
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.warn(ctx, "compliance breaker opened", party, err)
		}
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "compliance lookup failed")
	}

	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "compliance breaker closed", "breaker", s.breaker.Name())
	}
	if !usePrimary {
		return false, dErrors.New(dErrors.CodeUnavailable, "compliance checks are degraded")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, party, approved); err != nil {
			s.warn(ctx, "compliance cache write failed", party, err)
		}
	}
	return approved, nil
}

// Status returns the allowlist entry, or an unapproved placeholder.
func (s *Service) Status(ctx context.Context, party domain.PartyID) (*models.Approval, error) {
	approval, err := tx.Read(ctx, s.tx, lockKey(party), func(ctx context.Context) (*models.Approval, error) {
		return s.store.Get(ctx, party)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Approval{PartyID: party}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval")
	}
	return approval, nil
}

// Approve adds party to the allowlist.
func (s *Service) Approve(ctx context.Context, caller, party domain.PartyID, reason string) (*models.Approval, error) {
	return s.set(ctx, caller, party, true, reason)
}

// Revoke removes the approval. Existing holdings stay; the party can no longer trade.
func (s *Service) Revoke(ctx context.Context, caller, party domain.PartyID, reason string) (*models.Approval, error) {
	return s.set(ctx, caller, party, false, reason)
}

func (s *Service) set(ctx context.Context, caller, party domain.PartyID, approved bool, reason string) (*models.Approval, error) {
	if caller != s.operator {
		return nil, dErrors.New(dErrors.CodeNotAuthorized, "only the platform operator may change compliance status")
	}
	if party.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}

	approval := &models.Approval{
		PartyID:   party,
		Approved:  approved,
		Reason:    strings.TrimSpace(reason),
		UpdatedAt: requestcontext.Now(ctx),
	}
	event := audit.EventComplianceRevoked
	if approved {
		event = audit.EventComplianceApproved
	}

	err := s.tx.RunInTx(ctx, lockKey(party), func(ctx context.Context) error {
		if err := s.store.Save(ctx, approval); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save approval")
		}
		if s.auditPublisher != nil {
			if err := s.auditPublisher.Emit(ctx, audit.Event{
				PartyID:   party,
				Subject:   "compliance",
				Action:    string(event),
				Reference: approval.Reason,
				ActorID:   caller.String(),
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record compliance change")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, party); err != nil {
			s.warn(ctx, "compliance cache invalidation failed", party, err)
		}
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"party_id", party,
			"request_id", requestcontext.RequestID(ctx),
			"log_type", "audit",
		)
	}
	return approval, nil
}

func (s *Service) warn(ctx context.Context, msg string, party domain.PartyID, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg,
			"party_id", party,
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
}

func lockKey(party domain.PartyID) string {
	return "compliance:" + party.String()
}
