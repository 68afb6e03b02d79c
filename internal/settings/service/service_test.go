package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"tessera/internal/settings/models"
	"tessera/internal/settings/store"
	"tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/audit"
)

type recordingPublisher struct {
	events []audit.Event
	err    error
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type SettingsServiceSuite struct {
	suite.Suite
	ctx       context.Context
	operator  domain.PartyID
	store     *store.InMemory
	publisher *recordingPublisher
	service   *Service
}

func TestSettingsServiceSuite(t *testing.T) {
	suite.Run(t, new(SettingsServiceSuite))
}

func (s *SettingsServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.operator = domain.NewPartyID()
	s.store = store.NewInMemory()
	s.publisher = &recordingPublisher{}
	svc, err := New(s.store, s.operator, WithAuditPublisher(s.publisher))
	s.Require().NoError(err)
	s.service = svc
}

func (s *SettingsServiceSuite) TestDefaults() {
	current, err := s.service.Current(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(250), current.PlatformFeeBP)
	s.Equal(int64(500), current.ManagerFeeBP)
	s.False(current.Paused)
}

func (s *SettingsServiceSuite) TestSetFees() {
	s.Run("operator updates both rates", func() {
		updated, err := s.service.SetFees(s.ctx, s.operator, 100, 300)
		s.Require().NoError(err)
		s.Equal(int64(100), updated.PlatformFeeBP)

		platformBP, managerBP, err := s.service.Fees(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(100), platformBP)
		s.Equal(int64(300), managerBP)
		s.Require().NotEmpty(s.publisher.events)
		s.Equal(string(audit.EventFeesUpdated), s.publisher.events[len(s.publisher.events)-1].Action)
	})

	s.Run("ceilings are inclusive", func() {
		_, err := s.service.SetFees(s.ctx, s.operator, models.MaxPlatformFeeBP, models.MaxManagerFeeBP)
		s.Require().NoError(err)
	})

	s.Run("platform fee above ceiling", func() {
		_, err := s.service.SetFees(s.ctx, s.operator, models.MaxPlatformFeeBP+1, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("manager fee above ceiling", func() {
		_, err := s.service.SetFees(s.ctx, s.operator, 0, models.MaxManagerFeeBP+1)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})

	s.Run("non-operator rejected", func() {
		_, err := s.service.SetFees(s.ctx, domain.NewPartyID(), 10, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})
}

func (s *SettingsServiceSuite) TestPause() {
	s.Require().NoError(s.service.EnsureNotPaused(s.ctx))

	_, err := s.service.Pause(s.ctx, domain.NewPartyID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))

	paused, err := s.service.Pause(s.ctx, s.operator)
	s.Require().NoError(err)
	s.True(paused.Paused)
	s.True(dErrors.HasCode(s.service.EnsureNotPaused(s.ctx), dErrors.CodePaused))

	_, err = s.service.SetFees(s.ctx, s.operator, 50, 50)
	s.Require().NoError(err, "fee changes stay available while paused")

	_, err = s.service.Unpause(s.ctx, s.operator)
	s.Require().NoError(err)
	s.Require().NoError(s.service.EnsureNotPaused(s.ctx))
}

func (s *SettingsServiceSuite) TestAuditFailureFailsTheChange() {
	s.publisher.err = errors.New("disk full")
	_, err := s.service.Pause(s.ctx, s.operator)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Require().NoError(s.service.EnsureNotPaused(s.ctx), "failed pause must not persist")
}

func (s *SettingsServiceSuite) TestNewValidatesInputs() {
	_, err := New(s.store, domain.PartyID{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = New(s.store, s.operator, WithDefaultFees(5000, 0))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
}
