package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alpharequest/requestmanager/internal/domain"
	"github.com/alpharequest/requestmanager/internal/ninja"
	"github.com/alpharequest/requestmanager/internal/observability"
	"github.com/alpharequest/requestmanager/internal/repository"
)

// ExternalTicketClient is the slice of the NinjaOne API the sync loop needs.
type ExternalTicketClient interface {
	GetTicket(ctx context.Context, ticketID int64) (*ninja.Ticket, error)
	GetApprovalOutcome(ctx context.Context, ticketID int64) (ninja.Outcome, error)
}

// SyncService reconciles locally open tickets against their NinjaOne
// counterparts. One direction only: external closure folds into the local
// status, never the reverse.
type SyncService struct {
	tickets  repository.TicketRepository
	external ExternalTicketClient
	apply    OutcomeApplier
	interval time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// OutcomeApplier folds a terminal external outcome into a local ticket.
// Satisfied by TicketService.ApplyExternalOutcome.
type OutcomeApplier func(ctx context.Context, ticketID int64, outcome domain.RequestStatus, comment string) (bool, error)

// SyncDependencies bundles collaborators for the sync service.
type SyncDependencies struct {
	TicketRepo repository.TicketRepository
	External   ExternalTicketClient
	Apply      OutcomeApplier
	Interval   time.Duration
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewSyncService constructs the service.
func NewSyncService(deps SyncDependencies) *SyncService {
	return &SyncService{
		tickets:  deps.TicketRepo,
		external: deps.External,
		apply:    deps.Apply,
		interval: deps.Interval,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Run polls until the context is cancelled. The first tick fires after one
// full interval so startup never races the migrations.
func (s *SyncService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reconciliation loop started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation loop stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass. A failing ticket is logged and skipped;
// it never aborts the rest of the pass.
func (s *SyncService) Tick(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordSyncTick()
	}

	pending, err := s.tickets.ListPendingSync(ctx)
	if err != nil {
		s.logger.Error("listing tickets pending sync failed", zap.Error(err))
		return
	}

	for i := range pending {
		ticket := &pending[i]
		if err := s.reconcile(ctx, ticket); err != nil {
			if s.metrics != nil {
				s.metrics.RecordSyncFailure()
			}
			s.logger.Warn("reconciling ticket failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.Int64("ninja_ticket_id", ticket.NinjaTicketID()),
				zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *SyncService) reconcile(ctx context.Context, ticket *domain.Ticket) error {
	ninjaID := ticket.NinjaTicketID()
	if ninjaID == 0 {
		return nil
	}

	external, err := s.external.GetTicket(ctx, ninjaID)
	if err != nil {
		return err
	}
	if !external.IsClosed() {
		return nil
	}

	outcome, err := s.external.GetApprovalOutcome(ctx, ninjaID)
	if err != nil {
		return err
	}

	var target domain.RequestStatus
	switch outcome {
	case ninja.OutcomeApproved:
		target = domain.StatusArchived
	case ninja.OutcomeRejected:
		target = domain.StatusRejected
	default:
		// closed without a recorded sign-off; leave the local ticket alone
		// until a human decides
		s.logger.Warn("external ticket closed without approval outcome",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("ninja_ticket_id", ninjaID))
		return nil
	}

	applied, err := s.apply(ctx, ticket.ID, target, external.CommentAttribute())
	if err != nil {
		return err
	}
	if applied {
		if s.metrics != nil {
			s.metrics.RecordSyncApplied()
		}
		s.logger.Info("ticket reconciled from external system",
			zap.Int64("ticket_id", ticket.ID),
			zap.Int64("ninja_ticket_id", ninjaID),
			zap.String("outcome", string(target)))
	}
	return nil
}
