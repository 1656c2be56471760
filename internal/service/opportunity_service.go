package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/notify"
)

// opportunityStream is the durable stream detected opportunities land on.
const opportunityStream = "stream:opportunities"

// OpportunityService records detected opportunities: it persists them,
// publishes them on the bus, and alerts operators.
type OpportunityService struct {
	store    domain.OpportunityStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewOpportunityService creates an OpportunityService. store, bus, and
// notifier may be nil.
func NewOpportunityService(
	store domain.OpportunityStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *OpportunityService {
	return &OpportunityService{
		store:    store,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "opportunity_service")),
	}
}

// opportunityEvent is the bus payload for a sized opportunity.
type opportunityEvent struct {
	domain.Opportunity
	PositionSize float64 `json:"position_size"`
}

// Record persists the opportunity and fans it out. Persistence failure is
// the only hard error; bus and notifier failures are logged and absorbed.
func (s *OpportunityService) Record(ctx context.Context, opp domain.Opportunity, size float64) error {
	if s.store != nil {
		if err := s.store.Insert(ctx, opp); err != nil {
			return fmt.Errorf("opportunity_service: insert %s: %w", opp.ID, err)
		}
	}

	payload, err := json.Marshal(opportunityEvent{Opportunity: opp, PositionSize: size})
	if err != nil {
		return fmt.Errorf("opportunity_service: marshal %s: %w", opp.ID, err)
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, "opportunities", payload); err != nil {
			s.logger.WarnContext(ctx, "publish opportunity failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.bus.StreamAppend(ctx, opportunityStream, payload); err != nil {
			s.logger.WarnContext(ctx, "append opportunity to stream failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "opportunity recorded",
		slog.String("opportunity_id", opp.ID),
		slog.String("game_id", opp.GameID),
		slog.Float64("mispricing", opp.Mispricing),
		slog.Float64("position_size", size),
	)

	if s.notifier != nil {
		title := fmt.Sprintf("Synthetic mispricing: %s", opp.GameID)
		msg := fmt.Sprintf(
			"%s vs %s\nmispricing %.2f sigma, EV %.4f\nstake %.0f, hedge %.0f (corr %.2f)",
			opp.PrimaryMarket, opp.HedgeMarket,
			opp.Mispricing, opp.ExpectedValue,
			size, opp.RequiredHedgeSize, opp.Correlation,
		)
		if err := s.notifier.Notify(ctx, "opportunity", title, msg); err != nil {
			s.logger.WarnContext(ctx, "opportunity notification failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// ListRecent returns the most recently detected opportunities.
func (s *OpportunityService) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListRecent(ctx, limit)
}
