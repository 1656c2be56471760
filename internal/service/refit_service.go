package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddslab/syntharb/internal/arbitrage"
	"github.com/oddslab/syntharb/internal/config"
	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/notify"
	"github.com/oddslab/syntharb/internal/stats"
)

// RefitService periodically refits hedge relationships from the accumulated
// price histories and swaps the detector's table wholesale. Fitted
// parameters are also persisted and announced on the bus so other replicas
// can pick them up.
type RefitService struct {
	engine   *stats.CovarianceEngine
	detector *arbitrage.SyntheticDetector
	store    domain.RelationshipStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	pairs    []config.MarketPair
	interval time.Duration
	halfLife time.Duration
	logger   *slog.Logger
}

// NewRefitService creates a RefitService. store, bus, and notifier may be
// nil; refits then only update the in-process detector.
func NewRefitService(
	engine *stats.CovarianceEngine,
	detector *arbitrage.SyntheticDetector,
	store domain.RelationshipStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	pairs []config.MarketPair,
	interval, halfLife time.Duration,
	logger *slog.Logger,
) *RefitService {
	return &RefitService{
		engine:   engine,
		detector: detector,
		store:    store,
		bus:      bus,
		notifier: notifier,
		pairs:    pairs,
		interval: interval,
		halfLife: halfLife,
		logger:   logger.With(slog.String("component", "refit_service")),
	}
}

// Run refits on the configured interval until ctx is cancelled.
func (s *RefitService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("refit service started", slog.Duration("interval", s.interval))
	defer s.logger.Info("refit service stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := s.RefitOnce(ctx, now.UTC()); err != nil {
				s.logger.ErrorContext(ctx, "refit pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RefitOnce fits every configured pair for every game with history and
// installs the resulting table. Pairs without enough aligned samples are
// skipped; they are expected early in a session. Returns the number of
// relationships fitted.
func (s *RefitService) RefitOnce(ctx context.Context, now time.Time) (int, error) {
	games := s.groupHistories()

	var rels []domain.MarketRelationship
	for game, markets := range games {
		for _, pair := range s.pairs {
			pKey, okP := markets[pair.Primary]
			hKey, okH := markets[pair.Hedge]
			if !okP || !okH {
				continue
			}

			primary, hedge := s.engine.AlignedHistories(pKey, hKey)
			params, err := s.engine.CalculateHedgeRatio(primary, hedge)
			if err != nil {
				if errors.Is(err, domain.ErrInsufficientData) {
					s.logger.Debug("skipping pair, not enough samples",
						slog.String("game_id", game.gameID),
						slog.String("primary", pair.Primary),
						slog.String("hedge", pair.Hedge),
						slog.Int("samples", len(primary)),
					)
					continue
				}
				return len(rels), fmt.Errorf("refit_service: fit %s %s/%s: %w",
					game.gameID, pair.Primary, pair.Hedge, err)
			}

			rels = append(rels, domain.MarketRelationship{
				GameID:         game.gameID,
				Sport:          game.sport,
				PrimaryMarket:  pair.Primary,
				HedgeMarket:    pair.Hedge,
				Covariance:     stats.Covariance(primary, hedge),
				Correlation:    params.Correlation,
				HedgeRatio:     params.Ratio,
				Beta:           params.Ratio,
				HalfLife:       s.halfLife,
				ResidualStdDev: params.ResidualStdDev,
				Confidence:     params.Confidence,
				LastUpdated:    now,
			})
		}
	}

	s.detector.UpdateRelationships(rels)
	s.persist(ctx, rels)
	s.announce(ctx, rels, now)

	s.logger.Info("refit pass complete",
		slog.Int("relationships", len(rels)),
		slog.Int("games", len(games)),
	)
	return len(rels), nil
}

type gameKey struct {
	sport  string
	gameID string
}

// groupHistories indexes the engine's series keys by game and market.
func (s *RefitService) groupHistories() map[gameKey]map[string]string {
	games := make(map[gameKey]map[string]string)
	for _, key := range s.engine.Markets() {
		sport, gameID, market, ok := parseHistoryKey(key)
		if !ok {
			continue
		}
		gk := gameKey{sport: sport, gameID: gameID}
		if games[gk] == nil {
			games[gk] = make(map[string]string)
		}
		games[gk][market] = key
	}
	return games
}

// persist upserts each fitted relationship. A failed row is logged and
// skipped; the in-process table already holds the fresh fit.
func (s *RefitService) persist(ctx context.Context, rels []domain.MarketRelationship) {
	if s.store == nil {
		return
	}
	for _, rel := range rels {
		if err := s.store.Upsert(ctx, rel); err != nil {
			s.logger.WarnContext(ctx, "persist relationship failed",
				slog.String("game_id", rel.GameID),
				slog.String("primary", rel.PrimaryMarket),
				slog.String("hedge", rel.HedgeMarket),
				slog.String("error", err.Error()),
			)
		}
	}
}

// announce publishes a refit summary on the bus and notifies operators.
func (s *RefitService) announce(ctx context.Context, rels []domain.MarketRelationship, now time.Time) {
	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":         "refit",
			"relationships": len(rels),
			"timestamp":     now.Format(time.RFC3339Nano),
		})
		if err := s.bus.Publish(ctx, "relationships", evt); err != nil {
			s.logger.WarnContext(ctx, "publish refit event failed", slog.String("error", err.Error()))
		}
	}
	if s.notifier != nil && len(rels) > 0 {
		msg := fmt.Sprintf("Fitted %d hedge relationships at %s", len(rels), now.Format(time.RFC3339))
		if err := s.notifier.Notify(ctx, "refit", "Refit complete", msg); err != nil {
			s.logger.WarnContext(ctx, "refit notification failed", slog.String("error", err.Error()))
		}
	}
}
