// Package service coordinates the statistical core with caches, stores,
// and the signal bus.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oddslab/syntharb/internal/arbitrage"
	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/stats"
)

// tickStream is the durable stream ticks are appended to for replay.
const tickStream = "stream:ticks"

// historyKey builds the engine series identifier for one market leg. The
// sport rides along in the key so refits can rebuild it without a lookup.
func historyKey(sport, gameID, market string) string {
	return sport + "|" + gameID + "|" + market
}

// parseHistoryKey splits an engine series identifier back into its parts.
func parseHistoryKey(key string) (sport, gameID, market string, ok bool) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// TickService ingests live odds ticks: it feeds the covariance engine,
// refreshes the odds cache, and fans the tick out on the signal bus.
type TickService struct {
	engine *stats.CovarianceEngine
	cache  domain.OddsCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewTickService creates a TickService.
func NewTickService(
	engine *stats.CovarianceEngine,
	cache domain.OddsCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *TickService {
	return &TickService{
		engine: engine,
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "tick_service")),
	}
}

// HandleTick processes one live observation. Cache and bus failures are
// logged but do not fail the tick; the engine update is the one part that
// must always happen.
func (s *TickService) HandleTick(ctx context.Context, tick domain.MarketTick) error {
	if tick.GameID == "" || tick.Market == "" {
		return fmt.Errorf("tick_service: tick missing game or market")
	}

	legValue := arbitrage.LegValue(&tick)
	if legValue > 0 {
		s.engine.UpdatePrice(historyKey(tick.Sport, tick.GameID, tick.Market), legValue, tick.Timestamp)
	}

	if s.cache != nil {
		if err := s.cache.SetOdds(ctx, tick.GameID, tick.Market, tick.Odds, tick.Timestamp); err != nil {
			s.logger.WarnContext(ctx, "set odds failed",
				slog.String("game_id", tick.GameID),
				slog.String("market", tick.Market),
				slog.String("error", err.Error()),
			)
		}
	}

	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("tick_service: marshal tick: %w", err)
	}
	if err := s.bus.Publish(ctx, "ticks", payload); err != nil {
		s.logger.WarnContext(ctx, "publish tick failed",
			slog.String("game_id", tick.GameID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, tickStream, payload); err != nil {
		s.logger.WarnContext(ctx, "append tick to stream failed",
			slog.String("game_id", tick.GameID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}
