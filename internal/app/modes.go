package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddslab/syntharb/internal/arbitrage"
	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/feed"
	"github.com/oddslab/syntharb/internal/risk"
	"github.com/oddslab/syntharb/internal/server"
	"github.com/oddslab/syntharb/internal/server/handler"
	"github.com/oddslab/syntharb/internal/service"
	"github.com/oddslab/syntharb/internal/stats"
)

// core bundles the in-process statistical components shared by the modes.
type core struct {
	engine   *stats.CovarianceEngine
	detector *arbitrage.SyntheticDetector
	riskMgr  *risk.Manager
}

// buildCore constructs the engine, detector, and risk manager from config.
func (a *App) buildCore() *core {
	return &core{
		engine: stats.NewCovarianceEngine(stats.EngineConfig{
			MinSamples: a.cfg.Engine.MinSamples,
			Capacity:   a.cfg.Engine.Capacity,
		}),
		detector: arbitrage.NewSyntheticDetector(arbitrage.DetectorConfig{
			ZThreshold:     a.cfg.Detector.ZThreshold,
			MinCorrelation: a.cfg.Detector.MinCorrelation,
			MinConfidence:  a.cfg.Detector.MinConfidence,
			TailRiskCap:    a.cfg.Detector.TailRiskCap,
			ReferenceStake: a.cfg.Detector.ReferenceStake,
		}, a.logger),
		riskMgr: risk.NewManager(risk.ManagerConfig{
			Bankroll:            a.cfg.Risk.Bankroll,
			MaxBankrollFraction: a.cfg.Risk.MaxBankrollFraction,
			MinCorrelation:      a.cfg.Risk.MinCorrelation,
			TailRiskCap:         a.cfg.Risk.TailRiskCap,
			HedgeSizeBase:       a.cfg.Risk.HedgeSizeBase,
		}, a.logger),
	}
}

// warmStart installs the persisted relationship table so detection does not
// wait a full refit interval after a restart.
func (a *App) warmStart(ctx context.Context, deps *Dependencies, c *core) {
	if deps.RelationshipStore == nil {
		return
	}
	rels, err := deps.RelationshipStore.List(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "warm start: load relationships failed",
			slog.String("error", err.Error()),
		)
		return
	}
	c.detector.UpdateRelationships(rels)
	a.logger.InfoContext(ctx, "warm start: relationship table installed",
		slog.Int("relationships", len(rels)),
	)
}

// DetectMode runs the full live pipeline: odds feed, tick ingestion, refits,
// detection with risk gating, and the HTTP API.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore()
	a.warmStart(ctx, deps, c)

	tickSvc := service.NewTickService(c.engine, deps.OddsCache, deps.SignalBus, a.logger)
	oppSvc := service.NewOpportunityService(deps.OpportunityStore, deps.SignalBus, deps.Notifier, a.logger)
	refitSvc := service.NewRefitService(
		c.engine, c.detector, deps.RelationshipStore, deps.SignalBus, deps.Notifier,
		a.cfg.Feed.Pairs, a.cfg.Refit.RefitInterval(), a.cfg.Refit.HalfLife(), a.logger,
	)
	feeder := feed.NewDetectorFeeder(
		deps.SignalBus, c.detector, c.riskMgr, oppSvc,
		a.cfg.Feed.Pairs, a.cfg.Feed.StaleAfter(), a.logger,
	)

	g.Go(func() error { return feeder.Run(ctx) })
	g.Go(func() error { return refitSvc.Run(ctx) })
	a.startOddsFeed(ctx, g, tickSvc)
	a.startHTTPServer(ctx, g, c, oppSvc)

	return g.Wait()
}

// RefitMode ingests ticks and fits relationships without detecting. Useful
// for building up a persisted table before enabling live detection.
func (a *App) RefitMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting refit mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore()
	a.warmStart(ctx, deps, c)

	tickSvc := service.NewTickService(c.engine, deps.OddsCache, deps.SignalBus, a.logger)
	oppSvc := service.NewOpportunityService(deps.OpportunityStore, deps.SignalBus, deps.Notifier, a.logger)
	refitSvc := service.NewRefitService(
		c.engine, c.detector, deps.RelationshipStore, deps.SignalBus, deps.Notifier,
		a.cfg.Feed.Pairs, a.cfg.Refit.RefitInterval(), a.cfg.Refit.HalfLife(), a.logger,
	)

	g.Go(func() error { return refitSvc.Run(ctx) })
	a.startOddsFeed(ctx, g, tickSvc)
	a.startHTTPServer(ctx, g, c, oppSvc)

	return g.Wait()
}

// MonitorMode serves the HTTP API over the persisted stores without
// consuming the feed. The relationship table is reloaded periodically so
// the API tracks refits done by other replicas.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore()
	a.warmStart(ctx, deps, c)

	oppSvc := service.NewOpportunityService(deps.OpportunityStore, deps.SignalBus, deps.Notifier, a.logger)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Refit.RefitInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.warmStart(ctx, deps, c)
			}
		}
	})
	a.startHTTPServer(ctx, g, c, oppSvc)

	return g.Wait()
}

// FullMode runs detect mode plus the S3 archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore()
	a.warmStart(ctx, deps, c)

	tickSvc := service.NewTickService(c.engine, deps.OddsCache, deps.SignalBus, a.logger)
	oppSvc := service.NewOpportunityService(deps.OpportunityStore, deps.SignalBus, deps.Notifier, a.logger)
	refitSvc := service.NewRefitService(
		c.engine, c.detector, deps.RelationshipStore, deps.SignalBus, deps.Notifier,
		a.cfg.Feed.Pairs, a.cfg.Refit.RefitInterval(), a.cfg.Refit.HalfLife(), a.logger,
	)
	feeder := feed.NewDetectorFeeder(
		deps.SignalBus, c.detector, c.riskMgr, oppSvc,
		a.cfg.Feed.Pairs, a.cfg.Feed.StaleAfter(), a.logger,
	)

	g.Go(func() error { return feeder.Run(ctx) })
	g.Go(func() error { return refitSvc.Run(ctx) })
	a.startOddsFeed(ctx, g, tickSvc)
	a.startHTTPServer(ctx, g, c, oppSvc)

	if deps.Archiver != nil {
		g.Go(func() error { return a.runArchiver(ctx, deps) })
	}

	return g.Wait()
}

// startOddsFeed launches the WebSocket feed when an endpoint is configured.
func (a *App) startOddsFeed(ctx context.Context, g *errgroup.Group, tickSvc *service.TickService) {
	if a.cfg.Feed.WsURL == "" {
		a.logger.InfoContext(ctx, "no feed endpoint configured, running without live ticks")
		return
	}
	wsFeed := feed.NewOddsWSFeed(a.cfg.Feed.WsURL, func(ctx context.Context, tick domain.MarketTick) {
		if err := tickSvc.HandleTick(ctx, tick); err != nil {
			a.logger.DebugContext(ctx, "tick rejected",
				slog.String("game_id", tick.GameID),
				slog.String("error", err.Error()),
			)
		}
	}, a.logger)
	g.Go(func() error {
		defer wsFeed.Close()
		return wsFeed.Run(ctx)
	})
}

// startHTTPServer launches the API server and shuts it down with the group.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, c *core, oppSvc *service.OpportunityService) {
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Relationships: handler.NewRelationshipHandler(c.detector, a.logger),
		Opportunities: handler.NewOpportunityHandler(oppSvc, a.logger),
		Stats:         handler.NewStatsHandler(c.engine, c.detector, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:   a.cfg.Server.Port,
		APIKey: a.cfg.Server.APIKey,
	}, handlers, a.logger)

	g.Go(func() error { return srv.Start() })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}

// runArchiver ages out old opportunities on the configured cadence.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	interval := time.Duration(a.cfg.Archive.IntervalMin) * time.Minute
	retain := time.Duration(a.cfg.Archive.RetainHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "archiver started",
		slog.Duration("interval", interval),
		slog.Duration("retain", retain),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := deps.Archiver.Archive(ctx, now.UTC().Add(-retain)); err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
