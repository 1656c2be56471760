package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddslab/syntharb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityColumns = `id, game_id, sport, primary_market, hedge_market,
	primary_exchange, hedge_exchange, primary_value, hedge_value, model_implied,
	mispricing, expected_value, tail_risk, required_hedge_size, correlation,
	confidence, detected_at`

// Insert persists a detected opportunity. Re-inserting the same detector ID
// is a no-op: the deterministic ID makes duplicate ticks idempotent.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (id, game_id, sport, primary_market, hedge_market,
			primary_exchange, hedge_exchange, primary_value, hedge_value, model_implied,
			mispricing, expected_value, tail_risk, required_hedge_size, correlation,
			confidence, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.GameID, opp.Sport, opp.PrimaryMarket, opp.HedgeMarket,
		opp.PrimaryExchange, opp.HedgeExchange, opp.PrimaryValue, opp.HedgeValue,
		opp.ModelImplied, opp.Mispricing, opp.ExpectedValue, opp.TailRisk,
		opp.RequiredHedgeSize, opp.Correlation, opp.Confidence, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities
		ORDER BY detected_at DESC LIMIT $1`
	return s.queryOpportunities(ctx, query, limit)
}

// ListBefore returns opportunities detected before the cutoff, oldest
// first, for archiving.
func (s *OpportunityStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities
		WHERE detected_at < $1 ORDER BY detected_at ASC LIMIT $2`
	return s.queryOpportunities(ctx, query, cutoff, limit)
}

// DeleteBefore removes opportunities detected before the cutoff and
// returns the number of rows deleted.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

func (s *OpportunityStore) queryOpportunities(ctx context.Context, query string, args ...any) ([]domain.Opportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		if err := rows.Scan(
			&opp.ID, &opp.GameID, &opp.Sport, &opp.PrimaryMarket, &opp.HedgeMarket,
			&opp.PrimaryExchange, &opp.HedgeExchange, &opp.PrimaryValue, &opp.HedgeValue,
			&opp.ModelImplied, &opp.Mispricing, &opp.ExpectedValue, &opp.TailRisk,
			&opp.RequiredHedgeSize, &opp.Correlation, &opp.Confidence, &opp.DetectedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, opp)
	}
	return list, rows.Err()
}

// millisToDuration converts a stored half-life in milliseconds back to a
// duration.
func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
