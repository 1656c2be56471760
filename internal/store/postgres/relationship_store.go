package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddslab/syntharb/internal/domain"
)

// RelationshipStore implements domain.RelationshipStore using PostgreSQL.
// Each (game, primary, hedge) triple holds at most one row; Upsert replaces
// the fitted values wholesale.
type RelationshipStore struct {
	pool *pgxpool.Pool
}

// NewRelationshipStore creates a new RelationshipStore.
func NewRelationshipStore(pool *pgxpool.Pool) *RelationshipStore {
	return &RelationshipStore{pool: pool}
}

const relationshipColumns = `game_id, sport, primary_market, hedge_market, covariance,
	correlation, hedge_ratio, beta, half_life_ms, residual_std_dev, confidence, last_updated`

// Upsert inserts or replaces the fitted relationship for its key.
func (s *RelationshipStore) Upsert(ctx context.Context, rel domain.MarketRelationship) error {
	const query = `
		INSERT INTO market_relationships (id, game_id, sport, primary_market, hedge_market,
			covariance, correlation, hedge_ratio, beta, half_life_ms, residual_std_dev,
			confidence, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (game_id, primary_market, hedge_market) DO UPDATE SET
			covariance = EXCLUDED.covariance,
			correlation = EXCLUDED.correlation,
			hedge_ratio = EXCLUDED.hedge_ratio,
			beta = EXCLUDED.beta,
			half_life_ms = EXCLUDED.half_life_ms,
			residual_std_dev = EXCLUDED.residual_std_dev,
			confidence = EXCLUDED.confidence,
			last_updated = EXCLUDED.last_updated`
	_, err := s.pool.Exec(ctx, query,
		uuid.New(), rel.GameID, rel.Sport, rel.PrimaryMarket, rel.HedgeMarket,
		rel.Covariance, rel.Correlation, rel.HedgeRatio, rel.Beta,
		rel.HalfLife.Milliseconds(), rel.ResidualStdDev, rel.Confidence, rel.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert relationship %s/%s/%s: %w",
			rel.GameID, rel.PrimaryMarket, rel.HedgeMarket, err)
	}
	return nil
}

// Get returns the relationship for the given key, or domain.ErrNotFound.
func (s *RelationshipStore) Get(ctx context.Context, key domain.RelationshipKey) (domain.MarketRelationship, error) {
	query := `SELECT ` + relationshipColumns + ` FROM market_relationships
		WHERE game_id = $1 AND primary_market = $2 AND hedge_market = $3`
	row := s.pool.QueryRow(ctx, query, key.GameID, key.PrimaryMarket, key.HedgeMarket)
	rel, err := scanRelationship(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketRelationship{}, domain.ErrNotFound
		}
		return domain.MarketRelationship{}, fmt.Errorf("postgres: get relationship: %w", err)
	}
	return rel, nil
}

// ListByGame returns all relationships fitted for one game.
func (s *RelationshipStore) ListByGame(ctx context.Context, gameID string) ([]domain.MarketRelationship, error) {
	query := `SELECT ` + relationshipColumns + ` FROM market_relationships WHERE game_id = $1`
	return s.queryRelationships(ctx, query, gameID)
}

// List returns all stored relationships.
func (s *RelationshipStore) List(ctx context.Context) ([]domain.MarketRelationship, error) {
	query := `SELECT ` + relationshipColumns + ` FROM market_relationships ORDER BY game_id`
	return s.queryRelationships(ctx, query)
}

func (s *RelationshipStore) queryRelationships(ctx context.Context, query string, args ...any) ([]domain.MarketRelationship, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.MarketRelationship
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rel)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelationship(row rowScanner) (domain.MarketRelationship, error) {
	var rel domain.MarketRelationship
	var halfLifeMs int64
	err := row.Scan(
		&rel.GameID, &rel.Sport, &rel.PrimaryMarket, &rel.HedgeMarket,
		&rel.Covariance, &rel.Correlation, &rel.HedgeRatio, &rel.Beta,
		&halfLifeMs, &rel.ResidualStdDev, &rel.Confidence, &rel.LastUpdated,
	)
	if err != nil {
		return domain.MarketRelationship{}, err
	}
	rel.HalfLife = millisToDuration(halfLifeMs)
	return rel, nil
}

// Compile-time interface check.
var _ domain.RelationshipStore = (*RelationshipStore)(nil)
