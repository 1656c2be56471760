package domain

import (
	"context"
	"time"
)

// RelationshipStore persists fitted market relationships. Upsert replaces
// the stored row for the relationship's key wholesale.
type RelationshipStore interface {
	Upsert(ctx context.Context, rel MarketRelationship) error
	Get(ctx context.Context, key RelationshipKey) (MarketRelationship, error)
	ListByGame(ctx context.Context, gameID string) ([]MarketRelationship, error)
	List(ctx context.Context) ([]MarketRelationship, error)
}

// OpportunityStore persists detected opportunities for audit and the API.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Opportunity, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
