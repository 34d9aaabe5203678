package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// OwnerCount is the per-owner claim volume used by the company ranking.
type OwnerCount struct {
	OwnerID snowflake.ID
	Count   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, claim *Claim) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Claim, error)
	List(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID, archived bool) ([]*Claim, error)
	ListAll(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID) ([]*Claim, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids, ownerIDs []snowflake.ID) ([]*Claim, error)
	Update(ctx context.Context, db *gorm.DB, claim *Claim) error
	Delete(ctx context.Context, tx *gorm.DB, id snowflake.ID) error
	DeleteThread(ctx context.Context, tx *gorm.DB, claimID snowflake.ID) error

	// SetArchived flips the archived flag on the scoped, not-yet-in-state
	// subset of ids and reports how many rows changed.
	SetArchived(ctx context.Context, db *gorm.DB, ids, ownerIDs []snowflake.ID, archived bool) (int64, error)

	StatusCounts(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID) ([]StatusCount, error)
	CountByOwner(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID) ([]OwnerCount, error)
}
