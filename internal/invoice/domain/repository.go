package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, invoice *Invoice) error

	// NextNumber atomically increments and returns the per-owner invoice
	// counter. Must run inside the create transaction.
	NextNumber(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID) (int64, error)

	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, archived bool) ([]*Invoice, error)
	ListByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID, archived bool) ([]*Invoice, error)
	ListAllByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*Invoice, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID, ownerID snowflake.ID) ([]*Invoice, error)
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SetArchived(ctx context.Context, db *gorm.DB, ids []snowflake.ID, ownerID snowflake.ID, archived bool) (int64, error)
}
