package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, actor *Actor) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Actor, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Actor, error)
	List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, role Role) ([]*Actor, error)
	ListByRole(ctx context.Context, db *gorm.DB, role Role) ([]*Actor, error)
	ChildIDs(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, role Role) ([]snowflake.ID, error)
	Update(ctx context.Context, db *gorm.DB, actor *Actor) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// DeleteClientCascade removes a client together with everything it owns:
	// chat threads of its claims, claims, invoices billed to it, its users and
	// finally the client row itself. Runs inside the caller's transaction.
	DeleteClientCascade(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) error

	// ReconcileActiveStatus flips active_status on both sides of the cutoff
	// and reports how many rows changed. Flipped rows take now as their
	// updated_at.
	ReconcileActiveStatus(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error)
}
