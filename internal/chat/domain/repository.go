package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// SenderAverage is the raw per-sender aggregation row.
type SenderAverage struct {
	SenderID   snowflake.ID
	AvgSeconds float64
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, message *Message) error
	Thread(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]*Message, error)

	// LastFromOther returns the newest thread message whose sender differs
	// from senderID, or nil when the other side has not written yet.
	LastFromOther(ctx context.Context, db *gorm.DB, claimID, senderID snowflake.ID) (*Message, error)

	AvgResponseBySender(ctx context.Context, db *gorm.DB, senderIDs []snowflake.ID) ([]SenderAverage, error)
	FindClaim(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (*ClaimRef, error)
}
