package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, notification *Notification) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*Notification, error)
	ListByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) ([]*Notification, error)
	MarkRead(ctx context.Context, db *gorm.DB, notification *Notification) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
