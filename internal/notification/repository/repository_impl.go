package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/notification/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, owner_id, client_id, claim_id, invoice_number, title, message,
		 is_read, read_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		notification.ID,
		notification.OwnerID,
		notification.ClientID,
		notification.ClaimID,
		notification.InvoiceNumber,
		notification.Title,
		notification.Message,
		notification.IsRead,
		notification.ReadAt,
		notification.CreatedAt,
		notification.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Notification, error) {
	var notification domain.Notification
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ?", id).
		First(&notification).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("owner_id = ?", ownerID).
		Order("created_at desc, id desc").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repo) ListByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) ([]*domain.Notification, error) {
	var notifications []*domain.Notification
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("client_id = ?", clientID).
		Order("created_at desc, id desc").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, notification *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications SET is_read = ?, read_at = ?, updated_at = ? WHERE id = ?`,
		notification.IsRead,
		notification.ReadAt,
		notification.UpdatedAt,
		notification.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM notifications WHERE id = ?`, id).Error
}
