package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/chat/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, message *domain.Message) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO chat_messages (id, claim_id, sender_id, content, type, file_data, response_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID,
		message.ClaimID,
		message.SenderID,
		message.Content,
		message.Type,
		message.FileData,
		message.ResponseTime,
		message.CreatedAt,
		message.UpdatedAt,
	).Error
}

func (r *repo) Thread(ctx context.Context, db *gorm.DB, claimID snowflake.ID) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("claim_id = ?", claimID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repo) LastFromOther(ctx context.Context, db *gorm.DB, claimID, senderID snowflake.ID) (*domain.Message, error) {
	var message domain.Message
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("claim_id = ? AND sender_id <> ?", claimID, senderID).
		Order("created_at desc, id desc").
		First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *repo) AvgResponseBySender(ctx context.Context, db *gorm.DB, senderIDs []snowflake.ID) ([]domain.SenderAverage, error) {
	var averages []domain.SenderAverage
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Select("sender_id, avg(response_time) as avg_seconds").
		Where("sender_id IN ? AND response_time IS NOT NULL", senderIDs).
		Group("sender_id").
		Order("avg_seconds asc").
		Scan(&averages).Error
	if err != nil {
		return nil, err
	}
	return averages, nil
}

func (r *repo) FindClaim(ctx context.Context, db *gorm.DB, claimID snowflake.ID) (*domain.ClaimRef, error) {
	var ref domain.ClaimRef
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner_id, ro_number, ro_suffix FROM claims WHERE id = ?`,
		claimID,
	).Scan(&ref).Error
	if err != nil {
		return nil, err
	}
	if ref.ID == 0 {
		return nil, nil
	}
	return &ref, nil
}
