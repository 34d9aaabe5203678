package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/claim/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO claims (id, owner_id, ro_number, ro_suffix, ro_date, job_number, quoted, status,
		 entry_date, error_description, additional_info, internal_notes, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		claim.ID,
		claim.OwnerID,
		claim.RONumber,
		claim.ROSuffix,
		claim.RODate,
		claim.JobNumber,
		claim.Quoted,
		claim.Status,
		claim.EntryDate,
		claim.ErrorDescription,
		claim.AdditionalInfo,
		claim.InternalNotes,
		claim.Archived,
		claim.CreatedAt,
		claim.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Claim, error) {
	var claim domain.Claim
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id = ?", id).
		First(&claim).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &claim, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID, archived bool) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("owner_id IN ? AND archived = ?", ownerIDs, archived).
		Order("created_at desc, id desc").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("owner_id IN ?", ownerIDs).
		Order("created_at desc, id desc").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids, ownerIDs []snowflake.ID) ([]*domain.Claim, error) {
	var claims []*domain.Claim
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id IN ? AND owner_id IN ?", ids, ownerIDs).
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, claim *domain.Claim) error {
	return db.WithContext(ctx).Exec(
		`UPDATE claims SET ro_date = ?, job_number = ?, quoted = ?, status = ?, entry_date = ?,
		 error_description = ?, additional_info = ?, internal_notes = ?, archived = ?, updated_at = ?
		 WHERE id = ?`,
		claim.RODate,
		claim.JobNumber,
		claim.Quoted,
		claim.Status,
		claim.EntryDate,
		claim.ErrorDescription,
		claim.AdditionalInfo,
		claim.InternalNotes,
		claim.Archived,
		claim.UpdatedAt,
		claim.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	return tx.WithContext(ctx).Exec(`DELETE FROM claims WHERE id = ?`, id).Error
}

func (r *repo) DeleteThread(ctx context.Context, tx *gorm.DB, claimID snowflake.ID) error {
	return tx.WithContext(ctx).Exec(`DELETE FROM chat_messages WHERE claim_id = ?`, claimID).Error
}

func (r *repo) SetArchived(ctx context.Context, db *gorm.DB, ids, ownerIDs []snowflake.ID, archived bool) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("id IN ? AND owner_id IN ? AND archived = ?", ids, ownerIDs, !archived).
		Updates(map[string]interface{}{"archived": archived})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) StatusCounts(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID) ([]domain.StatusCount, error) {
	var counts []domain.StatusCount
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Select("status, count(*) as count").
		Where("owner_id IN ? AND archived = ?", ownerIDs, false).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) CountByOwner(ctx context.Context, db *gorm.DB, ownerIDs []snowflake.ID) ([]domain.OwnerCount, error) {
	var counts []domain.OwnerCount
	err := db.WithContext(ctx).
		Model(&domain.Claim{}).
		Select("owner_id, count(*) as count").
		Where("owner_id IN ? AND archived = ?", ownerIDs, false).
		Group("owner_id").
		Order("count desc").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
