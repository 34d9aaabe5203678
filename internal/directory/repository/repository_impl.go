package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/directory/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, actor *domain.Actor) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO actors (id, owner_id, role, name, email, phone, company_name, store_name,
		 dealer_id, contact_emails, percentage, password_hash, last_login, active_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		actor.ID,
		actor.OwnerID,
		actor.Role,
		actor.Name,
		actor.Email,
		actor.Phone,
		actor.CompanyName,
		actor.StoreName,
		actor.DealerID,
		actor.ContactEmails,
		actor.Percentage,
		actor.PasswordHash,
		actor.LastLogin,
		actor.ActiveStatus,
		actor.CreatedAt,
		actor.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Actor, error) {
	var actor domain.Actor
	err := db.WithContext(ctx).
		Model(&domain.Actor{}).
		Where("id = ?", id).
		First(&actor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &actor, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Actor, error) {
	var actor domain.Actor
	err := db.WithContext(ctx).
		Model(&domain.Actor{}).
		Where("email = ?", email).
		First(&actor).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &actor, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, role domain.Role) ([]*domain.Actor, error) {
	var actors []*domain.Actor
	err := db.WithContext(ctx).
		Model(&domain.Actor{}).
		Where("owner_id = ? AND role = ?", ownerID, role).
		Order("created_at desc, id desc").
		Find(&actors).Error
	if err != nil {
		return nil, err
	}
	return actors, nil
}

func (r *repo) ListByRole(ctx context.Context, db *gorm.DB, role domain.Role) ([]*domain.Actor, error) {
	var actors []*domain.Actor
	err := db.WithContext(ctx).
		Model(&domain.Actor{}).
		Where("role = ?", role).
		Order("created_at desc, id desc").
		Find(&actors).Error
	if err != nil {
		return nil, err
	}
	return actors, nil
}

func (r *repo) ChildIDs(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, role domain.Role) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Actor{}).
		Where("owner_id = ? AND role = ?", ownerID, role).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, actor *domain.Actor) error {
	return db.WithContext(ctx).Exec(
		`UPDATE actors SET name = ?, email = ?, phone = ?, company_name = ?, store_name = ?,
		 dealer_id = ?, contact_emails = ?, percentage = ?, password_hash = ?, last_login = ?,
		 active_status = ?, updated_at = ?
		 WHERE id = ?`,
		actor.Name,
		actor.Email,
		actor.Phone,
		actor.CompanyName,
		actor.StoreName,
		actor.DealerID,
		actor.ContactEmails,
		actor.Percentage,
		actor.PasswordHash,
		actor.LastLogin,
		actor.ActiveStatus,
		actor.UpdatedAt,
		actor.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM actors WHERE id = ?`, id).Error
}

func (r *repo) DeleteClientCascade(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) error {
	steps := []struct {
		query string
		args  []interface{}
	}{
		{`DELETE FROM chat_messages WHERE claim_id IN (SELECT id FROM claims WHERE owner_id = ?)`, []interface{}{clientID}},
		{`DELETE FROM claims WHERE owner_id = ?`, []interface{}{clientID}},
		{`DELETE FROM invoices WHERE client_id = ?`, []interface{}{clientID}},
		{`DELETE FROM actors WHERE owner_id = ? AND role = ?`, []interface{}{clientID, domain.RoleUser}},
		{`DELETE FROM actors WHERE id = ?`, []interface{}{clientID}},
	}
	for _, step := range steps {
		if err := tx.WithContext(ctx).Exec(step.query, step.args...).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ReconcileActiveStatus(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	deactivated := db.WithContext(ctx).Exec(
		`UPDATE actors SET active_status = ?, updated_at = ?
		 WHERE active_status = ? AND (last_login IS NULL OR last_login < ?)
		 AND role IN (?, ?)`,
		false, now, true, cutoff, domain.RoleClient, domain.RoleUser,
	)
	if deactivated.Error != nil {
		return 0, deactivated.Error
	}

	activated := db.WithContext(ctx).Exec(
		`UPDATE actors SET active_status = ?, updated_at = ?
		 WHERE active_status = ? AND last_login >= ?
		 AND role IN (?, ?)`,
		true, now, false, cutoff, domain.RoleClient, domain.RoleUser,
	)
	if activated.Error != nil {
		return 0, activated.Error
	}

	return deactivated.RowsAffected + activated.RowsAffected, nil
}
