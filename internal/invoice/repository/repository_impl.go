package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/invoice/domain"
)

const counterName = "invoiceNumber"

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, owner_id, client_id, client_name, warranty_company, invoice_number,
		 statement_type, statement_number, statement_total, adjustments, assigned_percentage,
		 bypass_percentage, final_total, free_text_explanation, attached_reports, status, archived,
		 sent_count, last_sent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.OwnerID,
		invoice.ClientID,
		invoice.ClientName,
		invoice.WarrantyCompany,
		invoice.InvoiceNumber,
		invoice.StatementType,
		invoice.StatementNumber,
		invoice.StatementTotal,
		invoice.Adjustments,
		invoice.AssignedPercentage,
		invoice.BypassPercentage,
		invoice.FinalTotal,
		invoice.FreeTextExplanation,
		invoice.AttachedReports,
		invoice.Status,
		invoice.Archived,
		invoice.SentCount,
		invoice.LastSent,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) NextNumber(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID) (int64, error) {
	bumped := tx.WithContext(ctx).Exec(
		`UPDATE counters SET seq = seq + 1 WHERE owner_id = ? AND name = ?`,
		ownerID, counterName,
	)
	if bumped.Error != nil {
		return 0, bumped.Error
	}
	if bumped.RowsAffected == 0 {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO counters (owner_id, name, seq) VALUES (?, ?, 1)`,
			ownerID, counterName,
		).Error
		if err != nil {
			return 0, err
		}
	}

	var seq int64
	err := tx.WithContext(ctx).Raw(
		`SELECT seq FROM counters WHERE owner_id = ? AND name = ?`,
		ownerID, counterName,
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ?", id).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, archived bool) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("owner_id = ? AND archived = ?", ownerID, archived).
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID, archived bool) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("client_id = ? AND archived = ?", clientID, archived).
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListAllByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("owner_id = ?", ownerID).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID, ownerID snowflake.ID) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id IN ? AND owner_id = ?", ids, ownerID).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET client_name = ?, warranty_company = ?, statement_type = ?,
		 statement_number = ?, statement_total = ?, adjustments = ?, assigned_percentage = ?,
		 bypass_percentage = ?, final_total = ?, free_text_explanation = ?, attached_reports = ?,
		 status = ?, archived = ?, sent_count = ?, last_sent = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.ClientName,
		invoice.WarrantyCompany,
		invoice.StatementType,
		invoice.StatementNumber,
		invoice.StatementTotal,
		invoice.Adjustments,
		invoice.AssignedPercentage,
		invoice.BypassPercentage,
		invoice.FinalTotal,
		invoice.FreeTextExplanation,
		invoice.AttachedReports,
		invoice.Status,
		invoice.Archived,
		invoice.SentCount,
		invoice.LastSent,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) SetArchived(ctx context.Context, db *gorm.DB, ids []snowflake.ID, ownerID snowflake.ID, archived bool) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id IN ? AND owner_id = ? AND archived = ?", ids, ownerID, !archived).
		Updates(map[string]interface{}{"archived": archived})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
