package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/warrantydesk/warrantydesk/internal/stats"
)

type CreateRequest struct {
	ClientID            snowflake.ID     `json:"clientId"`
	WarrantyCompany     string           `json:"warrantyCompany"`
	StatementType       string           `json:"statementType"`
	StatementNumber     string           `json:"statementNumber"`
	StatementTotal      float64          `json:"statementTotal"`
	Adjustments         []Adjustment     `json:"adjustments"`
	BypassPercentage    bool             `json:"bypassPercentage"`
	FreeTextExplanation string           `json:"freeTextExplanation"`
	AttachedReports     []AttachedReport `json:"attachedReports"`
}

// EditRequest replaces the editable fields. Attachment changes ride along:
// AttachReports were already stored by the caller, RemoveReports names
// stored files to detach and delete.
type EditRequest struct {
	WarrantyCompany     string           `json:"warrantyCompany"`
	StatementType       string           `json:"statementType"`
	StatementNumber     string           `json:"statementNumber"`
	StatementTotal      float64          `json:"statementTotal"`
	Adjustments         []Adjustment     `json:"adjustments"`
	BypassPercentage    bool             `json:"bypassPercentage"`
	FreeTextExplanation string           `json:"freeTextExplanation"`
	AttachReports       []AttachedReport `json:"attachReports"`
	RemoveReports       []string         `json:"removeReports"`
}

// ArchiveResult reports how many invoices a bulk archive actually
// touched; out-of-scope ids are silently skipped.
type ArchiveResult struct {
	ModifiedCount int64 `json:"modifiedCount"`
}

type StatsResponse struct {
	Windows []stats.Window `json:"windows"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	ListArchived(ctx context.Context) ([]Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (Invoice, error)
	Edit(ctx context.Context, id snowflake.ID, req EditRequest) (Invoice, error)
	ChangeStatus(ctx context.Context, id snowflake.ID, status Status) (Invoice, error)
	Send(ctx context.Context, id snowflake.ID) (Invoice, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Archive(ctx context.Context, ids []snowflake.ID) (ArchiveResult, error)
	Unarchive(ctx context.Context, ids []snowflake.ID) (ArchiveResult, error)
	Stats(ctx context.Context) (StatsResponse, error)
}

var (
	ErrInvalidClient   = errors.New("invalid_client")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
	ErrForbidden       = errors.New("forbidden")
	ErrNothingArchived = errors.New("no_invoices_archived")
)
