package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"

	"github.com/warrantydesk/warrantydesk/internal/stats"
)

type CreateRequest struct {
	RONumber         string `json:"roNumber"`
	ROSuffix         string `json:"roSuffix"`
	RODate           string `json:"roDate"`
	JobNumber        string `json:"jobNumber"`
	Quoted           string `json:"quoted"`
	Status           Status `json:"status"`
	EntryDate        string `json:"entryDate"`
	ErrorDescription string `json:"errorDescription"`
	AdditionalInfo   string `json:"additionalInfo"`
	InternalNotes    string `json:"internalNotes"`
}

type UpdateRequest struct {
	RODate           string `json:"roDate"`
	JobNumber        string `json:"jobNumber"`
	Quoted           string `json:"quoted"`
	Status           Status `json:"status"`
	EntryDate        string `json:"entryDate"`
	ErrorDescription string `json:"errorDescription"`
	AdditionalInfo   string `json:"additionalInfo"`
	InternalNotes    string `json:"internalNotes"`
}

// RejectedRow reports one import row that was not inserted.
type RejectedRow struct {
	Line     int    `json:"line"`
	RONumber string `json:"roNumber"`
	ROSuffix string `json:"roSuffix"`
	Reason   string `json:"reason"`
}

// ImportReport is the partial-success result of a bulk import.
type ImportReport struct {
	Inserted int           `json:"inserted"`
	Rejected []RejectedRow `json:"rejected"`
}

// Export is a rendered CSV download.
type Export struct {
	Filename string
	Content  []byte
}

// StatusCount is one slice of the status breakdown.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// CompanyCount ranks a client company by claim volume.
type CompanyCount struct {
	ClientID snowflake.ID `json:"clientId"`
	Company  string       `json:"company"`
	Count    int          `json:"count"`
}

type DashboardResponse struct {
	StatusCounts []StatusCount  `json:"statusCounts"`
	TopCompanies []CompanyCount `json:"topCompanies"`
}

type StatsResponse struct {
	Windows []stats.Window `json:"windows"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Claim, error)
	ImportCSV(ctx context.Context, r io.Reader) (ImportReport, error)
	ExportCSV(ctx context.Context) (Export, error)
	List(ctx context.Context) ([]Claim, error)
	ListArchived(ctx context.Context) ([]Claim, error)
	Get(ctx context.Context, id snowflake.ID) (Claim, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status) (Claim, error)
	UpdateDetails(ctx context.Context, id snowflake.ID, req UpdateRequest) (Claim, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Archive(ctx context.Context, ids []snowflake.ID) (int64, error)
	Unarchive(ctx context.Context, ids []snowflake.ID) (int64, error)
	Dashboard(ctx context.Context) (DashboardResponse, error)
	Stats(ctx context.Context) (StatsResponse, error)
}

var (
	ErrInvalidRONumber = errors.New("invalid_ro_number")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidID       = errors.New("invalid_id")
	ErrDuplicateClaim  = errors.New("claim_already_exists")
	ErrPartialImport   = errors.New("some_claims_already_exist")
	ErrImportRejected  = errors.New("no_claims_imported")
	ErrNoClaims        = errors.New("no_claims_to_export")
	ErrNotFound        = errors.New("not_found")
	ErrForbidden       = errors.New("forbidden")
)
