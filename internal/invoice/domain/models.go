package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
)

func ValidStatus(s Status) bool {
	return s == StatusDraft || s == StatusFinalized
}

const (
	AdjustmentAdd       = "add"
	AdjustmentDeduction = "deduction"
)

// Adjustment is one charge or deduction line against the statement total.
type Adjustment struct {
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
}

// AttachedReport references a stored upload attached to the invoice.
type AttachedReport struct {
	Filename    string `json:"filename"`
	StoredName  string `json:"storedName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Invoice struct {
	ID                  snowflake.ID                        `gorm:"primaryKey" json:"id"`
	OwnerID             snowflake.ID                        `gorm:"not null;uniqueIndex:idx_invoices_owner_number" json:"ownerId"`
	ClientID            snowflake.ID                        `gorm:"not null;index" json:"clientId"`
	ClientName          string                              `gorm:"not null" json:"clientName"`
	WarrantyCompany     string                              `gorm:"not null" json:"warrantyCompany"`
	InvoiceNumber       int64                               `gorm:"not null;uniqueIndex:idx_invoices_owner_number" json:"invoiceNumber"`
	StatementType       string                              `json:"statementType"`
	StatementNumber     string                              `json:"statementNumber"`
	StatementTotal      float64                             `json:"statementTotal"`
	Adjustments         datatypes.JSONSlice[Adjustment]     `gorm:"type:jsonb" json:"adjustments"`
	AssignedPercentage  float64                             `json:"assignedPercentage"`
	BypassPercentage    bool                                `json:"bypassPercentage"`
	FinalTotal          float64                             `json:"finalTotal"`
	FreeTextExplanation string                              `json:"freeTextExplanation,omitempty"`
	AttachedReports     datatypes.JSONSlice[AttachedReport] `gorm:"type:jsonb" json:"attachedReports"`
	Status              Status                              `gorm:"not null;default:draft" json:"status"`
	Archived            bool                                `gorm:"not null;default:false" json:"archived"`
	SentCount           int64                               `gorm:"not null;default:0" json:"sentCount"`
	LastSent            *time.Time                          `json:"lastSent,omitempty"`
	CreatedAt           time.Time                           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt           time.Time                           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// Label is how invoices are referenced in notifications, emails and the
// PDF filename.
func (i Invoice) Label() string {
	return fmt.Sprintf("INV-%d", i.InvoiceNumber)
}

// ComputeFinalTotal applies the adjustment lines and, unless bypassed,
// the client's assigned percentage.
func (i Invoice) ComputeFinalTotal() float64 {
	total := i.StatementTotal
	for _, adj := range i.Adjustments {
		switch adj.Type {
		case AdjustmentAdd:
			total += adj.Amount
		case AdjustmentDeduction:
			total -= adj.Amount
		}
	}
	if !i.BypassPercentage {
		total = total * i.AssignedPercentage / 100
	}
	return total
}

// NormalizeAdjustmentType maps the legacy spreadsheet labels onto the
// stored adjustment types.
func NormalizeAdjustmentType(t string) string {
	switch t {
	case "Charge", AdjustmentAdd:
		return AdjustmentAdd
	case "Deduction", AdjustmentDeduction:
		return AdjustmentDeduction
	default:
		return t
	}
}
