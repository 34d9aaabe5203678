package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Notification is one feed entry. OwnerID addresses the admin feed,
// ClientID the client feed; a single row can serve both sides of an
// action.
type Notification struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID       snowflake.ID `gorm:"not null;index" json:"ownerId"`
	ClientID      snowflake.ID `gorm:"index" json:"clientId,omitempty"`
	ClaimID       snowflake.ID `json:"claimId,omitempty"`
	InvoiceNumber string       `json:"invoiceNumber,omitempty"`
	Title         string       `gorm:"not null" json:"title"`
	Message       string       `gorm:"not null" json:"message"`
	IsRead        bool         `gorm:"not null;default:false" json:"isRead"`
	ReadAt        *time.Time   `json:"readAt,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Notification) TableName() string {
	return "notifications"
}
