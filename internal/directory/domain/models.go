package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleClient     Role = "client"
	RoleUser       Role = "user"
	RoleMember     Role = "member"
)

// Actor is a directory entry. Clients and users carry OwnerID pointing at
// the admin (for clients) or client (for users) they belong to. Members are
// donor accounts provisioned by the donation flow and own nothing.
type Actor struct {
	ID            snowflake.ID                `gorm:"primaryKey" json:"id"`
	OwnerID       snowflake.ID                `gorm:"index" json:"ownerId,omitempty"`
	Role          Role                        `gorm:"not null" json:"role"`
	Name          string                      `json:"name"`
	Email         string                      `gorm:"not null;uniqueIndex" json:"email"`
	Phone         string                      `json:"phone,omitempty"`
	CompanyName   string                      `json:"companyName,omitempty"`
	StoreName     string                      `json:"storeName,omitempty"`
	DealerID      string                      `json:"dealerId,omitempty"`
	ContactEmails datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'" json:"contactEmails,omitempty"`
	Percentage    float64                     `json:"percentage,omitempty"`
	PasswordHash  string                      `json:"-"`
	LastLogin     *time.Time                  `json:"lastLogin,omitempty"`
	ActiveStatus  bool                        `gorm:"not null;default:true" json:"activeStatus"`
	CreatedAt     time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt     time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Actor) TableName() string {
	return "actors"
}

// DisplayCompany prefers the company name and falls back to the store name,
// matching how clients are labelled in notifications and dashboards.
func (a Actor) DisplayCompany() string {
	if a.CompanyName != "" {
		return a.CompanyName
	}
	return a.StoreName
}
