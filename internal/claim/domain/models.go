package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPC Status = "PC"
	StatusPO Status = "PO"
	StatusPQ Status = "PQ"
	StatusPR Status = "PR"
	StatusPA Status = "PA"
	StatusCR Status = "CR"
)

var knownStatuses = map[Status]bool{
	StatusPC: true,
	StatusPO: true,
	StatusPQ: true,
	StatusPR: true,
	StatusPA: true,
	StatusCR: true,
}

func ValidStatus(s Status) bool {
	return knownStatuses[s]
}

// Claim is one repair-order warranty claim. The RO number and suffix
// pair identifies a claim uniquely.
type Claim struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerID          snowflake.ID `gorm:"not null;index" json:"ownerId"`
	RONumber         string       `gorm:"column:ro_number;not null;uniqueIndex:idx_claims_ro" json:"roNumber"`
	ROSuffix         string       `gorm:"column:ro_suffix;not null;uniqueIndex:idx_claims_ro" json:"roSuffix"`
	RODate           string       `gorm:"column:ro_date" json:"roDate,omitempty"`
	JobNumber        string       `json:"jobNumber,omitempty"`
	Quoted           string       `json:"quoted,omitempty"`
	Status           Status       `gorm:"not null" json:"status"`
	EntryDate        string       `json:"entryDate,omitempty"`
	ErrorDescription string       `json:"errorDescription,omitempty"`
	AdditionalInfo   string       `json:"additionalInfo,omitempty"`
	InternalNotes    string       `json:"internalNotes,omitempty"`
	Archived         bool         `gorm:"not null;default:false" json:"archived"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Claim) TableName() string {
	return "claims"
}

// Label is how a claim is referenced in notifications and exports.
func (c Claim) Label() string {
	return c.RONumber + " - " + c.ROSuffix
}
