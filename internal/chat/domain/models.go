package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type MessageType string

const (
	TypeText MessageType = "text"
	TypeFile MessageType = "file"
)

// FileData describes the stored upload behind a file message.
type FileData struct {
	Filename    string `json:"filename"`
	StoredName  string `json:"storedName"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Message is one entry of a claim's chat thread. ResponseTime is the
// seconds elapsed since the previous message from the other side, when
// there was one.
type Message struct {
	ID           snowflake.ID                  `gorm:"primaryKey" json:"id"`
	ClaimID      snowflake.ID                  `gorm:"not null;index" json:"claimId"`
	SenderID     snowflake.ID                  `gorm:"not null" json:"senderId"`
	Content      string                        `json:"content,omitempty"`
	Type         MessageType                   `gorm:"not null;default:text" json:"type"`
	FileData     *datatypes.JSONType[FileData] `gorm:"type:jsonb" json:"fileData,omitempty"`
	ResponseTime *float64                      `json:"responseTime,omitempty"`
	CreatedAt    time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt    time.Time                     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Message) TableName() string {
	return "chat_messages"
}

// ClaimRef is the slice of a claim the chat layer needs.
type ClaimRef struct {
	ID       snowflake.ID
	OwnerID  snowflake.ID
	RONumber string
	ROSuffix string
}
