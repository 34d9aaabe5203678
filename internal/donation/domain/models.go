package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PaymentType string

const (
	TypeMembership PaymentType = "membership"
	TypeDonation   PaymentType = "donation"
)

func ValidPaymentType(t PaymentType) bool {
	return t == TypeMembership || t == TypeDonation
}

type Status string

// Statuses mirror the gateway's payment-intent lifecycle. Transitions are
// driven only by webhook events, never by direct user action.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Payment records one payment-intent attempt, keyed by the gateway's
// transaction identifier.
type Payment struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id,string"`
	ActorID       snowflake.ID `gorm:"index" json:"actorId,string"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	PaymentType   PaymentType  `json:"paymentType"`
	Status        Status       `json:"status"`
	TransactionID string       `gorm:"uniqueIndex:idx_payments_transaction" json:"transactionId"`
	SendCount     int64        `json:"sendCount"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (Payment) TableName() string { return "payments" }
