package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// IntentRequest starts a payment. The endpoint is public; unknown emails
// get a member account provisioned on the fly.
type IntentRequest struct {
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	PaymentType PaymentType `json:"paymentType"`
}

type IntentResponse struct {
	ClientSecret  string       `json:"clientSecret"`
	TransactionID string       `json:"transactionId"`
	PaymentID     snowflake.ID `json:"paymentId,string"`
}

// Receipt is a rendered receipt PDF ready to stream back.
type Receipt struct {
	Filename string
	Content  []byte
}

type Service interface {
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)

	// IngestWebhook verifies the gateway signature over the raw body and
	// applies the event's status transition.
	IngestWebhook(ctx context.Context, payload []byte, signature string) error

	List(ctx context.Context) ([]Payment, error)
	ReceiptPDF(ctx context.Context, id snowflake.ID) (Receipt, error)
	ResendReceipt(ctx context.Context, id snowflake.ID) (Payment, error)
}

var (
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidPaymentType = errors.New("invalid_payment_type")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrForbidden          = errors.New("forbidden")
	ErrNotSucceeded       = errors.New("payment_not_succeeded")
)
