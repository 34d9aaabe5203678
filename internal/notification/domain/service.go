package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
)

// Addressee resolves which feeds an action lands in. Admin actions go to
// the admin's own feed with the concerned client as correlation; client
// and user actions go to the actor's owner.
func Addressee(actor directorydomain.Actor, counterpart snowflake.ID) (owner, client snowflake.ID, err error) {
	switch actor.Role {
	case directorydomain.RoleAdmin:
		return actor.ID, counterpart, nil
	case directorydomain.RoleClient:
		return actor.OwnerID, actor.ID, nil
	case directorydomain.RoleUser:
		// A user's actions surface in the feed of the client that owns it.
		return actor.OwnerID, actor.OwnerID, nil
	default:
		return 0, 0, ErrMissingAddressee
	}
}

type CreateRequest struct {
	Actor         directorydomain.Actor
	Counterpart   snowflake.ID
	ClaimID       snowflake.ID
	InvoiceNumber string
	Title         string
	Message       string
}

type FeedResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unReadCount"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Notification, error)

	// CreateBatch persists each request independently with bounded
	// concurrency. Failed items are logged and skipped, never rolled back.
	CreateBatch(ctx context.Context, reqs []CreateRequest)

	Feed(ctx context.Context) (FeedResponse, error)
	MarkRead(ctx context.Context, id snowflake.ID) error
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrMissingAddressee = errors.New("missing_addressee")
	ErrInvalidMessage   = errors.New("invalid_message")
	ErrNotFound         = errors.New("not_found")
	ErrForbidden        = errors.New("forbidden")
)
