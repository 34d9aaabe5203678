package domain

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
)

// FilePayload is an upload riding on a file message.
type FilePayload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

type SendRequest struct {
	ClaimID snowflake.ID
	Content string
	File    *FilePayload
}

// ResponseTimeEntry is one client's average reply latency, in seconds.
type ResponseTimeEntry struct {
	ClientID   snowflake.ID `json:"clientId"`
	Name       string       `json:"name"`
	Company    string       `json:"company"`
	AvgSeconds float64      `json:"avgSeconds"`
}

type ResponseTimePage struct {
	Entries    []ResponseTimeEntry `json:"entries"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"totalPages"`
}

type Service interface {
	Send(ctx context.Context, req SendRequest) (Message, error)
	Thread(ctx context.Context, claimID snowflake.ID) ([]Message, error)

	// TopResponseTimes returns the n fastest-replying clients, ascending.
	// n <= 0 means the default of 5.
	TopResponseTimes(ctx context.Context, n int) ([]ResponseTimeEntry, error)
	ResponseTimes(ctx context.Context, page, limit int) (ResponseTimePage, error)
}

var (
	ErrEmptyMessage = errors.New("empty_message")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")
	ErrForbidden    = errors.New("forbidden")
)
