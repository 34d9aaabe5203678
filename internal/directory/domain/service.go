package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	"github.com/warrantydesk/warrantydesk/internal/stats"
)

type CreateClientRequest struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         string   `json:"phone"`
	Password      string   `json:"password"`
	CompanyName   string   `json:"companyName"`
	StoreName     string   `json:"storeName"`
	DealerID      string   `json:"dealerId"`
	ContactEmails []string `json:"contactEmails"`
	Percentage    float64  `json:"percentage"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// ClientPatch carries partial updates. Nil fields are left untouched.
type ClientPatch struct {
	Name          *string   `json:"name"`
	Email         *string   `json:"email"`
	Phone         *string   `json:"phone"`
	Password      *string   `json:"password"`
	CompanyName   *string   `json:"companyName"`
	StoreName     *string   `json:"storeName"`
	DealerID      *string   `json:"dealerId"`
	ContactEmails *[]string `json:"contactEmails"`
	Percentage    *float64  `json:"percentage"`
}

type UserPatch struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

// ListResponse carries the actors visible to the caller plus the
// active/inactive split derived from last login.
type ListResponse struct {
	Actors        []Actor `json:"actors"`
	ActiveCount   int     `json:"activeCount"`
	InactiveCount int     `json:"inactiveCount"`
}

// StatsResponse is the clients/users dashboard payload.
type StatsResponse struct {
	Windows   []stats.Window     `json:"windows"`
	Today     stats.PeriodChange `json:"today"`
	ThisWeek  stats.PeriodChange `json:"thisWeek"`
	ThisMonth stats.PeriodChange `json:"thisMonth"`
}

type Service interface {
	CreateClient(ctx context.Context, req CreateClientRequest) (Actor, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (Actor, error)
	Get(ctx context.Context, id snowflake.ID) (Actor, error)
	GetByEmail(ctx context.Context, email string) (Actor, error)
	ListClients(ctx context.Context) (ListResponse, error)
	ListUsers(ctx context.Context) (ListResponse, error)
	UpdateClient(ctx context.Context, id snowflake.ID, patch ClientPatch) (Actor, error)
	UpdateUser(ctx context.Context, id snowflake.ID, patch UserPatch) (Actor, error)
	DeleteClient(ctx context.Context, id snowflake.ID) error
	DeleteUser(ctx context.Context, id snowflake.ID) error

	// EnsureMember finds or provisions a donor account for the email. A
	// freshly generated password is returned only when the actor was created.
	EnsureMember(ctx context.Context, name, email string) (Actor, string, error)

	// Scope resolves the owner IDs whose records the actor may see: an admin
	// sees its own rows and those of its clients, a client sees only its own.
	Scope(ctx context.Context, actor Actor) ([]snowflake.ID, error)

	// Children returns the IDs of the actor's direct descendants with the
	// given role. No descendants is an empty slice, not an error.
	Children(ctx context.Context, ownerID snowflake.ID, role Role) ([]snowflake.ID, error)

	ClientStats(ctx context.Context) (StatsResponse, error)
	UserStats(ctx context.Context) (StatsResponse, error)
	Activity(ctx context.Context, year int) ([]stats.MonthlyActivity, error)
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrInvalidID       = errors.New("invalid_id")
	ErrEmailTaken      = errors.New("email_already_exists")
	ErrNotFound        = errors.New("not_found")
	ErrForbidden       = errors.New("forbidden")
)
