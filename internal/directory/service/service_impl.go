package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	"github.com/warrantydesk/warrantydesk/internal/config"
	"github.com/warrantydesk/warrantydesk/internal/directory/domain"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/stats"
	"github.com/warrantydesk/warrantydesk/pkg/db"
	"github.com/warrantydesk/warrantydesk/pkg/password"
)

const emailTimeout = 10 * time.Second

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Email  email.Provider
	Repo   domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config
	email email.Provider
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("directory.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config,
		email: p.Email,
		repo:  p.Repo,
	}
}

func (s *Service) CreateClient(ctx context.Context, req domain.CreateClientRequest) (domain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != domain.RoleAdmin {
		return domain.Actor{}, domain.ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Actor{}, domain.ErrInvalidName
	}
	addr := strings.TrimSpace(req.Email)
	if addr == "" || !strings.Contains(addr, "@") {
		return domain.Actor{}, domain.ErrInvalidEmail
	}
	if req.Password == "" {
		return domain.Actor{}, domain.ErrInvalidPassword
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.Actor{}, err
	}

	now := s.clock.Now()
	actor := domain.Actor{
		ID:            s.genID.Generate(),
		OwnerID:       caller.ID,
		Role:          domain.RoleClient,
		Name:          name,
		Email:         addr,
		Phone:         strings.TrimSpace(req.Phone),
		CompanyName:   strings.TrimSpace(req.CompanyName),
		StoreName:     strings.TrimSpace(req.StoreName),
		DealerID:      strings.TrimSpace(req.DealerID),
		ContactEmails: datatypes.NewJSONSlice(req.ContactEmails),
		Percentage:    req.Percentage,
		PasswordHash:  hash,
		ActiveStatus:  true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &actor); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Actor{}, domain.ErrEmailTaken
		}
		return domain.Actor{}, err
	}

	s.sendCredentials(actor, req.Password, caller.DisplayCompany())

	return actor, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (domain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != domain.RoleClient {
		return domain.Actor{}, domain.ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Actor{}, domain.ErrInvalidName
	}
	addr := strings.TrimSpace(req.Email)
	if addr == "" || !strings.Contains(addr, "@") {
		return domain.Actor{}, domain.ErrInvalidEmail
	}
	if req.Password == "" {
		return domain.Actor{}, domain.ErrInvalidPassword
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return domain.Actor{}, err
	}

	now := s.clock.Now()
	actor := domain.Actor{
		ID:           s.genID.Generate(),
		OwnerID:      caller.ID,
		Role:         domain.RoleUser,
		Name:         name,
		Email:        addr,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		LastLogin:    &now,
		ActiveStatus: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &actor); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Actor{}, domain.ErrEmailTaken
		}
		return domain.Actor{}, err
	}

	s.sendCredentials(actor, req.Password, caller.DisplayCompany())

	return actor, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Actor, error) {
	if id == 0 {
		return domain.Actor{}, domain.ErrInvalidID
	}
	actor, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor == nil {
		return domain.Actor{}, domain.ErrNotFound
	}
	return *actor, nil
}

func (s *Service) GetByEmail(ctx context.Context, addr string) (domain.Actor, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return domain.Actor{}, domain.ErrInvalidEmail
	}
	actor, err := s.repo.FindByEmail(ctx, s.db, addr)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor == nil {
		return domain.Actor{}, domain.ErrNotFound
	}
	return *actor, nil
}

func (s *Service) ListClients(ctx context.Context) (domain.ListResponse, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrForbidden
	}

	var (
		items []*domain.Actor
		err   error
	)
	switch caller.Role {
	case domain.RoleAdmin:
		items, err = s.repo.List(ctx, s.db, caller.ID, domain.RoleClient)
	case domain.RoleSuperAdmin:
		items, err = s.repo.ListByRole(ctx, s.db, domain.RoleClient)
	default:
		return domain.ListResponse{}, domain.ErrForbidden
	}
	if err != nil {
		return domain.ListResponse{}, err
	}

	return buildListResponse(items), nil
}

func (s *Service) ListUsers(ctx context.Context) (domain.ListResponse, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.ListResponse{}, domain.ErrForbidden
	}

	var items []*domain.Actor
	switch caller.Role {
	case domain.RoleClient:
		var err error
		items, err = s.repo.List(ctx, s.db, caller.ID, domain.RoleUser)
		if err != nil {
			return domain.ListResponse{}, err
		}
	case domain.RoleAdmin:
		clientIDs, err := s.repo.ChildIDs(ctx, s.db, caller.ID, domain.RoleClient)
		if err != nil {
			return domain.ListResponse{}, err
		}
		for _, clientID := range clientIDs {
			users, err := s.repo.List(ctx, s.db, clientID, domain.RoleUser)
			if err != nil {
				return domain.ListResponse{}, err
			}
			items = append(items, users...)
		}
	default:
		return domain.ListResponse{}, domain.ErrForbidden
	}

	return buildListResponse(items), nil
}

func (s *Service) UpdateClient(ctx context.Context, id snowflake.ID, patch domain.ClientPatch) (domain.Actor, error) {
	client, err := s.ownedClient(ctx, id)
	if err != nil {
		return domain.Actor{}, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return domain.Actor{}, domain.ErrInvalidName
		}
		client.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		addr := strings.TrimSpace(*patch.Email)
		if addr == "" || !strings.Contains(addr, "@") {
			return domain.Actor{}, domain.ErrInvalidEmail
		}
		client.Email = addr
	}
	if patch.Phone != nil {
		client.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return domain.Actor{}, domain.ErrInvalidPassword
		}
		hash, err := password.Hash(*patch.Password)
		if err != nil {
			return domain.Actor{}, err
		}
		client.PasswordHash = hash
	}
	if patch.CompanyName != nil {
		client.CompanyName = strings.TrimSpace(*patch.CompanyName)
	}
	if patch.StoreName != nil {
		client.StoreName = strings.TrimSpace(*patch.StoreName)
	}
	if patch.DealerID != nil {
		client.DealerID = strings.TrimSpace(*patch.DealerID)
	}
	if patch.ContactEmails != nil {
		client.ContactEmails = datatypes.NewJSONSlice(*patch.ContactEmails)
	}
	if patch.Percentage != nil {
		client.Percentage = *patch.Percentage
	}

	client.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &client); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Actor{}, domain.ErrEmailTaken
		}
		return domain.Actor{}, err
	}

	return client, nil
}

func (s *Service) UpdateUser(ctx context.Context, id snowflake.ID, patch domain.UserPatch) (domain.Actor, error) {
	user, err := s.ownedUser(ctx, id)
	if err != nil {
		return domain.Actor{}, err
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return domain.Actor{}, domain.ErrInvalidName
		}
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		addr := strings.TrimSpace(*patch.Email)
		if addr == "" || !strings.Contains(addr, "@") {
			return domain.Actor{}, domain.ErrInvalidEmail
		}
		user.Email = addr
	}
	if patch.Phone != nil {
		user.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return domain.Actor{}, domain.ErrInvalidPassword
		}
		hash, err := password.Hash(*patch.Password)
		if err != nil {
			return domain.Actor{}, err
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Actor{}, domain.ErrEmailTaken
		}
		return domain.Actor{}, err
	}

	return user, nil
}

func (s *Service) DeleteClient(ctx context.Context, id snowflake.ID) error {
	client, err := s.ownedClient(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.DeleteClientCascade(ctx, tx, client.ID)
	})
}

func (s *Service) DeleteUser(ctx context.Context, id snowflake.ID) error {
	user, err := s.ownedUser(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, s.db, user.ID)
}

func (s *Service) EnsureMember(ctx context.Context, name, addr string) (domain.Actor, string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" || !strings.Contains(addr, "@") {
		return domain.Actor{}, "", domain.ErrInvalidEmail
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, addr)
	if err != nil {
		return domain.Actor{}, "", err
	}
	if existing != nil {
		return *existing, "", nil
	}

	plain, err := password.Generate()
	if err != nil {
		return domain.Actor{}, "", err
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return domain.Actor{}, "", err
	}

	now := s.clock.Now()
	actor := domain.Actor{
		ID:           s.genID.Generate(),
		Role:         domain.RoleMember,
		Name:         strings.TrimSpace(name),
		Email:        addr,
		PasswordHash: hash,
		ActiveStatus: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &actor); err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the race to a concurrent provision with the same email.
			existing, ferr := s.repo.FindByEmail(ctx, s.db, addr)
			if ferr == nil && existing != nil {
				return *existing, "", nil
			}
			return domain.Actor{}, "", domain.ErrEmailTaken
		}
		return domain.Actor{}, "", err
	}

	s.sendCredentials(actor, plain, s.cfg.AppName)

	return actor, plain, nil
}

func (s *Service) Scope(ctx context.Context, actor domain.Actor) ([]snowflake.ID, error) {
	switch actor.Role {
	case domain.RoleAdmin:
		clientIDs, err := s.repo.ChildIDs(ctx, s.db, actor.ID, domain.RoleClient)
		if err != nil {
			return nil, err
		}
		return append([]snowflake.ID{actor.ID}, clientIDs...), nil
	case domain.RoleClient:
		return []snowflake.ID{actor.ID}, nil
	default:
		return nil, domain.ErrForbidden
	}
}

func (s *Service) Children(ctx context.Context, ownerID snowflake.ID, role domain.Role) ([]snowflake.ID, error) {
	ids, err := s.repo.ChildIDs(ctx, s.db, ownerID, role)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []snowflake.ID{}
	}
	return ids, nil
}

func (s *Service) ClientStats(ctx context.Context) (domain.StatsResponse, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != domain.RoleAdmin {
		return domain.StatsResponse{}, domain.ErrForbidden
	}

	clients, err := s.repo.List(ctx, s.db, caller.ID, domain.RoleClient)
	if err != nil {
		return domain.StatsResponse{}, err
	}

	return s.buildStats(actorsCreatedAt(clients)), nil
}

func (s *Service) UserStats(ctx context.Context) (domain.StatsResponse, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.StatsResponse{}, domain.ErrForbidden
	}

	var users []*domain.Actor
	switch caller.Role {
	case domain.RoleClient:
		var err error
		users, err = s.repo.List(ctx, s.db, caller.ID, domain.RoleUser)
		if err != nil {
			return domain.StatsResponse{}, err
		}
	case domain.RoleAdmin:
		clientIDs, err := s.repo.ChildIDs(ctx, s.db, caller.ID, domain.RoleClient)
		if err != nil {
			return domain.StatsResponse{}, err
		}
		for _, clientID := range clientIDs {
			batch, err := s.repo.List(ctx, s.db, clientID, domain.RoleUser)
			if err != nil {
				return domain.StatsResponse{}, err
			}
			users = append(users, batch...)
		}
	default:
		return domain.StatsResponse{}, domain.ErrForbidden
	}

	return s.buildStats(actorsCreatedAt(users)), nil
}

func (s *Service) Activity(ctx context.Context, year int) ([]stats.MonthlyActivity, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	if year == 0 {
		year = s.clock.Now().Year()
	}

	clients, err := s.repo.List(ctx, s.db, caller.ID, domain.RoleClient)
	if err != nil {
		return nil, err
	}

	entries := make([]stats.ActivityEntry, 0, len(clients))
	for _, client := range clients {
		if client == nil || client.LastLogin == nil {
			continue
		}
		entries = append(entries, stats.ActivityEntry{
			LastLogin: *client.LastLogin,
			Active:    client.ActiveStatus,
		})
	}

	return stats.MonthlySeries(entries, year), nil
}

func (s *Service) buildStats(times []time.Time) domain.StatsResponse {
	now := s.clock.Now()
	periods := stats.PeriodsOf(now)

	count := func(r stats.Range) int {
		n := 0
		for _, t := range times {
			if r.Contains(t) {
				n++
			}
		}
		return n
	}

	return domain.StatsResponse{
		Windows:   stats.WindowCounts(times, now, stats.DefaultWindows),
		Today:     stats.NewPeriodChange(count(periods.Today), count(periods.Yesterday)),
		ThisWeek:  stats.NewPeriodChange(count(periods.ThisWeek), count(periods.LastWeek)),
		ThisMonth: stats.NewPeriodChange(count(periods.ThisMonth), count(periods.LastMonth)),
	}
}

// ownedClient loads a client and checks the caller administers it.
func (s *Service) ownedClient(ctx context.Context, id snowflake.ID) (domain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != domain.RoleAdmin {
		return domain.Actor{}, domain.ErrForbidden
	}
	if id == 0 {
		return domain.Actor{}, domain.ErrInvalidID
	}

	client, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Actor{}, err
	}
	if client == nil || client.Role != domain.RoleClient {
		return domain.Actor{}, domain.ErrNotFound
	}
	if client.OwnerID != caller.ID {
		return domain.Actor{}, domain.ErrForbidden
	}
	return *client, nil
}

// ownedUser loads a user and checks the caller is its client or that
// client's admin.
func (s *Service) ownedUser(ctx context.Context, id snowflake.ID) (domain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, domain.ErrForbidden
	}
	if id == 0 {
		return domain.Actor{}, domain.ErrInvalidID
	}

	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Actor{}, err
	}
	if user == nil || user.Role != domain.RoleUser {
		return domain.Actor{}, domain.ErrNotFound
	}

	switch caller.Role {
	case domain.RoleClient:
		if user.OwnerID != caller.ID {
			return domain.Actor{}, domain.ErrForbidden
		}
	case domain.RoleAdmin:
		owner, err := s.repo.FindByID(ctx, s.db, user.OwnerID)
		if err != nil {
			return domain.Actor{}, err
		}
		if owner == nil || owner.OwnerID != caller.ID {
			return domain.Actor{}, domain.ErrForbidden
		}
	default:
		return domain.Actor{}, domain.ErrForbidden
	}

	return *user, nil
}

func (s *Service) sendCredentials(actor domain.Actor, plain, senderCompany string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()

		err := s.email.SendTemplate(ctx, []string{actor.Email}, "credentials", map[string]interface{}{
			"subject":        "Your account credentials",
			"message":        "An account has been created for you. Use the credentials below to sign in.",
			"email":          actor.Email,
			"password":       plain,
			"login_url":      s.cfg.LoginURL,
			"sender_company": senderCompany,
		})
		if err != nil {
			s.log.Warn("credentials email failed",
				zap.Error(err),
				zap.String("actor_id", actor.ID.String()),
			)
		}
	}()
}

func buildListResponse(items []*domain.Actor) domain.ListResponse {
	resp := domain.ListResponse{Actors: make([]domain.Actor, 0, len(items))}
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Actors = append(resp.Actors, *item)
		if item.ActiveStatus {
			resp.ActiveCount++
		} else {
			resp.InactiveCount++
		}
	}
	return resp
}

func actorsCreatedAt(items []*domain.Actor) []time.Time {
	times := make([]time.Time, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		times = append(times, item.CreatedAt)
	}
	return times
}
