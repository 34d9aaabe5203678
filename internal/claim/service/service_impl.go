package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/claim/domain"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	notificationdomain "github.com/warrantydesk/warrantydesk/internal/notification/domain"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/stats"
	"github.com/warrantydesk/warrantydesk/pkg/db"
)

const (
	emailTimeout = 10 * time.Second
	topCompanies = 5
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Directory directorydomain.Service
	Notifier  notificationdomain.Service
	Email     email.Provider
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	directory directorydomain.Service
	notifier  notificationdomain.Service
	email     email.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("claim.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		directory: p.Directory,
		notifier:  p.Notifier,
		email:     p.Email,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Claim, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Claim{}, domain.ErrForbidden
	}
	if _, err := s.directory.Scope(ctx, caller); err != nil {
		return domain.Claim{}, domain.ErrForbidden
	}

	if strings.TrimSpace(req.RONumber) == "" {
		return domain.Claim{}, domain.ErrInvalidRONumber
	}
	if !domain.ValidStatus(req.Status) {
		return domain.Claim{}, domain.ErrInvalidStatus
	}

	now := s.clock.Now()
	claim := domain.Claim{
		ID:               s.genID.Generate(),
		OwnerID:          ownerFor(caller),
		RONumber:         strings.TrimSpace(req.RONumber),
		ROSuffix:         strings.TrimSpace(req.ROSuffix),
		RODate:           req.RODate,
		JobNumber:        req.JobNumber,
		Quoted:           req.Quoted,
		Status:           req.Status,
		EntryDate:        req.EntryDate,
		ErrorDescription: req.ErrorDescription,
		AdditionalInfo:   req.AdditionalInfo,
		InternalNotes:    req.InternalNotes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, &claim); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Claim{}, domain.ErrDuplicateClaim
		}
		return domain.Claim{}, err
	}

	return claim, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Claim, error) {
	return s.list(ctx, false)
}

func (s *Service) ListArchived(ctx context.Context) ([]domain.Claim, error) {
	return s.list(ctx, true)
}

func (s *Service) list(ctx context.Context, archived bool) ([]domain.Claim, error) {
	scope, err := s.callerScope(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, scope, archived)
	if err != nil {
		return nil, err
	}

	claims := make([]domain.Claim, 0, len(items))
	for _, item := range items {
		if item != nil {
			claims = append(claims, *item)
		}
	}
	return claims, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Claim, error) {
	claim, _, err := s.scopedClaim(ctx, id)
	return claim, err
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status) (domain.Claim, error) {
	if !domain.ValidStatus(status) {
		return domain.Claim{}, domain.ErrInvalidStatus
	}

	claim, caller, err := s.scopedClaim(ctx, id)
	if err != nil {
		return domain.Claim{}, err
	}

	claim.Status = status
	claim.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &claim); err != nil {
		return domain.Claim{}, err
	}

	message := fmt.Sprintf("Claim %s has been updated to %s.", claim.Label(), status)
	if err := s.notify(ctx, caller, claim, "Claim Updated", message); err != nil {
		return domain.Claim{}, err
	}

	return claim, nil
}

func (s *Service) UpdateDetails(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (domain.Claim, error) {
	if !domain.ValidStatus(req.Status) {
		return domain.Claim{}, domain.ErrInvalidStatus
	}

	claim, caller, err := s.scopedClaim(ctx, id)
	if err != nil {
		return domain.Claim{}, err
	}

	claim.RODate = req.RODate
	claim.JobNumber = req.JobNumber
	claim.Quoted = req.Quoted
	claim.Status = req.Status
	claim.EntryDate = req.EntryDate
	claim.ErrorDescription = req.ErrorDescription
	claim.AdditionalInfo = req.AdditionalInfo
	claim.InternalNotes = req.InternalNotes
	claim.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, &claim); err != nil {
		return domain.Claim{}, err
	}

	message := fmt.Sprintf("Claim %s has been updated to %s.", claim.Label(), claim.Status)
	if err := s.notify(ctx, caller, claim, "Claim Updated", message); err != nil {
		return domain.Claim{}, err
	}

	return claim, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	claim, caller, err := s.scopedClaim(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteThread(ctx, tx, claim.ID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, claim.ID)
	})
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Claim %s has been deleted by %s.", claim.Label(), roleLabel(caller.Role))
	return s.notify(ctx, caller, claim, "Claim Deleted", message)
}

func (s *Service) Archive(ctx context.Context, ids []snowflake.ID) (int64, error) {
	return s.setArchived(ctx, ids, true)
}

func (s *Service) Unarchive(ctx context.Context, ids []snowflake.ID) (int64, error) {
	return s.setArchived(ctx, ids, false)
}

func (s *Service) setArchived(ctx context.Context, ids []snowflake.ID, archived bool) (int64, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return 0, domain.ErrForbidden
	}
	scope, err := s.directory.Scope(ctx, caller)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	candidates, err := s.repo.ListByIDs(ctx, s.db, ids, scope)
	if err != nil {
		return 0, err
	}
	affected := make([]domain.Claim, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate != nil && candidate.Archived != archived {
			affected = append(affected, *candidate)
		}
	}

	modified, err := s.repo.SetArchived(ctx, s.db, ids, scope, archived)
	if err != nil {
		return 0, err
	}

	s.fanOutArchive(ctx, caller, affected, archived)

	return modified, nil
}

// fanOutArchive creates one notification per flipped claim. Failures are
// logged inside the batch, never rolled back.
func (s *Service) fanOutArchive(ctx context.Context, caller directorydomain.Actor, claims []domain.Claim, archived bool) {
	if len(claims) == 0 {
		return
	}

	verb := "archived"
	title := "Claim Archived"
	if !archived {
		verb = "unarchived"
		title = "Claim Unarchived"
	}

	owners := map[snowflake.ID]directorydomain.Actor{}
	reqs := make([]notificationdomain.CreateRequest, 0, len(claims))
	for _, claim := range claims {
		owner, ok := owners[claim.OwnerID]
		if !ok {
			resolved, err := s.directory.Get(ctx, claim.OwnerID)
			if err != nil {
				s.log.Warn("archive fan-out owner lookup failed",
					zap.Error(err),
					zap.String("claim_id", claim.ID.String()),
				)
				continue
			}
			owner = resolved
			owners[claim.OwnerID] = owner
		}

		message := fmt.Sprintf("Claim %s of %s of Company %s has been %s by Admin.",
			claim.Label(), owner.Name, owner.DisplayCompany(), verb)
		if caller.Role != directorydomain.RoleAdmin {
			message = fmt.Sprintf("Claim %s has been %s by %s.", claim.Label(), verb, roleLabel(caller.Role))
		}

		reqs = append(reqs, notificationdomain.CreateRequest{
			Actor:       caller,
			Counterpart: s.counterpart(caller, claim),
			ClaimID:     claim.ID,
			Title:       title,
			Message:     message,
		})
	}

	s.notifier.CreateBatch(ctx, reqs)
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardResponse, error) {
	scope, err := s.callerScope(ctx)
	if err != nil {
		return domain.DashboardResponse{}, err
	}

	statusCounts, err := s.repo.StatusCounts(ctx, s.db, scope)
	if err != nil {
		return domain.DashboardResponse{}, err
	}

	ownerCounts, err := s.repo.CountByOwner(ctx, s.db, scope)
	if err != nil {
		return domain.DashboardResponse{}, err
	}

	companies := make([]domain.CompanyCount, 0, len(ownerCounts))
	for _, oc := range ownerCounts {
		if len(companies) == topCompanies {
			break
		}
		owner, err := s.directory.Get(ctx, oc.OwnerID)
		if err != nil {
			continue
		}
		if owner.Role != directorydomain.RoleClient {
			continue
		}
		companies = append(companies, domain.CompanyCount{
			ClientID: owner.ID,
			Company:  owner.DisplayCompany(),
			Count:    oc.Count,
		})
	}

	return domain.DashboardResponse{
		StatusCounts: statusCounts,
		TopCompanies: companies,
	}, nil
}

func (s *Service) Stats(ctx context.Context) (domain.StatsResponse, error) {
	scope, err := s.callerScope(ctx)
	if err != nil {
		return domain.StatsResponse{}, err
	}

	claims, err := s.repo.ListAll(ctx, s.db, scope)
	if err != nil {
		return domain.StatsResponse{}, err
	}

	times := make([]time.Time, 0, len(claims))
	for _, claim := range claims {
		if claim != nil {
			times = append(times, claim.CreatedAt)
		}
	}

	return domain.StatsResponse{
		Windows: stats.WindowCounts(times, s.clock.Now(), stats.DefaultWindows),
	}, nil
}

func (s *Service) callerScope(ctx context.Context) ([]snowflake.ID, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return nil, domain.ErrForbidden
	}
	scope, err := s.directory.Scope(ctx, caller)
	if err != nil {
		return nil, domain.ErrForbidden
	}
	return scope, nil
}

// scopedClaim loads a claim and checks it is visible to the caller.
func (s *Service) scopedClaim(ctx context.Context, id snowflake.ID) (domain.Claim, directorydomain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Claim{}, directorydomain.Actor{}, domain.ErrForbidden
	}
	if id == 0 {
		return domain.Claim{}, directorydomain.Actor{}, domain.ErrInvalidID
	}

	scope, err := s.directory.Scope(ctx, caller)
	if err != nil {
		return domain.Claim{}, directorydomain.Actor{}, domain.ErrForbidden
	}

	claim, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Claim{}, directorydomain.Actor{}, err
	}
	if claim == nil {
		return domain.Claim{}, directorydomain.Actor{}, domain.ErrNotFound
	}

	for _, ownerID := range scope {
		if claim.OwnerID == ownerID {
			return *claim, caller, nil
		}
	}
	return domain.Claim{}, directorydomain.Actor{}, domain.ErrForbidden
}

// notify persists the feed entry (failure fails the operation) and fires
// a best-effort email at the claim's client.
func (s *Service) notify(ctx context.Context, caller directorydomain.Actor, claim domain.Claim, title, message string) error {
	_, err := s.notifier.Create(ctx, notificationdomain.CreateRequest{
		Actor:       caller,
		Counterpart: s.counterpart(caller, claim),
		ClaimID:     claim.ID,
		Title:       title,
		Message:     message,
	})
	if err != nil {
		return err
	}

	s.emailCounterpart(ctx, caller, claim, message)
	return nil
}

// counterpart is the client a claim concerns when an admin acts on it.
func (s *Service) counterpart(caller directorydomain.Actor, claim domain.Claim) snowflake.ID {
	if caller.Role == directorydomain.RoleAdmin && claim.OwnerID != caller.ID {
		return claim.OwnerID
	}
	return 0
}

func (s *Service) emailCounterpart(ctx context.Context, caller directorydomain.Actor, claim domain.Claim, message string) {
	counterpartID := s.counterpart(caller, claim)
	if counterpartID == 0 {
		return
	}

	client, err := s.directory.Get(ctx, counterpartID)
	if err != nil {
		s.log.Warn("claim email lookup failed",
			zap.Error(err),
			zap.String("claim_id", claim.ID.String()),
		)
		return
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()

		err := s.email.SendTemplate(sendCtx, []string{client.Email}, "notification", map[string]interface{}{
			"subject":        "Claim " + claim.Label(),
			"client_name":    client.Name,
			"message":        message,
			"client_company": client.DisplayCompany(),
			"sender_company": caller.DisplayCompany(),
		})
		if err != nil {
			s.log.Warn("claim email failed",
				zap.Error(err),
				zap.String("claim_id", claim.ID.String()),
			)
		}
	}()
}

func ownerFor(caller directorydomain.Actor) snowflake.ID {
	if caller.Role == directorydomain.RoleUser {
		return caller.OwnerID
	}
	return caller.ID
}

func roleLabel(role directorydomain.Role) string {
	switch role {
	case directorydomain.RoleAdmin:
		return "admin"
	case directorydomain.RoleClient:
		return "Client"
	case directorydomain.RoleUser:
		return "User"
	default:
		return string(role)
	}
}
