package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/chat/domain"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	notificationdomain "github.com/warrantydesk/warrantydesk/internal/notification/domain"
	"github.com/warrantydesk/warrantydesk/internal/providers/storage"
)

const (
	defaultTopN  = 5
	defaultLimit = 20
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
	Storage   storage.Provider
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	directory directorydomain.Service
	notifier  notificationdomain.Service
	storage   storage.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("chat.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		directory: p.Directory,
		notifier:  p.Notifier,
		storage:   p.Storage,
	}
}

func (s *Service) Send(ctx context.Context, req domain.SendRequest) (domain.Message, error) {
	caller, claim, err := s.threadAccess(ctx, req.ClaimID)
	if err != nil {
		return domain.Message{}, err
	}
	if req.File == nil && strings.TrimSpace(req.Content) == "" {
		return domain.Message{}, domain.ErrEmptyMessage
	}

	now := s.clock.Now()
	message := domain.Message{
		ID:        s.genID.Generate(),
		ClaimID:   claim.ID,
		SenderID:  caller.ID,
		Content:   strings.TrimSpace(req.Content),
		Type:      domain.TypeText,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.File != nil {
		stored, err := s.storage.Save(ctx, req.File.Filename, req.File.ContentType, req.File.Reader)
		if err != nil {
			return domain.Message{}, err
		}
		fileData := datatypes.NewJSONType(domain.FileData{
			Filename:    stored.Filename,
			StoredName:  stored.StoredName,
			ContentType: stored.ContentType,
			Size:        stored.Size,
		})
		message.Type = domain.TypeFile
		message.FileData = &fileData
	}

	previous, err := s.repo.LastFromOther(ctx, s.db, claim.ID, caller.ID)
	if err != nil {
		return domain.Message{}, err
	}
	if previous != nil {
		elapsed := now.Sub(previous.CreatedAt).Seconds()
		message.ResponseTime = &elapsed
	}

	if err := s.repo.Insert(ctx, s.db, &message); err != nil {
		return domain.Message{}, err
	}

	text := fmt.Sprintf("%s has sent you a message against claim %s-%s.",
		caller.Name, claim.RONumber, claim.ROSuffix)
	_, err = s.notifier.Create(ctx, notificationdomain.CreateRequest{
		Actor:       caller,
		Counterpart: s.counterpart(caller, claim),
		ClaimID:     claim.ID,
		Title:       "New Message",
		Message:     text,
	})
	if err != nil {
		return domain.Message{}, err
	}

	return message, nil
}

func (s *Service) Thread(ctx context.Context, claimID snowflake.ID) ([]domain.Message, error) {
	_, claim, err := s.threadAccess(ctx, claimID)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.Thread(ctx, s.db, claim.ID)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(items))
	for _, item := range items {
		if item != nil {
			messages = append(messages, *item)
		}
	}
	return messages, nil
}

func (s *Service) TopResponseTimes(ctx context.Context, n int) ([]domain.ResponseTimeEntry, error) {
	if n <= 0 {
		n = defaultTopN
	}

	entries, err := s.responseTimes(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func (s *Service) ResponseTimes(ctx context.Context, page, limit int) (domain.ResponseTimePage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	entries, err := s.responseTimes(ctx)
	if err != nil {
		return domain.ResponseTimePage{}, err
	}

	totalPages := (len(entries) + limit - 1) / limit
	start := (page - 1) * limit
	if start > len(entries) {
		start = len(entries)
	}
	end := start + limit
	if end > len(entries) {
		end = len(entries)
	}

	return domain.ResponseTimePage{
		Entries:    entries[start:end],
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// responseTimes aggregates reply latency per client of the calling
// admin, fastest first.
func (s *Service) responseTimes(ctx context.Context) ([]domain.ResponseTimeEntry, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != directorydomain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	clientIDs, err := s.directory.Children(ctx, caller.ID, directorydomain.RoleClient)
	if err != nil {
		return nil, err
	}
	if len(clientIDs) == 0 {
		return []domain.ResponseTimeEntry{}, nil
	}

	averages, err := s.repo.AvgResponseBySender(ctx, s.db, clientIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.ResponseTimeEntry, 0, len(averages))
	for _, avg := range averages {
		client, err := s.directory.Get(ctx, avg.SenderID)
		if err != nil {
			continue
		}
		entries = append(entries, domain.ResponseTimeEntry{
			ClientID:   client.ID,
			Name:       client.Name,
			Company:    client.DisplayCompany(),
			AvgSeconds: avg.AvgSeconds,
		})
	}
	return entries, nil
}

// threadAccess loads the claim and checks the caller may take part in
// its thread: the owning client, that client's users, or the admin
// above them.
func (s *Service) threadAccess(ctx context.Context, claimID snowflake.ID) (directorydomain.Actor, domain.ClaimRef, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return directorydomain.Actor{}, domain.ClaimRef{}, domain.ErrForbidden
	}
	if claimID == 0 {
		return directorydomain.Actor{}, domain.ClaimRef{}, domain.ErrInvalidID
	}

	claim, err := s.repo.FindClaim(ctx, s.db, claimID)
	if err != nil {
		return directorydomain.Actor{}, domain.ClaimRef{}, err
	}
	if claim == nil {
		return directorydomain.Actor{}, domain.ClaimRef{}, domain.ErrNotFound
	}

	switch caller.Role {
	case directorydomain.RoleClient:
		if claim.OwnerID != caller.ID {
			return directorydomain.Actor{}, domain.ClaimRef{}, domain.ErrForbidden
		}
	case directorydomain.RoleUser:
		if claim.OwnerID != caller.OwnerID {
			return directorydomain.Actor{}, domain.ClaimRef{}, domain.ErrForbidden
		}
	case directorydomain.RoleAdmin:
		if claim.OwnerID != caller.ID {
			owner, err := s.directory.Get(ctx, claim.OwnerID)
			if err != nil || owner.OwnerID != caller.ID {
				return directorydomain.Actor{}, domain.ClaimRef{}, domain.ErrForbidden
			}
		}
	default:
		return directorydomain.Actor{}, domain.ClaimRef{}, domain.ErrForbidden
	}

	return caller, *claim, nil
}

func (s *Service) counterpart(caller directorydomain.Actor, claim domain.ClaimRef) snowflake.ID {
	if caller.Role == directorydomain.RoleAdmin && claim.OwnerID != caller.ID {
		return claim.OwnerID
	}
	return 0
}
