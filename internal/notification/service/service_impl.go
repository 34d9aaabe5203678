package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	"github.com/warrantydesk/warrantydesk/internal/notification/domain"
	"github.com/warrantydesk/warrantydesk/internal/observability/metrics"
	"github.com/warrantydesk/warrantydesk/internal/realtime"
)

// batchWorkers bounds the fan-out concurrency for bulk operations.
const batchWorkers = 4

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Hub   *realtime.Hub
	Repo  domain.Repository

	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	hub     *realtime.Hub
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("notification.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		hub:     p.Hub,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Notification, error) {
	owner, client, err := domain.Addressee(req.Actor, req.Counterpart)
	if err != nil {
		return domain.Notification{}, err
	}
	if owner == 0 && client == 0 {
		return domain.Notification{}, domain.ErrMissingAddressee
	}
	if strings.TrimSpace(req.Message) == "" {
		return domain.Notification{}, domain.ErrInvalidMessage
	}

	now := s.clock.Now()
	notification := domain.Notification{
		ID:            s.genID.Generate(),
		OwnerID:       owner,
		ClientID:      client,
		ClaimID:       req.ClaimID,
		InvoiceNumber: req.InvoiceNumber,
		Title:         req.Title,
		Message:       req.Message,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &notification); err != nil {
		return domain.Notification{}, err
	}

	s.metrics.RecordNotification(string(req.Actor.Role))
	s.push(notification)

	return notification, nil
}

func (s *Service) CreateBatch(ctx context.Context, reqs []domain.CreateRequest) {
	if len(reqs) == 0 {
		return
	}

	sem := make(chan struct{}, batchWorkers)
	var wg sync.WaitGroup

	for _, req := range reqs {
		req := req
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := s.Create(ctx, req); err != nil {
				s.log.Warn("batch notification failed",
					zap.Error(err),
					zap.String("title", req.Title),
				)
			}
		}()
	}

	wg.Wait()
}

func (s *Service) Feed(ctx context.Context) (domain.FeedResponse, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.FeedResponse{}, domain.ErrForbidden
	}

	var (
		items []*domain.Notification
		err   error
	)
	switch caller.Role {
	case directorydomain.RoleAdmin:
		items, err = s.repo.ListByOwner(ctx, s.db, caller.ID)
	case directorydomain.RoleClient:
		items, err = s.repo.ListByClient(ctx, s.db, caller.ID)
	case directorydomain.RoleUser:
		items, err = s.repo.ListByClient(ctx, s.db, caller.OwnerID)
	default:
		return domain.FeedResponse{}, domain.ErrForbidden
	}
	if err != nil {
		return domain.FeedResponse{}, err
	}

	resp := domain.FeedResponse{Notifications: make([]domain.Notification, 0, len(items))}
	for _, item := range items {
		if item == nil {
			continue
		}
		resp.Notifications = append(resp.Notifications, *item)
		if !item.IsRead {
			resp.UnreadCount++
		}
	}
	return resp, nil
}

func (s *Service) MarkRead(ctx context.Context, id snowflake.ID) error {
	notification, err := s.inFeed(ctx, id)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	notification.IsRead = true
	notification.ReadAt = &now
	notification.UpdatedAt = now
	return s.repo.MarkRead(ctx, s.db, &notification)
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	notification, err := s.inFeed(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, s.db, notification.ID)
}

// inFeed loads a notification and checks it belongs to the caller's feed.
func (s *Service) inFeed(ctx context.Context, id snowflake.ID) (domain.Notification, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Notification{}, domain.ErrForbidden
	}

	notification, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if notification == nil {
		return domain.Notification{}, domain.ErrNotFound
	}

	switch caller.Role {
	case directorydomain.RoleAdmin:
		if notification.OwnerID != caller.ID {
			return domain.Notification{}, domain.ErrForbidden
		}
	case directorydomain.RoleClient:
		if notification.ClientID != caller.ID {
			return domain.Notification{}, domain.ErrForbidden
		}
	default:
		return domain.Notification{}, domain.ErrForbidden
	}

	return *notification, nil
}

// push forwards the persisted notification to any live connection for
// its addressees. Delivery is best effort and never blocks.
func (s *Service) push(notification domain.Notification) {
	event := realtime.Event{
		Type:           "notification.created",
		NotificationID: notification.ID.String(),
		Title:          notification.Title,
		Message:        notification.Message,
		CreatedAt:      notification.CreatedAt.Format(time.RFC3339),
	}

	s.hub.Publish(notification.OwnerID, event)
	if notification.ClientID != 0 && notification.ClientID != notification.OwnerID {
		s.hub.Publish(notification.ClientID, event)
	}
}
