package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	"github.com/warrantydesk/warrantydesk/internal/notification/domain"
	"github.com/warrantydesk/warrantydesk/internal/notification/repository"
	"github.com/warrantydesk/warrantydesk/internal/realtime"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.Notification{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &Service{
		db:    gdb,
		log:   zap.NewNop(),
		genID: node,
		clock: clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)),
		hub:   realtime.NewHub(),
		repo:  repository.Provide(),
	}
}

func TestCreateAdminActionLandsInAdminFeed(t *testing.T) {
	svc := newTestService(t)

	node := svc.genID
	admin := directorydomain.Actor{ID: node.Generate(), Role: directorydomain.RoleAdmin}
	clientID := node.Generate()

	created, err := svc.Create(context.Background(), domain.CreateRequest{
		Actor:       admin,
		Counterpart: clientID,
		Title:       "Claim Updated",
		Message:     "Claim RO-100 - Suffix-1 has been updated to CR.",
	})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, created.OwnerID)
	assert.Equal(t, clientID, created.ClientID)

	feed, err := svc.Feed(actorctx.WithActor(context.Background(), admin))
	require.NoError(t, err)
	require.Len(t, feed.Notifications, 1)
	assert.Equal(t, "Claim RO-100 - Suffix-1 has been updated to CR.", feed.Notifications[0].Message)
	assert.Equal(t, 1, feed.UnreadCount)
}

func TestCreateClientActionAddressesOwner(t *testing.T) {
	svc := newTestService(t)

	adminID := svc.genID.Generate()
	client := directorydomain.Actor{ID: svc.genID.Generate(), OwnerID: adminID, Role: directorydomain.RoleClient}

	created, err := svc.Create(context.Background(), domain.CreateRequest{
		Actor:   client,
		Title:   "Claim Updated",
		Message: "Claim RO-200 - A has been updated to PR.",
	})
	require.NoError(t, err)
	assert.Equal(t, adminID, created.OwnerID)
	assert.Equal(t, client.ID, created.ClientID)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateRequest{
		Actor:   directorydomain.Actor{ID: 1, Role: directorydomain.RoleMember},
		Message: "hello",
	})
	assert.ErrorIs(t, err, domain.ErrMissingAddressee)
}

func TestCreateBatchPartialFailure(t *testing.T) {
	svc := newTestService(t)

	admin := directorydomain.Actor{ID: svc.genID.Generate(), Role: directorydomain.RoleAdmin}

	reqs := []domain.CreateRequest{
		{Actor: admin, Title: "A", Message: "first"},
		{Actor: admin, Title: "B", Message: ""}, // invalid, skipped
		{Actor: admin, Title: "C", Message: "third"},
	}
	svc.CreateBatch(context.Background(), reqs)

	feed, err := svc.Feed(actorctx.WithActor(context.Background(), admin))
	require.NoError(t, err)
	assert.Len(t, feed.Notifications, 2)
}

func TestMarkReadSetsReadAt(t *testing.T) {
	svc := newTestService(t)

	admin := directorydomain.Actor{ID: svc.genID.Generate(), Role: directorydomain.RoleAdmin}
	created, err := svc.Create(context.Background(), domain.CreateRequest{
		Actor:   admin,
		Title:   "A",
		Message: "first",
	})
	require.NoError(t, err)

	ctx := actorctx.WithActor(context.Background(), admin)
	require.NoError(t, svc.MarkRead(ctx, created.ID))

	feed, err := svc.Feed(ctx)
	require.NoError(t, err)
	require.Len(t, feed.Notifications, 1)
	assert.True(t, feed.Notifications[0].IsRead)
	assert.NotNil(t, feed.Notifications[0].ReadAt)
	assert.Equal(t, 0, feed.UnreadCount)
}

func TestMarkReadForeignFeedForbidden(t *testing.T) {
	svc := newTestService(t)

	admin := directorydomain.Actor{ID: svc.genID.Generate(), Role: directorydomain.RoleAdmin}
	created, err := svc.Create(context.Background(), domain.CreateRequest{
		Actor:   admin,
		Title:   "A",
		Message: "first",
	})
	require.NoError(t, err)

	other := directorydomain.Actor{ID: svc.genID.Generate(), Role: directorydomain.RoleAdmin}
	err = svc.MarkRead(actorctx.WithActor(context.Background(), other), created.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCreatePushesToLiveSubscribers(t *testing.T) {
	svc := newTestService(t)

	adminID := svc.genID.Generate()
	client := directorydomain.Actor{ID: svc.genID.Generate(), OwnerID: adminID, Role: directorydomain.RoleClient}

	adminSub := svc.hub.Subscribe(adminID)
	defer adminSub.Close()
	clientSub := svc.hub.Subscribe(client.ID)
	defer clientSub.Close()

	_, err := svc.Create(context.Background(), domain.CreateRequest{
		Actor:   client,
		Title:   "Claim Updated",
		Message: "Claim RO-300 - B has been updated to PA.",
	})
	require.NoError(t, err)

	select {
	case event := <-adminSub.Events():
		assert.Equal(t, "notification.created", event.Type)
	default:
		t.Fatal("expected event on admin subscription")
	}

	select {
	case event := <-clientSub.Events():
		assert.Equal(t, "notification.created", event.Type)
	default:
		t.Fatal("expected event on client subscription")
	}
}
