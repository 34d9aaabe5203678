package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/chat/domain"
	chatrepository "github.com/warrantydesk/warrantydesk/internal/chat/repository"
	claimdomain "github.com/warrantydesk/warrantydesk/internal/claim/domain"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	"github.com/warrantydesk/warrantydesk/internal/config"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	directoryrepository "github.com/warrantydesk/warrantydesk/internal/directory/repository"
	directoryservice "github.com/warrantydesk/warrantydesk/internal/directory/service"
	notificationdomain "github.com/warrantydesk/warrantydesk/internal/notification/domain"
	notificationrepository "github.com/warrantydesk/warrantydesk/internal/notification/repository"
	notificationservice "github.com/warrantydesk/warrantydesk/internal/notification/service"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/providers/storage"
	"github.com/warrantydesk/warrantydesk/internal/realtime"
)

type memStorage struct {
	saved []string
}

func (m *memStorage) Save(ctx context.Context, filename, contentType string, r io.Reader) (storage.StoredFile, error) {
	n, _ := io.Copy(io.Discard, r)
	m.saved = append(m.saved, filename)
	return storage.StoredFile{
		Filename:    filename,
		StoredName:  "stored-" + filename,
		ContentType: contentType,
		Size:        n,
	}, nil
}

func (m *memStorage) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (m *memStorage) Delete(ctx context.Context, storedName string) error { return nil }

type fixture struct {
	svc     *Service
	db      *gorm.DB
	node    *snowflake.Node
	fake    *clock.FakeClock
	dirRepo directorydomain.Repository
	files   *memStorage
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&directorydomain.Actor{},
		&claimdomain.Claim{},
		&domain.Message{},
		&notificationdomain.Notification{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	log := zap.NewNop()

	dirRepo := directoryrepository.Provide()
	dir := directoryservice.New(directoryservice.Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Config: config.Config{AppName: "warrantydesk"},
		Email:  &email.NoOpProvider{},
		Repo:   dirRepo,
	})

	notifier := notificationservice.New(notificationservice.Params{
		DB:    gdb,
		Log:   log,
		GenID: node,
		Clock: fake,
		Hub:   realtime.NewHub(),
		Repo:  notificationrepository.Provide(),
	})

	files := &memStorage{}
	svc := &Service{
		db:        gdb,
		log:       log,
		genID:     node,
		clock:     fake,
		repo:      chatrepository.Provide(),
		directory: dir,
		notifier:  notifier,
		storage:   files,
	}

	return &fixture{svc: svc, db: gdb, node: node, fake: fake, dirRepo: dirRepo, files: files, now: now}
}

func (f *fixture) seedActor(t *testing.T, role directorydomain.Role, ownerID snowflake.ID, addr string) directorydomain.Actor {
	t.Helper()

	actor := directorydomain.Actor{
		ID:           f.node.Generate(),
		OwnerID:      ownerID,
		Role:         role,
		Name:         "actor " + addr,
		Email:        addr,
		CompanyName:  "Company " + addr,
		ActiveStatus: true,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	require.NoError(t, f.dirRepo.Insert(context.Background(), f.db, &actor))
	return actor
}

func (f *fixture) seedClaim(t *testing.T, ownerID snowflake.ID, ro, suffix string) claimdomain.Claim {
	t.Helper()

	claim := claimdomain.Claim{
		ID:        f.node.Generate(),
		OwnerID:   ownerID,
		RONumber:  ro,
		ROSuffix:  suffix,
		Status:    claimdomain.StatusPC,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	require.NoError(t, f.db.Create(&claim).Error)
	return claim
}

func asActor(actor directorydomain.Actor) context.Context {
	return actorctx.WithActor(context.Background(), actor)
}

func TestSendComputesResponseTime(t *testing.T) {
	f := newFixture(t)

	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	client := f.seedActor(t, directorydomain.RoleClient, admin.ID, "client@example.com")
	claim := f.seedClaim(t, client.ID, "RO-100", "A")

	first, err := f.svc.Send(asActor(admin), domain.SendRequest{ClaimID: claim.ID, Content: "any update?"})
	require.NoError(t, err)
	assert.Nil(t, first.ResponseTime)

	f.fake.Advance(90 * time.Second)

	reply, err := f.svc.Send(asActor(client), domain.SendRequest{ClaimID: claim.ID, Content: "working on it"})
	require.NoError(t, err)
	require.NotNil(t, reply.ResponseTime)
	assert.InDelta(t, 90, *reply.ResponseTime, 0.001)
}

func TestSendFileMessage(t *testing.T) {
	f := newFixture(t)

	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	client := f.seedActor(t, directorydomain.RoleClient, admin.ID, "client@example.com")
	claim := f.seedClaim(t, client.ID, "RO-100", "A")

	message, err := f.svc.Send(asActor(client), domain.SendRequest{
		ClaimID: claim.ID,
		File: &domain.FilePayload{
			Filename:    "estimate.pdf",
			ContentType: "application/pdf",
			Reader:      strings.NewReader("pdf bytes"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TypeFile, message.Type)
	require.NotNil(t, message.FileData)
	assert.Equal(t, "estimate.pdf", message.FileData.Data().Filename)
	assert.Equal(t, []string{"estimate.pdf"}, f.files.saved)
}

func TestSendRejectsEmptyText(t *testing.T) {
	f := newFixture(t)

	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	client := f.seedActor(t, directorydomain.RoleClient, admin.ID, "client@example.com")
	claim := f.seedClaim(t, client.ID, "RO-100", "A")

	_, err := f.svc.Send(asActor(client), domain.SendRequest{ClaimID: claim.ID, Content: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestThreadForbiddenForForeignClient(t *testing.T) {
	f := newFixture(t)

	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	client := f.seedActor(t, directorydomain.RoleClient, admin.ID, "client@example.com")
	foreignAdmin := f.seedActor(t, directorydomain.RoleAdmin, 0, "other@example.com")
	foreign := f.seedActor(t, directorydomain.RoleClient, foreignAdmin.ID, "foreign@example.com")
	claim := f.seedClaim(t, client.ID, "RO-100", "A")

	_, err := f.svc.Thread(asActor(foreign), claim.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Thread(asActor(foreignAdmin), claim.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestTopResponseTimesAscending(t *testing.T) {
	f := newFixture(t)

	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	fast := f.seedActor(t, directorydomain.RoleClient, admin.ID, "fast@example.com")
	slow := f.seedActor(t, directorydomain.RoleClient, admin.ID, "slow@example.com")

	fastClaim := f.seedClaim(t, fast.ID, "RO-1", "A")
	slowClaim := f.seedClaim(t, slow.ID, "RO-2", "A")

	adminCtx := asActor(admin)
	_, err := f.svc.Send(adminCtx, domain.SendRequest{ClaimID: fastClaim.ID, Content: "ping"})
	require.NoError(t, err)
	f.fake.Advance(10 * time.Second)
	_, err = f.svc.Send(asActor(fast), domain.SendRequest{ClaimID: fastClaim.ID, Content: "pong"})
	require.NoError(t, err)

	_, err = f.svc.Send(adminCtx, domain.SendRequest{ClaimID: slowClaim.ID, Content: "ping"})
	require.NoError(t, err)
	f.fake.Advance(300 * time.Second)
	_, err = f.svc.Send(asActor(slow), domain.SendRequest{ClaimID: slowClaim.ID, Content: "pong"})
	require.NoError(t, err)

	entries, err := f.svc.TopResponseTimes(adminCtx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, fast.ID, entries[0].ClientID)
	assert.Equal(t, slow.ID, entries[1].ClientID)
	assert.Less(t, entries[0].AvgSeconds, entries[1].AvgSeconds)
}

func TestResponseTimesPagination(t *testing.T) {
	f := newFixture(t)

	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	client := f.seedActor(t, directorydomain.RoleClient, admin.ID, "client@example.com")
	claim := f.seedClaim(t, client.ID, "RO-1", "A")

	adminCtx := asActor(admin)
	_, err := f.svc.Send(adminCtx, domain.SendRequest{ClaimID: claim.ID, Content: "ping"})
	require.NoError(t, err)
	f.fake.Advance(5 * time.Second)
	_, err = f.svc.Send(asActor(client), domain.SendRequest{ClaimID: claim.ID, Content: "pong"})
	require.NoError(t, err)

	page, err := f.svc.ResponseTimes(adminCtx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 1)
	assert.Equal(t, 1, page.TotalPages)

	empty, err := f.svc.ResponseTimes(adminCtx, 2, 1)
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)
}
