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
	"github.com/warrantydesk/warrantydesk/internal/config"
	"github.com/warrantydesk/warrantydesk/internal/directory/domain"
	"github.com/warrantydesk/warrantydesk/internal/directory/repository"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
)

// Child tables the client cascade touches. Declared locally so the test
// schema matches the production table names without importing the
// feature packages.
type testClaim struct {
	ID      snowflake.ID `gorm:"primaryKey"`
	OwnerID snowflake.ID
}

func (testClaim) TableName() string { return "claims" }

type testInvoice struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	OwnerID  snowflake.ID
	ClientID snowflake.ID
}

func (testInvoice) TableName() string { return "invoices" }

type testChatMessage struct {
	ID      snowflake.ID `gorm:"primaryKey"`
	ClaimID snowflake.ID
}

func (testChatMessage) TableName() string { return "chat_messages" }

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.Actor{}, &testClaim{}, &testInvoice{}, &testChatMessage{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := &Service{
		db:    gdb,
		log:   zap.NewNop(),
		genID: node,
		clock: clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)),
		cfg:   config.Config{AppName: "warrantydesk", ActiveWindowDays: 30},
		email: &email.NoOpProvider{},
		repo:  repository.Provide(),
	}
	return svc, gdb
}

func seedActor(t *testing.T, svc *Service, role domain.Role, ownerID snowflake.ID, addr string) domain.Actor {
	t.Helper()

	now := svc.clock.Now()
	actor := domain.Actor{
		ID:           svc.genID.Generate(),
		OwnerID:      ownerID,
		Role:         role,
		Name:         "actor " + addr,
		Email:        addr,
		ActiveStatus: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, svc.repo.Insert(context.Background(), svc.db, &actor))
	return actor
}

func asActor(actor domain.Actor) context.Context {
	return actorctx.WithActor(context.Background(), actor)
}

func TestScopeClientSeesOnlyItself(t *testing.T) {
	svc, _ := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	client := seedActor(t, svc, domain.RoleClient, admin.ID, "client@example.com")

	ids, err := svc.Scope(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{client.ID}, ids)
}

func TestScopeAdminUnionWithoutDuplicates(t *testing.T) {
	svc, _ := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	clientA := seedActor(t, svc, domain.RoleClient, admin.ID, "a@example.com")
	clientB := seedActor(t, svc, domain.RoleClient, admin.ID, "b@example.com")

	other := seedActor(t, svc, domain.RoleAdmin, 0, "other@example.com")
	seedActor(t, svc, domain.RoleClient, other.ID, "foreign@example.com")

	ids, err := svc.Scope(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, admin.ID)
	assert.Contains(t, ids, clientA.ID)
	assert.Contains(t, ids, clientB.ID)

	seen := map[snowflake.ID]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id in scope")
		seen[id] = true
	}
}

func TestScopeForbiddenRoles(t *testing.T) {
	svc, _ := newTestService(t)

	for _, role := range []domain.Role{domain.RoleUser, domain.RoleMember, domain.RoleSuperAdmin} {
		_, err := svc.Scope(context.Background(), domain.Actor{ID: 1, Role: role})
		assert.ErrorIs(t, err, domain.ErrForbidden, string(role))
	}
}

func TestCreateClientDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	ctx := asActor(admin)

	req := domain.CreateClientRequest{
		Name:     "Store One",
		Email:    "store@example.com",
		Password: "secret",
	}
	_, err := svc.CreateClient(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateClient(ctx, req)
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestCreateClientRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	client := seedActor(t, svc, domain.RoleClient, admin.ID, "client@example.com")

	_, err := svc.CreateClient(asActor(client), domain.CreateClientRequest{
		Name:     "Nested",
		Email:    "nested@example.com",
		Password: "secret",
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateClientPatchLeavesUnsetFields(t *testing.T) {
	svc, _ := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	ctx := asActor(admin)

	created, err := svc.CreateClient(ctx, domain.CreateClientRequest{
		Name:       "Store One",
		Email:      "store@example.com",
		Phone:      "555-0100",
		Password:   "secret",
		StoreName:  "Store One",
		Percentage: 10,
	})
	require.NoError(t, err)

	newPhone := "555-0199"
	updated, err := svc.UpdateClient(ctx, created.ID, domain.ClientPatch{Phone: &newPhone})
	require.NoError(t, err)

	assert.Equal(t, "555-0199", updated.Phone)
	assert.Equal(t, "Store One", updated.Name)
	assert.Equal(t, "store@example.com", updated.Email)
	assert.Equal(t, float64(10), updated.Percentage)
}

func TestUpdateClientForeignAdminForbidden(t *testing.T) {
	svc, _ := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	client := seedActor(t, svc, domain.RoleClient, admin.ID, "client@example.com")
	other := seedActor(t, svc, domain.RoleAdmin, 0, "other@example.com")

	name := "hijack"
	_, err := svc.UpdateClient(asActor(other), client.ID, domain.ClientPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeleteClientCascades(t *testing.T) {
	svc, gdb := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	client := seedActor(t, svc, domain.RoleClient, admin.ID, "client@example.com")
	user := seedActor(t, svc, domain.RoleUser, client.ID, "user@example.com")

	claimID := svc.genID.Generate()
	require.NoError(t, gdb.Create(&testClaim{ID: claimID, OwnerID: client.ID}).Error)
	require.NoError(t, gdb.Create(&testInvoice{ID: svc.genID.Generate(), OwnerID: admin.ID, ClientID: client.ID}).Error)
	require.NoError(t, gdb.Create(&testChatMessage{ID: svc.genID.Generate(), ClaimID: claimID}).Error)

	require.NoError(t, svc.DeleteClient(asActor(admin), client.ID))

	var count int64
	gdb.Model(&testClaim{}).Where("owner_id = ?", client.ID).Count(&count)
	assert.Zero(t, count)
	gdb.Model(&testInvoice{}).Where("client_id = ?", client.ID).Count(&count)
	assert.Zero(t, count)
	gdb.Model(&testChatMessage{}).Where("claim_id = ?", claimID).Count(&count)
	assert.Zero(t, count)
	gdb.Model(&domain.Actor{}).Where("id IN ?", []snowflake.ID{client.ID, user.ID}).Count(&count)
	assert.Zero(t, count)

	gdb.Model(&domain.Actor{}).Where("id = ?", admin.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestListClientsActiveSplit(t *testing.T) {
	svc, _ := newTestService(t)

	admin := seedActor(t, svc, domain.RoleAdmin, 0, "admin@example.com")
	seedActor(t, svc, domain.RoleClient, admin.ID, "a@example.com")

	stale := seedActor(t, svc, domain.RoleClient, admin.ID, "b@example.com")
	stale.ActiveStatus = false
	stale.UpdatedAt = svc.clock.Now()
	require.NoError(t, svc.repo.Update(context.Background(), svc.db, &stale))

	resp, err := svc.ListClients(asActor(admin))
	require.NoError(t, err)
	assert.Len(t, resp.Actors, 2)
	assert.Equal(t, 1, resp.ActiveCount)
	assert.Equal(t, 1, resp.InactiveCount)
}

func TestEnsureMemberIsIdempotentPerEmail(t *testing.T) {
	svc, _ := newTestService(t)

	first, plain, err := svc.EnsureMember(context.Background(), "Donor", "donor@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMember, first.Role)
	assert.NotEmpty(t, plain)

	second, plain2, err := svc.EnsureMember(context.Background(), "Donor", "donor@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Empty(t, plain2)
}
