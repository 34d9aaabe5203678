package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	chatdomain "github.com/warrantydesk/warrantydesk/internal/chat/domain"
	chatrepository "github.com/warrantydesk/warrantydesk/internal/chat/repository"
	chatservice "github.com/warrantydesk/warrantydesk/internal/chat/service"
	claimdomain "github.com/warrantydesk/warrantydesk/internal/claim/domain"
	claimrepository "github.com/warrantydesk/warrantydesk/internal/claim/repository"
	claimservice "github.com/warrantydesk/warrantydesk/internal/claim/service"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	"github.com/warrantydesk/warrantydesk/internal/config"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	directoryrepository "github.com/warrantydesk/warrantydesk/internal/directory/repository"
	directoryservice "github.com/warrantydesk/warrantydesk/internal/directory/service"
	donationdomain "github.com/warrantydesk/warrantydesk/internal/donation/domain"
	"github.com/warrantydesk/warrantydesk/internal/donation/gateway"
	donationrepository "github.com/warrantydesk/warrantydesk/internal/donation/repository"
	donationservice "github.com/warrantydesk/warrantydesk/internal/donation/service"
	invoicedomain "github.com/warrantydesk/warrantydesk/internal/invoice/domain"
	invoicerepository "github.com/warrantydesk/warrantydesk/internal/invoice/repository"
	invoiceservice "github.com/warrantydesk/warrantydesk/internal/invoice/service"
	notificationdomain "github.com/warrantydesk/warrantydesk/internal/notification/domain"
	notificationrepository "github.com/warrantydesk/warrantydesk/internal/notification/repository"
	notificationservice "github.com/warrantydesk/warrantydesk/internal/notification/service"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/providers/pdf"
	"github.com/warrantydesk/warrantydesk/internal/providers/storage"
	"github.com/warrantydesk/warrantydesk/internal/ratelimit"
	"github.com/warrantydesk/warrantydesk/internal/realtime"
)

type fixture struct {
	server  *Server
	gw      *gateway.Client
	db      *gorm.DB
	node    *snowflake.Node
	dirRepo directorydomain.Repository
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&directorydomain.Actor{},
		&claimdomain.Claim{},
		&invoicedomain.Invoice{},
		&chatdomain.Message{},
		&notificationdomain.Notification{},
		&donationdomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	log := zap.NewNop()
	mail := &email.NoOpProvider{}
	hub := realtime.NewHub()

	cfg := config.Config{
		AppName: "warrantydesk",
		Storage: config.StorageConfig{Dir: t.TempDir()},
		Gateway: config.GatewayConfig{
			SecretKey:     "sk_test_key",
			WebhookSecret: "whsec_test",
		},
	}

	files, err := storage.NewLocal(cfg)
	require.NoError(t, err)

	dirRepo := directoryrepository.Provide()
	dir := directoryservice.New(directoryservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Config: cfg, Email: mail, Repo: dirRepo,
	})

	notifier := notificationservice.New(notificationservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Hub: hub, Repo: notificationrepository.Provide(),
	})

	claims := claimservice.New(claimservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo: claimrepository.Provide(), Directory: dir, Notifier: notifier, Email: mail,
	})

	invoices := invoiceservice.New(invoiceservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo: invoicerepository.Provide(), Directory: dir, Notifier: notifier,
		Email: mail, PDF: &pdf.NoOpProvider{}, Storage: files,
	})

	chats := chatservice.New(chatservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo: chatrepository.Provide(), Directory: dir, Notifier: notifier, Storage: files,
	})

	gw := gateway.New(cfg)
	donations := donationservice.New(donationservice.Params{
		DB: gdb, Log: log, GenID: node, Clock: fake,
		Repo: donationrepository.Provide(), Directory: dir, Gateway: gw,
		Email: mail, PDF: &pdf.NoOpProvider{},
	})

	engine := NewEngine(log, nil)
	srv := NewServer(ServerParams{
		Gin: engine, Cfg: cfg, Log: log,
		DirectorySvc: dir, ClaimSvc: claims, InvoiceSvc: invoices,
		ChatSvc: chats, NotificationSvc: notifier, DonationSvc: donations,
		Hub: hub, Storage: files,
		IntentLimiter: ratelimit.NewDonationIntentLimiter(cfg),
	})

	return &fixture{server: srv, gw: gw, db: gdb, node: node, dirRepo: dirRepo, now: now}
}

func (f *fixture) seedActor(t *testing.T, role directorydomain.Role, ownerID snowflake.ID, addr string) directorydomain.Actor {
	t.Helper()
	actor := directorydomain.Actor{
		ID:           f.node.Generate(),
		OwnerID:      ownerID,
		Role:         role,
		Name:         "actor " + addr,
		Email:        addr,
		ActiveStatus: true,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	require.NoError(t, f.dirRepo.Insert(context.Background(), f.db, &actor))
	return actor
}

func (f *fixture) do(method, path string, body []byte, actor *directorydomain.Actor) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set(HeaderActor, actor.ID.String())
	}
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)
	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")

	rec := f.do(http.MethodGet, "/api/claims", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/claims", nil)
	req.Header.Set(HeaderActor, "999999999999999999")
	rec = httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/claims", nil, &admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleGate(t *testing.T) {
	f := newFixture(t)
	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	client := f.seedActor(t, directorydomain.RoleClient, admin.ID, "client@example.com")

	body := []byte(`{"name":"New Client","email":"new@example.com","password":"secret12"}`)
	rec := f.do(http.MethodPost, "/api/clients", body, &client)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/clients", body, &admin)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestClaimRoundTrip(t *testing.T) {
	f := newFixture(t)
	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")

	body := []byte(`{"roNumber":"RO-100","roSuffix":"A","status":"PC"}`)
	rec := f.do(http.MethodPost, "/api/claims", body, &admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/claims", nil, &admin)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []claimdomain.Claim `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "RO-100", resp.Data[0].RONumber)
}

func TestInvalidPathID(t *testing.T) {
	f := newFixture(t)
	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")

	rec := f.do(http.MethodGet, "/api/claims/not-a-snowflake", nil, &admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundMapsTo404(t *testing.T) {
	f := newFixture(t)
	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")

	rec := f.do(http.MethodGet, "/api/claims/"+f.node.Generate().String(), nil, &admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRejectsUnauthenticated(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/notifications/stream", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDonationReceiptAccess(t *testing.T) {
	f := newFixture(t)
	admin := f.seedActor(t, directorydomain.RoleAdmin, 0, "admin@example.com")
	donor := f.seedActor(t, directorydomain.RoleMember, 0, "donor@example.com")
	other := f.seedActor(t, directorydomain.RoleMember, 0, "other@example.com")

	payment := donationdomain.Payment{
		ID:            f.node.Generate(),
		ActorID:       donor.ID,
		Name:          donor.Name,
		Email:         donor.Email,
		Amount:        5000,
		Currency:      "usd",
		PaymentType:   donationdomain.TypeDonation,
		Status:        donationdomain.StatusSucceeded,
		TransactionID: "pi_receipt",
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	require.NoError(t, f.db.Create(&payment).Error)
	path := "/api/donations/" + payment.ID.String() + "/receipt"

	rec := f.do(http.MethodGet, path, nil, &donor)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, path, nil, &admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, path, nil, &other)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The list and resend routes stay admin-only.
	rec = f.do(http.MethodGet, "/api/donations", nil, &donor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(http.MethodPost, path+"/resend", nil, &donor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDonationWebhookRawBody(t *testing.T) {
	f := newFixture(t)
	donor := f.seedActor(t, directorydomain.RoleMember, 0, "donor@example.com")

	payment := donationdomain.Payment{
		ID:            f.node.Generate(),
		ActorID:       donor.ID,
		Name:          donor.Name,
		Email:         donor.Email,
		Amount:        2500,
		Currency:      "usd",
		PaymentType:   donationdomain.TypeDonation,
		Status:        donationdomain.StatusPending,
		TransactionID: "pi_test",
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	require.NoError(t, f.db.Create(&payment).Error)

	payload := []byte(fmt.Sprintf(
		`{"type":%q,"data":{"object":{"id":"pi_test","amount":2500,"currency":"usd"}}}`,
		gateway.EventSucceeded))

	req := httptest.NewRequest(http.MethodPost, "/public/donations/webhook", bytes.NewReader(payload))
	req.Header.Set(gateway.SignatureHeader, f.gw.Sign(payload, f.now))
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated donationdomain.Payment
	require.NoError(t, f.db.First(&updated, "transaction_id = ?", "pi_test").Error)
	assert.Equal(t, donationdomain.StatusSucceeded, updated.Status)

	// Same payload with a broken signature is rejected.
	req = httptest.NewRequest(http.MethodPost, "/public/donations/webhook", bytes.NewReader(payload))
	req.Header.Set(gateway.SignatureHeader, "t=1,v1=deadbeef")
	rec = httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
