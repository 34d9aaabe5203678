package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
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
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	directoryrepository "github.com/warrantydesk/warrantydesk/internal/directory/repository"
	directoryservice "github.com/warrantydesk/warrantydesk/internal/directory/service"
	"github.com/warrantydesk/warrantydesk/internal/donation/domain"
	"github.com/warrantydesk/warrantydesk/internal/donation/gateway"
	donationrepository "github.com/warrantydesk/warrantydesk/internal/donation/repository"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/providers/pdf"
)

type recordingEmail struct {
	email.NoOpProvider

	mu        sync.Mutex
	templates []string
}

func (r *recordingEmail) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = append(r.templates, templateName)
	return nil
}

func (r *recordingEmail) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.templates...)
}

type fixture struct {
	svc     *Service
	gw      *gateway.Client
	db      *gorm.DB
	node    *snowflake.Node
	fake    *clock.FakeClock
	dirRepo directorydomain.Repository
	mail    *recordingEmail
	now     time.Time
}

func newFixture(t *testing.T, gatewayURL string) *fixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&directorydomain.Actor{}, &domain.Payment{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	log := zap.NewNop()
	mail := &recordingEmail{}

	cfg := config.Config{
		AppName: "warrantydesk",
		Gateway: config.GatewayConfig{
			SecretKey:     "sk_test_key",
			WebhookSecret: "whsec_test",
			BaseURL:       gatewayURL,
		},
	}

	dirRepo := directoryrepository.Provide()
	dir := directoryservice.New(directoryservice.Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Config: cfg,
		Email:  mail,
		Repo:   dirRepo,
	})

	gw := gateway.New(cfg)
	svc := &Service{
		db:        gdb,
		log:       log,
		genID:     node,
		clock:     fake,
		repo:      donationrepository.Provide(),
		directory: dir,
		gateway:   gw,
		email:     mail,
		pdf:       &pdf.NoOpProvider{},
	}

	return &fixture{svc: svc, gw: gw, db: gdb, node: node, fake: fake, dirRepo: dirRepo, mail: mail, now: now}
}

func stubGateway(t *testing.T) *httptest.Server {
	t.Helper()
	counter := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"pi_%d","client_secret":"pi_%d_secret","status":"requires_payment_method"}`, counter, counter)
	}))
}

func (f *fixture) seedAdmin(t *testing.T) directorydomain.Actor {
	t.Helper()
	admin := directorydomain.Actor{
		ID:           f.node.Generate(),
		Role:         directorydomain.RoleAdmin,
		Name:         "Admin",
		Email:        "admin@example.com",
		ActiveStatus: true,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	require.NoError(t, f.dirRepo.Insert(context.Background(), f.db, &admin))
	return admin
}

func (f *fixture) intent(t *testing.T) domain.IntentResponse {
	t.Helper()
	resp, err := f.svc.CreateIntent(context.Background(), domain.IntentRequest{
		Name:        "Donor",
		Email:       "donor@example.com",
		Amount:      2500,
		Currency:    "USD",
		PaymentType: domain.TypeDonation,
	})
	require.NoError(t, err)
	return resp
}

func eventPayload(transactionID, eventType string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":%q,"data":{"object":{"id":%q,"amount":2500,"currency":"usd"}}}`,
		eventType, transactionID))
}

func TestCreateIntentProvisionsMember(t *testing.T) {
	srv := stubGateway(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)

	resp := f.intent(t)
	assert.Equal(t, "pi_1", resp.TransactionID)
	assert.Equal(t, "pi_1_secret", resp.ClientSecret)

	member, err := f.dirRepo.FindByEmail(context.Background(), f.db, "donor@example.com")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, directorydomain.RoleMember, member.Role)

	payment, err := f.svc.repo.FindByTransactionID(context.Background(), f.db, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, member.ID, payment.ActorID)
	assert.Equal(t, domain.StatusPending, payment.Status)
	assert.Equal(t, "usd", payment.Currency)
}

func TestCreateIntentReusesExistingMember(t *testing.T) {
	srv := stubGateway(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)

	first := f.intent(t)
	second := f.intent(t)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)

	var count int64
	require.NoError(t, f.db.Model(&directorydomain.Actor{}).
		Where("email = ?", "donor@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateIntentRejectsBadAmount(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.CreateIntent(context.Background(), domain.IntentRequest{
		Name: "Donor", Email: "donor@example.com", Amount: 0,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	srv := stubGateway(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)
	f.intent(t)

	payload := eventPayload("pi_1", gateway.EventSucceeded)

	err := f.svc.IngestWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, gateway.ErrMissingSignature)

	err = f.svc.IngestWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, gateway.ErrStaleSignature)

	forged := gateway.New(config.Config{Gateway: config.GatewayConfig{WebhookSecret: "whsec_other"}}).
		Sign(payload, f.now)
	err = f.svc.IngestWebhook(context.Background(), payload, forged)
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)

	payment, ferr := f.svc.repo.FindByTransactionID(context.Background(), f.db, "pi_1")
	require.NoError(t, ferr)
	assert.Equal(t, domain.StatusPending, payment.Status)
}

func TestWebhookTransitions(t *testing.T) {
	srv := stubGateway(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)
	f.intent(t)

	for _, step := range []struct {
		event string
		want  domain.Status
	}{
		{gateway.EventProcessing, domain.StatusProcessing},
		{gateway.EventSucceeded, domain.StatusSucceeded},
	} {
		payload := eventPayload("pi_1", step.event)
		err := f.svc.IngestWebhook(context.Background(), payload, f.gw.Sign(payload, f.now))
		require.NoError(t, err)

		payment, err := f.svc.repo.FindByTransactionID(context.Background(), f.db, "pi_1")
		require.NoError(t, err)
		assert.Equal(t, step.want, payment.Status)
	}
}

func TestWebhookIgnoresUnknownEvent(t *testing.T) {
	srv := stubGateway(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)
	f.intent(t)

	payload := eventPayload("pi_1", "payment_intent.created")
	err := f.svc.IngestWebhook(context.Background(), payload, f.gw.Sign(payload, f.now))
	require.NoError(t, err)

	payment, err := f.svc.repo.FindByTransactionID(context.Background(), f.db, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, payment.Status)
}

func TestWebhookUnknownTransaction(t *testing.T) {
	f := newFixture(t, "")

	payload := eventPayload("pi_missing", gateway.EventSucceeded)
	err := f.svc.IngestWebhook(context.Background(), payload, f.gw.Sign(payload, f.now))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResendReceiptRequiresSuccess(t *testing.T) {
	srv := stubGateway(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)
	admin := f.seedAdmin(t)
	resp := f.intent(t)

	ctx := actorctx.WithActor(context.Background(), admin)

	_, err := f.svc.ResendReceipt(ctx, resp.PaymentID)
	assert.ErrorIs(t, err, domain.ErrNotSucceeded)

	payload := eventPayload("pi_1", gateway.EventSucceeded)
	require.NoError(t, f.svc.IngestWebhook(context.Background(), payload, f.gw.Sign(payload, f.now)))

	payment, err := f.svc.ResendReceipt(ctx, resp.PaymentID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, payment.SendCount)
	assert.Contains(t, f.mail.sent(), "receipt")
}

func TestListRequiresAdmin(t *testing.T) {
	srv := stubGateway(t)
	defer srv.Close()
	f := newFixture(t, srv.URL)
	admin := f.seedAdmin(t)
	f.intent(t)

	_, err := f.svc.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	payments, err := f.svc.List(actorctx.WithActor(context.Background(), admin))
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}
