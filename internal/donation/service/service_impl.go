package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	"github.com/warrantydesk/warrantydesk/internal/donation/domain"
	"github.com/warrantydesk/warrantydesk/internal/donation/gateway"
	"github.com/warrantydesk/warrantydesk/internal/observability/metrics"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/providers/pdf"
)

const (
	emailTimeout = 10 * time.Second
	sendTimeout  = 30 * time.Second
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Directory directorydomain.Service
	Gateway   *gateway.Client
	Email     email.Provider
	PDF       pdf.Provider

	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	directory directorydomain.Service
	gateway   *gateway.Client
	email     email.Provider
	pdf       pdf.Provider
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("donation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		directory: p.Directory,
		gateway:   p.Gateway,
		email:     p.Email,
		pdf:       p.PDF,
		metrics:   p.Metrics,
	}
}

func (s *Service) CreateIntent(ctx context.Context, req domain.IntentRequest) (domain.IntentResponse, error) {
	if req.Amount <= 0 {
		return domain.IntentResponse{}, domain.ErrInvalidAmount
	}
	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = domain.TypeDonation
	}
	if !domain.ValidPaymentType(paymentType) {
		return domain.IntentResponse{}, domain.ErrInvalidPaymentType
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	actor, _, err := s.directory.EnsureMember(ctx, req.Name, req.Email)
	if err != nil {
		return domain.IntentResponse{}, err
	}

	intent, err := s.gateway.CreateIntent(ctx, req.Amount, currency, actor.Email)
	if err != nil {
		return domain.IntentResponse{}, err
	}

	now := s.clock.Now()
	payment := domain.Payment{
		ID:            s.genID.Generate(),
		ActorID:       actor.ID,
		Name:          actor.Name,
		Email:         actor.Email,
		Amount:        req.Amount,
		Currency:      currency,
		PaymentType:   paymentType,
		Status:        domain.StatusPending,
		TransactionID: intent.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, &payment); err != nil {
		return domain.IntentResponse{}, err
	}

	s.log.Info("payment intent created",
		zap.String("payment_id", payment.ID.String()),
		zap.String("transaction_id", intent.ID),
		zap.Int64("amount", req.Amount),
	)

	return domain.IntentResponse{
		ClientSecret:  intent.ClientSecret,
		TransactionID: intent.ID,
		PaymentID:     payment.ID,
	}, nil
}

func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := s.gateway.VerifySignature(payload, signature, s.clock.Now()); err != nil {
		return err
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		return err
	}

	s.metrics.RecordPaymentEvent(event.Type)

	status, handled := statusFor(event.Type)
	if !handled {
		s.log.Debug("ignoring gateway event", zap.String("type", event.Type))
		return nil
	}

	payment, err := s.repo.FindByTransactionID(ctx, s.db, event.Intent.ID)
	if err != nil {
		return err
	}
	if payment == nil {
		return domain.ErrNotFound
	}

	payment.Status = status
	payment.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, s.db, payment); err != nil {
		return err
	}

	s.log.Info("payment status updated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(status)),
	)

	switch status {
	case domain.StatusSucceeded:
		s.sendReceiptAsync(*payment)
	case domain.StatusFailed:
		s.sendFailureAsync(*payment)
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]domain.Payment, error) {
	if _, err := s.admin(ctx); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, s.db)
}

func (s *Service) ReceiptPDF(ctx context.Context, id snowflake.ID) (domain.Receipt, error) {
	payment, err := s.accessible(ctx, id)
	if err != nil {
		return domain.Receipt{}, err
	}

	reader, err := s.pdf.GenerateReceipt(ctx, s.receiptData(*payment))
	if err != nil {
		return domain.Receipt{}, err
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		return domain.Receipt{}, err
	}

	return domain.Receipt{
		Filename: fmt.Sprintf("Receipt-%s.pdf", payment.TransactionID),
		Content:  content,
	}, nil
}

func (s *Service) ResendReceipt(ctx context.Context, id snowflake.ID) (domain.Payment, error) {
	if _, err := s.admin(ctx); err != nil {
		return domain.Payment{}, err
	}
	payment, err := s.find(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	if payment.Status != domain.StatusSucceeded {
		return domain.Payment{}, domain.ErrNotSucceeded
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.sendReceipt(sendCtx, *payment); err != nil {
		return domain.Payment{}, err
	}

	payment.SendCount++
	payment.UpdatedAt = s.clock.Now()
	if err := s.repo.IncrementSendCount(ctx, s.db, payment); err != nil {
		return domain.Payment{}, err
	}
	return *payment, nil
}

func statusFor(eventType string) (domain.Status, bool) {
	switch eventType {
	case gateway.EventProcessing:
		return domain.StatusProcessing, true
	case gateway.EventSucceeded:
		return domain.StatusSucceeded, true
	case gateway.EventFailed:
		return domain.StatusFailed, true
	case gateway.EventCanceled:
		return domain.StatusCanceled, true
	default:
		return "", false
	}
}

func (s *Service) sendReceipt(ctx context.Context, payment domain.Payment) error {
	return s.email.SendTemplate(ctx, []string{payment.Email}, "receipt", map[string]interface{}{
		"donor_name":     payment.Name,
		"amount":         formatAmount(payment.Amount),
		"currency":       strings.ToUpper(payment.Currency),
		"transaction_id": payment.TransactionID,
		"date":           payment.UpdatedAt.Format("Jan 2, 2006"),
		"status":         string(payment.Status),
	})
}

func (s *Service) sendReceiptAsync(payment domain.Payment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()
		if err := s.sendReceipt(ctx, payment); err != nil {
			s.log.Warn("receipt email failed",
				zap.Error(err),
				zap.String("payment_id", payment.ID.String()),
			)
		}
	}()
}

func (s *Service) sendFailureAsync(payment domain.Payment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()
		err := s.email.SendTemplate(ctx, []string{payment.Email}, "payment_failed", map[string]interface{}{
			"donor_name":     payment.Name,
			"amount":         formatAmount(payment.Amount),
			"currency":       strings.ToUpper(payment.Currency),
			"transaction_id": payment.TransactionID,
		})
		if err != nil {
			s.log.Warn("payment failure email failed",
				zap.Error(err),
				zap.String("payment_id", payment.ID.String()),
			)
		}
	}()
}

func (s *Service) receiptData(payment domain.Payment) pdf.ReceiptData {
	return pdf.ReceiptData{
		TransactionID: payment.TransactionID,
		DonorName:     payment.Name,
		DonorEmail:    payment.Email,
		Amount:        formatAmount(payment.Amount),
		Currency:      strings.ToUpper(payment.Currency),
		DatePaid:      payment.UpdatedAt.Format("Jan 2, 2006"),
		Status:        string(payment.Status),
	}
}

func (s *Service) admin(ctx context.Context) (directorydomain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != directorydomain.RoleAdmin {
		return directorydomain.Actor{}, domain.ErrForbidden
	}
	return caller, nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}
	return payment, nil
}

// accessible permits admins and the paying member itself.
func (s *Service) accessible(ctx context.Context, id snowflake.ID) (*domain.Payment, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return nil, domain.ErrForbidden
	}
	payment, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != directorydomain.RoleAdmin && payment.ActorID != caller.ID {
		return nil, domain.ErrForbidden
	}
	return payment, nil
}

// formatAmount renders a smallest-unit amount as a decimal string.
func formatAmount(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}
