package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/warrantydesk/warrantydesk/internal/actorctx"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	directorydomain "github.com/warrantydesk/warrantydesk/internal/directory/domain"
	"github.com/warrantydesk/warrantydesk/internal/invoice/domain"
	notificationdomain "github.com/warrantydesk/warrantydesk/internal/notification/domain"
	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/providers/pdf"
	"github.com/warrantydesk/warrantydesk/internal/providers/storage"
	"github.com/warrantydesk/warrantydesk/internal/stats"
)

const sendTimeout = 30 * time.Second

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
	PDF       pdf.Provider
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
	email     email.Provider
	pdf       pdf.Provider
	storage   storage.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		directory: p.Directory,
		notifier:  p.Notifier,
		email:     p.Email,
		pdf:       p.PDF,
		storage:   p.Storage,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Invoice, error) {
	caller, err := s.admin(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}

	client, err := s.ownedClient(ctx, caller, req.ClientID)
	if err != nil {
		return domain.Invoice{}, err
	}

	adjustments := make([]domain.Adjustment, 0, len(req.Adjustments))
	for _, adj := range req.Adjustments {
		adj.Type = domain.NormalizeAdjustmentType(adj.Type)
		adjustments = append(adjustments, adj)
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:                  s.genID.Generate(),
		OwnerID:             caller.ID,
		ClientID:            client.ID,
		ClientName:          client.Name,
		WarrantyCompany:     req.WarrantyCompany,
		StatementType:       req.StatementType,
		StatementNumber:     req.StatementNumber,
		StatementTotal:      req.StatementTotal,
		Adjustments:         datatypes.NewJSONSlice(adjustments),
		AssignedPercentage:  client.Percentage,
		BypassPercentage:    req.BypassPercentage,
		FreeTextExplanation: req.FreeTextExplanation,
		AttachedReports:     datatypes.NewJSONSlice(req.AttachedReports),
		Status:              domain.StatusDraft,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	invoice.FinalTotal = invoice.ComputeFinalTotal()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.repo.NextNumber(ctx, tx, caller.ID)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number
		return s.repo.Insert(ctx, tx, &invoice)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	message := fmt.Sprintf("Invoice %s has been created for %s of Company %s.",
		invoice.Label(), client.Name, client.DisplayCompany())
	if err := s.notify(ctx, caller, invoice, "Invoice Created", message); err != nil {
		return domain.Invoice{}, err
	}

	return invoice, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Invoice, error) {
	return s.list(ctx, false)
}

func (s *Service) ListArchived(ctx context.Context) ([]domain.Invoice, error) {
	return s.list(ctx, true)
}

func (s *Service) list(ctx context.Context, archived bool) ([]domain.Invoice, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return nil, domain.ErrForbidden
	}

	var (
		items []*domain.Invoice
		err   error
	)
	switch caller.Role {
	case directorydomain.RoleAdmin:
		items, err = s.repo.ListByOwner(ctx, s.db, caller.ID, archived)
	case directorydomain.RoleClient:
		items, err = s.repo.ListByClient(ctx, s.db, caller.ID, archived)
	default:
		return nil, domain.ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item != nil {
			invoices = append(invoices, *item)
		}
	}
	return invoices, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	invoice, _, err := s.scopedInvoice(ctx, id)
	return invoice, err
}

func (s *Service) Edit(ctx context.Context, id snowflake.ID, req domain.EditRequest) (domain.Invoice, error) {
	invoice, caller, err := s.scopedInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if caller.Role != directorydomain.RoleAdmin {
		return domain.Invoice{}, domain.ErrForbidden
	}

	adjustments := make([]domain.Adjustment, 0, len(req.Adjustments))
	for _, adj := range req.Adjustments {
		adj.Type = domain.NormalizeAdjustmentType(adj.Type)
		adjustments = append(adjustments, adj)
	}

	invoice.WarrantyCompany = req.WarrantyCompany
	invoice.StatementType = req.StatementType
	invoice.StatementNumber = req.StatementNumber
	invoice.StatementTotal = req.StatementTotal
	invoice.Adjustments = datatypes.NewJSONSlice(adjustments)
	invoice.BypassPercentage = req.BypassPercentage
	invoice.FreeTextExplanation = req.FreeTextExplanation
	invoice.FinalTotal = invoice.ComputeFinalTotal()

	remove := map[string]bool{}
	for _, storedName := range req.RemoveReports {
		remove[storedName] = true
	}
	var removed []string
	reports := make([]domain.AttachedReport, 0, len(invoice.AttachedReports)+len(req.AttachReports))
	for _, report := range invoice.AttachedReports {
		if remove[report.StoredName] {
			removed = append(removed, report.StoredName)
			continue
		}
		reports = append(reports, report)
	}
	reports = append(reports, req.AttachReports...)
	invoice.AttachedReports = datatypes.NewJSONSlice(reports)

	invoice.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	// Stored files go only after the row no longer references them, so
	// a failed update cannot leave the invoice pointing at deleted files.
	for _, storedName := range removed {
		if err := s.storage.Delete(ctx, storedName); err != nil {
			s.log.Warn("attachment delete failed",
				zap.Error(err),
				zap.String("stored_name", storedName),
			)
		}
	}

	return invoice, nil
}

func (s *Service) ChangeStatus(ctx context.Context, id snowflake.ID, status domain.Status) (domain.Invoice, error) {
	if !domain.ValidStatus(status) {
		return domain.Invoice{}, domain.ErrInvalidStatus
	}

	invoice, caller, err := s.scopedInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if caller.Role != directorydomain.RoleAdmin {
		return domain.Invoice{}, domain.ErrForbidden
	}

	invoice.Status = status
	invoice.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	message := fmt.Sprintf("Invoice %s of %s of Company %s has been updated to %s.",
		invoice.Label(), invoice.ClientName, s.clientCompany(ctx, invoice), status)
	if err := s.notify(ctx, caller, invoice, "Invoice Status Changed", message); err != nil {
		return domain.Invoice{}, err
	}

	return invoice, nil
}

func (s *Service) Send(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	invoice, caller, err := s.scopedInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if caller.Role != directorydomain.RoleAdmin {
		return domain.Invoice{}, domain.ErrForbidden
	}

	client, err := s.directory.Get(ctx, invoice.ClientID)
	if err != nil {
		return domain.Invoice{}, err
	}

	document, err := s.renderPDF(ctx, invoice)
	if err != nil {
		return domain.Invoice{}, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	subject := "Invoice " + invoice.Label()
	body := fmt.Sprintf("<p>Hi %s,</p><p>Please find invoice %s attached.</p>", client.Name, invoice.Label())
	err = s.email.Send(sendCtx, []string{client.Email}, subject, body, email.Attachment{
		Filename:    invoice.Label() + ".pdf",
		ContentType: "application/pdf",
		Content:     document,
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	invoice.SentCount++
	invoice.LastSent = &now
	invoice.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	message := fmt.Sprintf("Invoice %s has been sent to %s of Company %s.",
		invoice.Label(), client.Name, client.DisplayCompany())
	if err := s.notify(ctx, caller, invoice, "Invoice Sent", message); err != nil {
		return domain.Invoice{}, err
	}

	return invoice, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	invoice, caller, err := s.scopedInvoice(ctx, id)
	if err != nil {
		return err
	}
	if caller.Role != directorydomain.RoleAdmin {
		return domain.ErrForbidden
	}

	for _, report := range invoice.AttachedReports {
		if err := s.storage.Delete(ctx, report.StoredName); err != nil {
			s.log.Warn("attachment delete failed",
				zap.Error(err),
				zap.String("stored_name", report.StoredName),
			)
		}
	}

	if err := s.repo.Delete(ctx, s.db, invoice.ID); err != nil {
		return err
	}

	message := fmt.Sprintf("Invoice %s of %s of Company %s has been deleted.",
		invoice.Label(), invoice.ClientName, s.clientCompany(ctx, invoice))
	return s.notify(ctx, caller, invoice, "Invoice Deleted", message)
}

func (s *Service) Archive(ctx context.Context, ids []snowflake.ID) (domain.ArchiveResult, error) {
	return s.setArchived(ctx, ids, true)
}

func (s *Service) Unarchive(ctx context.Context, ids []snowflake.ID) (domain.ArchiveResult, error) {
	return s.setArchived(ctx, ids, false)
}

func (s *Service) setArchived(ctx context.Context, ids []snowflake.ID, archived bool) (domain.ArchiveResult, error) {
	caller, err := s.admin(ctx)
	if err != nil {
		return domain.ArchiveResult{}, err
	}
	if len(ids) == 0 {
		return domain.ArchiveResult{}, domain.ErrNothingArchived
	}

	candidates, err := s.repo.ListByIDs(ctx, s.db, ids, caller.ID)
	if err != nil {
		return domain.ArchiveResult{}, err
	}
	affected := make([]domain.Invoice, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate != nil && candidate.Archived != archived {
			affected = append(affected, *candidate)
		}
	}

	modified, err := s.repo.SetArchived(ctx, s.db, ids, caller.ID, archived)
	if err != nil {
		return domain.ArchiveResult{}, err
	}
	if modified == 0 {
		return domain.ArchiveResult{}, domain.ErrNothingArchived
	}

	s.fanOutArchive(ctx, caller, affected, archived)

	return domain.ArchiveResult{ModifiedCount: modified}, nil
}

func (s *Service) fanOutArchive(ctx context.Context, caller directorydomain.Actor, invoices []domain.Invoice, archived bool) {
	if len(invoices) == 0 {
		return
	}

	verb := "archived"
	title := "Invoice Archived"
	if !archived {
		verb = "unarchived"
		title = "Invoice Unarchived"
	}

	reqs := make([]notificationdomain.CreateRequest, 0, len(invoices))
	for _, invoice := range invoices {
		message := fmt.Sprintf("Invoice %s of %s of Company %s has been %s by Admin.",
			invoice.Label(), invoice.ClientName, s.clientCompany(ctx, invoice), verb)
		reqs = append(reqs, notificationdomain.CreateRequest{
			Actor:         caller,
			Counterpart:   invoice.ClientID,
			InvoiceNumber: strconv.FormatInt(invoice.InvoiceNumber, 10),
			Title:         title,
			Message:       message,
		})
	}

	s.notifier.CreateBatch(ctx, reqs)
}

func (s *Service) Stats(ctx context.Context) (domain.StatsResponse, error) {
	caller, err := s.admin(ctx)
	if err != nil {
		return domain.StatsResponse{}, err
	}

	invoices, err := s.repo.ListAllByOwner(ctx, s.db, caller.ID)
	if err != nil {
		return domain.StatsResponse{}, err
	}

	times := make([]time.Time, 0, len(invoices))
	for _, invoice := range invoices {
		if invoice != nil {
			times = append(times, invoice.CreatedAt)
		}
	}

	return domain.StatsResponse{
		Windows: stats.WindowCounts(times, s.clock.Now(), stats.DefaultWindows),
	}, nil
}

func (s *Service) renderPDF(ctx context.Context, invoice domain.Invoice) ([]byte, error) {
	adjustments := make([]pdf.AdjustmentLine, 0, len(invoice.Adjustments))
	for _, adj := range invoice.Adjustments {
		adjustments = append(adjustments, pdf.AdjustmentLine{
			Description: adj.Description,
			Type:        adj.Type,
			Amount:      formatAmount(adj.Amount),
		})
	}

	reader, err := s.pdf.GenerateInvoice(ctx, pdf.InvoiceData{
		InvoiceNumber:      invoice.Label(),
		IssueDate:          invoice.CreatedAt.Format("2006-01-02"),
		Status:             string(invoice.Status),
		ClientName:         invoice.ClientName,
		ClientCompany:      s.clientCompany(ctx, invoice),
		WarrantyCompany:    invoice.WarrantyCompany,
		StatementType:      invoice.StatementType,
		StatementNumber:    invoice.StatementNumber,
		Adjustments:        adjustments,
		StatementTotal:     formatAmount(invoice.StatementTotal),
		AssignedPercentage: fmt.Sprintf("%.2f%%", invoice.AssignedPercentage),
		FinalTotal:         formatAmount(invoice.FinalTotal),
		FreeText:           invoice.FreeTextExplanation,
	})
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func (s *Service) admin(ctx context.Context) (directorydomain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok || caller.Role != directorydomain.RoleAdmin {
		return directorydomain.Actor{}, domain.ErrForbidden
	}
	return caller, nil
}

func (s *Service) ownedClient(ctx context.Context, caller directorydomain.Actor, clientID snowflake.ID) (directorydomain.Actor, error) {
	if clientID == 0 {
		return directorydomain.Actor{}, domain.ErrInvalidClient
	}
	client, err := s.directory.Get(ctx, clientID)
	if err != nil {
		return directorydomain.Actor{}, domain.ErrInvalidClient
	}
	if client.Role != directorydomain.RoleClient || client.OwnerID != caller.ID {
		return directorydomain.Actor{}, domain.ErrInvalidClient
	}
	return client, nil
}

// scopedInvoice loads an invoice and checks the caller is its owning
// admin or its billed client.
func (s *Service) scopedInvoice(ctx context.Context, id snowflake.ID) (domain.Invoice, directorydomain.Actor, error) {
	caller, ok := actorctx.ActorFromContext(ctx)
	if !ok {
		return domain.Invoice{}, directorydomain.Actor{}, domain.ErrForbidden
	}
	if id == 0 {
		return domain.Invoice{}, directorydomain.Actor{}, domain.ErrInvalidID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, directorydomain.Actor{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, directorydomain.Actor{}, domain.ErrNotFound
	}

	switch caller.Role {
	case directorydomain.RoleAdmin:
		if invoice.OwnerID != caller.ID {
			return domain.Invoice{}, directorydomain.Actor{}, domain.ErrForbidden
		}
	case directorydomain.RoleClient:
		if invoice.ClientID != caller.ID {
			return domain.Invoice{}, directorydomain.Actor{}, domain.ErrForbidden
		}
	default:
		return domain.Invoice{}, directorydomain.Actor{}, domain.ErrForbidden
	}

	return *invoice, caller, nil
}

func (s *Service) notify(ctx context.Context, caller directorydomain.Actor, invoice domain.Invoice, title, message string) error {
	_, err := s.notifier.Create(ctx, notificationdomain.CreateRequest{
		Actor:         caller,
		Counterpart:   invoice.ClientID,
		InvoiceNumber: strconv.FormatInt(invoice.InvoiceNumber, 10),
		Title:         title,
		Message:       message,
	})
	return err
}

func (s *Service) clientCompany(ctx context.Context, invoice domain.Invoice) string {
	client, err := s.directory.Get(ctx, invoice.ClientID)
	if err != nil {
		return ""
	}
	return client.DisplayCompany()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
