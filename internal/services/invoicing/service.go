// Package invoicing owns invoice creation and everything that hangs off an
// invoice afterwards: its PDF, its share link and its delivery history.
package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"invoice-messaging-backend/internal/apperr"
	"invoice-messaging-backend/internal/models"
	"invoice-messaging-backend/internal/repository"
	"invoice-messaging-backend/internal/services/money"
	"invoice-messaging-backend/internal/services/wati"
)

// Renderer writes the PDF for an invoice and returns its path.
type Renderer interface {
	Render(invoice *models.Invoice) (string, error)
}

// Notifier delivers invoice notifications to customers.
type Notifier interface {
	SendInvoiceNotification(ctx context.Context, destination string, data wati.InvoiceData) wati.SendResult
	TemplateName() string
}

type Options struct {
	NotifyEnabled bool
	PublicLinks   bool
	BaseURL       string
	FrontendURL   string
	// PDFURLOverride replaces the generated PDF link in notifications, for
	// providers that cannot reach a local BaseURL.
	PDFURLOverride string
	CountryCode    string
}

type InvoiceService struct {
	customers *repository.CustomerRepository
	invoices  *repository.InvoiceRepository
	messages  *repository.DeliveryMessageRepository
	renderer  Renderer
	notifier  Notifier
	ids       IdentifierGenerator
	opts      Options
	log       *zap.Logger
}

func NewInvoiceService(
	customers *repository.CustomerRepository,
	invoices *repository.InvoiceRepository,
	messages *repository.DeliveryMessageRepository,
	renderer Renderer,
	notifier Notifier,
	ids IdentifierGenerator,
	opts Options,
	zl *zap.Logger,
) *InvoiceService {
	if ids == nil {
		ids = RandomIdentifiers{}
	}
	if zl == nil {
		zl = zap.NewNop()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &InvoiceService{
		customers: customers,
		invoices:  invoices,
		messages:  messages,
		renderer:  renderer,
		notifier:  notifier,
		ids:       ids,
		opts:      opts,
		log:       zl.Named("invoicing"),
	}
}

type ItemInput struct {
	Description string
	Quantity    int
	Price       float64
}

type CreateInput struct {
	CustomerID uuid.UUID
	Items      []ItemInput
}

func (in CreateInput) validate() error {
	var fields []apperr.FieldError
	if in.CustomerID == uuid.Nil {
		fields = append(fields, apperr.FieldError{Field: "customerId", Rule: "required", Message: "customerId is required"})
	}
	if len(in.Items) == 0 {
		fields = append(fields, apperr.FieldError{Field: "items", Rule: "min", Message: "at least one item is required"})
	}
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(it.Description) == "" {
			fields = append(fields, apperr.FieldError{Field: prefix + "description", Rule: "required", Message: "description is required"})
		}
		if it.Quantity <= 0 {
			fields = append(fields, apperr.FieldError{Field: prefix + "quantity", Rule: "gt", Message: "quantity must be a positive integer"})
		}
		if it.Price <= 0 {
			fields = append(fields, apperr.FieldError{Field: prefix + "price", Rule: "gt", Message: "price must be positive"})
		}
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

// MessageStatus summarises the notification attempt made during Create.
type MessageStatus struct {
	Sent      bool             `json:"sent"`
	MessageID string           `json:"messageId,omitempty"`
	Error     string           `json:"error,omitempty"`
	Kind      wati.FailureKind `json:"kind,omitempty"`
}

type CreateResult struct {
	Invoice       *models.Invoice
	Links         Links
	PDFError      string
	MessageStatus *MessageStatus
}

// Create validates, persists, renders and (optionally) announces a new
// invoice. Only validation and persistence failures abort; rendering and
// notification problems are reported on the result.
func (s *InvoiceService) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	customer, err := s.customers.FindByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("customer %s: %w", in.CustomerID, apperr.ErrNotFound)
	}

	number, err := s.ids.InvoiceNumber()
	if err != nil {
		return nil, err
	}

	lines := make([]money.Line, len(in.Items))
	items := make([]models.InvoiceItem, len(in.Items))
	for i, it := range in.Items {
		lines[i] = money.Line{Quantity: it.Quantity, Price: it.Price}
		items[i] = models.InvoiceItem{
			ID:          uuid.New(),
			Position:    i,
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			Price:       it.Price,
		}
	}

	invoice := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		CustomerID:    customer.ID,
		TotalAmount:   money.Total(lines),
		Items:         items,
		CreatedAt:     time.Now(),
	}
	if s.opts.PublicLinks {
		token, err := s.ids.PublicToken()
		if err != nil {
			return nil, err
		}
		invoice.PublicToken = &token
	}

	if err := s.invoices.CreateWithItems(ctx, invoice); err != nil {
		return nil, fmt.Errorf("create invoice %s: %w", number, err)
	}
	invoice.Customer = customer

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.Int("items", len(items)),
		zap.Float64("total", invoice.TotalAmount),
	)

	result := &CreateResult{Invoice: invoice}

	if err := s.renderPDF(ctx, invoice); err != nil {
		s.log.Error("pdf generation failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
		result.PDFError = err.Error()
	}

	result.Links = s.URLs(invoice)

	if s.opts.NotifyEnabled && s.notifier != nil {
		result.MessageStatus = s.notify(ctx, invoice, result.Links)
	}
	return result, nil
}

func (s *InvoiceService) renderPDF(ctx context.Context, invoice *models.Invoice) error {
	if s.renderer == nil {
		return errors.New("no pdf renderer configured")
	}
	path, err := s.renderer.Render(invoice)
	if err != nil {
		return err
	}
	if err := s.invoices.SetPDFPath(ctx, invoice.ID, path); err != nil {
		return fmt.Errorf("store pdf path: %w", err)
	}
	invoice.PDFPath = &path
	return nil
}

func (s *InvoiceService) notify(ctx context.Context, invoice *models.Invoice, links Links) *MessageStatus {
	pdfURL := links.PDFURL
	if s.opts.PDFURLOverride != "" {
		pdfURL = s.opts.PDFURLOverride
	}

	data := wati.InvoiceData{
		CustomerName:  invoice.Customer.Name,
		InvoiceNumber: invoice.InvoiceNumber,
		TotalAmount:   invoice.TotalAmount,
		InvoiceURL:    s.frontendLink(invoice),
		PDFURL:        pdfURL,
	}

	result := s.notifier.SendInvoiceNotification(ctx, invoice.Customer.WhatsappNumber, data)

	msg := &models.DeliveryMessage{
		ID:           uuid.New(),
		InvoiceID:    invoice.ID,
		Channel:      "session",
		TemplateName: s.notifier.TemplateName(),
		Destination:  wati.FormatDestination(invoice.Customer.WhatsappNumber, s.opts.CountryCode),
		SentAt:       time.Now(),
	}
	if msg.TemplateName != "" {
		msg.Channel = "template"
	}

	status := &MessageStatus{}
	switch r := result.(type) {
	case wati.Accepted:
		msg.Status = models.DeliveryStatusSent
		if r.MessageID != "" {
			id := r.MessageID
			msg.MessageID = &id
		}
		status.Sent = true
		status.MessageID = r.MessageID
	case wati.Rejected:
		msg.Status = models.DeliveryStatusFailed
		errText := r.Message
		msg.Error = &errText
		msg.Details = failureDetails(r)
		status.Error = r.Message
		status.Kind = r.Kind
		s.log.Warn("invoice notification failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("kind", string(r.Kind)),
			zap.String("error", r.Message),
		)
	default:
		msg.Status = models.DeliveryStatusFailed
		errText := fmt.Sprintf("unexpected send result %T", result)
		msg.Error = &errText
		status.Error = errText
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		s.log.Error("record delivery message failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
	} else {
		invoice.DeliveryMessages = append([]models.DeliveryMessage{*msg}, invoice.DeliveryMessages...)
	}
	return status
}

func failureDetails(r wati.Rejected) datatypes.JSON {
	raw, err := json.Marshal(map[string]any{
		"kind":       r.Kind,
		"statusCode": r.StatusCode,
	})
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// Get returns nil when the invoice does not exist.
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *InvoiceService) GetByPublicToken(ctx context.Context, token string) (*models.Invoice, error) {
	if token == "" {
		return nil, nil
	}
	return s.invoices.GetByPublicToken(ctx, token)
}

func (s *InvoiceService) List(ctx context.Context, filter repository.InvoiceFilter) ([]models.Invoice, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	return s.invoices.List(ctx, filter)
}

// PDFFile is an opened invoice document. Callers close File.
type PDFFile struct {
	File     *os.File
	Filename string
	Size     int64
	ModTime  time.Time
}

// OpenPDF opens the stored document of an invoice.
func (s *InvoiceService) OpenPDF(ctx context.Context, id uuid.UUID) (*PDFFile, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, fmt.Errorf("invoice %s: %w", id, apperr.ErrNotFound)
	}
	if invoice.PDFPath == nil || *invoice.PDFPath == "" {
		return nil, fmt.Errorf("pdf for invoice %s: %w", id, apperr.ErrNotFound)
	}

	f, err := os.Open(*invoice.PDFPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("pdf for invoice %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &PDFFile{
		File:     f,
		Filename: invoice.InvoiceNumber + ".pdf",
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// StatusUpdate is a provider delivery receipt.
type StatusUpdate struct {
	MessageID string
	Status    string
	Timestamp time.Time
}

// RecordDeliveryStatus applies a receipt to the matching delivery message.
// It reports false when the message id is unknown, the status is not one we
// track, or the message already left the sent state; none is an error.
func (s *InvoiceService) RecordDeliveryStatus(ctx context.Context, upd StatusUpdate) (bool, error) {
	if upd.MessageID == "" {
		return false, apperr.Invalid("messageId", "required", "messageId is required")
	}

	status, ok := normalizeStatus(upd.Status)
	if !ok {
		s.log.Info("ignoring delivery status", zap.String("message_id", upd.MessageID), zap.String("status", upd.Status))
		return false, nil
	}

	msg, err := s.messages.GetByMessageID(ctx, upd.MessageID)
	if err != nil {
		return false, err
	}
	if msg == nil {
		s.log.Info("delivery status for unknown message", zap.String("message_id", upd.MessageID))
		return false, nil
	}

	// delivered and failed are terminal; a receipt never moves a row back to sent.
	if msg.Status != models.DeliveryStatusSent || status == models.DeliveryStatusSent {
		s.log.Info("ignoring out-of-order delivery status",
			zap.String("message_id", upd.MessageID),
			zap.String("current", string(msg.Status)),
			zap.String("status", string(status)),
		)
		return false, nil
	}

	var (
		deliveredAt *time.Time
		errText     *string
	)
	switch status {
	case models.DeliveryStatusDelivered:
		ts := upd.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		deliveredAt = &ts
	case models.DeliveryStatusFailed:
		text := providerFailedMessage
		errText = &text
	}
	return s.messages.UpdateStatus(ctx, msg.ID, status, deliveredAt, errText)
}

const providerFailedMessage = "provider reported failed"

func normalizeStatus(raw string) (models.DeliveryStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "delivered", "read":
		return models.DeliveryStatusDelivered, true
	case "sent":
		return models.DeliveryStatusSent, true
	case "failed", "error":
		return models.DeliveryStatusFailed, true
	}
	return "", false
}

type Dashboard struct {
	Customers  int64                           `json:"customers"`
	Invoices   int64                           `json:"invoices"`
	Revenue    float64                         `json:"revenue"`
	Deliveries map[models.DeliveryStatus]int64 `json:"deliveries"`
}

func (s *InvoiceService) Dashboard(ctx context.Context) (*Dashboard, error) {
	customers, err := s.customers.Count(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.invoices.Totals(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.messages.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range []models.DeliveryStatus{models.DeliveryStatusSent, models.DeliveryStatusDelivered, models.DeliveryStatusFailed} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return &Dashboard{
		Customers:  customers,
		Invoices:   totals.Count,
		Revenue:    totals.Revenue,
		Deliveries: counts,
	}, nil
}

// Links are the externally reachable addresses of an invoice.
type Links struct {
	PublicURL string `json:"publicUrl,omitempty"`
	PDFURL    string `json:"pdfUrl"`
}

func (s *InvoiceService) URLs(invoice *models.Invoice) Links {
	links := Links{PDFURL: s.PDFURL(invoice.ID)}
	if invoice.PublicToken != nil && *invoice.PublicToken != "" {
		links.PublicURL = s.opts.BaseURL + "/api/public/invoices/" + *invoice.PublicToken
	}
	return links
}

func (s *InvoiceService) PDFURL(id uuid.UUID) string {
	return s.opts.BaseURL + "/api/invoices/" + id.String() + "/pdf"
}

func (s *InvoiceService) frontendLink(invoice *models.Invoice) string {
	if invoice.PublicToken == nil || s.opts.FrontendURL == "" {
		return ""
	}
	return s.opts.FrontendURL + "/public/invoices/" + *invoice.PublicToken
}
