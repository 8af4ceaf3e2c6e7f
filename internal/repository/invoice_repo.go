package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-messaging-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// InvoiceFilter narrows List. Zero values match everything.
type InvoiceFilter struct {
	Query      string
	CustomerID *uuid.UUID
}

// CreateWithItems inserts the invoice and all of its items in one transaction.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, invoice *models.Invoice) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := invoice.Items
		invoice.Items = nil
		defer func() { invoice.Items = items }()

		if err := tx.Omit("Customer", "DeliveryMessages").Create(invoice).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].InvoiceID = invoice.ID
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
	return translate(err)
}

func (r *InvoiceRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("DeliveryMessages", func(db *gorm.DB) *gorm.DB {
			return db.Order("sent_at DESC")
		})
}

// GetByID fetch a single invoice by ID, nil when absent
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return r.first(r.withRelations(ctx).Where("id = ?", id))
}

// GetByPublicToken resolves an anonymous share link, nil when absent.
func (r *InvoiceRepository) GetByPublicToken(ctx context.Context, token string) (*models.Invoice, error) {
	return r.first(r.withRelations(ctx).Where("public_token = ?", token))
}

func (r *InvoiceRepository) first(q *gorm.DB) (*models.Invoice, error) {
	var invoice models.Invoice
	err := q.First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// List returns invoices newest first with customer, items and delivery history.
func (r *InvoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error) {
	var invoices []models.Invoice

	q := r.withRelations(ctx).Model(&models.Invoice{})

	if filter.Query != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(filter.Query)) + "%"
		q = q.Where(
			`LOWER(invoice_number) LIKE ? ESCAPE '\' OR customer_id IN (?)`,
			like,
			r.db.WithContext(ctx).Model(&models.Customer{}).Select("id").Where(`LOWER(name) LIKE ? ESCAPE '\'`, like),
		)
	}
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}

	err := q.Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

// SetPDFPath records where the rendered document lives.
func (r *InvoiceRepository) SetPDFPath(ctx context.Context, id uuid.UUID, path string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("pdf_path", path)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound)
	}
	return nil
}

type InvoiceTotals struct {
	Count   int64
	Revenue float64
}

func (r *InvoiceRepository) Totals(ctx context.Context) (InvoiceTotals, error) {
	var totals InvoiceTotals
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS revenue").
		Scan(&totals).Error
	return totals, err
}
