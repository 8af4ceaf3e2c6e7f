// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"invoice-messaging-backend/internal/models"
)

// NewDB opens an isolated in-memory SQLite database with the schema migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// One connection keeps the shared in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedCustomer inserts a customer with sensible defaults.
func SeedCustomer(t testing.TB, db *gorm.DB, name string) *models.Customer {
	t.Helper()

	email := fmt.Sprintf("%s@example.com", uuid.NewString()[:8])
	customer := &models.Customer{
		ID:             uuid.New(),
		Name:           name,
		Email:          &email,
		WhatsappNumber: "9876543210",
		CreatedAt:      time.Now(),
	}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

// SeedInvoice inserts a single-item invoice for customerID.
func SeedInvoice(t testing.TB, db *gorm.DB, customerID uuid.UUID, number string) *models.Invoice {
	t.Helper()

	invoice := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: number,
		CustomerID:    customerID,
		TotalAmount:   100,
		CreatedAt:     time.Now(),
		Items: []models.InvoiceItem{
			{ID: uuid.New(), Description: "Service", Quantity: 1, Price: 100},
		},
	}
	if err := db.Omit("Customer").Create(invoice).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	return invoice
}
