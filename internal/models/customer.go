package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"not null;index" json:"name"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	WhatsappNumber string    `gorm:"not null" json:"whatsappNumber"`
	Invoices       []Invoice `json:"invoices,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// InvoiceCount is filled by list queries only.
	InvoiceCount int64 `gorm:"-:migration;->" json:"invoiceCount"`
}
