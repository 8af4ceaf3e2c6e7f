package models

import (
	"time"

	"github.com/google/uuid"
)

type Invoice struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber    string            `gorm:"uniqueIndex;not null" json:"invoiceNumber"`
	CustomerID       uuid.UUID         `gorm:"type:uuid;index;not null" json:"customerId"`
	Customer         *Customer         `gorm:"constraint:OnDelete:RESTRICT" json:"customer,omitempty"`
	TotalAmount      float64           `gorm:"not null" json:"totalAmount"`
	PublicToken      *string           `gorm:"uniqueIndex" json:"publicToken,omitempty"`
	PDFPath          *string           `json:"pdfPath,omitempty"`
	Items            []InvoiceItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	DeliveryMessages []DeliveryMessage `gorm:"constraint:OnDelete:CASCADE" json:"deliveryMessages,omitempty"`
	CreatedAt        time.Time         `gorm:"index" json:"createdAt"`
}

// LatestDelivery returns the most recent notification attempt, if any.
func (i *Invoice) LatestDelivery() *DeliveryMessage {
	var latest *DeliveryMessage
	for k := range i.DeliveryMessages {
		m := &i.DeliveryMessages[k]
		if latest == nil || m.SentAt.After(latest.SentAt) {
			latest = m
		}
	}
	return latest
}

// InvoiceItem rows are written together with their invoice and never edited.
type InvoiceItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID `gorm:"type:uuid;index;not null" json:"invoiceId"`
	Position    int       `gorm:"not null" json:"position"`
	Description string    `gorm:"not null" json:"description"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Price       float64   `gorm:"not null" json:"price"`
}

func (it InvoiceItem) LineTotal() float64 {
	return float64(it.Quantity) * it.Price
}
