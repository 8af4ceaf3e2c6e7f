package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DeliveryStatus string

const (
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// DeliveryMessage records one attempt to notify a customer about an invoice.
type DeliveryMessage struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID    uuid.UUID      `gorm:"type:uuid;index;not null" json:"invoiceId"`
	MessageID    *string        `gorm:"index" json:"messageId,omitempty"`
	Channel      string         `json:"channel"`
	TemplateName string         `json:"templateName,omitempty"`
	Destination  string         `json:"destination"`
	Status       DeliveryStatus `gorm:"index;not null" json:"status"`
	SentAt       time.Time      `json:"sentAt"`
	DeliveredAt  *time.Time     `json:"deliveredAt,omitempty"`
	Error        *string        `json:"error,omitempty"`
	Details      datatypes.JSON `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
