package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-messaging-backend/internal/models"
)

type DeliveryMessageRepository struct {
	db *gorm.DB
}

func NewDeliveryMessageRepository(db *gorm.DB) *DeliveryMessageRepository {
	return &DeliveryMessageRepository{db: db}
}

func (r *DeliveryMessageRepository) Create(ctx context.Context, msg *models.DeliveryMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(msg).Error)
}

// GetByMessageID finds the newest record for a provider message id, nil when absent.
func (r *DeliveryMessageRepository) GetByMessageID(ctx context.Context, messageID string) (*models.DeliveryMessage, error) {
	var msg models.DeliveryMessage
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("sent_at DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateStatus moves a row out of the sent state, writing the delivery time
// and error alongside. It reports false when the row was no longer sent.
func (r *DeliveryMessageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DeliveryStatus, deliveredAt *time.Time, errText *string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DeliveryMessage{}).
		Where("id = ? AND status = ?", id, models.DeliveryStatusSent).
		Updates(map[string]interface{}{
			"status":       status,
			"delivered_at": deliveredAt,
			"error":        errText,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

type StatRow struct {
	Status string
	Count  int64
}

// CountByStatus groups delivery attempts by status.
func (r *DeliveryMessageRepository) CountByStatus(ctx context.Context) (map[models.DeliveryStatus]int64, error) {
	var rows []StatRow
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryMessage{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.DeliveryStatus]int64, len(rows))
	for _, row := range rows {
		counts[models.DeliveryStatus(row.Status)] = row.Count
	}
	return counts, nil
}
