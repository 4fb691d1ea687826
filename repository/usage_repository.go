package repository

import (
	"errors"
	"fmt"
	"time"

	"pleia/model"

	"gorm.io/gorm"
)

// ErrEventNotFound is returned when refunding an unknown usage event.
var ErrEventNotFound = errors.New("usage event not found")

// UsageRepository is the billing ledger. It is append-only: refunds flip a
// flag on the recorded event instead of deleting it.
type UsageRepository interface {
	RecordEvent(event *model.UsageEvent) error
	RefundEvent(eventID string) error
	CountUnitsSince(userID int64, since time.Time) (int, error)
}

type gormUsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a GORM-backed UsageRepository.
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &gormUsageRepository{db: db}
}

// RecordEvent appends a consumption event to the ledger.
func (r *gormUsageRepository) RecordEvent(event *model.UsageEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}
	return nil
}

// RefundEvent marks a previously recorded event as refunded.
func (r *gormUsageRepository) RefundEvent(eventID string) error {
	res := r.db.Model(&model.UsageEvent{}).
		Where("event_id = ? AND refunded = ?", eventID, false).
		Update("refunded", true)
	if res.Error != nil {
		return fmt.Errorf("failed to refund usage event %s: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// CountUnitsSince sums the non-refunded units a user consumed since the
// given time (normally the start of the billing month).
func (r *gormUsageRepository) CountUnitsSince(userID int64, since time.Time) (int, error) {
	var total int64
	err := r.db.Model(&model.UsageEvent{}).
		Where("user_id = ? AND refunded = ? AND created_at >= ?", userID, false, since).
		Select("COALESCE(SUM(units), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count usage for user %d: %w", userID, err)
	}
	return int(total), nil
}
