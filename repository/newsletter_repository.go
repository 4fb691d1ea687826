package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"pleia/model"

	"gorm.io/gorm"
)

// ErrDuplicateSubscriber is returned when an email is already subscribed.
var ErrDuplicateSubscriber = errors.New("subscriber already exists")

// NewsletterRepository covers the newsletter and newsletter_workflows tables.
type NewsletterRepository interface {
	CreateSubscriber(sub *model.NewsletterSubscriber) (int64, error)
	GetSubscriberByEmail(email string) (*model.NewsletterSubscriber, error)
	GetSubscriberByID(id int64) (*model.NewsletterSubscriber, error)
	CreateWorkflowSteps(steps []model.NewsletterWorkflow) error
	DueWorkflowSteps(now time.Time, limit int) ([]model.NewsletterWorkflow, error)
	MarkWorkflowStep(id int64, status string) error
	CountReferred(code string) (int, error)
}

type gormNewsletterRepository struct {
	db *gorm.DB
}

// NewNewsletterRepository creates a GORM-backed NewsletterRepository.
func NewNewsletterRepository(db *gorm.DB) NewsletterRepository {
	return &gormNewsletterRepository{db: db}
}

// CreateSubscriber inserts a new subscriber row.
func (r *gormNewsletterRepository) CreateSubscriber(sub *model.NewsletterSubscriber) (int64, error) {
	if err := r.db.Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "Duplicate entry") {
			return 0, ErrDuplicateSubscriber
		}
		return 0, fmt.Errorf("failed to create subscriber: %w", err)
	}
	return sub.ID, nil
}

// GetSubscriberByEmail returns the subscriber or (nil, nil) when absent.
func (r *gormNewsletterRepository) GetSubscriberByEmail(email string) (*model.NewsletterSubscriber, error) {
	var sub model.NewsletterSubscriber
	err := r.db.Where("email = ?", email).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriber: %w", err)
	}
	return &sub, nil
}

// GetSubscriberByID returns the subscriber or (nil, nil) when absent.
func (r *gormNewsletterRepository) GetSubscriberByID(id int64) (*model.NewsletterSubscriber, error) {
	var sub model.NewsletterSubscriber
	err := r.db.First(&sub, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriber %d: %w", id, err)
	}
	return &sub, nil
}

// CreateWorkflowSteps inserts the scheduled drip steps for a subscriber.
func (r *gormNewsletterRepository) CreateWorkflowSteps(steps []model.NewsletterWorkflow) error {
	if len(steps) == 0 {
		return nil
	}
	if err := r.db.Create(&steps).Error; err != nil {
		return fmt.Errorf("failed to create workflow steps: %w", err)
	}
	return nil
}

// DueWorkflowSteps returns pending steps whose send time has passed.
func (r *gormNewsletterRepository) DueWorkflowSteps(now time.Time, limit int) ([]model.NewsletterWorkflow, error) {
	var steps []model.NewsletterWorkflow
	err := r.db.Where("status = ? AND send_at <= ?", model.WorkflowPending, now).
		Order("send_at").
		Limit(limit).
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due workflow steps: %w", err)
	}
	return steps, nil
}

// MarkWorkflowStep records the outcome of a dispatch attempt.
func (r *gormNewsletterRepository) MarkWorkflowStep(id int64, status string) error {
	if err := r.db.Model(&model.NewsletterWorkflow{}).Where("id = ?", id).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to mark workflow step %d: %w", id, err)
	}
	return nil
}

// CountReferred counts subscribers attributed to a referral code.
func (r *gormNewsletterRepository) CountReferred(code string) (int, error) {
	var n int64
	err := r.db.Model(&model.NewsletterSubscriber{}).
		Where("referred_by = ?", code).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count referred subscribers: %w", err)
	}
	return int(n), nil
}
