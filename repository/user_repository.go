package repository

import (
	"errors"
	"fmt"
	"strings"

	"pleia/model"

	"gorm.io/gorm"
)

// ErrDuplicateUser is returned when creating a user whose email or
// referral code already exists.
var ErrDuplicateUser = errors.New("user already exists")

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(user *model.User) (int64, error)
	GetUserByID(id int64) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	GetUserByReferralCode(code string) (*model.User, error)
	AcceptTerms(userID int64) error
	UpdatePlan(userID int64, plan model.Plan) error
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a GORM-backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// CreateUser adds a new user to the database.
func (r *gormUserRepository) CreateUser(user *model.User) (int64, error) {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "Duplicate entry") {
			return 0, ErrDuplicateUser
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ID, nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when not found.
func (r *gormUserRepository) GetUserByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email. Returns (nil, nil) when not found.
func (r *gormUserRepository) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &user, nil
}

// GetUserByReferralCode retrieves the user owning a referral code.
func (r *gormUserRepository) GetUserByReferralCode(code string) (*model.User, error) {
	var user model.User
	err := r.db.Where("referral_code = ?", code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by referral code: %w", err)
	}
	return &user, nil
}

// AcceptTerms marks the terms-of-service flag for a user.
func (r *gormUserRepository) AcceptTerms(userID int64) error {
	if err := r.db.Model(&model.User{}).Where("id = ?", userID).
		Update("terms_accepted", true).Error; err != nil {
		return fmt.Errorf("failed to accept terms for user %d: %w", userID, err)
	}
	return nil
}

// UpdatePlan changes the user's billing plan.
func (r *gormUserRepository) UpdatePlan(userID int64, plan model.Plan) error {
	if err := r.db.Model(&model.User{}).Where("id = ?", userID).
		Update("plan", plan).Error; err != nil {
		return fmt.Errorf("failed to update plan for user %d: %w", userID, err)
	}
	return nil
}
