package postgres

import (
	"context"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) SetReferralCode(ctx context.Context, userID uuid.UUID, code string) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("referral_code", code).Error
}

func (r *userRepository) SetUsedReferralCode(ctx context.Context, userID uuid.UUID, code string) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Update("used_referral_code", code).Error
}

func (r *userRepository) AddCredits(ctx context.Context, userID uuid.UUID, delta int) error {
	// Single SQL statement so concurrent adjustments from multiple
	// devices never lose updates; GREATEST floors the counter at zero.
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumn("available_analyses", gorm.Expr("GREATEST(available_analyses + ?, 0)", delta)).Error
}

func (r *userRepository) SetCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		UpdateColumn("available_analyses", gorm.Expr("GREATEST(?, 0)", amount)).Error
}

func (r *userRepository) ConsumeCredit(ctx context.Context, userID uuid.UUID) (bool, error) {
	// Conditional decrement in one statement so two devices racing over
	// the last credit cannot both win.
	res := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ? AND available_analyses > 0", userID).
		UpdateColumn("available_analyses", gorm.Expr("available_analyses - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
