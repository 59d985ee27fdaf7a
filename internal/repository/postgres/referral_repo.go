package postgres

import (
	"context"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type referralCodeRepository struct {
	db *gorm.DB
}

func NewReferralCodeRepository(db *gorm.DB) *referralCodeRepository {
	return &referralCodeRepository{db: db}
}

func (r *referralCodeRepository) Create(ctx context.Context, code *domain.ReferralCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *referralCodeRepository) GetByCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	var rc domain.ReferralCode
	err := r.db.WithContext(ctx).First(&rc, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *referralCodeRepository) GetByCodeForUpdate(ctx context.Context, code string) (*domain.ReferralCode, error) {
	var rc domain.ReferralCode
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rc, "code = ?", code).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *referralCodeRepository) AddRedemption(ctx context.Context, redemption *domain.ReferralRedemption) error {
	return r.db.WithContext(ctx).Create(redemption).Error
}

func (r *referralCodeRepository) CountRedemptions(ctx context.Context, codeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ReferralRedemption{}).
		Where("code_id = ?", codeID).
		Count(&count).Error
	return count, err
}

func (r *referralCodeRepository) HasRedemption(ctx context.Context, codeID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ReferralRedemption{}).
		Where("code_id = ? AND user_id = ?", codeID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *referralCodeRepository) HasRedeemedFromOwner(ctx context.Context, ownerID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.ReferralRedemption{}).
		Joins("JOIN referral_codes ON referral_codes.id = referral_redemptions.code_id").
		Where("referral_codes.owner_id = ? AND referral_redemptions.user_id = ?", ownerID, userID).
		Count(&count).Error
	return count > 0, err
}
