package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fiora-labs/aura-backend/internal/cache"
	"github.com/fiora-labs/aura-backend/internal/config"
	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/notify"
	"github.com/fiora-labs/aura-backend/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 5
)

// ReferralService owns the referral-code lifecycle and the analysis
// credit counter. Redemption runs inside a single database transaction
// with the code row locked, so concurrent redemptions of a nearly
// exhausted code serialize and never over-grant past the threshold.
type ReferralService struct {
	repos *repository.Repositories
	tx    repository.TxManager
	cache *cache.ReferralStatusCache
	hub   *notify.Hub
	cfg   *config.Config
}

func NewReferralService(repos *repository.Repositories, tx repository.TxManager, statusCache *cache.ReferralStatusCache, hub *notify.Hub, cfg *config.Config) *ReferralService {
	return &ReferralService{
		repos: repos,
		tx:    tx,
		cache: statusCache,
		hub:   hub,
		cfg:   cfg,
	}
}

// CodeStatus is the owner-facing view of their current code.
type CodeStatus struct {
	Code        string           `json:"code"`
	Redemptions int              `json:"redemptions"`
	Required    int              `json:"required"`
	State       domain.CodeState `json:"state"`
}

// EnsureCode returns the user's current referral code, minting one if
// they have none yet. Idempotent: calling it again returns the same code.
func (s *ReferralService) EnsureCode(ctx context.Context, ownerID uuid.UUID) (*CodeStatus, error) {
	user, err := s.repos.User.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if user.ReferralCode != nil && *user.ReferralCode != "" {
		rc, err := s.repos.ReferralCode.GetByCode(ctx, *user.ReferralCode)
		if err == nil {
			return s.codeStatus(ctx, rc)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// Dangling reference; fall through and mint a fresh code.
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}

		rc := &domain.ReferralCode{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			Code:      code,
			CreatedAt: time.Now(),
		}

		if err := s.repos.ReferralCode.Create(ctx, rc); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, err
		}

		if err := s.repos.User.SetReferralCode(ctx, ownerID, code); err != nil {
			return nil, err
		}
		s.cache.Invalidate(ctx, ownerID)

		return &CodeStatus{
			Code:     code,
			Required: s.cfg.RequiredRedemptions,
			State:    domain.CodeStateFresh,
		}, nil
	}

	return nil, domain.ErrCodeGenerationExhausted
}

// GetStatus returns the three per-user referral fields, reading through
// the optional Redis cache.
func (s *ReferralService) GetStatus(ctx context.Context, userID uuid.UUID) (*domain.ReferralStatus, error) {
	if status, ok := s.cache.Get(ctx, userID); ok {
		return status, nil
	}

	user, err := s.repos.User.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &domain.ReferralStatus{
		ReferralCode:      user.ReferralCode,
		UsedReferralCode:  user.UsedReferralCode,
		AvailableAnalyses: user.AvailableAnalyses,
	}
	s.cache.Set(ctx, userID, status)
	return status, nil
}

// Redeem applies someone else's code to byUserID's account. The checks
// and writes run inside one transaction keyed on the code row; a failed
// call guarantees no state change.
func (s *ReferralService) Redeem(ctx context.Context, rawCode string, byUserID uuid.UUID) error {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		return domain.ErrCodeNotFound
	}

	var (
		ownerID     uuid.UUID
		redemptions int
	)

	err := s.tx.Do(ctx, func(repos *repository.Repositories) error {
		rc, err := repos.ReferralCode.GetByCodeForUpdate(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCodeNotFound
			}
			return err
		}
		ownerID = rc.OwnerID

		if rc.OwnerID == byUserID {
			return domain.ErrSelfRedemption
		}

		already, err := repos.ReferralCode.HasRedemption(ctx, rc.ID, byUserID)
		if err != nil {
			return err
		}
		if already {
			return domain.ErrAlreadyRedeemed
		}

		count, err := repos.ReferralCode.CountRedemptions(ctx, rc.ID)
		if err != nil {
			return err
		}
		if !rc.Redeemable(int(count), s.cfg.RequiredRedemptions) {
			return domain.ErrCodeExhausted
		}

		// Same owner, different code: blocks farming credits from one
		// friend through serial codes. The same-code case returned
		// ErrAlreadyRedeemed above.
		fromOwner, err := repos.ReferralCode.HasRedeemedFromOwner(ctx, rc.OwnerID, byUserID)
		if err != nil {
			return err
		}
		if fromOwner {
			return domain.ErrDuplicateOwnerRedemption
		}

		redemption := &domain.ReferralRedemption{
			ID:        uuid.New(),
			CodeID:    rc.ID,
			UserID:    byUserID,
			CreatedAt: time.Now(),
		}
		if err := repos.ReferralCode.AddRedemption(ctx, redemption); err != nil {
			return err
		}

		if err := repos.User.SetUsedReferralCode(ctx, byUserID, rc.Code); err != nil {
			return err
		}

		redemptions = int(count) + 1

		switch s.cfg.CreditRecipient {
		case domain.CreditRecipientRedeemer, domain.CreditRecipientBoth:
			if err := repos.User.AddCredits(ctx, byUserID, 1); err != nil {
				return err
			}
		}
		switch s.cfg.CreditRecipient {
		case domain.CreditRecipientOwner, domain.CreditRecipientBoth:
			if redemptions == s.cfg.RequiredRedemptions {
				if err := repos.User.AddCredits(ctx, rc.OwnerID, 1); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, byUserID)
	s.cache.Invalidate(ctx, ownerID)

	if s.hub != nil {
		s.hub.Publish(ownerID, notify.EventReferralRedeemed, map[string]interface{}{
			"code":        code,
			"redemptions": redemptions,
			"exhausted":   redemptions >= s.cfg.RequiredRedemptions,
		})
	}

	return nil
}

// GrantCredits adds n analysis credits to a user, e.g. after a purchase.
func (s *ReferralService) GrantCredits(ctx context.Context, userID uuid.UUID, n int) error {
	if n <= 0 {
		return fmt.Errorf("credit grant must be positive, got %d", n)
	}
	if err := s.repos.User.AddCredits(ctx, userID, n); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// SetCredits replaces a user's balance outright, e.g. a purchase restore
// or a support adjustment. Negative amounts floor at zero.
func (s *ReferralService) SetCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	if err := s.repos.User.SetCredits(ctx, userID, amount); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// ConsumeCredit takes one analysis credit, failing with
// ErrInsufficientCredits when none is available.
func (s *ReferralService) ConsumeCredit(ctx context.Context, userID uuid.UUID) error {
	ok, err := s.repos.User.ConsumeCredit(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientCredits
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

// RefundCredit returns one credit after an analysis attempt failed past
// the point of consumption.
func (s *ReferralService) RefundCredit(ctx context.Context, userID uuid.UUID) error {
	if err := s.repos.User.AddCredits(ctx, userID, 1); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

func (s *ReferralService) codeStatus(ctx context.Context, rc *domain.ReferralCode) (*CodeStatus, error) {
	count, err := s.repos.ReferralCode.CountRedemptions(ctx, rc.ID)
	if err != nil {
		return nil, err
	}
	return &CodeStatus{
		Code:        rc.Code,
		Redemptions: int(count),
		Required:    s.cfg.RequiredRedemptions,
		State:       rc.State(int(count), s.cfg.RequiredRedemptions),
	}, nil
}

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
