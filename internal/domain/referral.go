package domain

import (
	"time"

	"github.com/google/uuid"
)

// CodeState describes where a referral code sits in its lifecycle.
// A code moves Fresh -> PartiallyRedeemed -> Exhausted and never back;
// exhausted codes stay in the table as immutable history while the owner
// may mint a new current code.
type CodeState string

const (
	CodeStateFresh             CodeState = "fresh"
	CodeStatePartiallyRedeemed CodeState = "partially_redeemed"
	CodeStateExhausted         CodeState = "exhausted"
)

// ReferralCode is a shareable 6-character invite code owned by one user.
// The code value is stored upper-case and matched case-insensitively.
type ReferralCode struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OwnerID   uuid.UUID `json:"ownerId" gorm:"type:uuid;not null;index"`
	Code      string    `json:"code" gorm:"uniqueIndex;size:6;not null"`
	CreatedAt time.Time `json:"createdAt"`

	Redemptions []ReferralRedemption `json:"-" gorm:"foreignKey:CodeID"`
}

// ReferralRedemption records one user redeeming one code. The composite
// unique index gives usedBy set semantics at the database level.
type ReferralRedemption struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CodeID    uuid.UUID `json:"codeId" gorm:"type:uuid;not null;uniqueIndex:idx_code_redeemer"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_code_redeemer"`
	CreatedAt time.Time `json:"createdAt"`
}

// State derives the lifecycle state from the current redemption count and
// the configured threshold.
func (c *ReferralCode) State(redeemed int, threshold int) CodeState {
	switch {
	case redeemed <= 0:
		return CodeStateFresh
	case redeemed < threshold:
		return CodeStatePartiallyRedeemed
	default:
		return CodeStateExhausted
	}
}

// Redeemable reports whether the code can still accept new redemptions.
func (c *ReferralCode) Redeemable(redeemed int, threshold int) bool {
	return redeemed < threshold
}

// ReferralStatus is the per-user view of the credit economy.
type ReferralStatus struct {
	ReferralCode      *string `json:"referralCode"`
	UsedReferralCode  *string `json:"usedReferralCode"`
	AvailableAnalyses int     `json:"availableAnalyses"`
}

// CreditRecipient selects who is granted an analysis credit when a code
// reaches its redemption threshold.
type CreditRecipient string

const (
	CreditRecipientOwner    CreditRecipient = "owner"
	CreditRecipientRedeemer CreditRecipient = "redeemer"
	CreditRecipientBoth     CreditRecipient = "both"
)
