package domain

import "errors"

// Referral ledger errors. These are user-actionable and surface verbatim
// as the reason a redemption failed.
var (
	ErrCodeNotFound             = errors.New("invalid referral code")
	ErrSelfRedemption           = errors.New("you cannot use your own referral code")
	ErrAlreadyRedeemed          = errors.New("you have already used this referral code")
	ErrCodeExhausted            = errors.New("this referral code has already been fully used")
	ErrDuplicateOwnerRedemption = errors.New("you have already used a referral code from this user")
	ErrCodeGenerationExhausted  = errors.New("could not generate a unique referral code")
)

// Credit and analysis errors
var (
	ErrInsufficientCredits  = errors.New("no analyses available")
	ErrMalformedModelOutput = errors.New("model returned malformed analysis output")
	ErrAnalysisNotFound     = errors.New("analysis not found")
	ErrImageTooLarge        = errors.New("image exceeds maximum size")
)
