package service_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/fiora-labs/aura-backend/internal/config"
	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/repository"
	repoPostgres "github.com/fiora-labs/aura-backend/internal/repository/postgres"
	"github.com/fiora-labs/aura-backend/internal/service"
	"github.com/fiora-labs/aura-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type referralEnv struct {
	db    *testutil.TestDB
	repos *repository.Repositories
	svc   *service.ReferralService
	cfg   *config.Config
}

func newReferralEnv(t *testing.T, required int, recipient domain.CreditRecipient) *referralEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	cfg := testutil.TestConfig()
	cfg.RequiredRedemptions = required
	cfg.CreditRecipient = recipient

	repos := repoPostgres.NewRepositories(db.DB)
	tx := repoPostgres.NewTxManager(db.DB)

	return &referralEnv{
		db:    db,
		repos: repos,
		svc:   service.NewReferralService(repos, tx, nil, nil, cfg),
		cfg:   cfg,
	}
}

func TestEnsureCode_Idempotent(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)

	first, err := env.svc.EnsureCode(ctx, owner.ID)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{6}$`), first.Code)
	assert.Equal(t, domain.CodeStateFresh, first.State)

	second, err := env.svc.EnsureCode(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)
}

func TestRedeem_CodeNotFound(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, env.db.DB)

	err := env.svc.Redeem(ctx, "NOSUCH", user.ID)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)

	err = env.svc.Redeem(ctx, "   ", user.ID)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestRedeem_NormalizesInput(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	redeemer, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("ABC123").Build(t, env.db.DB)

	err := env.svc.Redeem(ctx, "  abc123  ", redeemer.ID)
	require.NoError(t, err)

	updated, err := env.repos.User.GetByID(ctx, redeemer.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.UsedReferralCode)
	assert.Equal(t, "ABC123", *updated.UsedReferralCode)
}

func TestRedeem_SelfRedemption(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("SELF01").Build(t, env.db.DB)

	err := env.svc.Redeem(ctx, "SELF01", owner.ID)
	assert.ErrorIs(t, err, domain.ErrSelfRedemption)
}

func TestRedeem_AlreadyRedeemed(t *testing.T) {
	env := newReferralEnv(t, 2, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	redeemer, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("TWICE1").Build(t, env.db.DB)

	require.NoError(t, env.svc.Redeem(ctx, "TWICE1", redeemer.ID))

	err := env.svc.Redeem(ctx, "TWICE1", redeemer.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyRedeemed)

	// Rejection is idempotent: a third attempt reports the same error.
	err = env.svc.Redeem(ctx, "TWICE1", redeemer.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyRedeemed)
}

func TestRedeem_CodeExhausted(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	first, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	second, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("FULL01").Build(t, env.db.DB)

	require.NoError(t, env.svc.Redeem(ctx, "FULL01", first.ID))

	err := env.svc.Redeem(ctx, "FULL01", second.ID)
	assert.ErrorIs(t, err, domain.ErrCodeExhausted)

	// The failed attempt must not leave any state behind.
	updated, err := env.repos.User.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.UsedReferralCode)
	assert.Equal(t, 0, updated.AvailableAnalyses)
}

func TestRedeem_DuplicateOwnerRedemption(t *testing.T) {
	env := newReferralEnv(t, 5, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	redeemer, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("OWN001").Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("OWN002").Build(t, env.db.DB)

	require.NoError(t, env.svc.Redeem(ctx, "OWN001", redeemer.ID))

	err := env.svc.Redeem(ctx, "OWN002", redeemer.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateOwnerRedemption)
}

func TestRedeem_OwnerCreditGrantedAtThreshold(t *testing.T) {
	env := newReferralEnv(t, 2, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	first, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	second, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("GOAL01").Build(t, env.db.DB)

	require.NoError(t, env.svc.Redeem(ctx, "GOAL01", first.ID))

	mid, err := env.repos.User.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, mid.AvailableAnalyses, "owner must not be credited below the threshold")

	require.NoError(t, env.svc.Redeem(ctx, "GOAL01", second.ID))

	after, err := env.repos.User.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.AvailableAnalyses)
}

func TestRedeem_BothRecipientsCredited(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientBoth)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	redeemer, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("BOTH01").Build(t, env.db.DB)

	require.NoError(t, env.svc.Redeem(ctx, "BOTH01", redeemer.ID))

	ownerAfter, err := env.repos.User.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ownerAfter.AvailableAnalyses)

	redeemerAfter, err := env.repos.User.GetByID(ctx, redeemer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, redeemerAfter.AvailableAnalyses)
}

func TestRedeem_ConcurrentRedemptionsNeverOverfill(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("RACE01").Build(t, env.db.DB)

	const racers = 8
	users := make([]*domain.User, racers)
	for i := range users {
		users[i], _ = testutil.NewUserBuilder().Build(t, env.db.DB)
	}

	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.svc.Redeem(ctx, "RACE01", users[i].ID)
		}(i)
	}
	wg.Wait()

	var successes, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrCodeExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected redemption error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one racer may redeem the last slot")
	assert.Equal(t, racers-1, exhausted)

	ownerAfter, err := env.repos.User.GetByID(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, ownerAfter.AvailableAnalyses, "owner must be credited exactly once")
}

func TestGetStatus(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	redeemer, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	testutil.NewReferralCodeBuilder().WithOwner(owner).WithCode("STAT01").Build(t, env.db.DB)

	require.NoError(t, env.svc.Redeem(ctx, "STAT01", redeemer.ID))

	ownerStatus, err := env.svc.GetStatus(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, ownerStatus.ReferralCode)
	assert.Equal(t, "STAT01", *ownerStatus.ReferralCode)
	assert.Nil(t, ownerStatus.UsedReferralCode)
	assert.Equal(t, 1, ownerStatus.AvailableAnalyses)

	redeemerStatus, err := env.svc.GetStatus(ctx, redeemer.ID)
	require.NoError(t, err)
	require.NotNil(t, redeemerStatus.UsedReferralCode)
	assert.Equal(t, "STAT01", *redeemerStatus.UsedReferralCode)
	assert.Equal(t, 0, redeemerStatus.AvailableAnalyses)
}

func TestConsumeCredit(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithCredits(1).Build(t, env.db.DB)

	require.NoError(t, env.svc.ConsumeCredit(ctx, user.ID))

	err := env.svc.ConsumeCredit(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)

	require.NoError(t, env.svc.RefundCredit(ctx, user.ID))
	require.NoError(t, env.svc.ConsumeCredit(ctx, user.ID))
}

func TestGrantCredits(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, env.db.DB)

	require.NoError(t, env.svc.GrantCredits(ctx, user.ID, 3))

	updated, err := env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.AvailableAnalyses)

	assert.Error(t, env.svc.GrantCredits(ctx, user.ID, 0))
	assert.Error(t, env.svc.GrantCredits(ctx, user.ID, -1))
}

func TestSetCredits(t *testing.T) {
	env := newReferralEnv(t, 1, domain.CreditRecipientOwner)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithCredits(2).Build(t, env.db.DB)

	require.NoError(t, env.svc.SetCredits(ctx, user.ID, 5))
	updated, err := env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.AvailableAnalyses)

	// Setting replaces the balance, it does not add to it
	require.NoError(t, env.svc.SetCredits(ctx, user.ID, 1))
	updated, err = env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.AvailableAnalyses)

	require.NoError(t, env.svc.SetCredits(ctx, user.ID, -3))
	updated, err = env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AvailableAnalyses, "negative amounts floor at zero")
}
