package service_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/repository"
	repoPostgres "github.com/fiora-labs/aura-backend/internal/repository/postgres"
	"github.com/fiora-labs/aura-backend/internal/service"
	"github.com/fiora-labs/aura-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type analysisEnv struct {
	db       *testutil.TestDB
	repos    *repository.Repositories
	referral *service.ReferralService
	svc      *service.AnalysisService
	vision   *testutil.StubVision
}

func newAnalysisEnv(t *testing.T) *analysisEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	cfg := testutil.TestConfig()

	repos := repoPostgres.NewRepositories(db.DB)
	tx := repoPostgres.NewTxManager(db.DB)
	stub := testutil.NewStubVision()

	referral := service.NewReferralService(repos, tx, nil, nil, cfg)
	svc := service.NewAnalysisService(
		repos.Analysis, repos.Diagnostic, referral, stub, nil, zap.NewNop(), cfg.MaxImageBytes,
	)

	return &analysisEnv{
		db:       db,
		repos:    repos,
		referral: referral,
		svc:      svc,
		vision:   stub,
	}
}

func fakeImage() []byte {
	return bytes.Repeat([]byte{0xFF, 0xD8, 0x42}, 128)
}

func TestAnalyze_Success(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithCredits(1).Build(t, env.db.DB)

	analysis, err := env.svc.Analyze(ctx, user.ID, fakeImage())
	require.NoError(t, err)

	assert.Equal(t, "medium", analysis.Thickness)
	assert.Equal(t, "good", analysis.Health)
	// Sub-scores are stored exactly as the model reported them.
	assert.Equal(t, 25.0, analysis.Damage)
	assert.Equal(t, 72.0, analysis.Moisture)
	assert.GreaterOrEqual(t, analysis.OverallScore, 0)
	assert.LessOrEqual(t, analysis.OverallScore, 100)
	assert.NotEmpty(t, analysis.Recommendations)

	stored, err := env.repos.Analysis.GetByID(ctx, analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.OverallScore, stored.OverallScore)

	after, err := env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.AvailableAnalyses)
}

func TestAnalyze_InsufficientCredits(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, env.db.DB)

	_, err := env.svc.Analyze(ctx, user.ID, fakeImage())
	assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
	assert.Equal(t, 0, env.vision.Calls(), "vision must not be called without a credit")
}

func TestAnalyze_ImageTooLarge(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithCredits(1).Build(t, env.db.DB)

	huge := make([]byte, testutil.TestConfig().MaxImageBytes+1)
	_, err := env.svc.Analyze(ctx, user.ID, huge)
	assert.ErrorIs(t, err, domain.ErrImageTooLarge)

	after, err := env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.AvailableAnalyses, "rejected upload must not consume a credit")
}

func TestAnalyze_MalformedOutputRefundsCredit(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithCredits(1).Build(t, env.db.DB)
	env.vision.SetResponse("I could not analyze this image, sorry.")

	_, err := env.svc.Analyze(ctx, user.ID, fakeImage())
	assert.ErrorIs(t, err, domain.ErrMalformedModelOutput)

	after, err := env.repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.AvailableAnalyses, "failed analysis must refund the credit")

	analyses, err := env.svc.History(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, analyses)
}

func TestAnalyze_UnfencedJSONAccepted(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithCredits(1).Build(t, env.db.DB)
	env.vision.SetResponse("Here is the assessment you asked for:\n" + `{
		"thickness": "Fine",
		"health": "FAIR",
		"scores": {"moisture": 40, "damage": 60, "texture": 50, "frizz": 55, "shine": 45, "density": 50, "elasticity": 48},
		"recommendations": {"products": [], "techniques": [], "lifestyle": []}
	}`)

	analysis, err := env.svc.Analyze(ctx, user.ID, fakeImage())
	require.NoError(t, err)
	assert.Equal(t, "fine", analysis.Thickness)
	assert.Equal(t, "fair", analysis.Health)
}

func TestAnalyze_UsesDiagnosticContext(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().WithCredits(1).Build(t, env.db.DB)

	diagSvc := service.NewDiagnosticService(env.repos.Diagnostic)
	_, err := diagSvc.Save(ctx, user.ID, map[string]string{
		"How often do you wash your hair?": "daily",
	})
	require.NoError(t, err)

	_, err = env.svc.Analyze(ctx, user.ID, fakeImage())
	require.NoError(t, err)
	assert.Equal(t, 1, env.vision.Calls())
}

func TestHistory_NewestFirst(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	user, _ := testutil.NewUserBuilder().Build(t, env.db.DB)

	base := time.Now().Add(-time.Hour)
	old := testutil.NewAnalysisBuilder().WithUser(user).WithCreatedAt(base).Build(t, env.db.DB)
	mid := testutil.NewAnalysisBuilder().WithUser(user).WithCreatedAt(base.Add(10 * time.Minute)).Build(t, env.db.DB)
	newest := testutil.NewAnalysisBuilder().WithUser(user).WithCreatedAt(base.Add(20 * time.Minute)).Build(t, env.db.DB)

	analyses, err := env.svc.History(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, analyses, 3)
	assert.Equal(t, newest.ID, analyses[0].ID)
	assert.Equal(t, mid.ID, analyses[1].ID)
	assert.Equal(t, old.ID, analyses[2].ID)

	page, err := env.svc.History(ctx, user.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, mid.ID, page[0].ID)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	env := newAnalysisEnv(t)
	ctx := context.Background()

	owner, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	other, _ := testutil.NewUserBuilder().Build(t, env.db.DB)
	analysis := testutil.NewAnalysisBuilder().WithUser(owner).Build(t, env.db.DB)

	got, err := env.svc.Get(ctx, owner.ID, analysis.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.ID, got.ID)

	_, err = env.svc.Get(ctx, other.ID, analysis.ID)
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)

	_, err = env.svc.Get(ctx, owner.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
}
