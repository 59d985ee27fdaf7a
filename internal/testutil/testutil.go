package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fiora-labs/aura-backend/internal/api"
	"github.com/fiora-labs/aura-backend/internal/config"
	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/fiora-labs/aura-backend/internal/notify"
	"github.com/fiora-labs/aura-backend/internal/repository"
	repoPostgres "github.com/fiora-labs/aura-backend/internal/repository/postgres"
	"github.com/fiora-labs/aura-backend/internal/service"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer and returns a connection
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_aura"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&domain.User{},
		&domain.UserSession{},
		&domain.ReferralCode{},
		&domain.ReferralRedemption{},
		&domain.HairAnalysis{},
		&domain.DiagnosticResult{},
	)
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		ctx := context.Background()
		tdb.Container.Terminate(ctx)
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"referral_redemptions",
		"referral_codes",
		"diagnostic_results",
		"hair_analyses",
		"user_sessions",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:                "0", // Random port
		Environment:         "test",
		JWTSecret:           "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours:  1,
		MaxImageBytes:       1 << 20,
		RequiredRedemptions: 1,
		CreditRecipient:     domain.CreditRecipientOwner,
	}
}

// StubVision is a controllable vision client for tests.
type StubVision struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func NewStubVision() *StubVision {
	return &StubVision{response: ValidModelResponse()}
}

func (s *StubVision) SetResponse(response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = response
	s.err = nil
}

func (s *StubVision) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StubVision) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubVision) AnalyzeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// ValidModelResponse returns a model reply the analysis parser accepts,
// wrapped in a code fence the way the model usually replies.
func ValidModelResponse() string {
	return "```json\n" + `{
  "thickness": "medium",
  "health": "good",
  "scores": {
    "moisture": 72,
    "damage": 25,
    "texture": 68,
    "frizz": 30,
    "shine": 65,
    "density": 70,
    "elasticity": 75
  },
  "recommendations": {
    "products": [
      {"category": "shampoo", "name": "Hydrating Shampoo", "reason": "restores moisture"},
      {"category": "conditioner", "name": "Repair Conditioner", "reason": "reduces breakage"},
      {"category": "serum", "name": "Shine Serum", "reason": "adds gloss"}
    ],
    "techniques": ["air dry when possible", "use a wide-tooth comb"],
    "lifestyle": ["drink more water", "sleep on a silk pillowcase"]
  }
}` + "\n```"
}

// TestServer holds all components for integration testing
type TestServer struct {
	Server   *httptest.Server
	DB       *TestDB
	Repos    *repository.Repositories
	Tx       repository.TxManager
	Services *service.Services
	Hub      *notify.Hub
	Vision   *StubVision
	Config   *config.Config
}

// NewTestServer creates a complete test server with all dependencies
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	testDB := NewTestDB(t)
	cfg := TestConfig()
	log := zap.NewNop()

	repos := repoPostgres.NewRepositories(testDB.DB)
	txManager := repoPostgres.NewTxManager(testDB.DB)

	hub := notify.NewHub(log)
	go hub.Run()

	stubVision := NewStubVision()

	services := service.NewServices(repos, txManager, stubVision, nil, hub, cfg, log)
	router := api.NewRouter(services, hub, log)

	server := httptest.NewServer(router)

	ts := &TestServer{
		Server:   server,
		DB:       testDB,
		Repos:    repos,
		Tx:       txManager,
		Services: services,
		Hub:      hub,
		Vision:   stubVision,
		Config:   cfg,
	}

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})

	return ts
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}

// WebSocketURL returns the WebSocket URL with token
func (ts *TestServer) WebSocketURL(token string) string {
	wsURL := "ws" + ts.Server.URL[4:] // Replace "http" with "ws"
	return fmt.Sprintf("%s/ws?token=%s", wsURL, token)
}
