package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/fiora-labs/aura-backend/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email       string
	displayName string
	password    string
	credits     int
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		email:       fmt.Sprintf("user_%s@example.com", suffix),
		displayName: fmt.Sprintf("testuser_%s", suffix),
		password:    "testpassword123",
	}
}

// WithEmail sets the email
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// WithCredits sets the starting analysis credit balance
func (b *UserBuilder) WithCredits(n int) *UserBuilder {
	b.credits = n
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:                uuid.New(),
		Email:             b.email,
		DisplayName:       b.displayName,
		PasswordHash:      string(hashedPassword),
		AvailableAnalyses: b.credits,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID                string `json:"id"`
		Email             string `json:"email"`
		DisplayName       string `json:"displayName"`
		AvailableAnalyses int    `json:"availableAnalyses"`
	} `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// BuildAndAuthenticate creates a user via API and returns the user and access token
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"email":       b.email,
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		Email:       authResp.User.Email,
		DisplayName: authResp.User.DisplayName,
	}

	return user, authResp.AccessToken
}

// ReferralCodeBuilder creates referral codes bound to an owner
type ReferralCodeBuilder struct {
	owner *domain.User
	code  string
}

// NewReferralCodeBuilder creates a new ReferralCodeBuilder with default values
func NewReferralCodeBuilder() *ReferralCodeBuilder {
	return &ReferralCodeBuilder{}
}

// WithOwner sets the code owner
func (b *ReferralCodeBuilder) WithOwner(owner *domain.User) *ReferralCodeBuilder {
	b.owner = owner
	return b
}

// WithCode sets an explicit 6-character code
func (b *ReferralCodeBuilder) WithCode(code string) *ReferralCodeBuilder {
	b.code = code
	return b
}

// Build creates the referral code in the database and links it to the owner
func (b *ReferralCodeBuilder) Build(t *testing.T, db *gorm.DB) *domain.ReferralCode {
	t.Helper()

	if b.owner == nil {
		owner, _ := NewUserBuilder().Build(t, db)
		b.owner = owner
	}
	if b.code == "" {
		b.code = randomCode()
	}

	rc := &domain.ReferralCode{
		ID:        uuid.New(),
		OwnerID:   b.owner.ID,
		Code:      b.code,
		CreatedAt: time.Now(),
	}

	if err := db.Create(rc).Error; err != nil {
		t.Fatalf("failed to create referral code: %v", err)
	}

	if err := db.Model(&domain.User{}).Where("id = ?", b.owner.ID).
		Update("referral_code", b.code).Error; err != nil {
		t.Fatalf("failed to link referral code to owner: %v", err)
	}

	return rc
}

func randomCode() string {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	id := uuid.New()
	code := make([]byte, 6)
	for i := range code {
		code[i] = alphabet[int(id[i])%len(alphabet)]
	}
	return string(code)
}

// AnalysisBuilder creates stored hair analyses
type AnalysisBuilder struct {
	user         *domain.User
	overallScore int
	createdAt    time.Time
}

// NewAnalysisBuilder creates a new AnalysisBuilder with default values
func NewAnalysisBuilder() *AnalysisBuilder {
	return &AnalysisBuilder{
		overallScore: 75,
		createdAt:    time.Now(),
	}
}

// WithUser sets the owning user
func (b *AnalysisBuilder) WithUser(user *domain.User) *AnalysisBuilder {
	b.user = user
	return b
}

// WithOverallScore sets the overall score
func (b *AnalysisBuilder) WithOverallScore(score int) *AnalysisBuilder {
	b.overallScore = score
	return b
}

// WithCreatedAt sets the creation timestamp
func (b *AnalysisBuilder) WithCreatedAt(ts time.Time) *AnalysisBuilder {
	b.createdAt = ts
	return b
}

// Build creates the analysis in the database
func (b *AnalysisBuilder) Build(t *testing.T, db *gorm.DB) *domain.HairAnalysis {
	t.Helper()

	if b.user == nil {
		user, _ := NewUserBuilder().Build(t, db)
		b.user = user
	}

	recs, _ := json.Marshal(domain.Recommendations{
		Products:   []domain.ProductRecommendation{{Category: "shampoo", Name: "Test Shampoo", Reason: "test"}},
		Techniques: []string{"air dry"},
		Lifestyle:  []string{"hydrate"},
	})

	analysis := &domain.HairAnalysis{
		ID:              uuid.New(),
		UserID:          b.user.ID,
		Thickness:       "medium",
		Health:          "good",
		Moisture:        70,
		Damage:          30,
		Texture:         65,
		Frizz:           35,
		Shine:           60,
		Density:         70,
		Elasticity:      72,
		OverallScore:    b.overallScore,
		Recommendations: datatypes.JSON(recs),
		CreatedAt:       b.createdAt,
	}

	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("failed to create analysis: %v", err)
	}

	return analysis
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
