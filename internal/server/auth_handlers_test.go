package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorahrib/internal/config"
	"gorahrib/internal/models"
	"gorahrib/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) WithTx(_ *gorm.DB) repository.UserRepository { return m }

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, excludeID, limit)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) AdjustCounters(ctx context.Context, id uint, deltas map[string]int) error {
	args := m.Called(ctx, id, deltas)
	return args.Error(0)
}

func (m *MockUserRepository) Ranked(ctx context.Context, ids []uint, limit int) ([]models.User, error) {
	args := m.Called(ctx, ids, limit)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(m *MockUserRepository)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "Špela",
				"email":    "Spela@Example.com",
				"password": "Password123!",
			},
			mockSetup: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "spela@example.com").Return(nil, nil)
				m.On("GetByUsername", mock.Anything, "Špela").Return(nil, nil)
				m.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
					return u.Role == models.RoleUser && u.Status == models.UserStatusActive &&
						bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("Password123!")) == nil
				})).Run(func(args mock.Arguments) {
					args.Get(1).(*models.User).ID = 5
				}).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Duplicate Email",
			body: map[string]string{
				"username": "testuser",
				"email":    "exists@example.com",
				"password": "Password123!",
			},
			mockSetup: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "exists@example.com").Return(&models.User{ID: 1}, nil)
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "User already exists",
		},
		{
			name: "Duplicate Username",
			body: map[string]string{
				"username": "taken",
				"email":    "new@example.com",
				"password": "Password123!",
			},
			mockSetup: func(m *MockUserRepository) {
				m.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
				m.On("GetByUsername", mock.Anything, "taken").Return(&models.User{ID: 2}, nil)
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "Username already taken",
		},
		{
			name: "Weak Password",
			body: map[string]string{
				"username": "testuser",
				"email":    "weak@example.com",
				"password": "password",
			},
			mockSetup:      func(m *MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Missing Fields",
			body: map[string]string{
				"email": "only@example.com",
			},
			mockSetup:      func(m *MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.mockSetup(mockRepo)
			s := &Server{
				config:   &config.Config{JWTSecret: testSecret},
				userRepo: mockRepo,
			}
			app := fiber.New()
			app.Post("/signup", s.Signup)

			resp := postJSON(t, app, "/signup", tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedError != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedError, body.Error)
			}
			if tt.expectedStatus == http.StatusCreated {
				var body struct {
					Token string      `json:"token"`
					User  models.User `json:"user"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.NotEmpty(t, body.Token)
				assert.Equal(t, uint(5), body.User.ID)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	require.NoError(t, err)

	active := &models.User{ID: 3, Username: "janez", Email: "janez@example.com",
		Password: string(hash), Role: models.RoleUser, Status: models.UserStatusActive}
	banned := &models.User{ID: 4, Username: "miha", Email: "miha@example.com",
		Password: string(hash), Role: models.RoleUser, Status: models.UserStatusInactive}

	tests := []struct {
		name           string
		email          string
		password       string
		user           *models.User
		expectedStatus int
	}{
		{"Success", "janez@example.com", "Password123!", active, http.StatusOK},
		{"Wrong Password", "janez@example.com", "Nope12345", active, http.StatusUnauthorized},
		{"Unknown Email", "nobody@example.com", "Password123!", nil, http.StatusUnauthorized},
		{"Banned Account", "miha@example.com", "Password123!", banned, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			if tt.user != nil {
				mockRepo.On("GetByEmail", mock.Anything, tt.email).Return(tt.user, nil)
			} else {
				mockRepo.On("GetByEmail", mock.Anything, tt.email).Return(nil, nil)
			}
			s := &Server{
				config:   &config.Config{JWTSecret: testSecret},
				userRepo: mockRepo,
			}
			app := fiber.New()
			app.Post("/login", s.Login)

			resp := postJSON(t, app, "/login", map[string]string{"email": tt.email, "password": tt.password})
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body struct {
					Token string `json:"token"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				claims, err := s.parseToken(body.Token)
				require.NoError(t, err)
				assert.Equal(t, "3", claims["sub"])
			}
		})
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := &Server{
		config: &config.Config{JWTSecret: testSecret},
		redis:  rdb,
	}
	app := fiber.New()
	app.Post("/logout", s.AuthRequired(), s.Logout)
	app.Get("/me", s.AuthRequired(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	token, err := s.generateToken(11, "tina")
	require.NoError(t, err)

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/me"))
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/logout"))
	assert.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/me"))

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	jti := parsed.Claims.(jwt.MapClaims)["jti"].(string)
	ttl := mr.TTL(blacklistKey(jti))
	assert.Greater(t, ttl, 6*24*time.Hour)
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	s := &Server{config: &config.Config{}}
	_, err := s.generateToken(1, "x")
	assert.Error(t, err)
}
