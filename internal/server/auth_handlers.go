package server

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gorahrib/internal/middleware"
	"gorahrib/internal/models"
	"gorahrib/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetime = 7 * 24 * time.Hour

// tokenResponse is returned by signup and login.
type tokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// validate trims the fields in place and reports the first rule broken.
func (r *signupRequest) validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Username == "" || r.Email == "" || r.Password == "" {
		return models.NewValidationError("Username, email, and password are required")
	}
	for _, check := range []error{
		validation.ValidateUsername(r.Username),
		validation.ValidateEmail(r.Email),
		validation.ValidatePassword(r.Password),
	} {
		if check != nil {
			return models.NewValidationError(check.Error())
		}
	}
	return nil
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new hiker account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signupRequest true "Signup request"
// @Success 201 {object} tokenResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := req.validate(); err != nil {
		return respondServiceError(c, err)
	}

	ctx := c.UserContext()
	if taken, err := s.userRepo.GetByEmail(ctx, req.Email); err != nil {
		return respondServiceError(c, err)
	} else if taken != nil {
		return respondServiceError(c, models.NewConflictError("User already exists"))
	}
	if taken, err := s.userRepo.GetByUsername(ctx, req.Username); err != nil {
		return respondServiceError(c, err)
	} else if taken != nil {
		return respondServiceError(c, models.NewConflictError("Username already taken"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hash),
		Role:     models.RoleUser,
		Status:   models.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return respondServiceError(c, err)
	}

	middleware.Logger.InfoContext(ctx, "user signed up", slog.Uint64("new_user_id", uint64(user.ID)))
	return s.respondWithToken(c, fiber.StatusCreated, user)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} tokenResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return respondServiceError(c, models.NewValidationError("Email and password are required"))
	}

	user, err := s.userRepo.GetByEmail(c.UserContext(), req.Email)
	if err != nil {
		return respondServiceError(c, err)
	}
	// Unknown email and wrong password look the same to the caller.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return respondServiceError(c, models.NewUnauthorizedError("Invalid credentials"))
	}
	if !user.IsActive() {
		return respondServiceError(c, models.NewForbiddenError("Account is banned"))
	}
	return s.respondWithToken(c, fiber.StatusOK, user)
}

func (s *Server) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}
	return c.Status(status).JSON(tokenResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revokes the presented token until it would have expired
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	exp, _ := c.Locals("tokenExp").(time.Time)
	if ttl := time.Until(exp); jti != "" && s.redis != nil && ttl > 0 {
		if err := s.redis.Set(c.UserContext(), blacklistKey(jti), "1", ttl).Err(); err != nil {
			middleware.Logger.ErrorContext(c.UserContext(), "failed to revoke token",
				slog.String("error", err.Error()))
			return respondServiceError(c, models.NewInternalError(err))
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// hikerClaims are the claims of a GoraHrib access token. The random ID lets
// logout revoke one token.
type hikerClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := hikerClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
}
