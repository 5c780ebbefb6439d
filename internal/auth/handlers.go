package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/repository"
	"ttemp-link/internal/validation"
)

// AuthHandlers serves signup and login.
type AuthHandlers struct {
	users           repository.UserStorage
	jwtService      *JWTService
	passwordService *PasswordService
	allowSignup     bool
	log             *zap.Logger
}

func NewAuthHandlers(users repository.UserStorage, jwtService *JWTService, passwordService *PasswordService, allowSignup bool, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:           users,
		jwtService:      jwtService,
		passwordService: passwordService,
		allowSignup:     allowSignup,
		log:             log.With(zap.String("component", "auth.handlers")),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
}

type UserInfo struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Register creates an admin account when signup is enabled.
//
//	@Summary		Register an admin
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RegisterRequest	true	"Registration request"
//	@Success		201		{object}	AuthResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse	"Signup disabled"
//	@Failure		409		{object}	ErrorResponse	"User already exists"
//	@Router			/api/auth/register [post]
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowSignup {
		writeError(w, "Signup is disabled", http.StatusForbidden)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid registration request", zap.Error(err))
		writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	req.Email = normalizeEmail(req.Email)

	if err := validation.Struct(&req); err != nil {
		writeValidation(w, err)
		return
	}

	hashedPassword, err := h.passwordService.HashPassword(req.Password)
	if err != nil {
		h.log.Error("failed to hash password", zap.Error(err))
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := &domain.User{Email: req.Email, PasswordHash: hashedPassword}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			writeError(w, "User with this email already exists", http.StatusConflict)
			return
		}
		h.log.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
		writeError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	h.log.Info("user registered", zap.String("user_id", user.ID.String()))
	h.respondWithToken(w, user, http.StatusCreated)
}

// Login exchanges credentials for an access token.
//
//	@Summary		Log in
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest	true	"Login request"
//	@Success		200		{object}	AuthResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	ErrorResponse	"Too many attempts"
//	@Router			/api/auth/login [post]
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid login request", zap.Error(err))
		writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	req.Email = normalizeEmail(req.Email)

	if err := validation.Struct(&req); err != nil {
		writeValidation(w, err)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			h.log.Error("failed to load user", zap.Error(err))
			writeError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := h.passwordService.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.log.Debug("invalid password", zap.String("user_id", user.ID.String()))
		writeError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	h.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	h.respondWithToken(w, user, http.StatusOK)
}

func (h *AuthHandlers) respondWithToken(w http.ResponseWriter, user *domain.User, status int) {
	token, expiresAt, err := h.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		h.log.Error("failed to generate access token", zap.Error(err))
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        UserInfo{ID: user.ID, Email: user.Email},
	}, status)
}

func writeValidation(w http.ResponseWriter, err error) {
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		writeJSON(w, ErrorResponse{Error: "Validation failed", Fields: fields}, http.StatusBadRequest)
		return
	}
	writeError(w, "Invalid request", http.StatusBadRequest)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
