package auth

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ttemp-link/internal/repository/memory"
)

func newJWT() *JWTService {
	return NewJWTService(&JWTConfig{
		SecretKey:           []byte("test-secret"),
		AccessTokenDuration: time.Hour,
		Issuer:              "ttemp-link",
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newJWT()
	userID := uuid.New()

	token, expiresAt, err := svc.GenerateAccessToken(userID, "admin@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newJWT()
	token, _, err := svc.GenerateAccessToken(uuid.New(), "a@example.com")
	require.NoError(t, err)

	other := NewJWTService(&JWTConfig{SecretKey: []byte("other"), AccessTokenDuration: time.Hour, Issuer: "ttemp-link"})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("bearer abc"))
	assert.Empty(t, ExtractTokenFromBearer("Basic abc"))
	assert.Empty(t, ExtractTokenFromBearer("Bearer "))
}

func TestPasswordService(t *testing.T) {
	svc := NewPasswordService(bcrypt.MinCost)

	hash, err := svc.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NoError(t, svc.VerifyPassword(hash, "correct horse"))
	assert.ErrorIs(t, svc.VerifyPassword(hash, "wrong"), ErrInvalidPassword)

	_, err = svc.HashPassword("")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	assert.Equal(t, DefaultBcryptCost, NewPasswordService(0).cost)
}

func TestMiddleware_RequireAuth(t *testing.T) {
	svc := newJWT()
	mw := NewMiddleware(svc, zap.NewNop())
	userID := uuid.New()

	var seen uuid.UUID
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	token, _, err := svc.GenerateAccessToken(userID, "a@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, userID, seen)
}

func TestUserIDFromContext_Empty(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestAuthHandlers_RegisterAndLogin(t *testing.T) {
	store := memory.New()
	h := NewAuthHandlers(store, newJWT(), NewPasswordService(bcrypt.MinCost), true, zap.NewNop())

	rec := postJSON(t, h.Register, RegisterRequest{Email: " Admin@Example.com ", Password: "supersecret"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "admin@example.com", resp.User.Email)

	rec = postJSON(t, h.Register, RegisterRequest{Email: "admin@example.com", Password: "supersecret"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(t, h.Register, RegisterRequest{Email: "bad", Password: "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Contains(t, errResp.Fields, "email")
	assert.Contains(t, errResp.Fields, "password")

	rec = postJSON(t, h.Login, LoginRequest{Email: "ADMIN@example.com", Password: "supersecret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.Login, LoginRequest{Email: "admin@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h.Login, LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlers_SignupDisabled(t *testing.T) {
	h := NewAuthHandlers(memory.New(), newJWT(), NewPasswordService(bcrypt.MinCost), false, zap.NewNop())
	rec := postJSON(t, h.Register, RegisterRequest{Email: "a@example.com", Password: "supersecret"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
