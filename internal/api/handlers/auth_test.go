package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hydrachat/internal/auth"
	"hydrachat/internal/core"
	"hydrachat/internal/types"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Signup(ctx context.Context, email, password string) (*auth.Token, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Token), args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Token, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Token), args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func newAuthRouter(svc *mockAuthService) chi.Router {
	h := NewAuthHandler(svc, core.NewValidator(nil), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestAuthHandler_Signup_Success(t *testing.T) {
	svc := &mockAuthService{}
	expires := time.Now().Add(720 * time.Hour).UTC().Truncate(time.Second)
	svc.On("Signup", mock.Anything, "alice@example.com", "hunter2hunter2").
		Return(&auth.Token{Value: "tok-abc", ExpiresAt: expires}, nil)

	rec := postJSON(t, newAuthRouter(svc), "/auth/signup", SignupRequest{
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok-abc", resp.Data.Token)
	assert.True(t, resp.Data.ExpiresAt.Equal(expires))
	svc.AssertExpectations(t)
}

func TestAuthHandler_Signup_InvalidEmail(t *testing.T) {
	svc := &mockAuthService{}

	rec := postJSON(t, newAuthRouter(svc), "/auth/signup", SignupRequest{
		Email:    "not-an-email",
		Password: "hunter2hunter2",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationInvalidEmail), decodeErrorCode(t, rec))
	svc.AssertNotCalled(t, "Signup")
}

func TestAuthHandler_Signup_ShortPassword(t *testing.T) {
	svc := &mockAuthService{}

	rec := postJSON(t, newAuthRouter(svc), "/auth/signup", SignupRequest{
		Email:    "alice@example.com",
		Password: "short",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Signup")
}

func TestAuthHandler_Signup_DuplicateEmail(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Signup", mock.Anything, "alice@example.com", "hunter2hunter2").
		Return(nil, types.NewAppError(types.ErrCodeConflictEmail, "an account with this email already exists", nil))

	rec := postJSON(t, newAuthRouter(svc), "/auth/signup", SignupRequest{
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(types.ErrCodeConflictEmail), decodeErrorCode(t, rec))
}

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Login", mock.Anything, "alice@example.com", "hunter2hunter2").
		Return(&auth.Token{Value: "tok-xyz", ExpiresAt: time.Now().Add(time.Hour)}, nil)

	rec := postJSON(t, newAuthRouter(svc), "/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tok-xyz", resp.Data.Token)
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Login", mock.Anything, "alice@example.com", "wrong-password").
		Return(nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid email or password", nil))

	rec := postJSON(t, newAuthRouter(svc), "/auth/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthInvalidCreds), decodeErrorCode(t, rec))
}

func TestAuthHandler_Login_MalformedBody(t *testing.T) {
	svc := &mockAuthService{}
	router := newAuthRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Login")
}

func TestAuthHandler_Logout_Success(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Logout", mock.Anything, "tok-abc").Return(nil)

	router := newAuthRouter(svc)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestAuthHandler_Logout_MissingToken(t *testing.T) {
	svc := &mockAuthService{}

	router := newAuthRouter(svc)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), decodeErrorCode(t, rec))
	svc.AssertNotCalled(t, "Logout")
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer tok-abc", "tok-abc"},
		{"lowercase scheme", "bearer tok-abc", "tok-abc"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, bearerToken(req))
		})
	}
}
