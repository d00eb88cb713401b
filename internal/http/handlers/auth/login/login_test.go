package login

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(0).(*models.User)
	return u, args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	user := &models.User{Email: "user@example.com", Role: models.RoleGeneral}

	tests := []struct {
		name           string
		requestBody    any
		mockUser       *models.User
		mockToken      string
		mockErr        error
		wantStatusCode int
		wantErrorKey   string
	}{
		{
			name:           "успешный вход",
			requestBody:    Request{Email: "user@example.com", Password: "secret"},
			mockUser:       user,
			mockToken:      "tok",
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "некорректный json",
			requestBody:    "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantErrorKey:   "invalid request body",
		},
		{
			name:           "отсутствует пароль",
			requestBody:    Request{Email: "user@example.com"},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantErrorKey:   "field Password is a required field",
		},
		{
			name:           "неверные учетные данные",
			requestBody:    Request{Email: "user@example.com", Password: "wrong"},
			mockErr:        store.ErrInvalidCredentials,
			wantStatusCode: http.StatusUnauthorized,
			wantErrorKey:   "invalidCredentials",
		},
		{
			name:           "таймаут подключения",
			requestBody:    Request{Email: "user@example.com", Password: "secret"},
			mockErr:        store.ErrTimeout,
			wantStatusCode: http.StatusGatewayTimeout,
			wantErrorKey:   "connectionTimedOut",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if req, ok := tc.requestBody.(Request); ok && req.Password != "" {
				svc.On("Login", mock.Anything, req.Email, req.Password).
					Return(tc.mockUser, tc.mockToken, tc.mockErr).Once()
			}
			handler := New(newNoopLogger(), svc)

			var body bytes.Buffer
			switch v := tc.requestBody.(type) {
			case string:
				body.WriteString(v)
			default:
				require.NoError(t, json.NewEncoder(&body).Encode(v))
			}

			req := httptest.NewRequest(http.MethodPost, "/login", &body)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatusCode, rec.Code)

			var resp map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			if tc.wantErrorKey != "" {
				assert.Equal(t, "Error", resp["status"])
				assert.Equal(t, tc.wantErrorKey, resp["error"])
				return
			}
			assert.Equal(t, "OK", resp["status"])
			data := resp["data"].(map[string]any)
			assert.Equal(t, "tok", data["token"])
		})
	}
}
