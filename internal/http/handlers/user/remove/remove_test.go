package remove

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mazylab/appraiser-account/internal/http/middlewarectx"
	"github.com/mazylab/appraiser-account/internal/store"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) DeleteUser(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRemoveHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		email          string
		requesterEmail string
		mockErr        error
		wantCalled     bool
		wantStatusCode int
		wantErrorKey   string
	}{
		{
			name:           "успешное удаление",
			email:          "other@example.com",
			requesterEmail: "admin@example.com",
			wantCalled:     true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "удаление записи из JWT запроса",
			email:          "admin@example.com",
			requesterEmail: "admin@example.com",
			wantCalled:     false,
			wantStatusCode: http.StatusConflict,
			wantErrorKey:   "cannotDeleteSelf",
		},
		{
			name:           "удаление собственной записи по серверной сессии",
			email:          "self@example.com",
			requesterEmail: "admin@example.com",
			mockErr:        store.ErrSelfDelete,
			wantCalled:     true,
			wantStatusCode: http.StatusConflict,
			wantErrorKey:   "cannotDeleteSelf",
		},
		{
			name:           "пользователь не найден",
			email:          "ghost@example.com",
			requesterEmail: "admin@example.com",
			mockErr:        store.ErrUserNotFound,
			wantCalled:     true,
			wantStatusCode: http.StatusNotFound,
			wantErrorKey:   "userNotFound",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tc.wantCalled {
				svc.On("DeleteUser", mock.Anything, tc.email).Return(tc.mockErr).Once()
			}

			r := chi.NewRouter()
			r.Delete("/users/{email}", New(newNoopLogger(), svc).ServeHTTP)

			req := httptest.NewRequest(http.MethodDelete, "/users/"+tc.email, nil)
			ctx := context.WithValue(req.Context(), middlewarectx.User, tc.requesterEmail)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req.WithContext(ctx))

			assert.Equal(t, tc.wantStatusCode, rec.Code)
			if tc.wantErrorKey != "" {
				var resp map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tc.wantErrorKey, resp["error"])
			}
			svc.AssertExpectations(t)
		})
	}
}

// Свежий процесс: серверная сессия пуста, личность запроса есть только в
// JWT. Удаление собственной записи должно отклоняться до вызова сервиса.
func TestRemoveHandler_SelfDeleteWithEmptyServerSession(t *testing.T) {
	svc := new(ServiceMock)

	r := chi.NewRouter()
	r.Delete("/users/{email}", New(newNoopLogger(), svc).ServeHTTP)

	req := httptest.NewRequest(http.MethodDelete, "/users/a@x.com", nil)
	ctx := context.WithValue(req.Context(), middlewarectx.User, "a@x.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "cannotDeleteSelf", resp["error"])
	svc.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
}
