package update

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error) {
	args := m.Called(ctx, email, patch)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func serve(t *testing.T, svc Service, email, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Patch("/users/{email}", New(newNoopLogger(), svc).ServeHTTP)

	req := httptest.NewRequest(http.MethodPatch, "/users/"+email, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUpdateHandler_ServeHTTP(t *testing.T) {
	t.Run("отсутствующие ключи не попадают в патч", func(t *testing.T) {
		svc := new(ServiceMock)
		svc.On("UpdateUser", mock.Anything, "user@example.com", mock.MatchedBy(func(p models.UserPatch) bool {
			return p.Name != nil && *p.Name == "New" &&
				p.Role == nil && p.SubscriptionExpiry == nil && !p.ClearSubscriptionExpiry
		})).Return(&models.User{Email: "user@example.com", Name: "New"}, nil).Once()

		rec := serve(t, svc, "user@example.com", `{"name":"New"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("недопустимая роль отклоняется", func(t *testing.T) {
		svc := new(ServiceMock)
		rec := serve(t, svc, "user@example.com", `{"role":"superuser"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		svc.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("пользователь не найден", func(t *testing.T) {
		svc := new(ServiceMock)
		svc.On("UpdateUser", mock.Anything, "ghost@example.com", mock.Anything).
			Return(nil, store.ErrUserNotFound).Once()

		rec := serve(t, svc, "ghost@example.com", `{"name":"X"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
