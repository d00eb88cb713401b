package cloudstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mazylab/appraiser-account/internal/migrations"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort(nat.Port("5432/tcp")),
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(dsn)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, migrationsPath))

	cleanup := func() {
		_ = s.DB.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return s, cleanup
}

func TestStore_RegisterAndAuthenticate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	u, err := s.Register(ctx, models.RegisterDetails{
		Email: "a@x.com", Password: "secret", Name: "A", Phone: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleGeneral, u.Role)

	got, err := s.Authenticate(ctx, "a@x.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	_, err = s.Authenticate(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, store.ErrInvalidCredentials)
}

func TestStore_RegisterDuplicate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Register(ctx, models.RegisterDetails{Email: "a@x.com", Password: "p", Name: "A", Phone: "1"})
	require.NoError(t, err)

	_, err = s.Register(ctx, models.RegisterDetails{Email: "a@x.com", Password: "q", Name: "A2", Phone: "2"})
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestStore_UpdateUserByResolvedID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Register(ctx, models.RegisterDetails{Email: "b@x.com", Password: "p", Name: "B", Phone: "2"})
	require.NoError(t, err)

	role := models.RolePaid
	expiry := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	updated, err := s.UpdateUser(ctx, "b@x.com", models.UserPatch{Role: &role, SubscriptionExpiry: &expiry})
	require.NoError(t, err)
	assert.Equal(t, models.RolePaid, updated.Role)
	require.NotNil(t, updated.SubscriptionExpiry)

	// незаполненные поля патча не затирают сохраненные значения
	name := "B2"
	updated, err = s.UpdateUser(ctx, "b@x.com", models.UserPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, models.RolePaid, updated.Role)
	require.NotNil(t, updated.SubscriptionExpiry)

	_, err = s.UpdateUser(ctx, "ghost@x.com", models.UserPatch{Name: &name})
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestStore_DeleteUser(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Register(ctx, models.RegisterDetails{Email: "c@x.com", Password: "p", Name: "C", Phone: "3"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, "c@x.com"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "c@x.com"), store.ErrUserNotFound)

	_, err = s.GetUser(ctx, "c@x.com")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestStore_AddUserFailsClosed(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	err := s.AddUser(context.Background(), models.User{Email: "x@x.com", Role: models.RoleGeneral}, "p")
	assert.ErrorIs(t, err, store.ErrNotSupported)
}

func TestStore_ListUsers(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Register(ctx, models.RegisterDetails{Email: "a@x.com", Password: "p", Name: "A", Phone: "1"})
	require.NoError(t, err)
	_, err = s.Register(ctx, models.RegisterDetails{Email: "b@x.com", Password: "p", Name: "B", Phone: "2"})
	require.NoError(t, err)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
