package settings

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store/localstore"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st, err := localstore.New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(st, log)
}

func TestLoadReturnsDefaultsForNewUser(t *testing.T) {
	svc := newService(t)

	got, err := svc.Load("new@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUserSettings(), got.UserSettings)
	assert.Empty(t, got.PublicAPIKey)
}

func TestLoadMergesSystemOverUser(t *testing.T) {
	svc := newService(t)

	require.NoError(t, svc.SaveUserSettings("user@example.com", models.UserSettings{
		Theme:  "dark",
		APIKey: "personal-key",
	}))
	require.NoError(t, svc.SaveSystemSettings(models.SystemSettings{
		PublicAPIKey: "shared-key",
		SMTPHost:     "smtp.example.com",
		SystemEmail:  "admin@example.com",
	}))

	got, err := svc.Load("user@example.com")
	require.NoError(t, err)
	// Пользовательская область сохраняется, системная накладывается поверх.
	assert.Equal(t, "dark", got.Theme)
	assert.Equal(t, "personal-key", got.APIKey)
	assert.Equal(t, "shared-key", got.PublicAPIKey)
	assert.Equal(t, "smtp.example.com", got.SMTPHost)
}

func TestUserAreasAreIsolated(t *testing.T) {
	svc := newService(t)

	require.NoError(t, svc.SaveUserSettings("a@example.com", models.UserSettings{Theme: "dark"}))
	require.NoError(t, svc.SaveUserSettings("b@example.com", models.UserSettings{Theme: "light"}))

	a, err := svc.Load("a@example.com")
	require.NoError(t, err)
	b, err := svc.Load("b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "dark", a.Theme)
	assert.Equal(t, "light", b.Theme)
}

func TestResolveAPIKey(t *testing.T) {
	cases := []struct {
		name   string
		user   models.UserSettings
		system models.SystemSettings
		email  string
		role   string
		want   string
	}{
		{
			name:  "личный ключ имеет приоритет",
			user:  models.UserSettings{APIKey: "personal"},
			system: models.SystemSettings{
				PublicAPIKey:      "shared",
				AllowPublicAPIKey: true,
			},
			email: "user@example.com",
			role:  models.RoleGeneral,
			want:  "personal",
		},
		{
			name: "общий ключ разрешен для всех",
			system: models.SystemSettings{
				PublicAPIKey:      "shared",
				AllowPublicAPIKey: true,
			},
			email: "user@example.com",
			role:  models.RoleGeneral,
			want:  "shared",
		},
		{
			name: "общий ключ запрещен для обычного пользователя",
			system: models.SystemSettings{
				PublicAPIKey: "shared",
			},
			email: "user@example.com",
			role:  models.RoleGeneral,
			want:  "",
		},
		{
			name: "администратор получает общий ключ несмотря на запрет",
			system: models.SystemSettings{
				PublicAPIKey: "shared",
			},
			email: "admin@example.com",
			role:  models.RoleAdmin,
			want:  "shared",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newService(t)
			if tc.user != (models.UserSettings{}) {
				require.NoError(t, svc.SaveUserSettings(tc.email, tc.user))
			}
			require.NoError(t, svc.SaveSystemSettings(tc.system))

			got, err := svc.ResolveAPIKey(tc.email, tc.role)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSaveSystemSettingsOverwritesWholesale(t *testing.T) {
	svc := newService(t)

	require.NoError(t, svc.SaveSystemSettings(models.SystemSettings{
		PublicAPIKey: "old",
		SMTPHost:     "smtp.old.example.com",
	}))
	require.NoError(t, svc.SaveSystemSettings(models.SystemSettings{
		PublicAPIKey: "new",
	}))

	sys, err := svc.SystemSettings()
	require.NoError(t, err)
	assert.Equal(t, "new", sys.PublicAPIKey)
	assert.Empty(t, sys.SMTPHost)
}
