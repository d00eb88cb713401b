package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mazylab/appraiser-account/internal/config"
	"github.com/mazylab/appraiser-account/internal/lib/jwt"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) SignOut(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *mockStore) Register(ctx context.Context, details models.RegisterDetails) (*models.User, error) {
	args := m.Called(ctx, details)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) AddUser(ctx context.Context, user models.User, password string) error {
	args := m.Called(ctx, user, password)
	return args.Error(0)
}

func (m *mockStore) UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error) {
	args := m.Called(ctx, email, patch)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) DeleteUser(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *mockStore) GetUser(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if u := args.Get(0); u != nil {
		return u.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeMirror struct {
	mu      sync.Mutex
	current *models.User
	saves   int
}

func (f *fakeMirror) SaveSession(u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *u
	f.current = &copied
	f.saves++
	return nil
}

func (f *fakeMirror) LoadSession() (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	copied := *f.current
	return &copied, nil
}

func (f *fakeMirror) ClearSession() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testConfig() config.Identity {
	return config.Identity{
		LoginTimeout:   200 * time.Millisecond,
		RestoreTimeout: 200 * time.Millisecond,
		SettleDelay:    time.Millisecond,
		BootstrapEmail: "admin@mazylab.com",
		BootstrapPass:  "bootstrap-pass",
	}
}

func testMaker() jwt.Maker {
	return jwt.NewMaker("test-secret", time.Hour)
}

func TestLogin(t *testing.T) {
	user := &models.User{Email: "user@example.com", Role: models.RoleGeneral, Name: "User"}

	cases := []struct {
		name      string
		setupMock func(m *mockStore)
		email     string
		password  string
		wantErr   error
	}{
		{
			name: "успешный вход",
			setupMock: func(m *mockStore) {
				m.On("SignOut", mock.Anything, "user@example.com").Return(nil).Maybe()
				m.On("Authenticate", mock.Anything, "user@example.com", "secret").
					Return(user, nil).Once()
			},
			email:    "user@example.com",
			password: "secret",
		},
		{
			name: "неверные учетные данные",
			setupMock: func(m *mockStore) {
				m.On("SignOut", mock.Anything, "user@example.com").Return(nil).Maybe()
				m.On("Authenticate", mock.Anything, "user@example.com", "wrong").
					Return(nil, store.ErrInvalidCredentials).Once()
			},
			email:    "user@example.com",
			password: "wrong",
			wantErr:  store.ErrInvalidCredentials,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := new(mockStore)
			tc.setupMock(st)
			svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

			got, token, err := svc.Login(context.Background(), tc.email, tc.password)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, svc.CurrentUser())
				assert.Equal(t, StateAnonymous, svc.State())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.Email, got.Email)
			assert.Equal(t, StateAuthenticated, svc.State())

			claims, err := testMaker().ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, user.Email, claims.Email)
			assert.Equal(t, user.Role, claims.Role)
		})
	}
}

func TestLoginTimeoutKeepsPriorSession(t *testing.T) {
	first := &models.User{Email: "first@example.com", Role: models.RoleAdmin}

	st := new(mockStore)
	st.On("SignOut", mock.Anything, mock.Anything).Return(nil).Maybe()
	st.On("Authenticate", mock.Anything, "first@example.com", "secret").
		Return(first, nil).Once()
	st.On("Authenticate", mock.Anything, "slow@example.com", "secret").
		Run(func(mock.Arguments) { time.Sleep(time.Second) }).
		Return(nil, store.ErrInvalidCredentials).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

	_, _, err := svc.Login(context.Background(), "first@example.com", "secret")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "slow@example.com", "secret")
	require.ErrorIs(t, err, store.ErrTimeout)

	// Проигравшая попытка не трогает прежнюю сессию.
	current := svc.CurrentUser()
	require.NotNil(t, current)
	assert.Equal(t, "first@example.com", current.Email)
	assert.Equal(t, StateAuthenticated, svc.State())
}

func TestLoginBootstrapCreatesFirstAdmin(t *testing.T) {
	admin := &models.User{Email: "admin@mazylab.com", Role: models.RoleAdmin, Name: "Admin"}

	st := new(mockStore)
	st.On("SignOut", mock.Anything, mock.Anything).Return(nil).Maybe()
	st.On("Authenticate", mock.Anything, "admin@mazylab.com", "bootstrap-pass").
		Return(nil, store.ErrInvalidCredentials).Once()
	st.On("ListUsers", mock.Anything).Return([]*models.User{}, nil).Once()
	st.On("AddUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.Email == "admin@mazylab.com" && u.Role == models.RoleAdmin
	}), "bootstrap-pass").Return(nil).Once()
	st.On("Authenticate", mock.Anything, "admin@mazylab.com", "bootstrap-pass").
		Return(admin, nil).Once()

	mirror := &fakeMirror{}
	svc := New(st, mirror, nil, testMaker(), testConfig(), false, testLogger())

	got, _, err := svc.Login(context.Background(), "admin@mazylab.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	saved, err := mirror.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "admin@mazylab.com", saved.Email)
	st.AssertExpectations(t)
}

func TestLoginBootstrapRejectedWhenStoreNotEmpty(t *testing.T) {
	st := new(mockStore)
	st.On("SignOut", mock.Anything, mock.Anything).Return(nil).Maybe()
	st.On("Authenticate", mock.Anything, "admin@mazylab.com", "bootstrap-pass").
		Return(nil, store.ErrInvalidCredentials).Once()
	st.On("ListUsers", mock.Anything).
		Return([]*models.User{{Email: "someone@example.com"}}, nil).Once()

	svc := New(st, &fakeMirror{}, nil, testMaker(), testConfig(), false, testLogger())

	_, _, err := svc.Login(context.Background(), "admin@mazylab.com", "bootstrap-pass")
	require.ErrorIs(t, err, store.ErrInvalidCredentials)
	st.AssertNotCalled(t, "AddUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterValidatesRequiredFields(t *testing.T) {
	st := new(mockStore)
	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

	cases := []struct {
		name    string
		details models.RegisterDetails
	}{
		{
			name:    "пустое имя",
			details: models.RegisterDetails{Email: "u@example.com", Password: "p", Name: "  ", Phone: "123"},
		},
		{
			name:    "пустой телефон",
			details: models.RegisterDetails{Email: "u@example.com", Password: "p", Name: "User", Phone: ""},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.details)
			require.ErrorIs(t, err, store.ErrMissingFields)
		})
	}
	st.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

// Невостребованные токены само-разлогина не должны копиться: следующая
// регистрация выметает все просроченные записи.
func TestRegisterPrunesExpiredSelfLogoutTokens(t *testing.T) {
	st := new(mockStore)
	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

	svc.mu.Lock()
	svc.pendingSelf["stale@example.com"] = time.Now().Add(-time.Second)
	svc.pendingSelf["older@example.com"] = time.Now().Add(-time.Hour)
	svc.mu.Unlock()

	details := models.RegisterDetails{Email: "fresh@example.com", Password: "p", Name: "Fresh", Phone: "123"}
	st.On("Register", mock.Anything, details).
		Return(&models.User{Email: details.Email, Role: models.RoleGeneral}, nil).Once()

	_, err := svc.Register(context.Background(), details)
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.NotContains(t, svc.pendingSelf, "stale@example.com")
	assert.NotContains(t, svc.pendingSelf, "older@example.com")
	assert.Contains(t, svc.pendingSelf, "fresh@example.com")
}

func TestRegisterSelfLogoutConsumesSignInEvent(t *testing.T) {
	details := models.RegisterDetails{Email: "new@example.com", Password: "p", Name: "New", Phone: "123"}
	created := &models.User{Email: "new@example.com", Role: models.RoleGeneral}

	signedOut := make(chan struct{})
	st := new(mockStore)
	st.On("Register", mock.Anything, details).Return(created, nil).Once()
	st.On("SignOut", mock.Anything, "new@example.com").
		Run(func(mock.Arguments) { close(signedOut) }).
		Return(nil).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

	_, err := svc.Register(context.Background(), details)
	require.NoError(t, err)

	// Событие входа, порожденное регистрацией, гасится разлогином.
	svc.HandleSessionEvent(context.Background(), SessionEvent{Type: EventSignedIn, Email: "new@example.com"})

	select {
	case <-signedOut:
	case <-time.After(time.Second):
		t.Fatal("ожидался fire-and-forget разлогин после регистрации")
	}
	assert.Nil(t, svc.CurrentUser())
	assert.Equal(t, StateAnonymous, svc.State())
	st.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestHandleSessionEvent(t *testing.T) {
	cases := []struct {
		name      string
		event     SessionEvent
		setupMock func(m *mockStore)
		wantEmail string
		wantRole  string
	}{
		{
			name:  "вход с существующим профилем",
			event: SessionEvent{Type: EventSignedIn, Email: "user@example.com"},
			setupMock: func(m *mockStore) {
				m.On("GetUser", mock.Anything, "user@example.com").
					Return(&models.User{Email: "user@example.com", Role: models.RolePaid}, nil).Once()
			},
			wantEmail: "user@example.com",
			wantRole:  models.RolePaid,
		},
		{
			name:  "профиль еще не реплицировался",
			event: SessionEvent{Type: EventSignedIn, Email: "fresh@example.com"},
			setupMock: func(m *mockStore) {
				m.On("GetUser", mock.Anything, "fresh@example.com").
					Return(nil, store.ErrUserNotFound).Once()
			},
			wantEmail: "fresh@example.com",
			wantRole:  models.RoleGeneral,
		},
		{
			name:  "bootstrap-email без профиля синтезируется администратором",
			event: SessionEvent{Type: EventSignedIn, Email: "admin@mazylab.com"},
			setupMock: func(m *mockStore) {
				m.On("GetUser", mock.Anything, "admin@mazylab.com").
					Return(nil, store.ErrUserNotFound).Once()
			},
			wantEmail: "admin@mazylab.com",
			wantRole:  models.RoleAdmin,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := new(mockStore)
			tc.setupMock(st)
			svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

			svc.HandleSessionEvent(context.Background(), tc.event)

			current := svc.CurrentUser()
			require.NotNil(t, current)
			assert.Equal(t, tc.wantEmail, current.Email)
			assert.Equal(t, tc.wantRole, current.Role)
			st.AssertExpectations(t)
		})
	}
}

func TestHandleSessionEventSignedOut(t *testing.T) {
	st := new(mockStore)
	st.On("GetUser", mock.Anything, "user@example.com").
		Return(&models.User{Email: "user@example.com", Role: models.RoleGeneral}, nil).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())
	svc.HandleSessionEvent(context.Background(), SessionEvent{Type: EventSignedIn, Email: "user@example.com"})
	require.NotNil(t, svc.CurrentUser())

	svc.HandleSessionEvent(context.Background(), SessionEvent{Type: EventSignedOut})
	assert.Nil(t, svc.CurrentUser())
	assert.Equal(t, StateAnonymous, svc.State())
}

func TestDeleteUserSelfGuard(t *testing.T) {
	user := &models.User{Email: "admin@example.com", Role: models.RoleAdmin}

	st := new(mockStore)
	st.On("SignOut", mock.Anything, mock.Anything).Return(nil).Maybe()
	st.On("Authenticate", mock.Anything, "admin@example.com", "secret").Return(user, nil).Once()
	st.On("DeleteUser", mock.Anything, "other@example.com").Return(nil).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())
	_, _, err := svc.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)

	err = svc.DeleteUser(context.Background(), "admin@example.com")
	require.ErrorIs(t, err, store.ErrSelfDelete)
	st.AssertNotCalled(t, "DeleteUser", mock.Anything, "admin@example.com")

	require.NoError(t, svc.DeleteUser(context.Background(), "other@example.com"))
}

func TestUpdateUserRefreshesCurrentSession(t *testing.T) {
	user := &models.User{Email: "user@example.com", Role: models.RoleGeneral, Name: "Old"}
	newName := "New Name"
	updated := &models.User{Email: "user@example.com", Role: models.RoleGeneral, Name: newName}

	st := new(mockStore)
	st.On("SignOut", mock.Anything, mock.Anything).Return(nil).Maybe()
	st.On("Authenticate", mock.Anything, "user@example.com", "secret").Return(user, nil).Once()
	st.On("UpdateUser", mock.Anything, "user@example.com", mock.Anything).Return(updated, nil).Once()

	mirror := &fakeMirror{}
	svc := New(st, mirror, nil, testMaker(), testConfig(), false, testLogger())

	_, _, err := svc.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	_, err = svc.UpdateUser(context.Background(), "user@example.com", models.UserPatch{Name: &newName})
	require.NoError(t, err)

	current := svc.CurrentUser()
	require.NotNil(t, current)
	assert.Equal(t, newName, current.Name)

	saved, err := mirror.LoadSession()
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, newName, saved.Name)
}

func TestRestoreSessionLocalMirror(t *testing.T) {
	mirror := &fakeMirror{current: &models.User{Email: "user@example.com", Role: models.RolePaid}}
	st := new(mockStore)
	svc := New(st, mirror, nil, testMaker(), testConfig(), false, testLogger())

	got := svc.RestoreSession(context.Background(), "")
	require.NotNil(t, got)
	assert.Equal(t, "user@example.com", got.Email)
	assert.Equal(t, StateAuthenticated, svc.State())
}

func TestRestoreSessionTimeoutStartsAnonymous(t *testing.T) {
	user := &models.User{Email: "user@example.com", Role: models.RoleGeneral}
	token, err := testMaker().GenerateToken(user.Email, user.Role)
	require.NoError(t, err)

	st := new(mockStore)
	st.On("GetUser", mock.Anything, "user@example.com").
		Run(func(mock.Arguments) { time.Sleep(time.Second) }).
		Return(user, nil).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

	got := svc.RestoreSession(context.Background(), token)
	assert.Nil(t, got)
	assert.Equal(t, StateAnonymous, svc.State())
}

func TestRestoreSessionCloudToken(t *testing.T) {
	user := &models.User{Email: "user@example.com", Role: models.RolePaid}
	token, err := testMaker().GenerateToken(user.Email, user.Role)
	require.NoError(t, err)

	st := new(mockStore)
	st.On("GetUser", mock.Anything, "user@example.com").Return(user, nil).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

	got := svc.RestoreSession(context.Background(), token)
	require.NotNil(t, got)
	assert.Equal(t, models.RolePaid, got.Role)
}

func TestRestoreSessionBadTokenStartsAnonymous(t *testing.T) {
	st := new(mockStore)
	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())

	got := svc.RestoreSession(context.Background(), "not-a-token")
	assert.Nil(t, got)
	st.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	user := &models.User{Email: "user@example.com", Role: models.RoleGeneral}

	st := new(mockStore)
	st.On("SignOut", mock.Anything, mock.Anything).Return(nil).Maybe()
	st.On("Authenticate", mock.Anything, "user@example.com", "secret").Return(user, nil).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())
	ch, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	_, _, err := svc.Login(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)

	select {
	case snapshot := <-ch:
		require.NotNil(t, snapshot)
		assert.Equal(t, "user@example.com", snapshot.Email)
	case <-time.After(time.Second):
		t.Fatal("ожидался снимок сессии после входа")
	}

	svc.Logout(context.Background())
	select {
	case snapshot := <-ch:
		assert.Nil(t, snapshot)
	case <-time.After(time.Second):
		t.Fatal("ожидался анонимный снимок после выхода")
	}
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string][]byte
	hits  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string][]byte)}
}

func (c *fakeCache) Get(key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, result)
}

func (c *fakeCache) Set(key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.items[key] = data
	return nil
}

func (c *fakeCache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func TestListUsersUsesCache(t *testing.T) {
	users := []*models.User{{Email: "a@example.com", Role: models.RoleGeneral}}

	st := new(mockStore)
	st.On("ListUsers", mock.Anything).Return(users, nil).Once()
	st.On("DeleteUser", mock.Anything, "a@example.com").Return(nil).Once()

	cache := newFakeCache()
	svc := New(st, nil, cache, testMaker(), testConfig(), true, testLogger())

	got, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Второе чтение обслуживается кэшем, хранилище не трогается.
	got, err = svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, cache.hits)
	st.AssertNumberOfCalls(t, "ListUsers", 1)

	// Мутация инвалидирует кэш.
	require.NoError(t, svc.DeleteUser(context.Background(), "a@example.com"))
	_, found := cache.items["users:list"]
	assert.False(t, found)
}

var errBackend = errors.New("backend unavailable")

func TestListUsersPropagatesBackendError(t *testing.T) {
	st := new(mockStore)
	st.On("ListUsers", mock.Anything).Return(nil, errBackend).Once()

	svc := New(st, nil, nil, testMaker(), testConfig(), true, testLogger())
	_, err := svc.ListUsers(context.Background())
	require.ErrorIs(t, err, errBackend)
}
