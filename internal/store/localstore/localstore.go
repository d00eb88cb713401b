// Package localstore реализует локальный вариант хранилища пользователей:
// резервный режим без облачного бэкенда. Все данные лежат в json-блобах
// в каталоге данных приложения:
//
//	app_users.json            — упорядоченная коллекция пользователей (один блоб)
//	app_current_user.json     — денормализованная копия текущей сессии
//	app_system_settings.json  — системная область настроек
//	user_settings_<email>.json — пользовательские области настроек
//
// Поиск, вставка, обновление и удаление — линейные проходы по email:
// при ожидаемых объемах (единицы — сотни записей) индексы не нужны.
// Хранилище однопоточное по записи, доступ сериализуется мьютексом.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mazylab/appraiser-account/internal/lib/password"
	"github.com/mazylab/appraiser-account/internal/models"
	"github.com/mazylab/appraiser-account/internal/store"
)

const (
	usersBlob   = "app_users.json"
	sessionBlob = "app_current_user.json"
	systemBlob  = "app_system_settings.json"
)

// Store — локальное файловое хранилище пользователей и настроек.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New создает каталог данных и возвращает готовое хранилище.
func New(dir string) (*Store, error) {
	const op = "localstore.New"
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) loadUsers() ([]models.User, error) {
	const op = "localstore.loadUsers"
	data, err := os.ReadFile(s.path(usersBlob))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var users []models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func (s *Store) saveUsers(users []models.User) error {
	const op = "localstore.saveUsers"
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(s.path(usersBlob), data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Authenticate проверяет пару email/пароль по коллекции пользователей.
func (s *Store) Authenticate(ctx context.Context, email, pass string) (*models.User, error) {
	const op = "localstore.Authenticate"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email != email {
			continue
		}
		if err := password.CompareHash(users[i].PasswordHash, pass); err != nil {
			return nil, store.ErrInvalidCredentials
		}
		u := users[i]
		return &u, nil
	}
	return nil, store.ErrInvalidCredentials
}

// SignOut — no-op: локальный режим не держит серверных сессий,
// зеркало сессии чистит сервис идентификации через ClearSession.
func (s *Store) SignOut(_ context.Context, _ string) error {
	return nil
}

// Register создает запись самостоятельной регистрации.
// Первый пользователь пустого хранилища получает роль admin
// (bootstrap-инвариант), все последующие — general.
func (s *Store) Register(ctx context.Context, details models.RegisterDetails) (*models.User, error) {
	const op = "localstore.Register"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == details.Email {
			return nil, store.ErrEmailTaken
		}
	}

	hash, err := password.GetHash(details.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	role := models.RoleGeneral
	if len(users) == 0 {
		role = models.RoleAdmin
	}
	u := models.User{
		Email:        details.Email,
		PasswordHash: hash,
		Role:         role,
		Name:         details.Name,
		Phone:        details.Phone,
	}
	if err := s.saveUsers(append(users, u)); err != nil {
		return nil, err
	}
	return &u, nil
}

// AddUser создает запись административно (без bootstrap-повышения роли).
func (s *Store) AddUser(ctx context.Context, user models.User, pass string) error {
	const op = "localstore.AddUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].Email == user.Email {
			return store.ErrEmailTaken
		}
	}
	if pass != "" {
		hash, err := password.GetHash(pass)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		user.PasswordHash = hash
	}
	return s.saveUsers(append(users, user))
}

// UpdateUser сливает заполненные поля патча в запись и возвращает её.
func (s *Store) UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error) {
	const op = "localstore.UpdateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email != email {
			continue
		}
		users[i] = patch.Apply(users[i])
		if err := s.saveUsers(users); err != nil {
			return nil, err
		}
		u := users[i]
		return &u, nil
	}
	return nil, store.ErrUserNotFound
}

// DeleteUser удаляет запись по email.
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	const op = "localstore.DeleteUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	kept := users[:0]
	for i := range users {
		if users[i].Email != email {
			kept = append(kept, users[i])
		}
	}
	if len(kept) == len(users) {
		return store.ErrUserNotFound
	}
	return s.saveUsers(kept)
}

// GetUser возвращает запись по email.
func (s *Store) GetUser(ctx context.Context, email string) (*models.User, error) {
	const op = "localstore.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			u := users[i]
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

// ListUsers возвращает все записи хранилища.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "localstore.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	result := make([]*models.User, 0, len(users))
	for i := range users {
		u := users[i]
		result = append(result, &u)
	}
	return result, nil
}

// SaveSession пишет полную денормализованную копию записи текущей сессии.
// Обновления коллекции-источника сами по себе сюда не попадают:
// пересинхронизацию выполняет сервис идентификации.
func (s *Store) SaveSession(u *models.User) error {
	const op = "localstore.SaveSession"
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(s.path(sessionBlob), data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// LoadSession читает зеркальную копию сессии; (nil, nil) когда сессии нет.
func (s *Store) LoadSession() (*models.User, error) {
	const op = "localstore.LoadSession"
	data, err := os.ReadFile(s.path(sessionBlob))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// ClearSession удаляет зеркальную копию сессии.
func (s *Store) ClearSession() error {
	const op = "localstore.ClearSession"
	if err := os.Remove(s.path(sessionBlob)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReadSystemSettings читает системную область настроек.
func (s *Store) ReadSystemSettings() (models.SystemSettings, error) {
	const op = "localstore.ReadSystemSettings"
	var sys models.SystemSettings
	data, err := os.ReadFile(s.path(systemBlob))
	if os.IsNotExist(err) {
		return sys, nil
	}
	if err != nil {
		return sys, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(data, &sys); err != nil {
		return sys, fmt.Errorf("%s: %w", op, err)
	}
	return sys, nil
}

// WriteSystemSettings пишет системную область настроек целиком.
func (s *Store) WriteSystemSettings(sys models.SystemSettings) error {
	const op = "localstore.WriteSystemSettings"
	data, err := json.Marshal(sys)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(s.path(systemBlob), data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func userSettingsBlob(email string) string {
	// email попадает в имя файла, экранируем разделители путей
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(email)
	return "user_settings_" + safe + ".json"
}

// ReadUserSettings читает пользовательскую область настроек по email.
func (s *Store) ReadUserSettings(email string) (models.UserSettings, bool, error) {
	const op = "localstore.ReadUserSettings"
	var us models.UserSettings
	data, err := os.ReadFile(s.path(userSettingsBlob(email)))
	if os.IsNotExist(err) {
		return us, false, nil
	}
	if err != nil {
		return us, false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(data, &us); err != nil {
		return us, false, fmt.Errorf("%s: %w", op, err)
	}
	return us, true, nil
}

// WriteUserSettings пишет пользовательскую область настроек по email.
func (s *Store) WriteUserSettings(email string, us models.UserSettings) error {
	const op = "localstore.WriteUserSettings"
	data, err := json.Marshal(us)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(s.path(userSettingsBlob(email)), data, 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RawBlob читает блоб по имени как есть; (nil, nil) когда файла нет.
// Используется резервным копированием.
func (s *Store) RawBlob(name string) ([]byte, error) {
	const op = "localstore.RawBlob"
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// RestoreBlobs перезаписывает три блоба хранилища целиком, без слияния.
// Пустое значение блоба означает его удаление.
func (s *Store) RestoreBlobs(users, session, system []byte) error {
	const op = "localstore.RestoreBlobs"

	s.mu.Lock()
	defer s.mu.Unlock()

	write := func(name string, data []byte) error {
		if len(data) == 0 {
			if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("%s: %w", op, err)
			}
			return nil
		}
		if err := os.WriteFile(s.path(name), data, 0o600); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}

	if err := write(usersBlob, users); err != nil {
		return err
	}
	if err := write(sessionBlob, session); err != nil {
		return err
	}
	return write(systemBlob, system)
}

// BlobNames возвращает имена трех блобов хранилища для резервного копирования.
func BlobNames() (string, string, string) {
	return usersBlob, sessionBlob, systemBlob
}
