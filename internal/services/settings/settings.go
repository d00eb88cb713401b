// Package settings реализует двухобластное хранилище настроек.
//
// Системная область (платёжные и почтовые учётные данные, общий API-ключ)
// пишется только администратором и читается всеми. Пользовательская
// область (отображение, личный API-ключ) принадлежит владельцу. При
// выдаче клиенту области сливаются, системные ключи всегда авторитетны:
// устаревшие копии системных значений из пользовательской области
// результат не подменяют.
//
// Настройки живут в json-блобах независимо от выбранного хранилища
// пользователей: и в облачном режиме область настроек остаётся локальной.
package settings

import (
	"fmt"
	"log/slog"

	"github.com/mazylab/appraiser-account/internal/models"
)

// Store — персистентность областей настроек.
type Store interface {
	ReadSystemSettings() (models.SystemSettings, error)
	WriteSystemSettings(sys models.SystemSettings) error
	ReadUserSettings(email string) (models.UserSettings, bool, error)
	WriteUserSettings(email string, us models.UserSettings) error
}

// Service — сервис настроек.
type Service struct {
	store Store
	log   *slog.Logger
}

// New создает сервис настроек поверх хранилища блобов.
func New(st Store, log *slog.Logger) *Service {
	return &Service{store: st, log: log}
}

// Load возвращает слитые настройки для пользователя. Отсутствующая
// пользовательская область заменяется значениями по умолчанию,
// системная область накладывается поверх.
func (s *Service) Load(email string) (models.Settings, error) {
	const op = "settings.Load"

	us, found, err := s.store.ReadUserSettings(email)
	if err != nil {
		return models.Settings{}, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		us = models.DefaultUserSettings()
	}
	sys, err := s.store.ReadSystemSettings()
	if err != nil {
		return models.Settings{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Settings{UserSettings: us, SystemSettings: sys}, nil
}

// SaveUserSettings записывает пользовательскую область целиком.
func (s *Service) SaveUserSettings(email string, us models.UserSettings) error {
	const op = "settings.SaveUserSettings"
	if err := s.store.WriteUserSettings(email, us); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user settings saved", slog.String("email", email))
	return nil
}

// SystemSettings возвращает системную область.
func (s *Service) SystemSettings() (models.SystemSettings, error) {
	const op = "settings.SystemSettings"
	sys, err := s.store.ReadSystemSettings()
	if err != nil {
		return models.SystemSettings{}, fmt.Errorf("%s: %w", op, err)
	}
	return sys, nil
}

// SaveSystemSettings записывает системную область целиком.
// Право записи (только администратор) проверяет вызывающий слой.
func (s *Service) SaveSystemSettings(sys models.SystemSettings) error {
	const op = "settings.SaveSystemSettings"
	if err := s.store.WriteSystemSettings(sys); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("system settings saved")
	return nil
}

// ResolveAPIKey возвращает действующий API-ключ пользователя:
// личный ключ, если задан; иначе общий системный ключ, когда он
// разрешён для всех либо запрашивает администратор; иначе пустая строка.
func (s *Service) ResolveAPIKey(email, role string) (string, error) {
	const op = "settings.ResolveAPIKey"

	us, found, err := s.store.ReadUserSettings(email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if found && us.APIKey != "" {
		return us.APIKey, nil
	}

	sys, err := s.store.ReadSystemSettings()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if sys.PublicAPIKey != "" && (sys.AllowPublicAPIKey || role == models.RoleAdmin) {
		return sys.PublicAPIKey, nil
	}
	return "", nil
}
