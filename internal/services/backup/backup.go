// Package backup реализует выгрузку и восстановление данных локального
// режима одним json-документом.
//
// В копию попадают три блоба хранилища как есть: коллекция пользователей,
// зеркало сессии и системные настройки. Восстановление перезаписывает
// блобы целиком — пофайлового слияния нет, действует last-write-wins.
package backup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mazylab/appraiser-account/internal/lib/sl"
	"github.com/mazylab/appraiser-account/internal/models"
)

// BlobStore — доступ к блобам локального хранилища для копирования.
type BlobStore interface {
	RawBlob(name string) ([]byte, error)
	RestoreBlobs(users, session, system []byte) error
}

// Service — сервис резервного копирования.
type Service struct {
	store       BlobStore
	usersBlob   string
	sessionBlob string
	sysBlob     string
	log         *slog.Logger
}

// New создает сервис резервного копирования поверх блобов хранилища.
func New(st BlobStore, usersBlob, sessionBlob, sysBlob string, log *slog.Logger) *Service {
	return &Service{
		store:       st,
		usersBlob:   usersBlob,
		sessionBlob: sessionBlob,
		sysBlob:     sysBlob,
		log:         log,
	}
}

// Export собирает резервную копию из текущего содержимого блобов.
func (s *Service) Export() (*models.Backup, error) {
	const op = "backup.Export"

	users, err := s.store.RawBlob(s.usersBlob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	session, err := s.store.RawBlob(s.sessionBlob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	system, err := s.store.RawBlob(s.sysBlob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b := &models.Backup{
		SchemaVersion: models.BackupSchemaVersion,
		BundleID:      uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
		Users:         users,
		CurrentUser:   session,
		SystemConfig:  system,
	}
	s.log.Info("backup exported", slog.String("bundle_id", b.BundleID))
	return b, nil
}

// Restore проверяет копию и перезаписывает блобы целиком.
func (s *Service) Restore(data []byte) error {
	const op = "backup.Restore"

	var b models.Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("%s: invalid backup file: %w", op, err)
	}
	if b.SchemaVersion != models.BackupSchemaVersion {
		return fmt.Errorf("%s: unsupported schema version %d", op, b.SchemaVersion)
	}
	if len(b.Users) == 0 {
		return fmt.Errorf("%s: backup contains no users blob", op)
	}

	if err := s.store.RestoreBlobs(b.Users, b.CurrentUser, b.SystemConfig); err != nil {
		s.log.Error("failed to restore backup", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("backup restored", slog.String("bundle_id", b.BundleID))
	return nil
}
