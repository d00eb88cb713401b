package models

import (
	"encoding/json"
	"time"
)

// BackupSchemaVersion — версия формата файла резервной копии.
const BackupSchemaVersion = 1

// Backup — файл резервной копии локального режима: три блоба хранилища
// целиком, без пофайлового слияния при восстановлении.
type Backup struct {
	SchemaVersion int             `json:"schema_version"`
	BundleID      string          `json:"bundle_id"`
	CreatedAt     time.Time       `json:"created_at"`
	Users         json.RawMessage `json:"users"`
	CurrentUser   json.RawMessage `json:"current_user,omitempty"`
	SystemConfig  json.RawMessage `json:"system_settings,omitempty"`
}
