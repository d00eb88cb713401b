package models

// SystemSettings — системная область настроек: платёжные и почтовые
// учётные данные, общий API-ключ. Пишется только администратором,
// читается всеми. При слиянии всегда имеет приоритет над устаревшими
// копиями этих же ключей в пользовательской области.
type SystemSettings struct {
	PayPalClientID    string `json:"paypal_client_id,omitempty"`
	PublicAPIKey      string `json:"public_api_key,omitempty"`
	AllowPublicAPIKey bool   `json:"allow_public_api_key,omitempty"`
	SystemEmail       string `json:"system_email,omitempty"`
	SMTPHost          string `json:"smtp_host,omitempty"`
	SMTPPort          string `json:"smtp_port,omitempty"`
	SMTPUser          string `json:"smtp_user,omitempty"`
	SMTPPass          string `json:"smtp_pass,omitempty"`
}

// UserSettings — пользовательская область настроек: отображение и личный API-ключ.
type UserSettings struct {
	APIKey                 string `json:"api_key,omitempty"`
	Theme                  string `json:"theme,omitempty"`
	Language               string `json:"language,omitempty"`
	Font                   string `json:"font,omitempty"`
	AutoUpdateCacheOnLogin bool   `json:"auto_update_cache_on_login,omitempty"`
}

// Settings — результат слияния двух областей, отдаваемый клиенту.
type Settings struct {
	UserSettings
	SystemSettings
}

// DefaultUserSettings возвращает пользовательские настройки по умолчанию.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		Theme:                  "system",
		Language:               "zh-TW",
		Font:                   "sans",
		AutoUpdateCacheOnLogin: true,
	}
}
