// Package models содержит доменную модель пользователя системы,
// включающую данные учётной записи, роль и дату истечения подписки.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Роли пользователей. Роли взаимоисключающие: у пользователя ровно одна роль.
const (
	RoleGeneral = "general" // Обычный пользователь
	RolePaid    = "paid"    // Оплаченная подписка
	RoleAdmin   = "admin"   // Администратор
)

// ValidRole сообщает, входит ли значение в множество допустимых ролей.
func ValidRole(role string) bool {
	return role == RoleGeneral || role == RolePaid || role == RoleAdmin
}

// User представляет зарегистрированного пользователя системы.
//
// Email — уникальный идентификатор записи, неизменяемый после создания.
// PasswordHash заполняется только в локальном режиме: облачный режим
// доверяет хранение учетных данных своей подсистеме аутентификации.
// SubscriptionExpiry может быть nil — это означает отсутствие оплаченного периода.
type User struct {
	Email              string     `json:"email"`
	PasswordHash       string     `json:"password_hash,omitempty"`
	Role               string     `json:"role"`
	Name               string     `json:"name,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	SubscriptionExpiry *time.Time `json:"subscription_expiry,omitempty"`
}

// UserPatch описывает частичное обновление записи пользователя.
//
// Поля-указатели: nil означает "поле не передано" и при слиянии пропускается.
// Так присутствующий в запросе, но пустой (undefined) ключ не затирает
// ранее сохранённые значения. Сброс даты подписки выполняется только
// явным флагом ClearSubscriptionExpiry.
type UserPatch struct {
	Role                    *string    `json:"role,omitempty"`
	Name                    *string    `json:"name,omitempty"`
	Phone                   *string    `json:"phone,omitempty"`
	SubscriptionExpiry      *time.Time `json:"subscription_expiry,omitempty"`
	ClearSubscriptionExpiry bool       `json:"clear_subscription_expiry,omitempty"`
}

// Apply сливает заполненные поля патча в копию пользователя и возвращает её.
func (p UserPatch) Apply(u User) User {
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.SubscriptionExpiry != nil {
		expiry := *p.SubscriptionExpiry
		u.SubscriptionExpiry = &expiry
	}
	if p.ClearSubscriptionExpiry {
		u.SubscriptionExpiry = nil
	}
	return u
}

// RegisterDetails — данные самостоятельной регистрации пользователя.
type RegisterDetails struct {
	Email    string
	Password string
	Name     string
	Phone    string
}
