// Package store определяет единый контракт хранилища пользователей
// и сигнальные ошибки доменного уровня.
//
// Контракт реализуют два варианта: облачный (postgres) и локальный
// (json-файлы). Вариант выбирается один раз на старте процесса по
// конфигурации и дальше держится за одним интерфейсным значением —
// условных ветвлений по режиму в бизнес-логике нет.
package store

import (
	"context"
	"errors"
	"net/http"

	"github.com/mazylab/appraiser-account/internal/models"
)

// Сигнальные ошибки доменного уровня. Адаптеры оборачивают транспортные
// сбои в обычные ошибки, а эти значения возвращают для ситуаций,
// на которые верхний слой реагирует по-разному.
var (
	// ErrInvalidCredentials — неверная пара email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound — нет записи с таким email.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken — запись с таким email уже существует.
	ErrEmailTaken = errors.New("email already exists")
	// ErrSelfDelete — попытка удалить текущую авторизованную учетку.
	ErrSelfDelete = errors.New("cannot delete current user")
	// ErrMissingFields — обязательные поля (имя, телефон) не заполнены.
	ErrMissingFields = errors.New("missing required fields")
	// ErrTimeout — операция не уложилась в отведенный таймаут.
	ErrTimeout = errors.New("operation timed out")
	// ErrNotSupported — операция недоступна в текущем режиме хранилища.
	ErrNotSupported = errors.New("operation not supported in this storage mode")
)

// MessageKey переводит доменную ошибку в локализуемый ключ сообщения,
// который отдается клиенту вместо текста ошибки.
func MessageKey(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalidCredentials"
	case errors.Is(err, ErrUserNotFound):
		return "userNotFound"
	case errors.Is(err, ErrEmailTaken):
		return "registrationFailed"
	case errors.Is(err, ErrSelfDelete):
		return "cannotDeleteSelf"
	case errors.Is(err, ErrMissingFields):
		return "missingRequiredFields"
	case errors.Is(err, ErrTimeout):
		return "connectionTimedOut"
	case errors.Is(err, ErrNotSupported):
		return "operationNotSupported"
	default:
		return "unexpectedError"
	}
}

// HTTPStatus переводит доменную ошибку в HTTP-статус ответа.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrSelfDelete):
		return http.StatusConflict
	case errors.Is(err, ErrMissingFields):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNotSupported):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Store описывает контракт для работы с пользователями в выбранном хранилище.
type Store interface {
	// Authenticate проверяет учетные данные и возвращает запись пользователя.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)

	// SignOut завершает серверную сессию пользователя. Для хранилищ без
	// серверных сессий — no-op.
	SignOut(ctx context.Context, email string) error

	// Register создает запись самостоятельной регистрации и возвращает её.
	Register(ctx context.Context, details models.RegisterDetails) (*models.User, error)

	// AddUser создает запись административно, минуя самостоятельную регистрацию.
	// Облачный режим не имеет такого пути и отвечает ErrNotSupported.
	AddUser(ctx context.Context, user models.User, password string) error

	// UpdateUser сливает заполненные поля патча в существующую запись
	// и возвращает её обновлённую версию.
	UpdateUser(ctx context.Context, email string, patch models.UserPatch) (*models.User, error)

	// DeleteUser удаляет запись по email.
	DeleteUser(ctx context.Context, email string) error

	// GetUser возвращает запись по email либо ErrUserNotFound.
	GetUser(ctx context.Context, email string) (*models.User, error)

	// ListUsers возвращает все записи хранилища.
	ListUsers(ctx context.Context) ([]*models.User, error)
}
