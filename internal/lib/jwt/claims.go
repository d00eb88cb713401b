// Package jwt реализует генерацию и парсинг JWT токенов сессии с пользовательскими claim полями.
//
// CustomClaims расширяет стандартные claims JWT, добавляя email и роль пользователя.
// Токен сессии — это персистентный носитель сессии в облачном режиме: клиент
// хранит его и предъявляет при восстановлении сессии на старте приложения.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга токенов сессии.
type Maker interface {
	// GenerateToken создает токен сессии для пользователя с email и role.
	GenerateToken(email, role string) (string, error)
	// ParseToken возвращает *CustomClaims с email и role.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
