// Package admin — права владельцев движка: список владельцев, вход по паролю
// (Argon2id) и сессии. Через Authorize проходят все привилегированные операции.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// Session — сессия владельца после входа по паролю.
type Session struct {
	ID              int64     `db:"id"`
	UserID          string    `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      string    `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// Options — настройки сервиса.
type Options struct {
	OwnerIDs     []string
	PasswordHash string        // пусто — вход не требуется, достаточно быть владельцем
	SessionTTL   time.Duration // по умолчанию 24 часа
	MaxAttempts  int           // неудачных попыток в час, по умолчанию 3
}
