// Package admin — repository.go описывает хранилище сессий и попыток входа.
package admin

import (
	"context"
	"time"
)

// Repository хранит сессии владельцев и попытки входа.
type Repository interface {
	CreateSession(ctx context.Context, s Session) error
	// GetActiveSession — common.ErrSessionExpired, если активной сессии нет.
	GetActiveSession(ctx context.Context, userID string, now time.Time) (*Session, error)
	// TouchSession обновляет last_activity активной сессии.
	TouchSession(ctx context.Context, userID string, at time.Time) error
	// DeactivateSessions закрывает все сессии пользователя.
	DeactivateSessions(ctx context.Context, userID string) error
	LogLoginAttempt(ctx context.Context, userID string, success bool, at time.Time) error
	// CountFailedAttempts — количество неудачных попыток начиная с since.
	CountFailedAttempts(ctx context.Context, userID string, since time.Time) (int, error)
}
