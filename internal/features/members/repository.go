// Package members — repository.go описывает хранилище участников.
// Реализации: internal/db/postgres и internal/db/memory.
package members

import (
	"context"
	"time"
)

// Repository хранит участников.
type Repository interface {
	// CreateMember добавляет участника. Уже есть — common.ErrUserExists.
	CreateMember(ctx context.Context, m Member) error
	// GetMember — common.ErrUserNotFound, если нет.
	GetMember(ctx context.Context, userID string) (*Member, error)
	// GetMemberByTelegramID ищет участника по привязанному Telegram.
	GetMemberByTelegramID(ctx context.Context, telegramID int64) (*Member, error)
	// MarkVerified ставит is_verified и помечает карму устаревшей.
	// Уже верифицирован — common.ErrAlreadyVerified.
	MarkVerified(ctx context.Context, userID string, at time.Time) (*Member, error)
	// ListMemberIDs возвращает id всех участников в порядке регистрации.
	ListMemberIDs(ctx context.Context) ([]string, error)
}
