// Package permissions — repository.go описывает хранилище кэша.
package permissions

import (
	"context"
	"time"

	"serotonyl.ru/reputation-engine/internal/features/access"
)

// Repository хранит записи кэша разрешений.
type Repository interface {
	// RecordCheck перезаписывает уровни, ставит last_checked,
	// увеличивает access_count и снимает stale.
	RecordCheck(ctx context.Context, userID string, levels []access.Level, at time.Time) (*Record, error)
	// RefreshLevels перезаписывает уровни и снимает stale без увеличения счётчика.
	RefreshLevels(ctx context.Context, userID string, levels []access.Level, at time.Time) error
	// GetPermission — common.ErrPermissionNotFound, если проверок не было.
	GetPermission(ctx context.Context, userID string) (*Record, error)
	// InvalidatePermission помечает запись пользователя устаревшей.
	InvalidatePermission(ctx context.Context, userID string) error
	// InvalidateAllPermissions помечает устаревшими все записи.
	InvalidateAllPermissions(ctx context.Context) (int64, error)
	// ListStalePermissionUserIDs возвращает до limit пользователей с устаревшей записью.
	ListStalePermissionUserIDs(ctx context.Context, limit int) ([]string, error)
}
