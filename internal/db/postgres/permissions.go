// Package postgres — permissions.go работает с таблицей permission_records.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/permissions"
)

const permissionColumns = `user_id, granted_levels, last_checked, access_count, stale`

func levelsToSQL(levels []access.Level) []int16 {
	out := make([]int16, len(levels))
	for i, l := range levels {
		out[i] = int16(l)
	}
	return out
}

func scanPermission(row pgx.Row) (*permissions.Record, error) {
	var rec permissions.Record
	var levels []int16
	var count int64
	if err := row.Scan(&rec.UserID, &levels, &rec.LastChecked, &count, &rec.Stale); err != nil {
		return nil, err
	}
	rec.GrantedLevels = make([]access.Level, len(levels))
	for i, l := range levels {
		rec.GrantedLevels[i] = access.Level(l)
	}
	rec.AccessCount = uint64(count)
	rec.LastChecked = rec.LastChecked.UTC()
	return &rec, nil
}

// RecordCheck записывает результат проверки (upsert, access_count+1).
func (s *Store) RecordCheck(ctx context.Context, userID string, levels []access.Level, at time.Time) (*permissions.Record, error) {
	rec, err := scanPermission(s.db.QueryRow(ctx, `
		INSERT INTO permission_records (user_id, granted_levels, last_checked, access_count, stale)
		VALUES ($1, $2, $3, 1, FALSE)
		ON CONFLICT (user_id) DO UPDATE SET
			granted_levels = EXCLUDED.granted_levels,
			last_checked = EXCLUDED.last_checked,
			access_count = permission_records.access_count + 1,
			stale = FALSE
		RETURNING `+permissionColumns, userID, levelsToSQL(levels), at))
	if err != nil {
		return nil, fmt.Errorf("ошибка записи проверки доступа: %w", err)
	}
	return rec, nil
}

// RefreshLevels обновляет уровни без увеличения счётчика.
func (s *Store) RefreshLevels(ctx context.Context, userID string, levels []access.Level, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE permission_records
		SET granted_levels = $2, last_checked = $3, stale = FALSE
		WHERE user_id = $1
	`, userID, levelsToSQL(levels), at)
	if err != nil {
		return fmt.Errorf("ошибка обновления кэша разрешений: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrPermissionNotFound
	}
	return nil
}

// GetPermission возвращает запись кэша.
func (s *Store) GetPermission(ctx context.Context, userID string) (*permissions.Record, error) {
	rec, err := scanPermission(s.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permission_records WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err, common.ErrPermissionNotFound)
	}
	return rec, nil
}

// InvalidatePermission помечает запись устаревшей.
func (s *Store) InvalidatePermission(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `UPDATE permission_records SET stale = TRUE WHERE user_id = $1`, userID)
	return err
}

// InvalidateAllPermissions помечает устаревшими все записи.
func (s *Store) InvalidateAllPermissions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `UPDATE permission_records SET stale = TRUE WHERE NOT stale`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListStalePermissionUserIDs возвращает пользователей с устаревшей записью.
func (s *Store) ListStalePermissionUserIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.user_id
		FROM permission_records p
		JOIN members m ON m.user_id = p.user_id
		WHERE p.stale
		ORDER BY m.seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска устаревших разрешений: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения устаревших разрешений: %w", err)
	}
	return ids, nil
}
