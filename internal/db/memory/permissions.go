package memory

import (
	"context"
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/permissions"
)

func clonePermission(r *permissions.Record) *permissions.Record {
	c := *r
	c.GrantedLevels = append([]access.Level(nil), r.GrantedLevels...)
	return &c
}

// RecordCheck записывает результат проверки.
func (s *Store) RecordCheck(_ context.Context, userID string, levels []access.Level, at time.Time) (*permissions.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.permissions[userID]
	if !ok {
		rec = &permissions.Record{UserID: userID}
		s.permissions[userID] = rec
	}
	rec.GrantedLevels = append([]access.Level(nil), levels...)
	rec.LastChecked = at
	rec.AccessCount++
	rec.Stale = false
	return clonePermission(rec), nil
}

// RefreshLevels обновляет уровни без увеличения счётчика.
func (s *Store) RefreshLevels(_ context.Context, userID string, levels []access.Level, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.permissions[userID]
	if !ok {
		return common.ErrPermissionNotFound
	}
	rec.GrantedLevels = append([]access.Level(nil), levels...)
	rec.LastChecked = at
	rec.Stale = false
	return nil
}

// GetPermission возвращает запись кэша.
func (s *Store) GetPermission(_ context.Context, userID string) (*permissions.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.permissions[userID]
	if !ok {
		return nil, common.ErrPermissionNotFound
	}
	return clonePermission(rec), nil
}

// InvalidatePermission помечает запись устаревшей. Записи нет — ничего не делает.
func (s *Store) InvalidatePermission(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.permissions[userID]; ok {
		rec.Stale = true
	}
	return nil
}

// InvalidateAllPermissions помечает устаревшими все записи.
func (s *Store) InvalidateAllPermissions(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, rec := range s.permissions {
		if !rec.Stale {
			rec.Stale = true
			n++
		}
	}
	return n, nil
}

// ListStalePermissionUserIDs возвращает пользователей с устаревшей записью
// в порядке регистрации.
func (s *Store) ListStalePermissionUserIDs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.memberOrder {
		if len(ids) >= limit {
			break
		}
		if rec, ok := s.permissions[id]; ok && rec.Stale {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
