// Package permissions — service.go ведёт кэш разрешений.
package permissions

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/access"
)

// Service — кэш разрешений.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService создаёт сервис кэша.
func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// RecordCheck записывает результат проверки доступа.
func (s *Service) RecordCheck(ctx context.Context, userID string, levels []access.Level) (*Record, error) {
	rec, err := s.repo.RecordCheck(ctx, userID, levels, common.TruncateToSecond(s.now()))
	if err != nil {
		return nil, fmt.Errorf("запись проверки доступа: %w", err)
	}
	return rec, nil
}

// Refresh обновляет уровни без увеличения счётчика проверок.
func (s *Service) Refresh(ctx context.Context, userID string, levels []access.Level) error {
	return s.repo.RefreshLevels(ctx, userID, levels, common.TruncateToSecond(s.now()))
}

// Get возвращает запись кэша.
func (s *Service) Get(ctx context.Context, userID string) (*Record, error) {
	return s.repo.GetPermission(ctx, userID)
}

// Invalidate помечает запись пользователя устаревшей.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	if err := s.repo.InvalidatePermission(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось сбросить кэш разрешений")
	}
}

// InvalidateAll помечает устаревшими все записи (изменились правила или веса).
func (s *Service) InvalidateAll(ctx context.Context) {
	n, err := s.repo.InvalidateAllPermissions(ctx)
	if err != nil {
		log.WithError(err).Warn("Не удалось сбросить кэш разрешений")
		return
	}
	log.WithField("records", n).Debug("Кэш разрешений сброшен")
}

// ListStale возвращает пользователей с устаревшей записью.
func (s *Service) ListStale(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.repo.ListStalePermissionUserIDs(ctx, limit)
}
