// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: пересчёт устаревших профилей
// и обновление устаревших записей кэша разрешений.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/reputation-engine/internal/features/karma"
)

// Engine — то, что задачи вызывают у движка.
type Engine interface {
	ListStaleProfiles(ctx context.Context, limit int) ([]string, error)
	Recalculate(ctx context.Context, userID string) (*karma.Profile, error)
	ListStalePermissions(ctx context.Context, limit int) ([]string, error)
	RefreshPermissions(ctx context.Context, userID string) error
}

// Options — расписание и параллельность.
type Options struct {
	RecalcSpec      string // cron-выражение пересчёта профилей
	PermissionsSpec string // cron-выражение обновления кэша
	Workers         int    // сколько пользователей обрабатываем параллельно
	BatchSize       int    // сколько пользователей за один запуск
	Location        *time.Location
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron    *cron.Cron
	engine  Engine
	workers int
	batch   int
	opts    Options
}

// NewScheduler создаёт планировщик. Некорректное cron-выражение — ошибка.
func NewScheduler(engine Engine, opts Options) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	for _, spec := range []string{opts.RecalcSpec, opts.PermissionsSpec} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("некорректное расписание %q: %w", spec, err)
		}
	}

	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.StandardLogger()))),
	)

	s := &Scheduler{
		cron:    c,
		engine:  engine,
		workers: opts.Workers,
		batch:   opts.BatchSize,
		opts:    opts,
	}
	return s, nil
}

// Start регистрирует и запускает задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.opts.RecalcSpec, func() {
		log.Debug("[CRON] Пересчёт устаревших профилей")
		n, err := s.RecalculateStale(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка пересчёта профилей")
			return
		}
		if n > 0 {
			log.WithField("users", n).Info("[CRON] Профили пересчитаны")
		}
	}); err != nil {
		return fmt.Errorf("расписание пересчёта %q: %w", s.opts.RecalcSpec, err)
	}

	if _, err := s.cron.AddFunc(s.opts.PermissionsSpec, func() {
		log.Debug("[CRON] Обновление кэша разрешений")
		n, err := s.RefreshStalePermissions(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка обновления кэша разрешений")
			return
		}
		if n > 0 {
			log.WithField("users", n).Info("[CRON] Кэш разрешений обновлён")
		}
	}); err != nil {
		return fmt.Errorf("расписание кэша разрешений %q: %w", s.opts.PermissionsSpec, err)
	}

	s.cron.Start()
	log.WithField("timezone", s.opts.Location.String()).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// RecalculateStale пересчитывает одну пачку устаревших профилей.
// Возвращает число успешно пересчитанных.
func (s *Scheduler) RecalculateStale(ctx context.Context) (int, error) {
	ids, err := s.engine.ListStaleProfiles(ctx, s.batch)
	if err != nil {
		return 0, err
	}
	return s.forEach(ctx, ids, func(ctx context.Context, id string) error {
		_, err := s.engine.Recalculate(ctx, id)
		return err
	}), nil
}

// RefreshStalePermissions обновляет одну пачку устаревших записей кэша.
func (s *Scheduler) RefreshStalePermissions(ctx context.Context) (int, error) {
	ids, err := s.engine.ListStalePermissions(ctx, s.batch)
	if err != nil {
		return 0, err
	}
	return s.forEach(ctx, ids, s.engine.RefreshPermissions), nil
}

// forEach вызывает fn для каждого пользователя, не больше s.workers одновременно.
// Ошибка по одному пользователю логируется и не останавливает остальных.
func (s *Scheduler) forEach(ctx context.Context, ids []string, fn func(context.Context, string) error) int {
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fn(gctx, id); err != nil {
				log.WithError(err).WithField("user_id", id).Warn("[CRON] Ошибка обработки пользователя")
				return nil
			}
			done.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(done.Load())
}
