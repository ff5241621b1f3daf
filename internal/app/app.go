// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: выбирает хранилище, создаёт сервисы, движок,
// планировщик и Telegram-обвязку.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"serotonyl.ru/reputation-engine/internal/bot"
	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/config"
	"serotonyl.ru/reputation-engine/internal/db/memory"
	"serotonyl.ru/reputation-engine/internal/db/postgres"
	"serotonyl.ru/reputation-engine/internal/engine"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/admin"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
	"serotonyl.ru/reputation-engine/internal/features/permissions"
	"serotonyl.ru/reputation-engine/internal/jobs"
)

// Store — всё, что нужно сервисам от хранилища. Реализуют memory.Store и postgres.Store.
type Store interface {
	members.Repository
	ledger.Repository
	karma.Repository
	access.Repository
	permissions.Repository
	admin.Repository
	events.Repository
}

// App содержит все компоненты приложения.
type App struct {
	Engine    *engine.Engine
	Admin     *admin.Service
	Bus       *events.Bus
	Scheduler *jobs.Scheduler // nil, если задачи выключены
	Bot       *bot.Bot        // nil, если бот выключен
	Notifier  *bot.Notifier   // nil без AUDIT_CHAT_ID

	db *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	// === 1. Хранилище ===
	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Шина событий и журнал аудита ===
	now := time.Now
	a.Bus = events.NewBus(now)
	recorder := events.NewRecorder(store)
	a.Bus.Subscribe(recorder.Handle)

	// === 3. Сервисы ===
	adminService, err := admin.NewService(store, admin.Options{
		OwnerIDs:     cfg.OwnerIDs,
		PasswordHash: cfg.AdminPasswordHash,
		SessionTTL:   cfg.AdminSessionTTL,
		MaxAttempts:  cfg.AdminMaxAttempts,
	}, now)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка настройки владельцев: %w", err)
	}
	a.Admin = adminService

	memberService := members.NewService(store, adminService, a.Bus, now)
	ledgerService := ledger.NewService(store, a.Bus, now)
	karmaService := karma.NewService(store, store, store, adminService, a.Bus, karma.Params{
		Normalization: cfg.KarmaNormalization,
		VerifiedBonus: cfg.TrustVerifiedBonus,
		ActivityStep:  cfg.TrustActivityStep,
		ActivityCap:   cfg.TrustActivityCap,
	}, now)
	if err := karmaService.Init(ctx, karma.Weights{
		Code:       cfg.WeightCode,
		Governance: cfg.WeightGovernance,
		Forum:      cfg.WeightForum,
		Identity:   cfg.WeightIdentity,
	}); err != nil {
		a.Close()
		return nil, fmt.Errorf("ошибка инициализации весов: %w", err)
	}

	mode, err := access.ParseGatingMode(cfg.DaoGatingMode)
	if err != nil {
		a.Close()
		return nil, err
	}
	accessService := access.NewService(store, karmaService, adminService, a.Bus, mode)
	permissionService := permissions.NewService(store, now)

	// === 4. Движок ===
	a.Engine = engine.New(engine.Deps{
		Members:     memberService,
		Ledger:      ledgerService,
		Karma:       karmaService,
		Access:      accessService,
		Permissions: permissionService,
		Audit:       recorder,
	})

	// === 5. Планировщик задач ===
	if cfg.FeatureJobsEnabled {
		a.Scheduler, err = jobs.NewScheduler(a.Engine, jobs.Options{
			RecalcSpec:      cfg.JobRecalcSpec,
			PermissionsSpec: cfg.JobPermissionsSpec,
			Workers:         cfg.JobWorkers,
			Location:        common.LoadLocation(cfg.AppTimezone),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ошибка настройки планировщика: %w", err)
		}
	}

	// === 6. Telegram ===
	if cfg.BotEnabled() {
		a.Bot, err = bot.New(cfg.TelegramBotToken, a.Engine, admin.NewHandler(adminService), bot.Options{
			AuditChatID:       cfg.AuditChatID,
			MaxInflight:       cfg.BotMaxInflight,
			UpdateTimeout:     cfg.BotUpdateTimeoutSeconds,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		if cfg.AuditChatID != 0 {
			a.Notifier = bot.NewNotifier(a.Bot, cfg.AuditChatID, 0)
			a.Bus.Subscribe(a.Notifier.Handle)
		}
	}

	log.WithFields(log.Fields{
		"storage":  cfg.StorageBackend,
		"dao_mode": mode,
		"owners":   len(adminService.Owners()),
		"jobs":     a.Scheduler != nil,
		"bot":      a.Bot != nil,
	}).Info("Приложение собрано")

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.StorageBackend == config.StorageMemory {
		log.Warn("Используется хранилище в памяти — данные пропадут при перезапуске")
		return memory.New(), nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	a.db = pool

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	return postgres.New(pool), nil
}

// Run запускает планировщик, бота и уведомления и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
		defer a.Scheduler.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Notifier != nil {
		g.Go(func() error {
			a.Notifier.Run(gctx)
			return nil
		})
	}
	if a.Bot != nil {
		g.Go(func() error {
			return a.Bot.Start(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// Close освобождает ресурсы (пул соединений).
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}
