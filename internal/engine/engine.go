// Package engine — единая точка входа движка репутации для внешнего слоя
// (бот, задания, UI). Сериализует запись и пересчёт по пользователю
// и сбрасывает кэш разрешений, когда меняются профиль, правила или веса.
package engine

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
	"serotonyl.ru/reputation-engine/internal/features/permissions"
)

// Deps — сервисы, из которых собирается движок.
type Deps struct {
	Members     *members.Service
	Ledger      *ledger.Service
	Karma       *karma.Service
	Access      *access.Service
	Permissions *permissions.Service
	Audit       *events.Recorder // может быть nil
}

// Engine — фасад движка.
type Engine struct {
	members *members.Service
	ledger  *ledger.Service
	karma   *karma.Service
	access  *access.Service
	perms   *permissions.Service
	audit   *events.Recorder
	locks   *userLocks
}

// New создаёт движок.
func New(d Deps) *Engine {
	return &Engine{
		members: d.Members,
		ledger:  d.Ledger,
		karma:   d.Karma,
		access:  d.Access,
		perms:   d.Permissions,
		audit:   d.Audit,
		locks:   newUserLocks(),
	}
}

// --- Участники ---

// RegisterUser регистрирует пользователя.
func (e *Engine) RegisterUser(ctx context.Context, userID string, meta members.Metadata) (*members.Member, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(id)
	defer unlock()
	return e.members.Register(ctx, id, meta)
}

// VerifyUser подтверждает личность пользователя. Только для владельцев.
func (e *Engine) VerifyUser(ctx context.Context, callerID, userID string) (*members.Member, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(id)
	defer unlock()

	m, err := e.members.Verify(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	e.perms.Invalidate(ctx, id)
	return m, nil
}

// GetMember возвращает запись участника.
func (e *Engine) GetMember(ctx context.Context, userID string) (*members.Member, error) {
	return e.members.Get(ctx, userID)
}

// GetMemberByTelegramID ищет участника по Telegram.
func (e *Engine) GetMemberByTelegramID(ctx context.Context, telegramID int64) (*members.Member, error) {
	return e.members.GetByTelegramID(ctx, telegramID)
}

// --- Журнал вкладов ---

// AddContribution добавляет вклад и помечает профиль устаревшим.
func (e *Engine) AddContribution(ctx context.Context, userID string, category ledger.Category, impactScore int, description string) (*ledger.Contribution, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(id)
	defer unlock()

	c, err := e.ledger.Append(ctx, id, category, impactScore, description)
	if err != nil {
		return nil, err
	}
	e.perms.Invalidate(ctx, id)
	return c, nil
}

// GetContributions возвращает вклады пользователя в порядке добавления.
func (e *Engine) GetContributions(ctx context.Context, userID string) ([]ledger.Contribution, error) {
	id, err := e.existing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.ledger.ListByOwner(ctx, id)
}

// CountContributions возвращает количество вкладов пользователя.
func (e *Engine) CountContributions(ctx context.Context, userID string) (uint64, error) {
	id, err := e.existing(ctx, userID)
	if err != nil {
		return 0, err
	}
	return e.ledger.Count(ctx, id)
}

// --- Карма ---

// GetProfile возвращает актуальный профиль.
func (e *Engine) GetProfile(ctx context.Context, userID string) (*karma.Profile, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(id)
	defer unlock()
	return e.karma.GetProfile(ctx, id)
}

// Recalculate принудительно пересчитывает профиль.
func (e *Engine) Recalculate(ctx context.Context, userID string) (*karma.Profile, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(id)
	defer unlock()
	return e.karma.Recalculate(ctx, id)
}

// GetWeights возвращает текущие веса.
func (e *Engine) GetWeights() karma.Weights {
	return e.karma.GetWeights()
}

// SetWeights меняет веса и сбрасывает кэш разрешений. Только для владельцев.
func (e *Engine) SetWeights(ctx context.Context, callerID string, w karma.Weights) (karma.Weights, error) {
	before := e.karma.GetWeights().Version
	updated, err := e.karma.SetWeights(ctx, callerID, w)
	if err != nil {
		return karma.Weights{}, err
	}
	if updated.Version != before {
		e.perms.InvalidateAll(ctx)
	}
	return updated, nil
}

// ListStaleProfiles возвращает пользователей, чей профиль надо пересчитать.
func (e *Engine) ListStaleProfiles(ctx context.Context, limit int) ([]string, error) {
	return e.karma.ListStale(ctx, limit)
}

// --- Правила доступа ---

// CheckAccess проверяет правило по живому профилю и записывает результат в кэш.
func (e *Engine) CheckAccess(ctx context.Context, userID string, ruleID int64) (access.Decision, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return access.Decision{}, err
	}
	unlock := e.locks.lock(id)
	defer unlock()

	d, err := e.access.Evaluate(ctx, id, ruleID)
	if err != nil {
		return access.Decision{}, err
	}
	e.recordCheck(ctx, id)
	return d, nil
}

// CheckDaoAccess проверяет доступ к DAO и записывает результат в кэш.
func (e *Engine) CheckDaoAccess(ctx context.Context, userID string, daoID int64) (access.DaoDecision, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return access.DaoDecision{}, err
	}
	unlock := e.locks.lock(id)
	defer unlock()

	d, err := e.access.EvaluateDao(ctx, id, daoID)
	if err != nil {
		return access.DaoDecision{}, err
	}
	e.recordCheck(ctx, id)
	return d, nil
}

// GrantedLevels возвращает уровни, которые сейчас дают активные правила.
func (e *Engine) GrantedLevels(ctx context.Context, userID string) ([]access.Level, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	unlock := e.locks.lock(id)
	defer unlock()
	return e.access.GrantedLevels(ctx, id)
}

// BestAccessLevel возвращает наибольший уровень доступа пользователя.
func (e *Engine) BestAccessLevel(ctx context.Context, userID string) (access.Level, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return access.Basic, err
	}
	unlock := e.locks.lock(id)
	defer unlock()
	return e.access.BestAccessLevel(ctx, id)
}

// GetAccessRule возвращает правило.
func (e *Engine) GetAccessRule(ctx context.Context, ruleID int64) (*access.Rule, error) {
	return e.access.GetRule(ctx, ruleID)
}

// ListAccessRules возвращает правила.
func (e *Engine) ListAccessRules(ctx context.Context, activeOnly bool) ([]access.Rule, error) {
	return e.access.ListRules(ctx, activeOnly)
}

// AddAccessRule добавляет правило. Только для владельцев.
func (e *Engine) AddAccessRule(ctx context.Context, callerID string, r access.Rule) (*access.Rule, error) {
	created, err := e.access.AddRule(ctx, callerID, r)
	if err != nil {
		return nil, err
	}
	e.perms.InvalidateAll(ctx)
	return created, nil
}

// DeactivateAccessRule выключает правило. Только для владельцев.
func (e *Engine) DeactivateAccessRule(ctx context.Context, callerID string, ruleID int64) (*access.Rule, error) {
	r, err := e.access.DeactivateRule(ctx, callerID, ruleID)
	if err != nil {
		return nil, err
	}
	e.perms.InvalidateAll(ctx)
	return r, nil
}

// GetDaoIntegration возвращает интеграцию DAO.
func (e *Engine) GetDaoIntegration(ctx context.Context, daoID int64) (*access.Dao, error) {
	return e.access.GetDao(ctx, daoID)
}

// ListDaoIntegrations возвращает интеграции DAO.
func (e *Engine) ListDaoIntegrations(ctx context.Context, activeOnly bool) ([]access.Dao, error) {
	return e.access.ListDaos(ctx, activeOnly)
}

// AddDaoIntegration добавляет интеграцию DAO. Только для владельцев.
func (e *Engine) AddDaoIntegration(ctx context.Context, callerID string, d access.Dao) (*access.Dao, error) {
	return e.access.AddDao(ctx, callerID, d)
}

// DeactivateDaoIntegration выключает интеграцию DAO. Только для владельцев.
func (e *Engine) DeactivateDaoIntegration(ctx context.Context, callerID string, daoID int64) (*access.Dao, error) {
	return e.access.DeactivateDao(ctx, callerID, daoID)
}

// --- Кэш разрешений ---

// GetPermissions возвращает запись кэша. Только для отображения.
func (e *Engine) GetPermissions(ctx context.Context, userID string) (*permissions.Record, error) {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return e.perms.Get(ctx, id)
}

// RefreshPermissions пересчитывает уровни в кэше без увеличения счётчика.
func (e *Engine) RefreshPermissions(ctx context.Context, userID string) error {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return err
	}
	unlock := e.locks.lock(id)
	defer unlock()

	levels, err := e.access.GrantedLevels(ctx, id)
	if err != nil {
		return err
	}
	return e.perms.Refresh(ctx, id, levels)
}

// ListStalePermissions возвращает пользователей с устаревшей записью кэша.
func (e *Engine) ListStalePermissions(ctx context.Context, limit int) ([]string, error) {
	return e.perms.ListStale(ctx, limit)
}

// --- Аудит ---

// AuditLog возвращает последние события пользователя (все, если userID пуст).
func (e *Engine) AuditLog(ctx context.Context, userID string, limit int) ([]events.Record, error) {
	if e.audit == nil {
		return nil, nil
	}
	if userID != "" {
		id, err := members.NormalizeUserID(userID)
		if err != nil {
			return nil, err
		}
		userID = id
	}
	return e.audit.List(ctx, userID, limit)
}

// recordCheck пишет уровни в кэш. Кэш не влияет на решение,
// поэтому ошибка только логируется. Вызывается под замком пользователя.
func (e *Engine) recordCheck(ctx context.Context, userID string) {
	levels, err := e.access.GrantedLevels(ctx, userID)
	if err == nil {
		_, err = e.perms.RecordCheck(ctx, userID, levels)
	}
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось обновить кэш разрешений")
	}
}

// existing нормализует id и проверяет, что пользователь зарегистрирован.
func (e *Engine) existing(ctx context.Context, userID string) (string, error) {
	m, err := e.members.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrUserNotFound
		}
		return "", err
	}
	return m.UserID, nil
}
