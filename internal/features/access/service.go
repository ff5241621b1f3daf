// Package access — service.go содержит бизнес-логику правил доступа.
package access

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/karma"
)

// Authorizer проверяет права владельца.
type Authorizer interface {
	Authorize(ctx context.Context, callerID string) error
}

// ProfileSource отдаёт актуальный профиль (пересчитанный, если устарел).
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*karma.Profile, error)
}

// Service — движок правил доступа.
// Изменения правил и DAO берут mu на запись, проверки — на чтение,
// поэтому проверка видит конфигурацию целиком до или после изменения.
type Service struct {
	repo     Repository
	profiles ProfileSource
	auth     Authorizer
	pub      events.Publisher
	mode     GatingMode
	mu       sync.RWMutex
}

// NewService создаёт сервис правил доступа.
func NewService(repo Repository, profiles ProfileSource, auth Authorizer, pub events.Publisher, mode GatingMode) *Service {
	if mode == "" {
		mode = GatingOverride
	}
	return &Service{repo: repo, profiles: profiles, auth: auth, pub: pub, mode: mode}
}

// Mode возвращает режим гейтинга DAO.
func (s *Service) Mode() GatingMode {
	return s.mode
}

// AddRule добавляет правило. Только для владельцев.
func (s *Service) AddRule(ctx context.Context, callerID string, r Rule) (*Rule, error) {
	if err := s.auth.Authorize(ctx, callerID); err != nil {
		return nil, err
	}
	r.Name = strings.TrimSpace(r.Name)
	if err := validateRule(r); err != nil {
		return nil, err
	}
	r.Active = true

	s.mu.Lock()
	created, err := s.repo.CreateRule(ctx, r)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("создание правила: %w", err)
	}

	log.WithFields(log.Fields{
		"rule_id": created.ID,
		"name":    created.Name,
		"level":   created.Level.String(),
		"by":      callerID,
	}).Info("Добавлено правило доступа")

	s.pub.Publish(ctx, events.AccessRuleAdded, "", RuleChanged{By: callerID, Rule: *created})
	return created, nil
}

// DeactivateRule выключает правило. Только для владельцев.
func (s *Service) DeactivateRule(ctx context.Context, callerID string, ruleID int64) (*Rule, error) {
	if err := s.auth.Authorize(ctx, callerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	r, err := s.repo.DeactivateRule(ctx, ruleID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"rule_id": ruleID, "by": callerID}).Info("Правило доступа деактивировано")

	s.pub.Publish(ctx, events.AccessRuleDeactivated, "", RuleChanged{By: callerID, Rule: *r})
	return r, nil
}

// GetRule возвращает правило по id.
func (s *Service) GetRule(ctx context.Context, ruleID int64) (*Rule, error) {
	return s.repo.GetRule(ctx, ruleID)
}

// ListRules возвращает правила.
func (s *Service) ListRules(ctx context.Context, activeOnly bool) ([]Rule, error) {
	return s.repo.ListRules(ctx, activeOnly)
}

// Evaluate проверяет правило по актуальному профилю пользователя.
// Кэш разрешений не используется: решение всегда считается заново.
func (s *Service) Evaluate(ctx context.Context, userID string, ruleID int64) (Decision, error) {
	s.mu.RLock()
	r, err := s.repo.GetRule(ctx, ruleID)
	s.mu.RUnlock()
	if err != nil {
		return Decision{}, err
	}

	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	d := Evaluate(*r, *p)
	s.publishDecision(ctx, userID, d.Granted, Checked{RuleID: ruleID, Reason: d.Reason})
	return d, nil
}

// GrantedLevels возвращает уровни, которые дают активные правила.
func (s *Service) GrantedLevels(ctx context.Context, userID string) ([]Level, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.GrantedLevelsFor(ctx, *p)
}

// GrantedLevelsFor — то же, что GrantedLevels, для уже полученного профиля.
func (s *Service) GrantedLevelsFor(ctx context.Context, p karma.Profile) ([]Level, error) {
	s.mu.RLock()
	rules, err := s.repo.ListRules(ctx, true)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("чтение правил: %w", err)
	}
	return GrantedLevels(rules, p), nil
}

// BestAccessLevel — наибольший уровень среди пройденных активных правил.
// Basic, если не прошло ни одно, но пользователь зарегистрирован.
func (s *Service) BestAccessLevel(ctx context.Context, userID string) (Level, error) {
	levels, err := s.GrantedLevels(ctx, userID)
	if err != nil {
		return Basic, err
	}
	return BestLevel(levels), nil
}

// AddDao добавляет интеграцию DAO. Только для владельцев.
// Все пользовательские правила должны существовать, повторы запрещены.
func (s *Service) AddDao(ctx context.Context, callerID string, d Dao) (*Dao, error) {
	if err := s.auth.Authorize(ctx, callerID); err != nil {
		return nil, err
	}
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" || utf8.RuneCountInString(d.Name) > maxNameLength || !d.RequiredLevel.Valid() {
		return nil, common.ErrInvalidDao
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]bool, len(d.CustomRuleIDs))
	for _, id := range d.CustomRuleIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: правило %d указано дважды", common.ErrInvalidDao, id)
		}
		seen[id] = true
		if _, err := s.repo.GetRule(ctx, id); err != nil {
			return nil, err
		}
	}

	d.Active = true
	created, err := s.repo.CreateDao(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("создание интеграции DAO: %w", err)
	}

	log.WithFields(log.Fields{
		"dao_id": created.ID,
		"name":   created.Name,
		"rules":  created.CustomRuleIDs,
		"by":     callerID,
	}).Info("Добавлена интеграция DAO")

	s.pub.Publish(ctx, events.DaoIntegrationAdded, "", DaoChanged{By: callerID, Dao: *created})
	return created, nil
}

// DeactivateDao выключает интеграцию DAO. Только для владельцев.
func (s *Service) DeactivateDao(ctx context.Context, callerID string, daoID int64) (*Dao, error) {
	if err := s.auth.Authorize(ctx, callerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	d, err := s.repo.DeactivateDao(ctx, daoID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"dao_id": daoID, "by": callerID}).Info("Интеграция DAO деактивирована")

	s.pub.Publish(ctx, events.DaoIntegrationDeactivated, "", DaoChanged{By: callerID, Dao: *d})
	return d, nil
}

// GetDao возвращает интеграцию по id.
func (s *Service) GetDao(ctx context.Context, daoID int64) (*Dao, error) {
	return s.repo.GetDao(ctx, daoID)
}

// ListDaos возвращает интеграции DAO.
func (s *Service) ListDaos(ctx context.Context, activeOnly bool) ([]Dao, error) {
	return s.repo.ListDaos(ctx, activeOnly)
}

// EvaluateDao проверяет доступ пользователя к DAO. Публикует одно событие.
func (s *Service) EvaluateDao(ctx context.Context, userID string, daoID int64) (DaoDecision, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return DaoDecision{}, err
	}

	s.mu.RLock()
	dao, rules, err := s.loadDao(ctx, daoID)
	s.mu.RUnlock()
	if err != nil {
		return DaoDecision{}, err
	}

	d := EvaluateDao(*dao, rules, *p, s.mode)
	s.publishDecision(ctx, userID, d.Granted, Checked{RuleID: d.FailedRuleID, DaoID: daoID, Reason: d.Reason})
	return d, nil
}

// loadDao читает DAO, активные правила и пользовательские правила DAO.
// Вызывается под s.mu.RLock.
func (s *Service) loadDao(ctx context.Context, daoID int64) (*Dao, map[int64]Rule, error) {
	dao, err := s.repo.GetDao(ctx, daoID)
	if err != nil {
		return nil, nil, err
	}
	active, err := s.repo.ListRules(ctx, true)
	if err != nil {
		return nil, nil, fmt.Errorf("чтение правил: %w", err)
	}

	rules := make(map[int64]Rule, len(active)+len(dao.CustomRuleIDs))
	for _, r := range active {
		rules[r.ID] = r
	}
	for _, id := range dao.CustomRuleIDs {
		if _, ok := rules[id]; ok {
			continue
		}
		r, err := s.repo.GetRule(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		rules[id] = *r
	}
	return dao, rules, nil
}

func (s *Service) publishDecision(ctx context.Context, userID string, granted bool, c Checked) {
	typ := events.AccessDenied
	if granted {
		typ = events.AccessGranted
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"rule_id": c.RuleID,
		"dao_id":  c.DaoID,
		"reason":  c.Reason,
	}).Debug("Проверка доступа")
	s.pub.Publish(ctx, typ, userID, c)
}

func validateRule(r Rule) error {
	switch {
	case r.Name == "" || utf8.RuneCountInString(r.Name) > maxNameLength:
		return fmt.Errorf("%w: имя правила", common.ErrInvalidRule)
	case r.MinKarma > karma.MaxKarma:
		return fmt.Errorf("%w: min_karma больше %d", common.ErrInvalidRule, karma.MaxKarma)
	case r.MinTrustFactor > karma.MaxTrust:
		return fmt.Errorf("%w: min_trust_factor больше %d", common.ErrInvalidRule, karma.MaxTrust)
	case !r.Level.Valid():
		return fmt.Errorf("%w: уровень доступа", common.ErrInvalidRule)
	}
	return nil
}
