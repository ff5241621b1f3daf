// Package admin — service.go содержит проверку прав, вход и сессии владельцев.
package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

const attemptsWindow = time.Hour

// Service проверяет права владельцев.
type Service struct {
	repo         Repository
	owners       map[string]bool
	passwordHash string
	ttl          time.Duration
	maxAttempts  int
	now          func() time.Time
}

// NewService создаёт сервис. Идентификаторы владельцев нормализуются
// так же, как идентификаторы участников.
func NewService(repo Repository, opts Options, now func() time.Time) (*Service, error) {
	if now == nil {
		now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	owners := make(map[string]bool, len(opts.OwnerIDs))
	for _, raw := range opts.OwnerIDs {
		id, err := members.NormalizeUserID(raw)
		if err != nil {
			return nil, fmt.Errorf("владелец %q: %w", raw, err)
		}
		owners[id] = true
	}

	return &Service{
		repo:         repo,
		owners:       owners,
		passwordHash: opts.PasswordHash,
		ttl:          opts.SessionTTL,
		maxAttempts:  opts.MaxAttempts,
		now:          now,
	}, nil
}

// IsOwner проверяет, входит ли пользователь в список владельцев.
func (s *Service) IsOwner(userID string) bool {
	id, err := members.NormalizeUserID(userID)
	if err != nil {
		return false
	}
	return s.owners[id]
}

// Owners возвращает список владельцев по алфавиту.
func (s *Service) Owners() []string {
	ids := make([]string, 0, len(s.owners))
	for id := range s.owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PasswordRequired сообщает, нужен ли вход по паролю.
func (s *Service) PasswordRequired() bool {
	return s.passwordHash != ""
}

// Authorize разрешает привилегированную операцию.
// Без хеша пароля достаточно быть владельцем, с хешем — нужна активная сессия.
func (s *Service) Authorize(ctx context.Context, callerID string) error {
	if !s.IsOwner(callerID) {
		return common.ErrNotOwner
	}
	if !s.PasswordRequired() {
		return nil
	}

	id, _ := members.NormalizeUserID(callerID)
	now := s.now()
	if _, err := s.repo.GetActiveSession(ctx, id, now); err != nil {
		return err
	}
	if err := s.repo.TouchSession(ctx, id, now); err != nil {
		log.WithError(err).WithField("user_id", id).Warn("Не удалось обновить активность сессии")
	}
	return nil
}

// Login проверяет пароль владельца и открывает сессию.
// Защита от brute-force: MaxAttempts неудачных попыток за час — блокировка.
func (s *Service) Login(ctx context.Context, callerID, password string) (*Session, error) {
	if !s.IsOwner(callerID) {
		return nil, common.ErrNotOwner
	}
	if !s.PasswordRequired() {
		return nil, fmt.Errorf("%w: вход по паролю не настроен", common.ErrValidation)
	}
	id, _ := members.NormalizeUserID(callerID)
	now := s.now()

	attempts, err := s.repo.CountFailedAttempts(ctx, id, now.Add(-attemptsWindow))
	if err != nil {
		return nil, fmt.Errorf("чтение попыток входа: %w", err)
	}
	if attempts >= s.maxAttempts {
		return nil, common.ErrTooManyAttempts
	}

	match, err := VerifyPassword(password, s.passwordHash)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки хеша пароля")
	}

	if err := s.repo.LogLoginAttempt(ctx, id, match, now); err != nil {
		log.WithError(err).WithField("user_id", id).Error("Не удалось записать попытку входа")
	}

	if !match {
		log.WithFields(log.Fields{
			"user_id":  id,
			"attempts": attempts + 1,
		}).Warn("Неверный пароль владельца")
		return nil, common.ErrWrongPassword
	}

	token, err := generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("генерация токена: %w", err)
	}
	session := Session{
		UserID:          id,
		SessionToken:    token,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(s.ttl),
		LastActivity:    now,
		IsActive:        true,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("создание сессии: %w", err)
	}

	log.WithField("user_id", id).Info("Владелец вошёл")
	return &session, nil
}

// Logout закрывает сессии владельца.
func (s *Service) Logout(ctx context.Context, callerID string) error {
	id, err := members.NormalizeUserID(callerID)
	if err != nil {
		return err
	}
	return s.repo.DeactivateSessions(ctx, id)
}
