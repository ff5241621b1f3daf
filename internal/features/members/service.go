// Package members — service.go содержит бизнес-логику реестра участников.
package members

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/events"
)

// Authorizer проверяет права владельца.
type Authorizer interface {
	Authorize(ctx context.Context, callerID string) error
}

// Service управляет участниками.
type Service struct {
	repo Repository
	auth Authorizer
	pub  events.Publisher
	now  func() time.Time
}

// NewService создаёт сервис участников.
func NewService(repo Repository, auth Authorizer, pub events.Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, auth: auth, pub: pub, now: now}
}

// Register регистрирует нового пользователя.
//
// Параметры:
//   - userID: адрес кошелька или внешний id (нормализуется)
//   - meta: отображаемое имя, GitHub, Telegram (всё необязательно)
func (s *Service) Register(ctx context.Context, userID string, meta Metadata) (*Member, error) {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	if err := meta.validate(); err != nil {
		return nil, err
	}

	now := common.TruncateToSecond(s.now())
	m := Member{
		UserID:         id,
		DisplayName:    meta.DisplayName,
		GithubLogin:    meta.GithubLogin,
		TelegramID:     meta.TelegramID,
		RegisteredAt:   now,
		LastActivityAt: now,
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": id,
		"github":  meta.GithubLogin,
	}).Info("Новый пользователь зарегистрирован")

	s.pub.Publish(ctx, events.UserRegistered, id, Registered{
		DisplayName: meta.DisplayName,
		GithubLogin: meta.GithubLogin,
	})
	return &m, nil
}

// Verify подтверждает личность пользователя. Только для владельцев.
func (s *Service) Verify(ctx context.Context, callerID, userID string) (*Member, error) {
	if err := s.auth.Authorize(ctx, callerID); err != nil {
		return nil, err
	}
	id, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}

	at := common.TruncateToSecond(s.now())
	m, err := s.repo.MarkVerified(ctx, id, at)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": id,
		"by":      callerID,
	}).Info("Пользователь верифицирован")

	s.pub.Publish(ctx, events.UserVerified, id, Verified{VerifiedBy: callerID, VerifiedAt: at})
	return m, nil
}

// Get возвращает участника по id.
func (s *Service) Get(ctx context.Context, userID string) (*Member, error) {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetMember(ctx, id)
}

// GetByTelegramID возвращает участника, привязавшего данный Telegram.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*Member, error) {
	if telegramID <= 0 {
		return nil, common.ErrUserNotFound
	}
	return s.repo.GetMemberByTelegramID(ctx, telegramID)
}

// IsMember проверяет, зарегистрирован ли пользователь.
func (s *Service) IsMember(ctx context.Context, userID string) (bool, error) {
	_, err := s.Get(ctx, userID)
	if err == nil {
		return true, nil
	}
	if common.Kind(err) == "not_found" {
		return false, nil
	}
	return false, fmt.Errorf("проверка участника: %w", err)
}

// ListIDs возвращает id всех участников.
func (s *Service) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListMemberIDs(ctx)
}
