// Package ledger — service.go проверяет и записывает вклады.
package ledger

import (
	"context"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/events"
)

// Service — журнал вкладов.
type Service struct {
	repo Repository
	pub  events.Publisher
	now  func() time.Time
}

// NewService создаёт сервис журнала.
func NewService(repo Repository, pub events.Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, pub: pub, now: now}
}

// Append добавляет вклад. Оценка вне 0..100 отклоняется, а не обрезается.
// При любой ошибке журнал и профиль владельца не меняются.
func (s *Service) Append(ctx context.Context, ownerID string, category Category, impactScore int, description string) (*Contribution, error) {
	if impactScore < 0 || impactScore > MaxImpactScore {
		return nil, common.ErrInvalidImpactScore
	}
	if !category.Valid() {
		return nil, common.ErrInvalidCategory
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, common.ErrDescriptionTooLong
	}

	c, total, err := s.repo.AppendContribution(ctx, Contribution{
		OwnerID:     ownerID,
		Category:    category,
		ImpactScore: uint8(impactScore),
		Description: description,
		Timestamp:   common.TruncateToSecond(s.now()),
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  ownerID,
		"category": category.String(),
		"impact":   impactScore,
		"total":    total,
	}).Info("Вклад добавлен в журнал")

	s.pub.Publish(ctx, events.ContributionAdded, ownerID, Added{
		ContributionID: c.ID,
		Category:       category.String(),
		ImpactScore:    c.ImpactScore,
		Total:          total,
	})
	return c, nil
}

// ListByOwner возвращает вклады в порядке добавления.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Contribution, error) {
	return s.repo.ListContributions(ctx, ownerID)
}

// Count возвращает количество вкладов пользователя.
func (s *Service) Count(ctx context.Context, ownerID string) (uint64, error) {
	return s.repo.CountContributions(ctx, ownerID)
}

// CategoryScores суммирует оценки по категориям.
func CategoryScores(contributions []Contribution) map[Category]uint64 {
	scores := make(map[Category]uint64, len(Categories))
	for _, c := range Categories {
		scores[c] = 0
	}
	for _, c := range contributions {
		scores[c.Category] += uint64(c.ImpactScore)
	}
	return scores
}
