// Package karma — service.go содержит бизнес-логику кармы.
package karma

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

// Authorizer проверяет права владельца.
type Authorizer interface {
	Authorize(ctx context.Context, callerID string) error
}

// Service считает и отдаёт профили.
// Текущие веса лежат в atomic.Pointer: читатели видят либо старые,
// либо новые веса целиком.
type Service struct {
	repo     Repository
	members  MemberSource
	ledger   ContributionSource
	auth     Authorizer
	pub      events.Publisher
	params   Params
	now      func() time.Time
	weights  atomic.Pointer[Weights]
	weightMu sync.Mutex // сериализует SetWeights
}

// NewService создаёт сервис кармы. Перед работой нужно вызвать Init.
func NewService(repo Repository, ms MemberSource, cs ContributionSource, auth Authorizer, pub events.Publisher, params Params, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if params.Normalization == 0 {
		params.Normalization = DefaultNormalization
	}
	return &Service{
		repo:    repo,
		members: ms,
		ledger:  cs,
		auth:    auth,
		pub:     pub,
		params:  params,
		now:     now,
	}
}

// Init загружает веса из хранилища. Если их нет — сохраняет defaults как версию 1.
func (s *Service) Init(ctx context.Context, defaults Weights) error {
	w, err := s.repo.LoadWeights(ctx)
	if errors.Is(err, common.ErrWeightsNotFound) {
		if err := defaults.Validate(); err != nil {
			return fmt.Errorf("веса по умолчанию: %w", err)
		}
		defaults.Version = 1
		defaults.UpdatedAt = common.TruncateToSecond(s.now())
		if err := s.repo.SaveWeights(ctx, defaults); err != nil {
			return fmt.Errorf("сохранение весов по умолчанию: %w", err)
		}
		log.WithFields(log.Fields{
			"code":       defaults.Code,
			"governance": defaults.Governance,
			"forum":      defaults.Forum,
			"identity":   defaults.Identity,
		}).Info("Сохранены веса по умолчанию")
		w = &defaults
	} else if err != nil {
		return fmt.Errorf("загрузка весов: %w", err)
	}

	s.weights.Store(w)
	return nil
}

// GetWeights возвращает текущие веса.
func (s *Service) GetWeights() Weights {
	if w := s.weights.Load(); w != nil {
		return *w
	}
	return Weights{}
}

// SetWeights меняет веса. Только для владельцев.
// Сохранённые профили не переписываются: они становятся устаревшими
// по версии весов и пересчитываются при следующем чтении.
func (s *Service) SetWeights(ctx context.Context, callerID string, w Weights) (Weights, error) {
	if err := s.auth.Authorize(ctx, callerID); err != nil {
		return Weights{}, err
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}

	s.weightMu.Lock()
	defer s.weightMu.Unlock()

	old := s.GetWeights()
	if old.sameValues(w) {
		return old, nil
	}

	w.Version = old.Version + 1
	w.UpdatedAt = common.TruncateToSecond(s.now())
	if err := s.repo.SaveWeights(ctx, w); err != nil {
		return Weights{}, fmt.Errorf("сохранение весов: %w", err)
	}
	s.weights.Store(&w)

	log.WithFields(log.Fields{
		"by":      callerID,
		"version": w.Version,
	}).Info("Веса категорий изменены")

	s.pub.Publish(ctx, events.WeightsUpdated, "", WeightsChanged{ChangedBy: callerID, Old: old, New: w})
	return w, nil
}

// Recalculate пересчитывает профиль по журналу и текущим весам.
// Два вызова подряд без новых вкладов дают одинаковый профиль.
func (s *Service) Recalculate(ctx context.Context, userID string) (*Profile, error) {
	m, err := s.members.GetMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	contributions, err := s.ledger.ListContributions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("чтение журнала: %w", err)
	}

	w := s.GetWeights()
	score := Compute(userID, m.IsVerified, contributions, w, s.params)
	score.CalculatedAt = common.TruncateToSecond(s.now())
	if err := s.repo.SaveScore(ctx, score); err != nil {
		return nil, fmt.Errorf("сохранение расчёта: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"karma":   score.KarmaScore,
		"trust":   score.TrustFactor,
	}).Debug("Карма пересчитана")

	s.pub.Publish(ctx, events.KarmaCalculated, userID, Calculated{
		KarmaScore:     score.KarmaScore,
		TrustFactor:    score.TrustFactor,
		Total:          uint64(len(contributions)),
		WeightsVersion: score.WeightsVersion,
	})
	return buildProfile(m, &score), nil
}

// GetProfile возвращает профиль. Устаревший расчёт (новые вклады, верификация
// или другие веса) пересчитывается здесь же, наружу устаревание не выходит.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	m, err := s.members.GetMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	score, err := s.repo.GetScore(ctx, userID)
	switch {
	case errors.Is(err, common.ErrScoreNotFound):
		return s.Recalculate(ctx, userID)
	case err != nil:
		return nil, fmt.Errorf("чтение расчёта: %w", err)
	}

	if s.IsStale(m, score) {
		return s.Recalculate(ctx, userID)
	}
	return buildProfile(m, score), nil
}

// ListStale возвращает участников, чью карму надо пересчитать.
func (s *Service) ListStale(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	return s.repo.ListStaleScoreUserIDs(ctx, s.GetWeights().Version, limit)
}

// IsStale сообщает, нужно ли пересчитать сохранённый результат.
func (s *Service) IsStale(m *members.Member, score *Score) bool {
	return m.ScoresStale || score.WeightsVersion != s.GetWeights().Version
}

func buildProfile(m *members.Member, score *Score) *Profile {
	scores := make(map[ledger.Category]uint64, len(score.CategoryScores))
	for c, v := range score.CategoryScores {
		scores[c] = v
	}
	return &Profile{
		UserID:             m.UserID,
		CategoryScores:     scores,
		KarmaScore:         score.KarmaScore,
		TrustFactor:        score.TrustFactor,
		TotalContributions: m.TotalContributions,
		IsVerified:         m.IsVerified,
		RegisteredAt:       m.RegisteredAt,
		LastActivityAt:     m.LastActivityAt,
	}
}
