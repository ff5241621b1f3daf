// Package karma — repository.go описывает хранилище расчётов и весов.
package karma

import (
	"context"

	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

// Repository хранит результаты расчёта и текущие веса.
type Repository interface {
	// GetScore — common.ErrScoreNotFound, если карму ещё не считали.
	GetScore(ctx context.Context, userID string) (*Score, error)
	// SaveScore перезаписывает результат и снимает members.scores_stale.
	SaveScore(ctx context.Context, s Score) error
	// LoadWeights — common.ErrWeightsNotFound, если веса ещё не сохранялись.
	LoadWeights(ctx context.Context) (*Weights, error)
	// SaveWeights сохраняет новую версию весов.
	SaveWeights(ctx context.Context, w Weights) error
	// ListStaleScoreUserIDs возвращает до limit участников, у которых расчёта нет,
	// он помечен устаревшим или посчитан с другой версией весов.
	ListStaleScoreUserIDs(ctx context.Context, weightsVersion int64, limit int) ([]string, error)
}

// MemberSource — откуда берутся участники.
type MemberSource interface {
	GetMember(ctx context.Context, userID string) (*members.Member, error)
}

// ContributionSource — откуда берётся журнал.
type ContributionSource interface {
	ListContributions(ctx context.Context, ownerID string) ([]ledger.Contribution, error)
}
