package memory

import (
	"context"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
)

func cloneScore(sc *karma.Score) *karma.Score {
	c := *sc
	c.CategoryScores = make(map[ledger.Category]uint64, len(sc.CategoryScores))
	for k, v := range sc.CategoryScores {
		c.CategoryScores[k] = v
	}
	return &c
}

// GetScore возвращает сохранённый расчёт.
func (s *Store) GetScore(_ context.Context, userID string) (*karma.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scores[userID]
	if !ok {
		return nil, common.ErrScoreNotFound
	}
	return cloneScore(sc), nil
}

// SaveScore сохраняет расчёт и снимает флаг устаревания.
func (s *Store) SaveScore(_ context.Context, sc karma.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[sc.UserID]
	if !ok {
		return common.ErrUserNotFound
	}
	s.scores[sc.UserID] = cloneScore(&sc)
	m.ScoresStale = false
	return nil
}

// LoadWeights возвращает текущие веса.
func (s *Store) LoadWeights(_ context.Context) (*karma.Weights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.weights == nil {
		return nil, common.ErrWeightsNotFound
	}
	w := *s.weights
	return &w, nil
}

// SaveWeights сохраняет веса.
func (s *Store) SaveWeights(_ context.Context, w karma.Weights) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.weights = &w
	return nil
}

// ListStaleScoreUserIDs возвращает участников с устаревшим расчётом.
func (s *Store) ListStaleScoreUserIDs(_ context.Context, weightsVersion int64, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.memberOrder {
		if len(ids) >= limit {
			break
		}
		sc, ok := s.scores[id]
		if !ok || s.members[id].ScoresStale || sc.WeightsVersion != weightsVersion {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
