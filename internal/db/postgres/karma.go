// Package postgres — karma.go работает с таблицами scores и scoring_weights.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
)

// GetScore возвращает сохранённый расчёт.
func (s *Store) GetScore(ctx context.Context, userID string) (*karma.Score, error) {
	var code, gov, forum, identity int64
	var k, trust int32
	sc := karma.Score{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT code_score, governance_score, forum_score, identity_score,
		       karma_score, trust_factor, weights_version, calculated_at
		FROM scores WHERE user_id = $1
	`, userID).Scan(&code, &gov, &forum, &identity, &k, &trust, &sc.WeightsVersion, &sc.CalculatedAt)
	if err != nil {
		return nil, notFound(err, common.ErrScoreNotFound)
	}

	sc.CategoryScores = map[ledger.Category]uint64{
		ledger.Code:                 uint64(code),
		ledger.Governance:           uint64(gov),
		ledger.Forum:                uint64(forum),
		ledger.IdentityVerification: uint64(identity),
	}
	sc.KarmaScore = uint32(k)
	sc.TrustFactor = uint32(trust)
	sc.CalculatedAt = sc.CalculatedAt.UTC()
	return &sc, nil
}

// SaveScore сохраняет расчёт и снимает флаг устаревания у участника.
func (s *Store) SaveScore(ctx context.Context, sc karma.Score) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE members SET scores_stale = FALSE WHERE user_id = $1`, sc.UserID)
		if err != nil {
			return fmt.Errorf("ошибка обновления участника: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrUserNotFound
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO scores (user_id, code_score, governance_score, forum_score, identity_score,
			                    karma_score, trust_factor, weights_version, calculated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (user_id) DO UPDATE SET
				code_score = EXCLUDED.code_score,
				governance_score = EXCLUDED.governance_score,
				forum_score = EXCLUDED.forum_score,
				identity_score = EXCLUDED.identity_score,
				karma_score = EXCLUDED.karma_score,
				trust_factor = EXCLUDED.trust_factor,
				weights_version = EXCLUDED.weights_version,
				calculated_at = EXCLUDED.calculated_at
		`, sc.UserID,
			int64(sc.CategoryScores[ledger.Code]),
			int64(sc.CategoryScores[ledger.Governance]),
			int64(sc.CategoryScores[ledger.Forum]),
			int64(sc.CategoryScores[ledger.IdentityVerification]),
			int32(sc.KarmaScore), int32(sc.TrustFactor), sc.WeightsVersion, sc.CalculatedAt,
		)
		if err != nil {
			return fmt.Errorf("ошибка сохранения расчёта: %w", err)
		}
		return nil
	})
}

// LoadWeights возвращает последнюю версию весов.
func (s *Store) LoadWeights(ctx context.Context) (*karma.Weights, error) {
	var code, gov, forum, identity int32
	var w karma.Weights
	err := s.db.QueryRow(ctx, `
		SELECT code_weight, governance_weight, forum_weight, identity_weight, version, updated_at
		FROM scoring_weights
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&code, &gov, &forum, &identity, &w.Version, &w.UpdatedAt)
	if err != nil {
		return nil, notFound(err, common.ErrWeightsNotFound)
	}
	w.Code, w.Governance, w.Forum, w.Identity = uint32(code), uint32(gov), uint32(forum), uint32(identity)
	w.UpdatedAt = w.UpdatedAt.UTC()
	return &w, nil
}

// SaveWeights добавляет новую версию весов. Старые версии остаются для аудита.
func (s *Store) SaveWeights(ctx context.Context, w karma.Weights) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO scoring_weights (version, code_weight, governance_weight, forum_weight, identity_weight, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.Version, int32(w.Code), int32(w.Governance), int32(w.Forum), int32(w.Identity), w.UpdatedAt)
	if hasCode(err, codeUniqueViolation) {
		return fmt.Errorf("%w: версия весов %d уже есть", common.ErrConflict, w.Version)
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения весов: %w", err)
	}
	return nil
}

// ListStaleScoreUserIDs возвращает участников с устаревшим расчётом.
func (s *Store) ListStaleScoreUserIDs(ctx context.Context, weightsVersion int64, limit int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.user_id
		FROM members m
		LEFT JOIN scores sc ON sc.user_id = m.user_id
		WHERE m.scores_stale OR sc.user_id IS NULL OR sc.weights_version <> $1
		ORDER BY m.seq
		LIMIT $2
	`, weightsVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска устаревших расчётов: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения устаревших расчётов: %w", err)
	}
	return ids, nil
}
