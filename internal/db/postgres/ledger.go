// Package postgres — ledger.go работает с журналом contributions.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
)

// AppendContribution добавляет вклад и обновляет владельца в одной транзакции.
// UPDATE members идёт первым и блокирует строку владельца до коммита.
func (s *Store) AppendContribution(ctx context.Context, c ledger.Contribution) (*ledger.Contribution, uint64, error) {
	var total int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE members
			SET total_contributions = total_contributions + 1,
			    last_activity_at = $2,
			    scores_stale = TRUE
			WHERE user_id = $1
			RETURNING total_contributions, is_verified
		`, c.OwnerID, c.Timestamp).Scan(&total, &c.Verified)
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrUnknownOwner
		}
		if err != nil {
			return fmt.Errorf("ошибка обновления владельца: %w", err)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO contributions (owner_id, category, impact_score, description, verified, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, c.OwnerID, int16(c.Category), int16(c.ImpactScore), c.Description, c.Verified, c.Timestamp).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("ошибка записи вклада: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return &c, uint64(total), nil
}

// ListContributions возвращает вклады владельца в порядке добавления.
func (s *Store) ListContributions(ctx context.Context, ownerID string) ([]ledger.Contribution, error) {
	if _, err := s.GetMember(ctx, ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, category, impact_score, description, verified, created_at
		FROM contributions
		WHERE owner_id = $1
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения вкладов: %w", err)
	}
	defer rows.Close()

	var out []ledger.Contribution
	for rows.Next() {
		var c ledger.Contribution
		var category, impact int16
		if err := rows.Scan(&c.ID, &c.OwnerID, &category, &impact, &c.Description, &c.Verified, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("ошибка чтения вклада: %w", err)
		}
		c.Category = ledger.Category(category)
		c.ImpactScore = uint8(impact)
		c.Timestamp = c.Timestamp.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountContributions возвращает количество вкладов владельца.
func (s *Store) CountContributions(ctx context.Context, ownerID string) (uint64, error) {
	var count int64
	err := s.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM contributions WHERE owner_id = m.user_id)
		FROM members m WHERE m.user_id = $1
	`, ownerID).Scan(&count)
	if err != nil {
		return 0, notFound(err, common.ErrUserNotFound)
	}
	return uint64(count), nil
}
