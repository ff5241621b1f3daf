// Package postgres — members.go работает с таблицей members.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

const memberColumns = `user_id, display_name, github_login, COALESCE(telegram_id, 0), is_verified,
	verified_at, total_contributions, scores_stale, registered_at, last_activity_at`

func scanMember(row pgx.Row) (*members.Member, error) {
	var m members.Member
	var total int64
	err := row.Scan(
		&m.UserID, &m.DisplayName, &m.GithubLogin, &m.TelegramID, &m.IsVerified,
		&m.VerifiedAt, &total, &m.ScoresStale, &m.RegisteredAt, &m.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	m.TotalContributions = uint64(total)
	m.RegisteredAt = m.RegisteredAt.UTC()
	m.LastActivityAt = m.LastActivityAt.UTC()
	if m.VerifiedAt != nil {
		t := m.VerifiedAt.UTC()
		m.VerifiedAt = &t
	}
	return &m, nil
}

// CreateMember добавляет участника.
func (s *Store) CreateMember(ctx context.Context, m members.Member) error {
	var telegramID *int64
	if m.TelegramID != 0 {
		telegramID = &m.TelegramID
	}

	query := `
		INSERT INTO members (user_id, display_name, github_login, telegram_id,
		                     scores_stale, registered_at, last_activity_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6)
	`
	_, err := s.db.Exec(ctx, query,
		m.UserID, m.DisplayName, m.GithubLogin, telegramID, m.RegisteredAt, m.LastActivityAt,
	)
	if hasCode(err, codeUniqueViolation) {
		return common.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("ошибка создания участника: %w", err)
	}
	return nil
}

// GetMember возвращает участника.
func (s *Store) GetMember(ctx context.Context, userID string) (*members.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE user_id = $1`
	m, err := scanMember(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, notFound(err, common.ErrUserNotFound)
	}
	return m, nil
}

// GetMemberByTelegramID ищет участника по Telegram.
func (s *Store) GetMemberByTelegramID(ctx context.Context, telegramID int64) (*members.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE telegram_id = $1`
	m, err := scanMember(s.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		return nil, notFound(err, common.ErrUserNotFound)
	}
	return m, nil
}

// MarkVerified верифицирует участника и помечает его карму устаревшей.
func (s *Store) MarkVerified(ctx context.Context, userID string, at time.Time) (*members.Member, error) {
	query := `
		UPDATE members
		SET is_verified = TRUE, verified_at = $2, scores_stale = TRUE
		WHERE user_id = $1 AND NOT is_verified
		RETURNING ` + memberColumns
	m, err := scanMember(s.db.QueryRow(ctx, query, userID, at))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка верификации: %w", err)
	}

	// Строка не обновилась: либо участника нет, либо он уже верифицирован
	if _, err := s.GetMember(ctx, userID); err != nil {
		return nil, err
	}
	return nil, common.ErrAlreadyVerified
}

// ListMemberIDs возвращает id участников в порядке регистрации.
func (s *Store) ListMemberIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM members ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения участников: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения участников: %w", err)
	}
	return ids, nil
}
