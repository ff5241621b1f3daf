// Package postgres — admin.go работает с таблицами admin_sessions и admin_login_attempts.
package postgres

import (
	"context"
	"fmt"
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/admin"
)

// CreateSession создаёт новую сессию владельца.
func (s *Store) CreateSession(ctx context.Context, sess admin.Session) error {
	query := `
		INSERT INTO admin_sessions (user_id, session_token, authenticated_at, expires_at, last_activity, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`
	_, err := s.db.Exec(ctx, query,
		sess.UserID, sess.SessionToken, sess.AuthenticatedAt, sess.ExpiresAt, sess.LastActivity)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// GetActiveSession возвращает активную сессию пользователя.
func (s *Store) GetActiveSession(ctx context.Context, userID string, now time.Time) (*admin.Session, error) {
	query := `
		SELECT id, user_id, session_token, authenticated_at, expires_at, last_activity, is_active
		FROM admin_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY authenticated_at DESC
		LIMIT 1
	`
	var sess admin.Session
	err := s.db.QueryRow(ctx, query, userID, now).Scan(
		&sess.ID, &sess.UserID, &sess.SessionToken, &sess.AuthenticatedAt,
		&sess.ExpiresAt, &sess.LastActivity, &sess.IsActive,
	)
	if err != nil {
		return nil, notFound(err, common.ErrSessionExpired)
	}
	return &sess, nil
}

// TouchSession обновляет время последней активности.
func (s *Store) TouchSession(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE admin_sessions SET last_activity = $2 WHERE user_id = $1 AND is_active = TRUE`, userID, at)
	return err
}

// DeactivateSessions деактивирует сессии пользователя.
func (s *Store) DeactivateSessions(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `UPDATE admin_sessions SET is_active = FALSE WHERE user_id = $1`, userID)
	return err
}

// LogLoginAttempt записывает попытку входа.
func (s *Store) LogLoginAttempt(ctx context.Context, userID string, success bool, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO admin_login_attempts (user_id, success, attempt_time) VALUES ($1, $2, $3)`,
		userID, success, at)
	return err
}

// CountFailedAttempts возвращает количество неудачных попыток начиная с since.
func (s *Store) CountFailedAttempts(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`
	var count int
	err := s.db.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, err
}
