package memory

import (
	"context"
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/admin"
)

// CreateSession сохраняет сессию.
func (s *Store) CreateSession(_ context.Context, sess admin.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSessionID++
	sess.ID = s.nextSessionID
	sess.IsActive = true
	s.sessions = append(s.sessions, sess)
	return nil
}

// GetActiveSession возвращает последнюю активную неистёкшую сессию.
func (s *Store) GetActiveSession(_ context.Context, userID string, now time.Time) (*admin.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.sessions) - 1; i >= 0; i-- {
		sess := s.sessions[i]
		if sess.UserID == userID && sess.IsActive && sess.ExpiresAt.After(now) {
			return &sess, nil
		}
	}
	return nil, common.ErrSessionExpired
}

// TouchSession обновляет время последней активности.
func (s *Store) TouchSession(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].UserID == userID && s.sessions[i].IsActive {
			s.sessions[i].LastActivity = at
		}
	}
	return nil
}

// DeactivateSessions закрывает сессии пользователя.
func (s *Store) DeactivateSessions(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].UserID == userID {
			s.sessions[i].IsActive = false
		}
	}
	return nil
}

// LogLoginAttempt записывает попытку входа.
func (s *Store) LogLoginAttempt(_ context.Context, userID string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAttemptID++
	s.attempts = append(s.attempts, admin.LoginAttempt{
		ID:          s.nextAttemptID,
		UserID:      userID,
		AttemptTime: at,
		Success:     success,
	})
	return nil
}

// CountFailedAttempts считает неудачные попытки начиная с since.
func (s *Store) CountFailedAttempts(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.attempts {
		if a.UserID == userID && !a.Success && !a.AttemptTime.Before(since) {
			n++
		}
	}
	return n, nil
}
