package memory

import (
	"context"
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

func cloneMember(m *members.Member) *members.Member {
	c := *m
	c.VerifiedAt = copyTime(m.VerifiedAt)
	return &c
}

// CreateMember добавляет участника.
func (s *Store) CreateMember(_ context.Context, m members.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.UserID]; ok {
		return common.ErrUserExists
	}
	if m.TelegramID != 0 {
		if _, ok := s.byTelegram[m.TelegramID]; ok {
			return common.ErrUserExists
		}
		s.byTelegram[m.TelegramID] = m.UserID
	}
	s.members[m.UserID] = cloneMember(&m)
	s.memberOrder = append(s.memberOrder, m.UserID)
	return nil
}

// GetMember возвращает участника.
func (s *Store) GetMember(_ context.Context, userID string) (*members.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return cloneMember(m), nil
}

// GetMemberByTelegramID ищет участника по Telegram.
func (s *Store) GetMemberByTelegramID(_ context.Context, telegramID int64) (*members.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byTelegram[telegramID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return cloneMember(s.members[id]), nil
}

// MarkVerified верифицирует участника.
func (s *Store) MarkVerified(_ context.Context, userID string, at time.Time) (*members.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	if m.IsVerified {
		return nil, common.ErrAlreadyVerified
	}
	m.IsVerified = true
	m.VerifiedAt = &at
	m.ScoresStale = true
	return cloneMember(m), nil
}

// ListMemberIDs возвращает id участников в порядке регистрации.
func (s *Store) ListMemberIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.memberOrder...), nil
}
