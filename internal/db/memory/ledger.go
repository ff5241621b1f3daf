package memory

import (
	"context"
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
)

// AppendContribution добавляет вклад и обновляет владельца под одним замком.
func (s *Store) AppendContribution(_ context.Context, c ledger.Contribution) (*ledger.Contribution, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[c.OwnerID]
	if !ok {
		return nil, 0, common.ErrUnknownOwner
	}

	s.nextContribID++
	c.ID = s.nextContribID
	c.Verified = m.IsVerified
	if c.Timestamp.IsZero() {
		c.Timestamp = common.TruncateToSecond(time.Now())
	}
	s.contributions[c.OwnerID] = append(s.contributions[c.OwnerID], c)

	m.TotalContributions++
	m.LastActivityAt = c.Timestamp
	m.ScoresStale = true

	return &c, m.TotalContributions, nil
}

// ListContributions возвращает вклады владельца в порядке добавления.
func (s *Store) ListContributions(_ context.Context, ownerID string) ([]ledger.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.members[ownerID]; !ok {
		return nil, common.ErrUserNotFound
	}
	return append([]ledger.Contribution{}, s.contributions[ownerID]...), nil
}

// CountContributions возвращает количество вкладов владельца.
func (s *Store) CountContributions(_ context.Context, ownerID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.members[ownerID]; !ok {
		return 0, common.ErrUserNotFound
	}
	return uint64(len(s.contributions[ownerID])), nil
}
