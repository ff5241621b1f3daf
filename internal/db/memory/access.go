package memory

import (
	"context"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/access"
)

func cloneDao(d access.Dao) *access.Dao {
	d.CustomRuleIDs = append([]int64(nil), d.CustomRuleIDs...)
	return &d
}

// CreateRule сохраняет правило со следующим id.
func (s *Store) CreateRule(_ context.Context, r access.Rule) (*access.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = int64(len(s.rules)) + 1
	s.rules = append(s.rules, r)
	return &r, nil
}

// GetRule возвращает правило.
func (s *Store) GetRule(_ context.Context, id int64) (*access.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 1 || id > int64(len(s.rules)) {
		return nil, common.ErrRuleNotFound
	}
	r := s.rules[id-1]
	return &r, nil
}

// ListRules возвращает правила по возрастанию id.
func (s *Store) ListRules(_ context.Context, activeOnly bool) ([]access.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]access.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// DeactivateRule выключает правило.
func (s *Store) DeactivateRule(_ context.Context, id int64) (*access.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 1 || id > int64(len(s.rules)) {
		return nil, common.ErrRuleNotFound
	}
	r := &s.rules[id-1]
	if !r.Active {
		return nil, common.ErrAlreadyInactive
	}
	r.Active = false
	out := *r
	return &out, nil
}

// CreateDao сохраняет интеграцию со следующим id.
func (s *Store) CreateDao(_ context.Context, d access.Dao) (*access.Dao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.ID = int64(len(s.daos)) + 1
	s.daos = append(s.daos, *cloneDao(d))
	return cloneDao(d), nil
}

// GetDao возвращает интеграцию.
func (s *Store) GetDao(_ context.Context, id int64) (*access.Dao, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 1 || id > int64(len(s.daos)) {
		return nil, common.ErrDaoNotFound
	}
	return cloneDao(s.daos[id-1]), nil
}

// ListDaos возвращает интеграции по возрастанию id.
func (s *Store) ListDaos(_ context.Context, activeOnly bool) ([]access.Dao, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]access.Dao, 0, len(s.daos))
	for _, d := range s.daos {
		if activeOnly && !d.Active {
			continue
		}
		out = append(out, *cloneDao(d))
	}
	return out, nil
}

// DeactivateDao выключает интеграцию.
func (s *Store) DeactivateDao(_ context.Context, id int64) (*access.Dao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 1 || id > int64(len(s.daos)) {
		return nil, common.ErrDaoNotFound
	}
	d := &s.daos[id-1]
	if !d.Active {
		return nil, common.ErrAlreadyInactive
	}
	d.Active = false
	return cloneDao(*d), nil
}
