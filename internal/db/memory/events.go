package memory

import (
	"context"

	"serotonyl.ru/reputation-engine/internal/events"
)

// SaveEvent добавляет событие в журнал аудита.
func (s *Store) SaveEvent(_ context.Context, rec events.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Payload = append([]byte(nil), rec.Payload...)
	s.events = append(s.events, rec)
	return nil
}

// ListEvents возвращает события, новые первыми.
func (s *Store) ListEvents(_ context.Context, userID string, limit int) ([]events.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Record
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.events[i]
		if userID != "" && rec.UserID != userID {
			continue
		}
		rec.Payload = append([]byte(nil), rec.Payload...)
		out = append(out, rec)
	}
	return out, nil
}
