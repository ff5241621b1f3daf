// Package postgres — events.go работает с журналом аудита audit_events.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"serotonyl.ru/reputation-engine/internal/events"
)

// SaveEvent добавляет событие в журнал аудита.
func (s *Store) SaveEvent(ctx context.Context, rec events.Record) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_events (id, type, user_id, at, payload)
		VALUES ($1::uuid, $2, $3, $4, $5::jsonb)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID.String(), string(rec.Type), rec.UserID, rec.At, string(rec.Payload))
	if err != nil {
		return fmt.Errorf("ошибка записи события: %w", err)
	}
	return nil
}

// ListEvents возвращает события, новые первыми.
func (s *Store) ListEvents(ctx context.Context, userID string, limit int) ([]events.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, type, user_id, at, payload::text
		FROM audit_events
		WHERE $1 = '' OR user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения событий: %w", err)
	}
	defer rows.Close()

	var out []events.Record
	for rows.Next() {
		var rec events.Record
		var id, typ, payload string
		if err := rows.Scan(&id, &typ, &rec.UserID, &rec.At, &payload); err != nil {
			return nil, fmt.Errorf("ошибка чтения события: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("некорректный id события %q: %w", id, err)
		}
		rec.Type = events.Type(typ)
		rec.At = rec.At.UTC()
		rec.Payload = []byte(payload)
		out = append(out, rec)
	}
	return out, rows.Err()
}
