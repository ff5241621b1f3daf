// Package events — recorder.go сохраняет события в журнал аудита.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Record — событие в том виде, в котором оно лежит в хранилище.
type Record struct {
	ID      uuid.UUID
	Type    Type
	UserID  string
	At      time.Time
	Payload []byte // JSON
}

// Repository хранит журнал аудита. Записи только добавляются.
type Repository interface {
	SaveEvent(ctx context.Context, rec Record) error
	// ListEvents возвращает события пользователя (все, если userID пуст),
	// новые первыми, не больше limit.
	ListEvents(ctx context.Context, userID string, limit int) ([]Record, error)
}

// Recorder — подписчик шины, пишущий каждое событие в Repository.
type Recorder struct {
	repo Repository
}

// NewRecorder создаёт рекордер аудита.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Handle сохраняет событие. Ошибка хранилища не откатывает операцию ядра,
// поэтому только логируем.
func (r *Recorder) Handle(ctx context.Context, e Event) {
	rec, err := Encode(e)
	if err != nil {
		log.WithError(err).WithField("type", e.Type).Error("Не удалось сериализовать событие")
		return
	}
	if err := r.repo.SaveEvent(ctx, rec); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"type":    e.Type,
			"user_id": e.UserID,
		}).Error("Не удалось записать событие в журнал аудита")
	}
}

// List возвращает последние события пользователя.
func (r *Recorder) List(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	return r.repo.ListEvents(ctx, userID, limit)
}

// Encode переводит событие в запись журнала.
func Encode(e Event) (Record, error) {
	payload := []byte("{}")
	if e.Payload != nil {
		b, err := sonic.Marshal(e.Payload)
		if err != nil {
			return Record{}, fmt.Errorf("payload %s: %w", e.Type, err)
		}
		payload = b
	}
	return Record{
		ID:      e.ID,
		Type:    e.Type,
		UserID:  e.UserID,
		At:      e.At,
		Payload: payload,
	}, nil
}
