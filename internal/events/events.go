// Package events описывает события движка репутации и синхронную шину,
// через которую внешний слой (аудит, уведомления, UI) подписывается на них.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Type — тип события.
type Type string

const (
	UserRegistered            Type = "user_registered"
	UserVerified              Type = "user_verified"
	ContributionAdded         Type = "contribution_added"
	KarmaCalculated           Type = "karma_calculated"
	WeightsUpdated            Type = "weights_updated"
	AccessRuleAdded           Type = "access_rule_added"
	AccessRuleDeactivated     Type = "access_rule_deactivated"
	DaoIntegrationAdded       Type = "dao_integration_added"
	DaoIntegrationDeactivated Type = "dao_integration_deactivated"
	AccessGranted             Type = "access_granted"
	AccessDenied              Type = "access_denied"
)

// Event — одно событие. Payload — структура из пакета, который событие создал.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Type    Type      `json:"type"`
	UserID  string    `json:"user_id,omitempty"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Publisher — то, чем сервисы публикуют события.
type Publisher interface {
	Publish(ctx context.Context, typ Type, userID string, payload any)
}

// Handler получает события от шины. Не должен блокироваться на I/O надолго.
type Handler func(ctx context.Context, e Event)

// Bus — синхронная шина: Publish вызывает подписчиков по очереди в той же горутине.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	now      func() time.Time
}

// NewBus создаёт шину. now == nil — используем time.Now.
func NewBus(now func() time.Time) *Bus {
	if now == nil {
		now = time.Now
	}
	return &Bus{handlers: make(map[int]Handler), now: now}
}

// Subscribe добавляет подписчика и возвращает функцию отписки.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish создаёт событие и раздаёт его подписчикам.
// Паника в подписчике не роняет операцию ядра.
func (b *Bus) Publish(ctx context.Context, typ Type, userID string, payload any) {
	e := Event{
		ID:      uuid.New(),
		Type:    typ,
		UserID:  userID,
		At:      b.now().UTC(),
		Payload: payload,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for i := 0; i < b.nextID; i++ {
		if h, ok := b.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"component": "events",
				"type":      e.Type,
				"panic":     r,
			}).Error("Паника в подписчике события")
		}
	}()
	h(ctx, e)
}

// Discard — Publisher, который ничего не делает (для тестов сервисов).
type Discard struct{}

func (Discard) Publish(context.Context, Type, string, any) {}
