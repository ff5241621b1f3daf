// Package memory — хранилище движка в памяти процесса.
// Реализует те же репозитории, что и internal/db/postgres; используется
// в тестах и при STORAGE_BACKEND=memory. Все методы возвращают копии.
package memory

import (
	"sync"
	"time"

	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/admin"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
	"serotonyl.ru/reputation-engine/internal/features/permissions"
)

// Проверка, что Store реализует все репозитории.
var (
	_ members.Repository     = (*Store)(nil)
	_ ledger.Repository      = (*Store)(nil)
	_ karma.Repository       = (*Store)(nil)
	_ access.Repository      = (*Store)(nil)
	_ permissions.Repository = (*Store)(nil)
	_ admin.Repository       = (*Store)(nil)
	_ events.Repository      = (*Store)(nil)
)

// Store — хранилище в памяти.
type Store struct {
	mu sync.RWMutex

	members     map[string]*members.Member
	memberOrder []string
	byTelegram  map[int64]string

	contributions map[string][]ledger.Contribution
	nextContribID int64
	scores        map[string]*karma.Score
	weights       *karma.Weights
	rules         []access.Rule // индекс = id-1
	daos          []access.Dao  // индекс = id-1
	permissions   map[string]*permissions.Record
	sessions      []admin.Session
	nextSessionID int64
	attempts      []admin.LoginAttempt
	nextAttemptID int64
	events        []events.Record
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		members:       make(map[string]*members.Member),
		byTelegram:    make(map[int64]string),
		contributions: make(map[string][]ledger.Contribution),
		scores:        make(map[string]*karma.Score),
		permissions:   make(map[string]*permissions.Record),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
