// Package permissions — кэш разрешений: какие уровни пользователь получил
// при последней проверке, когда и сколько раз проверялся.
// Кэш только для отображения и аналитики, решения по доступу его не читают.
package permissions

import (
	"time"

	"serotonyl.ru/reputation-engine/internal/features/access"
)

// Record — запись кэша.
type Record struct {
	UserID        string         `db:"user_id" json:"user_id"`
	GrantedLevels []access.Level `db:"granted_levels" json:"granted_levels"`
	LastChecked   time.Time      `db:"last_checked" json:"last_checked"`
	AccessCount   uint64         `db:"access_count" json:"access_count"`
	Stale         bool           `db:"stale" json:"stale"` // профиль или правила менялись после проверки
}

// Has сообщает, есть ли уровень в записи.
func (r *Record) Has(l access.Level) bool {
	for _, g := range r.GrantedLevels {
		if g == l {
			return true
		}
	}
	return false
}
