// Package access — правила доступа и интеграции DAO.
// models.go описывает уровни, правила, DAO и решения.
package access

import (
	"strings"
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
)

const maxNameLength = 100

// Level — уровень доступа. Уровни упорядочены: Basic < Contributor < Trusted < Elite.
type Level uint8

const (
	Basic Level = iota
	Contributor
	Trusted
	Elite
)

var levelNames = [...]string{"basic", "contributor", "trusted", "elite"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// Valid сообщает, известен ли уровень.
func (l Level) Valid() bool {
	return int(l) < len(levelNames)
}

// ParseLevel разбирает имя уровня.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return 0, common.ErrInvalidRule
}

// Rule — правило доступа: набор порогов для профиля.
// Правила не удаляются, только деактивируются.
type Rule struct {
	ID                   int64     `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	MinKarma             uint32    `db:"min_karma" json:"min_karma"`
	MinTrustFactor       uint32    `db:"min_trust_factor" json:"min_trust_factor"`
	RequiresVerification bool      `db:"requires_verification" json:"requires_verification"`
	MinContributions     uint64    `db:"min_contributions" json:"min_contributions"`
	Level                Level     `db:"access_level" json:"access_level"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

// Dao — интеграция DAO. Гейтинг либо по уровню, либо по своему
// набору правил (все должны пройти), см. GatingMode.
type Dao struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	RequiredLevel Level     `db:"required_access_level" json:"required_access_level"`
	CustomRuleIDs []int64   `db:"custom_rule_ids" json:"custom_rule_ids"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// GatingMode — как DAO сочетает уровень и свои правила.
type GatingMode string

const (
	// GatingOverride — непустой список правил заменяет проверку уровня.
	GatingOverride GatingMode = "override"
	// GatingAll — проверяются и уровень, и все правила.
	GatingAll GatingMode = "all"
)

// ParseGatingMode разбирает режим. Пустая строка — GatingOverride.
func ParseGatingMode(s string) (GatingMode, error) {
	switch GatingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", GatingOverride:
		return GatingOverride, nil
	case GatingAll:
		return GatingAll, nil
	}
	return "", common.ErrInvalidDao
}

// Reason — почему доступ выдан или нет. При отказе — первое
// непройденное условие в порядке: карма, доверие, верификация, вклады, активность.
type Reason string

const (
	ReasonPassed        Reason = "passed"
	ReasonKarma         Reason = "karma"
	ReasonTrust         Reason = "trust"
	ReasonVerification  Reason = "verification"
	ReasonContributions Reason = "contributions"
	ReasonInactive      Reason = "inactive"
	ReasonLevel         Reason = "level"
	ReasonDaoInactive   Reason = "dao_inactive"
)

// Decision — результат проверки одного правила.
type Decision struct {
	RuleID  int64  `json:"rule_id"`
	Granted bool   `json:"granted"`
	Reason  Reason `json:"reason"`
}

// DaoDecision — результат проверки DAO.
type DaoDecision struct {
	DaoID        int64      `json:"dao_id"`
	Granted      bool       `json:"granted"`
	Mode         GatingMode `json:"mode"`
	Reason       Reason     `json:"reason"`
	FailedRuleID int64      `json:"failed_rule_id,omitempty"`
	BestLevel    Level      `json:"best_level"`
}

// Checked — payload событий AccessGranted и AccessDenied.
type Checked struct {
	RuleID int64  `json:"rule_id,omitempty"`
	DaoID  int64  `json:"dao_id,omitempty"`
	Reason Reason `json:"reason"`
}

// RuleChanged — payload событий AccessRuleAdded и AccessRuleDeactivated.
type RuleChanged struct {
	By   string `json:"by"`
	Rule Rule   `json:"rule"`
}

// DaoChanged — payload событий DaoIntegrationAdded и DaoIntegrationDeactivated.
type DaoChanged struct {
	By  string `json:"by"`
	Dao Dao    `json:"dao"`
}
