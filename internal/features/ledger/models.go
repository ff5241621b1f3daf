// Package ledger — журнал вкладов пользователей.
// Записи только добавляются и никогда не меняются.
// models.go описывает категории и запись вклада.
package ledger

import (
	"strings"
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
)

const (
	// MaxImpactScore — верхняя граница оценки одного вклада.
	MaxImpactScore = 100
	// MaxDescriptionLength — максимум символов в описании вклада.
	MaxDescriptionLength = 500
)

// Category — источник вклада.
type Category uint8

const (
	Code Category = iota
	Governance
	Forum
	IdentityVerification
)

// Categories — все категории в порядке хранения.
var Categories = []Category{Code, Governance, Forum, IdentityVerification}

var categoryNames = map[Category]string{
	Code:                 "code",
	Governance:           "governance",
	Forum:                "forum",
	IdentityVerification: "identity_verification",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Valid сообщает, известна ли категория.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// ParseCategory разбирает имя категории (регистр не важен).
// Понимает и короткие формы: "identity", "gov".
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "code":
		return Code, nil
	case "governance", "gov":
		return Governance, nil
	case "forum":
		return Forum, nil
	case "identity_verification", "identity":
		return IdentityVerification, nil
	}
	return 0, common.ErrInvalidCategory
}

// Contribution — одна запись журнала.
type Contribution struct {
	ID          int64     `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Category    Category  `db:"category"`
	ImpactScore uint8     `db:"impact_score"` // 0..100
	Description string    `db:"description"`
	Verified    bool      `db:"verified"` // верифицирован ли владелец на момент записи
	Timestamp   time.Time `db:"created_at"`
}

// Added — payload события ContributionAdded.
type Added struct {
	ContributionID int64  `json:"contribution_id"`
	Category       string `json:"category"`
	ImpactScore    uint8  `json:"impact_score"`
	Total          uint64 `json:"total_contributions"`
}
