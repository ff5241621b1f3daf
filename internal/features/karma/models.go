// Package karma считает репутацию пользователя по журналу вкладов:
// суммы по категориям, итоговую карму 0..100 и фактор доверия 0..10000.
// models.go описывает веса, параметры и профиль.
package karma

import (
	"time"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
)

const (
	// MaxKarma — верхняя граница кармы.
	MaxKarma = 100
	// MaxTrust — верхняя граница фактора доверия (базисные пункты, 10000 = 100%).
	MaxTrust = 10000
	// WeightScale — шкала весов категорий (10000 = 100%).
	WeightScale = 10000
	// DefaultNormalization — делитель кармы. С ним 10 вкладов по 20 баллов
	// в категории с весом 100% дают карму 50.
	DefaultNormalization = 4
	// MaxNormalization — предел делителя, при котором расчёт не переполняет uint64.
	MaxNormalization = 1_000_000
)

// Weights — веса категорий по шкале WeightScale.
// Сумма не обязана быть равна WeightScale: калькулятор нормирует сам.
type Weights struct {
	Code       uint32    `db:"code_weight" json:"code"`
	Governance uint32    `db:"governance_weight" json:"governance"`
	Forum      uint32    `db:"forum_weight" json:"forum"`
	Identity   uint32    `db:"identity_weight" json:"identity"`
	Version    int64     `db:"version" json:"version"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// For возвращает вес категории.
func (w Weights) For(c ledger.Category) uint32 {
	switch c {
	case ledger.Code:
		return w.Code
	case ledger.Governance:
		return w.Governance
	case ledger.Forum:
		return w.Forum
	case ledger.IdentityVerification:
		return w.Identity
	}
	return 0
}

// Sum — сумма весов.
func (w Weights) Sum() uint64 {
	return uint64(w.Code) + uint64(w.Governance) + uint64(w.Forum) + uint64(w.Identity)
}

// Validate проверяет, что каждый вес не больше WeightScale.
func (w Weights) Validate() error {
	for _, c := range ledger.Categories {
		if w.For(c) > WeightScale {
			return common.ErrInvalidWeights
		}
	}
	return nil
}

// sameValues сравнивает веса без версии и времени.
func (w Weights) sameValues(o Weights) bool {
	return w.Code == o.Code && w.Governance == o.Governance && w.Forum == o.Forum && w.Identity == o.Identity
}

// Params — параметры расчёта.
type Params struct {
	Normalization uint64 // делитель кармы
	VerifiedBonus uint32 // прибавка доверия за верификацию
	ActivityStep  uint32 // прибавка доверия за каждое удвоение числа вкладов
	ActivityCap   uint32 // предел прибавки за активность
}

// DefaultParams возвращает параметры по умолчанию.
func DefaultParams() Params {
	return Params{
		Normalization: DefaultNormalization,
		VerifiedBonus: 4000,
		ActivityStep:  1500,
		ActivityCap:   6000,
	}
}

// Score — сохранённый результат расчёта.
type Score struct {
	UserID         string
	CategoryScores map[ledger.Category]uint64
	KarmaScore     uint32
	TrustFactor    uint32
	WeightsVersion int64 // с какими весами посчитано
	CalculatedAt   time.Time
}

// Profile — профиль пользователя, который видит внешний слой.
type Profile struct {
	UserID             string                     `json:"user_id"`
	CategoryScores     map[ledger.Category]uint64 `json:"category_scores"`
	KarmaScore         uint32                     `json:"karma_score"`
	TrustFactor        uint32                     `json:"trust_factor"`
	TotalContributions uint64                     `json:"total_contributions"`
	IsVerified         bool                       `json:"is_verified"`
	RegisteredAt       time.Time                  `json:"registered_at"`
	LastActivityAt     time.Time                  `json:"last_activity_at"`
}

// Calculated — payload события KarmaCalculated.
type Calculated struct {
	KarmaScore     uint32 `json:"karma_score"`
	TrustFactor    uint32 `json:"trust_factor"`
	Total          uint64 `json:"total_contributions"`
	WeightsVersion int64  `json:"weights_version"`
}

// WeightsChanged — payload события WeightsUpdated.
type WeightsChanged struct {
	ChangedBy string  `json:"changed_by"`
	Old       Weights `json:"old"`
	New       Weights `json:"new"`
}
