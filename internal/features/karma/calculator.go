// Package karma — calculator.go содержит чистые функции расчёта.
package karma

import (
	"math"

	"serotonyl.ru/reputation-engine/internal/features/ledger"
)

// Karma считает итоговую карму:
//
//	karma = min(MaxKarma, Σ score[c]·w[c] / (max(Σw, WeightScale) · N))
//
// Если сумма весов больше 100%, веса ужимаются пропорционально.
// Функция монотонна по каждой категории и всегда в [0, MaxKarma].
func Karma(scores map[ledger.Category]uint64, w Weights, normalization uint64) uint32 {
	if normalization == 0 {
		normalization = 1
	}
	if normalization > MaxNormalization {
		normalization = MaxNormalization
	}

	scale := w.Sum()
	if scale < WeightScale {
		scale = WeightScale
	}
	denom := scale * normalization
	// Баллы выше saturation уже дают MaxKarma при любом ненулевом весе.
	saturation := uint64(MaxKarma) * denom

	var weighted uint64
	for _, c := range ledger.Categories {
		s := scores[c]
		if s > saturation {
			s = saturation
		}
		weighted += s * uint64(w.For(c))
	}

	karma := weighted / denom
	if karma > MaxKarma {
		return MaxKarma
	}
	return uint32(karma)
}

// Trust считает фактор доверия:
//
//	trust = min(MaxTrust, verified·VerifiedBonus + min(ActivityCap, ⌊ActivityStep·log2(1+n)⌋))
func Trust(verified bool, contributions uint64, p Params) uint32 {
	var trust uint64
	if verified {
		trust += uint64(p.VerifiedBonus)
	}

	activity := uint64(math.Floor(float64(p.ActivityStep) * math.Log2(1+float64(contributions))))
	if activity > uint64(p.ActivityCap) {
		activity = uint64(p.ActivityCap)
	}
	trust += activity

	if trust > MaxTrust {
		return MaxTrust
	}
	return uint32(trust)
}

// Compute строит результат расчёта по журналу пользователя.
func Compute(userID string, verified bool, contributions []ledger.Contribution, w Weights, p Params) Score {
	scores := ledger.CategoryScores(contributions)
	return Score{
		UserID:         userID,
		CategoryScores: scores,
		KarmaScore:     Karma(scores, w, p.Normalization),
		TrustFactor:    Trust(verified, uint64(len(contributions)), p),
		WeightsVersion: w.Version,
	}
}
