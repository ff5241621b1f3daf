// Package access — evaluator.go: чистые функции проверки правил.
package access

import (
	"sort"

	"serotonyl.ru/reputation-engine/internal/features/karma"
)

// Evaluate проверяет правило по профилю. Все пороги включительные.
func Evaluate(r Rule, p karma.Profile) Decision {
	d := Decision{RuleID: r.ID}
	switch {
	case p.KarmaScore < r.MinKarma:
		d.Reason = ReasonKarma
	case p.TrustFactor < r.MinTrustFactor:
		d.Reason = ReasonTrust
	case r.RequiresVerification && !p.IsVerified:
		d.Reason = ReasonVerification
	case p.TotalContributions < r.MinContributions:
		d.Reason = ReasonContributions
	case !r.Active:
		d.Reason = ReasonInactive
	default:
		d.Granted = true
		d.Reason = ReasonPassed
	}
	return d
}

// GrantedLevels возвращает уровни всех пройденных активных правил,
// по возрастанию и без повторов. Basic есть всегда.
func GrantedLevels(rules []Rule, p karma.Profile) []Level {
	seen := map[Level]bool{Basic: true}
	for _, r := range rules {
		if !r.Active || seen[r.Level] {
			continue
		}
		if Evaluate(r, p).Granted {
			seen[r.Level] = true
		}
	}

	levels := make([]Level, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// BestLevel — наибольший уровень из списка, Basic для пустого.
func BestLevel(levels []Level) Level {
	best := Basic
	for _, l := range levels {
		if l > best {
			best = l
		}
	}
	return best
}

// EvaluateDao проверяет DAO.
//
// Параметры:
//   - rules: все правила, индексированные по id (нужны и активные для уровня,
//     и пользовательские правила DAO, даже если они деактивированы)
//   - mode: режим сочетания уровня и пользовательских правил
func EvaluateDao(dao Dao, rules map[int64]Rule, p karma.Profile, mode GatingMode) DaoDecision {
	all := make([]Rule, 0, len(rules))
	for _, r := range rules {
		all = append(all, r)
	}
	best := BestLevel(GrantedLevels(all, p))

	d := DaoDecision{DaoID: dao.ID, Mode: mode, BestLevel: best}
	if !dao.Active {
		d.Reason = ReasonDaoInactive
		return d
	}

	checkLevel := mode == GatingAll || len(dao.CustomRuleIDs) == 0
	if checkLevel && best < dao.RequiredLevel {
		d.Reason = ReasonLevel
		return d
	}

	for _, id := range dao.CustomRuleIDs {
		r, ok := rules[id]
		if !ok {
			d.Reason = ReasonInactive
			d.FailedRuleID = id
			return d
		}
		if rd := Evaluate(r, p); !rd.Granted {
			d.Reason = rd.Reason
			d.FailedRuleID = id
			return d
		}
	}

	d.Granted = true
	d.Reason = ReasonPassed
	return d
}
