package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/reputation-engine/internal/features/karma"
)

func profile(karmaScore, trust uint32, verified bool, contributions uint64) karma.Profile {
	return karma.Profile{
		UserID:             "alice",
		KarmaScore:         karmaScore,
		TrustFactor:        trust,
		IsVerified:         verified,
		TotalContributions: contributions,
	}
}

func TestEvaluateKarmaBoundary(t *testing.T) {
	rule := Rule{ID: 1, MinKarma: 70, Active: true}

	d := Evaluate(rule, profile(69, 0, false, 0))
	assert.False(t, d.Granted)
	assert.Equal(t, ReasonKarma, d.Reason)

	d = Evaluate(rule, profile(70, 0, false, 0))
	assert.True(t, d.Granted)
	assert.Equal(t, ReasonPassed, d.Reason)
	assert.Equal(t, int64(1), d.RuleID)
}

func TestEvaluateReasonOrder(t *testing.T) {
	strict := Rule{
		ID:                   7,
		MinKarma:             50,
		MinTrustFactor:       5000,
		RequiresVerification: true,
		MinContributions:     10,
		Active:               true,
	}

	tests := []struct {
		name string
		rule Rule
		p    karma.Profile
		want Reason
	}{
		{"everything fails reports karma", strict, profile(0, 0, false, 0), ReasonKarma},
		{"trust before verification", strict, profile(50, 4999, false, 0), ReasonTrust},
		{"verification before contributions", strict, profile(50, 5000, false, 0), ReasonVerification},
		{"contributions", strict, profile(50, 5000, true, 9), ReasonContributions},
		{"inactive rule last", func() Rule { r := strict; r.Active = false; return r }(), profile(100, 10000, true, 100), ReasonInactive},
		{"inactive but failing reports threshold", func() Rule { r := strict; r.Active = false; return r }(), profile(10, 10000, true, 100), ReasonKarma},
		{"all pass", strict, profile(50, 5000, true, 10), ReasonPassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.rule, tt.p)
			assert.Equal(t, tt.want, d.Reason)
			assert.Equal(t, tt.want == ReasonPassed, d.Granted)
		})
	}
}

func TestGrantedLevels(t *testing.T) {
	rules := []Rule{
		{ID: 1, MinKarma: 10, Level: Contributor, Active: true},
		{ID: 2, MinKarma: 50, Level: Trusted, Active: true},
		{ID: 3, MinKarma: 0, Level: Elite, Active: false},
		{ID: 4, MinKarma: 5, Level: Contributor, Active: true},
	}

	assert.Equal(t, []Level{Basic}, GrantedLevels(rules, profile(0, 0, false, 0)))
	assert.Equal(t, []Level{Basic, Contributor}, GrantedLevels(rules, profile(20, 0, false, 0)))
	assert.Equal(t, []Level{Basic, Contributor, Trusted}, GrantedLevels(rules, profile(90, 0, false, 0)))
	assert.Equal(t, []Level{Basic}, GrantedLevels(nil, profile(100, 10000, true, 100)))
}

func TestBestLevel(t *testing.T) {
	assert.Equal(t, Basic, BestLevel(nil))
	assert.Equal(t, Trusted, BestLevel([]Level{Basic, Trusted, Contributor}))
}

func TestEvaluateDao(t *testing.T) {
	rules := map[int64]Rule{
		1: {ID: 1, MinKarma: 30, Level: Contributor, Active: true},
		2: {ID: 2, MinKarma: 80, Level: Trusted, Active: true},
		3: {ID: 3, MinTrustFactor: 4000, Level: Basic, Active: true},
		4: {ID: 4, MinKarma: 0, Level: Basic, Active: false},
	}

	tests := []struct {
		name       string
		dao        Dao
		p          karma.Profile
		mode       GatingMode
		wantGrant  bool
		wantReason Reason
		wantFailed int64
	}{
		{
			name:       "level gating passes",
			dao:        Dao{ID: 1, RequiredLevel: Contributor, Active: true},
			p:          profile(40, 0, false, 0),
			mode:       GatingOverride,
			wantGrant:  true,
			wantReason: ReasonPassed,
		},
		{
			name:       "level gating fails",
			dao:        Dao{ID: 1, RequiredLevel: Trusted, Active: true},
			p:          profile(40, 0, false, 0),
			mode:       GatingOverride,
			wantReason: ReasonLevel,
		},
		{
			name:       "custom rules replace level in override mode",
			dao:        Dao{ID: 2, RequiredLevel: Elite, CustomRuleIDs: []int64{1, 3}, Active: true},
			p:          profile(40, 4000, false, 0),
			mode:       GatingOverride,
			wantGrant:  true,
			wantReason: ReasonPassed,
		},
		{
			name:       "every custom rule must pass",
			dao:        Dao{ID: 2, CustomRuleIDs: []int64{1, 3}, Active: true},
			p:          profile(40, 3999, false, 0),
			mode:       GatingOverride,
			wantReason: ReasonTrust,
			wantFailed: 3,
		},
		{
			name:       "all mode checks level too",
			dao:        Dao{ID: 2, RequiredLevel: Elite, CustomRuleIDs: []int64{1, 3}, Active: true},
			p:          profile(40, 4000, false, 0),
			mode:       GatingAll,
			wantReason: ReasonLevel,
		},
		{
			name:       "all mode with both satisfied",
			dao:        Dao{ID: 2, RequiredLevel: Contributor, CustomRuleIDs: []int64{3}, Active: true},
			p:          profile(40, 4000, false, 0),
			mode:       GatingAll,
			wantGrant:  true,
			wantReason: ReasonPassed,
		},
		{
			name:       "inactive custom rule denies",
			dao:        Dao{ID: 3, CustomRuleIDs: []int64{4}, Active: true},
			p:          profile(100, 10000, true, 100),
			mode:       GatingOverride,
			wantReason: ReasonInactive,
			wantFailed: 4,
		},
		{
			name:       "missing custom rule denies",
			dao:        Dao{ID: 3, CustomRuleIDs: []int64{99}, Active: true},
			p:          profile(100, 10000, true, 100),
			mode:       GatingOverride,
			wantReason: ReasonInactive,
			wantFailed: 99,
		},
		{
			name:       "inactive dao",
			dao:        Dao{ID: 4, RequiredLevel: Basic, Active: false},
			p:          profile(100, 10000, true, 100),
			mode:       GatingOverride,
			wantReason: ReasonDaoInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateDao(tt.dao, rules, tt.p, tt.mode)
			assert.Equal(t, tt.wantGrant, d.Granted)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantFailed, d.FailedRuleID)
			assert.Equal(t, tt.dao.ID, d.DaoID)
			assert.Equal(t, tt.mode, d.Mode)
		})
	}
}

func TestEvaluateDaoReportsBestLevel(t *testing.T) {
	rules := map[int64]Rule{
		1: {ID: 1, MinKarma: 30, Level: Contributor, Active: true},
		2: {ID: 2, MinKarma: 80, Level: Trusted, Active: true},
	}
	d := EvaluateDao(Dao{ID: 1, RequiredLevel: Elite, Active: true}, rules, profile(90, 0, false, 0), GatingOverride)
	assert.Equal(t, Trusted, d.BestLevel)
	assert.Equal(t, ReasonLevel, d.Reason)
}

func TestParseLevelAndMode(t *testing.T) {
	l, err := ParseLevel(" Trusted ")
	assert.NoError(t, err)
	assert.Equal(t, Trusted, l)

	_, err = ParseLevel("god")
	assert.Error(t, err)

	m, err := ParseGatingMode("")
	assert.NoError(t, err)
	assert.Equal(t, GatingOverride, m)

	m, err = ParseGatingMode("ALL")
	assert.NoError(t, err)
	assert.Equal(t, GatingAll, m)

	_, err = ParseGatingMode("any")
	assert.Error(t, err)
}
