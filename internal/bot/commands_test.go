package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

type fakeEngine struct {
	profile       *karma.Profile
	contributions []ledger.Contribution
	levels        []access.Level
	rules         []access.Rule
	decision      access.Decision
	daoDecision   access.DaoDecision
	err           error

	checkedRule int64
	verified    string
}

func (f *fakeEngine) GetMemberByTelegramID(context.Context, int64) (*members.Member, error) {
	return nil, common.ErrUserNotFound
}

func (f *fakeEngine) VerifyUser(_ context.Context, callerID, userID string) (*members.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.verified = callerID + "→" + userID
	return &members.Member{UserID: userID, DisplayName: "Bob"}, nil
}

func (f *fakeEngine) GetContributions(context.Context, string) ([]ledger.Contribution, error) {
	return f.contributions, f.err
}

func (f *fakeEngine) GetProfile(context.Context, string) (*karma.Profile, error) {
	return f.profile, f.err
}

func (f *fakeEngine) CheckAccess(_ context.Context, _ string, ruleID int64) (access.Decision, error) {
	f.checkedRule = ruleID
	return f.decision, f.err
}

func (f *fakeEngine) CheckDaoAccess(context.Context, string, int64) (access.DaoDecision, error) {
	return f.daoDecision, f.err
}

func (f *fakeEngine) GrantedLevels(context.Context, string) ([]access.Level, error) {
	return f.levels, f.err
}

func (f *fakeEngine) ListAccessRules(context.Context, bool) ([]access.Rule, error) {
	return f.rules, f.err
}

var alice = &members.Member{UserID: "alice"}

func TestCommandsHelpAndUnknown(t *testing.T) {
	c := NewCommands(&fakeEngine{})
	ctx := context.Background()

	reply, handled := c.Handle(ctx, nil, "help", nil)
	assert.True(t, handled)
	assert.Equal(t, helpText, reply)

	_, handled = c.Handle(ctx, alice, "танцуй", nil)
	assert.False(t, handled)

	reply, handled = c.Handle(ctx, nil, "профиль", nil)
	assert.True(t, handled)
	assert.Equal(t, notLinked, reply)
}

func TestCommandsProfile(t *testing.T) {
	f := &fakeEngine{profile: &karma.Profile{
		UserID:             "alice",
		KarmaScore:         60,
		TrustFactor:        7000,
		IsVerified:         true,
		TotalContributions: 3,
		CategoryScores:     map[ledger.Category]uint64{ledger.Code: 240},
	}}
	reply, _ := NewCommands(f).Handle(context.Background(), alice, "карма", nil)

	assert.Contains(t, reply, "Карма: 60/100")
	assert.Contains(t, reply, "Доверие: 70.00%")
	assert.Contains(t, reply, "Верифицирован: да")
	assert.Contains(t, reply, "code: 240")
	assert.NotContains(t, reply, "forum")
}

func TestCommandsContributionsNewestFirst(t *testing.T) {
	f := &fakeEngine{}
	for i := 1; i <= 7; i++ {
		f.contributions = append(f.contributions, ledger.Contribution{
			ID:          int64(i),
			Category:    ledger.Forum,
			ImpactScore: uint8(i),
			Timestamp:   time.Date(2026, 3, i, 0, 0, 0, 0, time.UTC),
		})
	}
	f.contributions[6].Description = strings.Repeat("я", 80)

	reply, _ := NewCommands(f).Handle(context.Background(), alice, "вклады", nil)
	lines := strings.Split(reply, "\n")

	assert.Equal(t, "📦 Последние вклады (5 из 7):", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "#7 forum +7 07.03.2026"))
	assert.True(t, strings.HasSuffix(lines[1], strings.Repeat("я", 60)+"..."))
	assert.True(t, strings.HasPrefix(lines[5], "#3 "))
	assert.Len(t, lines, 6)

	f.contributions = nil
	reply, _ = NewCommands(f).Handle(context.Background(), alice, "вклады", nil)
	assert.Equal(t, "📦 Вкладов пока нет", reply)
}

func TestCommandsLevelsAndRules(t *testing.T) {
	f := &fakeEngine{
		levels: []access.Level{access.Basic, access.Contributor},
		rules: []access.Rule{{
			ID: 2, Name: "core", MinKarma: 70, MinTrustFactor: 4750,
			RequiresVerification: true, MinContributions: 3, Level: access.Trusted,
		}},
	}
	c := NewCommands(f)

	reply, _ := c.Handle(context.Background(), alice, "уровень", nil)
	assert.Equal(t, "🔑 Уровни: basic, contributor\nЛучший: contributor", reply)

	reply, _ = c.Handle(context.Background(), alice, "правила", nil)
	assert.Contains(t, reply, "#2 core [trusted] карма ≥ 70, доверие ≥ 47.50%, вкладов ≥ 3, верификация")
}

func TestCommandsCheckRule(t *testing.T) {
	f := &fakeEngine{decision: access.Decision{Granted: false, Reason: access.ReasonTrust}}
	c := NewCommands(f)
	ctx := context.Background()

	reply, _ := c.Handle(ctx, alice, "доступ", []string{"#4"})
	assert.Equal(t, int64(4), f.checkedRule)
	assert.Equal(t, "⛔ Доступ по правилу #4 запрещён: недостаточно доверия", reply)

	f.decision = access.Decision{Granted: true}
	reply, _ = c.Handle(ctx, alice, "доступ", []string{"4"})
	assert.Equal(t, "✅ Доступ по правилу #4 разрешён", reply)

	for _, args := range [][]string{nil, {"0"}, {"abc"}, {"1", "2"}} {
		reply, _ = c.Handle(ctx, alice, "доступ", args)
		assert.Contains(t, reply, "Использование")
	}

	f.err = common.ErrRuleNotFound
	reply, _ = c.Handle(ctx, alice, "доступ", []string{"9"})
	assert.Equal(t, "❌ "+common.ErrRuleNotFound.Error(), reply)

	f.err = errors.New("connection reset")
	reply, _ = c.Handle(ctx, alice, "доступ", []string{"9"})
	assert.Equal(t, internalError, reply)
}

func TestCommandsCheckDao(t *testing.T) {
	f := &fakeEngine{daoDecision: access.DaoDecision{Reason: access.ReasonInactive, FailedRuleID: 3}}
	c := NewCommands(f)

	reply, _ := c.Handle(context.Background(), alice, "дао", []string{"1"})
	assert.Equal(t, "⛔ Доступ к DAO #1 запрещён: правило неактивно (правило #3)", reply)

	f.daoDecision = access.DaoDecision{Granted: true, BestLevel: access.Elite}
	reply, _ = c.Handle(context.Background(), alice, "дао", []string{"1"})
	assert.Equal(t, "✅ Доступ к DAO #1 разрешён (уровень elite)", reply)
}

func TestCommandsVerify(t *testing.T) {
	f := &fakeEngine{}
	c := NewCommands(f)

	reply, _ := c.Handle(context.Background(), alice, "верифицировать", []string{"bob"})
	assert.Equal(t, "✅ Bob верифицирован", reply)
	assert.Equal(t, "alice→bob", f.verified)

	f.err = common.ErrNotOwner
	reply, _ = c.Handle(context.Background(), alice, "верифицировать", []string{"bob"})
	assert.Equal(t, "❌ "+common.ErrNotOwner.Error(), reply)

	// цель не найдена: это не «Telegram не привязан»
	f.err = common.ErrUserNotFound
	reply, _ = c.Handle(context.Background(), alice, "верифицировать", []string{"ghost"})
	assert.Equal(t, "❌ "+common.ErrUserNotFound.Error(), reply)
}

func TestFormatBasisPoints(t *testing.T) {
	assert.Equal(t, "0.00%", formatBasisPoints(0))
	assert.Equal(t, "47.50%", formatBasisPoints(4750))
	assert.Equal(t, "100.00%", formatBasisPoints(10000))
	assert.Equal(t, "0.05%", formatBasisPoints(5))
}
