// Package bot — commands.go формирует ответы на команды участников.
// Команды только читают состояние движка, кроме верификации (её делает владелец).
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/bot/middleware"
	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

// Engine — то, что командам нужно от движка.
type Engine interface {
	GetMemberByTelegramID(ctx context.Context, telegramID int64) (*members.Member, error)
	VerifyUser(ctx context.Context, callerID, userID string) (*members.Member, error)
	GetContributions(ctx context.Context, userID string) ([]ledger.Contribution, error)
	GetProfile(ctx context.Context, userID string) (*karma.Profile, error)
	CheckAccess(ctx context.Context, userID string, ruleID int64) (access.Decision, error)
	CheckDaoAccess(ctx context.Context, userID string, daoID int64) (access.DaoDecision, error)
	GrantedLevels(ctx context.Context, userID string) ([]access.Level, error)
	ListAccessRules(ctx context.Context, activeOnly bool) ([]access.Rule, error)
}

const (
	helpText = "Команды:\n" +
		"!профиль — карма и доверие\n" +
		"!вклады — последние вклады\n" +
		"!уровень — доступные уровни\n" +
		"!правила — активные правила доступа\n" +
		"!доступ <id правила> — проверить правило\n" +
		"!дао <id DAO> — проверить доступ к DAO\n" +
		"Владельцам: /login <пароль>, /logout, !верифицировать <id>"

	notLinked     = "❌ Ваш Telegram не привязан к профилю"
	internalError = "❌ Внутренняя ошибка, попробуйте позже"

	recentContributions = 5
)

// Commands отвечает на команды участников.
type Commands struct {
	engine Engine
}

// NewCommands создаёт обработчик команд.
func NewCommands(engine Engine) *Commands {
	return &Commands{engine: engine}
}

// Handle возвращает ответ на команду. member может быть nil (отправитель не привязан).
// handled=false — команда неизвестна, бот молчит.
func (c *Commands) Handle(ctx context.Context, member *members.Member, cmd string, args []string) (reply string, handled bool) {
	switch cmd {
	case "start", "help", "помощь":
		return helpText, true
	}

	var fn func(ctx context.Context, userID string, args []string) string
	switch cmd {
	case "профиль", "карма":
		fn = c.profile
	case "вклады":
		fn = c.contributions
	case "уровень":
		fn = c.levels
	case "правила":
		fn = c.rules
	case "доступ":
		fn = c.checkRule
	case "дао":
		fn = c.checkDao
	case "верифицировать":
		fn = c.verify
	default:
		return "", false
	}

	if member == nil {
		return notLinked, true
	}
	return fn(ctx, member.UserID, args), true
}

func (c *Commands) profile(ctx context.Context, userID string, _ []string) string {
	p, err := c.engine.GetProfile(ctx, userID)
	if err != nil {
		return errorReply(err, userID)
	}

	verified := "нет"
	if p.IsVerified {
		verified = "да"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n", p.UserID)
	fmt.Fprintf(&sb, "⭐ Карма: %d/%d\n", p.KarmaScore, karma.MaxKarma)
	fmt.Fprintf(&sb, "🛡 Доверие: %s\n", formatBasisPoints(p.TrustFactor))
	fmt.Fprintf(&sb, "✔️ Верифицирован: %s\n", verified)
	fmt.Fprintf(&sb, "📦 Вкладов: %d\n", p.TotalContributions)
	for _, cat := range ledger.Categories {
		if score := p.CategoryScores[cat]; score > 0 {
			fmt.Fprintf(&sb, "  • %s: %d\n", cat, score)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) contributions(ctx context.Context, userID string, _ []string) string {
	list, err := c.engine.GetContributions(ctx, userID)
	if err != nil {
		return errorReply(err, userID)
	}
	if len(list) == 0 {
		return "📦 Вкладов пока нет"
	}

	start := 0
	if len(list) > recentContributions {
		start = len(list) - recentContributions
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 Последние вклады (%d из %d):\n", len(list)-start, len(list))
	for i := len(list) - 1; i >= start; i-- {
		contrib := list[i]
		fmt.Fprintf(&sb, "#%d %s +%d %s", contrib.ID, contrib.Category, contrib.ImpactScore,
			contrib.Timestamp.Format("02.01.2006"))
		if contrib.Description != "" {
			fmt.Fprintf(&sb, " — %s", middleware.Truncate(contrib.Description, 60))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) levels(ctx context.Context, userID string, _ []string) string {
	levels, err := c.engine.GrantedLevels(ctx, userID)
	if err != nil {
		return errorReply(err, userID)
	}
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = l.String()
	}
	return fmt.Sprintf("🔑 Уровни: %s\nЛучший: %s", strings.Join(names, ", "), access.BestLevel(levels))
}

func (c *Commands) rules(ctx context.Context, userID string, _ []string) string {
	rules, err := c.engine.ListAccessRules(ctx, true)
	if err != nil {
		return errorReply(err, userID)
	}
	if len(rules) == 0 {
		return "📜 Активных правил нет"
	}

	var sb strings.Builder
	sb.WriteString("📜 Правила доступа:\n")
	for _, r := range rules {
		fmt.Fprintf(&sb, "#%d %s [%s] карма ≥ %d, доверие ≥ %s, вкладов ≥ %d",
			r.ID, r.Name, r.Level, r.MinKarma, formatBasisPoints(r.MinTrustFactor), r.MinContributions)
		if r.RequiresVerification {
			sb.WriteString(", верификация")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) checkRule(ctx context.Context, userID string, args []string) string {
	id, ok := parseID(args)
	if !ok {
		return "Использование: !доступ <id правила>"
	}
	d, err := c.engine.CheckAccess(ctx, userID, id)
	if err != nil {
		return errorReply(err, userID)
	}
	if d.Granted {
		return fmt.Sprintf("✅ Доступ по правилу #%d разрешён", id)
	}
	return fmt.Sprintf("⛔ Доступ по правилу #%d запрещён: %s", id, reasonText(d.Reason))
}

func (c *Commands) checkDao(ctx context.Context, userID string, args []string) string {
	id, ok := parseID(args)
	if !ok {
		return "Использование: !дао <id DAO>"
	}
	d, err := c.engine.CheckDaoAccess(ctx, userID, id)
	if err != nil {
		return errorReply(err, userID)
	}
	if d.Granted {
		return fmt.Sprintf("✅ Доступ к DAO #%d разрешён (уровень %s)", id, d.BestLevel)
	}
	reply := fmt.Sprintf("⛔ Доступ к DAO #%d запрещён: %s", id, reasonText(d.Reason))
	if d.FailedRuleID != 0 {
		reply += fmt.Sprintf(" (правило #%d)", d.FailedRuleID)
	}
	return reply
}

func (c *Commands) verify(ctx context.Context, callerID string, args []string) string {
	if len(args) != 1 {
		return "Использование: !верифицировать <id пользователя>"
	}
	m, err := c.engine.VerifyUser(ctx, callerID, args[0])
	if err != nil {
		return errorReply(err, callerID)
	}
	return fmt.Sprintf("✅ %s верифицирован", m.DisplayLabel())
}

// errorReply превращает ошибку движка в ответ. Доменные ошибки показываем как есть,
// остальное — в лог.
func errorReply(err error, userID string) string {
	if common.Kind(err) == "internal" {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка обработки команды")
		return internalError
	}
	return "❌ " + err.Error()
}

func reasonText(r access.Reason) string {
	switch r {
	case access.ReasonKarma:
		return "недостаточно кармы"
	case access.ReasonTrust:
		return "недостаточно доверия"
	case access.ReasonVerification:
		return "нужна верификация"
	case access.ReasonContributions:
		return "мало вкладов"
	case access.ReasonInactive:
		return "правило неактивно"
	case access.ReasonLevel:
		return "недостаточный уровень"
	case access.ReasonDaoInactive:
		return "DAO неактивно"
	default:
		return string(r)
	}
}

// formatBasisPoints: 4750 → "47.50%".
func formatBasisPoints(bp uint32) string {
	return fmt.Sprintf("%d.%02d%%", bp/100, bp%100)
}

func parseID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
