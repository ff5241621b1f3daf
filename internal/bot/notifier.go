// Package bot — notifier.go пересылает события движка в чат аудита.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/bot/middleware"
	"serotonyl.ru/reputation-engine/internal/events"
	"serotonyl.ru/reputation-engine/internal/features/access"
	"serotonyl.ru/reputation-engine/internal/features/karma"
	"serotonyl.ru/reputation-engine/internal/features/ledger"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

// Sender отправляет текст в чат.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

const defaultQueueSize = 256

// Notifier — подписчик шины. Handle не блокируется: событие кладётся в очередь,
// при переполнении выбрасывается.
type Notifier struct {
	sender  Sender
	chatID  int64
	queue   chan events.Event
	dropped atomic.Int64
}

// NewNotifier создаёт уведомитель. size <= 0 — размер очереди по умолчанию.
func NewNotifier(sender Sender, chatID int64, size int) *Notifier {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Notifier{
		sender: sender,
		chatID: chatID,
		queue:  make(chan events.Event, size),
	}
}

// Handle ставит событие в очередь. Проверки доступа и пересчёты не пересылаем.
func (n *Notifier) Handle(_ context.Context, e events.Event) {
	if !notifiable(e.Type) {
		return
	}
	select {
	case n.queue <- e:
	default:
		total := n.dropped.Add(1)
		log.WithFields(log.Fields{
			"type":    e.Type,
			"dropped": total,
		}).Warn("Очередь уведомлений переполнена, событие пропущено")
	}
}

// Dropped — сколько событий выброшено из-за переполнения.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Run отправляет события из очереди, пока не отменён ctx.
func (n *Notifier) Run(ctx context.Context) {
	log.WithField("chat_id", n.chatID).Info("Уведомления аудита запущены")
	for {
		select {
		case <-ctx.Done():
			log.Info("Уведомления аудита остановлены")
			return
		case e := <-n.queue:
			n.send(ctx, e)
		}
	}
}

func (n *Notifier) send(ctx context.Context, e events.Event) {
	defer middleware.RecoverFromPanic("notifier")

	if err := n.sender.SendText(ctx, n.chatID, FormatEvent(e)); err != nil {
		log.WithError(err).WithField("type", e.Type).Warn("Не удалось отправить уведомление")
	}
}

func notifiable(t events.Type) bool {
	switch t {
	case events.AccessGranted, events.AccessDenied, events.KarmaCalculated:
		return false
	}
	return true
}

// FormatEvent — текст уведомления.
func FormatEvent(e events.Event) string {
	switch p := e.Payload.(type) {
	case members.Registered:
		name := p.DisplayName
		if name == "" {
			name = e.UserID
		}
		return fmt.Sprintf("🆕 Зарегистрирован %s (%s)", name, e.UserID)

	case members.Verified:
		return fmt.Sprintf("✔️ %s верифицирован владельцем %s", e.UserID, p.VerifiedBy)

	case ledger.Added:
		return fmt.Sprintf("📦 Вклад #%d от %s: %s +%d (всего %d)",
			p.ContributionID, e.UserID, p.Category, p.ImpactScore, p.Total)

	case karma.WeightsChanged:
		return fmt.Sprintf("⚖️ %s изменил веса (v%d → v%d): %s → %s",
			p.ChangedBy, p.Old.Version, p.New.Version, formatWeights(p.Old), formatWeights(p.New))

	case access.RuleChanged:
		verb := "добавил"
		if e.Type == events.AccessRuleDeactivated {
			verb = "деактивировал"
		}
		return fmt.Sprintf("📜 %s %s правило #%d «%s» [%s]", p.By, verb, p.Rule.ID, p.Rule.Name, p.Rule.Level)

	case access.DaoChanged:
		verb := "добавил"
		if e.Type == events.DaoIntegrationDeactivated {
			verb = "деактивировал"
		}
		return fmt.Sprintf("🏛 %s %s DAO #%d «%s» [%s]", p.By, verb, p.Dao.ID, p.Dao.Name, p.Dao.RequiredLevel)
	}

	if e.UserID != "" {
		return fmt.Sprintf("ℹ️ %s: %s", e.Type, e.UserID)
	}
	return fmt.Sprintf("ℹ️ %s", e.Type)
}

func formatWeights(w karma.Weights) string {
	parts := make([]string, 0, len(ledger.Categories))
	for _, c := range ledger.Categories {
		parts = append(parts, fmt.Sprintf("%s=%s", c, formatBasisPoints(w.For(c))))
	}
	return strings.Join(parts, " ")
}
