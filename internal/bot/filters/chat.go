// Package filters решает, обрабатывать ли сообщение и от чьего имени.
package filters

import (
	"context"
	"errors"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/members"
)

// MemberLookup ищет участника по Telegram id.
type MemberLookup interface {
	GetMemberByTelegramID(ctx context.Context, telegramID int64) (*members.Member, error)
}

// Result — вердикт фильтра.
type Result struct {
	Allowed bool
	// Member — участник, привязанный к отправителю. В чате аудита может быть nil.
	Member *members.Member
	// Reply — что ответить при отказе (пусто — молча игнорируем).
	Reply string
}

const notLinkedReply = "❌ Ваш Telegram не привязан к профилю. Обратитесь к владельцу."

// ChatFilter пропускает сообщения из чата аудита и личку привязанных участников.
type ChatFilter struct {
	auditChatID int64
	members     MemberLookup
}

func NewChatFilter(auditChatID int64, lookup MemberLookup) *ChatFilter {
	return &ChatFilter{auditChatID: auditChatID, members: lookup}
}

func (f *ChatFilter) CheckAccess(ctx context.Context, message *telego.Message) Result {
	if message == nil {
		log.WithField("component", "ChatFilter").Warn("nil message")
		return Result{}
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (service/channel message?)")
		return Result{}
	}

	chatID := message.Chat.ID
	tgID := message.From.ID

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   chatID,
		"chat_type": message.Chat.Type,
		"tg_id":     tgID,
	})

	isAuditChat := f.auditChatID != 0 && chatID == f.auditChatID
	isPrivate := message.Chat.Type == telego.ChatTypePrivate
	if !isAuditChat && !isPrivate {
		logger.Debug("deny: not audit chat and not private")
		return Result{}
	}

	member, err := f.members.GetMemberByTelegramID(ctx, tgID)
	switch {
	case err == nil:
		logger.WithField("user_id", member.UserID).Debug("allow: linked member")
		return Result{Allowed: true, Member: member}

	case errors.Is(err, common.ErrUserNotFound):
		if isAuditChat {
			logger.Debug("allow: audit chat (not linked)")
			return Result{Allowed: true}
		}
		logger.Info("deny: private (not linked)")
		return Result{Reply: notLinkedReply}

	default:
		logger.WithError(err).Error("member lookup failed")
		return Result{}
	}
}
