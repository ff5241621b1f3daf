// Package bot — Telegram-обвязка движка репутации: команды участников,
// вход владельцев и уведомления аудита.
// bot.go принимает апдейты через long polling и маршрутизирует команды.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/bot/filters"
	"serotonyl.ru/reputation-engine/internal/bot/middleware"
	"serotonyl.ru/reputation-engine/internal/features/admin"
)

// Options — настройки бота.
type Options struct {
	AuditChatID       int64
	MaxInflight       int
	UpdateTimeout     int // секунды long polling
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api  *telego.Bot
	opts Options

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter[int64]

	commands     *Commands
	adminHandler *admin.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота. Токен проверяется при создании telego.Bot.
func New(token string, engine Engine, adminHandler *admin.Handler, opts Options) (*Bot, error) {
	api, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать Telegram-бота: %w", err)
	}

	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 64
	}
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = 60
	}

	return &Bot{
		api:          api,
		opts:         opts,
		chatFilter:   filters.NewChatFilter(opts.AuditChatID, engine),
		rateLimiter:  middleware.NewRateLimiter[int64](opts.RateLimitRequests, opts.RateLimitWindow),
		commands:     NewCommands(engine),
		adminHandler: adminHandler,
		parser:       NewCommandParser(),
		inflight:     make(chan struct{}, opts.MaxInflight),
	}, nil
}

// Start запускает polling и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	defer b.rateLimiter.Close()

	me, err := b.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}

	updates, err := b.api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: b.opts.UpdateTimeout,
	})
	if err != nil {
		return fmt.Errorf("long polling: %w", err)
	}

	log.WithFields(log.Fields{
		"username":     me.Username,
		"max_inflight": b.opts.MaxInflight,
		"timeout_sec":  b.opts.UpdateTimeout,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.wait()
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.wait()
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func() {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// wait ждёт, пока завершатся обработчики в полёте.
func (b *Bot) wait() {
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic("bot")

	message := update.Message
	if message == nil || message.Text == "" {
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	middleware.LogMessage(message, cmd, len(args))
	if !isCommand {
		return
	}

	verdict := b.chatFilter.CheckAccess(ctx, message)
	if !verdict.Allowed {
		if verdict.Reply != "" {
			b.sendMessage(ctx, message.Chat.ID, verdict.Reply)
		}
		return
	}

	// Rate limiting
	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("tg_id", message.From.ID).Debug("rate limited")
		return
	}

	if reply, ok := b.routeCommand(ctx, message, verdict, cmd, args); ok {
		b.sendMessage(ctx, message.Chat.ID, reply)
	}
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *telego.Message, verdict filters.Result, cmd string, args []string) (string, bool) {
	// Вход владельца — только в личке, чтобы пароль не светился в общем чате
	if message.Chat.Type == telego.ChatTypePrivate && verdict.Member != nil {
		if reply, ok := b.adminHandler.HandleCommand(ctx, verdict.Member.UserID, cmd, args); ok {
			return reply, true
		}
	}
	return b.commands.Handle(ctx, verdict.Member, cmd, args)
}

// SendText отправляет сообщение в чат. Используется уведомлениями аудита.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	return err
}

// sendMessage — утилита для ответов на команды.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if err := b.SendText(ctx, chatID, text); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// CommandParser парсит русские команды с префиксами !, . и /
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// "/login@my_bot secret" → ("login", ["secret"]).
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
