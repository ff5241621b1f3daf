// Package admin — handlers.go обрабатывает вход владельцев в личных сообщениях бота.
// Поток: /login <пароль> → сессия → привилегированные команды → /logout.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/reputation-engine/internal/common"
)

// Handler обрабатывает админ-команды. Возвращает текст ответа,
// отправкой занимается бот.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик админ-команд.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleCommand обрабатывает команду владельца в DM.
// userID — профиль, привязанный к отправителю. handled=false — команда не админская.
func (h *Handler) HandleCommand(ctx context.Context, userID, cmd string, args []string) (reply string, handled bool) {
	switch cmd {
	case "login", "вход":
		return h.handleLogin(ctx, userID, args), true
	case "logout", "выход":
		return h.handleLogout(ctx, userID), true
	case "сессия":
		return h.handleSession(ctx, userID), true
	}
	return "", false
}

func (h *Handler) handleLogin(ctx context.Context, userID string, args []string) string {
	if !h.service.IsOwner(userID) {
		return "❌ " + common.ErrNotOwner.Error()
	}
	if !h.service.PasswordRequired() {
		return "ℹ️ Вход по паролю не настроен, права владельца действуют без сессии"
	}
	password := strings.TrimSpace(strings.Join(args, " "))
	if password == "" {
		return "🔐 Использование: /login <пароль>"
	}

	session, err := h.service.Login(ctx, userID, password)
	if err != nil {
		if !errors.Is(err, common.ErrUnauthorized) {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка входа владельца")
			return "❌ Внутренняя ошибка, попробуйте позже"
		}
		return fmt.Sprintf("❌ %s", err.Error())
	}
	return fmt.Sprintf("✅ Аутентификация успешна. Сессия до %s", session.ExpiresAt.Format("02.01.2006 15:04"))
}

func (h *Handler) handleLogout(ctx context.Context, userID string) string {
	if !h.service.IsOwner(userID) {
		return "❌ " + common.ErrNotOwner.Error()
	}
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка выхода владельца")
		return "❌ Внутренняя ошибка, попробуйте позже"
	}
	return "👋 Сессия закрыта"
}

func (h *Handler) handleSession(ctx context.Context, userID string) string {
	err := h.service.Authorize(ctx, userID)
	switch {
	case err == nil:
		return "✅ Права владельца активны"
	case errors.Is(err, common.ErrUnauthorized):
		return "❌ " + err.Error()
	default:
		log.WithError(err).WithField("user_id", userID).Error("Ошибка проверки сессии")
		return "❌ Внутренняя ошибка, попробуйте позже"
	}
}
