// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"unicode/utf8"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

const maxLoggedText = 50

// LogMessage логирует входящее сообщение.
// Записывает: user_id, chat_id, username. Для команды пишутся только её имя
// и число аргументов (в аргументах /login лежит пароль), для обычного
// сообщения — первые 50 символов текста.
func LogMessage(message *telego.Message, cmd string, argc int) {
	if message == nil {
		return
	}

	fields := log.Fields{
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
	}
	if cmd != "" {
		fields["cmd"] = cmd
		fields["args"] = argc
	} else {
		fields["text"] = Truncate(message.Text, maxLoggedText)
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.Username
	}
	log.WithFields(fields).Debug("Входящее сообщение")
}

// Truncate обрезает строку до n символов, не разрывая UTF-8.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
