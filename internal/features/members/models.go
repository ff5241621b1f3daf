// Package members ведёт реестр пользователей движка: регистрация, верификация
// личности и счётчики активности, на которых строится профиль репутации.
// models.go описывает структуры участника.
package members

import (
	"strings"
	"time"
	"unicode/utf8"

	"serotonyl.ru/reputation-engine/internal/common"
)

const (
	maxUserIDLength      = 128
	maxDisplayNameLength = 64
	maxGithubLoginLength = 39
)

// Member — зарегистрированный пользователь.
// Счётчики вкладов и флаг устаревания кармы меняет журнал вкладов,
// флаг снимает пересчёт кармы.
type Member struct {
	UserID             string     // адрес кошелька или внешний id
	DisplayName        string     // отображаемое имя (может быть пустым)
	GithubLogin        string     // логин GitHub (может быть пустым)
	TelegramID         int64      // привязанный Telegram, 0 — нет
	IsVerified         bool       // личность подтверждена владельцем
	VerifiedAt         *time.Time // когда подтверждена
	TotalContributions uint64     // сколько вкладов в журнале
	ScoresStale        bool       // карма устарела и будет пересчитана при чтении
	RegisteredAt       time.Time
	LastActivityAt     time.Time
}

// Metadata — данные, которые передаются при регистрации.
type Metadata struct {
	DisplayName string
	GithubLogin string
	TelegramID  int64
}

// Registered — payload события UserRegistered.
type Registered struct {
	DisplayName string `json:"display_name,omitempty"`
	GithubLogin string `json:"github_login,omitempty"`
}

// Verified — payload события UserVerified.
type Verified struct {
	VerifiedBy string    `json:"verified_by"`
	VerifiedAt time.Time `json:"verified_at"`
}

// DisplayLabel возвращает имя для отображения.
// Если есть отображаемое имя — его, иначе @github, иначе сам id.
func (m *Member) DisplayLabel() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	if m.GithubLogin != "" {
		return "@" + m.GithubLogin
	}
	return m.UserID
}

// NormalizeUserID приводит идентификатор к каноническому виду:
// обрезает пробелы, EVM-адреса (0x...) переводит в нижний регистр.
func NormalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || utf8.RuneCountInString(userID) > maxUserIDLength {
		return "", common.ErrInvalidUserID
	}
	if strings.HasPrefix(userID, "0x") || strings.HasPrefix(userID, "0X") {
		userID = strings.ToLower(userID)
	}
	return userID, nil
}

func (m Metadata) validate() error {
	if utf8.RuneCountInString(m.DisplayName) > maxDisplayNameLength {
		return common.ErrInvalidMetadata
	}
	if len(m.GithubLogin) > maxGithubLoginLength {
		return common.ErrInvalidMetadata
	}
	if m.TelegramID < 0 {
		return common.ErrInvalidMetadata
	}
	return nil
}
