// Package common — time.go содержит работу с часовым поясом приложения.
package common

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoadLocation загружает часовой пояс по имени (например, "Europe/Moscow").
// Если база tzdata недоступна — для Москвы используем UTC+3 вручную, иначе UTC.
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	log.WithError(err).WithField("timezone", name).Warn("Не удалось загрузить часовой пояс")
	if name == "Europe/Moscow" {
		return time.FixedZone("MSK", 3*60*60)
	}
	return time.UTC
}

// TruncateToSecond обрезает время до секунд и переводит в UTC.
// Так одинаково хранятся метки времени в памяти и в PostgreSQL.
func TruncateToSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
