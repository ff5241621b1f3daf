// Package common — errors.go определяет ошибки движка репутации.
// Каждая конкретная ошибка оборачивает одну из ошибок-видов (валидация,
// нет прав, не найдено, конфликт), поэтому обработчики могут проверять
// как конкретную ошибку, так и её вид через errors.Is.
package common

import (
	"errors"
	"fmt"
)

// Виды ошибок
var (
	// ErrValidation — входные данные отклонены, состояние не изменено
	ErrValidation = errors.New("ошибка валидации")
	// ErrUnauthorized — операция требует прав владельца
	ErrUnauthorized = errors.New("нет прав")
	// ErrNotFound — пользователь, правило или DAO не найдены
	ErrNotFound = errors.New("не найдено")
	// ErrConflict — запись уже существует или уже в нужном состоянии
	ErrConflict = errors.New("конфликт")
)

func kindOf(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Ошибки участников
var (
	// ErrInvalidUserID — пустой или слишком длинный идентификатор
	ErrInvalidUserID = kindOf(ErrValidation, "некорректный идентификатор пользователя")
	// ErrInvalidMetadata — имя, GitHub или Telegram вне допустимых значений
	ErrInvalidMetadata = kindOf(ErrValidation, "некорректные данные профиля")
	// ErrUserNotFound — пользователь не зарегистрирован
	ErrUserNotFound = kindOf(ErrNotFound, "пользователь не найден")
	// ErrUserExists — пользователь уже зарегистрирован
	ErrUserExists = kindOf(ErrConflict, "пользователь уже зарегистрирован")
	// ErrAlreadyVerified — пользователь уже верифицирован
	ErrAlreadyVerified = kindOf(ErrConflict, "пользователь уже верифицирован")
)

// Ошибки журнала вкладов
var (
	// ErrInvalidImpactScore — оценка вклада вне диапазона 0..100
	ErrInvalidImpactScore = kindOf(ErrValidation, "оценка вклада должна быть в диапазоне 0..100")
	// ErrInvalidCategory — неизвестная категория вклада
	ErrInvalidCategory = kindOf(ErrValidation, "неизвестная категория вклада")
	// ErrDescriptionTooLong — описание длиннее 500 символов
	ErrDescriptionTooLong = kindOf(ErrValidation, "описание слишком длинное (максимум 500 символов)")
	// ErrUnknownOwner — вклад для незарегистрированного пользователя
	ErrUnknownOwner = kindOf(ErrNotFound, "владелец вклада не зарегистрирован")
)

// Ошибки кармы
var (
	// ErrInvalidWeights — вес категории больше WeightScale
	ErrInvalidWeights = kindOf(ErrValidation, "некорректные веса категорий")
	// ErrScoreNotFound — для пользователя ещё не считалась карма
	ErrScoreNotFound = kindOf(ErrNotFound, "расчёт кармы не найден")
	// ErrWeightsNotFound — веса ещё не сохранялись
	ErrWeightsNotFound = kindOf(ErrNotFound, "веса не сохранены")
)

// Ошибки правил доступа и DAO
var (
	// ErrInvalidRule — порог правила вне допустимых границ
	ErrInvalidRule = kindOf(ErrValidation, "некорректное правило доступа")
	// ErrInvalidDao — некорректная интеграция DAO
	ErrInvalidDao = kindOf(ErrValidation, "некорректная интеграция DAO")
	// ErrRuleNotFound — правило не найдено
	ErrRuleNotFound = kindOf(ErrNotFound, "правило доступа не найдено")
	// ErrDaoNotFound — интеграция DAO не найдена
	ErrDaoNotFound = kindOf(ErrNotFound, "интеграция DAO не найдена")
	// ErrPermissionNotFound — проверок доступа для пользователя ещё не было
	ErrPermissionNotFound = kindOf(ErrNotFound, "запись о доступе не найдена")
	// ErrAlreadyInactive — правило или DAO уже деактивированы
	ErrAlreadyInactive = kindOf(ErrConflict, "уже деактивировано")
)

// Ошибки админки
var (
	// ErrNotOwner — пользователь не является владельцем
	ErrNotOwner = kindOf(ErrUnauthorized, "у вас нет прав владельца")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = kindOf(ErrUnauthorized, "неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = kindOf(ErrUnauthorized, "слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессии нет или она истекла
	ErrSessionExpired = kindOf(ErrUnauthorized, "сессия истекла, авторизуйтесь заново")
)

// Kind возвращает короткое имя вида ошибки для внешнего слоя.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
