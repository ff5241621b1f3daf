// Package access — repository.go описывает хранилище правил и DAO.
// Физического удаления нет: только деактивация.
package access

import "context"

// Repository хранит правила доступа и интеграции DAO.
type Repository interface {
	// CreateRule присваивает следующий id и сохраняет правило.
	CreateRule(ctx context.Context, r Rule) (*Rule, error)
	// GetRule — common.ErrRuleNotFound, если нет.
	GetRule(ctx context.Context, id int64) (*Rule, error)
	// ListRules возвращает правила по возрастанию id.
	ListRules(ctx context.Context, activeOnly bool) ([]Rule, error)
	// DeactivateRule — common.ErrAlreadyInactive, если уже выключено.
	DeactivateRule(ctx context.Context, id int64) (*Rule, error)

	// CreateDao присваивает следующий id и сохраняет интеграцию.
	CreateDao(ctx context.Context, d Dao) (*Dao, error)
	// GetDao — common.ErrDaoNotFound, если нет.
	GetDao(ctx context.Context, id int64) (*Dao, error)
	// ListDaos возвращает интеграции по возрастанию id.
	ListDaos(ctx context.Context, activeOnly bool) ([]Dao, error)
	// DeactivateDao — common.ErrAlreadyInactive, если уже выключено.
	DeactivateDao(ctx context.Context, id int64) (*Dao, error)
}
