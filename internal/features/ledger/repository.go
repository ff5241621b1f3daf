// Package ledger — repository.go описывает хранилище журнала.
package ledger

import "context"

// Repository хранит журнал вкладов.
type Repository interface {
	// AppendContribution одной операцией добавляет запись и обновляет владельца:
	// total_contributions+1, last_activity_at, scores_stale=true.
	// Verified и ID заполняет хранилище. Владельца нет — common.ErrUnknownOwner,
	// и тогда ничего не меняется.
	AppendContribution(ctx context.Context, c Contribution) (*Contribution, uint64, error)
	// ListContributions возвращает записи владельца в порядке добавления.
	ListContributions(ctx context.Context, ownerID string) ([]Contribution, error)
	// CountContributions — количество записей владельца.
	CountContributions(ctx context.Context, ownerID string) (uint64, error)
}
