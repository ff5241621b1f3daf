// Package postgres — access.go работает с таблицами access_rules и dao_integrations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/reputation-engine/internal/common"
	"serotonyl.ru/reputation-engine/internal/features/access"
)

const ruleColumns = `id, name, min_karma, min_trust_factor, requires_verification,
	min_contributions, access_level, active, created_at`

const daoColumns = `id, name, required_access_level, custom_rule_ids, active, created_at`

func scanRule(row pgx.Row) (*access.Rule, error) {
	var r access.Rule
	var minKarma, minTrust int32
	var minContributions int64
	var level int16
	err := row.Scan(&r.ID, &r.Name, &minKarma, &minTrust, &r.RequiresVerification,
		&minContributions, &level, &r.Active, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.MinKarma = uint32(minKarma)
	r.MinTrustFactor = uint32(minTrust)
	r.MinContributions = uint64(minContributions)
	r.Level = access.Level(level)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func scanDao(row pgx.Row) (*access.Dao, error) {
	var d access.Dao
	var level int16
	err := row.Scan(&d.ID, &d.Name, &level, &d.CustomRuleIDs, &d.Active, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.RequiredLevel = access.Level(level)
	d.CreatedAt = d.CreatedAt.UTC()
	if d.CustomRuleIDs == nil {
		d.CustomRuleIDs = []int64{}
	}
	return &d, nil
}

// CreateRule сохраняет правило.
func (s *Store) CreateRule(ctx context.Context, r access.Rule) (*access.Rule, error) {
	query := `
		INSERT INTO access_rules (name, min_karma, min_trust_factor, requires_verification,
		                          min_contributions, access_level, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + ruleColumns
	created, err := scanRule(s.db.QueryRow(ctx, query,
		r.Name, int32(r.MinKarma), int32(r.MinTrustFactor), r.RequiresVerification,
		int64(r.MinContributions), int16(r.Level), r.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания правила: %w", err)
	}
	return created, nil
}

// GetRule возвращает правило.
func (s *Store) GetRule(ctx context.Context, id int64) (*access.Rule, error) {
	r, err := scanRule(s.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM access_rules WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, common.ErrRuleNotFound)
	}
	return r, nil
}

// ListRules возвращает правила по возрастанию id.
func (s *Store) ListRules(ctx context.Context, activeOnly bool) ([]access.Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+` FROM access_rules
		WHERE active OR NOT $1
		ORDER BY id
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения правил: %w", err)
	}
	defer rows.Close()

	var out []access.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения правила: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeactivateRule выключает правило.
func (s *Store) DeactivateRule(ctx context.Context, id int64) (*access.Rule, error) {
	r, err := scanRule(s.db.QueryRow(ctx, `
		UPDATE access_rules SET active = FALSE
		WHERE id = $1 AND active
		RETURNING `+ruleColumns, id))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка деактивации правила: %w", err)
	}
	if _, err := s.GetRule(ctx, id); err != nil {
		return nil, err
	}
	return nil, common.ErrAlreadyInactive
}

// CreateDao сохраняет интеграцию DAO.
func (s *Store) CreateDao(ctx context.Context, d access.Dao) (*access.Dao, error) {
	ruleIDs := d.CustomRuleIDs
	if ruleIDs == nil {
		ruleIDs = []int64{}
	}
	query := `
		INSERT INTO dao_integrations (name, required_access_level, custom_rule_ids, active)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + daoColumns
	created, err := scanDao(s.db.QueryRow(ctx, query, d.Name, int16(d.RequiredLevel), ruleIDs, d.Active))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания интеграции DAO: %w", err)
	}
	return created, nil
}

// GetDao возвращает интеграцию DAO.
func (s *Store) GetDao(ctx context.Context, id int64) (*access.Dao, error) {
	d, err := scanDao(s.db.QueryRow(ctx, `SELECT `+daoColumns+` FROM dao_integrations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, common.ErrDaoNotFound)
	}
	return d, nil
}

// ListDaos возвращает интеграции по возрастанию id.
func (s *Store) ListDaos(ctx context.Context, activeOnly bool) ([]access.Dao, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+daoColumns+` FROM dao_integrations
		WHERE active OR NOT $1
		ORDER BY id
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения интеграций DAO: %w", err)
	}
	defer rows.Close()

	var out []access.Dao
	for rows.Next() {
		d, err := scanDao(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения интеграции DAO: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeactivateDao выключает интеграцию DAO.
func (s *Store) DeactivateDao(ctx context.Context, id int64) (*access.Dao, error) {
	d, err := scanDao(s.db.QueryRow(ctx, `
		UPDATE dao_integrations SET active = FALSE
		WHERE id = $1 AND active
		RETURNING `+daoColumns, id))
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка деактивации интеграции DAO: %w", err)
	}
	if _, err := s.GetDao(ctx, id); err != nil {
		return nil, err
	}
	return nil, common.ErrAlreadyInactive
}
